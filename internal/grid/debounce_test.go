package grid

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_RunsOnlyLastTrigger(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var mu sync.Mutex
	var got []int
	for i := 1; i <= 3; i++ {
		i := i
		d.Trigger(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, time.Second, 5*time.Millisecond)

	time.Sleep(40 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{3}, got)
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)

	fired := make(chan struct{}, 1)
	d.Trigger(func() { fired <- struct{}{} })
	d.Stop()

	select {
	case <-fired:
		t.Fatal("stopped debouncer must not fire")
	case <-time.After(40 * time.Millisecond):
	}
}

func TestDebouncer_FiresAgainAfterWindow(t *testing.T) {
	d := NewDebouncer(5 * time.Millisecond)

	fired := make(chan int, 2)
	d.Trigger(func() { fired <- 1 })
	assert.Equal(t, 1, <-fired)

	d.Trigger(func() { fired <- 2 })
	assert.Equal(t, 2, <-fired)
}
