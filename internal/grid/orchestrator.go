// Package grid samples a map viewport on a regular grid, fetches a sunset
// prediction per point and exposes the best-scoring subset. Fetches are
// independent and may finish in any order; each carries a generation tag so
// results from superseded requests are dropped.
package grid

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/sunset-forecast/internal/weather"
)

// Predictor fetches predictions without the TTL cache; grid points are
// rarely revisited.
type Predictor interface {
	Predict(ctx context.Context, lat, lon float64) ([]weather.Prediction, error)
}

// Orchestrator drives one viewport session. Public methods never block on
// network I/O; fetches run in the background and feed results back as
// events.
type Orchestrator struct {
	mu    sync.Mutex
	state *session

	predictor Predictor
	cfg       Config
	debouncer *Debouncer
	onChange  func(View)
	logger    *zap.Logger
	limit     *weather.RateLimit
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithOnChange registers a callback invoked with a fresh View after every
// state change. It runs outside the orchestrator lock.
func WithOnChange(fn func(View)) Option {
	return func(o *Orchestrator) {
		o.onChange = fn
	}
}

// WithRateLimit shares a rate-limit latch with other sessions and the
// prediction service. Without it the session gets its own.
func WithRateLimit(l *weather.RateLimit) Option {
	return func(o *Orchestrator) {
		o.limit = l
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func New(predictor Predictor, cfg Config, opts ...Option) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		predictor: predictor,
		cfg:       cfg,
		debouncer: NewDebouncer(cfg.Debounce),
		logger:    zap.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.limit == nil {
		o.limit = weather.NewRateLimit()
	}
	o.state = newSession(cfg, o.limit)
	o.logger = o.logger.Named("grid")
	return o
}

// OnBoundsChanged handles a viewport change after the debounce window. Only
// the last change within the window is acted on.
func (o *Orchestrator) OnBoundsChanged(b Bounds) {
	o.debouncer.Trigger(func() {
		o.ApplyBounds(b)
	})
}

// ApplyBounds regenerates markers for b immediately.
func (o *Orchestrator) ApplyBounds(b Bounds) {
	o.transition(func(s *session) []fetchCommand {
		return s.setBounds(b)
	})
}

// OnDayIndexChanged refetches all current markers for day i.
func (o *Orchestrator) OnDayIndexChanged(i int) {
	o.transition(func(s *session) []fetchCommand {
		return s.setDayIndex(i)
	})
}

// OnRateLimitCleared lifts the shared rate-limit latch and retries markers
// that have no prediction.
func (o *Orchestrator) OnRateLimitCleared() {
	o.transition(func(s *session) []fetchCommand {
		return s.clearRateLimit()
	})
}

// View returns the current session snapshot.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.view()
}

// Wait blocks until every dispatched fetch has completed.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels pending debounce and in-flight fetches and waits for them.
// Events arriving after Close are ignored.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.debouncer.Stop()
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) transition(fn func(*session) []fetchCommand) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	cmds := fn(o.state)
	view := o.state.view()
	if len(cmds) > 0 {
		// Add under the lock so it cannot race with Close's Wait.
		o.wg.Add(1)
	}
	o.mu.Unlock()

	o.notify(view)
	o.dispatch(cmds)
}

// dispatch runs commands in the background, at most cfg.Concurrency at a
// time. The caller has already added cmds to wg.
func (o *Orchestrator) dispatch(cmds []fetchCommand) {
	if len(cmds) == 0 {
		return
	}
	o.logger.Debug("dispatching grid fetches", zap.Int("count", len(cmds)))

	go func() {
		defer o.wg.Done()

		var g errgroup.Group
		g.SetLimit(o.cfg.Concurrency)
		for _, cmd := range cmds {
			cmd := cmd
			g.Go(func() error {
				o.execute(cmd)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (o *Orchestrator) execute(cmd fetchCommand) {
	// Suppress queued fetches once the latch is raised.
	o.mu.Lock()
	if o.closed || !o.state.isCurrent(cmd) {
		o.mu.Unlock()
		return
	}
	if o.limit.Limited() {
		o.state.dropCommand(cmd)
		view := o.state.view()
		o.mu.Unlock()
		o.notify(view)
		return
	}
	o.mu.Unlock()

	res := fetchResult{fetchCommand: cmd}
	preds, err := o.predictor.Predict(o.ctx, cmd.Lat, cmd.Lng)
	if err != nil {
		res.Err = err
		o.logger.Warn("grid fetch failed",
			zap.String("marker", cmd.MarkerID),
			zap.Bool("rateLimited", weather.IsRateLimited(err)),
			zap.Error(err),
		)
	} else if cmd.DayIndex >= 0 && cmd.DayIndex < len(preds) {
		p := preds[cmd.DayIndex]
		res.Prediction = &p
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	accepted := o.state.applyResult(res)
	view := o.state.view()
	o.mu.Unlock()

	if !accepted {
		o.logger.Debug("discarding stale grid result",
			zap.String("marker", cmd.MarkerID),
			zap.Uint64("generation", cmd.Generation),
		)
		return
	}
	o.notify(view)
}

func (o *Orchestrator) notify(v View) {
	if o.onChange != nil {
		o.onChange(v)
	}
}
