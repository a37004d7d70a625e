package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/sunset-forecast/internal/cache"
	"github.com/i474232898/sunset-forecast/internal/grid"
	"github.com/i474232898/sunset-forecast/internal/store"
	"github.com/i474232898/sunset-forecast/internal/weather"
)

type stubProvider struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) FetchForecast(context.Context, float64, float64) (weather.Forecast, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return weather.Forecast{}, p.err
	}
	return oneDayForecast(), nil
}

func oneDayForecast() weather.Forecast {
	f := weather.Forecast{
		Daily: weather.DailySeries{
			Time:             []string{"2024-06-01"},
			Sunrise:          []string{"2024-06-01T05:00"},
			Sunset:           []string{"2024-06-01T18:32"},
			DaylightDuration: []float64{36000},
			SunshineDuration: []float64{20000},
		},
	}
	h := &f.Hourly
	for i := 0; i < 24; i++ {
		h.Time = append(h.Time, fmt.Sprintf("2024-06-01T%02d:00", i))
		h.RelativeHumidity = append(h.RelativeHumidity, 85)
		h.CloudCover = append(h.CloudCover, 40)
		h.CloudCoverLow = append(h.CloudCoverLow, 15)
		h.CloudCoverMid = append(h.CloudCoverMid, 0)
		h.CloudCoverHigh = append(h.CloudCoverHigh, 0)
		h.Visibility = append(h.Visibility, 8000)
		h.WeatherCode = append(h.WeatherCode, 1)
	}
	return f
}

type testEnv struct {
	app      *fiber.App
	provider *stubProvider
	store    *store.MemoryStore
	grids    *grid.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	prov := &stubProvider{}
	kv := store.NewMemoryStore()
	predictions := cache.New(kv)
	limit := weather.NewRateLimit()
	svc := weather.NewService(prov, predictions, store.NewLastLocation(kv), weather.WithRateLimit(limit))

	cfg := grid.DefaultConfig()
	cfg.Debounce = 10 * time.Millisecond
	grids := grid.NewRegistry(func() *grid.Orchestrator {
		return grid.New(svc, cfg, grid.WithRateLimit(limit))
	})
	t.Cleanup(grids.CloseAll)

	app := fiber.New()
	RegisterRoutes(app, Deps{Service: svc, Cache: predictions, Store: kv, Grids: grids})
	return &testEnv{app: app, provider: prov, store: kv, grids: grids}
}

func (e *testEnv) do(t *testing.T, method, target, body string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestGetSunset_Validation(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/api/v1/sunset",
		"/api/v1/sunset?lat=10",
		"/api/v1/sunset?lat=abc&lon=1",
		"/api/v1/sunset?lat=91&lon=1",
		"/api/v1/sunset?lat=1&lon=-181",
	} {
		resp, _ := env.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
	}
	assert.Equal(t, 0, env.provider.calls)
}

func TestGetSunset_ServesAndCaches(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.do(t, http.MethodGet, "/api/v1/sunset?lat=38.7223&lon=-9.1393", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var body struct {
		Location    weather.Coordinates  `json:"location"`
		Predictions []weather.Prediction `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Len(t, body.Predictions, 1)
	assert.Equal(t, 49, body.Predictions[0].Scores.Score)
	assert.Equal(t, 38.7223, body.Location.Lat)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/sunset?lat=38.72231&lon=-9.13931", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, env.provider.calls)

	resp, raw = env.do(t, http.MethodGet, "/api/v1/location/last", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var last weather.Coordinates
	require.NoError(t, json.Unmarshal(raw, &last))
	assert.Equal(t, weather.Coordinates{Lat: 38.72231, Lon: -9.13931}, last)
}

func TestGetSunset_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"rate limited", &weather.UpstreamError{Provider: "stub", StatusCode: 429}, http.StatusTooManyRequests},
		{"unavailable", &weather.UpstreamError{Provider: "stub", StatusCode: 503}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.provider.err = tt.err

			resp, _ := env.do(t, http.MethodGet, "/api/v1/sunset?lat=1&lon=2", "")
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestGetLastLocation_NotFound(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/location/last", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClearCache(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/sunset?lat=1&lon=2", "")

	resp, raw := env.do(t, http.MethodDelete, "/api/v1/cache", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Cleared int `json:"cleared"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	// The cache drops its own blob; ClearAll removes the last-location keys.
	assert.Equal(t, 2, body.Cleared)

	keys, err := env.store.Keys(context.Background(), store.Namespace)
	require.NoError(t, err)
	assert.Empty(t, keys)

	env.do(t, http.MethodGet, "/api/v1/sunset?lat=1&lon=2", "")
	assert.Equal(t, 2, env.provider.calls)

	resp, raw = env.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"entries":1`)
}

func TestGridSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.do(t, http.MethodPost, "/api/v1/grid", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &created))
	require.NotEmpty(t, created.ID)
	base := "/api/v1/grid/" + created.ID

	resp, _ = env.do(t, http.MethodPut, base+"/bounds", `{"north":10,"south":20,"east":5,"west":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "north must exceed south")

	resp, _ = env.do(t, http.MethodPut, base+"/bounds", `{"north":40,"south":38,"east":-8,"west":-10}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	o, ok := env.grids.Get(created.ID)
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		v := o.View()
		return v.Bounds != nil && !v.Loading
	}, 2*time.Second, 10*time.Millisecond)
	o.Wait()

	resp, raw = env.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view grid.View
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.Len(t, view.Markers, 25)
	// Every marker scores the same, so ties keep them all.
	assert.Len(t, view.Visible, 25)

	resp, _ = env.do(t, http.MethodPut, base+"/day", `{"dayIndex":-1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, base+"/day", `{"dayIndex":0}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	o.Wait()

	resp, _ = env.do(t, http.MethodPost, base+"/retry", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGridRateLimitSurfacesInView(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = &weather.UpstreamError{Provider: "stub", StatusCode: 429}

	id, o := env.grids.Create()
	o.ApplyBounds(grid.Bounds{North: 40, South: 38, East: -8, West: -10})
	o.Wait()

	resp, raw := env.do(t, http.MethodGet, "/api/v1/grid/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view grid.View
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.True(t, view.RateLimited)
	assert.Equal(t, grid.RateLimitMessage, view.RateLimitMessage)
	assert.Empty(t, view.Visible)
}

func TestRateLimit_BlocksEveryPathUntilCleared(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = &weather.UpstreamError{Provider: "stub", StatusCode: 429}

	resp, _ := env.do(t, http.MethodGet, "/api/v1/sunset?lat=1&lon=2", "")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, 1, env.provider.calls)

	resp, raw := env.do(t, http.MethodGet, "/api/v1/rate-limit", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state struct {
		RateLimited bool   `json:"rateLimited"`
		Message     string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.True(t, state.RateLimited)
	assert.Equal(t, weather.RateLimitMessage, state.Message)

	// Other locations and grid sessions make no upstream call.
	env.provider.err = nil
	resp, _ = env.do(t, http.MethodGet, "/api/v1/sunset?lat=3&lon=4", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	_, o := env.grids.Create()
	o.ApplyBounds(grid.Bounds{North: 40, South: 38, East: -8, West: -10})
	o.Wait()
	assert.True(t, o.View().RateLimited)
	assert.Equal(t, 1, env.provider.calls)

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/rate-limit", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/sunset?lat=3&lon=4", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, env.provider.calls)
	assert.False(t, o.View().RateLimited)
}
