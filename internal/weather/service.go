package weather

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Service fronts the forecast provider with the prediction cache and records
// the last location a prediction was served for.
type Service struct {
	provider ForecastProvider
	cache    PredictionCache
	last     LastLocationStore
	places   PlaceNamer
	limit    *RateLimit
	logger   *zap.Logger
}

// ServiceOption configures optional Service collaborators.
type ServiceOption func(*Service)

// WithPlaceNamer enables place-name lookups.
func WithPlaceNamer(p PlaceNamer) ServiceOption {
	return func(s *Service) {
		s.places = p
	}
}

// WithRateLimit shares the rate-limit latch with the grid sessions. While it
// is set Predict fails fast with ErrRateLimited.
func WithRateLimit(l *RateLimit) ServiceOption {
	return func(s *Service) {
		s.limit = l
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a new Service. cache and last may be nil.
func NewService(provider ForecastProvider, cache PredictionCache, last LastLocationStore, opts ...ServiceOption) *Service {
	s := &Service{
		provider: provider,
		cache:    cache,
		last:     last,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("weather")
	return s
}

// GetSunsetPrediction returns predictions for the coordinates, serving from
// the cache when a live entry exists. A cache hit makes no upstream request.
func (s *Service) GetSunsetPrediction(ctx context.Context, lat, lon float64) ([]Prediction, error) {
	if s.cache != nil {
		if preds, ok := s.cache.Get(lat, lon); ok {
			s.logger.Debug("prediction cache hit", zap.Float64("lat", lat), zap.Float64("lon", lon))
			s.recordLastLocation(ctx, lat, lon)
			return preds, nil
		}
	}

	preds, err := s.Predict(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Put(lat, lon, preds)
	}
	s.recordLastLocation(ctx, lat, lon)
	return preds, nil
}

// Warm fills the cache for the coordinates unless a live entry exists. It
// does not count as a use, so the last location is left alone.
func (s *Service) Warm(ctx context.Context, lat, lon float64) error {
	if s.cache == nil {
		return nil
	}
	if _, ok := s.cache.Get(lat, lon); ok {
		return nil
	}
	if s.limit.Limited() {
		s.logger.Debug("rate limited; skipping warm-up", zap.Float64("lat", lat), zap.Float64("lon", lon))
		return nil
	}
	preds, err := s.Predict(ctx, lat, lon)
	if err != nil {
		return err
	}
	s.cache.Put(lat, lon, preds)
	return nil
}

// Predict fetches a fresh forecast and builds predictions without touching
// the cache. The grid orchestrator uses this path. No request is made while
// the rate-limit latch is set.
func (s *Service) Predict(ctx context.Context, lat, lon float64) ([]Prediction, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("no forecast provider configured")
	}
	if s.limit.Limited() {
		return nil, ErrRateLimited
	}

	f, err := s.provider.FetchForecast(ctx, lat, lon)
	s.limit.Observe(err)
	if err != nil {
		s.logger.Warn("forecast fetch failed",
			zap.String("provider", s.provider.Name()),
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Bool("rateLimited", IsRateLimited(err)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}

	preds, skipped := BuildSunsetPredictions(f)
	for _, d := range skipped {
		s.logger.Info("skipping forecast day",
			zap.Int("index", d.Index),
			zap.String("date", d.Date),
			zap.String("reason", d.Reason),
		)
	}
	if len(preds) == 0 {
		return nil, ErrNoPredictions
	}
	return preds, nil
}

// PlaceName resolves a display name for the coordinates. It returns an empty
// string when no PlaceNamer is configured.
func (s *Service) PlaceName(ctx context.Context, lat, lon float64) (string, error) {
	if s.places == nil {
		return "", nil
	}
	return s.places.PlaceName(ctx, lat, lon)
}

// RateLimit returns the shared latch, or nil when none is configured.
func (s *Service) RateLimit() *RateLimit {
	return s.limit
}

// LastLocation returns the most recently predicted coordinates.
func (s *Service) LastLocation(ctx context.Context) (Coordinates, error) {
	if s.last == nil {
		return Coordinates{}, fmt.Errorf("last location is not tracked")
	}
	return s.last.LastLocation(ctx)
}

func (s *Service) recordLastLocation(ctx context.Context, lat, lon float64) {
	if s.last == nil {
		return
	}
	if err := s.last.SaveLastLocation(ctx, lat, lon); err != nil {
		s.logger.Warn("failed to record last location", zap.Error(err))
	}
}
