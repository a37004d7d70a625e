package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/sunset-forecast/internal/weather"
)

// Purger drops expired cache entries.
type Purger interface {
	PurgeExpired() int
}

// Warmer refreshes cached predictions for a location.
type Warmer interface {
	Warm(ctx context.Context, lat, lon float64) error
}

// SessionExpirer closes viewport sessions idle for longer than maxIdle.
type SessionExpirer interface {
	ExpireIdle(maxIdle time.Duration) int
}

// Scheduler periodically purges the prediction cache and keeps configured
// locations warm.
type Scheduler struct {
	scheduler     *gocron.Scheduler
	purger        Purger
	warmer        Warmer
	locations     []weather.Coordinates
	purgeInterval time.Duration
	warmInterval  time.Duration
	sessions      SessionExpirer
	sessionIdle   time.Duration
	logger        *zap.Logger
}

// New creates a new Scheduler. warmer may be nil when no locations are kept warm.
func New(purger Purger, warmer Warmer, locations []weather.Coordinates, purgeInterval, warmInterval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler:     gocron.NewScheduler(time.UTC),
		purger:        purger,
		warmer:        warmer,
		locations:     locations,
		purgeInterval: purgeInterval,
		warmInterval:  warmInterval,
		logger:        logger.Named("scheduler"),
	}
}

// WithSessionExpiry adds a job, run every minute, that drops sessions idle
// for longer than maxIdle. Call it before Start.
func (s *Scheduler) WithSessionExpiry(e SessionExpirer, maxIdle time.Duration) *Scheduler {
	s.sessions = e
	s.sessionIdle = maxIdle
	return s
}

// Start schedules the jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.purger != nil {
		if _, err := s.scheduler.Every(minutes(s.purgeInterval, 5)).Minutes().Do(s.purge); err != nil {
			return err
		}
	}

	if s.warmer != nil && len(s.locations) > 0 {
		if _, err := s.scheduler.Every(minutes(s.warmInterval, 15)).Minutes().Do(s.warm); err != nil {
			return err
		}
	} else {
		s.logger.Info("no locations configured; skipping warm-up job")
	}

	if s.sessions != nil && s.sessionIdle > 0 {
		if _, err := s.scheduler.Every(1).Minutes().Do(s.expireSessions); err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) purge() {
	removed := s.purger.PurgeExpired()
	s.logger.Debug("purged expired predictions", zap.Int("removed", removed))
}

func (s *Scheduler) expireSessions() {
	if n := s.sessions.ExpireIdle(s.sessionIdle); n > 0 {
		s.logger.Info("expired idle grid sessions", zap.Int("removed", n))
	}
}

func (s *Scheduler) warm() {
	s.logger.Info("running warm-up job", zap.Int("locations", len(s.locations)))

	var wg sync.WaitGroup
	for _, loc := range s.locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := s.warmer.Warm(ctx, loc.Lat, loc.Lon); err != nil {
				s.logger.Warn("warm-up failed",
					zap.Float64("lat", loc.Lat),
					zap.Float64("lon", loc.Lon),
					zap.Error(err),
				)
			}
		}()
	}
	wg.Wait()
	s.logger.Info("completed warm-up job")
}

func minutes(d time.Duration, def int) int {
	m := int(d.Minutes())
	if m <= 0 {
		return def
	}
	return m
}
