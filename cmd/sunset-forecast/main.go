package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	httpapi "github.com/i474232898/sunset-forecast/internal/api/http"
	"github.com/i474232898/sunset-forecast/internal/cache"
	"github.com/i474232898/sunset-forecast/internal/config"
	"github.com/i474232898/sunset-forecast/internal/grid"
	"github.com/i474232898/sunset-forecast/internal/scheduler"
	"github.com/i474232898/sunset-forecast/internal/store"
	"github.com/i474232898/sunset-forecast/internal/weather"
	"github.com/i474232898/sunset-forecast/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Persisted key/value state: sqlite when a path is set, memory otherwise.
	var kv store.Store
	if cfg.CacheDBPath != "" {
		sqlite, err := store.OpenSQLite(ctx, cfg.CacheDBPath)
		if err != nil {
			zl.Fatal("failed to open cache database", zap.String("path", cfg.CacheDBPath), zap.Error(err))
		}
		defer sqlite.Close()
		kv = sqlite
	} else {
		kv = store.NewMemoryStore()
	}

	predictions := cache.New(kv, cache.WithTTL(cfg.CacheTTL), cache.WithLogger(zl))
	if err := predictions.Init(ctx); err != nil {
		zl.Warn("failed to rewrite prediction cache", zap.Error(err))
	}

	// Open-Meteo needs no API key. Requests are paced by a shared limiter.
	omOpts := []providers.OpenMeteoOption{
		providers.WithBaseURL(cfg.OpenMeteoURL),
		providers.WithProviderLogger(zl),
	}
	if cfg.AirQualityEnabled {
		omOpts = append(omOpts, providers.WithAirQualityURL(cfg.AirQualityURL))
	}
	provider := providers.NewOpenMeteoProvider(providers.HTTPClientConfig{
		Client:  httpClient,
		Limiter: rate.NewLimiter(rate.Limit(cfg.UpstreamRPS), cfg.UpstreamBurst),
	}, omOpts...)

	// One rate-limit latch for the whole process: a 429 anywhere stops fetches everywhere.
	limit := weather.NewRateLimit()

	svcOpts := []weather.ServiceOption{weather.WithLogger(zl), weather.WithRateLimit(limit)}
	// Reverse geocoding requires a Google API key.
	if cfg.GeocoderAPIKey != "" {
		svcOpts = append(svcOpts, weather.WithPlaceNamer(providers.NewGeocoderPlaceNamer(cfg.GeocoderAPIKey)))
	}

	// Core service orchestrating provider, cache and last location.
	service := weather.NewService(provider, predictions, store.NewLastLocation(kv), svcOpts...)

	gridCfg := cfg.Grid()
	grids := grid.NewRegistry(func() *grid.Orchestrator {
		return grid.New(service, gridCfg, grid.WithLogger(zl), grid.WithRateLimit(limit))
	}, grid.WithMaxSessions(cfg.GridMaxSessions))
	defer grids.CloseAll()

	// Scheduler that purges expired predictions and keeps locations warm.
	sched := scheduler.New(predictions, service, cfg.Coordinates(), cfg.PurgeInterval, cfg.WarmInterval, zl).
		WithSessionExpiry(grids, cfg.GridSessionIdle)
	if err := sched.Start(); err != nil {
		zl.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "sunset-forecast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 5*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "sunset-forecast",
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Service: service,
		Cache:   predictions,
		Store:   kv,
		Grids:   grids,
		Logger:  zl,
	})

	go func() {
		zl.Info("listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Error("fiber server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Error("error during shutdown", zap.Error(err))
	}
}

func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
