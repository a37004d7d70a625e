package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/i474232898/sunset-forecast/internal/grid"
	"github.com/i474232898/sunset-forecast/internal/weather"
)

type AppConfig struct {
	Port        string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Development bool          `envconfig:"DEVELOPMENT" default:"false"`

	// Upstream forecast provider.
	OpenMeteoURL      string  `envconfig:"OPENMETEO_BASE_URL" default:"https://api.open-meteo.com/v1/forecast" validate:"url"`
	AirQualityURL     string  `envconfig:"AIRQUALITY_BASE_URL" default:"https://air-quality-api.open-meteo.com/v1/air-quality" validate:"url"`
	AirQualityEnabled bool    `envconfig:"AIRQUALITY_ENABLED" default:"true"`
	UpstreamRPS       float64 `envconfig:"UPSTREAM_RPS" default:"5" validate:"gt=0"`
	UpstreamBurst     int     `envconfig:"UPSTREAM_BURST" default:"10" validate:"gte=1"`

	// Prediction cache. An empty DB path keeps state in memory only.
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"30m" validate:"gt=0"`
	CacheDBPath string        `envconfig:"CACHE_DB_PATH"`

	// Scheduler.
	PurgeInterval time.Duration `envconfig:"PURGE_INTERVAL" default:"5m" validate:"gte=1m"`
	WarmInterval  time.Duration `envconfig:"WARM_INTERVAL" default:"15m" validate:"gte=1m"`
	LocationsFile string        `envconfig:"LOCATIONS_FILE"`

	// Grid sampling.
	GridRows        int           `envconfig:"GRID_ROWS" default:"5"`
	GridCols        int           `envconfig:"GRID_COLS" default:"5"`
	GridPadding     float64       `envconfig:"GRID_PADDING" default:"0.15"`
	GridTopPercent  float64       `envconfig:"GRID_TOP_PERCENT" default:"20"`
	GridDebounce    time.Duration `envconfig:"GRID_DEBOUNCE" default:"500ms"`
	GridConcurrency int           `envconfig:"GRID_CONCURRENCY" default:"6"`
	GridSessionIdle time.Duration `envconfig:"GRID_SESSION_IDLE" default:"30m" validate:"gte=1m"`
	GridMaxSessions int           `envconfig:"GRID_MAX_SESSIONS" default:"1000" validate:"gte=0"`

	// Reverse geocoding requires a Google API key; empty disables place names.
	GeocoderAPIKey string `envconfig:"GEOCODER_API_KEY"`

	// Locations to keep warm in the cache, loaded from LocationsFile.
	Locations []Location `ignored:"true" validate:"dive"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults. A .env
// file is optional.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()
	return load()
}

func load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if cfg.LocationsFile != "" {
		locs, err := LoadLocations(cfg.LocationsFile)
		if err != nil {
			return nil, err
		}
		cfg.Locations = locs
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validate.Struct(cfg.Grid()); err != nil {
		return nil, fmt.Errorf("invalid grid config: %w", err)
	}
	return cfg, nil
}

// Grid returns the grid orchestrator settings.
func (c *AppConfig) Grid() grid.Config {
	return grid.Config{
		Rows:               c.GridRows,
		Cols:               c.GridCols,
		Padding:            c.GridPadding,
		TopScorePercentage: c.GridTopPercent,
		Debounce:           c.GridDebounce,
		Concurrency:        c.GridConcurrency,
	}
}

// Coordinates returns the configured warm-up locations.
func (c *AppConfig) Coordinates() []weather.Coordinates {
	out := make([]weather.Coordinates, 0, len(c.Locations))
	for _, l := range c.Locations {
		out = append(out, weather.Coordinates{Lat: l.Lat, Lon: l.Lon})
	}
	return out
}
