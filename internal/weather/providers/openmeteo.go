package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/sunset-forecast/internal/weather"
)

// forecastDays is requested from both endpoints so their hourly indexes align.
const forecastDays = 7

const (
	DefaultOpenMeteoURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
)

var (
	hourlyFields = []string{
		"relative_humidity_2m",
		"cloud_cover",
		"cloud_cover_low",
		"cloud_cover_mid",
		"cloud_cover_high",
		"visibility",
		"weather_code",
		"surface_pressure",
		"wind_speed_10m",
		"temperature_2m",
	}
	dailyFields = []string{
		"sunrise",
		"sunset",
		"daylight_duration",
		"sunshine_duration",
	}
)

// OpenMeteoProvider implements weather.ForecastProvider for Open-Meteo.
// When an air-quality URL is set, hourly PM2.5 is merged into the forecast.
type OpenMeteoProvider struct {
	name          string
	baseURL       string
	airQualityURL string
	httpCfg       HTTPClientConfig
	circuit       *gobreaker.CircuitBreaker
	aqCircuit     *gobreaker.CircuitBreaker
	logger        *zap.Logger
}

// OpenMeteoOption configures an OpenMeteoProvider.
type OpenMeteoOption func(*OpenMeteoProvider)

// WithBaseURL points the forecast request elsewhere, e.g. a test server.
func WithBaseURL(u string) OpenMeteoOption {
	return func(p *OpenMeteoProvider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

// WithAirQualityURL enables the PM2.5 merge. An empty URL disables it.
func WithAirQualityURL(u string) OpenMeteoOption {
	return func(p *OpenMeteoProvider) {
		p.airQualityURL = u
	}
}

func WithBackoff(b BackoffConfig) OpenMeteoOption {
	return func(p *OpenMeteoProvider) {
		p.httpCfg.Backoff = b
	}
}

func WithProviderLogger(l *zap.Logger) OpenMeteoOption {
	return func(p *OpenMeteoProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewOpenMeteoProvider(cfg HTTPClientConfig, opts ...OpenMeteoOption) *OpenMeteoProvider {
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = DefaultBackoff
	}

	p := &OpenMeteoProvider{
		name:      "openmeteo",
		baseURL:   DefaultOpenMeteoURL,
		httpCfg:   cfg,
		circuit:   newCircuitBreaker("openmeteo"),
		aqCircuit: newCircuitBreaker("openmeteo-airquality"),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("openmeteo")
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// FetchForecast requests the hourly and daily series the prediction engine
// needs. Non-2xx responses come back as *weather.UpstreamError.
func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, lat, lon float64) (weather.Forecast, error) {
	buildRequest := func() (*http.Request, error) {
		values := coordValues(lat, lon)
		values.Set("hourly", strings.Join(hourlyFields, ","))
		values.Set("daily", strings.Join(dailyFields, ","))
		values.Set("timezone", "auto")
		values.Set("wind_speed_unit", "kmh")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Forecast{}, err
	}
	defer resp.Body.Close()

	var f weather.Forecast
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return weather.Forecast{}, fmt.Errorf("decode forecast: %w", err)
	}

	if p.airQualityURL != "" {
		p.mergeAirQuality(ctx, lat, lon, &f)
	}
	return f, nil
}

// mergeAirQuality copies hourly PM2.5 into f when both series share the
// same time index. Any failure is logged and the forecast is used as is.
func (p *OpenMeteoProvider) mergeAirQuality(ctx context.Context, lat, lon float64, f *weather.Forecast) {
	buildRequest := func() (*http.Request, error) {
		values := coordValues(lat, lon)
		values.Set("hourly", "pm2_5")
		values.Set("timezone", "auto")

		u := fmt.Sprintf("%s?%s", p.airQualityURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name+"-airquality", p.httpCfg, p.aqCircuit, buildRequest)
	if err != nil {
		p.logger.Warn("air quality fetch failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly struct {
			Time []string  `json:"time"`
			PM25 []float64 `json:"pm2_5"`
		} `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		p.logger.Warn("air quality decode failed", zap.Error(err))
		return
	}

	if !slices.Equal(payload.Hourly.Time, f.Hourly.Time) || len(payload.Hourly.PM25) != len(f.Hourly.Time) {
		p.logger.Debug("air quality time index does not match forecast; skipping merge")
		return
	}
	f.Hourly.PM25 = payload.Hourly.PM25
}

func coordValues(lat, lon float64) url.Values {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', 6, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', 6, 64))
	values.Set("forecast_days", strconv.Itoa(forecastDays))
	return values
}

var _ weather.ForecastProvider = (*OpenMeteoProvider)(nil)
