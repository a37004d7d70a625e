package weather

import (
	"time"
)

// Coordinates identifies a point on the map in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Forecast is the Open-Meteo forecast payload the engine consumes.
// Daily and hourly values are parallel arrays indexed by day and hour.
type Forecast struct {
	Latitude         float64      `json:"latitude"`
	Longitude        float64      `json:"longitude"`
	Timezone         string       `json:"timezone,omitempty"`
	UTCOffsetSeconds int          `json:"utc_offset_seconds"`
	Daily            DailySeries  `json:"daily"`
	Hourly           HourlySeries `json:"hourly"`
}

// DailySeries holds per-day values. Times are local ISO strings.
type DailySeries struct {
	Time             []string  `json:"time"`
	Sunrise          []string  `json:"sunrise"`
	Sunset           []string  `json:"sunset"`
	DaylightDuration []float64 `json:"daylight_duration"` // seconds
	SunshineDuration []float64 `json:"sunshine_duration"` // seconds
}

// HourlySeries holds per-hour values sharing the Time index.
// SurfacePressure, WindSpeed, Temperature and PM25 are optional and only
// used when their length matches Time.
type HourlySeries struct {
	Time             []string  `json:"time"`
	RelativeHumidity []float64 `json:"relative_humidity_2m"`
	CloudCover       []float64 `json:"cloud_cover"`
	CloudCoverLow    []float64 `json:"cloud_cover_low"`
	CloudCoverMid    []float64 `json:"cloud_cover_mid"`
	CloudCoverHigh   []float64 `json:"cloud_cover_high"`
	Visibility       []float64 `json:"visibility"`
	WeatherCode      []float64 `json:"weather_code"`
	SurfacePressure  []float64 `json:"surface_pressure,omitempty"`
	WindSpeed        []float64 `json:"wind_speed_10m,omitempty"`
	Temperature      []float64 `json:"temperature_2m,omitempty"`
	PM25             []float64 `json:"pm2_5,omitempty"`
}

// InterpolatedMetric is a weather value at the hour before sunset, the hour
// after, and estimated at the sunset minute.
type InterpolatedMetric struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Interpolate float64 `json:"interpolate"`
}

// GoldenHour is the window of low-angle light ending at sunset.
type GoldenHour struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Scores are integer percentages in [0, 100]. Score is the composite.
type Scores struct {
	CloudCoverage int `json:"cloudCoverage"`
	Visibility    int `json:"visibility"`
	Humidity      int `json:"humidity"`
	Pressure      int `json:"pressure"`
	Particulate   int `json:"particulate"`
	Wind          int `json:"wind"`
	Temperature   int `json:"temperature"`
	Score         int `json:"score"`
}

// Prediction is the sunset quality estimate for one day at one location.
// It is built once and never mutated; a refetch produces a new one.
type Prediction struct {
	Date             string     `json:"date"`
	Sunrise          time.Time  `json:"sunrise"`
	Sunset           time.Time  `json:"sunset"`
	GoldenHour       GoldenHour `json:"goldenHour"`
	SunshineDuration float64    `json:"sunshineDurationSeconds"`

	CloudCover     InterpolatedMetric `json:"cloudCover"`
	CloudCoverLow  InterpolatedMetric `json:"cloudCoverLow"`
	CloudCoverMid  InterpolatedMetric `json:"cloudCoverMid"`
	CloudCoverHigh InterpolatedMetric `json:"cloudCoverHigh"`
	Visibility     InterpolatedMetric `json:"visibility"`
	Humidity       InterpolatedMetric `json:"humidity"`
	WeatherCode    InterpolatedMetric `json:"weatherCode"`

	// Optional metrics, nil when the forecast did not carry them.
	Pressure    *InterpolatedMetric `json:"pressure,omitempty"`
	Particulate *InterpolatedMetric `json:"particulate,omitempty"`
	Wind        *InterpolatedMetric `json:"wind,omitempty"`
	Temperature *InterpolatedMetric `json:"temperature,omitempty"`

	Scores Scores `json:"scores"`
}

// SkippedDay records a forecast day that could not produce a prediction.
type SkippedDay struct {
	Index  int    `json:"index"`
	Date   string `json:"date"`
	Reason string `json:"reason"`
}
