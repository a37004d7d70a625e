package weather

import (
	"context"
)

// ForecastProvider abstracts a forecast data source (e.g. Open-Meteo).
type ForecastProvider interface {
	Name() string
	FetchForecast(ctx context.Context, lat, lon float64) (Forecast, error)
}

// PlaceNamer resolves a human-readable place name for coordinates.
type PlaceNamer interface {
	PlaceName(ctx context.Context, lat, lon float64) (string, error)
}

// PredictionCache is the contract the TTL cache must satisfy.
type PredictionCache interface {
	Get(lat, lon float64) ([]Prediction, bool)
	Put(lat, lon float64, data []Prediction)
}

// LastLocationStore durably records the most recently used coordinates.
type LastLocationStore interface {
	SaveLastLocation(ctx context.Context, lat, lon float64) error
	LastLocation(ctx context.Context) (Coordinates, error)
}
