package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/i474232898/sunset-forecast/internal/weather"
)

var (
	lastLatKey = Key("last-lat")
	lastLonKey = Key("last-lon")
)

// LastLocation stores the most recently used coordinates as two scalar keys.
type LastLocation struct {
	store Store
}

func NewLastLocation(s Store) *LastLocation {
	return &LastLocation{store: s}
}

func (l *LastLocation) SaveLastLocation(ctx context.Context, lat, lon float64) error {
	if err := l.store.Set(ctx, lastLatKey, []byte(strconv.FormatFloat(lat, 'f', -1, 64))); err != nil {
		return err
	}
	return l.store.Set(ctx, lastLonKey, []byte(strconv.FormatFloat(lon, 'f', -1, 64)))
}

// LastLocation returns ErrNotFound until a location has been saved.
func (l *LastLocation) LastLocation(ctx context.Context) (weather.Coordinates, error) {
	lat, err := l.load(ctx, lastLatKey)
	if err != nil {
		return weather.Coordinates{}, err
	}
	lon, err := l.load(ctx, lastLonKey)
	if err != nil {
		return weather.Coordinates{}, err
	}
	return weather.Coordinates{Lat: lat, Lon: lon}, nil
}

func (l *LastLocation) load(ctx context.Context, key string) (float64, error) {
	raw, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, errors.Join(ErrNotFound, fmt.Errorf("parse %s: %w", key, err))
	}
	return v, nil
}

var _ weather.LastLocationStore = (*LastLocation)(nil)
