package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/sunset-forecast/internal/common"
	"github.com/i474232898/sunset-forecast/internal/weather"
)

// reverseGeocodeFunc matches geocoder.GeocodingReverse.
type reverseGeocodeFunc func(geocoder.Location) ([]geocoder.Address, error)

// GeocoderPlaceNamer resolves place names through the Google geocoding API.
// Results are memoised per rounded coordinate since names rarely change.
type GeocoderPlaceNamer struct {
	reverse reverseGeocodeFunc

	mu    sync.RWMutex
	names map[string]string
}

// NewGeocoderPlaceNamer configures the geocoder package with apiKey.
func NewGeocoderPlaceNamer(apiKey string) *GeocoderPlaceNamer {
	geocoder.ApiKey = apiKey
	return newGeocoderPlaceNamer(geocoder.GeocodingReverse)
}

func newGeocoderPlaceNamer(fn reverseGeocodeFunc) *GeocoderPlaceNamer {
	return &GeocoderPlaceNamer{
		reverse: fn,
		names:   make(map[string]string),
	}
}

// PlaceName returns "City, State, Country" for the coordinates, falling back to the
// formatted address.
func (g *GeocoderPlaceNamer) PlaceName(ctx context.Context, lat, lon float64) (string, error) {
	key := common.CoordKey(lat, lon)

	g.mu.RLock()
	name, ok := g.names[key]
	g.mu.RUnlock()
	if ok {
		return name, nil
	}

	type result struct {
		addrs []geocoder.Address
		err   error
	}
	done := make(chan result, 1)
	go func() {
		addrs, err := g.reverse(geocoder.Location{Latitude: lat, Longitude: lon})
		done <- result{addrs: addrs, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return "", fmt.Errorf("reverse geocode: %w", res.err)
	}
	if len(res.addrs) == 0 {
		return "", nil
	}

	name = formatPlace(res.addrs[0])

	g.mu.Lock()
	g.names[key] = name
	g.mu.Unlock()
	return name, nil
}

func formatPlace(a geocoder.Address) string {
	var parts []string
	for _, p := range []string{a.City, a.State, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return a.FormattedAddress
	}
	return strings.Join(parts, ", ")
}

var _ weather.PlaceNamer = (*GeocoderPlaceNamer)(nil)
