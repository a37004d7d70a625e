package grid

import (
	"fmt"
	"time"
)

// Config controls grid layout, filtering and fetch pacing.
type Config struct {
	Rows    int     `validate:"gte=1,lte=20"`
	Cols    int     `validate:"gte=1,lte=20"`
	Padding float64 `validate:"gte=0,lt=0.5"` // fraction trimmed from each side
	// TopScorePercentage is the share of scored markers shown once loading settles.
	TopScorePercentage float64       `validate:"gt=0,lte=100"`
	Debounce           time.Duration `validate:"gte=0"`
	Concurrency        int           `validate:"gte=1"`
}

// DefaultConfig returns a 5x5 grid with 15% padding showing the top 20%.
func DefaultConfig() Config {
	return Config{
		Rows:               5,
		Cols:               5,
		Padding:            0.15,
		TopScorePercentage: 20,
		Debounce:           500 * time.Millisecond,
		Concurrency:        6,
	}
}

// Bounds is a map viewport in decimal degrees. West may exceed East when the
// viewport crosses the antimeridian.
type Bounds struct {
	North float64 `json:"north" validate:"gte=-90,lte=90,gtfield=South"`
	South float64 `json:"south" validate:"gte=-90,lte=90"`
	East  float64 `json:"east" validate:"gte=-180,lte=180"`
	West  float64 `json:"west" validate:"gte=-180,lte=180"`
}

// Marker is one grid sample point. ID encodes its row and column.
type Marker struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Pad shrinks the bounds inward by fraction of the span on every side.
func (b Bounds) Pad(fraction float64) Bounds {
	east := b.East
	if east < b.West {
		east += 360
	}
	latPad := (b.North - b.South) * fraction
	lngPad := (east - b.West) * fraction

	return Bounds{
		North: b.North - latPad,
		South: b.South + latPad,
		East:  normaliseLng(east - lngPad),
		West:  normaliseLng(b.West + lngPad),
	}
}

// GenerateMarkers lays out rows x cols evenly spaced points across the
// padded bounds, north to south and west to east.
func GenerateMarkers(b Bounds, rows, cols int, padding float64) []Marker {
	if rows < 1 || cols < 1 {
		return nil
	}
	p := b.Pad(padding)
	east := p.East
	if east < p.West {
		east += 360
	}

	markers := make([]Marker, 0, rows*cols)
	for r := 0; r < rows; r++ {
		lat := step(p.North, p.South, r, rows)
		for c := 0; c < cols; c++ {
			markers = append(markers, Marker{
				ID:  fmt.Sprintf("marker-%d-%d", r, c),
				Lat: lat,
				Lng: normaliseLng(step(p.West, east, c, cols)),
			})
		}
	}
	return markers
}

// step returns the i-th of n evenly spaced values from 'from' to 'to'. A
// single point sits in the middle.
func step(from, to float64, i, n int) float64 {
	if n == 1 {
		return (from + to) / 2
	}
	return from + (to-from)*float64(i)/float64(n-1)
}

func normaliseLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
