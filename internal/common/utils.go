package common

import (
	"math"
	"strconv"
)

// CoordPrecision is the number of decimals coordinates are rounded to for
// keys: 4 places is roughly 11 m.
const CoordPrecision = 4

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// CoordKey returns "lat_lon" with both rounded to CoordPrecision.
func CoordKey(lat, lon float64) string {
	return formatCoord(lat) + "_" + formatCoord(lon)
}

func formatCoord(v float64) string {
	r := RoundTo(v, CoordPrecision)
	if r == 0 {
		r = 0 // normalise -0
	}
	return strconv.FormatFloat(r, 'f', CoordPrecision, 64)
}
