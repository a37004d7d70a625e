package weather

import (
	"fmt"
	"time"
)

// Layouts Open-Meteo uses for local times, with and without an explicit offset.
var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// parseForecastTime parses a forecast timestamp. Strings without an offset
// are interpreted in the forecast's UTC offset.
func parseForecastTime(s string, offsetSeconds int) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	loc := time.FixedZone("", offsetSeconds)
	if offsetSeconds == 0 {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised forecast time %q", s)
}

// hourlyTimes parses the hourly index once. Unparseable entries stay zero
// and never match a sunset hour.
func (f Forecast) hourlyTimes() []time.Time {
	out := make([]time.Time, len(f.Hourly.Time))
	for i, s := range f.Hourly.Time {
		if ts, err := parseForecastTime(s, f.UTCOffsetSeconds); err == nil {
			out[i] = ts
		}
	}
	return out
}

// truncateToHour zeroes minutes and below in the time's own zone, so
// half-hour offsets still line up with the local hourly index.
func truncateToHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

func indexOfTime(times []time.Time, target time.Time) int {
	for i, ts := range times {
		if !ts.IsZero() && ts.Equal(target) {
			return i
		}
	}
	return -1
}

// hasSeries reports whether an optional hourly series is usable.
func (h HourlySeries) hasSeries(series []float64) bool {
	return len(series) > 0 && len(series) == len(h.Time)
}
