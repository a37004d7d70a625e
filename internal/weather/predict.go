package weather

import (
	"fmt"
	"time"
)

// Golden hour lasts a twelfth of daylight, trimmed by 10%. This is a fixed
// heuristic and must not be re-derived from solar elevation.
const (
	goldenHourDaylightDivisor = 12.0
	goldenHourTrim            = 0.9
)

// GoldenHourDuration returns the golden hour length for a day with the given
// daylight duration in seconds.
func GoldenHourDuration(daylightSeconds float64) time.Duration {
	minutes := (daylightSeconds / 60 / goldenHourDaylightDivisor) * goldenHourTrim
	return time.Duration(minutes * float64(time.Minute))
}

// CalculateSunsetPredictions builds one prediction per forecast day. Days
// whose sunset cannot be bracketed by the hourly series are dropped.
// The function is pure: the same forecast always yields the same output.
func CalculateSunsetPredictions(f Forecast) []Prediction {
	preds, _ := BuildSunsetPredictions(f)
	return preds
}

// BuildSunsetPredictions is CalculateSunsetPredictions that also reports
// which days were dropped and why, so callers can log them.
func BuildSunsetPredictions(f Forecast) ([]Prediction, []SkippedDay) {
	if !f.Hourly.valid() {
		skipped := make([]SkippedDay, 0, len(f.Daily.Time))
		for i, d := range f.Daily.Time {
			skipped = append(skipped, SkippedDay{Index: i, Date: d, Reason: "hourly series have mismatched lengths"})
		}
		return []Prediction{}, skipped
	}

	hourly := f.hourlyTimes()
	preds := make([]Prediction, 0, len(f.Daily.Time))
	var skipped []SkippedDay

	for i := range f.Daily.Time {
		p, err := f.predictDay(i, hourly)
		if err != nil {
			skipped = append(skipped, SkippedDay{Index: i, Date: f.Daily.Time[i], Reason: err.Error()})
			continue
		}
		preds = append(preds, p)
	}
	return preds, skipped
}

func (f Forecast) predictDay(i int, hourly []time.Time) (Prediction, error) {
	d := f.Daily
	if i >= len(d.Sunset) || i >= len(d.DaylightDuration) {
		return Prediction{}, fmt.Errorf("daily series too short")
	}

	sunset, err := parseForecastTime(d.Sunset[i], f.UTCOffsetSeconds)
	if err != nil {
		return Prediction{}, err
	}

	startTime := truncateToHour(sunset)
	startIdx := indexOfTime(hourly, startTime)
	if startIdx < 0 {
		return Prediction{}, fmt.Errorf("no hourly sample at %s", startTime.Format(time.RFC3339))
	}
	endIdx := startIdx + 1
	if endIdx >= len(hourly) {
		return Prediction{}, fmt.Errorf("no hourly sample after %s", startTime.Format(time.RFC3339))
	}

	b := bracket{start: startIdx, end: endIdx, ratio: float64(sunset.Minute()) / 60}
	h := f.Hourly

	p := Prediction{
		Date:   d.Time[i],
		Sunset: sunset,
		GoldenHour: GoldenHour{
			Start: sunset.Add(-GoldenHourDuration(d.DaylightDuration[i])),
			End:   sunset,
		},
		CloudCover:     b.linear(h.CloudCover),
		CloudCoverLow:  b.linear(h.CloudCoverLow),
		CloudCoverMid:  b.linear(h.CloudCoverMid),
		CloudCoverHigh: b.linear(h.CloudCoverHigh),
		Visibility:     b.linear(h.Visibility),
		Humidity:       b.linear(h.RelativeHumidity),
		WeatherCode:    b.nearest(h.WeatherCode),
		Pressure:       b.optional(h, h.SurfacePressure),
		Particulate:    b.optional(h, h.PM25),
		Wind:           b.optional(h, h.WindSpeed),
		Temperature:    b.optional(h, h.Temperature),
	}
	if i < len(d.Sunrise) {
		if sunrise, err := parseForecastTime(d.Sunrise[i], f.UTCOffsetSeconds); err == nil {
			p.Sunrise = sunrise
		}
	}
	if i < len(d.SunshineDuration) {
		p.SunshineDuration = d.SunshineDuration[i]
	}

	p.Scores = ScoreSunset(ScoreInput{
		CloudCover:    p.CloudCover.Interpolate,
		CloudCoverLow: p.CloudCoverLow.Interpolate,
		Visibility:    p.Visibility.Interpolate,
		Humidity:      p.Humidity.Interpolate,
		Pressure:      interpolated(p.Pressure),
		Particulate:   interpolated(p.Particulate),
		Wind:          interpolated(p.Wind),
		Temperature:   interpolated(p.Temperature),
	})
	return p, nil
}

func interpolated(m *InterpolatedMetric) *float64 {
	if m == nil {
		return nil
	}
	v := m.Interpolate
	return &v
}

// valid checks that every required hourly series shares the time index.
func (h HourlySeries) valid() bool {
	n := len(h.Time)
	for _, s := range [][]float64{
		h.RelativeHumidity, h.CloudCover, h.CloudCoverLow, h.CloudCoverMid,
		h.CloudCoverHigh, h.Visibility, h.WeatherCode,
	} {
		if len(s) != n {
			return false
		}
	}
	return true
}
