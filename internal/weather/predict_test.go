package weather

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testForecast builds a forecast with hours hourly samples starting at
// 2024-06-01T00:00 local time. Every day sets sunset at 18:32 and 10h of
// daylight; required series are flat so scores are easy to derive.
func testForecast(days, hours, offsetSeconds int) Forecast {
	loc := time.FixedZone("", offsetSeconds)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, loc)

	f := Forecast{
		Latitude:         51.5,
		Longitude:        -0.12,
		UTCOffsetSeconds: offsetSeconds,
	}
	for d := 0; d < days; d++ {
		day := start.AddDate(0, 0, d)
		f.Daily.Time = append(f.Daily.Time, day.Format("2006-01-02"))
		f.Daily.Sunrise = append(f.Daily.Sunrise, day.Add(4*time.Hour+43*time.Minute).Format("2006-01-02T15:04"))
		f.Daily.Sunset = append(f.Daily.Sunset, day.Add(18*time.Hour+32*time.Minute).Format("2006-01-02T15:04"))
		f.Daily.DaylightDuration = append(f.Daily.DaylightDuration, 36000)
		f.Daily.SunshineDuration = append(f.Daily.SunshineDuration, 25000)
	}

	h := &f.Hourly
	for i := 0; i < hours; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		h.Time = append(h.Time, ts.Format("2006-01-02T15:04"))
		h.RelativeHumidity = append(h.RelativeHumidity, 85)
		h.CloudCover = append(h.CloudCover, 40)
		h.CloudCoverLow = append(h.CloudCoverLow, 15)
		h.CloudCoverMid = append(h.CloudCoverMid, 10)
		h.CloudCoverHigh = append(h.CloudCoverHigh, 5)
		h.Visibility = append(h.Visibility, 8000)
		code := 3.0
		if ts.Hour() >= 19 {
			code = 61
		}
		h.WeatherCode = append(h.WeatherCode, code)
	}
	return f
}

func TestCalculateSunsetPredictions_GoldenHourScenario(t *testing.T) {
	f := testForecast(1, 48, 0)

	preds := CalculateSunsetPredictions(f)
	require.Len(t, preds, 1)

	p := preds[0]
	sunset := time.Date(2024, 6, 1, 18, 32, 0, 0, time.UTC)
	assert.True(t, p.Sunset.Equal(sunset), "sunset %s", p.Sunset)
	assert.True(t, p.GoldenHour.End.Equal(sunset))
	assert.True(t, p.GoldenHour.Start.Equal(time.Date(2024, 6, 1, 17, 47, 0, 0, time.UTC)), "golden hour start %s", p.GoldenHour.Start)
	assert.Equal(t, 45*time.Minute, GoldenHourDuration(36000))

	assert.Equal(t, "2024-06-01", p.Date)
	assert.True(t, p.Sunrise.Equal(time.Date(2024, 6, 1, 4, 43, 0, 0, time.UTC)))
	assert.Equal(t, 25000.0, p.SunshineDuration)
}

func TestCalculateSunsetPredictions_ScoreScenario(t *testing.T) {
	preds := CalculateSunsetPredictions(testForecast(1, 48, 0))
	require.Len(t, preds, 1)

	s := preds[0].Scores
	assert.Equal(t, 100, s.CloudCoverage)
	assert.Equal(t, 70, s.Visibility)
	assert.Equal(t, 70, s.Humidity)
	assert.Equal(t, 49, s.Score)

	// Absent optional metrics report a neutral sub-score.
	assert.Equal(t, 100, s.Pressure)
	assert.Equal(t, 100, s.Particulate)
	assert.Equal(t, 100, s.Wind)
	assert.Equal(t, 100, s.Temperature)
	assert.Nil(t, preds[0].Pressure)
	assert.Nil(t, preds[0].Particulate)
}

func TestCalculateSunsetPredictions_InterpolatesAtSunsetMinute(t *testing.T) {
	f := testForecast(1, 48, 0)
	f.Hourly.Temperature = make([]float64, len(f.Hourly.Time))
	f.Hourly.Temperature[18] = 20
	f.Hourly.Temperature[19] = 14

	preds := CalculateSunsetPredictions(f)
	require.Len(t, preds, 1)

	temp := preds[0].Temperature
	require.NotNil(t, temp)
	assert.Equal(t, 20.0, temp.Start)
	assert.Equal(t, 14.0, temp.End)
	assert.InDelta(t, 20-6*32.0/60, temp.Interpolate, 1e-9)

	// 32 minutes is past the half hour, so the code snaps to the later hour.
	code := preds[0].WeatherCode
	assert.Equal(t, 3.0, code.Start)
	assert.Equal(t, 61.0, code.End)
	assert.Equal(t, 61.0, code.Interpolate)
}

func TestCalculateSunsetPredictions_Deterministic(t *testing.T) {
	f := testForecast(2, 48, 3600)
	f.Hourly.WindSpeed = make([]float64, len(f.Hourly.Time))
	for i := range f.Hourly.WindSpeed {
		f.Hourly.WindSpeed[i] = float64(i % 50)
	}

	first := CalculateSunsetPredictions(f)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, CalculateSunsetPredictions(f))
	}
}

func TestCalculateSunsetPredictions_DropsDayWithoutBracket(t *testing.T) {
	// Two days of hourly data, three days of daily data: day 3's sunset has
	// no hourly sample.
	f := testForecast(3, 48, 0)

	preds, skipped := BuildSunsetPredictions(f)
	require.Len(t, preds, 2)
	assert.Equal(t, "2024-06-01", preds[0].Date)
	assert.Equal(t, "2024-06-02", preds[1].Date)

	require.Len(t, skipped, 1)
	assert.Equal(t, 2, skipped[0].Index)
	assert.Equal(t, "2024-06-03", skipped[0].Date)
}

func TestCalculateSunsetPredictions_DropsDayAtEndOfSeries(t *testing.T) {
	// Hourly data stops at 18:00 on day one, so there is no closing sample.
	f := testForecast(1, 19, 0)

	preds, skipped := BuildSunsetPredictions(f)
	assert.Empty(t, preds)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].Reason, "no hourly sample after")
}

func TestCalculateSunsetPredictions_UnparseableSunset(t *testing.T) {
	f := testForecast(2, 48, 0)
	f.Daily.Sunset[0] = "not a time"

	preds, skipped := BuildSunsetPredictions(f)
	require.Len(t, preds, 1)
	assert.Equal(t, "2024-06-02", preds[0].Date)
	require.Len(t, skipped, 1)
	assert.Equal(t, 0, skipped[0].Index)
}

func TestCalculateSunsetPredictions_MismatchedHourlySeries(t *testing.T) {
	f := testForecast(2, 48, 0)
	f.Hourly.Visibility = f.Hourly.Visibility[:10]

	preds, skipped := BuildSunsetPredictions(f)
	assert.NotNil(t, preds)
	assert.Empty(t, preds)
	assert.Len(t, skipped, 2)
}

func TestCalculateSunsetPredictions_HalfHourOffset(t *testing.T) {
	// UTC+5:30: local hours still bracket the local sunset.
	f := testForecast(1, 48, 19800)

	preds := CalculateSunsetPredictions(f)
	require.Len(t, preds, 1)

	want := time.Date(2024, 6, 1, 13, 2, 0, 0, time.UTC)
	assert.True(t, preds[0].Sunset.Equal(want), "sunset %s", preds[0].Sunset.UTC())
}

func TestCalculateSunsetPredictions_RFC3339Times(t *testing.T) {
	f := testForecast(1, 48, 0)
	for i, s := range f.Hourly.Time {
		f.Hourly.Time[i] = s + ":00Z"
	}
	f.Daily.Sunset[0] = "2024-06-01T18:32:00Z"

	preds := CalculateSunsetPredictions(f)
	require.Len(t, preds, 1)
	assert.Equal(t, 49, preds[0].Scores.Score)
}

func TestCalculateSunsetPredictions_OptionalSeriesLengthMismatchIgnored(t *testing.T) {
	f := testForecast(1, 48, 0)
	f.Hourly.SurfacePressure = []float64{990, 990}
	f.Hourly.PM25 = make([]float64, len(f.Hourly.Time))
	for i := range f.Hourly.PM25 {
		f.Hourly.PM25[i] = 40
	}

	preds := CalculateSunsetPredictions(f)
	require.Len(t, preds, 1)
	assert.Nil(t, preds[0].Pressure)
	require.NotNil(t, preds[0].Particulate)
	assert.Equal(t, 80, preds[0].Scores.Particulate)
	// Particulate is displayed only; the composite is unchanged.
	assert.Equal(t, 49, preds[0].Scores.Score)
}

func TestCalculateSunsetPredictions_ScoreBounds(t *testing.T) {
	f := testForecast(2, 48, 0)
	h := &f.Hourly
	h.SurfacePressure = make([]float64, len(h.Time))
	h.WindSpeed = make([]float64, len(h.Time))
	h.Temperature = make([]float64, len(h.Time))
	h.PM25 = make([]float64, len(h.Time))
	for i := range h.Time {
		h.CloudCover[i] = float64(i * 7 % 101)
		h.CloudCoverLow[i] = float64(i * 13 % 101)
		h.Visibility[i] = float64(i * 1500)
		h.RelativeHumidity[i] = float64(i * 11 % 101)
		h.SurfacePressure[i] = 980 + float64(i)
		h.WindSpeed[i] = float64(i)
		h.Temperature[i] = -20 + float64(i)
		h.PM25[i] = float64(i * 3)
	}

	preds := CalculateSunsetPredictions(f)
	require.NotEmpty(t, preds)
	for _, p := range preds {
		s := p.Scores
		for name, v := range map[string]int{
			"score":         s.Score,
			"cloudCoverage": s.CloudCoverage,
			"visibility":    s.Visibility,
			"humidity":      s.Humidity,
			"pressure":      s.Pressure,
			"particulate":   s.Particulate,
			"wind":          s.Wind,
			"temperature":   s.Temperature,
		} {
			assert.GreaterOrEqual(t, v, 0, "%s on %s", name, p.Date)
			assert.LessOrEqual(t, v, 100, "%s on %s", name, p.Date)
		}
	}
}

func TestInterpolate_BracketLaw(t *testing.T) {
	cases := []struct{ start, end float64 }{
		{0, 100}, {100, 0}, {-5, 5}, {42, 42}, {1013.2, 998.7},
	}
	for _, c := range cases {
		for _, ratio := range []float64{-0.5, 0, 0.1, 0.5, 0.9, 1, 1.5} {
			t.Run(fmt.Sprintf("%v-%v@%v", c.start, c.end, ratio), func(t *testing.T) {
				m := Interpolate(c.start, c.end, ratio)
				lo, hi := min(c.start, c.end), max(c.start, c.end)
				assert.GreaterOrEqual(t, m.Interpolate, lo)
				assert.LessOrEqual(t, m.Interpolate, hi)
				assert.Equal(t, c.start, m.Start)
				assert.Equal(t, c.end, m.End)
			})
		}
		assert.Equal(t, c.start, Interpolate(c.start, c.end, 0).Interpolate)
		assert.Equal(t, c.end, Interpolate(c.start, c.end, 1).Interpolate)
	}
}

func TestNearest(t *testing.T) {
	assert.Equal(t, 3.0, Nearest(3, 61, 0).Interpolate)
	assert.Equal(t, 3.0, Nearest(3, 61, 0.5).Interpolate)
	assert.Equal(t, 61.0, Nearest(3, 61, 0.51).Interpolate)
	assert.Equal(t, 61.0, Nearest(3, 61, 1).Interpolate)
}
