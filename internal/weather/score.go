package weather

import "math"

// Ideal sky: ~40% total cover with ~15% of it low.
const (
	idealCloudCover    = 40.0
	idealLowCloudCover = 15.0
)

// ScoreInput carries the interpolated values the scoring model reads.
// Optional factors are nil when absent from the forecast.
type ScoreInput struct {
	CloudCover    float64
	CloudCoverLow float64
	Visibility    float64 // metres
	Humidity      float64 // percent

	Pressure    *float64 // hPa
	Particulate *float64 // PM2.5 µg/m³
	Wind        *float64 // km/h
	Temperature *float64 // °C
}

// CloudCoverageFactor scores total cover against the ideal and discounts by
// the low-cloud share, which blocks light near the horizon.
func CloudCoverageFactor(total, low float64) float64 {
	base := 1 - math.Abs(total-idealCloudCover)/100
	if total > 90 || total < 10 {
		base = 0.5
	}

	lowFactor := 1 - math.Abs(low-idealLowCloudCover)/100
	if low > 40 {
		lowFactor = 1 - low/100 + 0.5
	}
	return base * lowFactor
}

func VisibilityFactor(metres float64) float64 {
	switch {
	case metres < 10000:
		return 0.7
	case metres < 20000:
		return 0.9
	default:
		return 1
	}
}

func HumidityFactor(pct float64) float64 {
	switch {
	case pct > 80:
		return 0.7
	case pct > 60:
		return 0.8
	case pct > 40:
		return 0.9
	default:
		return 1
	}
}

func PressureFactor(hpa float64) float64 {
	switch {
	case hpa < 1000:
		return 0.8
	case hpa > 1025:
		return 0.9
	default:
		return 1
	}
}

func ParticulateFactor(pm25 float64) float64 {
	switch {
	case pm25 > 55:
		return 0.7
	case pm25 > 35:
		return 0.8
	case pm25 > 12:
		return 0.9
	default:
		return 1
	}
}

func WindFactor(kmh float64) float64 {
	switch {
	case kmh > 40:
		return 0.8
	case kmh > 25:
		return 0.9
	default:
		return 1
	}
}

func TemperatureFactor(celsius float64) float64 {
	if celsius < -10 || celsius > 35 {
		return 0.9
	}
	return 1
}

// ScoreSunset computes displayed sub-scores and the composite score.
// Only cloud, visibility and humidity are multiplied into Score; pressure,
// particulate, wind and temperature are reported but not weighted.
func ScoreSunset(in ScoreInput) Scores {
	cloud := clamp01(CloudCoverageFactor(in.CloudCover, in.CloudCoverLow))
	vis := VisibilityFactor(in.Visibility)
	hum := HumidityFactor(in.Humidity)

	return Scores{
		CloudCoverage: percent(cloud),
		Visibility:    percent(vis),
		Humidity:      percent(hum),
		Pressure:      optionalPercent(in.Pressure, PressureFactor),
		Particulate:   optionalPercent(in.Particulate, ParticulateFactor),
		Wind:          optionalPercent(in.Wind, WindFactor),
		Temperature:   optionalPercent(in.Temperature, TemperatureFactor),
		Score:         percent(cloud * vis * hum),
	}
}

func optionalPercent(v *float64, factor func(float64) float64) int {
	if v == nil {
		return 100
	}
	return percent(factor(*v))
}

func percent(f float64) int {
	return int(math.Round(clamp01(f) * 100))
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
