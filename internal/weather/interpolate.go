package weather

import "math"

// Interpolate blends start and end linearly by ratio. The result always lies
// within [min(start,end), max(start,end)].
func Interpolate(start, end, ratio float64) InterpolatedMetric {
	m := InterpolatedMetric{Start: start, End: end}
	switch {
	case ratio <= 0:
		m.Interpolate = start
	case ratio >= 1:
		m.Interpolate = end
	default:
		v := start + (end-start)*ratio
		m.Interpolate = math.Min(math.Max(v, math.Min(start, end)), math.Max(start, end))
	}
	return m
}

// Nearest picks start for ratio <= 0.5 and end otherwise. Used for
// categorical values such as weather codes.
func Nearest(start, end, ratio float64) InterpolatedMetric {
	m := InterpolatedMetric{Start: start, End: end, Interpolate: end}
	if ratio <= 0.5 {
		m.Interpolate = start
	}
	return m
}

// bracket holds the hourly indices on either side of sunset.
type bracket struct {
	start int
	end   int
	ratio float64
}

func (b bracket) linear(series []float64) InterpolatedMetric {
	return Interpolate(series[b.start], series[b.end], b.ratio)
}

func (b bracket) nearest(series []float64) InterpolatedMetric {
	return Nearest(series[b.start], series[b.end], b.ratio)
}

func (b bracket) optional(h HourlySeries, series []float64) *InterpolatedMetric {
	if !h.hasSeries(series) {
		return nil
	}
	m := b.linear(series)
	return &m
}
