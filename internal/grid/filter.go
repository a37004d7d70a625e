package grid

import (
	"math"
	"sort"
)

// FilterTopScoring keeps the top pct percent of scored markers. The cutoff
// is the score of the last marker inside the top count after a descending
// sort, and every marker at or above it is kept, so ties can exceed the
// nominal count. Unscored markers are dropped. Grid order is preserved.
func FilterTopScoring(markers []MarkerView, pct float64) []MarkerView {
	scores := make([]int, 0, len(markers))
	for _, m := range markers {
		if m.Score != nil {
			scores = append(scores, *m.Score)
		}
	}
	if len(scores) == 0 {
		return []MarkerView{}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(scores)))

	// The epsilon keeps float error from pushing a whole n*pct/100 up by one.
	top := int(math.Ceil(float64(len(scores))*pct/100 - 1e-9))
	if top < 1 {
		top = 1
	}
	if top > len(scores) {
		top = len(scores)
	}
	minScore := scores[top-1]

	out := make([]MarkerView, 0, top)
	for _, m := range markers {
		if m.Score != nil && *m.Score >= minScore {
			out = append(out, m)
		}
	}
	return out
}
