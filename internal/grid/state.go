package grid

import (
	"github.com/i474232898/sunset-forecast/internal/common"
	"github.com/i474232898/sunset-forecast/internal/weather"
)

// RateLimitMessage is shown while the upstream is rejecting requests.
const RateLimitMessage = weather.RateLimitMessage

// fetchCommand asks the executor to fetch one marker's prediction. The
// generation tags the request so a superseded result can be discarded.
type fetchCommand struct {
	MarkerID   string
	Lat        float64
	Lng        float64
	DayIndex   int
	Generation uint64
}

// fetchResult feeds a completed fetch back into the session.
type fetchResult struct {
	fetchCommand
	Prediction *weather.Prediction
	Err        error
}

type markerState struct {
	marker     Marker
	loading    bool
	generation uint64
	// settled means a result (success or failure) was recorded for the
	// current coordinates and day.
	settled    bool
	prediction *weather.Prediction
}

// session is the viewport state machine. Its methods are synchronous and do
// no I/O; transitions that need data return fetch commands instead.
type session struct {
	cfg      Config
	bounds   *Bounds
	dayIndex int
	order    []string
	markers  map[string]*markerState
	nextGen  uint64

	// limit is shared by every session and the prediction service.
	limit *weather.RateLimit
}

func newSession(cfg Config, limit *weather.RateLimit) *session {
	if limit == nil {
		limit = weather.NewRateLimit()
	}
	return &session{
		cfg:     cfg,
		markers: make(map[string]*markerState),
		limit:   limit,
	}
}

// setBounds regenerates markers. A marker keeps its state when its rounded
// coordinates are unchanged, so scored or in-flight points are not refetched.
// A kept marker whose fetch failed is retried unless rate limited.
func (s *session) setBounds(b Bounds) []fetchCommand {
	s.bounds = &b

	generated := GenerateMarkers(b, s.cfg.Rows, s.cfg.Cols, s.cfg.Padding)
	markers := make(map[string]*markerState, len(generated))
	order := make([]string, 0, len(generated))

	for _, m := range generated {
		order = append(order, m.ID)
		if old, ok := s.markers[m.ID]; ok && sameSpot(old.marker, m) {
			if old.settled && old.prediction == nil && !s.limit.Limited() {
				s.reset(old)
			}
			markers[m.ID] = old
			continue
		}
		markers[m.ID] = &markerState{marker: m}
	}

	s.markers = markers
	s.order = order
	return s.issueFetches()
}

// setDayIndex discards every prediction and refetches all markers for day i.
func (s *session) setDayIndex(i int) []fetchCommand {
	s.dayIndex = i
	for _, st := range s.markers {
		s.reset(st)
	}
	return s.issueFetches()
}

// clearRateLimit lifts the latch and retries every marker without a prediction.
func (s *session) clearRateLimit() []fetchCommand {
	s.limit.Clear()
	for _, st := range s.markers {
		if st.settled && st.prediction == nil {
			s.reset(st)
		}
	}
	return s.issueFetches()
}

// issueFetches marks every idle, unsettled marker loading and returns its
// command. Nothing is issued while rate limited.
func (s *session) issueFetches() []fetchCommand {
	if s.limit.Limited() {
		return nil
	}

	var cmds []fetchCommand
	for _, id := range s.order {
		st := s.markers[id]
		if st.loading || st.settled {
			continue
		}
		s.nextGen++
		st.generation = s.nextGen
		st.loading = true
		cmds = append(cmds, fetchCommand{
			MarkerID:   id,
			Lat:        st.marker.Lat,
			Lng:        st.marker.Lng,
			DayIndex:   s.dayIndex,
			Generation: st.generation,
		})
	}
	return cmds
}

// isCurrent reports whether cmd is still the marker's latest request.
func (s *session) isCurrent(cmd fetchCommand) bool {
	st, ok := s.markers[cmd.MarkerID]
	return ok && st.generation == cmd.Generation && cmd.DayIndex == s.dayIndex
}

// dropCommand abandons a queued command without recording a result, so a
// later retry can issue it again.
func (s *session) dropCommand(cmd fetchCommand) {
	if !s.isCurrent(cmd) {
		return
	}
	s.reset(s.markers[cmd.MarkerID])
}

// applyResult records a fetch outcome and reports whether it was accepted.
// Stale results are ignored. A 429 latches the shared rate limit; any accepted
// success clears it; other failures leave it untouched.
func (s *session) applyResult(r fetchResult) bool {
	if !s.isCurrent(r.fetchCommand) {
		return false
	}

	st := s.markers[r.MarkerID]
	st.loading = false
	st.settled = true

	if r.Err != nil {
		st.prediction = nil
		s.limit.Observe(r.Err)
		return true
	}

	st.prediction = r.Prediction
	s.limit.Clear()
	return true
}

// reset forgets a marker's result and invalidates any in-flight request.
func (s *session) reset(st *markerState) {
	st.loading = false
	st.settled = false
	st.prediction = nil
	st.generation = 0
}

func (s *session) view() View {
	v := View{
		DayIndex:         s.dayIndex,
		Bounds:           s.bounds,
		RateLimited:      s.limit.Limited(),
		RateLimitMessage: s.limit.Message(),
		Markers:          make([]MarkerView, 0, len(s.order)),
	}

	for _, id := range s.order {
		st := s.markers[id]
		mv := MarkerView{Marker: st.marker, Loading: st.loading}
		if st.prediction != nil {
			p := *st.prediction
			score := p.Scores.Score
			mv.Prediction = &p
			mv.Score = &score
		}
		if st.loading {
			v.Loading = true
		}
		v.Markers = append(v.Markers, mv)
	}

	// Show everything until loading settles rather than a partial filter.
	if v.Loading {
		v.Visible = v.Markers
	} else {
		v.Visible = FilterTopScoring(v.Markers, s.cfg.TopScorePercentage)
	}
	return v
}

func sameSpot(a, b Marker) bool {
	return common.CoordKey(a.Lat, a.Lng) == common.CoordKey(b.Lat, b.Lng)
}

// MarkerView is a marker with its loading flag and, once fetched, its
// prediction for the selected day.
type MarkerView struct {
	Marker
	Loading    bool                `json:"loading"`
	Score      *int                `json:"score,omitempty"`
	Prediction *weather.Prediction `json:"prediction,omitempty"`
}

// View is a snapshot of a viewport session.
type View struct {
	DayIndex         int          `json:"dayIndex"`
	Bounds           *Bounds      `json:"bounds,omitempty"`
	Loading          bool         `json:"loading"`
	RateLimited      bool         `json:"rateLimited"`
	RateLimitMessage string       `json:"rateLimitMessage,omitempty"`
	Markers          []MarkerView `json:"markers"`
	Visible          []MarkerView `json:"visible"`
}
