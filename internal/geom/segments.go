package geom

import (
	"iter"
	"math"
	"time"
)

// SegmentIndex identifies one hour cell.
type SegmentIndex struct {
	Day     int `json:"day"`
	Segment int `json:"segment"`
}

// SegmentDescriptor is one visible cell, clamped to the visibility window.
type SegmentDescriptor struct {
	Day     int
	Segment int

	// StartTheta/EndTheta are clamped to the window; the raw angles are not.
	StartTheta    float64
	EndTheta      float64
	RawStartAngle float64
	RawEndAngle   float64

	// VisibilityFraction is the visible share of the cell's angular width.
	VisibilityFraction float64
}

func (d SegmentDescriptor) Index() SegmentIndex {
	return SegmentIndex{Day: d.Day, Segment: d.Segment}
}

// MidTheta is the angular midpoint of the visible part.
func (d SegmentDescriptor) MidTheta() float64 {
	return (d.StartTheta + d.EndTheta) / 2
}

// Clamped reports whether the window cut part of the cell.
func (d SegmentDescriptor) Clamped() bool {
	return d.StartTheta > d.RawStartAngle || d.EndTheta < d.RawEndAngle
}

func (d SegmentDescriptor) IsMidnight() bool      { return d.Segment == 23 }
func (d SegmentDescriptor) IsAfterMidnight() bool { return d.Segment == 0 }
func (d SegmentDescriptor) IsNoon() bool          { return d.Segment == 12 }
func (d SegmentDescriptor) IsSixAM() bool         { return d.Segment == 6 }
func (d SegmentDescriptor) IsSixPM() bool         { return d.Segment == 18 }

// Time is the start instant of the cell.
func (d SegmentDescriptor) Time(days int, ref time.Time) time.Time {
	return SegmentTime(d.Day, d.Segment, days, ref)
}

// IsFirstHourOfDay is derived from the UTC date, not the segment index.
func (d SegmentDescriptor) IsFirstHourOfDay(days int, ref time.Time) bool {
	return d.Time(days, ref).UTC().Hour() == 0
}

// IsFirstDayOfMonth reports whether the cell's UTC date is the 1st.
func (d SegmentDescriptor) IsFirstDayOfMonth(days int, ref time.Time) bool {
	return d.Time(days, ref).UTC().Day() == 1
}

// Classification bundles the cell predicates for drawing and JSON output.
type Classification struct {
	Midnight         bool `json:"midnight"`
	AfterMidnight    bool `json:"after_midnight"`
	Noon             bool `json:"noon"`
	SixAM            bool `json:"six_am"`
	SixPM            bool `json:"six_pm"`
	FirstHourOfDay   bool `json:"first_hour_of_day"`
	FirstDayOfMonth  bool `json:"first_day_of_month"`
	FirstHourOfMonth bool `json:"first_hour_of_month"`
}

func (d SegmentDescriptor) Classify(days int, ref time.Time) Classification {
	firstHour := d.IsFirstHourOfDay(days, ref)
	firstDay := d.IsFirstDayOfMonth(days, ref)
	return Classification{
		Midnight:         d.IsMidnight(),
		AfterMidnight:    d.IsAfterMidnight(),
		Noon:             d.IsNoon(),
		SixAM:            d.IsSixAM(),
		SixPM:            d.IsSixPM(),
		FirstHourOfDay:   firstHour,
		FirstDayOfMonth:  firstDay,
		FirstHourOfMonth: firstHour && firstDay,
	}
}

// DayRange returns the theta-days to scan for a window, padded by one day on
// each side so cells at the edges never pop in late.
func DayRange(w Range) (startDay, endDay int) {
	startDay = int(math.Floor(w.Min/TwoPi)) - 1
	endDay = int(math.Ceil(w.Max/TwoPi)) + 1
	return startDay, endDay
}

// EnumerateVisibleSegments yields every cell whose angular span intersects
// the window, in drawing order (day, then segment). Degenerate input (fewer
// than two days, invalid radius params, non-finite window) yields nothing.
func EnumerateVisibleSegments(days int, w Range, p RadiusParams) iter.Seq[SegmentDescriptor] {
	return func(yield func(SegmentDescriptor) bool) {
		if days < MinDays || TotalVisibleSegments(days) <= 0 {
			return
		}
		if p.Validate() != nil || !finite(w.Min) || !finite(w.Max) || w.Max <= w.Min {
			return
		}

		startDay, endDay := DayRange(w)
		for day := startDay; day < endDay; day++ {
			for segment := 0; segment < HoursPerDay; segment++ {
				// Both edges come from the same expression so adjacent cells
				// share an exact boundary.
				n := day*HoursPerDay + segment
				rawStart := float64(n) * SegmentAngle
				rawEnd := float64(n+1) * SegmentAngle

				startTheta := math.Max(rawStart, w.Min)
				endTheta := math.Min(rawEnd, w.Max)
				if endTheta <= startTheta {
					continue
				}

				d := SegmentDescriptor{
					Day:                day,
					Segment:            segment,
					StartTheta:         startTheta,
					EndTheta:           endTheta,
					RawStartAngle:      rawStart,
					RawEndAngle:        rawEnd,
					VisibilityFraction: (endTheta - startTheta) / SegmentAngle,
				}
				if !yield(d) {
					return
				}
			}
		}
	}
}

// VisibleSegments collects EnumerateVisibleSegments into a slice.
func VisibleSegments(days int, w Range, p RadiusParams) []SegmentDescriptor {
	out := make([]SegmentDescriptor, 0, (days+2)*HoursPerDay)
	for d := range EnumerateVisibleSegments(days, w, p) {
		out = append(out, d)
	}
	return out
}

// FindVisibleSegment returns the clamped descriptor of a cell if it is
// currently visible.
func FindVisibleSegment(days int, w Range, p RadiusParams, idx SegmentIndex) (SegmentDescriptor, bool) {
	for d := range EnumerateVisibleSegments(days, w, p) {
		if d.Day == idx.Day && d.Segment == idx.Segment {
			return d, true
		}
	}
	return SegmentDescriptor{}, false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
