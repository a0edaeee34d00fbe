package geom

import (
	"math"
	"time"
)

// TotalVisibleSegments is the number of hour cells addressed by segment ids.
func TotalVisibleSegments(days int) int {
	return (days - 1) * HoursPerDay
}

// SegmentIDOf turns a (day, segment) cell into its hour offset from the
// reference time. Larger day/segment means a smaller id.
func SegmentIDOf(day, segment, totalVisibleSegments int) int {
	return totalVisibleSegments - (day*HoursPerDay + segment) - 1
}

// DateTimeOfSegment is the start instant of the segment with the given id.
func DateTimeOfSegment(segmentID int, ref time.Time) time.Time {
	return ref.Add(time.Duration(segmentID) * time.Hour)
}

// SegmentIDOfDateTime converts an instant to an hour offset, rounding toward
// the reference: floor for instants after it, ceil for instants before it.
func SegmentIDOfDateTime(dt, ref time.Time) int {
	hours := dt.Sub(ref).Hours()
	if hours >= 0 {
		return int(math.Floor(hours))
	}
	return int(math.Ceil(hours))
}

// ReferenceFor returns midnight UTC of now's UTC date.
func ReferenceFor(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SegmentTime returns the start of cell (day, segment) for a spiral of the
// given size.
func SegmentTime(day, segment, days int, ref time.Time) time.Time {
	return DateTimeOfSegment(SegmentIDOf(day, segment, TotalVisibleSegments(days)), ref)
}

// CellOf is the inverse of SegmentTime for instants on an hour boundary or
// inside an hour: it returns the cell whose hour contains t.
func CellOf(t, ref time.Time, days int) SegmentIndex {
	id := int(math.Floor(t.Sub(ref).Hours()))
	n := TotalVisibleSegments(days) - id - 1
	day := floorDiv(n, HoursPerDay)
	return SegmentIndex{Day: day, Segment: n - day*HoursPerDay}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
