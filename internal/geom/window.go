package geom

// Range is a closed theta interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) Width() float64 {
	return r.Max - r.Min
}

func (r Range) Contains(theta float64) bool {
	return theta >= r.Min && theta <= r.Max
}

// CalculateVisibilityRange returns the thetas mapped onto the canvas.
//
// The span is thetaMax minus one turn so the spiral ends cleanly instead of
// overlapping its own start, and the lower bound looks back one more turn so
// cells collapsing into the center are still enumerated as rotation changes.
func CalculateVisibilityRange(rotation, thetaMax float64) Range {
	extendedRange := thetaMax - TwoPi
	rangeStart := -rotation
	rangeEnd := rangeStart + extendedRange
	return Range{
		Min: rangeStart - TwoPi,
		Max: rangeEnd,
	}
}
