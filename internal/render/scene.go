package render

import (
	"math"
	"strconv"

	"spiralcal/internal/geom"
)

// maxArcStep bounds the angular step used to flatten arcs into polygons.
const maxArcStep = geom.SegmentAngle / 8

// Cell is a visible hour cell with its precomputed classification.
type Cell struct {
	geom.SegmentDescriptor
	Class geom.Classification
}

// Slice is an event piece placed inside a cell's band.
type Slice struct {
	EventID     string
	Day         int
	ThetaStart  float64
	ThetaEnd    float64
	RadialStart float64
	RadialEnd   float64
	Color       string
}

// Scene is everything needed to draw one frame.
type Scene struct {
	State      geom.SpiralState
	Viewport   geom.Viewport
	Params     geom.RadiusParams
	Cells      []Cell
	Slices     []Slice
	Labels     []geom.HourLabel
	Selected   *geom.SegmentIndex
	ShowLabels bool
}

// MinuteTheta maps a minute offset inside cell d to its angle. Minute 0 sits
// on the cell's raw end edge and minute 60 on its raw start edge.
func MinuteTheta(d geom.SegmentDescriptor, minute float64) float64 {
	return d.RawEndAngle - minute/60*geom.SegmentAngle
}

// SliceSpan returns the clamped angular span of [startMinute, endMinute)
// inside cell d. ok is false when nothing of it is visible.
func SliceSpan(d geom.SegmentDescriptor, startMinute, endMinute float64) (t0, t1 float64, ok bool) {
	t0 = math.Max(MinuteTheta(d, endMinute), d.StartTheta)
	t1 = math.Min(MinuteTheta(d, startMinute), d.EndTheta)
	return t0, t1, t1 > t0
}

// Draw renders the scene back to front: background, cells, events, day
// separators, selection, labels.
func Draw(s Surface, sc Scene, th Theme) {
	w, h := sc.Viewport.Width, sc.Viewport.Height
	s.FillPolygon([]Point{{0, 0}, {w, 0}, {w, h}, {0, h}}, th.Background)

	if sc.Params.Validate() != nil {
		return
	}

	for _, c := range sc.Cells {
		fill := th.DayEven
		if c.Day%2 != 0 {
			fill = th.DayOdd
		}
		pts := bandPolygon(sc, c.Day, c.StartTheta, c.EndTheta, 0, 1)
		s.FillPolygon(pts, fill)
		s.StrokePolyline(closed(pts), th.Grid, th.GridWidth)
	}

	for _, sl := range sc.Slices {
		s.FillPolygon(bandPolygon(sc, sl.Day, sl.ThetaStart, sl.ThetaEnd, sl.RadialStart, sl.RadialEnd), sl.Color)
	}

	for _, c := range sc.Cells {
		if !c.Class.FirstHourOfDay {
			continue
		}
		// Midnight boundary is the cell's raw end edge.
		if c.RawEndAngle > c.EndTheta {
			continue
		}
		stroke, width := th.MidnightLine, th.MidnightWidth
		if c.Class.FirstHourOfMonth {
			stroke, width = th.MonthLine, th.MidnightWidth*1.5
		}
		s.StrokePolyline(radialLine(sc, c.Day, c.RawEndAngle), stroke, width)
	}

	if sc.Selected != nil {
		for _, c := range sc.Cells {
			if c.Index() == *sc.Selected {
				s.StrokePolyline(closed(bandPolygon(sc, c.Day, c.StartTheta, c.EndTheta, 0, 1)), th.MonthLine, th.MidnightWidth)
				break
			}
		}
	}

	if sc.ShowLabels {
		dpr := sc.Viewport.DPR()
		for _, l := range sc.Labels {
			offset := th.LabelSize * 0.9 * dpr
			r := l.Radius + offset
			if r > sc.Params.MaxRadius {
				r = l.Radius - offset
			}
			x, y := geom.PointAt(l.Theta, r, sc.State, sc.Viewport)
			s.Text(Point{x, y}, strconv.Itoa(l.Hour), th.Label, th.LabelSize)
		}
	}
}

// bandPolygon flattens the region between band fractions f0 and f1 over
// [t0, t1] into a polygon in CSS pixels.
func bandPolygon(sc Scene, day int, t0, t1, f0, f1 float64) []Point {
	n := max(1, int(math.Ceil((t1-t0)/maxArcStep)))
	pts := make([]Point, 0, 2*(n+1))
	for i := 0; i <= n; i++ {
		t := t0 + (t1-t0)*float64(i)/float64(n)
		pts = append(pts, point(sc, t, sc.Params.RadiusAtFraction(day, t, f0)))
	}
	for i := n; i >= 0; i-- {
		t := t0 + (t1-t0)*float64(i)/float64(n)
		pts = append(pts, point(sc, t, sc.Params.RadiusAtFraction(day, t, f1)))
	}
	return pts
}

func radialLine(sc Scene, day int, theta float64) []Point {
	inner, outer := sc.Params.Band(day, theta)
	return []Point{point(sc, theta, inner), point(sc, theta, outer)}
}

func point(sc Scene, theta, radius float64) Point {
	x, y := geom.PointAt(theta, radius, sc.State, sc.Viewport)
	return Point{x, y}
}

func closed(pts []Point) []Point {
	if len(pts) == 0 {
		return pts
	}
	return append(pts[:len(pts):len(pts)], pts[0])
}
