package geom

import "math"

// PointAt is the forward canvas transform: it places (theta, radius) on the
// canvas and returns CSS pixel coordinates. The drawing layer and the hit
// tester both go through this pair, which keeps them in lockstep.
func PointAt(theta, radius float64, s SpiralState, vp Viewport) (float64, float64) {
	a := InitialRotationOffset - theta
	lx := radius * math.Cos(a)
	ly := radius * math.Sin(a)

	rho := s.CanvasRotation()
	sin, cos := math.Sincos(rho)
	dx := lx*cos - ly*sin
	dy := lx*sin + ly*cos

	cx, cy := vp.Center()
	dpr := vp.DPR()
	return (cx + dx) / dpr, (cy + dy) / dpr
}

// ToPolar inverts PointAt up to the 2π ambiguity of theta: it returns the
// radius in device pixels and the angle normalized to [0, 2π).
func ToPolar(x, y float64, s SpiralState, vp Viewport) (radius, angle float64) {
	dpr := vp.DPR()
	cx, cy := vp.Center()
	px := x*dpr - cx
	py := y*dpr - cy

	var lx, ly float64
	if s.StaticMode {
		lx, ly = -px, -py
	} else {
		sin, cos := math.Sincos(s.Rotation)
		lx = px*cos + py*sin
		ly = -px*sin + py*cos
	}

	radius = math.Hypot(lx, ly)
	angle = NormalizeAngle(-(math.Atan2(ly, lx) - InitialRotationOffset))
	return radius, angle
}

// NormalizeAngle maps a into [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, TwoPi)
	if a < 0 {
		a += TwoPi
	}
	if a >= TwoPi {
		a = 0
	}
	return a
}

// ThetaInSpan lifts a modular angle into [start, end) by whole turns.
func ThetaInSpan(angle, start, end float64) (float64, bool) {
	theta := angle + TwoPi*math.Ceil((start-angle)/TwoPi)
	for theta < start {
		theta += TwoPi
	}
	for theta-TwoPi >= start {
		theta -= TwoPi
	}
	if theta < end {
		return theta, true
	}
	return 0, false
}

// Hit is a resolved pointer position.
type Hit struct {
	SegmentIndex
	Theta  float64
	Radius float64
}

// FindSegmentAtPoint resolves canvas CSS coordinates to the cell under them.
// It returns false when the pointer is off all content or the state is
// degenerate.
func FindSegmentAtPoint(x, y float64, s SpiralState, vp Viewport) (SegmentIndex, bool) {
	h, ok := HitTest(x, y, s, vp)
	return h.SegmentIndex, ok
}

// HitTest is FindSegmentAtPoint plus the recovered theta and radius.
func HitTest(x, y float64, s SpiralState, vp Viewport) (Hit, bool) {
	p := s.RadiusParams(vp)
	if p.Validate() != nil || s.Days < MinDays || !finite(x) || !finite(y) {
		return Hit{}, false
	}
	radius, angle := ToPolar(x, y, s, vp)
	w := s.Window()

	if s.CircleMode {
		return hitCircle(radius, angle, s.Days, w, p)
	}
	return hitSpiral(radius, angle, s.Days, w, p)
}

func hitCircle(radius, angle float64, days int, w Range, p RadiusParams) (Hit, bool) {
	for d := range EnumerateVisibleSegments(days, w, p) {
		inner, outer := p.Band(d.Day, d.StartTheta)
		if !(radius >= inner && radius < outer) {
			continue
		}
		theta, ok := ThetaInSpan(angle, d.StartTheta, d.EndTheta)
		if !ok {
			continue
		}
		return Hit{SegmentIndex: d.Index(), Theta: theta, Radius: radius}, true
	}
	return Hit{}, false
}

func hitSpiral(radius, angle float64, days int, w Range, p RadiusParams) (Hit, bool) {
	for d := range EnumerateVisibleSegments(days, w, p) {
		theta, ok := ThetaInSpan(angle, d.StartTheta, d.EndTheta)
		if !ok {
			continue
		}
		// Coarse bracket over the whole cell before the exact test.
		if radius < p.At(d.StartTheta) || radius > p.At(d.EndTheta+TwoPi) {
			continue
		}
		inner, outer := p.Band(d.Day, theta)
		if radius >= inner && radius < outer {
			return Hit{SegmentIndex: d.Index(), Theta: theta, Radius: radius}, true
		}
	}
	return Hit{}, false
}
