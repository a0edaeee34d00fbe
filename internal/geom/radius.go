package geom

import (
	"errors"
	"math"
)

var (
	ErrInvalidExponent = errors.New("geom: radius exponent must be positive")
	ErrInvalidDomain   = errors.New("geom: theta max must be positive")
)

// boundaryEpsilon snaps day quotients that land within rounding noise of an
// integer, so ring boundaries sit exactly on multiples of 2π.
const boundaryEpsilon = 1e-9

// RadiusParams is the per-frame radius function.
type RadiusParams struct {
	MaxRadius  float64
	ThetaMax   float64
	Exponent   float64
	Rotation   float64
	CircleMode bool
}

// ThetaMax is the spiral domain. It carries one more turn than the nominal
// day count because the visibility window trims exactly one turn.
func ThetaMax(days int) float64 {
	return float64(days) * TwoPi
}

func (p RadiusParams) Validate() error {
	if !(p.Exponent > 0) || math.IsInf(p.Exponent, 0) {
		return ErrInvalidExponent
	}
	if !(p.ThetaMax > 0) {
		return ErrInvalidDomain
	}
	return nil
}

// Days is the number of rings the domain spans.
func (p RadiusParams) Days() float64 {
	return p.ThetaMax / TwoPi
}

// At returns the radius for theta. An invalid exponent yields NaN.
func (p RadiusParams) At(theta float64) float64 {
	return RadiusAt(p, theta)
}

// RadiusAt is the forward radius transform.
//
// Spiral mode grows continuously from the center (t=0) to MaxRadius (t=1).
// Circle mode holds the radius constant per day: the day count is the ceil
// of the turns, so a ring boundary falls exactly on a multiple of 2π.
func RadiusAt(p RadiusParams, theta float64) float64 {
	if !(p.Exponent > 0) || !(p.ThetaMax > 0) {
		return math.NaN()
	}
	adjusted := theta + p.Rotation

	var t float64
	if p.CircleMode {
		turns := snap(adjusted / TwoPi)
		t = math.Ceil(turns) / p.Days()
	} else {
		t = adjusted / p.ThetaMax
	}
	t = clamp01(t)
	return p.MaxRadius * math.Pow(t, p.Exponent)
}

// Band returns the inner and outer radius of the cell drawn at theta for
// the given theta-day. Spiral cells reach one full turn outward; circle
// cells fill their day's ring.
func (p RadiusParams) Band(day int, theta float64) (inner, outer float64) {
	if p.CircleMode {
		return p.At(float64(day) * TwoPi), p.At(float64(day+1) * TwoPi)
	}
	return p.At(theta), p.At(theta + TwoPi)
}

// RadiusAtFraction interpolates inside a cell's band: 0 is the inner edge,
// 1 the outer edge.
func (p RadiusParams) RadiusAtFraction(day int, theta, frac float64) float64 {
	inner, outer := p.Band(day, theta)
	return inner + (outer-inner)*frac
}

func snap(v float64) float64 {
	r := math.Round(v)
	if math.Abs(v-r) < boundaryEpsilon {
		return r
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
