package gesture

import (
	"context"
	"math"
	"sync"
	"time"

	"spiralcal/internal/geom"
	appLog "spiralcal/internal/log"
)

// AngleDelta returns cur-prev wrapped into (-π, π], so a drag across the
// atan2 seam is a small step and not a full turn.
func AngleDelta(prev, cur float64) float64 {
	d := math.Mod(cur-prev, geom.TwoPi)
	if d > math.Pi {
		d -= geom.TwoPi
	} else if d <= -math.Pi {
		d += geom.TwoPi
	}
	return d
}

// PointerAngle is the screen angle of a CSS-pixel point around the spiral
// center, in the canvas rotation's convention.
func PointerAngle(x, y float64, vp geom.Viewport) float64 {
	cx, cy := vp.Center()
	dpr := vp.DPR()
	return math.Atan2(y*dpr-cy, x*dpr-cx)
}

// Rotator is what a drag turns. session.Session satisfies it.
type Rotator interface {
	Rotate(delta float64) float64
}

// Config tunes inertia.
type Config struct {
	// Friction is the exponential velocity decay rate per second.
	Friction float64
	// MinVelocity (rad/s) stops the inertia loop.
	MinVelocity float64
	// Tick is the inertia frame interval.
	Tick time.Duration
	// VelocitySmoothing weights the newest sample in the velocity estimate.
	VelocitySmoothing float64
}

func DefaultConfig() Config {
	return Config{
		Friction:          3,
		MinVelocity:       0.05,
		Tick:              16 * time.Millisecond,
		VelocitySmoothing: 0.6,
	}
}

// Tracker turns pointer events into rotation. A new gesture start always
// cancels running inertia.
type Tracker struct {
	cfg    Config
	target Rotator

	mu        sync.Mutex
	dragging  bool
	lastAngle float64
	lastTime  time.Time
	velocity  float64
	cancel    context.CancelFunc
	done      chan struct{}

	pinchDist  float64
	pinchState geom.SpiralState
}

func NewTracker(target Rotator, cfg Config) *Tracker {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultConfig().Tick
	}
	if cfg.VelocitySmoothing <= 0 || cfg.VelocitySmoothing > 1 {
		cfg.VelocitySmoothing = DefaultConfig().VelocitySmoothing
	}
	return &Tracker{cfg: cfg, target: target}
}

func (t *Tracker) DragStart(angle float64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopInertiaLocked()
	t.dragging = true
	t.lastAngle = angle
	t.lastTime = at
	t.velocity = 0
}

// DragMove rotates by the wrapped angle change and returns the delta applied.
func (t *Tracker) DragMove(angle float64, at time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dragging {
		return 0
	}
	delta := AngleDelta(t.lastAngle, angle)
	if dt := at.Sub(t.lastTime).Seconds(); dt > 0 {
		a := t.cfg.VelocitySmoothing
		t.velocity = a*(delta/dt) + (1-a)*t.velocity
	}
	t.lastAngle = angle
	t.lastTime = at
	t.target.Rotate(delta)
	return delta
}

// DragEnd finishes the drag and starts inertia when the release velocity is
// high enough. It reports whether inertia started.
func (t *Tracker) DragEnd(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dragging {
		return false
	}
	t.dragging = false
	if t.cfg.Friction <= 0 || math.Abs(t.velocity) < t.cfg.MinVelocity {
		return false
	}
	t.startInertiaLocked(ctx, t.velocity)
	return true
}

// Velocity is the current release velocity estimate in rad/s.
func (t *Tracker) Velocity() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.velocity
}

func (t *Tracker) Dragging() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dragging
}

// InertiaActive reports whether the inertia loop is still running.
func (t *Tracker) InertiaActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Stop cancels inertia and waits for the loop to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopInertiaLocked()
}

func (t *Tracker) stopInertiaLocked() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	done := t.done
	t.cancel, t.done = nil, nil
	// The loop never takes t.mu, so waiting here cannot deadlock.
	<-done
}

func (t *Tracker) startInertiaLocked(parent context.Context, v float64) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	t.cancel, t.done = cancel, done

	cfg, target := t.cfg, t.target
	go func() {
		defer close(done)
		ticker := time.NewTicker(cfg.Tick)
		defer ticker.Stop()

		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				dt := now.Sub(last).Seconds()
				last = now
				v *= math.Exp(-cfg.Friction * dt)
				if math.Abs(v) < cfg.MinVelocity {
					appLog.Debug("inertia settled")
					return
				}
				target.Rotate(v * dt)
			}
		}
	}()
}

// PinchStart records the finger distance and state a pinch scales from.
func (t *Tracker) PinchStart(dist float64, st geom.SpiralState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopInertiaLocked()
	t.dragging = false
	t.pinchDist = dist
	t.pinchState = st
}

// PinchMove returns the pinch-start state zoomed by dist/startDist.
func (t *Tracker) PinchMove(dist float64) geom.SpiralState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pinchDist <= 0 || dist <= 0 {
		return t.pinchState
	}
	return Zoom(t.pinchState, dist/t.pinchDist)
}

// Zoom scales the spiral size, clamped to the valid scale range.
func Zoom(st geom.SpiralState, factor float64) geom.SpiralState {
	if factor > 0 && !math.IsInf(factor, 0) {
		st.SpiralScale *= factor
	}
	return st.Clamp()
}

// AdjustExponent scales the radius exponent, keeping it positive.
func AdjustExponent(st geom.SpiralState, factor float64) geom.SpiralState {
	if factor > 0 && !math.IsInf(factor, 0) {
		st.RadiusExponent *= factor
	}
	return st.Clamp()
}
