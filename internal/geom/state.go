package geom

import (
	"errors"
	"fmt"
	"math"
)

const (
	HoursPerDay  = 24
	TwoPi        = 2 * math.Pi
	SegmentAngle = TwoPi / HoursPerDay

	// InitialRotationOffset is the screen angle (atan2 convention, y down)
	// at which theta 0 is drawn before any canvas rotation.
	InitialRotationOffset = math.Pi / 2

	MinDays     = 2
	MaxDays     = 366
	MinExponent = 0.05
	MinScale    = 0.05
	MaxScale    = 1.0

	// Viewport limits in CSS pixels; the backing store is at most
	// MaxViewportSize*MaxDevicePixelRatio on a side.
	MaxViewportSize     = 8192
	MaxDevicePixelRatio = 4
)

// SpiralState is the mutable view state of one rendering session.
type SpiralState struct {
	Days           int     `json:"days" yaml:"days"`
	SpiralScale    float64 `json:"spiral_scale" yaml:"spiral_scale"`
	RadiusExponent float64 `json:"radius_exponent" yaml:"radius_exponent"`
	Rotation       float64 `json:"rotation" yaml:"-"`
	StaticMode     bool    `json:"static_mode" yaml:"static_mode"`
	CircleMode     bool    `json:"circle_mode" yaml:"circle_mode"`
}

func DefaultState() SpiralState {
	return SpiralState{
		Days:           7,
		SpiralScale:    0.4,
		RadiusExponent: 1,
	}
}

// Clamp enforces the input-boundary constraints (days within [2, 366],
// positive exponent, scale within (0,1]). The core itself never clamps; it degrades
// to empty output on invalid state instead.
func (s SpiralState) Clamp() SpiralState {
	if s.Days < MinDays {
		s.Days = MinDays
	}
	if s.Days > MaxDays {
		s.Days = MaxDays
	}
	if math.IsNaN(s.RadiusExponent) || s.RadiusExponent < MinExponent {
		s.RadiusExponent = MinExponent
	}
	if math.IsNaN(s.SpiralScale) || s.SpiralScale < MinScale {
		s.SpiralScale = MinScale
	}
	if s.SpiralScale > MaxScale {
		s.SpiralScale = MaxScale
	}
	if math.IsNaN(s.Rotation) || math.IsInf(s.Rotation, 0) {
		s.Rotation = 0
	}
	return s
}

func (s SpiralState) ThetaMax() float64 {
	return ThetaMax(s.Days)
}

// Window is the visibility range for the current rotation.
func (s SpiralState) Window() Range {
	return CalculateVisibilityRange(s.Rotation, s.ThetaMax())
}

// RadiusParams freezes the radius function for one frame.
func (s SpiralState) RadiusParams(vp Viewport) RadiusParams {
	return RadiusParams{
		MaxRadius:  vp.MaxRadius(s.SpiralScale),
		ThetaMax:   s.ThetaMax(),
		Exponent:   s.RadiusExponent,
		Rotation:   s.Rotation,
		CircleMode: s.CircleMode,
	}
}

// CanvasRotation is the rotation applied to the drawing surface: a fixed
// 180° flip in static mode, the live rotation otherwise.
func (s SpiralState) CanvasRotation() float64 {
	if s.StaticMode {
		return math.Pi
	}
	return s.Rotation
}

// Viewport describes the canvas in CSS pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// DevicePixelRatio scales CSS pixels to backing-store pixels. Zero means 1.
	DevicePixelRatio float64 `json:"device_pixel_ratio"`

	// PanelOffset is how many CSS pixels of the bottom time-display panel
	// currently overlap the canvas; the spiral center moves up by half of it.
	PanelOffset float64 `json:"panel_offset"`
}

func (v Viewport) DPR() float64 {
	if v.DevicePixelRatio <= 0 || math.IsNaN(v.DevicePixelRatio) {
		return 1
	}
	return math.Min(v.DevicePixelRatio, MaxDevicePixelRatio)
}

// Validate rejects sizes that are not positive and finite or exceed
// MaxViewportSize, and pixel ratios above MaxDevicePixelRatio.
func (v Viewport) Validate() error {
	for _, d := range []float64{v.Width, v.Height} {
		if !(d > 0) || d > MaxViewportSize {
			return fmt.Errorf("geom: viewport size must be within (0, %d]", MaxViewportSize)
		}
	}
	if math.IsNaN(v.DevicePixelRatio) || v.DevicePixelRatio < 0 || v.DevicePixelRatio > MaxDevicePixelRatio {
		return fmt.Errorf("geom: device pixel ratio must be within [0, %d]", MaxDevicePixelRatio)
	}
	if math.IsNaN(v.PanelOffset) || v.PanelOffset < 0 || v.PanelOffset > v.Height {
		return errors.New("geom: panel offset must be within [0, height]")
	}
	return nil
}

// Clamp pulls every field into the range Validate accepts. Non-positive sizes
// become 1.
func (v Viewport) Clamp() Viewport {
	clampSize := func(d float64) float64 {
		if !(d > 0) {
			return 1
		}
		return math.Min(d, MaxViewportSize)
	}
	v.Width, v.Height = clampSize(v.Width), clampSize(v.Height)
	if math.IsNaN(v.DevicePixelRatio) || v.DevicePixelRatio < 0 {
		v.DevicePixelRatio = 0
	}
	v.DevicePixelRatio = math.Min(v.DevicePixelRatio, MaxDevicePixelRatio)
	if math.IsNaN(v.PanelOffset) || v.PanelOffset < 0 {
		v.PanelOffset = 0
	}
	v.PanelOffset = math.Min(v.PanelOffset, v.Height)
	return v
}

// Center returns the spiral origin in device pixels.
func (v Viewport) Center() (float64, float64) {
	dpr := v.DPR()
	return v.Width * dpr / 2, (v.Height - v.PanelOffset) * dpr / 2
}

// MaxRadius is the outer radius in device pixels for the given scale.
func (v Viewport) MaxRadius(scale float64) float64 {
	h := v.Height - v.PanelOffset
	if h < 0 {
		h = 0
	}
	return math.Min(v.Width, h) * v.DPR() * scale
}
