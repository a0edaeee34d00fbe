package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"spiralcal/internal/geom"
	appLog "spiralcal/internal/log"
	"spiralcal/internal/model"
	"spiralcal/internal/session"
)

func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Frame())
}

type hitResponse struct {
	Hit     bool               `json:"hit"`
	Segment *geom.SegmentIndex `json:"segment,omitempty"`
	Theta   float64            `json:"theta,omitempty"`
	Radius  float64            `json:"radius,omitempty"`
	Time    *time.Time         `json:"time,omitempty"`
	Events  []model.Event      `json:"events,omitempty"`
}

// GET /api/hit?x=&y= with CSS pixel coordinates.
func (s *Server) handleHit(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	y, errY := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if errX != nil || errY != nil {
		writeError(w, http.StatusBadRequest, "x and y are required numbers")
		return
	}
	hit, ok := s.sess.HitTest(x, y)
	if !ok {
		writeJSON(w, http.StatusOK, hitResponse{})
		return
	}
	idx := hit.SegmentIndex
	t := s.sess.SegmentTime(idx)
	writeJSON(w, http.StatusOK, hitResponse{
		Hit:     true,
		Segment: &idx,
		Theta:   hit.Theta,
		Radius:  hit.Radius,
		Time:    &t,
		Events:  s.sess.EventsInSegment(idx),
	})
}

type rotateRequest struct {
	Delta *float64   `json:"delta"`
	To    *float64   `json:"to"`
	Time  *time.Time `json:"time"`
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	var req rotateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var rot float64
	switch {
	case req.Time != nil:
		rot = s.sess.RotateToTime(*req.Time)
	case req.To != nil:
		rot = s.sess.SetRotation(*req.To)
	case req.Delta != nil:
		rot = s.sess.Rotate(*req.Delta)
	default:
		writeError(w, http.StatusBadRequest, "one of delta, to or time is required")
		return
	}
	s.saveSettings(r.Context())
	writeJSON(w, http.StatusOK, map[string]float64{"rotation": rot})
}

type stateResponse struct {
	session.Settings
	Viewport  geom.Viewport `json:"viewport"`
	Reference time.Time     `json:"reference"`
}

func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		Settings:  s.sess.Settings(),
		Viewport:  s.sess.Viewport(),
		Reference: s.sess.Reference(),
	})
}

// statePatch updates only the fields that are present.
type statePatch struct {
	Days             *int           `json:"days"`
	SpiralScale      *float64       `json:"spiral_scale"`
	RadiusExponent   *float64       `json:"radius_exponent"`
	Rotation         *float64       `json:"rotation"`
	StaticMode       *bool          `json:"static_mode"`
	CircleMode       *bool          `json:"circle_mode"`
	Stacked          *bool          `json:"overlay_stack_mode"`
	UniformThickness *bool          `json:"uniform_event_thickness"`
	ColorMode        *string        `json:"color_mode"`
	HourLabels       *string        `json:"hour_labels"`
	LabelPlacement   *string        `json:"hour_label_placement"`
	ShowHourNumbers  *bool          `json:"show_hour_numbers"`
	Viewport         *geom.Viewport `json:"viewport"`
	Selected         *bool          `json:"selected"`
}

func (p statePatch) apply(st session.Settings) session.Settings {
	setIf(&st.State.Days, p.Days)
	setIf(&st.State.SpiralScale, p.SpiralScale)
	setIf(&st.State.RadiusExponent, p.RadiusExponent)
	setIf(&st.State.Rotation, p.Rotation)
	setIf(&st.State.StaticMode, p.StaticMode)
	setIf(&st.State.CircleMode, p.CircleMode)
	setIf(&st.Stacked, p.Stacked)
	setIf(&st.UniformThickness, p.UniformThickness)
	setIf(&st.ColorMode, p.ColorMode)
	setIf(&st.HourLabels, p.HourLabels)
	setIf(&st.LabelPlacement, p.LabelPlacement)
	setIf(&st.ShowHourNumbers, p.ShowHourNumbers)
	return st
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (s *Server) handlePatchState(w http.ResponseWriter, r *http.Request) {
	var p statePatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if p.Viewport != nil {
		if err := p.Viewport.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	s.sess.UpdateSettings(p.apply)
	if p.Viewport != nil {
		s.sess.SetViewport(*p.Viewport)
	}
	if p.Selected != nil && !*p.Selected {
		s.sess.ClearSelection()
	}
	s.saveSettings(r.Context())
	s.handleGetState(w, r)
}

// GET /api/segment?day=&segment=
func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	day, errD := strconv.Atoi(r.URL.Query().Get("day"))
	seg, errS := strconv.Atoi(r.URL.Query().Get("segment"))
	if errD != nil || errS != nil || seg < 0 || seg >= geom.HoursPerDay {
		writeError(w, http.StatusBadRequest, "day and segment (0-23) are required")
		return
	}
	writeJSON(w, http.StatusOK, s.sess.SegmentDetail(geom.SegmentIndex{Day: day, Segment: seg}))
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	key := s.renderKey()
	s.svgMu.RLock()
	c := s.svgCache
	s.svgMu.RUnlock()

	var body []byte
	if c != nil && c.key == key {
		body = c.body
	} else {
		var buf bytes.Buffer
		if err := s.sess.RenderSVG(&buf); err != nil {
			appLog.Error("svg render failed", err)
			writeError(w, http.StatusInternalServerError, "render failed")
			return
		}
		body = buf.Bytes()
		s.svgMu.Lock()
		s.svgCache = &svgCache{key: key, body: body}
		s.svgMu.Unlock()
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(body)
}

func (s *Server) handlePNG(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := s.sess.RenderPNG(&buf); err != nil {
		appLog.Error("png render failed", err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// renderKey covers every input of a frame.
func (s *Server) renderKey() string {
	sel, hasSel := s.sess.Selected()
	return fmt.Sprintf("%d|%+v|%+v|%+v|%v", s.sess.EventsVersion(), s.sess.Settings(), s.sess.Viewport(), sel, hasSel)
}
