package session

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"spiralcal/internal/geom"
	"spiralcal/internal/layout"
	appLog "spiralcal/internal/log"
	"spiralcal/internal/model"
	"spiralcal/internal/render"
)

// Options are the display settings that are not part of SpiralState.
type Options struct {
	Stacked          bool
	UniformThickness bool
	ColorMode        render.ColorMode
	LabelPosition    geom.HourLabelPosition
	LabelPlacement   geom.HourLabelPlacement
	ShowHourNumbers  bool
	Location         *time.Location
}

// Persister stores the event list after every mutation.
type Persister interface {
	SaveEvents(ctx context.Context, events []model.Event) error
}

// Session is one rendering session: view state, events, layout cache and
// viewport. All methods are safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	state    geom.SpiralState
	vp       geom.Viewport
	ref      time.Time
	opts     Options
	theme    render.Theme
	events   *model.EventList
	engine   *layout.Engine
	selected *geom.SegmentIndex
	persist  Persister
}

// New creates a session. A nil events list starts empty.
func New(state geom.SpiralState, vp geom.Viewport, ref time.Time, events *model.EventList, opts Options) *Session {
	if events == nil {
		events = model.NewEventList()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Session{
		state:  state.Clamp(),
		vp:     vp.Clamp(),
		ref:    ref,
		opts:   opts,
		theme:  render.DefaultTheme(),
		events: events,
		engine: layout.NewEngine(),
	}
}

func (s *Session) SetPersister(p Persister) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persist = p
}

func (s *Session) Reference() time.Time {
	return s.ref
}

func (s *Session) State() geom.SpiralState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState replaces the view state, clamped at the boundary. Rotation is
// kept from st as given.
func (s *Session) SetState(st geom.SpiralState) geom.SpiralState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st.Clamp()
	return s.state
}

func (s *Session) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

func (s *Session) SetOptions(o Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.Location == nil {
		o.Location = time.UTC
	}
	s.opts = o
}

func (s *Session) Viewport() geom.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vp
}

// SetViewport stores vp clamped to the viewport limits and returns what was
// stored.
func (s *Session) SetViewport(vp geom.Viewport) geom.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vp = vp.Clamp()
	return s.vp
}

// Rotate adds delta radians to the rotation and returns the new value.
func (s *Session) Rotate(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !math.IsNaN(delta) && !math.IsInf(delta, 0) {
		s.state.Rotation += delta
	}
	return s.state.Rotation
}

func (s *Session) SetRotation(to float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Rotation = to
	s.state = s.state.Clamp()
	return s.state.Rotation
}

// RotateToTime turns the spiral so the hour containing t is the outermost
// visible cell, and returns the new rotation.
func (s *Session) RotateToTime(t time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := geom.CellOf(t, s.ref, s.state.Days)
	n := idx.Day*geom.HoursPerDay + idx.Segment
	s.state.Rotation = s.state.ThetaMax() - geom.TwoPi - float64(n+1)*geom.SegmentAngle
	return s.state.Rotation
}

// TimeWindow maps the visible angular window to time, widened to whole
// theta-days so small rotations keep hitting the layout cache.
func (s *Session) TimeWindow() layout.TimeWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeWindowLocked()
}

// ExpansionPadding widens TimeWindow on both sides when recurring calendar
// entries are expanded, so nearby occurrences are ready before they scroll in.
const ExpansionPadding = 30 * 24 * time.Hour

// ExpansionWindow is TimeWindow widened by ExpansionPadding.
func (s *Session) ExpansionWindow() (time.Time, time.Time) {
	tw := s.TimeWindow()
	return tw.Start.Add(-ExpansionPadding), tw.End.Add(ExpansionPadding)
}

func (s *Session) timeWindowLocked() layout.TimeWindow {
	startDay, endDay := geom.DayRange(s.state.Window())
	total := geom.TotalVisibleSegments(s.state.Days)
	// Larger theta is earlier in time.
	return layout.TimeWindow{
		Start: geom.DateTimeOfSegment(total-endDay*geom.HoursPerDay, s.ref),
		End:   geom.DateTimeOfSegment(total-startDay*geom.HoursPerDay, s.ref),
	}
}

// HitTest resolves a click in CSS pixels and selects the hit segment.
func (s *Session) HitTest(x, y float64) (geom.Hit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hit, ok := geom.HitTest(x, y, s.state, s.vp)
	if ok {
		idx := hit.SegmentIndex
		s.selected = &idx
	} else {
		s.selected = nil
	}
	return hit, ok
}

func (s *Session) Selected() (geom.SegmentIndex, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return geom.SegmentIndex{}, false
	}
	return *s.selected, true
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
}

// SegmentTime is the start instant of a cell.
func (s *Session) SegmentTime(idx geom.SegmentIndex) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return geom.SegmentTime(idx.Day, idx.Segment, s.state.Days, s.ref)
}

// Draw renders the current frame onto any surface.
func (s *Session) Draw(surface render.Surface) {
	s.mu.Lock()
	sc := s.frameLocked().Scene
	th := s.theme
	s.mu.Unlock()
	render.Draw(surface, sc, th)
}

func (s *Session) RenderSVG(w io.Writer) error {
	vp := s.Viewport()
	surface := render.NewSVGSurface(vp.Width, vp.Height)
	s.Draw(surface)
	if _, err := surface.WriteTo(w); err != nil {
		return fmt.Errorf("session: write svg: %w", err)
	}
	return nil
}

func (s *Session) RenderPNG(w io.Writer) error {
	vp := s.Viewport()
	surface := render.NewRasterSurface(int(math.Ceil(vp.Width)), int(math.Ceil(vp.Height)), vp.DPR())
	s.Draw(surface)
	if err := surface.EncodePNG(w); err != nil {
		return fmt.Errorf("session: encode png: %w", err)
	}
	return nil
}

func (s *Session) persistLocked() {
	if s.persist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.persist.SaveEvents(ctx, s.events.All()); err != nil {
		appLog.Error("persist events failed", err, "count", s.events.Len())
	}
}
