package session

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"spiralcal/internal/geom"
	"spiralcal/internal/model"
	"spiralcal/internal/render"
)

var ref = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func newSession(t *testing.T, events ...model.Event) *Session {
	t.Helper()
	vp := geom.Viewport{Width: 800, Height: 600, DevicePixelRatio: 1}
	return New(geom.DefaultState(), vp, ref, model.NewEventList(events...), Options{})
}

func hourEvent(uid string, h, m, dur int) model.Event {
	start := ref.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
	return model.Event{PersistentUID: uid, Title: uid, Start: start, End: start.Add(time.Duration(dur) * time.Minute), Color: "#ff0000"}
}

func findSegment(f Frame, idx geom.SegmentIndex) (FrameSegment, bool) {
	for _, s := range f.Segments {
		if s.SegmentIndex == idx {
			return s, true
		}
	}
	return FrameSegment{}, false
}

type fakePersister struct {
	mu    sync.Mutex
	calls int
	last  []model.Event
}

func (p *fakePersister) SaveEvents(_ context.Context, events []model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.last = events
	return nil
}

func TestSession_TimeWindowCoversVisibleCells(t *testing.T) {
	s := newSession(t)
	for _, rot := range []float64{0, 1.3, -4, 50} {
		s.SetRotation(rot)
		tw := s.TimeWindow()
		for _, seg := range s.Frame().Segments {
			if seg.Time.Before(tw.Start) || !seg.Time.Before(tw.End) {
				t.Fatalf("rotation %v: cell %+v at %v outside window [%v, %v)", rot, seg.SegmentIndex, seg.Time, tw.Start, tw.End)
			}
		}
	}
}

func TestSession_AddEventShowsInNextFrame(t *testing.T) {
	s := newSession(t)
	before := s.EventsVersion()

	ev, err := s.AddEvent(hourEvent("", 10, 0, 60))
	if err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	if ev.PersistentUID == "" {
		t.Fatal("AddEvent should assign a PersistentUID")
	}
	if s.EventsVersion() <= before {
		t.Error("AddEvent must bump the events version")
	}

	f := s.Frame()
	seg, ok := findSegment(f, geom.CellOf(ev.Start, ref, f.State.Days))
	if !ok {
		t.Fatal("event hour is not visible")
	}
	if len(seg.Events) != 1 || seg.Events[0].EventID != ev.PersistentUID {
		t.Fatalf("segment events = %+v", seg.Events)
	}
	if seg.Events[0].RadialStart != 0 || seg.Events[0].RadialEnd != 1 {
		t.Errorf("single event should fill the band, got [%v, %v]", seg.Events[0].RadialStart, seg.Events[0].RadialEnd)
	}
	if len(f.Scene.Slices) != 1 || f.Scene.Slices[0].Color != "#ff0000" {
		t.Errorf("scene slices = %+v", f.Scene.Slices)
	}
}

func TestSession_TwoOverlappingEventsSplitTheBand(t *testing.T) {
	s := newSession(t, hourEvent("a", 10, 0, 60), hourEvent("b", 10, 15, 30))

	f := s.Frame()
	seg, ok := findSegment(f, geom.CellOf(ref.Add(10*time.Hour), ref, f.State.Days))
	if !ok {
		t.Fatal("hour 10 not visible")
	}
	bands := map[string][2]float64{}
	for _, e := range seg.Events {
		bands[e.EventID] = [2]float64{e.RadialStart, e.RadialEnd}
	}
	if bands["a"] != [2]float64{0, 0.5} || bands["b"] != [2]float64{0.5, 1} {
		t.Errorf("bands = %v", bands)
	}
}

func TestSession_UpdateAndDelete(t *testing.T) {
	p := &fakePersister{}
	s := newSession(t, hourEvent("a", 10, 0, 60))
	s.SetPersister(p)

	ev, _ := s.Event("a")
	ev.Title = "renamed"
	if _, err := s.UpdateEvent(ev); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if got, _ := s.Event("a"); got.Title != "renamed" {
		t.Errorf("title = %q", got.Title)
	}

	if err := s.DeleteEvent("a"); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if err := s.DeleteEvent("a"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if p.calls != 2 || len(p.last) != 0 {
		t.Errorf("persister calls=%d last=%d, want 2 and empty", p.calls, len(p.last))
	}
}

func TestSession_EventsInSegmentAndDetail(t *testing.T) {
	s := newSession(t, hourEvent("a", 10, 30, 60), hourEvent("b", 13, 0, 30))

	idx := geom.CellOf(ref.Add(11*time.Hour), ref, s.State().Days)
	got := s.EventsInSegment(idx)
	if len(got) != 1 || got[0].PersistentUID != "a" {
		t.Fatalf("events in 11:00 = %+v", got)
	}

	d := s.SegmentDetail(idx)
	if !d.Start.Equal(ref.Add(11*time.Hour)) || !d.End.Equal(ref.Add(12*time.Hour)) {
		t.Errorf("detail span = [%v, %v)", d.Start, d.End)
	}
	if !d.Visible || len(d.Events) != 1 {
		t.Errorf("detail = %+v", d)
	}
}

func TestSession_RotateToTimePutsHourOnOuterTurn(t *testing.T) {
	s := newSession(t)
	target := ref.Add(3*24*time.Hour + 10*time.Hour + 30*time.Minute)
	s.RotateToTime(target)

	f := s.Frame()
	idx := geom.CellOf(target, ref, f.State.Days)
	n := idx.Day*geom.HoursPerDay + idx.Segment

	seg, ok := findSegment(f, idx)
	if !ok || seg.Visibility < 0.99 {
		t.Fatalf("target cell %+v not fully visible: %+v", idx, seg)
	}
	for _, other := range f.Segments {
		if other.Day*geom.HoursPerDay+other.Segment > n && other.Visibility > 1e-6 {
			t.Errorf("cell %+v lies outside the target", other.SegmentIndex)
		}
	}
}

func TestSession_HitTestSelects(t *testing.T) {
	s := newSession(t)
	st, vp := s.State(), s.Viewport()
	p := st.RadiusParams(vp)

	segs := geom.VisibleSegments(st.Days, st.Window(), p)
	d := segs[len(segs)/2]
	inner, outer := p.Band(d.Day, d.MidTheta())
	x, y := geom.PointAt(d.MidTheta(), (inner+outer)/2, st, vp)

	hit, ok := s.HitTest(x, y)
	if !ok || hit.SegmentIndex != d.Index() {
		t.Fatalf("hit = %+v ok=%v, want %+v", hit, ok, d.Index())
	}
	if sel, ok := s.Selected(); !ok || sel != d.Index() {
		t.Errorf("selected = %+v %v", sel, ok)
	}
	if f := s.Frame(); f.Scene.Selected == nil {
		t.Error("frame should carry the selection")
	}

	if _, ok := s.HitTest(1, 1); ok {
		t.Error("corner click should miss")
	}
	if _, ok := s.Selected(); ok {
		t.Error("a miss clears the selection")
	}
}

func TestSession_LabelsOnlyWhenEnabled(t *testing.T) {
	s := newSession(t)
	if len(s.Frame().Labels) != 0 {
		t.Error("labels should be off by default")
	}
	s.SetOptions(Options{ShowHourNumbers: true, ColorMode: render.ColorModeSeeded})
	labels := s.Frame().Labels
	if len(labels) == 0 || len(labels) > geom.MaxHourLabels {
		t.Errorf("labels = %d", len(labels))
	}
}

func TestSession_RenderSVGAndPNG(t *testing.T) {
	s := newSession(t, hourEvent("a", 10, 0, 60))

	var svg bytes.Buffer
	if err := s.RenderSVG(&svg); err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !strings.Contains(svg.String(), `fill="#ff0000"`) {
		t.Error("svg should contain the event slice")
	}

	var png bytes.Buffer
	if err := s.RenderPNG(&png); err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	if !bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")) {
		t.Error("not a png")
	}
}

func TestSession_RotateIgnoresNonFiniteDelta(t *testing.T) {
	s := newSession(t)
	s.Rotate(1)
	if got := s.Rotate(math.NaN()); got != 1 {
		t.Errorf("rotation = %v, want 1", got)
	}
}

func TestSession_ConcurrentUse(t *testing.T) {
	s := newSession(t, hourEvent("a", 10, 0, 60))
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.Rotate(0.1)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_ = s.Frame()
			}
		}()
		go func(i int) {
			defer wg.Done()
			_, _ = s.AddEvent(hourEvent("", 12+i, 0, 30))
		}(i)
	}
	wg.Wait()
	if got := len(s.Events()); got != 5 {
		t.Errorf("events = %d, want 5", got)
	}
}

func TestSession_SettingsRoundTrip(t *testing.T) {
	s := newSession(t)
	st := s.State()
	st.Days = 1
	st.CircleMode = true
	st.Rotation = 2.5

	s.ApplySettings(Settings{State: st, Stacked: true, ColorMode: "calendar", HourLabels: "end", LabelPlacement: "inside"})
	got := s.Settings()
	if got.State.Days != geom.MinDays || !got.State.CircleMode || got.State.Rotation != 2.5 {
		t.Errorf("state = %+v", got.State)
	}
	if !got.Stacked || got.ColorMode != "calendar" || got.HourLabels != "end" || got.LabelPlacement != "inside" {
		t.Errorf("settings = %+v", got)
	}
	if opts := s.Options(); opts.Location == nil {
		t.Error("options lost their location")
	}
}

func TestSession_UpdateSettingsKeepsConcurrentChanges(t *testing.T) {
	s := newSession(t)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.UpdateSettings(func(st Settings) Settings { st.Stacked = true; return st })
	}()
	go func() {
		defer wg.Done()
		s.UpdateSettings(func(st Settings) Settings { st.ShowHourNumbers = true; return st })
	}()
	wg.Wait()

	got := s.Settings()
	if !got.Stacked || !got.ShowHourNumbers {
		t.Errorf("settings = %+v, want both updates applied", got)
	}
}

func TestSession_EditEventKeepsImportMetadata(t *testing.T) {
	imported := hourEvent("imp", 9, 0, 60)
	imported.Calendar = "work"
	imported.AddedToCalendar = true
	s := newSession(t, imported)

	got, err := s.EditEvent("imp", func(ev model.Event) model.Event {
		ev.Title = "renamed"
		ev.PersistentUID = "hijack"
		return ev
	})
	if err != nil {
		t.Fatalf("EditEvent: %v", err)
	}
	if got.PersistentUID != "imp" || got.Calendar != "work" || !got.AddedToCalendar || got.Title != "renamed" {
		t.Errorf("edited = %+v", got)
	}
	if _, err := s.EditEvent("missing", func(ev model.Event) model.Event { return ev }); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestSession_ViewportIsClamped(t *testing.T) {
	s := newSession(t)
	vp := s.SetViewport(geom.Viewport{Width: 200000, Height: 200000, DevicePixelRatio: 8})
	if vp.Width != geom.MaxViewportSize || vp.Height != geom.MaxViewportSize || vp.DevicePixelRatio != geom.MaxDevicePixelRatio {
		t.Errorf("viewport = %+v", vp)
	}
	if s.Viewport() != vp {
		t.Error("stored viewport differs from the returned one")
	}
}

func TestSession_ExpansionWindowPadsTimeWindow(t *testing.T) {
	s := newSession(t)
	from, to := s.ExpansionWindow()
	tw := s.TimeWindow()
	if tw.Start.Sub(from) != ExpansionPadding || to.Sub(tw.End) != ExpansionPadding {
		t.Errorf("expansion [%v, %v] around [%v, %v]", from, to, tw.Start, tw.End)
	}
}
