package session

import (
	"time"

	"spiralcal/internal/geom"
	"spiralcal/internal/layout"
	"spiralcal/internal/render"
)

// Frame is one computed frame: the drawable scene plus its JSON view.
type Frame struct {
	Scene render.Scene `json:"-"`

	State         geom.SpiralState `json:"state"`
	Viewport      geom.Viewport    `json:"viewport"`
	Window        geom.Range       `json:"window"`
	Start         time.Time        `json:"start"`
	End           time.Time        `json:"end"`
	EventsVersion uint64           `json:"events_version"`
	Segments      []FrameSegment   `json:"segments"`
	Labels        []geom.HourLabel `json:"labels,omitempty"`
}

type FrameSegment struct {
	geom.SegmentIndex
	Time       time.Time           `json:"time"`
	StartTheta float64             `json:"start_theta"`
	EndTheta   float64             `json:"end_theta"`
	Visibility float64             `json:"visibility"`
	Class      geom.Classification `json:"class"`
	Events     []FrameSlice        `json:"events,omitempty"`
}

type FrameSlice struct {
	EventID     string  `json:"event_id"`
	Title       string  `json:"title"`
	Lane        int     `json:"lane"`
	StartMinute float64 `json:"start_minute"`
	EndMinute   float64 `json:"end_minute"`
	RadialStart float64 `json:"radial_start"`
	RadialEnd   float64 `json:"radial_end"`
	Color       string  `json:"color"`
}

// Frame computes the current frame (drawSpiral without the drawing).
func (s *Session) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

func (s *Session) frameLocked() Frame {
	st := s.state
	days := st.Days
	w := st.Window()
	p := st.RadiusParams(s.vp)
	tw := s.timeWindowLocked()

	f := Frame{
		State:         st,
		Viewport:      s.vp,
		Window:        w,
		Start:         tw.Start,
		End:           tw.End,
		EventsVersion: s.events.Version(),
	}
	sc := render.Scene{
		State:      st,
		Viewport:   s.vp,
		Params:     p,
		ShowLabels: s.opts.ShowHourNumbers,
	}
	if s.selected != nil {
		sel := *s.selected
		sc.Selected = &sel
	}

	segs := geom.VisibleSegments(days, w, p)
	cache := s.engine.Ensure(tw, s.events)
	opts := layout.Options{Stacked: s.opts.Stacked, UniformThickness: s.opts.UniformThickness}

	titles := make(map[string]string, len(cache.Events()))
	colors := make(map[string]string, len(cache.Events()))
	for _, ev := range cache.Events() {
		titles[ev.PersistentUID] = ev.Title
		colors[ev.PersistentUID] = render.DisplayColor(s.opts.ColorMode, ev)
	}

	for _, d := range segs {
		class := d.Classify(days, s.ref)
		sc.Cells = append(sc.Cells, render.Cell{SegmentDescriptor: d, Class: class})
		fs := FrameSegment{
			SegmentIndex: d.Index(),
			Time:         d.Time(days, s.ref),
			StartTheta:   d.StartTheta,
			EndTheta:     d.EndTheta,
			Visibility:   d.VisibilityFraction,
			Class:        class,
		}

		hevs, lanes := cache.HourLayout(fs.Time)
		for _, sl := range cache.Slices(hevs, lanes, opts) {
			t0, t1, ok := render.SliceSpan(d, sl.StartMinute, sl.EndMinute)
			if !ok {
				continue
			}
			color := colors[sl.EventID]
			sc.Slices = append(sc.Slices, render.Slice{
				EventID:     sl.EventID,
				Day:         d.Day,
				ThetaStart:  t0,
				ThetaEnd:    t1,
				RadialStart: sl.RadialStart,
				RadialEnd:   sl.RadialEnd,
				Color:       color,
			})
			fs.Events = append(fs.Events, FrameSlice{
				EventID:     sl.EventID,
				Title:       titles[sl.EventID],
				Lane:        sl.Lane,
				StartMinute: sl.StartMinute,
				EndMinute:   sl.EndMinute,
				RadialStart: sl.RadialStart,
				RadialEnd:   sl.RadialEnd,
				Color:       color,
			})
		}
		f.Segments = append(f.Segments, fs)
	}

	if s.opts.ShowHourNumbers {
		sc.Labels = geom.SelectHourLabels(segs, p, s.opts.LabelPlacement, s.opts.LabelPosition, days, s.ref, s.opts.Location)
		f.Labels = sc.Labels
	}
	f.Scene = sc
	return f
}
