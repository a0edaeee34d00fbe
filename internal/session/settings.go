package session

import (
	"spiralcal/internal/geom"
	"spiralcal/internal/render"
)

// Settings is the persisted form of the view state and display options.
type Settings struct {
	State            geom.SpiralState `json:"state"`
	Stacked          bool             `json:"overlay_stack_mode"`
	UniformThickness bool             `json:"uniform_event_thickness"`
	ColorMode        string           `json:"color_mode"`
	HourLabels       string           `json:"hour_labels"`
	LabelPlacement   string           `json:"hour_label_placement"`
	ShowHourNumbers  bool             `json:"show_hour_numbers"`
}

func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settingsLocked()
}

func (s *Session) settingsLocked() Settings {
	return Settings{
		State:            s.state,
		Stacked:          s.opts.Stacked,
		UniformThickness: s.opts.UniformThickness,
		ColorMode:        s.opts.ColorMode.String(),
		HourLabels:       s.opts.LabelPosition.String(),
		LabelPlacement:   s.opts.LabelPlacement.String(),
		ShowHourNumbers:  s.opts.ShowHourNumbers,
	}
}

// ApplySettings restores persisted settings; the state is clamped.
func (s *Session) ApplySettings(st Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applySettingsLocked(st)
}

// UpdateSettings applies fn to the current settings under the session lock
// and returns the settings as stored.
func (s *Session) UpdateSettings(fn func(Settings) Settings) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applySettingsLocked(fn(s.settingsLocked()))
	return s.settingsLocked()
}

func (s *Session) applySettingsLocked(st Settings) {
	s.state = st.State.Clamp()
	s.opts.Stacked = st.Stacked
	s.opts.UniformThickness = st.UniformThickness
	s.opts.ColorMode = render.ParseColorMode(st.ColorMode)
	s.opts.LabelPosition = geom.ParseHourLabelPosition(st.HourLabels)
	s.opts.LabelPlacement = geom.ParseHourLabelPlacement(st.LabelPlacement)
	s.opts.ShowHourNumbers = st.ShowHourNumbers
}
