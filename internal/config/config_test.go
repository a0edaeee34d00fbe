package config

import (
	"os"
	"path/filepath"
	"testing"

	"spiralcal/internal/geom"
	"spiralcal/internal/render"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Spiral.Days != 7 || cfg.RefreshCron == "" || cfg.Listen == "" {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestLoad_NormalizesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
listen: ":9000"
timezone: "Nowhere/Invalid"
refresh: "not a cron"
spiral:
  days: 1
  scale: 5
  exponent: -2
  circle_mode: true
  color_mode: calendar
  hour_labels: end
ics:
  - id: work
    url: https://example.com/work.ics
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.Timezone != "UTC" || cfg.RefreshCron != "*/15 * * * *" {
		t.Errorf("top-level = %+v", cfg)
	}
	st := cfg.State()
	if st.Days != geom.MinDays || st.SpiralScale != geom.MaxScale || st.RadiusExponent != geom.MinExponent || !st.CircleMode {
		t.Errorf("state = %+v", st)
	}
	opts := cfg.SessionOptions()
	if opts.ColorMode != render.ColorModeCalendar || opts.LabelPosition != geom.LabelEndAligned {
		t.Errorf("options = %+v", opts)
	}
	if len(cfg.ICS) != 1 || cfg.ICS[0].ID != "work" {
		t.Errorf("ics = %+v", cfg.ICS)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Spiral.Days = 14
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Spiral.Days != 14 || got.BasicAuth == nil || got.BasicAuth.Username != "u" {
		t.Errorf("got %+v", got)
	}
	if got.CaptureTimeout().Seconds() != 30 {
		t.Errorf("capture timeout = %v", got.CaptureTimeout())
	}
}

func TestNormalize_CapsOversizedSpiral(t *testing.T) {
	cfg := &Config{Spiral: SpiralConfig{Days: 100000, Width: 1e6, Height: 50, DevicePixelRatio: 32}}
	cfg.Normalize()

	if cfg.Spiral.Days != geom.MaxDays {
		t.Errorf("days = %d, want %d", cfg.Spiral.Days, geom.MaxDays)
	}
	if cfg.Spiral.Width != geom.MaxViewportSize || cfg.Spiral.Height != 50 {
		t.Errorf("size = %vx%v", cfg.Spiral.Width, cfg.Spiral.Height)
	}
	if cfg.Spiral.DevicePixelRatio != geom.MaxDevicePixelRatio {
		t.Errorf("dpr = %v", cfg.Spiral.DevicePixelRatio)
	}
}
