package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"spiralcal/internal/geom"
	"spiralcal/internal/ics"
	appLog "spiralcal/internal/log"
	"spiralcal/internal/render"
	"spiralcal/internal/session"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// SpiralConfig is the initial view state and display options.
type SpiralConfig struct {
	Days             int     `yaml:"days" json:"days"`
	Scale            float64 `yaml:"scale" json:"scale"`
	Exponent         float64 `yaml:"exponent" json:"exponent"`
	StaticMode       bool    `yaml:"static_mode" json:"static_mode"`
	CircleMode       bool    `yaml:"circle_mode" json:"circle_mode"`
	OverlayStackMode bool    `yaml:"overlay_stack_mode" json:"overlay_stack_mode"`
	UniformThickness bool    `yaml:"uniform_event_thickness" json:"uniform_event_thickness"`
	ColorMode        string  `yaml:"color_mode" json:"color_mode"`
	HourLabels       string  `yaml:"hour_labels" json:"hour_labels"`
	LabelPlacement   string  `yaml:"hour_label_placement" json:"hour_label_placement"`
	ShowHourNumbers  bool    `yaml:"show_hour_numbers" json:"show_hour_numbers"`
	Width            float64 `yaml:"width" json:"width"`
	Height           float64 `yaml:"height" json:"height"`
	DevicePixelRatio float64 `yaml:"device_pixel_ratio" json:"device_pixel_ratio"`
}

// CaptureConfig controls the headless Chromium snapshot.
type CaptureConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Output  string `yaml:"output" json:"output"`
	Timeout string `yaml:"timeout" json:"timeout"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone hour labels are shown in.
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// DBPath is the SQLite file holding events and settings.
	DBPath string `yaml:"db_path" json:"db_path"`

	// CacheDir holds the ICS download cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// RefreshCron is the ICS refresh schedule (standard 5-field cron).
	RefreshCron string `yaml:"refresh" json:"refresh"`

	ICS []ics.Source `yaml:"ics" json:"ics"`

	Spiral  SpiralConfig  `yaml:"spiral" json:"spiral"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills zero values with defaults and clamps the spiral settings
// at the input boundary.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		appLog.Warn("unknown timezone, using UTC", "timezone", c.Timezone)
		c.Timezone = "UTC"
	}
	c.LogLevel = string(appLog.ParseLevel(c.LogLevel))
	if c.DBPath == "" {
		c.DBPath = "./var/spiralcal.db"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/ics-cache"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		appLog.Warn("invalid refresh schedule, using default", "refresh", c.RefreshCron)
		c.RefreshCron = "*/15 * * * *"
	}
	if c.ICS == nil {
		c.ICS = []ics.Source{}
	}

	def := geom.DefaultState()
	s := &c.Spiral
	if s.Days == 0 {
		s.Days = def.Days
	}
	if s.Scale == 0 {
		s.Scale = def.SpiralScale
	}
	if s.Exponent == 0 {
		s.Exponent = def.RadiusExponent
	}
	clamped := c.State()
	s.Days, s.Scale, s.Exponent = clamped.Days, clamped.SpiralScale, clamped.RadiusExponent

	s.ColorMode = render.ParseColorMode(s.ColorMode).String()
	s.HourLabels = geom.ParseHourLabelPosition(s.HourLabels).String()
	s.LabelPlacement = geom.ParseHourLabelPlacement(s.LabelPlacement).String()
	if s.Width <= 0 {
		s.Width = 800
	}
	if s.Height <= 0 {
		s.Height = 600
	}
	if s.DevicePixelRatio <= 0 {
		s.DevicePixelRatio = 1
	}
	vp := c.Viewport().Clamp()
	s.Width, s.Height, s.DevicePixelRatio = vp.Width, vp.Height, vp.DevicePixelRatio

	if c.Capture.Output == "" {
		c.Capture.Output = "./var/spiral.png"
	}
	if d, err := time.ParseDuration(c.Capture.Timeout); err != nil || d <= 0 {
		c.Capture.Timeout = "30s"
	}
}

// State is the initial SpiralState described by the config.
func (c *Config) State() geom.SpiralState {
	return geom.SpiralState{
		Days:           c.Spiral.Days,
		SpiralScale:    c.Spiral.Scale,
		RadiusExponent: c.Spiral.Exponent,
		StaticMode:     c.Spiral.StaticMode,
		CircleMode:     c.Spiral.CircleMode,
	}.Clamp()
}

func (c *Config) Viewport() geom.Viewport {
	return geom.Viewport{
		Width:            c.Spiral.Width,
		Height:           c.Spiral.Height,
		DevicePixelRatio: c.Spiral.DevicePixelRatio,
	}
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SessionOptions maps the display settings onto session options.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		Stacked:          c.Spiral.OverlayStackMode,
		UniformThickness: c.Spiral.UniformThickness,
		ColorMode:        render.ParseColorMode(c.Spiral.ColorMode),
		LabelPosition:    geom.ParseHourLabelPosition(c.Spiral.HourLabels),
		LabelPlacement:   geom.ParseHourLabelPlacement(c.Spiral.LabelPlacement),
		ShowHourNumbers:  c.Spiral.ShowHourNumbers,
		Location:         c.Location(),
	}
}

func (c *Config) CaptureTimeout() time.Duration {
	d, err := time.ParseDuration(c.Capture.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Load reads the YAML config at path. On first run it writes the defaults
// (0600) and returns them.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".spiralcal-config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("config: rename: %w", err)
	}
	return nil
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
