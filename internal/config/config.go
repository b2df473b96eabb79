// Package config holds the YAML application configuration, including
// first-run config creation and atomic 0600 saves.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"babyriver/internal/curve"
	"babyriver/internal/feed"
	"babyriver/internal/window"
)

// SourceConfig describes a single remote event source.
type SourceConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// URL is the feed endpoint.
	URL string `yaml:"url" json:"url"`
	// Kind is "json" (tracker export, default) or "ics" (calendar import).
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CurveConfig shapes the river path.
type CurveConfig struct {
	CenterX       float64 `yaml:"center_x" json:"center_x"`
	Amplitude     float64 `yaml:"amplitude" json:"amplitude"`
	HourHeight    float64 `yaml:"hour_height" json:"hour_height"`
	DaySeparator  float64 `yaml:"day_separator" json:"day_separator"`
	ZeroCrossings int     `yaml:"zero_crossings" json:"zero_crossings"`
}

// WindowConfig tunes the virtualized day window.
type WindowConfig struct {
	BufferDays        int     `yaml:"buffer_days" json:"buffer_days"`
	BatchSize         int     `yaml:"batch_size" json:"batch_size"`
	MaxDays           int     `yaml:"max_days" json:"max_days"`
	ScrollThresholdPx float64 `yaml:"scroll_threshold_px" json:"scroll_threshold_px"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA display timezone; "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron schedules periodic feed refresh (e.g. "*/10 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir is where the feed fetcher keeps its conditional-request cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Sources lists the remote event sources.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// Schedules lists recurring planned care activities.
	Schedules []feed.Schedule `yaml:"schedules" json:"schedules"`

	Curve  CurveConfig  `yaml:"curve" json:"curve"`
	Window WindowConfig `yaml:"window" json:"window"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Local",
		RefreshCron: "*/10 * * * *",
		CacheDir:    "./var/feed-cache",
		Sources:     []SourceConfig{},
		Schedules:   []feed.Schedule{},
		Curve: CurveConfig{
			CenterX:       210,
			Amplitude:     120,
			HourHeight:    40,
			DaySeparator:  24,
			ZeroCrossings: 2,
		},
		Window: WindowConfig{
			BufferDays:        10,
			BatchSize:         3,
			MaxDays:           21,
			ScrollThresholdPx: 600,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing or zero values so partially-filled configs
// from older versions still behave.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	if c.Schedules == nil {
		c.Schedules = []feed.Schedule{}
	}
	if c.Curve.CenterX <= 0 {
		c.Curve.CenterX = d.Curve.CenterX
	}
	if c.Curve.Amplitude <= 0 {
		c.Curve.Amplitude = d.Curve.Amplitude
	}
	if c.Curve.HourHeight <= 0 {
		c.Curve.HourHeight = d.Curve.HourHeight
	}
	if c.Curve.DaySeparator < 0 {
		c.Curve.DaySeparator = d.Curve.DaySeparator
	}
	if c.Curve.ZeroCrossings < 1 || c.Curve.ZeroCrossings > 4 {
		c.Curve.ZeroCrossings = d.Curve.ZeroCrossings
	}
	if c.Window.BufferDays <= 0 {
		c.Window.BufferDays = d.Window.BufferDays
	}
	if c.Window.BatchSize <= 0 {
		c.Window.BatchSize = d.Window.BatchSize
	}
	if c.Window.MaxDays <= 0 {
		c.Window.MaxDays = d.Window.MaxDays
	}
	if c.Window.ScrollThresholdPx <= 0 {
		c.Window.ScrollThresholdPx = d.Window.ScrollThresholdPx
	}
}

// Geometry converts the curve section into the engine's geometry.
func (c *Config) Geometry() curve.Geometry {
	return curve.Geometry{
		CenterX:       c.Curve.CenterX,
		Amplitude:     c.Curve.Amplitude,
		HourHeight:    c.Curve.HourHeight,
		DaySeparator:  c.Curve.DaySeparator,
		ZeroCrossings: c.Curve.ZeroCrossings,
	}
}

// WindowPolicy converts the window section into the manager's policy. Day
// and separator heights derive from the curve geometry so the two sections
// cannot drift apart.
func (c *Config) WindowPolicy() window.Policy {
	g := c.Geometry()
	return window.Policy{
		BufferDays:        c.Window.BufferDays,
		BatchSize:         c.Window.BatchSize,
		MaxDays:           c.Window.MaxDays,
		ScrollThresholdPx: c.Window.ScrollThresholdPx,
		DayHeight:         g.DayHeight(),
		SeparatorHeight:   g.DaySeparator,
	}
}

// FeedSources converts the sources section for the fetcher.
func (c *Config) FeedSources() []feed.Source {
	out := make([]feed.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		kind := feed.SourceKind(s.Kind)
		if kind == "" {
			kind = feed.KindJSON
		}
		out = append(out, feed.Source{ID: s.ID, URL: s.URL, Kind: kind})
	}
	return out
}

// Location resolves the configured timezone, falling back to the host zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (creating
// the parent directory) and returned; an existing file is unmarshaled and
// normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically: temp file in the same
// directory, fsync, chmod 0600, rename over the target.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".babyriver-config-*.tmp")
	if err != nil {
		return err
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
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save so handler code reads nicely:
//
//	cfg, _ := config.Load(path)
//	// ... mutate cfg ...
//	if err := cfg.Save(path); err != nil { ... }
func (c *Config) Save(path string) error {
	return Save(path, c)
}
