package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/stitchpreview/internal/media"
)

const (
	DefaultCompositionID       = "StitchPreview"
	DefaultManifest            = "remotion_input.json"
	DefaultFPS                 = 30
	DefaultWidth               = 1920
	DefaultHeight              = 1080
	DefaultDurationInFrames    = 1200
	DefaultSceneDurationFrames = 120 // 4 seconds at 30 fps
	DefaultAddr                = ":8081"
)

type Config struct {
	CompositionID       string  `yaml:"composition_id" toml:"composition_id"`
	StaticDir           string  `yaml:"static_dir" toml:"static_dir"`
	Manifest            string  `yaml:"manifest" toml:"manifest"`
	MediaMode           string  `yaml:"media_mode" toml:"media_mode"`
	FetchTimeout        float64 `yaml:"fetch_timeout" toml:"fetch_timeout"` // seconds, HTTP transport only
	S3Region            string  `yaml:"s3_region" toml:"s3_region"`
	Width               int     `yaml:"width" toml:"width"`
	Height              int     `yaml:"height" toml:"height"`
	FPS                 int     `yaml:"fps" toml:"fps"`
	DurationInFrames    int     `yaml:"duration_in_frames" toml:"duration_in_frames"`
	SceneDurationFrames int     `yaml:"scene_duration_frames" toml:"scene_duration_frames"`
	OutputVideo         string  `yaml:"output" toml:"output"`
	Workers             int     `yaml:"workers" toml:"workers"`
	VideoEncoder        string  `yaml:"video_encoder" toml:"video_encoder"`
	Quality             int     `yaml:"quality" toml:"quality"`
	Debug               bool    `yaml:"debug" toml:"debug"`
	ShowStats           bool    `yaml:"show_stats" toml:"show_stats"`
	Addr                string  `yaml:"addr" toml:"addr"`
	LogLevel            string  `yaml:"log_level" toml:"log_level"`
	LogFormat           string  `yaml:"log_format" toml:"log_format"`
	ProgressDir         string  `yaml:"progress_dir" toml:"progress_dir"` // empty disables _progress.json
}

// Default returns the configuration of the stock StitchPreview composition.
func Default() *Config {
	return &Config{
		CompositionID:       DefaultCompositionID,
		StaticDir:           "public",
		Manifest:            DefaultManifest,
		MediaMode:           media.ModeStatic,
		FetchTimeout:        10,
		Width:               DefaultWidth,
		Height:              DefaultHeight,
		FPS:                 DefaultFPS,
		DurationInFrames:    DefaultDurationInFrames,
		SceneDurationFrames: DefaultSceneDurationFrames,
		Addr:                DefaultAddr,
		LogLevel:            "info",
		LogFormat:           "auto",
	}
}

// Load reads a YAML or TOML file (chosen by extension) on top of Default.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse toml config %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize fills zero values left by partial config files.
func (c *Config) Normalize() {
	d := Default()
	c.CompositionID = strings.TrimSpace(c.CompositionID)
	if c.CompositionID == "" {
		c.CompositionID = d.CompositionID
	}
	c.Manifest = strings.TrimSpace(c.Manifest)
	if c.Manifest == "" {
		c.Manifest = d.Manifest
	}
	c.MediaMode = strings.ToLower(strings.TrimSpace(c.MediaMode))
	if c.MediaMode == "" {
		c.MediaMode = d.MediaMode
	}
	if c.Width == 0 {
		c.Width = d.Width
	}
	if c.Height == 0 {
		c.Height = d.Height
	}
	if c.FPS == 0 {
		c.FPS = d.FPS
	}
	if c.DurationInFrames == 0 {
		c.DurationInFrames = d.DurationInFrames
	}
	if c.SceneDurationFrames == 0 {
		c.SceneDurationFrames = d.SceneDurationFrames
	}
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	c.ProgressDir = strings.TrimSpace(c.ProgressDir)
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("canvas must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.Width%2 != 0 || c.Height%2 != 0 {
		errs = append(errs, fmt.Errorf("canvas dimensions must be even for yuv420p, got %dx%d", c.Width, c.Height))
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.DurationInFrames <= 0 {
		errs = append(errs, fmt.Errorf("duration_in_frames must be positive, got %d", c.DurationInFrames))
	}
	if c.SceneDurationFrames <= 0 {
		errs = append(errs, fmt.Errorf("scene_duration_frames must be positive, got %d", c.SceneDurationFrames))
	}
	if c.MediaMode != media.ModeStatic && c.MediaMode != media.ModePassthrough {
		errs = append(errs, fmt.Errorf("media_mode must be %q or %q, got %q", media.ModeStatic, media.ModePassthrough, c.MediaMode))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("fetch_timeout must not be negative, got %v", c.FetchTimeout))
	}
	return errors.Join(errs...)
}

// SceneSeconds is the nominal scene length in seconds.
func (c *Config) SceneSeconds() float64 {
	return float64(c.SceneDurationFrames) / float64(c.FPS)
}
