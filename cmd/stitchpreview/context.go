package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/stitchpreview/internal/composition"
	"github.com/ivlev/stitchpreview/internal/config"
	"github.com/ivlev/stitchpreview/internal/logging"
	"github.com/ivlev/stitchpreview/internal/source"
)

type globalFlags struct {
	config    string
	staticDir string
	manifest  string
	mediaMode string
	logLevel  string
	logFormat string
	progress  string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     zerolog.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the config file once and lays the global flags over it.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		override(&cfg.StaticDir, c.flags.staticDir)
		override(&cfg.Manifest, c.flags.manifest)
		override(&cfg.MediaMode, c.flags.mediaMode)
		override(&cfg.LogLevel, c.flags.logLevel)
		override(&cfg.LogFormat, c.flags.logFormat)
		override(&cfg.ProgressDir, c.flags.progress)
		cfg.Normalize()
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) log() zerolog.Logger {
	c.loggerOnce.Do(func() {
		opts := logging.Options{Out: os.Stderr}
		if cfg, err := c.ensureConfig(); err == nil {
			opts.Level = cfg.LogLevel
			opts.Format = cfg.LogFormat
		}
		c.logger = logging.New(opts)
	})
	return c.logger
}

func (c *commandContext) fetcher() (source.Fetcher, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return source.New(cfg.Manifest, source.Options{
		StaticDir: cfg.StaticDir,
		Timeout:   time.Duration(cfg.FetchTimeout * float64(time.Second)),
		S3Region:  cfg.S3Region,
	})
}

func (c *commandContext) registry() (*composition.Registry, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	reg := composition.NewRegistry()
	if err := reg.Register(composition.FromConfig(cfg)); err != nil {
		return nil, err
	}
	return reg, nil
}

// openInstance starts a session of the configured composition.
func (c *commandContext) openInstance(ctx context.Context) (composition.Composition, *composition.Instance, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return composition.Composition{}, nil, err
	}
	reg, err := c.registry()
	if err != nil {
		return composition.Composition{}, nil, err
	}
	comp, err := reg.Lookup(cfg.CompositionID)
	if err != nil {
		return composition.Composition{}, nil, err
	}
	f, err := c.fetcher()
	if err != nil {
		return composition.Composition{}, nil, fmt.Errorf("manifest source: %w", err)
	}
	inst, err := comp.Open(ctx, f, c.log())
	if err != nil {
		return composition.Composition{}, nil, err
	}
	return comp, inst, nil
}

func override(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}
