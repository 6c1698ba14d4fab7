// Package composition is the host contract: a registered composition with a
// fixed canvas and frame rate, and the per-session instances that hold the
// render until the timeline resolves.
package composition

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ivlev/stitchpreview/internal/config"
	"github.com/ivlev/stitchpreview/internal/resolver"
	"github.com/ivlev/stitchpreview/internal/sequencer"
	"github.com/ivlev/stitchpreview/internal/source"
	"github.com/ivlev/stitchpreview/internal/timeline"
)

// ErrNotReady is returned for frame requests made while an instance is loading.
var ErrNotReady = errors.New("composition is still loading")

type Composition struct {
	ID                  string               `json:"id"`
	FPS                 int                  `json:"fps"`
	Width               int                  `json:"width"`
	Height              int                  `json:"height"`
	DurationInFrames    int                  `json:"duration_in_frames"` // scrubbing bound, not a cap
	SceneDurationFrames int                  `json:"scene_duration_frames"`
	Manifest            string               `json:"manifest"`
	DefaultProps        timeline.Description `json:"default_props"`
}

// FromConfig builds the composition described by the configuration with the
// stock fallback as default props.
func FromConfig(cfg *config.Config) Composition {
	return Composition{
		ID:                  cfg.CompositionID,
		FPS:                 cfg.FPS,
		Width:               cfg.Width,
		Height:              cfg.Height,
		DurationInFrames:    cfg.DurationInFrames,
		SceneDurationFrames: cfg.SceneDurationFrames,
		Manifest:            cfg.Manifest,
		DefaultProps:        timeline.Default(),
	}
}

func (c Composition) Validate() error {
	if c.ID == "" {
		return errors.New("composition id is empty")
	}
	if c.FPS <= 0 || c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("composition %s: invalid canvas %dx%d@%d", c.ID, c.Width, c.Height, c.FPS)
	}
	if c.DurationInFrames <= 0 || c.SceneDurationFrames <= 0 {
		return fmt.Errorf("composition %s: durations must be positive", c.ID)
	}
	if err := c.DefaultProps.Validate(); err != nil {
		return fmt.Errorf("composition %s: default props: %w", c.ID, err)
	}
	return nil
}

func (c Composition) Options() sequencer.Options {
	opts := sequencer.DefaultOptions(c.Width, c.Height, c.SceneDurationFrames)
	if c.Manifest != "" {
		opts.PlaceholderText = fmt.Sprintf("No methods found in %s", c.Manifest)
	}
	return opts
}

// Instance is one render session of a composition. It starts in the loading
// state and moves to ready exactly once.
type Instance struct {
	comp    Composition
	session *resolver.Session

	once   sync.Once
	layout sequencer.Layout
}

// Open starts the timeline resolution for a new session.
func (c Composition) Open(ctx context.Context, fetcher source.Fetcher, logger zerolog.Logger) (*Instance, error) {
	r, err := resolver.New(fetcher, c.DefaultProps, logger.With().Str("composition", c.ID).Logger())
	if err != nil {
		return nil, err
	}
	return &Instance{comp: c, session: r.Resolve(ctx)}, nil
}

func (i *Instance) ID() string {
	return i.session.ID()
}

func (i *Instance) Composition() Composition {
	return i.comp
}

func (i *Instance) State() resolver.State {
	return i.session.State()
}

func (i *Instance) Done() <-chan struct{} {
	return i.session.Done()
}

func (i *Instance) Outcome() (resolver.Outcome, error) {
	return i.session.Outcome()
}

// Wait blocks until the instance is ready and returns its layout.
func (i *Instance) Wait(ctx context.Context) (sequencer.Layout, error) {
	if _, err := i.session.Wait(ctx); err != nil {
		return sequencer.Layout{}, err
	}
	return i.Layout()
}

// Layout returns the sequenced layout, computed once per session.
func (i *Instance) Layout() (sequencer.Layout, error) {
	switch i.session.State() {
	case resolver.StateLoading:
		return sequencer.Layout{}, ErrNotReady
	case resolver.StateAbandoned:
		return sequencer.Layout{}, resolver.ErrAbandoned
	}
	i.once.Do(func() {
		desc, _ := i.session.Wait(context.Background())
		i.layout = sequencer.Sequence(desc, i.comp.Options())
	})
	return i.layout, nil
}

// Frame paints one frame of a ready instance.
func (i *Instance) Frame(frame int) (sequencer.FrameState, error) {
	layout, err := i.Layout()
	if err != nil {
		return sequencer.FrameState{}, err
	}
	return layout.Frame(frame), nil
}

// Timeline returns the resolved timeline of a ready instance.
func (i *Instance) Timeline() (timeline.Description, error) {
	if i.session.State() == resolver.StateLoading {
		return timeline.Description{}, ErrNotReady
	}
	return i.session.Wait(context.Background())
}

// Close abandons a pending resolution. Ready instances are unaffected.
func (i *Instance) Close() {
	i.session.Cancel()
}

// RenderDuration is the frame count an offline render should cover: the
// nominal duration, extended when a track runs longer.
func (c Composition) RenderDuration(layout sequencer.Layout) int {
	return max(c.DurationInFrames, layout.Span())
}
