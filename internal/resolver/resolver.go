// Package resolver obtains the timeline for a composition session. It makes
// exactly one retrieval attempt and falls back to the caller's description on
// any failure, holding the host's render handle until the outcome is known.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ivlev/stitchpreview/internal/source"
	"github.com/ivlev/stitchpreview/internal/timeline"
)

type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeRetrieved
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRetrieved:
		return "retrieved"
	case OutcomeFallback:
		return "fallback"
	default:
		return "pending"
	}
}

type State int

const (
	StateLoading State = iota
	StateReady
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateAbandoned:
		return "abandoned"
	default:
		return "loading"
	}
}

type Resolver struct {
	fetcher  source.Fetcher
	fallback timeline.Description
	logger   zerolog.Logger
}

// New validates the fallback up front: a fallback that breaks the timeline
// invariants would poison every failed session.
func New(fetcher source.Fetcher, fallback timeline.Description, logger zerolog.Logger) (*Resolver, error) {
	if fetcher == nil {
		return nil, errors.New("resolver needs a manifest fetcher")
	}
	if err := fallback.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fallback: %w", err)
	}
	return &Resolver{fetcher: fetcher, fallback: fallback.Clone(), logger: logger}, nil
}

// Session is one composition instance's resolution. It behaves as a future:
// loading until the single retrieval settles, then ready for good.
type Session struct {
	id     string
	handle *RenderHandle
	cancel context.CancelFunc

	// Written once before handle.Continue, read only after it.
	result  timeline.Description
	outcome Outcome
	cause   error
}

// Resolve takes the render handle and starts the retrieval. Cancelling ctx
// or calling Session.Cancel abandons it without resuming the host.
func (r *Resolver) Resolve(ctx context.Context) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:     uuid.NewString(),
		handle: DelayRender(),
		cancel: cancel,
	}
	go s.run(ctx, r)
	return s
}

func (s *Session) run(ctx context.Context, r *Resolver) {
	defer s.cancel()
	logger := r.logger.With().Str("session", s.id).Str("manifest", r.fetcher.Location()).Logger()

	payload, err := r.fetcher.Fetch(ctx)
	if ctx.Err() != nil {
		if s.handle.Abandon() {
			logger.Debug().Msg("session torn down before the manifest resolved")
		}
		return
	}

	desc, outcome, cause := r.settle(payload, err)
	switch outcome {
	case OutcomeRetrieved:
		logger.Info().
			Str("story_id", desc.StoryID).
			Int("tracks", len(desc.Tracks)).
			Int("scenes", desc.SceneCount()).
			Msg("manifest resolved")
	case OutcomeFallback:
		event := logger.Warn()
		if errors.Is(cause, source.ErrNotFound) {
			event = logger.Info()
		}
		event.Err(cause).Str("story_id", desc.StoryID).Msg("manifest unavailable, using fallback")
	}

	s.result = desc
	s.outcome = outcome
	s.cause = cause
	s.handle.Continue()
}

// settle turns one retrieval into a timeline. Retrieved and fallback data are
// never merged.
func (r *Resolver) settle(payload []byte, fetchErr error) (timeline.Description, Outcome, error) {
	if fetchErr != nil {
		return r.fallback.Clone(), OutcomeFallback, fetchErr
	}
	desc, err := timeline.Decode(payload)
	if err != nil {
		return r.fallback.Clone(), OutcomeFallback, err
	}
	return desc, OutcomeRetrieved, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	select {
	case <-s.handle.Released():
		if s.handle.Continued() {
			return StateReady
		}
		return StateAbandoned
	default:
		return StateLoading
	}
}

// Done is closed when the session becomes ready or is abandoned.
func (s *Session) Done() <-chan struct{} {
	return s.handle.Released()
}

// Wait blocks until the session resolves. The returned description is a copy.
func (s *Session) Wait(ctx context.Context) (timeline.Description, error) {
	select {
	case <-s.handle.Released():
	case <-ctx.Done():
		return timeline.Description{}, ctx.Err()
	}
	if !s.handle.Continued() {
		return timeline.Description{}, ErrAbandoned
	}
	return s.result.Clone(), nil
}

// Outcome reports how the session resolved and, for a fallback, why.
func (s *Session) Outcome() (Outcome, error) {
	if s.State() != StateReady {
		return OutcomePending, nil
	}
	return s.outcome, s.cause
}

// Cancel abandons an in-flight retrieval. It is a no-op once ready.
func (s *Session) Cancel() {
	s.handle.Abandon()
	s.cancel()
}
