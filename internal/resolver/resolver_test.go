package resolver

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/stitchpreview/internal/source"
	"github.com/ivlev/stitchpreview/internal/timeline"
)

type stubFetcher struct {
	payload string
	err     error
	calls   atomic.Int32
	block   chan struct{}
}

func (f *stubFetcher) Location() string { return "stub://remotion_input.json" }

func (f *stubFetcher) Fetch(ctx context.Context) ([]byte, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.payload), nil
}

func newResolver(t *testing.T, f source.Fetcher, fallback timeline.Description) *Resolver {
	t.Helper()
	r, err := New(f, fallback, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFallbackOnFailure(t *testing.T) {
	fallback := timeline.Description{
		StoryID: "preview_default",
		Tracks: []timeline.Track{
			{Name: "render", Scenes: []timeline.SceneBlock{{Method: "render", VideoFile: "default.mp4"}}},
		},
	}

	tests := []struct {
		name    string
		fetcher *stubFetcher
	}{
		{"not found", &stubFetcher{err: fmt.Errorf("%w: remotion_input.json", source.ErrNotFound)}},
		{"network error", &stubFetcher{err: errors.New("connection refused")}},
		{"html payload", &stubFetcher{payload: "<html>oops</html>"}},
		{"wrong shape", &stubFetcher{payload: `{"story_id":"s1","methods":[1,2]}`}},
		{"missing video", &stubFetcher{payload: `{"story_id":"s1","methods":{"a":[{"method":"a"}]}}`}},
		{"miscased methods", &stubFetcher{payload: `{"story_id":"s1","METHODS":{"a":[]}}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newResolver(t, tt.fetcher, fallback).Resolve(context.Background())
			got, err := s.Wait(waitCtx(t))
			if err != nil {
				t.Fatalf("Wait failed: %v", err)
			}
			if !reflect.DeepEqual(got, fallback) {
				t.Errorf("Expected fallback %+v, got %+v", fallback, got)
			}
			outcome, cause := s.Outcome()
			if outcome != OutcomeFallback || cause == nil {
				t.Errorf("Expected fallback outcome with cause, got %v / %v", outcome, cause)
			}
			if calls := tt.fetcher.calls.Load(); calls != 1 {
				t.Errorf("Expected exactly one retrieval, got %d", calls)
			}
		})
	}
}

func TestNetworkFailureRendersDefault(t *testing.T) {
	s := newResolver(t, &stubFetcher{err: errors.New("network down")}, timeline.Default()).Resolve(context.Background())
	got, err := s.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if got.StoryID != "preview_default" || !got.Empty() {
		t.Errorf("Expected empty preview_default timeline, got %+v", got)
	}
}

func TestPassThrough(t *testing.T) {
	tests := []struct {
		payload string
		want    timeline.Description
	}{
		{
			`{"story_id":"s1","methods":{"render":[{"method":"render","video_file":"a.mp4"},{"method":"render","video_file":"b.mp4"}],"caption":[{"method":"caption","video_file":"c.mp4"}]}}`,
			timeline.Description{StoryID: "s1", Tracks: []timeline.Track{
				{Name: "render", Scenes: []timeline.SceneBlock{{Method: "render", VideoFile: "a.mp4"}, {Method: "render", VideoFile: "b.mp4"}}},
				{Name: "caption", Scenes: []timeline.SceneBlock{{Method: "caption", VideoFile: "c.mp4"}}},
			}},
		},
		{
			`{"story_id":"s2","methods":{"zeta":[],"alpha":[{"method":"other","video_file":"x.mp4","VIDEO_FILE":""}]}}`,
			timeline.Description{StoryID: "s2", Tracks: []timeline.Track{
				{Name: "zeta", Scenes: []timeline.SceneBlock{}},
				{Name: "alpha", Scenes: []timeline.SceneBlock{{Method: "other", VideoFile: "x.mp4"}}},
			}},
		},
		{
			`{"story_id":"empty","methods":{}}`,
			timeline.Description{StoryID: "empty", Tracks: []timeline.Track{}},
		},
	}

	for _, tt := range tests {
		s := newResolver(t, &stubFetcher{payload: tt.payload}, timeline.Default()).Resolve(context.Background())
		got, err := s.Wait(waitCtx(t))
		if err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Expected %+v, got %+v", tt.want, got)
		}
		if outcome, cause := s.Outcome(); outcome != OutcomeRetrieved || cause != nil {
			t.Errorf("Expected retrieved outcome, got %v / %v", outcome, cause)
		}
	}
}

func TestEmptyManifestIsNotAFailure(t *testing.T) {
	fallback := timeline.Description{
		StoryID: "fallback",
		Tracks:  []timeline.Track{{Name: "render", Scenes: []timeline.SceneBlock{}}},
	}
	s := newResolver(t, &stubFetcher{payload: `{"story_id":"real","methods":{}}`}, fallback).Resolve(context.Background())
	got, err := s.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if got.StoryID != "real" || !got.Empty() {
		t.Errorf("Empty manifest must pass through, got %+v", got)
	}
}

func TestLoadingUntilResolved(t *testing.T) {
	f := &stubFetcher{payload: `{"story_id":"s","methods":{}}`, block: make(chan struct{})}
	s := newResolver(t, f, timeline.Default()).Resolve(context.Background())

	if s.State() != StateLoading {
		t.Fatalf("Expected loading, got %v", s.State())
	}
	if outcome, _ := s.Outcome(); outcome != OutcomePending {
		t.Errorf("Expected pending outcome, got %v", outcome)
	}

	close(f.block)
	if _, err := s.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if s.State() != StateReady {
		t.Errorf("Expected ready, got %v", s.State())
	}

	// Ready is terminal: cancelling afterwards changes nothing.
	s.Cancel()
	if s.State() != StateReady {
		t.Errorf("Cancel after ready must not leave ready, got %v", s.State())
	}
}

func TestCancelAbandonsWithoutResume(t *testing.T) {
	f := &stubFetcher{payload: `{"methods":{}}`, block: make(chan struct{})}
	s := newResolver(t, f, timeline.Default()).Resolve(context.Background())

	s.Cancel()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not release after Cancel")
	}
	if s.State() != StateAbandoned {
		t.Errorf("Expected abandoned, got %v", s.State())
	}
	if _, err := s.Wait(waitCtx(t)); !errors.Is(err, ErrAbandoned) {
		t.Errorf("Expected ErrAbandoned, got %v", err)
	}
	if s.handle.Continued() {
		t.Error("Abandoned session must never resume the host")
	}
}

func TestParentContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &stubFetcher{block: make(chan struct{})}
	s := newResolver(t, f, timeline.Default()).Resolve(ctx)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not release after parent cancellation")
	}
	if s.State() != StateAbandoned {
		t.Errorf("Expected abandoned, got %v", s.State())
	}
}

func TestWaitHonoursCallerContext(t *testing.T) {
	f := &stubFetcher{block: make(chan struct{})}
	s := newResolver(t, f, timeline.Default()).Resolve(context.Background())
	defer s.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if s.State() != StateLoading {
		t.Errorf("Caller timeout must not change session state, got %v", s.State())
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	r := newResolver(t, &stubFetcher{payload: `{"story_id":"s","methods":{"a":[]}}`}, timeline.Default())
	a := r.Resolve(context.Background())
	b := r.Resolve(context.Background())
	if a.ID() == b.ID() {
		t.Error("Expected distinct session ids")
	}

	da, _ := a.Wait(waitCtx(t))
	db, _ := b.Wait(waitCtx(t))
	da.Tracks[0].Name = "mutated"
	if db.Tracks[0].Name != "a" {
		t.Error("Sessions share timeline storage")
	}
	again, _ := a.Wait(waitCtx(t))
	if again.Tracks[0].Name != "a" {
		t.Error("Wait must hand out copies of the resolved timeline")
	}
}

func TestNewRejectsBadInputs(t *testing.T) {
	if _, err := New(nil, timeline.Default(), zerolog.Nop()); err == nil {
		t.Error("Expected error for nil fetcher")
	}
	bad := timeline.Description{Tracks: []timeline.Track{{Name: "a"}, {Name: "a"}}}
	if _, err := New(&stubFetcher{}, bad, zerolog.Nop()); err == nil {
		t.Error("Expected error for duplicate fallback tracks")
	}
}

func TestRenderHandleContract(t *testing.T) {
	h := DelayRender()
	h.Continue()
	if !h.Continued() {
		t.Fatal("Expected continued handle")
	}
	if h.Abandon() {
		t.Error("Abandon after Continue must report false")
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Expected panic on double Continue")
		}
		if err, ok := r.(error); !ok || !errors.Is(err, ErrDoubleResume) {
			t.Errorf("Expected ErrDoubleResume, got %v", r)
		}
	}()
	h.Continue()
}

func TestAbandonedHandleIgnoresContinue(t *testing.T) {
	h := DelayRender()
	if !h.Abandon() {
		t.Fatal("Expected first Abandon to release the handle")
	}
	h.Continue()
	if h.Continued() {
		t.Error("Continue after Abandon must not resume")
	}
}
