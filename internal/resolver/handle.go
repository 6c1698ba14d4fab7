package resolver

import (
	"errors"
	"sync"
)

var (
	// ErrDoubleResume is raised (as a panic) when a render handle is
	// continued more than once. It is a contract violation, not a runtime
	// condition.
	ErrDoubleResume = errors.New("render handle continued twice")
	// ErrAbandoned is returned to waiters of a session torn down before its
	// retrieval finished.
	ErrAbandoned = errors.New("resolution abandoned")
)

type handleState int

const (
	handleDelayed handleState = iota
	handleContinued
	handleAbandoned
)

// RenderHandle blocks frame production until it is continued. It is taken
// once per session and released exactly once, by Continue or Abandon.
type RenderHandle struct {
	mu    sync.Mutex
	state handleState
	done  chan struct{}
}

// DelayRender takes a new handle in the delayed state.
func DelayRender() *RenderHandle {
	return &RenderHandle{done: make(chan struct{})}
}

// Continue resumes the host. A second Continue panics with ErrDoubleResume.
// Continuing an abandoned handle is a no-op: the host is already gone.
func (h *RenderHandle) Continue() {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case handleContinued:
		panic(ErrDoubleResume)
	case handleAbandoned:
		return
	}
	h.state = handleContinued
	close(h.done)
}

// Abandon releases a handle without resuming the host. It reports whether
// the handle was still delayed.
func (h *RenderHandle) Abandon() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != handleDelayed {
		return false
	}
	h.state = handleAbandoned
	close(h.done)
	return true
}

// Released is closed once the handle is continued or abandoned.
func (h *RenderHandle) Released() <-chan struct{} {
	return h.done
}

func (h *RenderHandle) Continued() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == handleContinued
}
