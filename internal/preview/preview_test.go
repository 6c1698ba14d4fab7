package preview

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/ivlev/stitchpreview/internal/composition"
	"github.com/ivlev/stitchpreview/internal/config"
)

type stubFetcher struct{ payload string }

func (f stubFetcher) Location() string { return "stub://remotion_input.json" }

func (f stubFetcher) Fetch(ctx context.Context) ([]byte, error) {
	return []byte(f.payload), nil
}

const exampleManifest = `{"story_id":"s1","methods":{"render":[{"method":"render","video_file":"clips/a.mp4"},{"method":"render","video_file":"clips/b.mp4"}],"caption":[{"method":"caption","video_file":"clips/c.mp4"}]}}`

func readyModel(t *testing.T, payload string) Model {
	t.Helper()
	comp := composition.FromConfig(config.Default())
	inst, err := comp.Open(context.Background(), stubFetcher{payload: payload}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(inst.Close)

	m := New(comp, inst)
	if !strings.Contains(m.View(), "Resolving remotion_input.json") {
		t.Errorf("Expected loading view, got %q", m.View())
	}

	msg := waitCmd(inst)()
	model, _ := m.Update(msg)
	return model.(Model)
}

func press(t *testing.T, m Model, msg tea.KeyMsg) Model {
	t.Helper()
	model, _ := m.Update(msg)
	return model.(Model)
}

func TestReadyShowsColumns(t *testing.T) {
	m := readyModel(t, exampleManifest)
	if !m.ready || m.duration != 1200 {
		t.Fatalf("Expected ready model with duration 1200, got ready=%v duration=%d", m.ready, m.duration)
	}
	view := m.View()
	for _, want := range []string{"Story Stitch Timeline: s1", "RENDER", "CAPTION", "2 Scenes", "1 Scenes", "a.mp4", "source: retrieved"} {
		if !strings.Contains(view, want) {
			t.Errorf("View misses %q:\n%s", want, view)
		}
	}
}

func TestPlaceholderView(t *testing.T) {
	m := readyModel(t, `{"story_id":"empty","methods":{}}`)
	if !strings.Contains(m.View(), "No methods found in remotion_input.json") {
		t.Errorf("Expected placeholder:\n%s", m.View())
	}
}

func TestFrameStepping(t *testing.T) {
	m := readyModel(t, exampleManifest)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if m.frame != 0 {
		t.Errorf("Frame must not go below 0, got %d", m.frame)
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'l'}})
	if m.frame != 2 {
		t.Errorf("Expected frame 2, got %d", m.frame)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{']'}})
	if m.frame != 120 {
		t.Errorf("Expected next scene at 120, got %d", m.frame)
	}
	if !strings.Contains(m.View(), "b.mp4") {
		t.Error("Expected second render scene at frame 120")
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'['}})
	if m.frame != 0 {
		t.Errorf("Expected previous scene at 0, got %d", m.frame)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnd})
	if m.frame != 1199 {
		t.Errorf("Expected last frame 1199, got %d", m.frame)
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if m.frame != 1199 {
		t.Errorf("Frame must not pass the end, got %d", m.frame)
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyHome})
	if m.frame != 0 {
		t.Errorf("Expected frame 0 after home, got %d", m.frame)
	}
}

func TestPlaybackTicks(t *testing.T) {
	m := readyModel(t, exampleManifest)

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = model.(Model)
	if !m.playing || cmd == nil {
		t.Fatal("Expected playback to start with a tick")
	}

	model, cmd = m.Update(tickMsg(time.Now()))
	m = model.(Model)
	if m.frame != 1 || cmd == nil {
		t.Errorf("Expected tick to advance to frame 1, got %d", m.frame)
	}

	m.frame = m.duration - 1
	model, _ = m.Update(tickMsg(time.Now()))
	if got := model.(Model).frame; got != 0 {
		t.Errorf("Playback must loop to 0, got %d", got)
	}

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = model.(Model)
	model, cmd = m.Update(tickMsg(time.Now()))
	if model.(Model).frame != m.frame || cmd != nil {
		t.Error("Paused model must ignore ticks")
	}
}

func TestQuit(t *testing.T) {
	m := readyModel(t, exampleManifest)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
}

func TestHelpers(t *testing.T) {
	if got := progressBar(60, 120, 10); got != "█████░░░░░" {
		t.Errorf("Unexpected bar %q", got)
	}
	if got := timecode(130, 30); got != "00:04.10" {
		t.Errorf("Unexpected timecode %q", got)
	}
	if got := truncate("abcdefgh", 6); got != "abc..." {
		t.Errorf("Unexpected truncation %q", got)
	}
}
