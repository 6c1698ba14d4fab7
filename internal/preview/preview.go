// Package preview is the terminal player for a composition instance. It
// shows a spinner while the timeline resolves, then the stitch columns with
// frame stepping and playback.
package preview

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ivlev/stitchpreview/internal/composition"
	"github.com/ivlev/stitchpreview/internal/sequencer"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("237")).
			Padding(0, 1)
)

type readyMsg struct {
	layout  sequencer.Layout
	outcome string
	err     error
}

type tickMsg time.Time

type Model struct {
	comp composition.Composition
	inst *composition.Instance

	layout  sequencer.Layout
	outcome string
	ready   bool
	err     error

	frame    int
	duration int
	playing  bool

	spinner spinner.Model
	help    help.Model
	keys    keyMap

	width, height int
}

func New(comp composition.Composition, inst *composition.Instance) Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(titleStyle))
	return Model{
		comp:    comp,
		inst:    inst,
		spinner: s,
		help:    help.New(),
		keys:    defaultKeys(),
	}
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, comp composition.Composition, inst *composition.Instance) error {
	p := tea.NewProgram(New(comp, inst), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok {
		return m.err
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitCmd(m.inst))
}

func waitCmd(inst *composition.Instance) tea.Cmd {
	return func() tea.Msg {
		layout, err := inst.Wait(context.Background())
		if err != nil {
			return readyMsg{err: err}
		}
		outcome, _ := inst.Outcome()
		return readyMsg{layout: layout, outcome: outcome.String()}
	}
}

func (m Model) tickCmd() tea.Cmd {
	fps := max(m.comp.FPS, 1)
	return tea.Tick(time.Second/time.Duration(fps), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case readyMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.ready = true
		m.layout = msg.layout
		m.outcome = msg.outcome
		m.duration = m.comp.RenderDuration(msg.layout)
		return m, nil
	case spinner.TickMsg:
		if m.ready {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tickMsg:
		if !m.playing {
			return m, nil
		}
		m.frame = (m.frame + 1) % max(m.duration, 1)
		return m, m.tickCmd()
	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if !m.ready {
		return m, nil
	}

	d := max(m.layout.SceneDurationFrames, 1)
	switch {
	case key.Matches(msg, m.keys.Prev):
		m.seek(m.frame - 1)
	case key.Matches(msg, m.keys.Next):
		m.seek(m.frame + 1)
	case key.Matches(msg, m.keys.PrevScene):
		if m.frame%d == 0 {
			m.seek(m.frame - d)
		} else {
			m.seek(m.frame - m.frame%d)
		}
	case key.Matches(msg, m.keys.NextScene):
		m.seek(m.frame - m.frame%d + d)
	case key.Matches(msg, m.keys.Start):
		m.seek(0)
	case key.Matches(msg, m.keys.End):
		m.seek(m.duration - 1)
	case key.Matches(msg, m.keys.Play):
		m.playing = !m.playing
		if m.playing {
			return m, m.tickCmd()
		}
	}
	return m, nil
}

func (m *Model) seek(frame int) {
	m.frame = min(max(frame, 0), max(m.duration-1, 0))
}

func (m Model) View() string {
	if m.err != nil {
		return errorStyle.Render("error: "+m.err.Error()) + "\n"
	}
	if !m.ready {
		return fmt.Sprintf("\n %s Resolving %s ...\n\n %s\n", m.spinner.View(), m.comp.Manifest, mutedStyle.Render("q: quit"))
	}

	state := m.layout.Frame(m.frame)
	header := headingStyle.Render(state.Heading) + "\n" + mutedStyle.Render(m.statusLine())

	var body string
	if state.Placeholder {
		body = panelStyle.Width(max(m.width-4, 64)).Render(mutedStyle.Render(state.PlaceholderText))
	} else {
		body = m.renderColumns(state)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", m.help.View(m.keys))
}

func (m Model) statusLine() string {
	fps := max(m.comp.FPS, 1)
	state := "paused"
	if m.playing {
		state = "playing"
	}
	return fmt.Sprintf("%s | frame %d/%d | %s | %s | source: %s",
		m.comp.ID, m.frame, m.duration, timecode(m.frame, fps), state, m.outcome)
}

func (m Model) renderColumns(state sequencer.FrameState) string {
	n := len(state.Columns)
	width := m.width
	if width <= 0 {
		width = 120
	}
	colW := max((width-n*4)/max(n, 1), 16)
	d := max(m.layout.SceneDurationFrames, 1)

	boxes := make([]string, 0, n)
	for _, cf := range state.Columns {
		lines := []string{titleStyle.Render(cf.Title), ""}
		if cf.Active {
			lines = append(lines,
				activeStyle.Render(fmt.Sprintf("Scene %d of %d", cf.Scene.Index+1, cf.Count)),
				mutedStyle.Render(truncate(path.Base(cf.Scene.Scene.VideoFile), colW)),
				barStyle.Render(progressBar(cf.LocalFrame+1, d, colW)),
			)
		} else {
			lines = append(lines, mutedStyle.Render("idle"), "", "")
		}
		lines = append(lines, "", mutedStyle.Render(cf.CountLabel))
		boxes = append(boxes, panelStyle.Width(colW).Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func progressBar(done, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	filled := min(done*width/total, width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func timecode(frame, fps int) string {
	secs := frame / fps
	return fmt.Sprintf("%02d:%02d.%02d", secs/60, secs%60, frame%fps)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
