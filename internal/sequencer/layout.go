// Package sequencer projects a resolved timeline onto the composition canvas:
// one equal-width column per track, each playing its scenes back to back at a
// fixed per-scene frame duration. Everything here is pure and deterministic.
package sequencer

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ivlev/stitchpreview/internal/timeline"
)

// Options controls the projection. Geometry values are in canvas pixels.
type Options struct {
	SceneDurationFrames int
	Width, Height       int
	Padding             int // outer padding around the column row
	Gap                 int // space between columns
	HeaderHeight        int
	PanelPadding        int
	TitleHeight         int
	ViewportHeight      int
	LabelHeight         int
	PlaceholderText     string
}

// DefaultOptions mirrors the stock StitchPreview look.
func DefaultOptions(width, height, sceneDurationFrames int) Options {
	return Options{
		SceneDurationFrames: sceneDurationFrames,
		Width:               width,
		Height:              height,
		Padding:             20,
		Gap:                 20,
		HeaderHeight:        80,
		PanelPadding:        10,
		TitleHeight:         40,
		ViewportHeight:      300,
		LabelHeight:         34,
		PlaceholderText:     "No methods found in remotion_input.json",
	}
}

type Rect struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// Placement is one scene on its track's timeline: [StartFrame, StartFrame+DurationFrames).
type Placement struct {
	Index          int                 `json:"index"`
	Scene          timeline.SceneBlock `json:"scene"`
	StartFrame     int                 `json:"start_frame"`
	DurationFrames int                 `json:"duration_frames"`
}

func (p Placement) EndFrame() int {
	return p.StartFrame + p.DurationFrames
}

func (p Placement) Contains(frame int) bool {
	return frame >= p.StartFrame && frame < p.EndFrame()
}

type Column struct {
	Index      int         `json:"index"`
	Name       string      `json:"name"`
	Title      string      `json:"title"`
	Panel      Rect        `json:"panel"`
	TitleBox   Rect        `json:"title_box"`
	Viewport   Rect        `json:"viewport"`
	LabelBox   Rect        `json:"label_box"`
	Scenes     []Placement `json:"scenes"`
	Count      int         `json:"count"`
	CountLabel string      `json:"count_label"`
}

// Span is the number of frames the track plays for.
func (c Column) Span() int {
	if len(c.Scenes) == 0 {
		return 0
	}
	return c.Scenes[len(c.Scenes)-1].EndFrame()
}

// At returns the scene playing at frame and the frame offset inside it.
func (c Column) At(frame int) (Placement, int, bool) {
	if frame < 0 || len(c.Scenes) == 0 {
		return Placement{}, 0, false
	}
	d := c.Scenes[0].DurationFrames
	i := frame / d
	if i >= len(c.Scenes) {
		return Placement{}, 0, false
	}
	p := c.Scenes[i]
	return p, frame - p.StartFrame, true
}

type Layout struct {
	StoryID             string   `json:"story_id"`
	Heading             string   `json:"heading"`
	Width               int      `json:"width"`
	Height              int      `json:"height"`
	SceneDurationFrames int      `json:"scene_duration_frames"`
	Placeholder         bool     `json:"placeholder"`
	PlaceholderText     string   `json:"placeholder_text,omitempty"`
	Columns             []Column `json:"columns"`
}

// Span is the frame count of the longest track.
func (l Layout) Span() int {
	span := 0
	for _, c := range l.Columns {
		if s := c.Span(); s > span {
			span = s
		}
	}
	return span
}

// Sequence maps a timeline onto columns. An empty timeline yields the
// placeholder layout rather than a grid with no columns. A non-positive
// SceneDurationFrames is clamped to one frame per scene; config validation
// rejects it before a composition gets here.
func Sequence(desc timeline.Description, opts Options) Layout {
	d := opts.SceneDurationFrames
	if d <= 0 {
		d = 1
	}

	layout := Layout{
		StoryID:             desc.StoryID,
		Heading:             fmt.Sprintf("Story Stitch Timeline: %s", desc.StoryID),
		Width:               opts.Width,
		Height:              opts.Height,
		SceneDurationFrames: d,
		Columns:             []Column{},
	}

	if len(desc.Tracks) == 0 {
		layout.Placeholder = true
		layout.PlaceholderText = opts.PlaceholderText
		return layout
	}

	upper := cases.Upper(language.Und)
	n := len(desc.Tracks)
	colW := columnWidth(opts, n)
	top := opts.HeaderHeight + opts.Padding
	panelH := max(opts.Height-top-opts.Padding, 0)
	innerW := max(colW-2*opts.PanelPadding, 2)
	viewH := opts.ViewportHeight &^ 1

	for i, track := range desc.Tracks {
		x := opts.Padding + i*(colW+opts.Gap)
		inner := x + opts.PanelPadding
		titleY := top + opts.PanelPadding
		viewY := titleY + opts.TitleHeight

		placements := make([]Placement, len(track.Scenes))
		for j, scene := range track.Scenes {
			placements[j] = Placement{
				Index:          j,
				Scene:          scene,
				StartFrame:     j * d,
				DurationFrames: d,
			}
		}

		layout.Columns = append(layout.Columns, Column{
			Index:      i,
			Name:       track.Name,
			Title:      upper.String(track.Name),
			Panel:      Rect{X: x, Y: top, W: colW, H: panelH},
			TitleBox:   Rect{X: inner, Y: titleY, W: innerW, H: opts.TitleHeight},
			Viewport:   Rect{X: inner, Y: viewY, W: innerW, H: viewH},
			LabelBox:   Rect{X: inner, Y: viewY + viewH + opts.PanelPadding, W: innerW, H: opts.LabelHeight},
			Scenes:     placements,
			Count:      len(track.Scenes),
			CountLabel: fmt.Sprintf("%d Scenes", len(track.Scenes)),
		})
	}
	return layout
}

// columnWidth splits the row into n equal columns, rounded down to an even
// pixel count so every viewport stays encodable as yuv420p.
func columnWidth(opts Options, n int) int {
	avail := opts.Width - 2*opts.Padding - (n-1)*opts.Gap
	w := (avail / n) &^ 1
	return max(w, 2+2*opts.PanelPadding)
}
