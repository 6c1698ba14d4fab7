// Package renderer builds the ffmpeg filter graphs for the offline render:
// one graph per track that chains its scenes, and one graph that paints the
// stitch timeline and overlays the track clips.
package renderer

import (
	"fmt"
	"strings"

	"github.com/ivlev/stitchpreview/internal/effects"
	"github.com/ivlev/stitchpreview/internal/sequencer"
)

// Palette of the stitch timeline.
const (
	ColorBackground = "0x111111"
	ColorPanel      = "0x222222"
	ColorBorder     = "0x333333"
	ColorTitle      = "0x00ecff"
	ColorLabel      = "0x888888"
	ColorHeading    = "white"
	ColorViewport   = "black"
)

// OutputLabel names the final video stream of every graph.
const OutputLabel = "[vout]"

// TrackGraph concatenates a column's scenes into one clip. Input i of the
// ffmpeg command must be scene i of the column.
func TrackGraph(col sequencer.Column, fps int, effect effects.Effect, debug bool) string {
	var b strings.Builder
	for i, p := range col.Scenes {
		filter := effect.SceneFilter(effects.SceneParams{
			Width:          col.Viewport.W,
			Height:         col.Viewport.H,
			FPS:            fps,
			DurationFrames: p.DurationFrames,
			TrackIndex:     col.Index,
			SceneIndex:     p.Index,
			Background:     ColorViewport,
			Debug:          debug,
		})
		fmt.Fprintf(&b, "[%d:v]%s[s%d];", i, filter, i)
	}
	for i := range col.Scenes {
		fmt.Fprintf(&b, "[s%d]", i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=0,format=yuv420p%s", len(col.Scenes), OutputLabel)
	return b.String()
}

// CompositionParams controls the composition graph.
type CompositionParams struct {
	FPS            int
	DurationFrames int
	FontFile       string // optional, for ffmpeg builds without fontconfig
}

// CompositionGraph paints the timeline chrome and overlays each track clip
// at its column viewport. inputs maps a column index to its ffmpeg input
// index; columns without a clip (empty tracks) keep an idle viewport.
func CompositionGraph(layout sequencer.Layout, p CompositionParams, inputs map[int]int) string {
	seconds := float64(p.DurationFrames) / float64(p.FPS)
	font := ""
	if p.FontFile != "" {
		font = "fontfile=" + EscapeText(p.FontFile) + ":"
	}

	chrome := []string{
		fmt.Sprintf("color=c=%s:s=%dx%d:r=%d:d=%s", ColorBackground, layout.Width, layout.Height, p.FPS, formatSeconds(seconds)),
		fmt.Sprintf("drawtext=%stext=%s:x=20:y=24:fontsize=40:fontcolor=%s", font, EscapeText(layout.Heading), ColorHeading),
	}

	if layout.Placeholder {
		chrome = append(chrome, fmt.Sprintf(
			"drawtext=%stext=%s:x=(w-text_w)/2:y=(h-text_h)/2:fontsize=36:fontcolor=%s",
			font, EscapeText(layout.PlaceholderText), ColorLabel,
		))
		return strings.Join(chrome, ",") + ",format=yuv420p" + OutputLabel
	}

	for _, col := range layout.Columns {
		chrome = append(chrome,
			drawBox(col.Panel, ColorPanel, "fill"),
			drawBox(col.Panel, ColorBorder, "2"),
			fmt.Sprintf("drawtext=%stext=%s:x=%d+(%d-text_w)/2:y=%d+(%d-text_h)/2:fontsize=24:fontcolor=%s",
				font, EscapeText(col.Title), col.TitleBox.X, col.TitleBox.W, col.TitleBox.Y, col.TitleBox.H, ColorTitle),
			drawBox(col.Viewport, ColorViewport, "fill"),
			fmt.Sprintf("drawtext=%stext=%s:x=%d+(%d-text_w)/2:y=%d+(%d-text_h)/2:fontsize=20:fontcolor=%s",
				font, EscapeText(col.CountLabel), col.LabelBox.X, col.LabelBox.W, col.LabelBox.Y, col.LabelBox.H, ColorLabel),
		)
	}

	var b strings.Builder
	b.WriteString(strings.Join(chrome, ","))
	b.WriteString("[base]")

	last := "[base]"
	step := 0
	for _, col := range layout.Columns {
		in, ok := inputs[col.Index]
		if !ok {
			continue
		}
		step++
		out := fmt.Sprintf("[o%d]", step)
		fmt.Fprintf(&b, ";[%d:v]setpts=PTS-STARTPTS[t%d];%s[t%d]overlay=x=%d:y=%d:eof_action=pass%s",
			in, step, last, step, col.Viewport.X, col.Viewport.Y, out)
		last = out
	}
	fmt.Fprintf(&b, ";%sformat=yuv420p%s", last, OutputLabel)
	return b.String()
}

func drawBox(r sequencer.Rect, color, thickness string) string {
	return fmt.Sprintf("drawbox=x=%d:y=%d:w=%d:h=%d:color=%s:t=%s", r.X, r.Y, r.W, r.H, color, thickness)
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
