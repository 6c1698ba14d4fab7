// Package director exports sequenced timelines as YAML cue sheets.
package director

import (
	"math"

	"github.com/ivlev/stitchpreview/internal/sequencer"
)

const CueSheetVersion = "1.0"

// Build turns a layout into a cue sheet. Times are rounded to the
// millisecond.
func Build(compositionID string, fps int, layout sequencer.Layout) *CueSheet {
	sheet := &CueSheet{
		Version:             CueSheetVersion,
		Composition:         compositionID,
		StoryID:             layout.StoryID,
		FPS:                 fps,
		SceneDurationFrames: layout.SceneDurationFrames,
		Placeholder:         layout.Placeholder,
		Tracks:              make([]Track, 0, len(layout.Columns)),
	}

	for _, col := range layout.Columns {
		track := Track{
			Name:  col.Name,
			Title: col.Title,
			Label: col.CountLabel,
			Cues:  make([]Cue, 0, len(col.Scenes)),
		}
		for _, p := range col.Scenes {
			track.Cues = append(track.Cues, Cue{
				Index:      p.Index,
				Method:     p.Scene.Method,
				VideoFile:  p.Scene.VideoFile,
				StartFrame: p.StartFrame,
				EndFrame:   p.EndFrame(),
				Start:      seconds(p.StartFrame, fps),
				End:        seconds(p.EndFrame(), fps),
			})
		}
		sheet.Tracks = append(sheet.Tracks, track)
	}
	return sheet
}

// Duration is the frame count of the longest track.
func (s *CueSheet) Duration() int {
	n := 0
	for _, t := range s.Tracks {
		if len(t.Cues) > 0 {
			n = max(n, t.Cues[len(t.Cues)-1].EndFrame)
		}
	}
	return n
}

func seconds(frame, fps int) float64 {
	if fps <= 0 {
		return 0
	}
	return math.Round(float64(frame)/float64(fps)*1000) / 1000
}
