package effects

import (
	"fmt"

	"github.com/ivlev/stitchpreview/internal/system"
)

// SceneParams describes one scene clip as it will appear in its viewport.
type SceneParams struct {
	Width, Height  int // viewport size
	FPS            int
	DurationFrames int
	TrackIndex     int
	SceneIndex     int
	Background     string
	Debug          bool
}

type Effect interface {
	SceneFilter(p SceneParams) string
}

// ContainEffect fits each clip inside the viewport without cropping and
// forces it to exactly DurationFrames frames: short clips hold their last
// frame, long clips are cut.
type ContainEffect struct{}

func (e *ContainEffect) SceneFilter(p SceneParams) string {
	bg := p.Background
	if bg == "" {
		bg = "black"
	}

	// Короткий клип держит последний кадр, длинный обрезается
	timing := fmt.Sprintf(
		"fps=%d,tpad=stop_mode=clone:stop=%d,trim=end_frame=%d,setpts=PTS-STARTPTS",
		p.FPS, p.DurationFrames, p.DurationFrames,
	)

	aspectFilter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=%s,setsar=1",
		p.Width, p.Height, p.Width, p.Height, bg,
	)

	if p.Debug && system.CheckFilterSupport("drawtext") {
		textFilter := fmt.Sprintf("drawtext=text='Scene %d':x=10:y=10:fontsize=20:fontcolor=yellow:box=1:boxcolor=black@0.5", p.SceneIndex+1)
		return fmt.Sprintf("%s,%s,%s", timing, aspectFilter, textFilter)
	}

	return fmt.Sprintf("%s,%s", timing, aspectFilter)
}
