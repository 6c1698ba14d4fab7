package video

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/ivlev/stitchpreview/internal/renderer"
)

// Job is one ffmpeg invocation: inputs fed through a filter_complex graph
// whose output is renderer.OutputLabel.
type Job struct {
	Inputs         []string
	Filter         string
	Output         string
	FPS            int
	DurationFrames int
	Encoder        string
	Quality        int
}

type VideoEncoder interface {
	EncodeTrack(ctx context.Context, job Job) error
	Compose(ctx context.Context, job Job) error
}

type FFmpegEncoder struct {
	Binary string // defaults to "ffmpeg"
}

// EncodeTrack renders one column clip from its scene files.
func (e *FFmpegEncoder) EncodeTrack(ctx context.Context, job Job) error {
	if len(job.Inputs) == 0 {
		return errors.New("track has no scenes to encode")
	}
	return e.run(ctx, "track", job)
}

// Compose renders the final timeline video from the track clips. It runs
// without inputs for the empty-timeline placeholder.
func (e *FFmpegEncoder) Compose(ctx context.Context, job Job) error {
	return e.run(ctx, "compose", job)
}

func (e *FFmpegEncoder) run(ctx context.Context, stage string, job Job) error {
	bin := e.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, buildFFmpegArgs(job)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg %s error: %w, output: %s", stage, err, tail(out, 2048))
	}
	return nil
}

func buildFFmpegArgs(job Job) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, in := range job.Inputs {
		args = append(args, "-i", in)
	}
	args = append(args,
		"-filter_complex", job.Filter,
		"-map", renderer.OutputLabel,
		"-an",
		"-frames:v", strconv.Itoa(job.DurationFrames),
		"-r", strconv.Itoa(job.FPS),
		"-pix_fmt", "yuv420p",
		"-c:v", job.Encoder,
	)
	args = append(args, qualityArgs(job.Encoder, job.Quality)...)
	args = append(args, job.Output)
	return args
}

func qualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox ignores -q:v on some versions; quality maps to kbit/s.
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", strconv.Itoa(quality)}
	default: // libx264
		return []string{"-crf", strconv.Itoa(quality), "-preset", "medium"}
	}
}

func tail(out []byte, n int) string {
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return string(out)
}
