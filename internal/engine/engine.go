// Package engine runs the offline render of a composition: resolve the
// timeline, encode each track clip in parallel, then compose the final video.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/stitchpreview/internal/composition"
	"github.com/ivlev/stitchpreview/internal/config"
	"github.com/ivlev/stitchpreview/internal/effects"
	"github.com/ivlev/stitchpreview/internal/media"
	"github.com/ivlev/stitchpreview/internal/progress"
	"github.com/ivlev/stitchpreview/internal/renderer"
	"github.com/ivlev/stitchpreview/internal/sequencer"
	"github.com/ivlev/stitchpreview/internal/source"
	"github.com/ivlev/stitchpreview/internal/system"
	"github.com/ivlev/stitchpreview/internal/video"
)

// ErrOutputLocked means another render is writing the same output file.
var ErrOutputLocked = errors.New("выходной файл заблокирован другим рендером")

type VideoProject struct {
	Config      *config.Config
	Composition composition.Composition
	Fetcher     source.Fetcher
	Media       *media.Resolver
	Encoder     video.VideoEncoder
	Effect      effects.Effect
	Logger      zerolog.Logger
	FontFile    string
	Progress    *progress.Tracker // nil отключает _progress.json

	tempDir string
}

// Stats describes one finished render.
type Stats struct {
	SessionID      string
	Outcome        string
	StoryID        string
	Tracks         int
	Scenes         int
	DurationFrames int
	Resolve        time.Duration
	Encode         time.Duration
	Compose        time.Duration
	Total          time.Duration
}

func NewVideoProject(cfg *config.Config, fetcher source.Fetcher, mr *media.Resolver, ve video.VideoEncoder, eff effects.Effect, logger zerolog.Logger) *VideoProject {
	return &VideoProject{
		Config:      cfg,
		Composition: composition.FromConfig(cfg),
		Fetcher:     fetcher,
		Media:       mr,
		Encoder:     ve,
		Effect:      eff,
		Logger:      logger,
	}
}

// Run выполняет фазы resolve, encode и compose. Ошибка любой фазы
// дописывается в _progress.json.
func (p *VideoProject) Run(ctx context.Context) (stats Stats, err error) {
	startTime := time.Now()
	defer func() {
		if err != nil {
			p.Progress.Fail(err)
		}
	}()

	if p.Config.OutputVideo == "" {
		return stats, errors.New("не задан выходной файл")
	}
	if err := os.MkdirAll(filepath.Dir(p.Config.OutputVideo), 0o755); err != nil {
		return stats, fmt.Errorf("не удалось создать папку вывода: %w", err)
	}

	// Файл блокировки остаётся на диске: удаление после Unlock дало бы двум
	// процессам заблокировать разные inode.
	lock := flock.New(p.Config.OutputVideo + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return stats, fmt.Errorf("не удалось взять блокировку вывода: %w", err)
	}
	if !ok {
		return stats, fmt.Errorf("%w: %s", ErrOutputLocked, p.Config.OutputVideo)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.Logger.Warn().Err(err).Msg("не удалось снять блокировку вывода")
		}
	}()

	p.tempDir, err = os.MkdirTemp("", "stitchpreview_")
	if err != nil {
		return stats, err
	}
	defer os.RemoveAll(p.tempDir)

	p.Progress.Start("resolve", p.Fetcher.Location())
	inst, err := p.Composition.Open(ctx, p.Fetcher, p.Logger)
	if err != nil {
		return stats, err
	}
	defer inst.Close()

	layout, err := inst.Wait(ctx)
	if err != nil {
		return stats, fmt.Errorf("ошибка загрузки таймлайна: %w", err)
	}
	outcome, _ := inst.Outcome()
	resolveEnd := time.Now()
	p.Progress.Finish("resolve", layout.StoryID)

	stats.SessionID = inst.ID()
	stats.Outcome = outcome.String()
	stats.StoryID = layout.StoryID
	stats.Tracks = len(layout.Columns)
	stats.DurationFrames = p.Composition.RenderDuration(layout)
	for _, col := range layout.Columns {
		stats.Scenes += col.Count
	}

	p.Logger.Info().
		Str("composition", p.Composition.ID).
		Str("story_id", layout.StoryID).
		Str("outcome", stats.Outcome).
		Int("tracks", stats.Tracks).
		Int("scenes", stats.Scenes).
		Str("canvas", fmt.Sprintf("%dx%d@%d", layout.Width, layout.Height, p.Composition.FPS)).
		Msg("рендер таймлайна")

	p.Progress.Start("encode", fmt.Sprintf("%d tracks", stats.Tracks))
	clips, err := p.encodeTracks(ctx, layout)
	if err != nil {
		return stats, err
	}
	encodeEnd := time.Now()
	p.Progress.Finish("encode", fmt.Sprintf("%d clips", len(clips)))
	p.Progress.Start("compose", p.Config.OutputVideo)

	// Пустые колонки не дают клипа, поэтому индексы входов сдвигаются
	var inputs []string
	inputIndex := make(map[int]int, len(clips))
	for _, col := range layout.Columns {
		if clip, ok := clips[col.Index]; ok {
			inputIndex[col.Index] = len(inputs)
			inputs = append(inputs, clip)
		}
	}

	graph := renderer.CompositionGraph(layout, renderer.CompositionParams{
		FPS:            p.Composition.FPS,
		DurationFrames: stats.DurationFrames,
		FontFile:       p.FontFile,
	}, inputIndex)

	err = p.Encoder.Compose(ctx, video.Job{
		Inputs:         inputs,
		Filter:         graph,
		Output:         p.Config.OutputVideo,
		FPS:            p.Composition.FPS,
		DurationFrames: stats.DurationFrames,
		Encoder:        p.Config.VideoEncoder,
		Quality:        p.Config.Quality,
	})
	if err != nil {
		return stats, fmt.Errorf("ошибка сборки финального видео: %w", err)
	}
	p.Progress.Complete()

	stats.Resolve = resolveEnd.Sub(startTime)
	stats.Encode = encodeEnd.Sub(resolveEnd)
	stats.Compose = time.Since(encodeEnd)
	stats.Total = time.Since(startTime)

	if p.Config.ShowStats {
		event := p.Logger.Info().
			Dur("resolve", stats.Resolve).
			Dur("encode", stats.Encode).
			Dur("compose", stats.Compose).
			Dur("total", stats.Total).
			Float64("fps", float64(stats.DurationFrames)/stats.Total.Seconds())
		// Длительность результата сверяем через ffprobe, если он есть
		if seconds, err := system.MediaDuration(ctx, p.Config.OutputVideo); err == nil {
			event = event.Float64("output_seconds", seconds)
		}
		event.Msg("отчёт о производительности")
	}
	return stats, nil
}

// encodeTracks renders one clip per non-empty column, bounded by the worker
// count. The first failure cancels the rest.
func (p *VideoProject) encodeTracks(ctx context.Context, layout sequencer.Layout) (map[int]string, error) {
	results := make([]string, len(layout.Columns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())

	for _, col := range layout.Columns {
		if len(col.Scenes) == 0 {
			continue
		}
		g.Go(func() error {
			out := filepath.Join(p.tempDir, fmt.Sprintf("track_%d.mp4", col.Index))
			inputs := make([]string, len(col.Scenes))
			for i, s := range col.Scenes {
				inputs[i] = p.Media.Resolve(s.Scene.VideoFile)
			}

			err := p.Encoder.EncodeTrack(gctx, video.Job{
				Inputs:         inputs,
				Filter:         renderer.TrackGraph(col, p.Composition.FPS, p.Effect, p.Config.Debug),
				Output:         out,
				FPS:            p.Composition.FPS,
				DurationFrames: col.Span(),
				Encoder:        p.Config.VideoEncoder,
				Quality:        p.Config.Quality,
			})
			if err != nil {
				return fmt.Errorf("дорожка %q: %w", col.Name, err)
			}

			results[col.Index] = out
			p.Logger.Debug().Str("track", col.Name).Int("scenes", col.Count).Int("frames", col.Span()).Msg("track ready")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	clips := make(map[int]string)
	for i, r := range results {
		if r != "" {
			clips[i] = r
		}
	}
	return clips, nil
}

func (p *VideoProject) workers() int {
	if p.Config.Workers > 0 {
		return p.Config.Workers
	}
	return system.DefaultWorkers()
}
