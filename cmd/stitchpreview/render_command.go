package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ivlev/stitchpreview/internal/effects"
	"github.com/ivlev/stitchpreview/internal/engine"
	"github.com/ivlev/stitchpreview/internal/media"
	"github.com/ivlev/stitchpreview/internal/progress"
	"github.com/ivlev/stitchpreview/internal/system"
	"github.com/ivlev/stitchpreview/internal/video"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		output   string
		workers  int
		encoder  string
		quality  int
		debug    bool
		stats    bool
		fontFile string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the composition to a video file with ffmpeg",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.log()
			system.InitResourceLimits(logger)

			if output != "" {
				cfg.OutputVideo = output
			}
			if cfg.OutputVideo == "" {
				timestamp := time.Now().Format("2006-01-02_15-04-05")
				cfg.OutputVideo = filepath.Join("output", fmt.Sprintf("%s_%s.mp4", cfg.CompositionID, timestamp))
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if encoder != "" {
				cfg.VideoEncoder = encoder
			}
			if cfg.VideoEncoder == "" {
				cfg.VideoEncoder = system.GetBestH264Encoder()
				if cfg.VideoEncoder != "libx264" {
					logger.Info().Str("encoder", cfg.VideoEncoder).Msg("обнаружено аппаратное ускорение")
				}
			}
			if quality > 0 {
				cfg.Quality = quality
			}
			if cfg.Quality == 0 {
				cfg.Quality = defaultQuality(cfg.VideoEncoder)
			}
			cfg.Debug = cfg.Debug || debug
			cfg.ShowStats = cfg.ShowStats || stats

			f, err := ctx.fetcher()
			if err != nil {
				return err
			}
			mr, err := media.ForDir(cfg.MediaMode, cfg.StaticDir)
			if err != nil {
				return err
			}

			logger.Debug().Str("media_mode", mr.Mode()).Str("static_dir", cfg.StaticDir).Msg("media references")

			project := engine.NewVideoProject(cfg, f, mr, &video.FFmpegEncoder{}, &effects.ContainEffect{}, logger)
			project.FontFile = fontFile
			if cfg.ProgressDir != "" {
				tracker, err := progress.New(cfg.ProgressDir, progress.Options{
					JobID:    uuid.NewString(),
					Workflow: cfg.CompositionID,
					Logger:   logger,
				})
				if err != nil {
					return err
				}
				project.Progress = tracker
			}

			result, err := project.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Output", "Story", "Source", "Tracks", "Scenes", "Frames", "Total"},
				[][]string{{
					cfg.OutputVideo,
					result.StoryID,
					result.Outcome,
					strconv.Itoa(result.Tracks),
					strconv.Itoa(result.Scenes),
					strconv.Itoa(result.DurationFrames),
					result.Total.Round(time.Millisecond).String(),
				}},
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output video path (default output/<composition>_<timestamp>.mp4)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel track encodes (0 = logical CPU count)")
	cmd.Flags().StringVar(&encoder, "encoder", "", "H.264 encoder (default: best available)")
	cmd.Flags().IntVar(&quality, "quality", 0, "Quality (0 = auto; x264 CRF, NVENC CQ, VideoToolbox Q*100 kbit/s)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Overlay scene numbers on each clip")
	cmd.Flags().BoolVar(&stats, "stats", false, "Log a performance report")
	cmd.Flags().StringVar(&fontFile, "font", "", "Font file for drawtext on ffmpeg builds without fontconfig")
	return cmd
}

func defaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75
	case "h264_nvenc":
		return 28
	default:
		return 23
	}
}
