// Package system wraps host capabilities: ffmpeg feature detection, file
// descriptor limits and CPU sizing.
package system

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
)

// InitResourceLimits raises the open file limit. Each parallel track encode
// holds one descriptor per scene clip.
func InitResourceLimits(logger zerolog.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn().Err(err).Msg("не удалось прочитать лимит открытых файлов")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn().Err(err).Msg("не удалось поднять лимит открытых файлов")
		return
	}
	logger.Debug().Uint64("nofile", uint64(rLimit.Cur)).Msg("лимит открытых файлов поднят")
}

// DefaultWorkers is the logical CPU count, falling back to GOMAXPROCS when
// the host does not report it.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

var (
	encodersOnce sync.Once
	encodersOut  string
	filtersOnce  sync.Once
	filtersOut   string
)

func ffmpegList(flag string) string {
	out, err := exec.Command("ffmpeg", "-hide_banner", flag).CombinedOutput()
	if err != nil {
		return ""
	}
	return string(out)
}

// GetBestH264Encoder prefers hardware encoders: VideoToolbox on macOS, then
// NVENC, then libx264.
func GetBestH264Encoder() string {
	encodersOnce.Do(func() { encodersOut = ffmpegList("-encoders") })
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if hasListEntry(encodersOut, name) {
			return name
		}
	}
	return "libx264"
}

// CheckFilterSupport reports whether the local ffmpeg build has the filter.
// drawtext in particular is missing from builds without libfreetype.
func CheckFilterSupport(name string) bool {
	filtersOnce.Do(func() { filtersOut = ffmpegList("-filters") })
	return hasListEntry(filtersOut, name)
}

// hasListEntry matches a name in the second column of ffmpeg's capability
// listings (" T.. drawtext  V->V  Draw text ...").
func hasListEntry(listing, name string) bool {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

// MediaDuration returns a media file's duration in seconds via ffprobe.
func MediaDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: неожиданный вывод %q", path, strings.TrimSpace(string(out)))
	}
	return duration, nil
}
