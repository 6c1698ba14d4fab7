package director

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// GenerateCueSheetPath creates a timestamped cue sheet filename in dir.
func GenerateCueSheetPath(dir, storyID string, now time.Time) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, storyID)
	if name == "" {
		name = "timeline"
	}
	return filepath.Join(dir, fmt.Sprintf("cues_%s_%s.yaml", name, now.Format("2006-01-02_15-04-05")))
}

// FindLatestCueSheet finds the most recently modified cue sheet in dir.
func FindLatestCueSheet(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read cue sheet directory: %w", err)
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var sheets []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "cues_") || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sheets = append(sheets, candidate{filepath.Join(dir, entry.Name()), info.ModTime()})
	}

	if len(sheets) == 0 {
		return "", fmt.Errorf("no cue sheets found in %s", dir)
	}

	// Newest first
	sort.Slice(sheets, func(i, j int) bool {
		return sheets[i].mod.After(sheets[j].mod)
	})

	return sheets[0].path, nil
}
