package director

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ivlev/stitchpreview/internal/sequencer"
	"github.com/ivlev/stitchpreview/internal/timeline"
)

func exampleSheet() *CueSheet {
	desc := timeline.Description{
		StoryID: "s1",
		Tracks: []timeline.Track{
			{Name: "render", Scenes: []timeline.SceneBlock{
				{Method: "render", VideoFile: "a.mp4"},
				{Method: "render", VideoFile: "b.mp4"},
			}},
			{Name: "caption", Scenes: []timeline.SceneBlock{
				{Method: "caption", VideoFile: "c.mp4"},
			}},
		},
	}
	layout := sequencer.Sequence(desc, sequencer.DefaultOptions(1920, 1080, 120))
	return Build("StitchPreview", 30, layout)
}

func TestBuild(t *testing.T) {
	sheet := exampleSheet()

	if sheet.Version != "1.0" || sheet.StoryID != "s1" || sheet.FPS != 30 || sheet.SceneDurationFrames != 120 {
		t.Errorf("Unexpected header: %+v", sheet)
	}
	if len(sheet.Tracks) != 2 || sheet.Tracks[0].Name != "render" || sheet.Tracks[1].Name != "caption" {
		t.Fatalf("Unexpected tracks: %+v", sheet.Tracks)
	}

	want := []Cue{
		{Index: 0, Method: "render", VideoFile: "a.mp4", StartFrame: 0, EndFrame: 120, Start: 0, End: 4},
		{Index: 1, Method: "render", VideoFile: "b.mp4", StartFrame: 120, EndFrame: 240, Start: 4, End: 8},
	}
	if !reflect.DeepEqual(sheet.Tracks[0].Cues, want) {
		t.Errorf("Unexpected render cues: %+v", sheet.Tracks[0].Cues)
	}
	if sheet.Tracks[0].Title != "RENDER" || sheet.Tracks[0].Label != "2 Scenes" {
		t.Errorf("Unexpected render labels: %+v", sheet.Tracks[0])
	}
	if sheet.Duration() != 240 {
		t.Errorf("Expected duration 240, got %d", sheet.Duration())
	}
}

func TestBuildPlaceholder(t *testing.T) {
	layout := sequencer.Sequence(timeline.Default(), sequencer.DefaultOptions(1920, 1080, 120))
	sheet := Build("StitchPreview", 30, layout)
	if !sheet.Placeholder || len(sheet.Tracks) != 0 || sheet.Duration() != 0 {
		t.Errorf("Unexpected placeholder sheet: %+v", sheet)
	}
}

func TestCueSheetRoundTrip(t *testing.T) {
	sheet := exampleSheet()
	path := filepath.Join(t.TempDir(), "cues.yaml")

	if err := WriteCueSheet(sheet, path); err != nil {
		t.Fatalf("WriteCueSheet failed: %v", err)
	}
	got, err := ReadCueSheet(path)
	if err != nil {
		t.Fatalf("ReadCueSheet failed: %v", err)
	}
	if !reflect.DeepEqual(got, sheet) {
		t.Errorf("Round trip mismatch:\nwant %+v\ngot  %+v", sheet, got)
	}
}

func TestEncodeCueSheetKeepsTrackOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeCueSheet(&buf, exampleSheet()); err != nil {
		t.Fatalf("EncodeCueSheet failed: %v", err)
	}
	out := buf.String()
	if strings.Index(out, "name: render") > strings.Index(out, "name: caption") {
		t.Errorf("Tracks out of order:\n%s", out)
	}
	if !strings.Contains(out, "video_file: b.mp4") {
		t.Errorf("Missing cue:\n%s", out)
	}
}

func TestReadCueSheetRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cues.yaml")
	if err := os.WriteFile(path, []byte("version: \"9\"\ntracks: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadCueSheet(path); err == nil {
		t.Error("Expected version error")
	}
}

func TestGenerateCueSheetPath(t *testing.T) {
	now := time.Date(2026, 2, 13, 1, 0, 0, 0, time.UTC)
	got := GenerateCueSheetPath("out", "story one/two", now)
	want := filepath.Join("out", "cues_story_one_two_2026-02-13_01-00-00.yaml")
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if got := GenerateCueSheetPath("out", "", now); !strings.Contains(got, "cues_timeline_") {
		t.Errorf("Expected fallback name, got %s", got)
	}
}

func TestFindLatestCueSheet(t *testing.T) {
	dir := t.TempDir()
	files := []string{"cues_a.yaml", "cues_b.yaml", "cues_c.yaml"}
	base := time.Now().Add(-time.Hour)
	for i, name := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("version: \"1.0\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		mod := base.Add(time.Duration(i) * time.Minute)
		if name == "cues_b.yaml" {
			mod = base.Add(30 * time.Minute)
		}
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.yaml"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	latest, err := FindLatestCueSheet(dir)
	if err != nil {
		t.Fatalf("FindLatestCueSheet failed: %v", err)
	}
	if filepath.Base(latest) != "cues_b.yaml" {
		t.Errorf("Expected cues_b.yaml, got %s", latest)
	}

	if _, err := FindLatestCueSheet(t.TempDir()); err == nil {
		t.Error("Expected error for empty directory")
	}
}
