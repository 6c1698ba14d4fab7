package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const exampleManifest = `{"story_id":"s1","methods":{"render":[{"method":"render","video_file":"a.mp4"},{"method":"render","video_file":"b.mp4"}],"caption":[{"method":"caption","video_file":"c.mp4"}]}}`

func staticDir(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	if manifest != "" {
		if err := os.WriteFile(filepath.Join(dir, "remotion_input.json"), []byte(manifest), 0o644); err != nil {
			t.Fatalf("write manifest: %v", err)
		}
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestLayoutJSON(t *testing.T) {
	dir := staticDir(t, exampleManifest)
	out, err := runCLI(t, "layout", "--static-dir", dir, "--format", "json")
	if err != nil {
		t.Fatalf("layout failed: %v\n%s", err, out)
	}

	var layout struct {
		StoryID     string `json:"story_id"`
		Heading     string `json:"heading"`
		Placeholder bool   `json:"placeholder"`
		Columns     []struct {
			Name       string `json:"name"`
			CountLabel string `json:"count_label"`
		} `json:"columns"`
	}
	if err := json.Unmarshal([]byte(out), &layout); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if layout.StoryID != "s1" || layout.Placeholder {
		t.Errorf("Unexpected layout: %+v", layout)
	}
	if len(layout.Columns) != 2 || layout.Columns[0].Name != "render" || layout.Columns[1].Name != "caption" {
		t.Fatalf("Unexpected columns: %+v", layout.Columns)
	}
	if layout.Columns[0].CountLabel != "2 Scenes" {
		t.Errorf("Unexpected count label %q", layout.Columns[0].CountLabel)
	}
}

func TestLayoutTableFallsBackToPlaceholder(t *testing.T) {
	dir := staticDir(t, "")
	out, err := runCLI(t, "layout", "--static-dir", dir)
	if err != nil {
		t.Fatalf("layout failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "preview_default") {
		t.Errorf("Expected fallback story in heading, got:\n%s", out)
	}
	if !strings.Contains(out, "No methods found in remotion_input.json") {
		t.Errorf("Expected placeholder text, got:\n%s", out)
	}
}

func TestLayoutWritesCueSheet(t *testing.T) {
	dir := staticDir(t, exampleManifest)
	cues := filepath.Join(t.TempDir(), "cues.yaml")
	out, err := runCLI(t, "layout", "--static-dir", dir, "--cues-out", cues)
	if err != nil {
		t.Fatalf("layout failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "a.mp4") || !strings.Contains(out, "CAPTION") {
		t.Errorf("Expected scenes in table, got:\n%s", out)
	}
	data, err := os.ReadFile(cues)
	if err != nil {
		t.Fatalf("read cue sheet: %v", err)
	}
	if !strings.Contains(string(data), "story_id: s1") {
		t.Errorf("Unexpected cue sheet:\n%s", data)
	}
}

func TestCuesReadsNewestSheet(t *testing.T) {
	dir := staticDir(t, exampleManifest)
	cuesDir := filepath.Join(t.TempDir(), "cues")
	if out, err := runCLI(t, "layout", "--static-dir", dir, "--cues-dir", cuesDir, "--format", "json"); err != nil {
		t.Fatalf("layout failed: %v\n%s", err, out)
	}
	entries, err := os.ReadDir(cuesDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Expected one cue sheet in %s, got %v (%v)", cuesDir, entries, err)
	}
	if name := entries[0].Name(); !strings.HasPrefix(name, "cues_s1_") || !strings.HasSuffix(name, ".yaml") {
		t.Errorf("Unexpected cue sheet name %q", name)
	}

	out, err := runCLI(t, "cues", "--dir", cuesDir)
	if err != nil {
		t.Fatalf("cues failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "s1  240 frames @ 30 fps") || !strings.Contains(out, "c.mp4") {
		t.Errorf("Unexpected cues output:\n%s", out)
	}

	out, err = runCLI(t, "cues", filepath.Join(cuesDir, entries[0].Name()), "--format", "yaml")
	if err != nil {
		t.Fatalf("cues failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "version: \"1.0\"") || !strings.Contains(out, "story_id: s1") {
		t.Errorf("Unexpected yaml:\n%s", out)
	}
}

func TestCuesWithoutSheets(t *testing.T) {
	if _, err := runCLI(t, "cues", "--dir", t.TempDir()); err == nil {
		t.Error("Expected error for empty cue sheet dir")
	}
}

func TestLayoutRejectsUnknownFormat(t *testing.T) {
	dir := staticDir(t, exampleManifest)
	if _, err := runCLI(t, "layout", "--static-dir", dir, "--format", "xml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestCompositionsJSON(t *testing.T) {
	out, err := runCLI(t, "compositions", "--json")
	if err != nil {
		t.Fatalf("compositions failed: %v\n%s", err, out)
	}
	var list []struct {
		ID               string `json:"id"`
		FPS              int    `json:"fps"`
		Width            int    `json:"width"`
		Height           int    `json:"height"`
		DurationInFrames int    `json:"duration_in_frames"`
	}
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(list) != 1 {
		t.Fatalf("Expected one composition, got %d", len(list))
	}
	c := list[0]
	if c.ID != "StitchPreview" || c.FPS != 30 || c.Width != 1920 || c.Height != 1080 || c.DurationInFrames != 1200 {
		t.Errorf("Unexpected composition: %+v", c)
	}
}

func TestPosterWritesPNG(t *testing.T) {
	dir := staticDir(t, exampleManifest)
	output := filepath.Join(t.TempDir(), "frame.png")
	out, err := runCLI(t, "poster", "--static-dir", dir, "--frame", "130", "--output", output)
	if err != nil {
		t.Fatalf("poster failed: %v\n%s", err, out)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read poster: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("Expected PNG signature")
	}
}

func TestManifestRoute(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"remotion_input.json", "remotion_input.json"},
		{"/data/input.json", "data/input.json"},
		{"https://cdn.example.com/stories/input.json?sig=1", "input.json"},
		{"s3://bucket/key/manifest.json", "manifest.json"},
	}
	for _, tt := range tests {
		if got := manifestRoute(tt.in); got != tt.want {
			t.Errorf("manifestRoute(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLocalURL(t *testing.T) {
	if got := localURL("127.0.0.1:8081"); got != "http://127.0.0.1:8081" {
		t.Errorf("Unexpected url %q", got)
	}
	if got := localURL(":8081"); !strings.HasPrefix(got, "http://") || !strings.HasSuffix(got, ":8081") {
		t.Errorf("Unexpected url %q", got)
	}
}
