package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTracker(t *testing.T, heartbeat time.Duration) (*Tracker, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "story")
	tr, err := New(dir, Options{JobID: "job-1", Workflow: "StitchPreview", Heartbeat: heartbeat, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tr, dir
}

func readPhaseStatus(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, PhaseStatusFile))
	if err != nil {
		t.Fatalf("read phase status: %v", err)
	}
	return string(data)
}

func TestPhaseTransitions(t *testing.T) {
	tr, dir := newTracker(t, time.Hour)

	tr.Start("resolve", "remotion_input.json")
	r, err := Read(dir)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := map[string]Status{"resolve": StatusRunning, "encode": StatusPending, "compose": StatusPending}
	if !reflect.DeepEqual(r.Phases, want) {
		t.Errorf("Unexpected phases after start: %v", r.Phases)
	}
	if r.JobID != "job-1" || r.Workflow != "StitchPreview" || r.CurrentStep != "remotion_input.json" || r.PID != os.Getpid() {
		t.Errorf("Unexpected report: %+v", r)
	}
	if !reflect.DeepEqual(r.PhaseOrder, DefaultPhases) {
		t.Errorf("Unexpected phase order: %v", r.PhaseOrder)
	}
	if got := readPhaseStatus(t, dir); got != "phase=resolve\n" {
		t.Errorf("Unexpected phase status %q", got)
	}

	tr.Finish("resolve", "s1")
	tr.Start("encode", "2 tracks")
	r, _ = Read(dir)
	if r.Phases["resolve"] != StatusDone || r.Phases["encode"] != StatusRunning || r.Phases["compose"] != StatusPending {
		t.Errorf("Unexpected phases mid-run: %v", r.Phases)
	}

	tr.Complete()
	r, _ = Read(dir)
	for _, p := range DefaultPhases {
		if r.Phases[p] != StatusDone {
			t.Errorf("Phase %s not done after Complete: %v", p, r.Phases)
		}
	}
	if got := readPhaseStatus(t, dir); got != "phase=complete\n" {
		t.Errorf("Unexpected phase status %q", got)
	}
	if _, err := time.Parse(time.RFC3339Nano, r.UpdatedTS); err != nil {
		t.Errorf("updated_ts is not RFC 3339: %q", r.UpdatedTS)
	}
}

func TestUnknownPhaseIsAppended(t *testing.T) {
	tr, dir := newTracker(t, time.Hour)
	tr.Start("upload", "")
	tr.Finish("upload", "")
	r, _ := Read(dir)
	if r.PhaseOrder[len(r.PhaseOrder)-1] != "upload" || r.Phases["upload"] != StatusDone {
		t.Errorf("Unexpected report: %+v", r)
	}
}

func TestHeartbeatRefreshesReport(t *testing.T) {
	tr, dir := newTracker(t, 10*time.Millisecond)
	tr.Start("encode", "")
	defer tr.Finish("encode", "")

	path := filepath.Join(dir, ProgressFile)
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
		data, err := os.ReadFile(path)
		if err == nil && string(data) != string(first) {
			return
		}
	}
	t.Fatal("heartbeat never rewrote the report")
}

func TestFailMergesError(t *testing.T) {
	tr, dir := newTracker(t, time.Hour)
	tr.Start("resolve", "")
	tr.Finish("resolve", "")
	tr.Start("encode", "")

	cause := errors.New("ffmpeg exited with status 1")
	tr.Fail(fmt.Errorf("track %q: %w", "render", cause))

	r, err := Read(dir)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if r.Error != `track "render": ffmpeg exited with status 1` {
		t.Errorf("Unexpected error %q", r.Error)
	}
	if !strings.HasSuffix(r.Traceback, "\nffmpeg exited with status 1") {
		t.Errorf("Traceback misses the cause: %q", r.Traceback)
	}
	if r.Phases["resolve"] != StatusDone || r.Phases["encode"] != StatusRunning || r.JobID != "job-1" {
		t.Errorf("Error merge lost the phases: %+v", r)
	}
}

func TestWriteErrorWithoutReport(t *testing.T) {
	dir := t.TempDir()
	if err := WriteError(dir, "boom", ""); err != nil {
		t.Fatalf("WriteError failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ProgressFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteError(dir, "again", "trace"); err != nil {
		t.Fatalf("WriteError failed: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, ProgressFile))
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if doc["error"] != "again" || doc["traceback"] != "trace" || doc["updated_ts"] == "" {
		t.Errorf("Unexpected report: %v", doc)
	}
}

func TestEnsureKeepsExistingReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "new")
	if err := Ensure(dir, nil); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	r, err := Read(dir)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(r.Phases) != 0 || !reflect.DeepEqual(r.PhaseOrder, DefaultPhases) {
		t.Errorf("Unexpected initial report: %+v", r)
	}

	if err := WriteError(dir, "kept", ""); err != nil {
		t.Fatal(err)
	}
	if err := Ensure(dir, nil); err != nil {
		t.Fatal(err)
	}
	if r, _ := Read(dir); r.Error != "kept" {
		t.Error("Ensure overwrote an existing report")
	}
}

func TestNilTrackerIsNoop(t *testing.T) {
	var tr *Tracker
	tr.Start("resolve", "")
	tr.Finish("resolve", "")
	tr.Fail(errors.New("x"))
	tr.Complete()
	if tr.Dir() != "" {
		t.Error("Expected empty dir")
	}
}
