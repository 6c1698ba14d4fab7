// Package progress записывает состояние фаз рендера в _progress.json, чтобы
// браузер мог опрашивать его во время долгой сборки.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	ProgressFile    = "_progress.json"
	PhaseStatusFile = "_phase_status.txt"

	DefaultHeartbeat = 30 * time.Second
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
)

// Фазы офлайн-рендера в порядке выполнения.
var DefaultPhases = []string{"resolve", "encode", "compose"}

// Report — содержимое _progress.json.
type Report struct {
	JobID       string            `json:"job_id"`
	Workflow    string            `json:"workflow"`
	UpdatedTS   string            `json:"updated_ts"`
	Phases      map[string]Status `json:"phases"`
	PhaseOrder  []string          `json:"phase_order"`
	CurrentStep string            `json:"current_step"`
	StoryPath   string            `json:"story_path"`
	PID         int               `json:"pid"`
	Error       string            `json:"error,omitempty"`
	Traceback   string            `json:"traceback,omitempty"`
}

type Options struct {
	JobID     string
	Workflow  string
	Phases    []string
	Heartbeat time.Duration
	Logger    zerolog.Logger
}

// Tracker ведёт фазы одного запуска. Методы безопасны для nil-трекера,
// так что рендер без каталога прогресса просто ничего не пишет.
type Tracker struct {
	dir       string
	jobID     string
	workflow  string
	order     []string
	heartbeat time.Duration
	logger    zerolog.Logger

	mu     sync.Mutex
	phases map[string]Status
	step   string
	stop   chan struct{}
	wg     sync.WaitGroup
}

func New(dir string, opts Options) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога прогресса: %w", err)
	}
	order := opts.Phases
	if len(order) == 0 {
		order = DefaultPhases
	}
	workflow := opts.Workflow
	if workflow == "" {
		workflow = "story"
	}
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}

	t := &Tracker{
		dir:       dir,
		jobID:     opts.JobID,
		workflow:  workflow,
		order:     append([]string(nil), order...),
		heartbeat: heartbeat,
		logger:    opts.Logger,
		phases:    make(map[string]Status, len(order)),
	}
	for _, p := range t.order {
		t.phases[p] = StatusPending
	}
	return t, nil
}

func (t *Tracker) Dir() string {
	if t == nil {
		return ""
	}
	return t.dir
}

// Start помечает фазу как running и запускает heartbeat, который
// обновляет updated_ts, пока фаза не закончится.
func (t *Tracker) Start(phase, step string) {
	if t == nil {
		return
	}
	t.stopHeartbeat()

	t.mu.Lock()
	if _, ok := t.phases[phase]; !ok {
		t.order = append(t.order, phase)
	}
	t.phases[phase] = StatusRunning
	t.step = step
	t.mu.Unlock()

	t.writePhaseStatus(phase)
	t.write()

	stop := make(chan struct{})
	t.mu.Lock()
	t.stop = stop
	t.mu.Unlock()
	t.wg.Add(1)
	go t.heartbeatLoop(stop)
}

func (t *Tracker) Finish(phase, step string) {
	if t == nil {
		return
	}
	t.stopHeartbeat()
	t.mu.Lock()
	t.phases[phase] = StatusDone
	t.step = step
	t.mu.Unlock()
	t.write()
}

// Complete помечает все фазы выполненными.
func (t *Tracker) Complete() {
	if t == nil {
		return
	}
	t.stopHeartbeat()
	t.mu.Lock()
	for _, p := range t.order {
		t.phases[p] = StatusDone
	}
	t.step = ""
	t.mu.Unlock()
	t.writePhaseStatus("complete")
	t.write()
}

// Fail останавливает heartbeat и дописывает ошибку в отчёт.
func (t *Tracker) Fail(err error) {
	if t == nil || err == nil {
		return
	}
	t.stopHeartbeat()
	if werr := WriteError(t.dir, err.Error(), errorChain(err)); werr != nil {
		t.logger.Warn().Err(werr).Str("dir", t.dir).Msg("не удалось записать ошибку прогресса")
	}
}

// Snapshot возвращает текущее состояние без записи на диск.
func (t *Tracker) Snapshot() Report {
	if t == nil {
		return Report{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	phases := make(map[string]Status, len(t.phases))
	for k, v := range t.phases {
		phases[k] = v
	}
	path, err := filepath.Abs(t.dir)
	if err != nil {
		path = t.dir
	}
	return Report{
		JobID:       t.jobID,
		Workflow:    t.workflow,
		UpdatedTS:   time.Now().UTC().Format(time.RFC3339Nano),
		Phases:      phases,
		PhaseOrder:  append([]string(nil), t.order...),
		CurrentStep: t.step,
		StoryPath:   path,
		PID:         os.Getpid(),
	}
}

func (t *Tracker) heartbeatLoop(stop <-chan struct{}) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.write()
		}
	}
}

func (t *Tracker) stopHeartbeat() {
	t.mu.Lock()
	stop := t.stop
	t.stop = nil
	t.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	t.wg.Wait()
}

func (t *Tracker) write() {
	data, err := json.MarshalIndent(t.Snapshot(), "", "  ")
	if err == nil {
		err = writeAtomic(filepath.Join(t.dir, ProgressFile), data)
	}
	if err != nil {
		t.logger.Warn().Err(err).Str("dir", t.dir).Msg("не удалось записать прогресс")
	}
}

func (t *Tracker) writePhaseStatus(phase string) {
	if err := writeAtomic(filepath.Join(t.dir, PhaseStatusFile), []byte("phase="+phase+"\n")); err != nil {
		t.logger.Warn().Err(err).Str("phase", phase).Msg("не удалось записать статус фазы")
	}
}

// WriteError вливает ошибку в существующий _progress.json, сохраняя фазы.
// Нечитаемый файл заменяется отчётом с одной ошибкой.
func WriteError(dir, message, traceback string) error {
	path := filepath.Join(dir, ProgressFile)
	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
			doc = map[string]any{}
		}
	}
	doc["error"] = message
	doc["traceback"] = traceback
	doc["updated_ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// Ensure создаёт каталог и начальный отчёт, если его ещё нет.
func Ensure(dir string, phases []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, ProgressFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if len(phases) == 0 {
		phases = DefaultPhases
	}
	data, err := json.Marshal(Report{Phases: map[string]Status{}, PhaseOrder: phases})
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

func Read(dir string) (Report, error) {
	var r Report
	data, err := os.ReadFile(filepath.Join(dir, ProgressFile))
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("ошибка чтения %s: %w", ProgressFile, err)
	}
	return r, nil
}

// errorChain раскладывает обёрнутую ошибку по строкам, от внешней к причине.
func errorChain(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "\n")
}

// writeAtomic пишет через временный файл, чтобы читатель не увидел
// недописанный JSON.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
