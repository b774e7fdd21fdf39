package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SessionLogHeader is the first line written to a task's session log,
// identifying the run before any provider events arrive.
type SessionLogHeader struct {
	Kind       string `json:"kind"`
	TaskID     string `json:"taskId"`
	ClusterID  string `json:"clusterId"`
	AgentID    string `json:"agentId"`
	Provider   string `json:"provider"`
	Model      string `json:"model,omitempty"`
	ModelLevel string `json:"modelLevel,omitempty"`
	Iteration  int    `json:"iteration"`
	StartedAt  int64  `json:"startedAtMs"`
}

// SessionLogTrailer is the last line, written once the task's process
// has exited and its result (or failure) is known.
type SessionLogTrailer struct {
	Kind         string `json:"kind"`
	TaskID       string `json:"taskId"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	FinishedAt   int64  `json:"finishedAtMs"`
	InputTokens  int64  `json:"inputTokens,omitempty"`
	OutputTokens int64  `json:"outputTokens,omitempty"`
	CostUSD      float64 `json:"costUsd,omitempty"`
}

// SessionLog is a per-task append-only JSONL file: a header line, one
// line per raw provider event as it streams in, and a trailer line once
// the task finishes. Grounded on the teacher's practice of writing a
// structured session transcript alongside every run for later replay
// and debugging, adapted here to a single file per task rather than
// per-process-lifetime.
type SessionLog struct {
	f *os.File
}

// OpenSessionLog creates (or truncates) the log file at path and writes
// the header line.
func OpenSessionLog(path string, header SessionLogHeader) (*SessionLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("executor: create session log dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("executor: open session log: %w", err)
	}
	header.Kind = "header"
	sl := &SessionLog{f: f}
	if err := sl.writeLine(header); err != nil {
		f.Close()
		return nil, err
	}
	return sl, nil
}

// WriteEvent appends one raw provider event line.
func (s *SessionLog) WriteEvent(ev Event) error {
	wrapped := map[string]any{"kind": "event", "event": ev.Raw}
	return s.writeLine(wrapped)
}

// WriteTrailer appends the closing trailer line and closes the file.
func (s *SessionLog) WriteTrailer(trailer SessionLogTrailer) error {
	trailer.Kind = "trailer"
	if err := s.writeLine(trailer); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

func (s *SessionLog) writeLine(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("executor: marshal session log line: %w", err)
	}
	b = append(b, '\n')
	if _, err := s.f.Write(b); err != nil {
		return fmt.Errorf("executor: write session log line: %w", err)
	}
	return nil
}

// NowMillis is the time source session log timestamps use; a package
// var so tests can stub it without touching the forbidden Date.now
// equivalents in higher-level orchestration code.
var NowMillis = func() int64 { return time.Now().UnixMilli() }
