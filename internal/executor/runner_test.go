package executor

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
)

type fakePublisher struct {
	logs          []Event
	stale         int
	schemaWarning []error
}

func (f *fakePublisher) PublishLog(spec Spec, ev Event) { f.logs = append(f.logs, ev) }
func (f *fakePublisher) PublishStale(spec Spec)         { f.stale++ }
func (f *fakePublisher) PublishSchemaWarning(spec Spec, err error) {
	f.schemaWarning = append(f.schemaWarning, err)
}

func TestRunnerRunExtractsResultFromClaudeStream(t *testing.T) {
	script := `echo '{"type":"assistant","content":"working"}'; echo '{"type":"result","result":{"summary":"done","result":"ok"}}'`
	cmdFactory := func(spec Spec) (*exec.Cmd, error) {
		return exec.Command("sh", "-c", script), nil
	}

	pub := &fakePublisher{}
	r := NewRunner(Claude, cmdFactory, pub, nil)
	r.Sampler = nil // no child process metrics needed for this test
	r.SessionLogDir = filepath.Join(t.TempDir(), "logs")

	res, err := r.Run(context.Background(), Spec{TaskID: "t1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false, err = %v", res.Err)
	}
	if res.Output["summary"] != "done" {
		t.Errorf("summary = %v, want done", res.Output["summary"])
	}
	if len(pub.logs) != 2 {
		t.Errorf("published %d log events, want 2", len(pub.logs))
	}
}

func TestRunnerRunCodexIgnoresTurnCompletedResultField(t *testing.T) {
	script := `echo '{"type":"item.created","item":{"text":"{\"summary\":\"from-text\",\"result\":\"r\"}"}}'; echo '{"type":"turn.completed","result":"should not be used"}'`
	cmdFactory := func(spec Spec) (*exec.Cmd, error) {
		return exec.Command("sh", "-c", script), nil
	}

	r := NewRunner(Codex, cmdFactory, nil, nil)
	r.Sampler = nil

	res, err := r.Run(context.Background(), Spec{TaskID: "t2"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Success || res.Output["summary"] != "from-text" {
		t.Fatalf("res = %+v", res)
	}
}

func TestRunnerRunSchemaMismatchFatalForValidatorRole(t *testing.T) {
	script := `echo '{"type":"result","result":{"summary":"no result field here"}}'`
	cmdFactory := func(spec Spec) (*exec.Cmd, error) {
		return exec.Command("sh", "-c", script), nil
	}

	r := NewRunner(Claude, cmdFactory, nil, nil)
	r.Sampler = nil

	spec := Spec{
		TaskID:         "t3",
		SchemaRequired: true,
		JSONSchema: map[string]any{
			"type":     "object",
			"required": []any{"summary", "result"},
		},
	}
	res, err := r.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Success {
		t.Error("expected schema mismatch to fail a schema-required task")
	}
}

func TestRunnerRunSchemaMismatchPublishesWarningForNonValidatorRole(t *testing.T) {
	script := `echo '{"type":"result","result":{"summary":"no result field here"}}'`
	cmdFactory := func(spec Spec) (*exec.Cmd, error) {
		return exec.Command("sh", "-c", script), nil
	}

	pub := &fakePublisher{}
	r := NewRunner(Claude, cmdFactory, pub, nil)
	r.Sampler = nil

	spec := Spec{
		TaskID:         "t3b",
		SchemaRequired: false,
		JSONSchema: map[string]any{
			"type":     "object",
			"required": []any{"summary", "result"},
		},
	}
	res, err := r.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Success {
		t.Error("a schema mismatch for a non-required task must still return the best-effort output")
	}
	if len(pub.schemaWarning) != 1 {
		t.Fatalf("schemaWarning publishes = %d, want 1", len(pub.schemaWarning))
	}
}

func TestRunnerRunProcessExitErrorIsReported(t *testing.T) {
	cmdFactory := func(spec Spec) (*exec.Cmd, error) {
		return exec.Command("sh", "-c", "exit 1"), nil
	}

	r := NewRunner(Claude, cmdFactory, nil, nil)
	r.Sampler = nil

	res, err := r.Run(context.Background(), Spec{TaskID: "t4"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Success {
		t.Error("expected failure for non-zero exit")
	}
}
