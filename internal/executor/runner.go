package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"
)

// Spec describes one task execution: which provider CLI to spawn, with
// what model configuration, against what prompt, and how its output
// must be shaped.
type Spec struct {
	TaskID          string
	ClusterID       string
	AgentID         string
	Provider        string
	Model           string
	ModelLevel      string
	ReasoningEffort string
	Isolation       string
	WorkDir         string
	Prompt          string
	Iteration       int

	JSONSchema     map[string]any
	SchemaRequired bool
}

// Result is the outcome of one Run call.
type Result struct {
	TaskID       string
	Success      bool
	Output       map[string]any
	Err          error
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// Publisher republishes streamed task output, stale notices, and
// schema-validation warnings onto the cluster's message bus. The
// executor package stays ledger/bus agnostic; callers (internal/cmd)
// implement this against the real bus.
type Publisher interface {
	PublishLog(spec Spec, ev Event)
	PublishStale(spec Spec)
	PublishSchemaWarning(spec Spec, err error)
}

// CommandFactory builds the *exec.Cmd for a task. Kept pluggable
// because the actual provider CLI invocation (argv, env, working
// directory, sandboxing/isolation flags) is an operator/deployment
// concern, not something the runtime can hardcode once and for all
// providers.
type CommandFactory func(spec Spec) (*exec.Cmd, error)

// Runner spawns a provider CLI for a task, tails its structured
// output, watches it for liveness, and extracts the final structured
// result once it exits. Grounded on the shape of the teacher's task
// runner: build command, stream output, wait, extract.
type Runner struct {
	Dialect          Dialect
	Command          CommandFactory
	Retry            RetryPolicy
	LivenessInterval time.Duration
	StaleDuration    time.Duration
	Sampler          Sampler
	SessionLogDir    string
	Publisher        Publisher
	Logger           *slog.Logger
}

// NewRunner builds a Runner with the package's conservative defaults
// for retry/liveness timing, overridable via the returned struct's
// fields before the first Run call.
func NewRunner(dialect Dialect, cmd CommandFactory, pub Publisher, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		Dialect:          dialect,
		Command:          cmd,
		Retry:            DefaultRetryPolicy(),
		LivenessInterval: 10 * time.Second,
		StaleDuration:    30 * time.Minute,
		Sampler:          ProcSampler{},
		Publisher:        pub,
		Logger:           logger,
	}
}

// Run spawns the task's provider process, streams and republishes its
// output, watches for staleness, waits for exit, and extracts the
// task's structured result.
func (r *Runner) Run(ctx context.Context, spec Spec) (*Result, error) {
	cmd, err := r.Command(spec)
	if err != nil {
		return nil, fmt.Errorf("executor: build command for task %s: %w", spec.TaskID, err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("executor: stdout pipe: %w", err)
	}

	var log *SessionLog
	if r.SessionLogDir != "" {
		log, err = OpenSessionLog(filepath.Join(r.SessionLogDir, spec.TaskID+".jsonl"), SessionLogHeader{
			TaskID:     spec.TaskID,
			ClusterID:  spec.ClusterID,
			AgentID:    spec.AgentID,
			Provider:   spec.Provider,
			Model:      spec.Model,
			ModelLevel: spec.ModelLevel,
			Iteration:  spec.Iteration,
			StartedAt:  NowMillis(),
		})
		if err != nil {
			r.Logger.Warn("executor: could not open session log", "task", spec.TaskID, "err", err)
			log = nil
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("executor: start provider process: %w", err)
	}

	var monitor *LivenessMonitor
	if r.Sampler != nil && cmd.Process != nil {
		monitor = NewLivenessMonitor(r.Sampler, r.livenessInterval(), r.staleDuration(), func() {
			r.Logger.Warn("executor: task appears stuck", "task", spec.TaskID)
			if r.Publisher != nil {
				r.Publisher.PublishStale(spec)
			}
		})
		monitor.Start(ctx, cmd.Process.Pid)
	}

	events := r.followOutput(stdout, spec, log)

	waitErr := cmd.Wait()
	if monitor != nil {
		monitor.Stop()
	}

	result, extractErr := ExtractResult(r.Dialect, events)

	res := &Result{TaskID: spec.TaskID}
	switch {
	case waitErr != nil:
		res.Err = fmt.Errorf("executor: provider process exited with error: %w", waitErr)
	case extractErr != nil:
		res.Err = extractErr
	default:
		res.Success = true
		res.Output = result
	}

	if res.Success && len(spec.JSONSchema) > 0 {
		if schemaErr := ValidateSchema(res.Output, spec.JSONSchema); schemaErr != nil {
			if spec.SchemaRequired {
				res.Success = false
				res.Err = schemaErr
			} else {
				r.Logger.Warn("executor: output did not match schema", "task", spec.TaskID, "err", schemaErr)
				if r.Publisher != nil {
					r.Publisher.PublishSchemaWarning(spec, schemaErr)
				}
			}
		}
	}

	if log != nil {
		trailer := SessionLogTrailer{
			TaskID:     spec.TaskID,
			Success:    res.Success,
			FinishedAt: NowMillis(),
		}
		if res.Err != nil {
			trailer.Error = res.Err.Error()
		}
		if err := log.WriteTrailer(trailer); err != nil {
			r.Logger.Warn("executor: could not write session log trailer", "task", spec.TaskID, "err", err)
		}
	}

	return res, nil
}

// followOutput reads the child's stdout line by line, parsing each
// into an Event, republishing it as it arrives, and appending it to
// the accumulated event list for later extraction. Reading continues
// until the process closes its stdout (normal exit or crash); it is
// not stopped early on a terminal event because the process must still
// be waited on.
func (r *Runner) followOutput(stdout io.Reader, spec Spec, log *SessionLog) []Event {
	var events []Event
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), 10*1024*1024)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := ParseLine(line)
		if err != nil {
			r.Logger.Debug("executor: skipping unparsable output line", "task", spec.TaskID, "err", err)
			continue
		}
		events = append(events, ev)

		if log != nil {
			if err := log.WriteEvent(ev); err != nil {
				r.Logger.Warn("executor: could not write session log event", "task", spec.TaskID, "err", err)
			}
		}
		if r.Publisher != nil {
			r.Publisher.PublishLog(spec, ev)
		}
	}
	return events
}

func (r *Runner) livenessInterval() time.Duration {
	if r.LivenessInterval > 0 {
		return r.LivenessInterval
	}
	return 10 * time.Second
}

func (r *Runner) staleDuration() time.Duration {
	if r.StaleDuration > 0 {
		return r.StaleDuration
	}
	return 30 * time.Minute
}
