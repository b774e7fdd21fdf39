package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/google/uuid"

	"github.com/orc-run/orc/internal/agent"
	"github.com/orc-run/orc/internal/bus"
	"github.com/orc-run/orc/internal/executor"
	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/logic"
	"github.com/orc-run/orc/internal/message"
	"github.com/orc-run/orc/internal/orchestrator"
	"github.com/orc-run/orc/internal/telemetry"
)

// openStore constructs the ledger backend cfg.Ledger names.
func openStore(ctx context.Context) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case "", "file":
		return ledger.OpenFileStore(cfg.Ledger.Path)
	case "sql":
		return ledger.OpenSQLStore(ctx, cfg.Ledger.DSN)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

// runnerFactory adapts a provider name to a *executor.Runner that
// shells out to that provider's CLI binary on PATH, passing the
// rendered prompt on stdin and streaming newline-delimited JSON events
// from stdout. Every task-stream event, stale notice, and schema
// warning the runner produces is republished onto b so the rest of the
// cluster can observe it — TASK_LOG, TASK_STALE, and SCHEMA_WARNING are
// live topics, not just reserved names.
func runnerFactory(b *bus.Bus, log *slog.Logger) orchestrator.RunnerFactory {
	pub := busPublisher{bus: b, log: log}
	return func(provider string) (agent.TaskRunner, error) {
		dialect, ok := executor.ByName(provider)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", provider)
		}
		factory := func(spec executor.Spec) (*exec.Cmd, error) {
			cmd := exec.Command(provider, "--print", "--output-format", "stream-json")
			if spec.WorkDir != "" {
				cmd.Dir = spec.WorkDir
			}
			cmd.Stdin = strings.NewReader(spec.Prompt)
			return cmd, nil
		}
		return executor.NewRunner(dialect, factory, pub, log), nil
	}
}

// busPublisher implements executor.Publisher against the real bus.
// spec already carries the resolved model/provider for the task, so
// every republished message is stamped the same way agent.publish
// stamps its own messages.
type busPublisher struct {
	bus *bus.Bus
	log *slog.Logger
}

func (p busPublisher) PublishLog(spec executor.Spec, ev executor.Event) {
	p.publish(spec, message.TopicTaskLog, map[string]any{
		"taskId": spec.TaskID,
		"type":   ev.Type,
		"event":  ev.Raw,
	})
}

func (p busPublisher) PublishStale(spec executor.Spec) {
	p.publish(spec, message.TopicTaskStale, map[string]any{
		"taskId": spec.TaskID,
	})
}

func (p busPublisher) PublishSchemaWarning(spec executor.Spec, schemaErr error) {
	p.publish(spec, message.TopicSchemaWarning, map[string]any{
		"taskId": spec.TaskID,
		"error":  schemaErr.Error(),
	})
}

func (p busPublisher) publish(spec executor.Spec, topic string, data map[string]any) {
	_, err := p.bus.Publish(context.Background(), message.Message{
		ClusterID:      spec.ClusterID,
		Topic:          topic,
		Sender:         spec.AgentID,
		Receiver:       message.ReceiverBroadcast,
		Content:        message.Content{Data: data},
		SenderModel:    spec.Model,
		SenderProvider: spec.Provider,
	})
	if err != nil {
		p.log.Error("executor: publish failed", "topic", topic, "err", err)
	}
}

func newClusterID() string { return uuid.NewString() }

func newEngine() *logic.Engine { return logic.New() }

func agentSettings() agent.Settings {
	return agent.Settings{
		DefaultProvider: cfg.Defaults.Provider,
		Metrics:         newMetrics(),
	}
}

func newMetrics() *telemetry.Metrics {
	if !cfg.Telemetry.Enabled {
		return nil
	}
	return telemetry.New()
}
