package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/orc-run/orc/internal/agent"
	"github.com/orc-run/orc/internal/bus"
	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/logic"
	"github.com/orc-run/orc/internal/message"
)

// Resume reconstructs a cluster's runtime state from its ledger
// history (SPEC_FULL supplemental feature 5) and resubscribes its
// agents: the cluster's createdAt is the timestamp of its first ledger
// message, and each agent's iteration counter is seeded from the
// highest "iteration_complete" AGENT_LIFECYCLE message it has
// published, so a resumed agent picks up exactly where it left off
// rather than replaying completed work.
func Resume(ctx context.Context, clusterID string, doc clusterconfig.Document, store ledger.Store, b *bus.Bus, engine *logic.Engine, runnerFactory RunnerFactory, settings agent.Settings, log *slog.Logger) (*Cluster, error) {
	history, err := store.Query(ctx, ledger.Filter{ClusterID: clusterID})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resume: query ledger: %w", err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("orchestrator: resume: cluster %q has no ledger history", clusterID)
	}

	createdAt := history[0].Timestamp
	iterations := reconstructIterations(history)

	c := New(clusterID, createdAt, b, engine, runnerFactory, settings, log)
	c.subscribeControl()

	for _, cfg := range doc.Agents {
		if err := c.spawnAgent(cfg, iterations[cfg.ID]); err != nil {
			return nil, fmt.Errorf("orchestrator: resume agent %q: %w", cfg.ID, err)
		}
	}

	if _, err := b.Publish(ctx, message.Message{
		ClusterID: clusterID,
		Topic:     message.TopicClusterResumed,
		Sender:    message.SenderSystem,
		Receiver:  message.ReceiverBroadcast,
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: resume: publish CLUSTER_RESUMED: %w", err)
	}
	c.settings.Metrics.RecordPublish(ctx, clusterID, message.TopicClusterResumed)

	return c, nil
}

func reconstructIterations(history []message.Message) map[string]int {
	out := make(map[string]int)
	for _, m := range history {
		if m.Topic != message.TopicAgentLifecycle {
			continue
		}
		if m.Content.Data == nil {
			continue
		}
		if event, _ := m.Content.Data["event"].(string); event != "iteration_complete" {
			continue
		}
		agentID, _ := m.Content.Data["agentId"].(string)
		iter := intFromAny(m.Content.Data["iteration"])
		if iter > out[agentID] {
			out[agentID] = iter
		}
	}
	return out
}

func intFromAny(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}
