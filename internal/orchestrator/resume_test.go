package orchestrator

import (
	"context"
	"testing"

	"github.com/orc-run/orc/internal/agent"
	"github.com/orc-run/orc/internal/bus"
	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/logic"
	"github.com/orc-run/orc/internal/message"
)

func TestResumeReconstructsIterationFromLedger(t *testing.T) {
	store := ledger.NewMemStore()
	ctx := context.Background()

	seed := []message.Message{
		{ClusterID: "c1", Topic: message.TopicIssueOpened, Sender: "system"},
		{ClusterID: "c1", Topic: message.TopicAgentLifecycle, Sender: "worker-1", Content: message.Content{Data: map[string]any{"event": "iteration_complete", "agentId": "worker-1", "iteration": 1}}},
		{ClusterID: "c1", Topic: message.TopicAgentLifecycle, Sender: "worker-1", Content: message.Content{Data: map[string]any{"event": "iteration_complete", "agentId": "worker-1", "iteration": 2}}},
	}
	for _, m := range seed {
		if _, err := store.Append(ctx, m); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	b := bus.New(store, nil)
	runner := &countingRunner{}
	doc := clusterconfig.Document{Agents: []clusterconfig.AgentConfig{
		{ID: "worker-1", Role: clusterconfig.RoleImplementation, PromptPolicy: staticPrompt("x")},
	}}

	c, err := Resume(ctx, "c1", doc, store, b, logic.New(), runnerFactory(runner), agent.Settings{}, nil)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	defer c.Shutdown()

	view, ok := c.GetAgent("worker-1")
	if !ok {
		t.Fatal("expected worker-1 to be registered after resume")
	}
	if view.Iteration != 2 {
		t.Errorf("Iteration = %d, want 2 (reconstructed from ledger)", view.Iteration)
	}
}

func TestResumeFailsForClusterWithNoHistory(t *testing.T) {
	store := ledger.NewMemStore()
	b := bus.New(store, nil)
	runner := &countingRunner{}

	_, err := Resume(context.Background(), "ghost", clusterconfig.Document{}, store, b, logic.New(), runnerFactory(runner), agent.Settings{}, nil)
	if err == nil {
		t.Error("expected error for cluster with no ledger history")
	}
}
