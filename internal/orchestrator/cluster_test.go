package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/orc-run/orc/internal/agent"
	"github.com/orc-run/orc/internal/bus"
	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/executor"
	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/logic"
	"github.com/orc-run/orc/internal/message"
)

type countingRunner struct{ calls int }

func (r *countingRunner) Run(ctx context.Context, spec executor.Spec) (*executor.Result, error) {
	r.calls++
	return &executor.Result{Success: true, Output: map[string]any{"summary": "ok", "result": "done"}}, nil
}

func staticPrompt(p string) clusterconfig.PromptPolicy {
	var pp clusterconfig.PromptPolicy
	_ = pp.UnmarshalJSON([]byte(`"` + p + `"`))
	return pp
}

func runnerFactory(r agent.TaskRunner) RunnerFactory {
	return func(provider string) (agent.TaskRunner, error) { return r, nil }
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBootStartsAgentsAndPublishesIssueOpened(t *testing.T) {
	b := bus.New(ledger.NewMemStore(), nil)
	runner := &countingRunner{}
	c := New("c1", 1000, b, logic.New(), runnerFactory(runner), agent.Settings{DefaultProvider: "claude"}, nil)

	doc := clusterconfig.Document{Agents: []clusterconfig.AgentConfig{
		{
			ID:   "worker-1",
			Role: clusterconfig.RoleImplementation,
			Triggers: []clusterconfig.Trigger{
				{Topic: message.TopicIssueOpened, Action: clusterconfig.ActionExecuteTask},
			},
			PromptPolicy: staticPrompt("go"),
		},
	}}

	if err := c.Boot(context.Background(), doc, map[string]any{"title": "fix bug"}); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	defer c.Shutdown()

	waitFor(t, func() bool { return runner.calls == 1 })
}

func TestClusterCompleteStopsAllAgents(t *testing.T) {
	b := bus.New(ledger.NewMemStore(), nil)
	runner := &countingRunner{}
	c := New("c1", 1000, b, logic.New(), runnerFactory(runner), agent.Settings{}, nil)

	doc := clusterconfig.Document{Agents: []clusterconfig.AgentConfig{
		{ID: "a1", Role: clusterconfig.RoleImplementation, PromptPolicy: staticPrompt("x")},
	}}
	if err := c.Boot(context.Background(), doc, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if _, err := b.Publish(context.Background(), message.Message{ClusterID: "c1", Topic: message.TopicClusterComplete, Sender: "someone"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.agents) == 0
	})
}

func TestDynamicSpawnAgentOperation(t *testing.T) {
	b := bus.New(ledger.NewMemStore(), nil)
	runner := &countingRunner{}
	c := New("c1", 1000, b, logic.New(), runnerFactory(runner), agent.Settings{DefaultProvider: "claude"}, nil)
	if err := c.Boot(context.Background(), clusterconfig.Document{Agents: []clusterconfig.AgentConfig{
		{ID: "conductor", Role: clusterconfig.RoleConductor},
	}}, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	defer c.Shutdown()

	op := map[string]any{
		"action": "spawn_agent",
		"config": map[string]any{"id": "dynamic-1", "role": "implementation"},
	}
	_, err := b.Publish(context.Background(), message.Message{
		ClusterID: "c1",
		Topic:     message.TopicClusterOperations,
		Sender:    "conductor",
		Content:   message.Content{Data: map[string]any{"operations": []any{op}}},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, ok := c.agents["dynamic-1"]
		return ok
	})
}

func TestDynamicRetireAgentOperation(t *testing.T) {
	b := bus.New(ledger.NewMemStore(), nil)
	runner := &countingRunner{}
	c := New("c1", 1000, b, logic.New(), runnerFactory(runner), agent.Settings{}, nil)
	if err := c.Boot(context.Background(), clusterconfig.Document{Agents: []clusterconfig.AgentConfig{
		{ID: "conductor", Role: clusterconfig.RoleConductor},
		{ID: "worker-1", Role: clusterconfig.RoleImplementation},
	}}, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	defer c.Shutdown()

	op := map[string]any{"action": "retire_agent", "id": "worker-1"}
	_, err := b.Publish(context.Background(), message.Message{
		ClusterID: "c1",
		Topic:     message.TopicClusterOperations,
		Sender:    "conductor",
		Content:   message.Content{Data: map[string]any{"operations": []any{op}}},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, ok := c.agents["worker-1"]
		return !ok
	})
}
