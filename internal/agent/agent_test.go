package agent

import (
	"context"
	"testing"
	"time"

	"github.com/orc-run/orc/internal/bus"
	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/executor"
	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/logic"
	"github.com/orc-run/orc/internal/message"
)

type fakeCluster struct {
	id        string
	createdAt int64
}

func (f fakeCluster) ID() string        { return f.id }
func (f fakeCluster) CreatedAt() int64  { return f.createdAt }
func (f fakeCluster) GetAgent(id string) (logic.AgentView, bool) {
	return logic.AgentView{}, false
}
func (f fakeCluster) GetAgentsByRole(role string) []logic.AgentView { return nil }

type fakeRunner struct {
	result *executor.Result
	err    error
	calls  int
}

func (f *fakeRunner) Run(ctx context.Context, spec executor.Spec) (*executor.Result, error) {
	f.calls++
	return f.result, f.err
}

func testBus() *bus.Bus {
	return bus.New(ledger.NewMemStore(), nil)
}

func baseConfig() clusterconfig.AgentConfig {
	return clusterconfig.AgentConfig{
		ID:   "worker-1",
		Role: clusterconfig.RoleImplementation,
		Triggers: []clusterconfig.Trigger{
			{Topic: message.TopicIssueOpened, Action: clusterconfig.ActionExecuteTask},
		},
		PromptPolicy: mustStaticPrompt("do the work"),
	}
}

func mustStaticPrompt(p string) clusterconfig.PromptPolicy {
	var pp clusterconfig.PromptPolicy
	if err := pp.UnmarshalJSON([]byte(`"` + p + `"`)); err != nil {
		panic(err)
	}
	return pp
}

func TestAgentExecutesTaskOnMatchingTrigger(t *testing.T) {
	b := testBus()
	runner := &fakeRunner{result: &executor.Result{Success: true, Output: map[string]any{"summary": "ok", "result": "done"}}}
	a := New("worker-1", baseConfig(), fakeCluster{id: "c1"}, b, logic.New(), runner, Settings{DefaultProvider: "claude"}, nil)
	a.Start()
	defer a.Stop()

	if _, err := b.Publish(context.Background(), message.Message{ClusterID: "c1", Topic: message.TopicIssueOpened, Sender: "system"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	waitFor(t, func() bool { return runner.calls == 1 })
	waitFor(t, func() bool { return a.State() == StateIdle })

	if a.Iteration() != 1 {
		t.Errorf("Iteration = %d, want 1", a.Iteration())
	}
}

func TestAgentDropsMessageWhileNotIdle(t *testing.T) {
	b := testBus()
	runner := &fakeRunner{result: &executor.Result{Success: true, Output: map[string]any{"summary": "ok", "result": "done"}}}
	a := New("worker-1", baseConfig(), fakeCluster{id: "c1"}, b, logic.New(), runner, Settings{DefaultProvider: "claude"}, nil)
	a.mu.Lock()
	a.state = StateExecuting
	a.mu.Unlock()

	a.handleMessage(message.Message{ClusterID: "c1", Topic: message.TopicIssueOpened})

	if runner.calls != 0 {
		t.Errorf("runner called %d times, want 0 (agent was not idle)", runner.calls)
	}
}

func TestAgentStopClusterTriggerTransitionsToStoppedAndPublishesCompletion(t *testing.T) {
	b := testBus()
	cfg := baseConfig()
	cfg.Triggers = []clusterconfig.Trigger{
		{Topic: message.TopicClusterOperations, Action: clusterconfig.ActionStopCluster},
	}
	runner := &fakeRunner{}
	a := New("completer", cfg, fakeCluster{id: "c1"}, b, logic.New(), runner, Settings{}, nil)
	a.Start()

	var seen []message.Message
	b.Subscribe(ledger.Filter{ClusterID: "c1", Topic: message.TopicClusterComplete}, func(m message.Message) { seen = append(seen, m) })

	if _, err := b.Publish(context.Background(), message.Message{ClusterID: "c1", Topic: message.TopicClusterOperations}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	waitFor(t, func() bool { return a.State() == StateStopped })
	waitFor(t, func() bool { return len(seen) == 1 })
}

func TestAgentPublishesExhaustedOnceAtMaxIterations(t *testing.T) {
	b := testBus()
	cfg := baseConfig()
	cfg.MaxIterations = 1
	runner := &fakeRunner{result: &executor.Result{Success: true, Output: map[string]any{"summary": "ok", "result": "done"}}}
	a := New("worker-1", cfg, fakeCluster{id: "c1"}, b, logic.New(), runner, Settings{DefaultProvider: "claude"}, nil)
	a.Start()
	defer a.Stop()

	var exhausted []message.Message
	b.Subscribe(ledger.Filter{ClusterID: "c1", Topic: message.TopicAgentExhausted}, func(m message.Message) { exhausted = append(exhausted, m) })

	for i := 0; i < 3; i++ {
		if _, err := b.Publish(context.Background(), message.Message{ClusterID: "c1", Topic: message.TopicIssueOpened}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		waitFor(t, func() bool { return a.State() == StateIdle })
	}

	if runner.calls != 1 {
		t.Errorf("runner called %d times, want 1 (further cycles suppressed past maxIterations)", runner.calls)
	}
	if len(exhausted) != 1 {
		t.Errorf("AGENT_EXHAUSTED published %d times, want exactly 1", len(exhausted))
	}
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
