package logic

import (
	"context"
	"testing"

	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/message"
)

func newTestGlobals(t *testing.T, store ledger.Store) *Globals {
	t.Helper()
	return &Globals{
		Ctx:   context.Background(),
		Store: store,
		Cluster: ClusterView{
			ID:        "c1",
			CreatedAt: 1000,
			GetAgent:  func(string) (AgentView, bool) { return AgentView{}, false },
			GetAgentsByRole: func(role string) []AgentView {
				if role == "validator" {
					return []AgentView{{ID: "v1", Role: "validator"}, {ID: "v2", Role: "validator"}}
				}
				return nil
			},
		},
		Agent: AgentView{ID: "a1", Role: "completion-detector", ClusterID: "c1"},
	}
}

func TestEvalTriggerBasicBoolean(t *testing.T) {
	e := New()
	g := newTestGlobals(t, ledger.NewMemStore())

	if !e.EvalTrigger(g, "return true;") {
		t.Error("expected true")
	}
	if e.EvalTrigger(g, "return false;") {
		t.Error("expected false")
	}
}

func TestEvalTriggerThrowIsFailSafe(t *testing.T) {
	e := New()
	g := newTestGlobals(t, ledger.NewMemStore())

	if e.EvalTrigger(g, "throw new Error('boom');") {
		t.Error("a throwing trigger script must fail-safe to false")
	}
}

func TestEvalTriggerTimeoutIsFailSafe(t *testing.T) {
	e := New()
	g := newTestGlobals(t, ledger.NewMemStore())

	if e.EvalTrigger(g, "while(true){}") {
		t.Error("an infinite-looping trigger script must fail-safe to false")
	}
}

func TestEvalTriggerConsensusScenario(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemStore()
	if _, err := store.Append(ctx, message.Message{ClusterID: "c1", Topic: "IMPLEMENTATION_READY", Sender: "impl"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Append(ctx, message.Message{ClusterID: "c1", Topic: "VALIDATION_RESULT", Sender: "v1", Content: message.Content{Data: map[string]any{"approved": true}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Append(ctx, message.Message{ClusterID: "c1", Topic: "VALIDATION_RESULT", Sender: "v2", Content: message.Content{Data: map[string]any{"approved": true}}}); err != nil {
		t.Fatal(err)
	}

	e := New()
	g := newTestGlobals(t, store)
	script := "return helpers.hasConsensus('VALIDATION_RESULT', 0);"
	if !e.EvalTrigger(g, script) {
		t.Error("expected consensus (both validators approved)")
	}
}

func TestEvalTriggerRejectedConsensusScenario(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemStore()
	if _, err := store.Append(ctx, message.Message{ClusterID: "c1", Topic: "VALIDATION_RESULT", Sender: "v1", Content: message.Content{Data: map[string]any{"approved": true}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Append(ctx, message.Message{ClusterID: "c1", Topic: "VALIDATION_RESULT", Sender: "v2", Content: message.Content{Data: map[string]any{"approved": false}}}); err != nil {
		t.Fatal(err)
	}

	e := New()
	g := newTestGlobals(t, store)
	if e.EvalTrigger(g, "return helpers.hasConsensus('VALIDATION_RESULT', 0);") {
		t.Error("expected no consensus (one validator rejected)")
	}
}

func TestEvalHookLogicReturnsOverrideObject(t *testing.T) {
	e := New()
	g := newTestGlobals(t, ledger.NewMemStore())

	v, err := e.EvalHookLogic(g, "return {topic: 'X'};")
	if err != nil {
		t.Fatalf("EvalHookLogic: %v", err)
	}
	if v["topic"] != "X" {
		t.Errorf("override topic = %v, want X", v["topic"])
	}
}

func TestEvalHookLogicNilReturnIsNoOverride(t *testing.T) {
	e := New()
	g := newTestGlobals(t, ledger.NewMemStore())

	v, err := e.EvalHookLogic(g, "return null;")
	if err != nil {
		t.Fatalf("EvalHookLogic: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil override, got %v", v)
	}
}

func TestEvalHookLogicThrowPropagates(t *testing.T) {
	e := New()
	g := newTestGlobals(t, ledger.NewMemStore())

	if _, err := e.EvalHookLogic(g, "throw new Error('bad');"); err == nil {
		t.Error("expected error to propagate from hook-logic script")
	}
}

func TestEvalTransformRequiresTopicAndContent(t *testing.T) {
	e := New()
	g := newTestGlobals(t, ledger.NewMemStore())

	if _, err := e.EvalTransform(g, "return {content: {}};"); err == nil {
		t.Error("expected error for missing topic")
	}
	if _, err := e.EvalTransform(g, "return {topic: 'X'};"); err == nil {
		t.Error("expected error for missing content")
	}

	v, err := e.EvalTransform(g, "return {topic: 'X', content: {text: 'hi'}};")
	if err != nil {
		t.Fatalf("EvalTransform: %v", err)
	}
	if v["topic"] != "X" {
		t.Errorf("topic = %v, want X", v["topic"])
	}
}

func TestValidateSyntax(t *testing.T) {
	e := New()
	if err := e.ValidateSyntax("return true;"); err != nil {
		t.Errorf("valid script rejected: %v", err)
	}
	if err := e.ValidateSyntax("return (((;"); err == nil {
		t.Error("expected syntax error to be detected")
	}
}
