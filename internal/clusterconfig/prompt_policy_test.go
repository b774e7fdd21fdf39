package clusterconfig

import (
	"encoding/json"
	"testing"
)

func TestPromptPolicyStatic(t *testing.T) {
	var p PromptPolicy
	if err := json.Unmarshal([]byte(`"do the thing"`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got, err := p.Resolve(1)
	if err != nil || got != "do the thing" {
		t.Errorf("Resolve = %q, %v, want %q, nil", got, err, "do the thing")
	}
	got, err = p.Resolve(50)
	if err != nil || got != "do the thing" {
		t.Errorf("static prompt should resolve the same at any iteration, got %q, %v", got, err)
	}
}

func TestPromptPolicyInitialSubsequent(t *testing.T) {
	var p PromptPolicy
	if err := json.Unmarshal([]byte(`{"initial":"start","subsequent":"continue"}`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got, _ := p.Resolve(1); got != "start" {
		t.Errorf("iteration 1 = %q, want start", got)
	}
	if got, _ := p.Resolve(2); got != "continue" {
		t.Errorf("iteration 2 = %q, want continue", got)
	}
}

func TestPromptPolicyRules(t *testing.T) {
	var p PromptPolicy
	if err := json.Unmarshal([]byte(`[{"iterations":"1","prompt":"first"},{"iterations":"2+","prompt":"later"}]`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got, err := p.Resolve(1); err != nil || got != "first" {
		t.Errorf("iteration 1 = %q, %v, want first", got, err)
	}
	if got, err := p.Resolve(5); err != nil || got != "later" {
		t.Errorf("iteration 5 = %q, %v, want later", got, err)
	}
}

func TestPromptPolicyRulesNoMatchIsError(t *testing.T) {
	var p PromptPolicy
	if err := json.Unmarshal([]byte(`[{"iterations":"1","prompt":"first"}]`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, err := p.Resolve(2); err == nil {
		t.Error("expected error when no prompt rule matches the iteration")
	}
}
