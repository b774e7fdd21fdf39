package providercatalog

import "testing"

func TestClampLevelWithinBounds(t *testing.T) {
	c, _ := Get("claude")
	got, err := c.ClampLevel("high", "low", "medium")
	if err != nil {
		t.Fatalf("ClampLevel: %v", err)
	}
	if got != "medium" {
		t.Errorf("got = %q, want medium (clamped down from high)", got)
	}
}

func TestClampLevelUnknownLevelIsError(t *testing.T) {
	c, _ := Get("claude")
	if _, err := c.ClampLevel("ultra", "", ""); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestResolveModel(t *testing.T) {
	c, _ := Get("codex")
	model, err := c.ResolveModel("medium")
	if err != nil {
		t.Fatalf("ResolveModel: %v", err)
	}
	if model != "gpt-5" {
		t.Errorf("model = %q, want gpt-5", model)
	}
}

func TestValidReasoningEffortPerProvider(t *testing.T) {
	codex, _ := Get("codex")
	if !codex.ValidReasoningEffort("high") {
		t.Error("codex should accept reasoningEffort=high")
	}
	claude, _ := Get("claude")
	if claude.ValidReasoningEffort("high") {
		t.Error("claude has no ReasoningEfforts set; any non-empty value should be invalid")
	}
	if !claude.ValidReasoningEffort("") {
		t.Error("empty reasoningEffort should always be valid")
	}
}

func TestClampLegacyModel(t *testing.T) {
	got := ClampLegacyModel("opus", "haiku", "sonnet")
	if got != "sonnet" {
		t.Errorf("got = %q, want sonnet (clamped down from opus)", got)
	}
	if got := ClampLegacyModel("gpt-5", "haiku", "sonnet"); got != "gpt-5" {
		t.Error("non-legacy model names must pass through unchanged")
	}
}
