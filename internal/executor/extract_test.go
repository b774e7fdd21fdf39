package executor

import "testing"

func TestExtractResultClaudeTerminalResultField(t *testing.T) {
	events := []Event{
		{Type: "assistant", Raw: map[string]any{"content": "thinking..."}},
		{Type: "result", Raw: map[string]any{"result": map[string]any{"summary": "done", "result": "ok"}}},
	}
	got, err := ExtractResult(Claude, events)
	if err != nil {
		t.Fatalf("ExtractResult: %v", err)
	}
	if got["summary"] != "done" {
		t.Errorf("summary = %v, want done", got["summary"])
	}
}

func TestExtractResultClaudeFencedStringResult(t *testing.T) {
	events := []Event{
		{Type: "result", Raw: map[string]any{"result": "```json\n{\"summary\":\"ok\",\"result\":\"done\"}\n```"}},
	}
	got, err := ExtractResult(Claude, events)
	if err != nil {
		t.Fatalf("ExtractResult: %v", err)
	}
	if got["summary"] != "ok" {
		t.Errorf("summary = %v, want ok", got["summary"])
	}
}

func TestExtractResultCodexRegression(t *testing.T) {
	// item 4: Codex's turn.completed carries usage only; the JSON
	// must come from the accumulated assistant text, never from a
	// "result" field even if one happened to be present.
	events := []Event{
		{Type: "item.created", Raw: map[string]any{"item": map[string]any{"text": `{"summary":"from text","result":"done"}`}}},
		{Type: "turn.completed", Raw: map[string]any{"result": "should never be read", "usage": map[string]any{"tokens": 10}}},
	}
	got, err := ExtractResult(Codex, events)
	if err != nil {
		t.Fatalf("ExtractResult: %v", err)
	}
	if got["summary"] != "from text" {
		t.Errorf("summary = %v, want 'from text' (must come from assistant text, not turn.completed.result)", got["summary"])
	}
}

func TestExtractResultGeminiFallsBackToAssistantText(t *testing.T) {
	events := []Event{
		{Type: "assistant", Raw: map[string]any{"content": []any{map[string]any{"text": `{"summary":"g","result":"r"}`}}}},
		{Type: "result", Raw: map[string]any{}},
	}
	got, err := ExtractResult(Gemini, events)
	if err != nil {
		t.Fatalf("ExtractResult: %v", err)
	}
	if got["summary"] != "g" {
		t.Errorf("summary = %v, want g", got["summary"])
	}
}

func TestExtractResultMissingJSONBlockIsError(t *testing.T) {
	events := []Event{
		{Type: "assistant", Raw: map[string]any{"content": "no json here"}},
		{Type: "result", Raw: map[string]any{}},
	}
	if _, err := ExtractResult(Claude, events); err != ErrMissingJSONBlock {
		t.Errorf("err = %v, want ErrMissingJSONBlock", err)
	}
}

func TestExtractResultDeadOutputIsTaskFailed(t *testing.T) {
	events := []Event{
		{Type: "assistant", Raw: map[string]any{"content": "Task not found"}},
		{Type: "result", Raw: map[string]any{}},
	}
	if _, err := ExtractResult(Claude, events); err != ErrTaskFailed {
		t.Errorf("err = %v, want ErrTaskFailed", err)
	}
}

func TestExtractResultIsDeterministicAcrossRepeatedParses(t *testing.T) {
	events := []Event{
		{Type: "item.created", Raw: map[string]any{"item": map[string]any{"text": `{"summary":"a","result":"b"}`}}},
		{Type: "turn.completed", Raw: map[string]any{}},
	}
	first, err := ExtractResult(Codex, events)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ExtractResult(Codex, events)
	if err != nil {
		t.Fatal(err)
	}
	if first["summary"] != second["summary"] {
		t.Error("parsing the same log twice should yield the same structured result")
	}
}

func TestExtractBalancedJSONIgnoresBracesInStrings(t *testing.T) {
	s := `noise {"a": "looks like } a brace", "b": 2} trailing`
	block, ok := extractBalancedJSON(s)
	if !ok {
		t.Fatal("expected a balanced block to be found")
	}
	got, err := parseObject(block)
	if err != nil {
		t.Fatalf("parseObject: %v", err)
	}
	if got["b"] != float64(2) {
		t.Errorf("b = %v, want 2", got["b"])
	}
}
