package executor

import "testing"

func TestParseLineTolerateBracketPrefix(t *testing.T) {
	ev, err := ParseLine([]byte(`[12345] {"type":"assistant","content":"hi"}`))
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if ev.Type != "assistant" {
		t.Errorf("Type = %q, want assistant", ev.Type)
	}
}

func TestParseLineWithoutBracketPrefix(t *testing.T) {
	ev, err := ParseLine([]byte(`{"type":"result","result":"ok"}`))
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if ev.Type != "result" {
		t.Errorf("Type = %q, want result", ev.Type)
	}
}

func TestParseLineMalformed(t *testing.T) {
	if _, err := ParseLine([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed line")
	}
}
