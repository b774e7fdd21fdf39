package executor

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSessionLogWritesHeaderEventsAndTrailer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "t1.jsonl")

	log, err := OpenSessionLog(path, SessionLogHeader{TaskID: "t1", Provider: "claude"})
	if err != nil {
		t.Fatalf("OpenSessionLog: %v", err)
	}
	if err := log.WriteEvent(Event{Type: "assistant", Raw: map[string]any{"type": "assistant"}}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if err := log.WriteTrailer(SessionLogTrailer{TaskID: "t1", Success: true}); err != nil {
		t.Fatalf("WriteTrailer: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open written log: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		lines = append(lines, m)
	}

	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (header, event, trailer)", len(lines))
	}
	if lines[0]["kind"] != "header" {
		t.Errorf("line 0 kind = %v, want header", lines[0]["kind"])
	}
	if lines[1]["kind"] != "event" {
		t.Errorf("line 1 kind = %v, want event", lines[1]["kind"])
	}
	if lines[2]["kind"] != "trailer" {
		t.Errorf("line 2 kind = %v, want trailer", lines[2]["kind"])
	}
}
