package clusterconfig

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleDoc = `{
  "agents": [
    {"id": "impl", "role": "implementation", "triggers": [{"topic": "ISSUE_OPENED", "action": "execute_task"}]}
  ]
}`

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cluster.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Agents) != 1 || doc.Agents[0].ID != "impl" {
		t.Errorf("doc.Agents = %+v, want one agent with id=impl", doc.Agents)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/cluster.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseRejectsEmptyAgents(t *testing.T) {
	if _, err := Parse([]byte(`{"agents": []}`)); err == nil {
		t.Error("expected error for document with no agents")
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
