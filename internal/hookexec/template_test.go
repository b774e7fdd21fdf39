package hookexec

import "testing"

func TestSubstituteKnownVariables(t *testing.T) {
	ctx := Context{
		ClusterID:        "c1",
		ClusterCreatedAt: 1000,
		Iteration:        3,
		ErrorMessage:     "boom",
		Result:           map[string]any{"output": "hello", "approved": true, "count": 5},
	}

	raw := `{"topic":"{{result.output}}","content":{"data":{"id":"{{cluster.id}}","n":"{{iteration}}","ok":"{{result.approved}}","count":"{{result.count}}","msg":"err: {{error.message}}"}}}`

	out, err := substitute(raw, ctx)
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}

	want := `{"topic":"hello","content":{"data":{"id":"c1","n":3,"ok":true,"count":5,"msg":"err: boom"}}}`
	if out != want {
		t.Errorf("out = %s\nwant  = %s", out, want)
	}
}

func TestSubstituteMissingResultFieldDefaultsToNull(t *testing.T) {
	ctx := Context{Result: map[string]any{}}
	raw := `{"value":"{{result.missing}}"}`

	out, err := substitute(raw, ctx)
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if out != `{"value":null}` {
		t.Errorf("out = %s, want {\"value\":null}", out)
	}
}

func TestSubstituteLeavesArbitraryMustacheUntouched(t *testing.T) {
	ctx := Context{}
	raw := `{"value":"{{some.custom.thing}}"}`

	out, err := substitute(raw, ctx)
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if out != raw {
		t.Errorf("out = %s, want unchanged %s", out, raw)
	}
}

func TestSubstituteGuardsLiteralMustacheInResolvedContent(t *testing.T) {
	ctx := Context{Result: map[string]any{"output": "contains {{cluster.id}} literally"}}
	raw := `{"value":"prefix {{result.output}} suffix"}`

	out, err := substitute(raw, ctx)
	if err != nil {
		t.Fatalf("substitute should not flag literal content as unresolved: %v", err)
	}
	if out == "" {
		t.Fatal("expected non-empty output")
	}
}
