package contextbuilder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/message"
)

func baseInput(t *testing.T, store ledger.Store) Input {
	t.Helper()
	return Input{
		Ctx:      context.Background(),
		Identity: Identity{ID: "a1", Role: "implementation"},
		Iteration: 1,
		Config: clusterconfig.AgentConfig{
			ID:   "a1",
			Role: "implementation",
		},
		Store:            store,
		Cluster:          ClusterInfo{ID: "c1", CreatedAt: 1000},
		SelectedPrompt:   "do the task",
		IsolationEnabled: true,
	}
}

func TestBuildRequiresSelectedPrompt(t *testing.T) {
	in := baseInput(t, ledger.NewMemStore())
	in.SelectedPrompt = ""
	if _, err := Build(in); err == nil {
		t.Error("expected error when no prompt is selected")
	}
}

func TestBuildIncludesGitProhibitionOnlyWhenIsolationDisabled(t *testing.T) {
	in := baseInput(t, ledger.NewMemStore())
	in.IsolationEnabled = false
	out, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(out, "Git Operations") {
		t.Error("expected git prohibition section when isolation is disabled")
	}

	in.IsolationEnabled = true
	out, err = Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Contains(out, "Git Operations") {
		t.Error("git prohibition section must be absent when isolation is enabled")
	}
}

func TestBuildLastAgentStartFilterScenario(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemStore()

	first, err := store.Append(ctx, message.Message{ClusterID: "c1", Topic: message.TopicImplementationRdy, Sender: "impl", Content: message.Content{Text: "first"}})
	if err != nil {
		t.Fatal(err)
	}

	in := baseInput(t, store)
	in.Config.ContextStrategy = clusterconfig.ContextStrategy{
		Sources: []clusterconfig.ContextSource{{Topic: message.TopicImplementationRdy, Since: clusterconfig.SinceLastAgentStart}},
	}

	out1, err := Build(in)
	if err != nil {
		t.Fatalf("Build (t1): %v", err)
	}
	if !strings.Contains(out1, "first") {
		t.Error("context at t1 should contain the first IMPLEMENTATION_READY message")
	}

	lastStart := first.Timestamp + 1 // after the first message's timestamp but before the second
	time.Sleep(2 * time.Millisecond)
	if _, err := store.Append(ctx, message.Message{ClusterID: "c1", Topic: message.TopicImplementationRdy, Sender: "impl", Content: message.Content{Text: "second"}}); err != nil {
		t.Fatal(err)
	}

	in.LastAgentStartTime = lastStart
	out2, err := Build(in)
	if err != nil {
		t.Fatalf("Build (t2): %v", err)
	}
	if strings.Contains(out2, "first") {
		t.Error("context at t2, filtered by last_agent_start, should not contain the first message")
	}
	if !strings.Contains(out2, "second") {
		t.Error("context at t2 should contain the second message")
	}
}

func TestBuildUnknownSinceIsError(t *testing.T) {
	in := baseInput(t, ledger.NewMemStore())
	in.Config.ContextStrategy = clusterconfig.ContextStrategy{
		Sources: []clusterconfig.ContextSource{{Topic: "X", Since: "not-a-timestamp-or-keyword"}},
	}
	if _, err := Build(in); err == nil {
		t.Error("expected error for unknown since value")
	}
}

func TestBuildCannotValidateSurveyExcludesTemporary(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemStore()
	if _, err := store.Append(ctx, message.Message{ClusterID: "c1", Topic: message.TopicValidationResult, Sender: "v1",
		Content: message.Content{Data: map[string]any{"status": "CANNOT_VALIDATE", "criterionId": "perm-1"}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Append(ctx, message.Message{ClusterID: "c1", Topic: message.TopicValidationResult, Sender: "v1",
		Content: message.Content{Data: map[string]any{"status": "CANNOT_VALIDATE_YET", "criterionId": "temp-1"}}}); err != nil {
		t.Fatal(err)
	}

	in := baseInput(t, store)
	in.Identity.Role = clusterconfig.RoleValidator
	in.Config.Role = clusterconfig.RoleValidator

	out, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(out, "perm-1") {
		t.Error("permanent CANNOT_VALIDATE criterion should be listed in the skip survey")
	}
	if strings.Contains(out, "temp-1") {
		t.Error("CANNOT_VALIDATE_YET is temporary and must not be listed")
	}
}

func TestBuildTruncatesPathologicallyLargeLedger(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemStore()

	big := strings.Repeat("x", 2000)
	for i := 0; i < 500; i++ {
		if _, err := store.Append(ctx, message.Message{ClusterID: "c1", Topic: "NOISY", Sender: "impl", Content: message.Content{Text: big}}); err != nil {
			t.Fatal(err)
		}
	}

	in := baseInput(t, store)
	in.Config.ContextStrategy = clusterconfig.ContextStrategy{
		Sources: []clusterconfig.ContextSource{{Topic: "NOISY"}},
	}

	out, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(out) > MaxChars {
		t.Errorf("assembled context length = %d, want <= %d", len(out), MaxChars)
	}
	if !strings.Contains(out, "Truncated") {
		t.Error("expected a truncation marker in pathologically large output")
	}
}
