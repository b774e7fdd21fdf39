package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/orc-run/orc/internal/message"
)

func TestFileStoreAppendAndReplay(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "cluster.jsonl")

	fs, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := fs.Append(ctx, message.Message{ClusterID: "c1", Topic: "T", Sender: "system"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("re-OpenFileStore: %v", err)
	}

	got, err := reopened.Query(ctx, Filter{ClusterID: "c1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("after replay: got %d messages, want 3", len(got))
	}
	if got[2].ID != 3 {
		t.Errorf("after replay: last id = %d, want 3", got[2].ID)
	}
}
