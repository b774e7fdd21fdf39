package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/orc-run/orc/internal/message"
)

// FileStore is a durable Store backed by one append-only JSONL file per
// process, serialized across OS processes with an advisory file lock
// (mirrors the teacher's single-writer discipline over its workdir
// files). In-memory state is replayed from disk on open so a restarted
// process can reconstruct observable state from the log alone.
type FileStore struct {
	mem  *MemStore
	path string
	lock *flock.Flock
}

// OpenFileStore opens (creating if absent) the JSONL ledger file at
// path and replays its contents into memory.
func OpenFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create ledger dir: %w", err)
	}

	fs := &FileStore{
		mem:  NewMemStore(),
		path: path,
		lock: flock.New(path + ".lock"),
	}

	if err := fs.replay(); err != nil {
		return nil, fmt.Errorf("ledger: replay %s: %w", path, err)
	}
	return fs, nil
}

func (fs *FileStore) replay() error {
	f, err := os.OpenFile(fs.path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var m message.Message
		if err := json.Unmarshal(line, &m); err != nil {
			return fmt.Errorf("malformed ledger line: %w", err)
		}
		fs.mem.messages = append(fs.mem.messages, m)
		if m.ID > fs.mem.byID[m.ClusterID] {
			fs.mem.byID[m.ClusterID] = m.ID
		}
		if m.Timestamp > fs.mem.lastTS[m.ClusterID] {
			fs.mem.lastTS[m.ClusterID] = m.Timestamp
		}
	}
	return sc.Err()
}

// Append acquires the advisory lock, appends msg to both memory and the
// on-disk file, then releases the lock.
func (fs *FileStore) Append(ctx context.Context, msg message.Message) (message.Message, error) {
	locked, err := fs.lock.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil {
		return message.Message{}, fmt.Errorf("ledger: acquire lock: %w", err)
	}
	if !locked {
		return message.Message{}, fmt.Errorf("ledger: could not acquire write lock")
	}
	defer fs.lock.Unlock()

	stored, err := fs.mem.Append(ctx, msg)
	if err != nil {
		return message.Message{}, err
	}

	f, err := os.OpenFile(fs.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return message.Message{}, fmt.Errorf("ledger: open for append: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if err := enc.Encode(stored); err != nil {
		return message.Message{}, fmt.Errorf("ledger: write record: %w", err)
	}
	return stored, nil
}

func (fs *FileStore) Query(ctx context.Context, f Filter) ([]message.Message, error) {
	return fs.mem.Query(ctx, f)
}

func (fs *FileStore) FindLast(ctx context.Context, f Filter) (message.Message, error) {
	return fs.mem.FindLast(ctx, f)
}

func (fs *FileStore) Count(ctx context.Context, f Filter) (int, error) {
	return fs.mem.Count(ctx, f)
}

func (fs *FileStore) TokenUsage(ctx context.Context, clusterID string, roleOf func(string) string) (TokenUsage, error) {
	return fs.mem.TokenUsage(ctx, clusterID, roleOf)
}
