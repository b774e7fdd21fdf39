package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/orc-run/orc/internal/message"
)

// MemStore is an in-process Store, used directly in tests and as the
// building block the file-backed store replays into memory on load.
type MemStore struct {
	mu       sync.Mutex
	byID     map[string]int64  // clusterID -> last assigned id
	lastTS   map[string]int64  // clusterID -> last assigned timestamp
	messages []message.Message
	now      func() int64 // overridable for deterministic tests
}

// NewMemStore returns an empty MemStore using wall-clock millisecond
// timestamps.
func NewMemStore() *MemStore {
	return &MemStore{
		byID:   make(map[string]int64),
		lastTS: make(map[string]int64),
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

func (s *MemStore) Append(_ context.Context, msg message.Message) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[msg.ClusterID]++
	msg.ID = s.byID[msg.ClusterID]

	ts := s.now()
	if last := s.lastTS[msg.ClusterID]; ts < last {
		ts = last
	}
	msg.Timestamp = ts
	s.lastTS[msg.ClusterID] = ts

	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *MemStore) Query(_ context.Context, f Filter) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []message.Message
	for _, m := range s.messages {
		if f.Matches(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	out = newestFirst(f.Limit, out)
	return out, nil
}

func (s *MemStore) FindLast(ctx context.Context, f Filter) (message.Message, error) {
	matches, err := s.Query(ctx, f)
	if err != nil {
		return message.Message{}, err
	}
	if len(matches) == 0 {
		return message.Message{}, ErrNotFound
	}
	return matches[len(matches)-1], nil
}

func (s *MemStore) Count(_ context.Context, f Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range s.messages {
		if f.Matches(m) {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) TokenUsage(_ context.Context, clusterID string, roleOf func(string) string) (TokenUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage := TokenUsage{ByRole: make(map[string]RoleUsage)}
	for _, m := range s.messages {
		if m.ClusterID != clusterID {
			continue
		}
		role := "system"
		if roleOf != nil {
			if r := roleOf(m.Sender); r != "" {
				role = r
			}
		}
		accumulate(usage.ByRole, role, m)
		usage.Total.InputTokens += m.InputTokens
		usage.Total.OutputTokens += m.OutputTokens
		usage.Total.CostUSD += m.CostUSD
	}
	return usage, nil
}
