// Package ledger implements the append-only message store described in
// the system's component design: every cluster event lands here first,
// and every other component (bus, logic engine, context builder) reads
// through one of the four query shapes this package exposes.
package ledger

import (
	"context"
	"errors"

	"github.com/orc-run/orc/internal/message"
)

// ErrNotFound is returned by FindLast when no message matches the filter.
var ErrNotFound = errors.New("ledger: no matching message")

// RoleUsage is the per-role slice of a cluster's aggregate token/cost
// accounting, keyed by the ledger's tokenUsage query.
type RoleUsage struct {
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// TokenUsage is the result of the tokenUsage(cluster_id) query: a
// per-role breakdown plus a grand total.
type TokenUsage struct {
	ByRole map[string]RoleUsage
	Total  RoleUsage
}

// Store is the append-only, query-only surface every ledger backend
// implements. Implementations must give each query a consistent
// snapshot view: a query never observes a partial append.
type Store interface {
	// Append stores msg, assigning ID (strictly increasing within the
	// message's ClusterID) and Timestamp (ms epoch, monotonic
	// non-decreasing within the same cluster), and returns the stored
	// copy.
	Append(ctx context.Context, msg message.Message) (message.Message, error)

	// Query returns messages matching f, ordered by Timestamp ascending.
	// If f.Limit > 0, only the newest Limit matches are kept, then
	// re-sorted ascending.
	Query(ctx context.Context, f Filter) ([]message.Message, error)

	// FindLast returns the highest-timestamp match for f, or
	// ErrNotFound if none match.
	FindLast(ctx context.Context, f Filter) (message.Message, error)

	// Count returns the number of messages matching f.
	Count(ctx context.Context, f Filter) (int, error)

	// TokenUsage aggregates token/cost fields across every message in
	// clusterID, broken down by the publishing agent's role.
	//
	// roleOf resolves a sender id to a role label; senders unknown to
	// roleOf (including "system") are reported under the role "system".
	TokenUsage(ctx context.Context, clusterID string, roleOf func(sender string) string) (TokenUsage, error)
}

func newestFirst(limit int, msgs []message.Message) []message.Message {
	if limit <= 0 || limit >= len(msgs) {
		return msgs
	}
	return msgs[len(msgs)-limit:]
}

func accumulate(usage map[string]RoleUsage, role string, m message.Message) {
	ru := usage[role]
	ru.InputTokens += m.InputTokens
	ru.OutputTokens += m.OutputTokens
	ru.CostUSD += m.CostUSD
	usage[role] = ru
}
