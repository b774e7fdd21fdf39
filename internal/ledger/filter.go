package ledger

import "github.com/orc-run/orc/internal/message"

// Filter selects a subset of a cluster's ledger. It is the structural
// query object every ledger backend, the bus, and the logic engine's
// ledger global all share — adapted from the tag-matching shape of a
// Nostr filter (kinds/tags/since/until/limit) down to the flatter set of
// fields this system's ledger actually needs.
type Filter struct {
	ClusterID string
	Topic     string // empty matches any topic
	Sender    string // empty matches any sender
	Since     int64  // inclusive lower bound on Timestamp; 0 means unbounded
	Until     int64  // inclusive upper bound on Timestamp; 0 means unbounded
	Limit     int    // 0 means unbounded
}

// Matches reports whether m satisfies f, ignoring Limit (which is a
// post-query slicing concern, not a per-message predicate).
func (f Filter) Matches(m message.Message) bool {
	if f.ClusterID != "" && m.ClusterID != f.ClusterID {
		return false
	}
	if f.Topic != "" && m.Topic != f.Topic {
		return false
	}
	if f.Sender != "" && m.Sender != f.Sender {
		return false
	}
	if f.Since != 0 && m.Timestamp < f.Since {
		return false
	}
	if f.Until != 0 && m.Timestamp > f.Until {
		return false
	}
	return true
}
