package logic

import (
	"github.com/orc-run/orc/internal/ledger"
)

// helpersBinding implements the `helpers` global: small
// consensus utilities scripts would otherwise have to re-implement by
// hand against the raw ledger query API.
type helpersBinding struct {
	g *Globals
}

// AllResponded reports whether every id in agentIDs has published at
// least one message on topic with timestamp >= sinceTs.
func (h *helpersBinding) AllResponded(agentIDs []any, topic string, sinceTs int64) bool {
	if len(agentIDs) == 0 {
		return true
	}
	for _, raw := range agentIDs {
		id, ok := raw.(string)
		if !ok {
			if m, ok := raw.(map[string]any); ok {
				id, _ = m["id"].(string)
			}
		}
		if id == "" {
			return false
		}
		n, err := h.g.Store.Count(h.g.Ctx, ledger.Filter{ClusterID: h.g.Cluster.ID, Topic: topic, Sender: id, Since: sinceTs})
		if err != nil || n == 0 {
			return false
		}
	}
	return true
}

// HasConsensus reports whether every distinct sender's most recent
// message on topic since sinceTs carries content.data.approved === true,
// and at least one such message exists.
func (h *helpersBinding) HasConsensus(topic string, sinceTs int64) bool {
	msgs, err := h.g.Store.Query(h.g.Ctx, ledger.Filter{ClusterID: h.g.Cluster.ID, Topic: topic, Since: sinceTs})
	if err != nil || len(msgs) == 0 {
		return false
	}

	latestBySender := make(map[string]bool)
	order := make([]string, 0, len(msgs))
	for _, m := range msgs {
		approved, _ := m.Content.Data["approved"].(bool)
		if _, seen := latestBySender[m.Sender]; !seen {
			order = append(order, m.Sender)
		}
		latestBySender[m.Sender] = approved
	}

	for _, sender := range order {
		if !latestBySender[sender] {
			return false
		}
	}
	return true
}
