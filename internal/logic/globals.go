package logic

import (
	"context"

	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/message"
)

// AgentView is the read-only projection of an agent exposed to scripts
// as the `agent` global and as elements returned from
// ClusterView.GetAgentsByRole.
type AgentView struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Iteration int    `json:"iteration"`
	ClusterID string `json:"cluster_id"`
}

// ClusterView is the read-only projection of a cluster exposed to
// scripts as the `cluster` global.
type ClusterView struct {
	ID              string
	CreatedAt       int64
	GetAgent        func(id string) (AgentView, bool)
	GetAgentsByRole func(role string) []AgentView
}

// Globals is everything a script may observe. Message is nil for
// scripts not evaluated in response to a specific triggering message,
// such as the hook logic and transform scripts an agent runs after a
// task.
type Globals struct {
	Ctx     context.Context
	Store   ledger.Store
	Cluster ClusterView
	Message *message.Message
	Agent   AgentView
}

func messageToMap(m message.Message) map[string]any {
	return map[string]any{
		"id":              m.ID,
		"timestamp":       m.Timestamp,
		"cluster_id":      m.ClusterID,
		"topic":           m.Topic,
		"sender":          m.Sender,
		"receiver":        m.Receiver,
		"content":         map[string]any{"text": m.Content.Text, "data": m.Content.Data},
		"sender_model":    m.SenderModel,
		"sender_provider": m.SenderProvider,
	}
}

func agentToMap(a AgentView) map[string]any {
	return map[string]any{
		"id":         a.ID,
		"role":       a.Role,
		"iteration":  a.Iteration,
		"cluster_id": a.ClusterID,
	}
}

func filterFromJS(clusterID string, raw map[string]any) ledger.Filter {
	f := ledger.Filter{ClusterID: clusterID}
	if v, ok := raw["topic"].(string); ok {
		f.Topic = v
	}
	if v, ok := raw["sender"].(string); ok {
		f.Sender = v
	}
	if v, ok := numberOf(raw["since"]); ok {
		f.Since = v
	}
	if v, ok := numberOf(raw["until"]); ok {
		f.Until = v
	}
	if v, ok := numberOf(raw["limit"]); ok {
		f.Limit = int(v)
	}
	return f
}

func numberOf(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
