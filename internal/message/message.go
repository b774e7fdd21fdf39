// Package message defines the ledger's atom: an immutable record of one
// event published by an agent or the system onto a cluster's ledger.
package message

// Content carries the human-readable and/or structured payload of a
// Message. Either field may be empty; at least one is normally set.
type Content struct {
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// Message is the atom of the ledger. It is immutable once appended: the
// ledger assigns ID and Timestamp on append and nothing mutates them
// afterward.
type Message struct {
	ID        int64   `json:"id"`
	Timestamp int64   `json:"timestamp"`
	ClusterID string  `json:"cluster_id"`
	Topic     string  `json:"topic"`
	Sender    string  `json:"sender"`
	Receiver  string  `json:"receiver"`
	Content   Content `json:"content"`

	SenderModel    string `json:"sender_model,omitempty"`
	SenderProvider string `json:"sender_provider,omitempty"`

	InputTokens  int64   `json:"input_tokens,omitempty"`
	OutputTokens int64   `json:"output_tokens,omitempty"`
	CostUSD      float64 `json:"cost_usd,omitempty"`
}

// ReceiverBroadcast is the reserved receiver value meaning "every agent
// subscribed to this cluster may act on this message."
const ReceiverBroadcast = "broadcast"

// SenderSystem is the reserved sender identity used for messages the
// orchestrator itself publishes (boot, shutdown, control topics).
const SenderSystem = "system"

// Reserved control topics.
const (
	TopicIssueOpened       = "ISSUE_OPENED"
	TopicClusterResumed    = "CLUSTER_RESUMED"
	TopicClusterComplete   = "CLUSTER_COMPLETE"
	TopicClusterOperations = "CLUSTER_OPERATIONS"
	TopicAgentLifecycle    = "AGENT_LIFECYCLE"
	TopicAgentError        = "AGENT_ERROR"
	TopicAgentResume       = "AGENT_RESUME"
	TopicAgentExhausted    = "AGENT_EXHAUSTED"
	TopicValidationResult  = "VALIDATION_RESULT"
	TopicImplementationRdy = "IMPLEMENTATION_READY"
	TopicPlanReady         = "PLAN_READY"
	TopicTaskLog           = "TASK_LOG"
	TopicTaskStale         = "TASK_STALE"
	TopicSchemaWarning     = "SCHEMA_WARNING"
)
