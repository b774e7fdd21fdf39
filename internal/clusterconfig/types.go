// Package clusterconfig defines the declarative cluster configuration
// document and its JSON loading. Validation of a loaded Document
// lives in package validator; this package is concerned only with
// shape and defaults.
package clusterconfig

// Document is the top-level JSON configuration: "a cluster config is a
// JSON document with at minimum {agents: [...]}".
type Document struct {
	Agents []AgentConfig  `json:"agents"`
	Params map[string]any `json:"params,omitempty"`
}

// Role names in common use; role is data, not a Go type hierarchy
// ("State machine clarity").
const (
	RoleImplementation     = "implementation"
	RoleValidator          = "validator"
	RoleConductor          = "conductor"
	RoleCompletionDetector = "completion-detector"
	RoleOrchestrator       = "orchestrator"
)

// Trigger action kinds.
const (
	ActionExecuteTask = "execute_task"
	ActionStopCluster = "stop_cluster"
)

// Hook action kinds.
const (
	HookActionPublishMessage = "publish_message"
	HookActionStopCluster    = "stop_cluster"
)

// Hook lifecycle keys.
const (
	LifecycleOnComplete = "onComplete"
	LifecycleOnFailure  = "onFailure"
	LifecycleOnTimeout  = "onTimeout"
)

// Output formats.
const (
	OutputText       = "text"
	OutputJSON       = "json"
	OutputStreamJSON = "stream-json"
)

// Since values recognised by the context builder's since-resolution
// table; any other string is an ISO timestamp or an error.
const (
	SinceClusterStart    = "cluster_start"
	SinceLastTaskEnd     = "last_task_end"
	SinceLastAgentStart  = "last_agent_start"
)

// ScriptLogic is the {engine, script} pair attached to a trigger, hook
// logic, or transform.
type ScriptLogic struct {
	Engine string `json:"engine"` // only "javascript" is defined
	Script string `json:"script"`
}

// Trigger decides, for an incoming message, whether an agent acts.
type Trigger struct {
	Topic  string       `json:"topic"`
	Sender string       `json:"sender,omitempty"`
	Action string       `json:"action"`
	Logic  *ScriptLogic `json:"logic,omitempty"`
}

// ContextSource is one entry of a context strategy: a ledger query
// recipe that becomes one formatted section of the assembled prompt.
type ContextSource struct {
	Topic  string `json:"topic"`
	Sender string `json:"sender,omitempty"`
	Since  string `json:"since,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ContextStrategy is the ordered recipe turning ledger history into an
// agent's prompt context (item 8).
type ContextStrategy struct {
	Sources   []ContextSource `json:"sources,omitempty"`
	MaxTokens int             `json:"maxTokens,omitempty"` // legacy; 0 = unset
}

// ModelRule resolves to a model for a range of iterations; first match
// wins.
type ModelRule struct {
	Iterations      string `json:"iterations"`
	Model           string `json:"model,omitempty"`
	ModelLevel      string `json:"modelLevel,omitempty"`
	ReasoningEffort string `json:"reasoningEffort,omitempty"`
}

// ModelPolicy is either a static model/modelLevel or an ordered rule
// list, never both populated meaningfully at once (validator phase 3
// additionally forbids raw Model without going through ModelRules or
// ModelLevel for non-legacy configs).
type ModelPolicy struct {
	ModelLevel string      `json:"modelLevel,omitempty"`
	Model      string      `json:"model,omitempty"`
	ModelRules []ModelRule `json:"modelRules,omitempty"`
	MinLevel   string      `json:"minLevel,omitempty"`
	MaxLevel   string      `json:"maxLevel,omitempty"`
}

// PromptRule resolves to a prompt string for a range of iterations.
type PromptRule struct {
	Iterations string `json:"iterations"`
	Prompt     string `json:"prompt"`
}

// Hook is one lifecycle reaction.
type Hook struct {
	Action    string         `json:"action"`
	Config    map[string]any `json:"config,omitempty"`
	Transform string         `json:"transform,omitempty"` // script body
	Logic     string         `json:"logic,omitempty"`     // script body
}

// OutputConfig describes the agent's expected output shape.
type OutputConfig struct {
	Format     string         `json:"outputFormat,omitempty"`
	JSONSchema map[string]any `json:"jsonSchema,omitempty"`
}

// DefaultJSONSchema is used when OutputConfig.JSONSchema is unset: a
// schema requiring {summary, result}.
func DefaultJSONSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"summary", "result"},
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"result":  map[string]any{"type": "string"},
		},
	}
}

// AgentConfig is the declarative, load-time-validated description of
// one agent.
type AgentConfig struct {
	ID   string `json:"id"`
	Role string `json:"role"`

	// Provider selects which provider CLI's dialect this agent's tasks
	// speak; empty defers to the cluster-wide default (the run's
	// --provider flag).
	Provider        string          `json:"provider,omitempty"`
	Triggers        []Trigger       `json:"triggers,omitempty"`
	ContextStrategy ContextStrategy `json:"contextStrategy,omitempty"`
	ModelPolicy     ModelPolicy     `json:"modelPolicy,omitempty"`
	PromptPolicy    PromptPolicy    `json:"promptPolicy,omitempty"`
	Output          OutputConfig    `json:"output,omitempty"`
	Hooks           map[string]Hook `json:"hooks,omitempty"`

	MaxIterations        int    `json:"maxIterations,omitempty"`
	TimeoutMS            int64  `json:"timeout,omitempty"`
	StaleDurationMS       int64  `json:"staleDuration,omitempty"`
	EnableLivenessCheck  *bool  `json:"enableLivenessCheck,omitempty"`
	Isolation            string `json:"isolation,omitempty"`

	// SubClusters supports the recursive sub-cluster structures phase 1
	// of the validator must check (depth <= 5); a conductor-style agent
	// may declare further agents nested beneath it.
	SubClusters []Document `json:"subClusters,omitempty"`
}

// Defaults the spec assigns when a field is unset.
const (
	DefaultMaxIterations       = 100
	DefaultStaleDurationMS     = 30 * 60 * 1000
	DefaultEnableLivenessCheck = true
	DefaultOutputFormat        = OutputJSON
)

// ResolvedMaxIterations returns a.MaxIterations, defaulting per the documented rule.
func (a AgentConfig) ResolvedMaxIterations() int {
	if a.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return a.MaxIterations
}

// ResolvedStaleDurationMS returns a.StaleDurationMS, defaulting per the documented rule.
func (a AgentConfig) ResolvedStaleDurationMS() int64 {
	if a.StaleDurationMS <= 0 {
		return DefaultStaleDurationMS
	}
	return a.StaleDurationMS
}

// ResolvedEnableLivenessCheck returns a.EnableLivenessCheck, defaulting
// to true when unset.
func (a AgentConfig) ResolvedEnableLivenessCheck() bool {
	if a.EnableLivenessCheck == nil {
		return DefaultEnableLivenessCheck
	}
	return *a.EnableLivenessCheck
}

// ResolvedProvider returns a.Provider, defaulting to clusterDefault
// (the run-level --provider flag) when unset.
func (a AgentConfig) ResolvedProvider(clusterDefault string) string {
	if a.Provider == "" {
		return clusterDefault
	}
	return a.Provider
}

// ResolvedOutputFormat returns a.Output.Format, defaulting to "json".
func (a AgentConfig) ResolvedOutputFormat() string {
	if a.Output.Format == "" {
		return DefaultOutputFormat
	}
	return a.Output.Format
}

// ResolvedJSONSchema returns a.Output.JSONSchema, defaulting to
// DefaultJSONSchema().
func (a AgentConfig) ResolvedJSONSchema() map[string]any {
	if a.Output.JSONSchema == nil {
		return DefaultJSONSchema()
	}
	return a.Output.JSONSchema
}
