// Package hookexec implements the hook executor: turning a
// lifecycle hook (onComplete/onFailure/onTimeout) into the next
// outgoing message, either by running a sandboxed transform script or
// by template-substituting a declarative config.
package hookexec

import (
	"encoding/json"
	"fmt"

	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/logic"
	"github.com/orc-run/orc/internal/message"
)

// Context carries everything a hook needs to resolve its template
// variables and run its scripts: the agent's own identity, the cycle
// that triggered it, and the structured result (or error) it produced.
type Context struct {
	Engine *logic.Engine
	// Globals is the same sandbox globals object used for trigger
	// evaluation, reused here so transform/hook-logic scripts see the
	// identical ledger/cluster/message/agent surface.
	Globals *logic.Globals

	ClusterID        string
	ClusterCreatedAt int64
	Iteration        int
	Sender           string

	// Result is the agent's parsed structured output for this cycle,
	// nil if the cycle produced none (e.g. onFailure with no output).
	Result map[string]any
	// ErrorMessage is set for onFailure/onTimeout hooks.
	ErrorMessage string
}

// ErrUnknownHookAction is returned for any hook.Action other than the
// two defined values.
var ErrUnknownHookAction = fmt.Errorf("hookexec: unknown hook action")

// Execute runs hook and returns the outgoing message it produces. A
// stop_cluster hook always returns a CLUSTER_COMPLETE message and
// ignores Config/Transform/Logic.
func Execute(hook clusterconfig.Hook, ctx Context) (*message.Message, error) {
	switch hook.Action {
	case clusterconfig.HookActionStopCluster:
		return &message.Message{
			ClusterID: ctx.ClusterID,
			Topic:     message.TopicClusterComplete,
			Sender:    ctx.Sender,
			Receiver:  message.ReceiverBroadcast,
			Content:   message.Content{Data: map[string]any{"reason": "stop_cluster hook"}},
		}, nil

	case clusterconfig.HookActionPublishMessage:
		return executePublish(hook, ctx)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHookAction, hook.Action)
	}
}

func executePublish(hook clusterconfig.Hook, ctx Context) (*message.Message, error) {
	if hook.Transform != "" {
		return executeTransform(hook, ctx)
	}
	return executeTemplate(hook, ctx)
}

func executeTransform(hook clusterconfig.Hook, ctx Context) (*message.Message, error) {
	out, err := ctx.Engine.EvalTransform(ctx.Globals, hook.Transform)
	if err != nil {
		return nil, fmt.Errorf("hookexec: transform script: %w", err)
	}
	return messageFromObject(ctx, out)
}

func executeTemplate(hook clusterconfig.Hook, ctx Context) (*message.Message, error) {
	cfg := hook.Config
	if hook.Logic != "" {
		overrides, err := ctx.Engine.EvalHookLogic(ctx.Globals, hook.Logic)
		if err != nil {
			return nil, fmt.Errorf("hookexec: hook logic script: %w", err)
		}
		cfg = deepMerge(cfg, overrides)
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("hookexec: marshal hook config: %w", err)
	}

	substituted, err := substitute(string(raw), ctx)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(substituted), &out); err != nil {
		return nil, fmt.Errorf("hookexec: substituted config is not valid JSON: %w", err)
	}
	return messageFromObject(ctx, out)
}

// messageFromObject validates the generic {topic, content, ...} shape
// a transform or templated hook must produce, with the additional
// CLUSTER_OPERATIONS shape check, and builds the outgoing message.
func messageFromObject(ctx Context, out map[string]any) (*message.Message, error) {
	topic, _ := out["topic"].(string)
	if topic == "" {
		return nil, fmt.Errorf("hookexec: outgoing message missing topic")
	}
	contentRaw, ok := out["content"]
	if !ok {
		return nil, fmt.Errorf("hookexec: outgoing message missing content")
	}
	contentMap, _ := contentRaw.(map[string]any)

	if topic == message.TopicClusterOperations {
		if err := validateClusterOperations(contentMap); err != nil {
			return nil, err
		}
	}

	receiver, _ := out["receiver"].(string)
	if receiver == "" {
		receiver = message.ReceiverBroadcast
	}

	text, _ := contentMap["text"].(string)
	data, _ := contentMap["data"].(map[string]any)

	return &message.Message{
		ClusterID: ctx.ClusterID,
		Topic:     topic,
		Sender:    ctx.Sender,
		Receiver:  receiver,
		Content:   message.Content{Text: text, Data: data},
	}, nil
}

func validateClusterOperations(content map[string]any) error {
	data, _ := content["data"].(map[string]any)
	opsRaw, ok := data["operations"]
	if !ok {
		return fmt.Errorf("hookexec: CLUSTER_OPERATIONS message missing content.data.operations")
	}
	ops, ok := opsRaw.([]any)
	if !ok || len(ops) == 0 {
		return fmt.Errorf("hookexec: CLUSTER_OPERATIONS operations must be a non-empty array")
	}
	for i, opRaw := range ops {
		op, ok := opRaw.(map[string]any)
		if !ok {
			return fmt.Errorf("hookexec: CLUSTER_OPERATIONS operations[%d] is not an object", i)
		}
		action, _ := op["action"].(string)
		if action == "" {
			return fmt.Errorf("hookexec: CLUSTER_OPERATIONS operations[%d] missing action", i)
		}
	}
	return nil
}

// deepMerge overlays overrides onto base, recursing into nested
// objects; overrides wins on scalar conflicts. Neither argument is
// mutated.
func deepMerge(base, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		if existing, ok := out[k].(map[string]any); ok {
			if incoming, ok := v.(map[string]any); ok {
				out[k] = deepMerge(existing, incoming)
				continue
			}
		}
		out[k] = v
	}
	return out
}
