// Package logic implements the sandboxed, bounded-time JavaScript
// evaluator used by triggers, hook logic, and transform scripts.
// It is the one place in the system that runs user-authored code, so
// every capability it exposes is deliberately narrow: value-only
// built-ins, a read-only ledger/cluster view, and a hard wall-clock
// deadline per script kind.
package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// Kind selects a script's role, which determines its timeout and its
// return-value contract.
type Kind int

const (
	// KindTrigger scripts decide whether a trigger fires. Any error or
	// timeout is fail-safe: treated as false, never propagated.
	KindTrigger Kind = iota
	// KindHookLogic scripts produce a config-override object (or
	// null/undefined for none). Errors propagate.
	KindHookLogic
	// KindTransform scripts produce the outgoing message itself.
	// Errors propagate.
	KindTransform
)

func (k Kind) timeout() time.Duration {
	switch k {
	case KindTransform:
		return 5 * time.Second
	default:
		return 1 * time.Second
	}
}

func (k Kind) String() string {
	switch k {
	case KindTrigger:
		return "trigger"
	case KindHookLogic:
		return "hook-logic"
	case KindTransform:
		return "transform"
	default:
		return "unknown"
	}
}

// ErrScriptTimeout is returned (wrapped) when a script exceeds its
// kind's deadline. Trigger evaluation never surfaces this to callers —
// EvalTrigger converts it to false — but hook-logic/transform callers
// see it directly.
var ErrScriptTimeout = errors.New("logic: script exceeded its time budget")

// Engine evaluates scripts against a fresh, single-use goja runtime per
// call. Runtimes are not reused across scripts: the sandbox must never
// leak state from one cluster's script into another's.
type Engine struct{}

// New returns a ready-to-use Engine. It holds no state.
func New() *Engine { return &Engine{} }

// ValidateSyntax performs the config-load-time parse attempt described
// bad syntax is a configuration error, caught before the
// cluster ever runs.
func (e *Engine) ValidateSyntax(script string) error {
	_, err := goja.Compile("<script>", wrap(script), false)
	if err != nil {
		return fmt.Errorf("logic: syntax error: %w", err)
	}
	return nil
}

func wrap(script string) string {
	return "(function(){\n" + script + "\n})()"
}

func (e *Engine) newRuntime(g *Globals) *goja.Runtime {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	vm.Set("console", map[string]any{
		"log": func(goja.FunctionCall) goja.Value { return goja.Undefined() },
		"warn": func(goja.FunctionCall) goja.Value { return goja.Undefined() },
		"error": func(goja.FunctionCall) goja.Value { return goja.Undefined() },
	})

	ledgerObj := map[string]any{
		"query": func(raw map[string]any) []map[string]any {
			f := filterFromJS(g.Cluster.ID, raw)
			msgs, err := g.Store.Query(g.Ctx, f)
			if err != nil {
				panic(vm.ToValue(err.Error()))
			}
			out := make([]map[string]any, len(msgs))
			for i, m := range msgs {
				out[i] = messageToMap(m)
			}
			return out
		},
		"findLast": func(raw map[string]any) any {
			f := filterFromJS(g.Cluster.ID, raw)
			m, err := g.Store.FindLast(g.Ctx, f)
			if err != nil {
				return nil
			}
			return messageToMap(m)
		},
		"count": func(raw map[string]any) int64 {
			f := filterFromJS(g.Cluster.ID, raw)
			n, err := g.Store.Count(g.Ctx, f)
			if err != nil {
				panic(vm.ToValue(err.Error()))
			}
			return int64(n)
		},
	}
	vm.Set("ledger", ledgerObj)

	clusterObj := map[string]any{
		"id":        g.Cluster.ID,
		"createdAt": g.Cluster.CreatedAt,
		"getAgent": func(id string) any {
			a, ok := g.Cluster.GetAgent(id)
			if !ok {
				return nil
			}
			return agentToMap(a)
		},
		"getAgentsByRole": func(role string) []map[string]any {
			agents := g.Cluster.GetAgentsByRole(role)
			out := make([]map[string]any, len(agents))
			for i, a := range agents {
				out[i] = agentToMap(a)
			}
			return out
		},
	}
	vm.Set("cluster", clusterObj)

	if g.Message != nil {
		vm.Set("message", messageToMap(*g.Message))
	} else {
		vm.Set("message", nil)
	}

	vm.Set("agent", agentToMap(g.Agent))

	h := &helpersBinding{g: g}
	vm.Set("helpers", map[string]any{
		"allResponded": h.AllResponded,
		"hasConsensus": h.HasConsensus,
	})

	return vm
}

// run executes script in a fresh sandbox, enforcing kind's deadline.
// The returned value is whatever the script's top-level return
// evaluated to, exported to a plain Go value.
func (e *Engine) run(g *Globals, kind Kind, script string) (any, error) {
	vm := e.newRuntime(g)

	done := make(chan struct{})
	timer := time.AfterFunc(kind.timeout(), func() {
		vm.Interrupt(ErrScriptTimeout)
	})
	defer timer.Stop()

	var (
		val goja.Value
		err error
	)
	go func() {
		defer close(done)
		val, err = vm.RunString(wrap(script))
	}()
	<-done

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("logic: %s script: %w", kind, ErrScriptTimeout)
		}
		return nil, fmt.Errorf("logic: %s script: %w", kind, err)
	}
	return val.Export(), nil
}

// EvalTrigger runs a trigger script. Any error (syntax, runtime throw,
// timeout) is fail-safe: it returns false, never an error, matching the
// "do not fire" default.
func (e *Engine) EvalTrigger(g *Globals, script string) bool {
	v, err := e.run(g, KindTrigger, script)
	if err != nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// EvalHookLogic runs a hook-logic script, returning the config-override
// object (nil for no override). Errors propagate.
func (e *Engine) EvalHookLogic(g *Globals, script string) (map[string]any, error) {
	v, err := e.run(g, KindHookLogic, script)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("logic: hook-logic script must return an object or null/undefined, got %T", v)
	}
	return m, nil
}

// EvalTransform runs a transform script. The result must be an object
// with non-empty topic and content fields; anything else is
// an error.
func (e *Engine) EvalTransform(g *Globals, script string) (map[string]any, error) {
	v, err := e.run(g, KindTransform, script)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("logic: transform script must return an object")
	}
	topic, _ := m["topic"].(string)
	if topic == "" {
		return nil, fmt.Errorf("logic: transform script result missing topic")
	}
	if _, ok := m["content"]; !ok {
		return nil, fmt.Errorf("logic: transform script result missing content")
	}
	return m, nil
}
