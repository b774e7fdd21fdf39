// Package validator implements the ten-phase cluster configuration
// static analyzer: the gate a config must pass before the
// orchestrator is ever allowed to boot it. Each phase accumulates
// fatal errors and non-fatal warnings into a shared Result rather than
// stopping at the first problem, so an operator sees every defect in
// one pass.
package validator

import (
	"fmt"

	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/logic"
	"github.com/orc-run/orc/internal/message"
)

// Severity distinguishes a fatal config error from an advisory
// warning.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Issue is one finding from one phase, anchored to the path of the
// document element it concerns (e.g. "agents[2].triggers[0]").
type Issue struct {
	Phase    int
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("[phase %d %s] %s: %s", i.Phase, i.Severity, i.Path, i.Message)
}

// Result is the accumulated outcome of validating one document (and,
// recursively, every sub-cluster it declares).
type Result struct {
	Errors   []Issue
	Warnings []Issue
}

// Valid reports whether the config may be booted: zero fatal errors.
// Warnings never block a boot.
func (r Result) Valid() bool { return len(r.Errors) == 0 }

type acc struct {
	result *Result
}

func (a *acc) errorf(phase int, path, format string, args ...any) {
	a.result.Errors = append(a.result.Errors, Issue{Phase: phase, Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (a *acc) warnf(phase int, path, format string, args ...any) {
	a.result.Warnings = append(a.result.Warnings, Issue{Phase: phase, Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)})
}

// maxSubClusterDepth is the phase-1 recursion limit.
const maxSubClusterDepth = 5

// Validate runs all ten phases against doc and every sub-cluster it
// nests, using engine only for the phase-4 syntax check (scripts are
// never evaluated against live data during validation).
func Validate(doc clusterconfig.Document, engine *logic.Engine) Result {
	r := &Result{}
	a := &acc{result: r}
	validateDocument(a, engine, doc, "", 1)
	checkDuplicateIDsAcrossTree(a, doc)
	return *r
}

func validateDocument(a *acc, engine *logic.Engine, doc clusterconfig.Document, path string, depth int) {
	if depth > maxSubClusterDepth {
		a.errorf(1, path, "sub-cluster nesting depth %d exceeds maximum of %d", depth, maxSubClusterDepth)
		return
	}

	checkStructure(a, doc, path, depth)
	checkAgents(a, doc, path)
	checkLogicScripts(a, engine, doc, path)
	checkTemplateVariables(a, doc, path)
	checkHookSemantics(a, doc, path)
	checkRuleCoverage(a, doc, path)
	checkNAgentCycles(a, doc, path)
	checkConfigSemantics(a, doc, path)
	checkProviderFeatures(a, doc, path)

	if !isConductorDynamic(doc) {
		checkFlow(a, doc, path)
	}

	for i, ag := range doc.Agents {
		for j, sub := range ag.SubClusters {
			subPath := fmt.Sprintf("%sagents[%d].subClusters[%d].", path, i, j)
			validateDocument(a, engine, sub, subPath, depth+1)
		}
	}
}

// isConductorDynamic reports whether doc is the conductor-style shape
// that skips phase 2: an agent with role conductor whose
// onComplete hook's completion topic is CLUSTER_OPERATIONS, making the
// message-flow graph dynamic rather than declared statically.
func isConductorDynamic(doc clusterconfig.Document) bool {
	for _, ag := range doc.Agents {
		if ag.Role != clusterconfig.RoleConductor {
			continue
		}
		hook, ok := ag.Hooks[clusterconfig.LifecycleOnComplete]
		if !ok {
			continue
		}
		if hookTargetsClusterOperations(hook) {
			return true
		}
	}
	return false
}

func hookTargetsClusterOperations(hook clusterconfig.Hook) bool {
	if hook.Action != clusterconfig.HookActionPublishMessage {
		return false
	}
	if topic, _ := hook.Config["topic"].(string); topic == message.TopicClusterOperations {
		return true
	}
	// Transform scripts compute their topic dynamically; a literal
	// mention of the topic string is the best static signal available.
	return hook.Transform != "" && containsToken(hook.Transform, message.TopicClusterOperations)
}
