package validator

import (
	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/message"
)

// checkFlow is phase 2: message-flow reachability and shape checks
// over the static producer/consumer graph. Skipped entirely for
// conductor-style configs whose graph is dynamic (isConductorDynamic).
func checkFlow(a *acc, doc clusterconfig.Document, path string) {
	g := buildTopicGraph(doc)

	if len(g.consumers[message.TopicIssueOpened]) == 0 {
		a.errorf(2, path, "no agent consumes ISSUE_OPENED; the cluster can never start")
	}

	checkSingleStopHandler(a, doc, path)

	for topic, agents := range g.producers {
		if topic == "" || reservedTopics[topic] {
			continue
		}
		if len(g.consumers[topic]) == 0 {
			a.warnf(2, path, "topic %q is produced by %v but never consumed (orphan topic)", topic, agents)
		}
	}

	for topic, agents := range g.consumers {
		if reservedTopics[topic] {
			continue
		}
		if len(g.producers[topic]) == 0 && !g.opaque {
			a.errorf(2, path, "topic %q is consumed by %v but never produced", topic, agents)
		}
	}

	checkSelfTriggers(a, doc, g, path)
	checkTwoCycles(a, doc, g, path)
	checkValidatorConsumption(a, doc, g, path)
	checkTriggerContextAlignment(a, doc, path)
}

// checkSingleStopHandler requires exactly one stop_cluster handler —
// either a trigger with action stop_cluster, a hook with action
// stop_cluster, or (substituting for both) a single
// completion-detector agent.
func checkSingleStopHandler(a *acc, doc clusterconfig.Document, path string) {
	var handlers []string
	for _, ag := range doc.Agents {
		for _, t := range ag.Triggers {
			if t.Action == clusterconfig.ActionStopCluster {
				handlers = append(handlers, ag.ID+" (trigger)")
			}
		}
		for lifecycle, h := range ag.Hooks {
			if h.Action == clusterconfig.HookActionStopCluster {
				handlers = append(handlers, ag.ID+" ("+lifecycle+" hook)")
			}
		}
		if ag.Role == clusterconfig.RoleCompletionDetector {
			handlers = append(handlers, ag.ID+" (completion-detector)")
		}
	}

	switch len(handlers) {
	case 0:
		a.errorf(2, path, "no stop_cluster handler and no completion-detector agent; the cluster can never end")
	case 1:
	default:
		a.errorf(2, path, "more than one stop_cluster handler: %v", handlers)
	}
}

func checkSelfTriggers(a *acc, doc clusterconfig.Document, g topicGraph, path string) {
	for i, ag := range doc.Agents {
		produced := map[string]bool{}
		for _, topic := range hookProducedTopics(ag) {
			produced[topic] = true
		}
		for j, t := range ag.Triggers {
			if t.Topic == "" || !produced[t.Topic] {
				continue
			}
			if t.Logic == nil || t.Logic.Script == "" {
				a.errorf(2, pathf("%sagents[%d].triggers[%d]", path, i, j), "agent %q self-triggers on %q without a guard (logic), instant infinite loop", ag.ID, t.Topic)
			}
		}
	}
}

// checkTwoCycles warns when agent A triggers on a topic B produces and
// B triggers on a topic A produces, unless at least one edge in the
// pair carries a guard.
func checkTwoCycles(a *acc, doc clusterconfig.Document, g topicGraph, path string) {
	type edge struct {
		from, to string
		guarded  bool
	}
	var edges []edge
	for _, ag := range doc.Agents {
		for _, t := range ag.Triggers {
			for _, producer := range g.producers[t.Topic] {
				if producer == ag.ID {
					continue
				}
				edges = append(edges, edge{from: producer, to: ag.ID, guarded: t.Logic != nil && t.Logic.Script != ""})
			}
		}
	}

	seen := map[[2]string]bool{}
	for _, e1 := range edges {
		for _, e2 := range edges {
			if e1.from != e2.to || e1.to != e2.from {
				continue
			}
			key := [2]string{e1.from, e1.to}
			rev := [2]string{e2.from, e2.to}
			if seen[key] || seen[rev] {
				continue
			}
			seen[key] = true
			if !e1.guarded && !e2.guarded {
				a.warnf(2, path, "two-cycle between %q and %q with no guard logic on either edge", e1.from, e1.to)
			}
		}
	}
}

func checkValidatorConsumption(a *acc, doc clusterconfig.Document, g topicGraph, path string) {
	hasValidator := false
	for _, ag := range doc.Agents {
		if ag.Role == clusterconfig.RoleValidator {
			hasValidator = true
			break
		}
	}
	if !hasValidator {
		return
	}
	for i, ag := range doc.Agents {
		if ag.Role != clusterconfig.RoleImplementation {
			continue
		}
		consumes := false
		for _, t := range ag.Triggers {
			if t.Topic == message.TopicValidationResult {
				consumes = true
				break
			}
		}
		if !consumes {
			a.errorf(2, pathf("%sagents[%d]", path, i), "validators are present but worker %q does not consume VALIDATION_RESULT", ag.ID)
		}
	}
}

func checkTriggerContextAlignment(a *acc, doc clusterconfig.Document, path string) {
	for i, ag := range doc.Agents {
		sources := map[string]bool{}
		for _, s := range ag.ContextStrategy.Sources {
			sources[s.Topic] = true
		}
		for j, t := range ag.Triggers {
			if t.Topic != "" && !sources[t.Topic] {
				a.warnf(2, pathf("%sagents[%d].triggers[%d]", path, i, j), "trigger topic %q is not represented in agent %q's context strategy", t.Topic, ag.ID)
			}
		}
	}
}
