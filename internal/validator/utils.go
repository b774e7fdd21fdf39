package validator

import (
	"fmt"
	"strings"

	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/message"
)

func containsToken(haystack, token string) bool {
	return strings.Contains(haystack, token)
}

// reservedTopics are produced by the runtime itself (orchestrator
// bootstrap, every agent's own lifecycle reporting), never by a hook
// or trigger, so the flow checks never flag them as orphaned or
// unproduced.
var reservedTopics = map[string]bool{
	message.TopicIssueOpened:       true,
	message.TopicClusterResumed:    true,
	message.TopicClusterComplete:   true,
	message.TopicClusterOperations: true,
	message.TopicAgentLifecycle:    true,
	message.TopicAgentError:        true,
	message.TopicAgentResume:       true,
	message.TopicAgentExhausted:    true,
}

// topicGraph is the bipartite producer/consumer graph phase 2 and
// phase 8 both build: which agents publish which topics (statically
// known ones only; transform-script topics are opaque) and which
// agents consume which topics via a trigger.
type topicGraph struct {
	producers map[string][]string // topic -> agent ids
	consumers map[string][]string // topic -> agent ids
	opaque    bool                // true if any hook's topic could not be statically determined
}

func buildTopicGraph(doc clusterconfig.Document) topicGraph {
	g := topicGraph{producers: map[string][]string{}, consumers: map[string][]string{}}

	for _, ag := range doc.Agents {
		for _, t := range ag.Triggers {
			if t.Topic == "" {
				continue
			}
			g.consumers[t.Topic] = append(g.consumers[t.Topic], ag.ID)
			if t.Action == clusterconfig.ActionStopCluster {
				g.producers[message.TopicClusterComplete] = append(g.producers[message.TopicClusterComplete], ag.ID)
			}
		}
		for _, topic := range hookProducedTopics(ag) {
			if topic == "" {
				g.opaque = true
				continue
			}
			g.producers[topic] = append(g.producers[topic], ag.ID)
		}
	}
	return g
}

// hookProducedTopics returns the topics one agent's hooks could
// publish. An empty string in the result stands for "unknown" (a
// transform script whose topic is computed at runtime).
func hookProducedTopics(ag clusterconfig.AgentConfig) []string {
	var out []string
	for _, hook := range ag.Hooks {
		switch hook.Action {
		case clusterconfig.HookActionStopCluster:
			out = append(out, message.TopicClusterComplete)
		case clusterconfig.HookActionPublishMessage:
			if hook.Transform != "" {
				out = append(out, "")
				continue
			}
			if topic, _ := hook.Config["topic"].(string); topic != "" {
				out = append(out, topic)
			} else {
				out = append(out, "")
			}
		}
	}
	return out
}

// allScripts returns every sandboxed script body an agent declares:
// trigger guards, hook logic, transforms.
func allScripts(ag clusterconfig.AgentConfig) map[string]string {
	out := map[string]string{}
	for i, t := range ag.Triggers {
		if t.Logic != nil && t.Logic.Script != "" {
			out[pathf("triggers[%d].logic.script", i)] = t.Logic.Script
		}
	}
	for lifecycle, hook := range ag.Hooks {
		if hook.Logic != "" {
			out[pathf("hooks.%s.logic", lifecycle)] = hook.Logic
		}
		if hook.Transform != "" {
			out[pathf("hooks.%s.transform", lifecycle)] = hook.Transform
		}
	}
	return out
}

func pathf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

// promptTexts returns every literal prompt string an agent's prompt
// policy can resolve to, regardless of shape.
func promptTexts(p clusterconfig.PromptPolicy) []string {
	var out []string
	if p.Static != "" {
		out = append(out, p.Static)
	}
	if p.Initial != "" {
		out = append(out, p.Initial)
	}
	if p.Subsequent != "" {
		out = append(out, p.Subsequent)
	}
	for _, r := range p.Rules {
		out = append(out, r.Prompt)
	}
	return out
}

func checkDuplicateIDsAcrossTree(a *acc, doc clusterconfig.Document) {
	seen := map[string]bool{}
	var walk func(d clusterconfig.Document, path string)
	walk = func(d clusterconfig.Document, path string) {
		for i, ag := range d.Agents {
			p := pathf("%sagents[%d]", path, i)
			if ag.ID != "" {
				if seen[ag.ID] {
					a.errorf(9, p, "duplicate agent id %q across the cluster tree", ag.ID)
				}
				seen[ag.ID] = true
			}
			for j, sub := range ag.SubClusters {
				walk(sub, pathf("%ssubClusters[%d].", p+".", j))
			}
		}
	}
	walk(doc, "")
}
