package validator

import "github.com/orc-run/orc/internal/clusterconfig"

// agentEdge is one "consumer depends on producer" edge in the
// agent-level dependency graph: consumer fires because of a topic
// producer publishes.
type agentEdge struct {
	producer string
	consumer string
	guarded  bool
}

// checkNAgentCycles is phase 8: DFS over the agent-depends-on-agent
// graph derived from the topic graph, reporting the first cycle found.
func checkNAgentCycles(a *acc, doc clusterconfig.Document, path string) {
	g := buildTopicGraph(doc)

	adj := map[string][]agentEdge{}
	for _, ag := range doc.Agents {
		for _, t := range ag.Triggers {
			for _, producer := range g.producers[t.Topic] {
				if producer == ag.ID {
					continue
				}
				guarded := t.Logic != nil && t.Logic.Script != ""
				adj[producer] = append(adj[producer], agentEdge{producer: producer, consumer: ag.ID, guarded: guarded})
			}
		}
	}

	visited := map[string]int{} // 0 unvisited, 1 in-stack, 2 done
	var stack []agentEdge

	var dfs func(node string) bool
	dfs = func(node string) bool {
		visited[node] = 1
		for _, e := range adj[node] {
			switch visited[e.consumer] {
			case 1:
				stack = append(stack, e)
				reportCycle(a, path, cycleSlice(stack, e.consumer))
				return true
			case 0:
				stack = append(stack, e)
				if dfs(e.consumer) {
					return true
				}
				stack = stack[:len(stack)-1]
			}
		}
		visited[node] = 2
		return false
	}

	for _, ag := range doc.Agents {
		if visited[ag.ID] == 0 {
			if dfs(ag.ID) {
				return
			}
		}
	}
}

// cycleSlice trims the DFS path down to just the cycle: from the edge
// whose producer first equals closesAt, to the end.
func cycleSlice(stack []agentEdge, closesAt string) []agentEdge {
	for i, e := range stack {
		if e.producer == closesAt {
			return stack[i:]
		}
	}
	return stack
}

func reportCycle(a *acc, path string, stack []agentEdge) {
	anyGuarded := false
	ids := make([]string, 0, len(stack)+1)
	for _, e := range stack {
		ids = append(ids, e.producer)
		if e.guarded {
			anyGuarded = true
		}
	}
	if len(stack) > 0 {
		ids = append(ids, stack[len(stack)-1].consumer)
	}

	if anyGuarded {
		a.warnf(8, path, "agent dependency cycle %v has at least one guarded edge", ids)
	} else {
		a.errorf(8, path, "agent dependency cycle %v is entirely unguarded", ids)
	}
}
