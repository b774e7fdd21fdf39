package validator

import "github.com/orc-run/orc/internal/clusterconfig"

// checkStructure is phase 1: required fields, unique id, valid
// iteration-pattern strings, trigger shape, depth is checked by the
// caller before recursing.
func checkStructure(a *acc, doc clusterconfig.Document, path string, depth int) {
	seen := map[string]bool{}

	for i, ag := range doc.Agents {
		p := pathf("%sagents[%d]", path, i)

		if ag.ID == "" {
			a.errorf(1, p, "agent missing required field id")
		} else if seen[ag.ID] {
			a.errorf(1, p, "duplicate agent id %q", ag.ID)
		} else {
			seen[ag.ID] = true
		}

		if ag.Role == "" {
			a.errorf(1, p, "agent %q missing required field role", ag.ID)
		}

		for j, t := range ag.Triggers {
			tp := pathf("%s.triggers[%d]", p, j)
			if t.Topic == "" {
				a.errorf(1, tp, "trigger missing required field topic")
			}
			switch t.Action {
			case clusterconfig.ActionExecuteTask, clusterconfig.ActionStopCluster:
			case "":
				a.errorf(1, tp, "trigger missing required field action")
			default:
				a.errorf(1, tp, "trigger has unknown action %q", t.Action)
			}
		}

		for j, r := range ag.ModelPolicy.ModelRules {
			if !clusterconfig.ValidIterationPattern(r.Iterations) {
				a.errorf(1, pathf("%s.modelPolicy.modelRules[%d]", p, j), "invalid iteration pattern %q", r.Iterations)
			}
		}
		for j, r := range ag.PromptPolicy.Rules {
			if !clusterconfig.ValidIterationPattern(r.Iterations) {
				a.errorf(1, pathf("%s.promptPolicy[%d]", p, j), "invalid iteration pattern %q", r.Iterations)
			}
		}
	}
}
