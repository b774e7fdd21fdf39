package validator

import (
	"strings"

	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/providercatalog"
)

// largeMaxIterations is the phase-3 advisory threshold past which a
// maxIterations value is probably a typo rather than an intentional
// long-running agent.
const largeMaxIterations = 500

var prohibitedGitTokens = []string{"git diff", "git status", "git log", "git show"}

// checkAgents is phase 3: per-agent semantic checks independent of the
// wider message-flow graph.
func checkAgents(a *acc, doc clusterconfig.Document, path string) {
	for i, ag := range doc.Agents {
		p := pathf("%sagents[%d]", path, i)

		if ag.Role == clusterconfig.RoleOrchestrator {
			for j, t := range ag.Triggers {
				if t.Action == clusterconfig.ActionExecuteTask {
					a.warnf(3, pathf("%s.triggers[%d]", p, j), "orchestrator agent %q should not carry execute_task triggers", ag.ID)
				}
			}
		}

		if ag.Role == clusterconfig.RoleValidator {
			for _, prompt := range promptTexts(ag.PromptPolicy) {
				lower := strings.ToLower(prompt)
				for _, token := range prohibitedGitTokens {
					if strings.Contains(lower, token) {
						a.errorf(3, p, "validator %q prompt embeds literal %q; git state is unreliable inside agents", ag.ID, token)
					}
				}
			}
		}

		if ag.ResolvedOutputFormat() == clusterconfig.OutputJSON && ag.Output.JSONSchema == nil {
			a.warnf(3, p, "agent %q uses outputFormat json without a jsonSchema; falling back to the default {summary, result} schema", ag.ID)
		}

		if ag.ResolvedMaxIterations() > largeMaxIterations {
			a.warnf(3, p, "agent %q has a large maxIterations (%d); confirm this is intentional", ag.ID, ag.ResolvedMaxIterations())
		}

		if ag.ModelPolicy.Model != "" && !providercatalog.IsLegacyModel(ag.ModelPolicy.Model) {
			a.errorf(3, p, "agent %q declares raw model %q; use modelLevel instead (legacy opus/sonnet/haiku literals are still accepted)", ag.ID, ag.ModelPolicy.Model)
		}
	}
}
