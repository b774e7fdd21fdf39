package validator

import (
	"encoding/json"
	"regexp"

	"github.com/orc-run/orc/internal/clusterconfig"
)

var resultVarPattern = regexp.MustCompile(`\{\{result\.([a-zA-Z0-9_.]+)\}\}`)

// checkTemplateVariables is phase 5: every {{result.*}} reference in an
// agent's own hook config, transform scripts, and hook logic must name
// a field the agent's own jsonSchema declares; schema fields that are
// never referenced are a warning, not an error, since a field can
// legitimately exist only for external consumers of the result.
func checkTemplateVariables(a *acc, doc clusterconfig.Document, path string) {
	for i, ag := range doc.Agents {
		p := pathf("%sagents[%d]", path, i)
		used := map[string]bool{}

		for lifecycle, hook := range ag.Hooks {
			for _, field := range extractResultFields(hook) {
				used[field] = true
				if !schemaHasProperty(ag.ResolvedJSONSchema(), field) {
					a.errorf(5, pathf("%s.hooks.%s", p, lifecycle), "{{result.%s}} has no matching property in agent %q's jsonSchema", field, ag.ID)
				}
			}
		}

		declared := schemaProperties(ag.ResolvedJSONSchema())
		for _, field := range declared {
			if !used[field] {
				a.warnf(5, p, "jsonSchema property %q is never referenced by any {{result.%s}} template", field, field)
			}
		}
	}
}

func extractResultFields(hook clusterconfig.Hook) []string {
	var out []string
	seen := map[string]bool{}
	add := func(text string) {
		for _, m := range resultVarPattern.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}

	if raw, err := json.Marshal(hook.Config); err == nil {
		add(string(raw))
	}
	add(hook.Transform)
	add(hook.Logic)
	return out
}

func schemaProperties(schema map[string]any) []string {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(props))
	for k := range props {
		out = append(out, k)
	}
	return out
}

func schemaHasProperty(schema map[string]any, field string) bool {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = props[field]
	return ok
}
