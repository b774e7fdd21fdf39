package validator

import (
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/orc-run/orc/internal/clusterconfig"
)

// checkConfigSemantics is phase 9. Recursive duplicate-id detection
// runs once over the whole tree from Validate, not per-document here.
func checkConfigSemantics(a *acc, doc clusterconfig.Document, path string) {
	checkJSONSchemaShape(a, doc, path)
	checkContextSourcesSemantics(a, doc, path)
	checkParamsExtensions(a, doc, path)
	checkRoleReferenceFallback(a, doc, path)
}

func checkJSONSchemaShape(a *acc, doc clusterconfig.Document, path string) {
	for i, ag := range doc.Agents {
		if ag.Output.JSONSchema == nil {
			continue
		}
		p := pathf("%sagents[%d].output.jsonSchema", path, i)
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(ag.Output.JSONSchema)); err != nil {
			a.errorf(9, p, "jsonSchema is not a valid, serialisable JSON Schema document: %v", err)
		}
	}
}

func checkContextSourcesSemantics(a *acc, doc clusterconfig.Document, path string) {
	g := buildTopicGraph(doc)
	for i, ag := range doc.Agents {
		for j, s := range ag.ContextStrategy.Sources {
			p := pathf("%sagents[%d].contextStrategy.sources[%d]", path, i, j)
			if s.Topic != "" && len(g.producers[s.Topic]) == 0 && !reservedTopics[s.Topic] && !g.opaque {
				a.warnf(9, p, "context source topic %q is never produced", s.Topic)
			}
			if !validSince(s.Since) {
				a.errorf(9, p, "invalid since value %q", s.Since)
			}
		}
	}
}

func validSince(since string) bool {
	switch since {
	case "", clusterconfig.SinceClusterStart, clusterconfig.SinceLastTaskEnd, clusterconfig.SinceLastAgentStart:
		return true
	}
	_, err := time.Parse(time.RFC3339, since)
	return err == nil
}

// checkParamsExtensions validates the recognised sub-keys of the
// document's open-ended params bag: loadConfig.path must exist on
// disk, taskExecutor.retries/timeout must be numeric, and any
// dockerMounts entries must be absolute paths.
func checkParamsExtensions(a *acc, doc clusterconfig.Document, path string) {
	if doc.Params == nil {
		return
	}

	if lc, ok := doc.Params["loadConfig"].(map[string]any); ok {
		if p, ok := lc["path"].(string); ok && p != "" {
			if _, err := os.Stat(p); err != nil {
				a.errorf(9, path+"params.loadConfig", "path %q does not exist: %v", p, err)
			}
		}
	}

	if te, ok := doc.Params["taskExecutor"].(map[string]any); ok {
		if v, present := te["retries"]; present {
			if _, ok := v.(float64); !ok {
				a.errorf(9, path+"params.taskExecutor", "retries must be numeric, got %T", v)
			}
		}
		if v, present := te["timeout"]; present {
			if _, ok := v.(float64); !ok {
				a.errorf(9, path+"params.taskExecutor", "timeout must be numeric, got %T", v)
			}
		}
	}

	if mounts, ok := doc.Params["dockerMounts"].([]any); ok {
		for i, m := range mounts {
			if s, ok := m.(string); ok && !strings.HasPrefix(s, "/") {
				a.errorf(9, pathf("%sparams.dockerMounts[%d]", path, i), "docker mount %q must be an absolute path", s)
			}
		}
	}
}

// checkRoleReferenceFallback is the stricter role-reference check: a
// script (trigger logic, hook logic or transform) that calls
// getAgentsByRole(...) for a role with no agent of that role
// configured, and no length === 0 guard, is an error — a consensus
// check over that role can never resolve.
func checkRoleReferenceFallback(a *acc, doc clusterconfig.Document, path string) {
	roles := map[string]bool{}
	for _, ag := range doc.Agents {
		roles[ag.Role] = true
	}

	for i, ag := range doc.Agents {
		for _, script := range allScripts(ag) {
			for _, role := range referencedRoles(script) {
				if roles[role] {
					continue
				}
				if strings.Contains(script, "length === 0") || strings.Contains(script, "length == 0") {
					continue
				}
				a.errorf(9, pathf("%sagents[%d]", path, i), "script references role %q, which has no configured agent, without a length === 0 fallback", role)
			}
		}
	}
}

var roleCall = []string{"getAgentsByRole("}

func referencedRoles(script string) []string {
	var out []string
	for _, call := range roleCall {
		idx := 0
		for {
			pos := strings.Index(script[idx:], call)
			if pos < 0 {
				break
			}
			start := idx + pos + len(call)
			end := strings.IndexAny(script[start:], ",)")
			if end < 0 {
				break
			}
			arg := strings.Trim(strings.TrimSpace(script[start:start+end]), `'"`)
			if arg != "" {
				out = append(out, arg)
			}
			idx = start + end
		}
	}
	return out
}
