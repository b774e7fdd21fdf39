package validator

import (
	"encoding/json"
	"strings"

	"github.com/orc-run/orc/internal/clusterconfig"
)

// checkHookSemantics is phase 6: per-hook shape requirements
// independent of what topic graph they participate in.
func checkHookSemantics(a *acc, doc clusterconfig.Document, path string) {
	for i, ag := range doc.Agents {
		for lifecycle, hook := range ag.Hooks {
			p := pathf("%sagents[%d].hooks.%s", path, i, lifecycle)

			if hook.Action == "" {
				a.errorf(6, p, "hook missing required field action")
				continue
			}

			if hook.Transform != "" {
				if !strings.Contains(hook.Transform, "topic") || !strings.Contains(hook.Transform, "content") {
					a.errorf(6, p, "transform script must literally return {topic, content, ...}")
				}
			}

			if hook.Action == clusterconfig.HookActionPublishMessage && hookTargetsClusterOperations(hook) {
				if !strings.Contains(hook.Transform, "operations") {
					if raw, _ := marshalForSearch(hook.Config); !strings.Contains(raw, "operations") {
						a.errorf(6, p, "hook targets CLUSTER_OPERATIONS but its config/transform has no operations field")
					}
				}
			}

			if hook.Logic != "" && hook.Config == nil && hook.Transform == "" {
				a.errorf(6, p, "hook logic requires accompanying config or transform")
			}
		}
	}
}

func marshalForSearch(v map[string]any) (string, error) {
	if v == nil {
		return "", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
