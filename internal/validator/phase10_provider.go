package validator

import (
	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/providercatalog"
)

// experimentalJSONSchemaProviders lists providers whose jsonSchema
// enforcement is best-effort rather than a hard contract: schema
// mismatches are fatal for role=validator everywhere, but a provider
// may not natively support structured output at all.
var experimentalJSONSchemaProviders = map[string]bool{
	"gemini": true,
}

// checkProviderFeatures is phase 10: everything an agent declares
// about its provider must be legal for that provider's catalog.
func checkProviderFeatures(a *acc, doc clusterconfig.Document, path string) {
	for i, ag := range doc.Agents {
		p := pathf("%sagents[%d]", path, i)
		provider := ag.Provider
		if provider == "" {
			continue // resolved against the cluster-wide default at runtime; nothing to check yet
		}

		cat, ok := providercatalog.Get(provider)
		if !ok {
			a.errorf(10, p, "unknown provider %q", provider)
			continue
		}

		mp := ag.ModelPolicy
		if mp.ModelLevel != "" && !cat.ValidLevel(mp.ModelLevel) {
			a.errorf(10, pathf("%s.modelPolicy", p), "modelLevel %q is not valid for provider %q", mp.ModelLevel, provider)
		}
		if mp.Model != "" && !providercatalog.IsLegacyModel(mp.Model) {
			if _, known := cat.LevelToModel[mp.Model]; !known {
				foundAsValue := false
				for _, m := range cat.LevelToModel {
					if m == mp.Model {
						foundAsValue = true
						break
					}
				}
				if !foundAsValue {
					a.errorf(10, pathf("%s.modelPolicy", p), "model %q does not exist in provider %q's catalog", mp.Model, provider)
				}
			}
		}
		if mp.MinLevel != "" && !cat.ValidLevel(mp.MinLevel) {
			a.errorf(10, pathf("%s.modelPolicy", p), "minLevel %q is not valid for provider %q", mp.MinLevel, provider)
		}
		if mp.MaxLevel != "" && !cat.ValidLevel(mp.MaxLevel) {
			a.errorf(10, pathf("%s.modelPolicy", p), "maxLevel %q is not valid for provider %q", mp.MaxLevel, provider)
		}
		for j, r := range mp.ModelRules {
			if r.ReasoningEffort != "" && !cat.ValidReasoningEffort(r.ReasoningEffort) {
				a.errorf(10, pathf("%s.modelPolicy.modelRules[%d]", p, j), "reasoningEffort %q is not legal for provider %q", r.ReasoningEffort, provider)
			}
			if r.ModelLevel != "" && !cat.ValidLevel(r.ModelLevel) {
				a.errorf(10, pathf("%s.modelPolicy.modelRules[%d]", p, j), "modelLevel %q is not valid for provider %q", r.ModelLevel, provider)
			}
		}

		if ag.ResolvedOutputFormat() == clusterconfig.OutputJSON && experimentalJSONSchemaProviders[provider] {
			a.warnf(10, p, "provider %q has experimental jsonSchema support", provider)
		}
	}
}
