package agent

import (
	"fmt"

	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/providercatalog"
)

// ModelSpec is the fully resolved model configuration for one task
// execution ("model-spec resolution").
type ModelSpec struct {
	Model           string
	Level           string
	ReasoningEffort string
}

// ResolveModelSpec implements the model-spec resolution order:
// modelRules (first matching iteration range) > static model literal >
// modelLevel via the provider catalog, honoring min/maxLevel > the
// legacy opus/sonnet/haiku clamp.
func ResolveModelSpec(policy clusterconfig.ModelPolicy, provider string, iteration int, legacyMinModel, legacyMaxModel string) (ModelSpec, error) {
	if len(policy.ModelRules) > 0 {
		for _, rule := range policy.ModelRules {
			matched, err := clusterconfig.MatchIterationPattern(rule.Iterations, iteration)
			if err != nil {
				return ModelSpec{}, fmt.Errorf("agent: model rule %q: %w", rule.Iterations, err)
			}
			if !matched {
				continue
			}
			if rule.Model != "" {
				return legacyClamp(ModelSpec{Model: rule.Model, ReasoningEffort: rule.ReasoningEffort}, legacyMinModel, legacyMaxModel), nil
			}
			return resolveLevel(provider, rule.ModelLevel, "", "", rule.ReasoningEffort, legacyMinModel, legacyMaxModel)
		}
		return ModelSpec{}, fmt.Errorf("agent: no modelRule matched iteration %d", iteration)
	}

	if policy.Model != "" {
		return legacyClamp(ModelSpec{Model: policy.Model}, legacyMinModel, legacyMaxModel), nil
	}

	return resolveLevel(provider, policy.ModelLevel, policy.MinLevel, policy.MaxLevel, "", legacyMinModel, legacyMaxModel)
}

func resolveLevel(provider, level, minLevel, maxLevel, reasoningEffort, legacyMinModel, legacyMaxModel string) (ModelSpec, error) {
	catalog, ok := providercatalog.Get(provider)
	if !ok {
		return ModelSpec{}, fmt.Errorf("agent: unknown provider %q", provider)
	}
	if level == "" {
		level = catalog.Levels[len(catalog.Levels)/2]
	}
	clamped, err := catalog.ClampLevel(level, minLevel, maxLevel)
	if err != nil {
		return ModelSpec{}, fmt.Errorf("agent: resolve modelLevel: %w", err)
	}
	model, err := catalog.ResolveModel(clamped)
	if err != nil {
		return ModelSpec{}, err
	}
	return legacyClamp(ModelSpec{Model: model, Level: clamped, ReasoningEffort: reasoningEffort}, legacyMinModel, legacyMaxModel), nil
}

// legacyClamp applies the legacy guard: if the resolved model
// literal is one of the pre-modelLevel names, clamp it to the
// operator's configured [min, max] range.
func legacyClamp(spec ModelSpec, min, max string) ModelSpec {
	if providercatalog.IsLegacyModel(spec.Model) {
		spec.Model = providercatalog.ClampLegacyModel(spec.Model, min, max)
	}
	return spec
}
