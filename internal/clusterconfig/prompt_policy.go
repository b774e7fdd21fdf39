package clusterconfig

import (
	"encoding/json"
	"fmt"
)

// PromptPolicy is a union type: a static string, an
// {initial, subsequent} pair, or an ordered iteration-rule list. Only
// one of the three shapes is populated after unmarshaling.
type PromptPolicy struct {
	Static     string       `json:"-"`
	Initial    string       `json:"-"`
	Subsequent string       `json:"-"`
	Rules      []PromptRule `json:"-"`

	kind promptPolicyKind
}

type promptPolicyKind int

const (
	promptPolicyEmpty promptPolicyKind = iota
	promptPolicyStatic
	promptPolicyInitialSubsequent
	promptPolicyRules
)

// UnmarshalJSON accepts a bare string, an {initial, subsequent} object,
// or an array of {iterations, prompt} rules.
func (p *PromptPolicy) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		p.Static = asString
		p.kind = promptPolicyStatic
		return nil
	}

	var asRules []PromptRule
	if err := json.Unmarshal(data, &asRules); err == nil {
		p.Rules = asRules
		p.kind = promptPolicyRules
		return nil
	}

	var asPair struct {
		Initial    string `json:"initial"`
		Subsequent string `json:"subsequent"`
	}
	if err := json.Unmarshal(data, &asPair); err == nil {
		p.Initial = asPair.Initial
		p.Subsequent = asPair.Subsequent
		p.kind = promptPolicyInitialSubsequent
		return nil
	}

	return fmt.Errorf("clusterconfig: promptPolicy must be a string, {initial,subsequent}, or an iteration-rule array")
}

// MarshalJSON round-trips whichever shape was populated.
func (p PromptPolicy) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case promptPolicyStatic:
		return json.Marshal(p.Static)
	case promptPolicyInitialSubsequent:
		return json.Marshal(struct {
			Initial    string `json:"initial"`
			Subsequent string `json:"subsequent"`
		}{p.Initial, p.Subsequent})
	case promptPolicyRules:
		return json.Marshal(p.Rules)
	default:
		return json.Marshal("")
	}
}

// IsEmpty reports whether no shape was populated (field entirely
// absent from the config document).
func (p PromptPolicy) IsEmpty() bool { return p.kind == promptPolicyEmpty }

// Resolve returns the prompt text for iteration, per item 5: the
// iteration-matched rule wins; no match is an error. For the static and
// initial/subsequent shapes there is always a match.
func (p PromptPolicy) Resolve(iteration int) (string, error) {
	switch p.kind {
	case promptPolicyStatic:
		return p.Static, nil
	case promptPolicyInitialSubsequent:
		if iteration <= 1 {
			return p.Initial, nil
		}
		return p.Subsequent, nil
	case promptPolicyRules:
		for _, r := range p.Rules {
			matched, err := MatchIterationPattern(r.Iterations, iteration)
			if err != nil {
				return "", err
			}
			if matched {
				return r.Prompt, nil
			}
		}
		return "", fmt.Errorf("clusterconfig: no promptPolicy rule matches iteration %d", iteration)
	default:
		return "", fmt.Errorf("clusterconfig: promptPolicy is not configured")
	}
}
