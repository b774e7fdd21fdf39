package executor

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var bracketPrefixPattern = regexp.MustCompile(`^\[\d+\]\s*`)

// ParseLine decodes one line of a provider's stdout into an Event,
// tolerating an optional leading bracketed millisecond timestamp (
// "the source treats the bracket as optional decoration").
func ParseLine(line []byte) (Event, error) {
	trimmed := bracketPrefixPattern.ReplaceAll(line, nil)

	var raw map[string]any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Event{}, fmt.Errorf("executor: malformed provider output line: %w", err)
	}

	typ, _ := raw["type"].(string)
	return Event{Type: typ, Raw: raw}, nil
}
