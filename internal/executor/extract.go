package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMissingJSONBlock is returned when no structured result could be
// located anywhere in a completed task's output.
var ErrMissingJSONBlock = errors.New("output missing required JSON block")

// ErrTaskFailed is returned for the known dead/failed output sentinels.
var ErrTaskFailed = errors.New("Task execution failed")

var deadOutputs = map[string]bool{
	"":                     true,
	"Task not found":       true,
	"Process terminated…":  true,
	"Process terminated...": true,
}

var fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ExtractResult runs the extraction algorithm over a completed
// task's event stream for the given provider dialect:
//
//  1. a terminal event with a non-empty result (per the dialect);
//  2. a ```json fenced block in the concatenated assistant text;
//  3. the first balanced top-level {...} in that text.
//
// If none is found, ErrMissingJSONBlock. Known dead/failed sentinel
// outputs short-circuit to ErrTaskFailed.
func ExtractResult(dialect Dialect, events []Event) (map[string]any, error) {
	var text strings.Builder
	var terminalResult any
	haveTerminalResult := false

	for _, ev := range events {
		text.WriteString(ev.assistantText())

		if dialect.IsTerminal(ev) {
			if v, ok := dialect.ResultFromEvent(ev); ok {
				terminalResult = v
				haveTerminalResult = true
			}
			break
		}
	}

	accumulated := text.String()

	if deadOutputs[strings.TrimSpace(accumulated)] && !haveTerminalResult {
		return nil, ErrTaskFailed
	}

	if haveTerminalResult {
		return unwrapResult(terminalResult)
	}

	if block, ok := extractFencedJSON(accumulated); ok {
		return parseObject(block)
	}

	if block, ok := extractBalancedJSON(accumulated); ok {
		return parseObject(block)
	}

	return nil, ErrMissingJSONBlock
}

// unwrapResult normalizes a dialect's raw result value: a string is
// checked for a fenced ```json``` block before falling back to direct
// parse; an object is used as-is.
func unwrapResult(v any) (map[string]any, error) {
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case string:
		if block, ok := extractFencedJSON(t); ok {
			return parseObject(block)
		}
		return parseObject(t)
	default:
		return nil, fmt.Errorf("executor: unsupported result value type %T", v)
	}
}

func extractFencedJSON(s string) (string, bool) {
	m := fencedJSONPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// extractBalancedJSON finds the first balanced top-level {...} block in
// s, respecting quoted strings and escapes so braces inside string
// literals don't confuse the scan.
func extractBalancedJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func parseObject(s string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &out); err != nil {
		return nil, fmt.Errorf("executor: parse JSON result: %w", err)
	}
	return out, nil
}
