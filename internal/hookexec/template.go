package hookexec

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// exactPlaceholder matches a JSON string whose entire content is one
// placeholder, e.g. `"{{result.output}}"` — these substitute as bare
// JSON values (so a boolean/number/null result field survives as a
// real JSON primitive rather than a stringified one).
var exactPlaceholder = regexp.MustCompile(`"\{\{([a-zA-Z0-9_.]+)\}\}"`)

// embeddedPlaceholder matches a placeholder anywhere else, e.g. inside
// a larger string `"status is {{result.output}}"` — these always
// substitute as escaped text fragments.
var embeddedPlaceholder = regexp.MustCompile(`\{\{([a-zA-Z0-9_.]+)\}\}`)

var knownPrefixes = []string{"cluster.", "iteration", "error.", "result."}

// mustacheGuard is inserted between the braces of a literal "{{"
// sequence that comes from a resolved value's own text (not an actual
// placeholder), so the final unresolved-variable rescan doesn't mistake
// user content for a leftover template variable.
const mustacheGuard = "​"

// substitute performs the template substitution pass over raw (a
// JSON-encoded hook config) and returns JSON text ready for
// json.Unmarshal.
func substitute(raw string, ctx Context) (string, error) {
	var resolveErr error

	withExact := exactPlaceholder.ReplaceAllStringFunc(raw, func(m string) string {
		name := exactPlaceholder.FindStringSubmatch(m)[1]
		v, err := resolveVar(name, ctx)
		if err != nil {
			if _, unrecognized := err.(errUnrecognizedVar); unrecognized {
				return m // arbitrary user {{...}} is not considered unresolved
			}
			resolveErr = err
			return m
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			resolveErr = fmt.Errorf("hookexec: encode template value for %q: %w", name, err)
			return m
		}
		return string(encoded)
	})
	if resolveErr != nil {
		return "", resolveErr
	}

	withEmbedded := embeddedPlaceholder.ReplaceAllStringFunc(withExact, func(m string) string {
		name := embeddedPlaceholder.FindStringSubmatch(m)[1]
		v, err := resolveVar(name, ctx)
		if err != nil {
			if _, unrecognized := err.(errUnrecognizedVar); unrecognized {
				return m
			}
			resolveErr = err
			return m
		}
		return escapeForEmbedding(stringifyValue(v))
	})
	if resolveErr != nil {
		return "", resolveErr
	}

	if leftover := findUnresolvedKnownPrefix(withEmbedded); leftover != "" {
		return "", fmt.Errorf("hookexec: unresolved template variable %q", leftover)
	}

	return withEmbedded, nil
}

// resolveVar resolves one {{...}} variable name. Only the four known
// prefixes are recognized; an unrecognized name is left untouched by
// the caller (returned as an error here so the caller can no-op), and
// missing result fields resolve to nil (warn-and-default-to-null per
// that is a no-op substitution, not an error).
func resolveVar(name string, ctx Context) (any, error) {
	switch {
	case name == "cluster.id":
		return ctx.ClusterID, nil
	case name == "cluster.createdAt":
		return ctx.ClusterCreatedAt, nil
	case name == "iteration":
		return ctx.Iteration, nil
	case name == "error.message":
		return ctx.ErrorMessage, nil
	case name == "result.output":
		return lookupResultField(ctx.Result, "output"), nil
	case strings.HasPrefix(name, "result."):
		return lookupResultField(ctx.Result, strings.TrimPrefix(name, "result.")), nil
	default:
		return nil, errUnrecognizedVar{name}
	}
}

type errUnrecognizedVar struct{ name string }

func (e errUnrecognizedVar) Error() string { return "unrecognized template variable " + e.name }

func lookupResultField(result map[string]any, field string) any {
	if result == nil {
		return nil
	}
	v, ok := result[field]
	if !ok {
		return nil
	}
	return v
}

// stringifyValue renders a resolved value as it should appear inline
// inside a larger JSON string (no surrounding quotes).
func stringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// escapeForEmbedding makes s safe to splice into a JSON string literal
// and guards any literal "{{" it contains from the unresolved-variable
// rescan.
func escapeForEmbedding(s string) string {
	s = strings.ReplaceAll(s, "{{", "{"+mustacheGuard+"{")

	encoded, err := json.Marshal(s)
	if err != nil {
		return s
	}
	// Strip the surrounding quotes json.Marshal adds; the caller is
	// splicing this into an existing string literal, not creating one.
	inner := string(encoded)
	return inner[1 : len(inner)-1]
}

func findUnresolvedKnownPrefix(s string) string {
	idx := strings.Index(s, "{{")
	for idx >= 0 {
		rest := s[idx+2:]
		for _, p := range knownPrefixes {
			if strings.HasPrefix(rest, p) {
				end := strings.Index(rest, "}}")
				if end < 0 {
					return "{{" + rest
				}
				return "{{" + rest[:end] + "}}"
			}
		}
		next := strings.Index(s[idx+2:], "{{")
		if next < 0 {
			break
		}
		idx = idx + 2 + next
	}
	return ""
}
