package contextbuilder

import (
	"encoding/json"
	"fmt"
	"sort"
)

// jsonSchemaBlock renders the item 7 section: the JSON-only output
// instructions plus an auto-generated one-value example built from the
// schema (first enum value / description / zero / empty). This walks
// an arbitrary jsonSchema document supplied by the cluster config, not
// a Go type, so it is hand-rolled rather than built on a reflection
// library (see internal/cmd/schema.go for where this module actually
// uses github.com/invopop/jsonschema, the other direction: Go type to
// schema).
func jsonSchemaBlock(schema map[string]any) (string, error) {
	example := exampleValue(schema)
	encoded, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return "", fmt.Errorf("contextbuilder: encode schema example: %w", err)
	}
	return fmt.Sprintf("## Output Format\n\nRespond with a single JSON object matching this schema. Example shape:\n\n```json\n%s\n```", encoded), nil
}

func exampleValue(schema map[string]any) any {
	if enum, ok := schema["enum"].([]any); ok && len(enum) > 0 {
		return enum[0]
	}

	t, _ := schema["type"].(string)
	switch t {
	case "object", "":
		props, _ := schema["properties"].(map[string]any)
		if props == nil {
			if t == "object" {
				return map[string]any{}
			}
			if desc, ok := schema["description"].(string); ok {
				return desc
			}
			return nil
		}
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			propSchema, _ := props[k].(map[string]any)
			out[k] = exampleValue(propSchema)
		}
		return out
	case "array":
		items, _ := schema["items"].(map[string]any)
		return []any{exampleValue(items)}
	case "string":
		if desc, ok := schema["description"].(string); ok && desc != "" {
			return desc
		}
		return ""
	case "integer", "number":
		return 0
	case "boolean":
		return false
	default:
		return nil
	}
}
