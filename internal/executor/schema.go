package executor

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateSchema checks result against the configured JSON Schema for
// an agent's output: a validator-role agent's schema
// mismatch is fatal; other roles merely warn, so the caller decides
// severity from the returned error.
func ValidateSchema(result map[string]any, schema map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	schemaLoader := gojsonschema.NewGoLoader(schema)
	docLoader := gojsonschema.NewGoLoader(result)

	out, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("executor: schema validation error: %w", err)
	}
	if out.Valid() {
		return nil
	}

	var msgs []string
	for _, e := range out.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("executor: result does not match schema: %s", strings.Join(msgs, "; "))
}
