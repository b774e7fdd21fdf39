package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/orc-run/orc/internal/clusterconfig"
)

var schemaCompact bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema for a cluster config document",
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaCompact, "compact", false, "omit indentation")
	rootCmd.AddCommand(schemaCmd)
}

// runSchema reflects clusterconfig.Document into a JSON Schema document,
// the shape editors use to offer autocomplete/validation while an
// operator is hand-writing a cluster config.
func runSchema(cmd *cobra.Command, args []string) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&clusterconfig.Document{})
	schema.Title = "orc cluster config"

	encoder := json.NewEncoder(os.Stdout)
	if !schemaCompact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	return nil
}
