package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config.json>",
	Short: "Run the ten-phase static analyzer against a config file",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	doc, err := clusterconfig.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	result := validator.Validate(*doc, newEngine())
	for _, w := range result.Warnings {
		fmt.Println(w.String())
	}
	for _, e := range result.Errors {
		fmt.Println(e.String())
	}

	fmt.Printf("%d errors, %d warnings\n", len(result.Errors), len(result.Warnings))
	if !result.Valid() {
		return fmt.Errorf("config is invalid")
	}
	return nil
}
