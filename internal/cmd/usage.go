package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/usage"
)

var usageConfigPath string

var usageCmd = &cobra.Command{
	Use:   "usage <cluster-id>",
	Short: "Print a cluster's token and cost breakdown by role",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsage,
}

func init() {
	usageCmd.Flags().StringVar(&usageConfigPath, "config", "", "config file, to resolve agent ids to roles (optional)")
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	clusterID := args[0]
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	var doc clusterconfig.Document
	if usageConfigPath != "" {
		loaded, err := clusterconfig.Load(usageConfigPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		doc = *loaded
	}

	report, err := usage.Build(ctx, store, clusterID, doc)
	if err != nil {
		return err
	}
	fmt.Print(report.String())
	return nil
}
