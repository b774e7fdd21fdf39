package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/message"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Inspect cluster state in the ledger",
	RunE:  requireSubcommand,
}

var clusterStatusCmd = &cobra.Command{
	Use:   "status <cluster-id>",
	Short: "Summarize a cluster's latest known state from the ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runClusterStatus,
}

func init() {
	clusterCmd.AddCommand(clusterStatusCmd)
	rootCmd.AddCommand(clusterCmd)
}

func runClusterStatus(cmd *cobra.Command, args []string) error {
	clusterID := args[0]
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}

	total, err := store.Count(ctx, ledger.Filter{ClusterID: clusterID})
	if err != nil {
		return fmt.Errorf("counting messages: %w", err)
	}
	if total == 0 {
		return fmt.Errorf("no messages found for cluster %q", clusterID)
	}

	complete, err := store.Count(ctx, ledger.Filter{ClusterID: clusterID, Topic: message.TopicClusterComplete})
	if err != nil {
		return fmt.Errorf("checking completion: %w", err)
	}

	last, err := store.FindLast(ctx, ledger.Filter{ClusterID: clusterID})
	if err != nil {
		return fmt.Errorf("finding last message: %w", err)
	}

	status := "running"
	if complete > 0 {
		status = "complete"
	}

	fmt.Printf("cluster %s: %s\n", clusterID, status)
	fmt.Printf("  messages: %d\n", total)
	fmt.Printf("  last:     %s from %s at %d\n", last.Topic, last.Sender, last.Timestamp)
	return nil
}
