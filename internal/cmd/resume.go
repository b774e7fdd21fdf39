package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orc-run/orc/internal/bus"
	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/orchestrator"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <cluster-id> <config.json>",
	Short: "Reconstruct a cluster's in-memory state from the ledger and continue it",
	Args:  cobra.ExactArgs(2),
	RunE:  runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	clusterID, configPath := args[0], args[1]

	doc, err := clusterconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}

	b := bus.New(store, log)
	engine := newEngine()
	c, err := orchestrator.Resume(ctx, clusterID, *doc, store, b, engine, runnerFactory(b, log), agentSettings(), log)
	if err != nil {
		return fmt.Errorf("resuming cluster %q: %w", clusterID, err)
	}

	fmt.Printf("cluster %s resumed\n", clusterID)
	<-ctx.Done()
	c.Shutdown()
	return nil
}
