package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orc-run/orc/internal/bus"
	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/orchestrator"
	"github.com/orc-run/orc/internal/validator"
)

var (
	runIssueFile    string
	runSkipValidate bool
)

var runCmd = &cobra.Command{
	Use:   "run <config.json>",
	Short: "Boot a new cluster from a config file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runIssueFile, "issue", "", "path to a JSON file describing the opening issue (default: {})")
	runCmd.Flags().BoolVar(&runSkipValidate, "skip-validate", false, "boot even if the config has validation warnings or errors")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	doc, err := clusterconfig.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	engine := newEngine()
	result := validator.Validate(*doc, engine)
	for _, w := range result.Warnings {
		log.Warn(w.String())
	}
	for _, e := range result.Errors {
		log.Error(e.String())
	}
	if !result.Valid() && !runSkipValidate {
		return fmt.Errorf("config failed validation (%d errors); rerun with --skip-validate to boot anyway", len(result.Errors))
	}

	issueData, err := loadIssueData(runIssueFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}

	b := bus.New(store, log)
	clusterID := newClusterID()
	c := orchestrator.New(clusterID, time.Now().UnixMilli(), b, engine, runnerFactory(b, log), agentSettings(), log)

	if err := c.Boot(ctx, *doc, issueData); err != nil {
		return fmt.Errorf("booting cluster: %w", err)
	}

	fmt.Printf("cluster %s booted\n", clusterID)
	<-ctx.Done()
	c.Shutdown()
	return nil
}

func loadIssueData(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	doc, err := readJSONObject(path)
	if err != nil {
		return nil, fmt.Errorf("reading issue file: %w", err)
	}
	return doc, nil
}
