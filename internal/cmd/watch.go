package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/orc-run/orc/internal/bus"
	"github.com/orc-run/orc/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch <cluster-id>",
	Short: "Follow a running cluster's message feed live",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("watch requires an interactive terminal; redirect usage instead for scripts")
	}

	clusterID := args[0]
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	b := bus.New(store, log)

	model, err := tui.New(ctx, clusterID, b, store)
	if err != nil {
		return err
	}

	p := tea.NewProgram(model)
	_, err = p.Run()
	return err
}
