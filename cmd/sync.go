package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newSyncCmd creates the 'sync' subcommand. It runs exactly one
// fetch-filter-reconcile cycle and exits, which is the shape cron and
// Cloud Scheduler expect.
func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync cycle and exit",
		Long: `Fetches every configured board, filters postings through the keyword
tiers, reconciles them into the record store, and expires records not seen
within the retention window.`,

		RunE: runSyncCommand,
	}
}

func runSyncCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := appInstance.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("run sync cycle: %w", err)
	}

	appInstance.Logger().Info("sync cycle finished",
		zap.String("cycle_id", res.CycleID.String()),
		zap.Int("fetched", res.Fetched),
		zap.Int("admitted", res.Admitted),
		zap.Int("new", res.Stats.New),
		zap.Int("updated", res.Stats.Updated),
		zap.Int("expired", res.Stats.Expired),
		zap.Int64("active", res.Stats.TotalActive),
	)
	return nil
}
