package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engagic/engagic/internal/config"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and repair the job queue",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue counts by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.QueueStats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("pending     %d\n", stats.Pending)
		fmt.Printf("processing  %d\n", stats.Processing)
		fmt.Printf("completed   %d\n", stats.Completed)
		fmt.Printf("failed      %d\n", stats.Failed)
		fmt.Printf("dead letter %d\n", stats.DeadLetter)
		return nil
	},
}

var queueRetryDeadCmd = &cobra.Command{
	Use:   "retry-dead",
	Short: "Move dead-letter jobs back to pending",
	Long: `Resets every dead-letter job to pending with a fresh retry
budget. Use after fixing the underlying cause (vendor outage, bad
parser) so the next process run picks them up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.RetryDeadLetter(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("requeued %d dead-letter jobs\n", n)
		return nil
	},
}

var queueRecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Reclaim jobs stuck in processing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.RecoverStale(ctx, config.GetDuration("process.stale-threshold"))
		if err != nil {
			return err
		}
		fmt.Printf("recovered %d stale jobs\n", n)
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueStatsCmd, queueRetryDeadCmd, queueRecoverCmd)
	rootCmd.AddCommand(queueCmd)
}
