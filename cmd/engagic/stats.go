package main

import (
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus-wide counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		printStatsTable(stats)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
