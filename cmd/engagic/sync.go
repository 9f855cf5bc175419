package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/internal/fetcher"
)

var syncCmd = &cobra.Command{
	Use:   "sync [banana]",
	Short: "Run one sync pass, for all cities or one",
	Long: `Fetches current meetings from each city's vendor platform and
stores them. Meetings with unsummarized work are enqueued for the
processor; run "engagic process" or "engagic serve" to drain them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		f := fetcher.New(fetcher.Options{
			Store:    store,
			Logger:   logger,
			Lookback: config.GetDuration("sync.lookback"),
			Horizon:  config.GetDuration("sync.horizon"),
			SyncPool: config.GetInt("sync.pool"),
		})

		if len(args) == 1 {
			city, err := store.GetCity(ctx, args[0])
			if err != nil {
				return err
			}
			sum, err := f.SyncCity(ctx, city)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d meetings, %d items, %d new matters, %d jobs enqueued\n",
				sum.Banana, sum.Meetings, sum.Items, sum.NewMatters, sum.Enqueued)
			return nil
		}

		if err := f.SyncAll(ctx); err != nil {
			return err
		}
		fmt.Println("sync pass complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
