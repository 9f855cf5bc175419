package main

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/internal/fetcher"
	"github.com/engagic/engagic/internal/llm"
	"github.com/engagic/engagic/internal/processor"
	"github.com/engagic/engagic/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync scheduler and processing workers",
	Long: `Runs both pipeline phases until interrupted: a periodic sync
pass over every active city, and a pool of workers draining the job
queue through the LLM. On SIGINT/SIGTERM dequeuing stops immediately
and in-flight jobs get up to 60 seconds to finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx

		// One pipeline instance per database. A second serve would race
		// the token buckets and double-bill the LLM.
		lockPath := filepath.Join(filepath.Dir(config.DBPath()), ".serve.lock")
		lock := flock.New(lockPath)
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquiring serve lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("another engagic serve is already running")
		}
		defer func() { _ = lock.Unlock() }()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		client, err := llm.NewAnthropicClient(config.APIKey(), config.GetString("llm.model"))
		if err != nil {
			return err
		}

		f := fetcher.New(fetcher.Options{
			Store:    store,
			Logger:   logger,
			Lookback: config.GetDuration("sync.lookback"),
			Horizon:  config.GetDuration("sync.horizon"),
			SyncPool: config.GetInt("sync.pool"),
		})
		p := processor.New(processor.Options{
			Store:          store,
			LLM:            client,
			Logger:         logger,
			MeetingTimeout: config.GetDuration("process.meeting-timeout"),
		})
		s := scheduler.New(scheduler.Options{
			Store:          store,
			Syncer:         f,
			Runner:         p,
			Logger:         logger,
			SyncInterval:   config.GetDuration("sync.interval"),
			Workers:        config.GetInt("process.workers"),
			StaleThreshold: config.GetDuration("process.stale-threshold"),
		})

		logger.Info("engagic serving",
			"db", config.DBPath(),
			"workers", config.GetInt("process.workers"),
			"sync_interval", config.GetDuration("sync.interval"))
		err = s.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
