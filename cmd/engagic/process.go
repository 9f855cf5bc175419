package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/internal/llm"
	"github.com/engagic/engagic/internal/processor"
	"github.com/engagic/engagic/internal/types"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Drain pending jobs through the LLM",
	Long: `Claims pending jobs one at a time and runs the summarization
pipeline. By default processes until the queue is empty; --limit caps
the number of jobs for a bounded run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		client, err := llm.NewAnthropicClient(config.APIKey(), config.GetString("llm.model"))
		if err != nil {
			return err
		}
		p := processor.New(processor.Options{
			Store:          store,
			LLM:            client,
			Logger:         logger,
			MeetingTimeout: config.GetDuration("process.meeting-timeout"),
		})

		if n, err := store.RecoverStale(ctx, config.GetDuration("process.stale-threshold")); err == nil && n > 0 {
			fmt.Printf("recovered %d stale jobs\n", n)
		}

		processed, failed := 0, 0
		for limit <= 0 || processed+failed < limit {
			if ctx.Err() != nil {
				break
			}
			jobs, err := store.GetNextForProcessing(ctx, types.JobMeeting, 1)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				break
			}
			if err := p.Process(ctx, jobs[0]); err != nil {
				failed++
			} else {
				processed++
			}
		}

		fmt.Printf("processed %d jobs, %d failed\n", processed, failed)
		return nil
	},
}

func init() {
	processCmd.Flags().Int("limit", 0, "stop after this many jobs (0 = drain)")
	rootCmd.AddCommand(processCmd)
}
