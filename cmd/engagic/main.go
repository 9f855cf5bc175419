// Command engagic is the civic agenda pipeline: it harvests meeting
// agendas from municipal vendor platforms, decomposes them into items
// and legislative matters, and summarizes them for residents.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/engagic/engagic/internal/config"
	"github.com/engagic/engagic/internal/logging"
	"github.com/engagic/engagic/internal/storage/sqlite"
)

var (
	rootCtx context.Context
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "engagic",
	Short: "Local government agenda pipeline",
	Long: `engagic syncs city council agendas from vendor platforms
(Legistar, PrimeGov, Granicus, CivicClerk, NovusAgenda, CivicPlus),
tracks legislative matters across meetings, and produces plain-language
summaries of every agenda item.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		if dbFlag, _ := cmd.Flags().GetString("db"); dbFlag != "" {
			config.Set("db.path", dbFlag)
		}
		logger = logging.Setup(logging.Options{
			Level:      config.GetString("log.level"),
			File:       config.GetString("log.file"),
			MaxSizeMB:  config.GetInt("log.max-size-mb"),
			MaxBackups: config.GetInt("log.max-backups"),
		})
		return nil
	},
}

// openStore opens the configured database. Callers own Close.
func openStore(ctx context.Context) (*sqlite.SQLiteStorage, error) {
	store, err := sqlite.New(ctx, config.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return store, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx

	rootCmd.PersistentFlags().String("db", "", "database path (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
