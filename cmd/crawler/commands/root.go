package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gamesfinder/backend/internal/app"
	"gamesfinder/backend/internal/config"
	"gamesfinder/backend/internal/crawler"
	"gamesfinder/backend/internal/database"
	"gamesfinder/backend/internal/logging"

	"github.com/spf13/cobra"
)

var (
	configDir string
	cfg       *config.Config
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "crawler",
	Short: "crawler runs GamesFinder crawls in the foreground.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger = logging.Setup(os.Stderr, cfg.LogLevel)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "Directory holding the .env file.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openPipeline connects to the database and wires both vendors.
func openPipeline() (*app.Pipeline, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return app.NewPipeline(cfg, db, logger), nil
}

func logProgress(s crawler.Stats) {
	logger.Info("progress",
		"fetched", s.Fetched,
		"skipped", s.Skipped,
		"saved", s.Saved,
		"pending", s.Pending,
		"failed", s.Failed,
		"requested", s.Requested,
	)
}

func printStats(cmd *cobra.Command, s crawler.Stats) {
	fmt.Fprintf(cmd.OutOrStdout(),
		"requested=%d fetched=%d skipped=%d saved=%d pending=%d failed=%d flushes=%d\n",
		s.Requested, s.Fetched, s.Skipped, s.Saved, s.Pending, s.Failed, s.Flushes)
}
