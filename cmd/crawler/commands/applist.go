package commands

import (
	"fmt"

	"gamesfinder/backend/internal/appindex"
	"gamesfinder/backend/internal/crawler"

	"github.com/spf13/cobra"
)

func init() {
	applistCmd.AddCommand(applistRefreshCmd)
	rootCmd.AddCommand(applistCmd)
}

var applistCmd = &cobra.Command{
	Use:   "applist",
	Short: "Manages the local copy of the Steam app list.",
}

var applistRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Downloads the Steam app list to APPLIST_PATH.",
	RunE: func(cmd *cobra.Command, args []string) error {
		index := appindex.New(cfg.AppListPath,
			appindex.WithSource(cfg.SteamAppListURL, cfg.SteamAPIKey),
			appindex.WithClient(crawler.NewClient(cfg.CrawlUserAgent, cfg.CrawlHTTPTimeout)),
			appindex.WithLogger(logger),
		)
		meta, err := index.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d apps to %s\n", meta.Count, meta.Path)
		return nil
	},
}
