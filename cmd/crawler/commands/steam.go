package commands

import (
	"github.com/spf13/cobra"
)

var (
	steamIDs   []int
	steamForce bool
)

func init() {
	steamCmd.Flags().IntSliceVar(&steamIDs, "ids", nil, "Steam app or package IDs to crawl.")
	steamCmd.Flags().BoolVar(&steamForce, "force", false, "Recrawl games already in the catalog.")
	_ = steamCmd.MarkFlagRequired("ids")
	rootCmd.AddCommand(steamCmd)
}

var steamCmd = &cobra.Command{
	Use:   "steam --ids <id,...> [--force]",
	Short: "Crawls Steam apps and stores their metadata and prices.",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := openPipeline()
		if err != nil {
			return err
		}

		logger.Info("crawling steam", "ids", len(steamIDs), "estimate", pipeline.Steam.Estimate(len(steamIDs)))
		stats, err := pipeline.Steam.Observe(logProgress).CrawlTargeted(cmd.Context(), steamIDs, steamForce)
		printStats(cmd, stats)
		return err
	},
}
