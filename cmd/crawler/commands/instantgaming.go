package commands

import (
	"github.com/spf13/cobra"
)

var (
	igIDs      []int
	igForce    bool
	igMaxCalls int
	igStart    int
	igAppIDs   []int
)

func init() {
	instantGamingCmd.Flags().IntSliceVar(&igIDs, "ids", nil, "Instant Gaming product IDs to crawl.")
	instantGamingCmd.Flags().BoolVar(&igForce, "force", false, "Recrawl products already in the catalog.")

	instantGamingAllCmd.Flags().IntVar(&igMaxCalls, "max-calls", 0, "Probe product IDs below this bound.")
	instantGamingAllCmd.Flags().IntVar(&igStart, "start", 0, "First product ID to probe.")
	instantGamingAllCmd.Flags().BoolVar(&igForce, "force", false, "Recrawl products already in the catalog.")
	_ = instantGamingAllCmd.MarkFlagRequired("max-calls")

	instantGamingPricesCmd.Flags().IntSliceVar(&igAppIDs, "ids", nil, "Steam app IDs of catalog games to reprice.")
	_ = instantGamingPricesCmd.MarkFlagRequired("ids")

	instantGamingCmd.AddCommand(instantGamingAllCmd, instantGamingPricesCmd)
	rootCmd.AddCommand(instantGamingCmd)
}

var instantGamingCmd = &cobra.Command{
	Use:   "instant-gaming --ids <id,...> [--force]",
	Short: "Crawls Instant Gaming products and matches them to Steam games.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(igIDs) == 0 {
			return cmd.Help()
		}
		pipeline, err := openPipeline()
		if err != nil {
			return err
		}

		stats, err := pipeline.InstantGaming.Observe(logProgress).CrawlTargeted(cmd.Context(), igIDs, igForce)
		printStats(cmd, stats)
		return err
	},
}

var instantGamingAllCmd = &cobra.Command{
	Use:   "all --max-calls <n> [--start <id>] [--force]",
	Short: "Probes every Instant Gaming product ID up to a bound.",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := openPipeline()
		if err != nil {
			return err
		}

		stats, err := pipeline.InstantGaming.Observe(logProgress).CrawlExhaustive(cmd.Context(), igStart, igMaxCalls, igForce)
		printStats(cmd, stats)
		return err
	},
}

var instantGamingPricesCmd = &cobra.Command{
	Use:   "prices --ids <steam app id,...>",
	Short: "Refreshes Instant Gaming prices of catalog games.",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := openPipeline()
		if err != nil {
			return err
		}

		stats, err := pipeline.InstantGaming.Observe(logProgress).CrawlPrices(cmd.Context(), igAppIDs)
		printStats(cmd, stats)
		return err
	},
}
