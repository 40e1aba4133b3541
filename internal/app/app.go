// Package app wires the crawl pipeline from configuration.
package app

import (
	"log/slog"

	"gamesfinder/backend/internal/appindex"
	"gamesfinder/backend/internal/config"
	"gamesfinder/backend/internal/crawler"
	"gamesfinder/backend/internal/store"

	"gorm.io/gorm"
)

// Pipeline holds one orchestrator per vendor sharing a store and app index.
type Pipeline struct {
	Index         *appindex.Index
	Steam         *crawler.Orchestrator
	InstantGaming *crawler.Orchestrator
}

// NewPipeline builds the vendors and orchestrators over db. A missing app
// list on disk is logged; refresh it to enable Steam identity matching.
func NewPipeline(cfg *config.Config, db *gorm.DB, logger *slog.Logger) *Pipeline {
	games := store.NewGames(db)
	persister := store.NewPersister(games, store.NewOffers(db), store.NewUnprocessed(db), logger)

	client := crawler.NewClient(cfg.CrawlUserAgent, cfg.CrawlHTTPTimeout)
	fetcher := crawler.NewFetcher(client,
		crawler.WithCooldown(cfg.CrawlCooldown),
		crawler.WithFetchLogger(logger),
	)

	index := appindex.New(cfg.AppListPath,
		appindex.WithSource(cfg.SteamAppListURL, cfg.SteamAPIKey),
		appindex.WithClient(client),
		appindex.WithLogger(logger),
	)
	if err := index.Load(); err != nil {
		logger.Warn("app list not loaded", "path", cfg.AppListPath, "err", err)
	}

	steam := crawler.NewSteam(fetcher,
		crawler.WithSteamStoreURL(cfg.SteamStoreURL),
		crawler.WithSteamLocale(cfg.SteamCountryCode, cfg.SteamLanguage),
		crawler.WithSteamLogger(logger),
	)
	instantGaming := crawler.NewInstantGaming(fetcher, crawler.NewMatcher(games, index, logger),
		crawler.WithInstantGamingURL(cfg.InstantGamingBaseURL),
		crawler.WithInstantGamingLogger(logger),
	)

	return &Pipeline{
		Index: index,
		Steam: crawler.NewOrchestrator(steam, games, persister,
			crawler.WithFlushInterval(cfg.CrawlFlushInterval),
			crawler.WithBatchCooldown(cfg.CrawlCooldown),
			crawler.WithLogger(logger),
		),
		// Instant Gaming pages are not rate limited between batches.
		InstantGaming: crawler.NewOrchestrator(instantGaming, games, persister,
			crawler.WithFlushInterval(cfg.CrawlFlushInterval),
			crawler.WithBatchCooldown(0),
			crawler.WithLogger(logger),
		),
	}
}
