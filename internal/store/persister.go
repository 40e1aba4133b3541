package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gamesfinder/backend/internal/models"
)

// Persister writes one crawl batch across the game, offer and pending stores.
type Persister struct {
	games       GameStore
	offers      OfferStore
	unprocessed UnprocessedStore
	logger      *slog.Logger
}

func NewPersister(games GameStore, offers OfferStore, unprocessed UnprocessedStore, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		games:       games,
		offers:      offers,
		unprocessed: unprocessed,
		logger:      logger,
	}
}

// Persist saves games first since offers reference them. A failed game
// batch drops the offers of that batch; the pending records are still saved.
func (p *Persister) Persist(ctx context.Context, games []*models.Game, offers []models.GameOffer, pending []*models.UnprocessedGame) error {
	var errs []error

	if err := p.games.SaveMany(ctx, games); err != nil {
		p.logger.ErrorContext(ctx, "failed to save games", "count", len(games), "err", err)
		errs = append(errs, fmt.Errorf("save games: %w", err))
	} else if err := p.offers.SaveMany(ctx, offers); err != nil {
		p.logger.ErrorContext(ctx, "failed to save offers", "count", len(offers), "err", err)
		errs = append(errs, fmt.Errorf("save offers: %w", err))
	}

	if err := p.unprocessed.SaveMany(ctx, pending); err != nil {
		p.logger.ErrorContext(ctx, "failed to save unprocessed games", "count", len(pending), "err", err)
		errs = append(errs, fmt.Errorf("save unprocessed games: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	p.logger.DebugContext(ctx, "batch saved",
		"games", len(games),
		"offers", len(offers),
		"pending", len(pending),
	)
	return nil
}
