package crawler

import (
	"context"
	"errors"

	"gamesfinder/backend/internal/models"
)

var ErrMalformed = errors.New("crawler: malformed content")

// Result is what one extraction produced. Exactly one of Game and Pending
// is set on success.
type Result struct {
	Game    *models.Game
	Offer   *models.GameOffer
	IsNew   bool
	Pending *models.UnprocessedGame
}

// Vendor is the per-storefront capability the orchestrator drives.
type Vendor interface {
	Vendor() models.Vendor
	Fetch(ctx context.Context, id int) ([]byte, error)
	Extract(ctx context.Context, content []byte, id int, existing *models.Game) (Result, error)
}
