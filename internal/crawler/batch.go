package crawler

import (
	"math"
	"time"

	"gamesfinder/backend/internal/models"

	"github.com/google/uuid"
)

type offerKey struct {
	gameID uuid.UUID
	vendor models.Vendor
}

type pendingKey struct {
	vendor    models.Vendor
	vendorsID string
}

// batch accumulates results between flushes. A single statement cannot
// upsert the same row twice, so entries are deduplicated by their conflict keys.
type batch struct {
	games   []*models.Game
	offers  []models.GameOffer
	pending []*models.UnprocessedGame

	gameIndex    map[uuid.UUID]int
	offerIndex   map[offerKey]int
	pendingIndex map[pendingKey]int
}

func newBatch() *batch {
	b := &batch{}
	b.reset()
	return b
}

func (b *batch) reset() {
	b.games = nil
	b.offers = nil
	b.pending = nil
	b.gameIndex = make(map[uuid.UUID]int)
	b.offerIndex = make(map[offerKey]int)
	b.pendingIndex = make(map[pendingKey]int)
}

func (b *batch) empty() bool {
	return len(b.games) == 0 && len(b.offers) == 0 && len(b.pending) == 0
}

func (b *batch) add(res Result) {
	if res.Game != nil {
		if i, ok := b.gameIndex[res.Game.ID]; ok {
			b.games[i] = res.Game
		} else {
			b.gameIndex[res.Game.ID] = len(b.games)
			b.games = append(b.games, res.Game)
		}
	}

	if res.Offer != nil {
		key := offerKey{gameID: res.Offer.GameID, vendor: res.Offer.Vendor}
		if i, ok := b.offerIndex[key]; ok {
			b.offers[i] = *res.Offer
		} else {
			b.offerIndex[key] = len(b.offers)
			b.offers = append(b.offers, *res.Offer)
		}
	}

	if res.Pending != nil {
		if res.Pending.VendorsID == nil {
			b.pending = append(b.pending, res.Pending)
			return
		}
		key := pendingKey{vendor: res.Pending.Vendor, vendorsID: *res.Pending.VendorsID}
		if i, ok := b.pendingIndex[key]; ok {
			b.pending[i] = res.Pending
		} else {
			b.pendingIndex[key] = len(b.pending)
			b.pending = append(b.pending, res.Pending)
		}
	}
}

// EstimateDuration is the cooldown time a crawl of count ids spends between
// flush intervals: one cooldown per interval boundary.
func EstimateDuration(count, flushInterval int, cooldown time.Duration) time.Duration {
	if count <= 0 || flushInterval <= 0 {
		return 0
	}
	batches := int(math.Ceil(float64(count) / float64(flushInterval)))
	pauses := max(0, batches-1)
	return time.Duration(pauses) * cooldown
}
