package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gamesfinder/backend/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

const DefaultInstantGamingURL = "https://www.instant-gaming.com/en/"

// InstantGaming extracts offers from Instant Gaming product pages. It never
// creates catalog games; titles it cannot place are queued as unprocessed.
type InstantGaming struct {
	fetcher ContentFetcher
	matcher Resolver
	baseURL string
	logger  *slog.Logger
}

type InstantGamingOption func(*InstantGaming)

func WithInstantGamingURL(u string) InstantGamingOption {
	return func(ig *InstantGaming) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		ig.baseURL = u
	}
}

func WithInstantGamingLogger(logger *slog.Logger) InstantGamingOption {
	return func(ig *InstantGaming) {
		ig.logger = logger
	}
}

func NewInstantGaming(fetcher ContentFetcher, matcher Resolver, opts ...InstantGamingOption) *InstantGaming {
	ig := &InstantGaming{
		fetcher: fetcher,
		matcher: matcher,
		baseURL: DefaultInstantGamingURL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(ig)
	}
	return ig
}

func (ig *InstantGaming) Vendor() models.Vendor {
	return models.VendorInstantGaming
}

// productURL redirects to the canonical product page for the id.
func (ig *InstantGaming) productURL(id int) string {
	return ig.baseURL + strconv.Itoa(id) + "-"
}

func (ig *InstantGaming) Fetch(ctx context.Context, id int) ([]byte, error) {
	return ig.fetcher.Fetch(ctx, ig.productURL(id), "instant gaming "+strconv.Itoa(id))
}

func (ig *InstantGaming) Extract(ctx context.Context, content []byte, id int, existing *models.Game) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	title := strings.TrimSpace(doc.Find("h1.game-title").First().Text())
	if title == "" {
		ig.logger.ErrorContext(ctx, "product page has no title", "id", id)
		return Result{}, fmt.Errorf("%w: page %d has no title", ErrMalformed, id)
	}
	name := NormalizeName(title)

	match, err := ig.matcher.Resolve(ctx, name, existing)
	if err != nil {
		return Result{}, err
	}

	currency, amount := parseInstantGamingPrice(doc.Find("div.total").First().Text())
	available := doc.Find("div.nostock").Length() == 0
	vendorsID := strconv.Itoa(id)
	vendorsURL := ig.productURL(id)

	if match.Game == nil {
		pending := match.Pending
		pending.Vendor = models.VendorInstantGaming
		pending.VendorsID = &vendorsID
		pending.VendorsURL = &vendorsURL
		pending.Currency = &currency
		pending.Price = amount
		return Result{Pending: pending}, nil
	}

	game := match.Game
	game.AddVendorID(models.GameID{Vendor: models.VendorInstantGaming, ID: vendorsID})

	prices := models.Prices{currency: {Current: amount}}
	offer := models.NewGameOffer(game.ID, models.VendorInstantGaming, vendorsID, vendorsURL, available, prices)
	game.ReplaceOffer(offer)

	return Result{Game: game, Offer: &offer}, nil
}

// parseInstantGamingPrice reads "49.99€", "12,50$" or "1.299,99€". Anything
// else is an unknown EUR price.
func parseInstantGamingPrice(text string) (models.Currency, *decimal.Decimal) {
	text = strings.TrimSpace(text)

	var currency models.Currency
	switch {
	case strings.HasSuffix(text, "€"):
		currency = models.CurrencyEUR
		text = strings.TrimSuffix(text, "€")
	case strings.HasSuffix(text, "$"):
		currency = models.CurrencyUSD
		text = strings.TrimSuffix(text, "$")
	default:
		return models.CurrencyEUR, nil
	}

	text = strings.Join(strings.Fields(text), "")
	// Whichever of "." and "," comes last is the decimal separator.
	if strings.LastIndex(text, ",") > strings.LastIndex(text, ".") {
		text = strings.ReplaceAll(text, ".", "")
		text = strings.ReplaceAll(text, ",", ".")
	} else {
		text = strings.ReplaceAll(text, ",", "")
	}

	amount, err := decimal.NewFromString(text)
	if err != nil {
		return models.CurrencyEUR, nil
	}
	return currency, &amount
}
