package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"gamesfinder/backend/internal/models"

	"github.com/shopspring/decimal"
)

const DefaultSteamStoreURL = "https://store.steampowered.com"

type steamDetails struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type steamPrice struct {
	Currency string `json:"currency"`
	Initial  int64  `json:"initial"`
	Final    int64  `json:"final"`
}

type steamApp struct {
	Type          string      `json:"type"`
	Name          string      `json:"name"`
	AboutTheGame  string      `json:"about_the_game"`
	HeaderImage   string      `json:"header_image"`
	PriceOverview *steamPrice `json:"price_overview"`
}

type steamPackage struct {
	Apps []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"apps"`
}

// Steam extracts games from the store appdetails API.
type Steam struct {
	fetcher     ContentFetcher
	storeURL    string
	countryCode string
	language    string
	logger      *slog.Logger
}

type SteamOption func(*Steam)

func WithSteamStoreURL(u string) SteamOption {
	return func(s *Steam) {
		s.storeURL = strings.TrimRight(u, "/")
	}
}

// WithSteamLocale sets the cc and l query parameters of appdetails requests.
func WithSteamLocale(countryCode, language string) SteamOption {
	return func(s *Steam) {
		s.countryCode = countryCode
		s.language = language
	}
}

func WithSteamLogger(logger *slog.Logger) SteamOption {
	return func(s *Steam) {
		s.logger = logger
	}
}

func NewSteam(fetcher ContentFetcher, opts ...SteamOption) *Steam {
	s := &Steam{
		fetcher:  fetcher,
		storeURL: DefaultSteamStoreURL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Steam) Vendor() models.Vendor {
	return models.VendorSteam
}

func (s *Steam) appDetailsURL(id int) string {
	q := url.Values{}
	q.Set("appids", strconv.Itoa(id))
	if s.countryCode != "" {
		q.Set("cc", s.countryCode)
	}
	if s.language != "" {
		q.Set("l", s.language)
	}
	return s.storeURL + "/api/appdetails?" + q.Encode()
}

func (s *Steam) packageDetailsURL(id int) string {
	return s.storeURL + "/api/packagedetails?packageids=" + strconv.Itoa(id)
}

func (s *Steam) appURL(id int) string {
	return s.storeURL + "/app/" + strconv.Itoa(id)
}

func (s *Steam) Fetch(ctx context.Context, id int) ([]byte, error) {
	return s.fetcher.Fetch(ctx, s.appDetailsURL(id), "steam app "+strconv.Itoa(id))
}

// Extract builds the game and Steam offer for the requested id. When the id
// is a package, the first app of the package is extracted instead and the
// package id is remembered on the game.
func (s *Steam) Extract(ctx context.Context, content []byte, id int, existing *models.Game) (Result, error) {
	details, err := parseSteamEnvelope(content, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to parse appdetails", "app_id", id, "err", err)
		return Result{}, err
	}

	realID := id
	if !details.Success {
		realID, details, err = s.resolvePackage(ctx, id)
		if err != nil {
			return Result{}, err
		}
	}

	var app steamApp
	if err := json.Unmarshal(details.Data, &app); err != nil {
		return Result{}, fmt.Errorf("%w: app %d data: %w", ErrMalformed, realID, err)
	}
	if app.Name == "" {
		return Result{}, fmt.Errorf("%w: app %d has no name", ErrMalformed, realID)
	}

	vendorsID := strconv.Itoa(id)
	game := existing
	isNew := game == nil
	if isNew {
		game = models.NewGame(app.Name)
		game.Description = app.AboutTheGame
		game.HeaderImage = app.HeaderImage
		game.SteamURL = s.appURL(realID)
		if app.Type != "" && app.Type != "game" {
			game.Type = models.GameTypeDLC
		}
		game.AddVendorID(models.GameID{
			Vendor: models.VendorSteam,
			ID:     vendorsID,
			RealID: strconv.Itoa(realID),
		})
		if realID != id {
			game.AddPackage(id)
		}
	} else if _, ok := game.VendorID(models.VendorSteam); !ok {
		game.AddVendorID(models.GameID{
			Vendor: models.VendorSteam,
			ID:     vendorsID,
			RealID: strconv.Itoa(realID),
		})
	}

	offer := models.NewGameOffer(game.ID, models.VendorSteam, vendorsID, s.appURL(realID), true, steamPrices(app.PriceOverview))
	game.ReplaceOffer(offer)

	return Result{
		Game:  game,
		Offer: &offer,
		IsNew: isNew,
	}, nil
}

// resolvePackage maps a package id to its first app and fetches that app.
func (s *Steam) resolvePackage(ctx context.Context, packageID int) (int, steamDetails, error) {
	content, err := s.fetcher.Fetch(ctx, s.packageDetailsURL(packageID), "steam package "+strconv.Itoa(packageID))
	if err != nil {
		return 0, steamDetails{}, err
	}
	pkgDetails, err := parseSteamEnvelope(content, packageID)
	if err != nil {
		return 0, steamDetails{}, err
	}
	if !pkgDetails.Success {
		return 0, steamDetails{}, fmt.Errorf("%w: %d is neither an app nor a package", ErrMalformed, packageID)
	}

	var pkg steamPackage
	if err := json.Unmarshal(pkgDetails.Data, &pkg); err != nil {
		return 0, steamDetails{}, fmt.Errorf("%w: package %d data: %w", ErrMalformed, packageID, err)
	}
	if len(pkg.Apps) == 0 {
		return 0, steamDetails{}, fmt.Errorf("%w: package %d has no apps", ErrMalformed, packageID)
	}

	realID := pkg.Apps[0].ID
	s.logger.DebugContext(ctx, "resolved package", "package_id", packageID, "app_id", realID)

	content, err = s.Fetch(ctx, realID)
	if err != nil {
		return 0, steamDetails{}, err
	}
	details, err := parseSteamEnvelope(content, realID)
	if err != nil {
		return 0, steamDetails{}, err
	}
	if !details.Success {
		return 0, steamDetails{}, fmt.Errorf("%w: app %d of package %d unavailable", ErrMalformed, realID, packageID)
	}
	return realID, details, nil
}

func parseSteamEnvelope(content []byte, id int) (steamDetails, error) {
	var envelope map[string]steamDetails
	if err := json.Unmarshal(content, &envelope); err != nil {
		return steamDetails{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	details, ok := envelope[strconv.Itoa(id)]
	if !ok {
		return steamDetails{}, fmt.Errorf("%w: missing key %d", ErrMalformed, id)
	}
	return details, nil
}

// steamPrices converts minor units to decimals. Without a price overview the
// price is unknown, which is stored as an EUR entry with no bounds.
func steamPrices(price *steamPrice) models.Prices {
	if price == nil || price.Currency == "" {
		return models.Prices{models.CurrencyEUR: {}}
	}
	initial := decimal.New(price.Initial, -2)
	current := decimal.New(price.Final, -2)
	return models.Prices{
		models.Currency(price.Currency): {
			Initial: &initial,
			Current: &current,
		},
	}
}
