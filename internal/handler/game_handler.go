package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"gamesfinder/backend/internal/database"
	"gamesfinder/backend/internal/models"
	"gamesfinder/backend/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// region --- DTOs ---

// OfferResponse is a vendor offer of a game.
type OfferResponse struct {
	Vendor        models.Vendor `json:"vendor" example:"steam"`
	VendorsGameID string        `json:"vendors_game_id" example:"570"`
	VendorsURL    string        `json:"vendors_url" example:"https://store.steampowered.com/app/570"`
	Available     bool          `json:"available"`
	Prices        models.Prices `json:"prices"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type GameResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name" example:"Dota 2"`
	SimplifiedName string          `json:"simplified_name" example:"Dota 2"`
	Description    string          `json:"description"`
	HeaderImage    string          `json:"header_image"`
	SteamURL       string          `json:"steam_url"`
	Type           models.GameType `json:"type" example:"game"`
	GameIDs        []models.GameID `json:"game_ids"`
	InPackages     []int           `json:"in_packages"`
	IsWishlisted   bool            `json:"is_wishlisted"`
	Offers         []OfferResponse `json:"offers"`
}

func newGameResponse(game models.Game, wishlisted bool) GameResponse {
	offers := make([]OfferResponse, 0, len(game.Offers))
	for _, o := range game.Offers {
		offers = append(offers, OfferResponse{
			Vendor:        o.Vendor,
			VendorsGameID: o.VendorsGameID,
			VendorsURL:    o.VendorsURL,
			Available:     o.Available,
			Prices:        o.PriceMap(),
			UpdatedAt:     o.UpdatedAt,
		})
	}

	return GameResponse{
		ID:             game.ID,
		Name:           game.Name,
		SimplifiedName: game.SimplifiedName,
		Description:    game.Description,
		HeaderImage:    game.HeaderImage,
		SteamURL:       game.SteamURL,
		Type:           game.Type,
		GameIDs:        game.GameIDs,
		InPackages:     game.InPackages,
		IsWishlisted:   wishlisted,
		Offers:         offers,
	}
}

// PaginatedGameResponse defines the structure for a paginated list of games.
type PaginatedGameResponse struct {
	Data []GameResponse `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// PaginatedUnprocessedResponse defines the structure for a paginated list of unprocessed games.
type PaginatedUnprocessedResponse struct {
	Data []models.UnprocessedGame `json:"data"`
	Meta PaginationMeta           `json:"meta"`
}

// GameFilters are the query parameters of the game listing.
type GameFilters struct {
	Query        string   `form:"q"`
	Vendor       string   `form:"vendor" binding:"omitempty,oneof=steam instant_gaming"`
	Currency     string   `form:"currency" binding:"omitempty,len=3,alpha"`
	PriceCompare string   `form:"price_compare" binding:"omitempty,oneof=lt lte eq gte gt"`
	Price        *float64 `form:"price" binding:"omitempty,min=0"`
	PriceMin     *float64 `form:"price_min" binding:"omitempty,min=0"`
	PriceMax     *float64 `form:"price_max" binding:"omitempty,min=0"`
	Sort         string   `form:"sort" binding:"omitempty,oneof=name created_at updated_at"`
	Order        string   `form:"order" binding:"omitempty,oneof=asc desc"`
	WishlistOnly bool     `form:"wishlist_only"`
}

// MissingGamesInput lists Steam app ids to check against the catalog.
type MissingGamesInput struct {
	IDs []int `json:"ids" binding:"required,min=1" example:"570,730"`
}

// MissingGamesResponse lists the Steam app ids the catalog does not hold.
type MissingGamesResponse struct {
	Missing []int `json:"missing"`
	Count   int   `json:"count"`
}

// endregion

// region --- Filters ---

var priceOperators = map[string]string{
	"lt":  "<",
	"lte": "<=",
	"eq":  "=",
	"gte": ">=",
	"gt":  ">",
}

// priceConditions renders the price predicates on the current price of an
// offer aliased as o.
func (f GameFilters) priceConditions() (string, []interface{}) {
	currency := f.Currency
	if currency == "" {
		currency = string(models.CurrencyEUR)
	}
	expr := "(o.prices -> ? ->> 'current')::numeric"

	var sql string
	var args []interface{}
	add := func(op string, value float64) {
		if sql != "" {
			sql += " AND "
		}
		sql += expr + " " + op + " ?::numeric"
		args = append(args, currency, decimal.NewFromFloat(value).String())
	}

	if op, ok := priceOperators[f.PriceCompare]; ok && f.Price != nil {
		add(op, *f.Price)
	}
	if f.PriceMin != nil {
		add(">=", *f.PriceMin)
	}
	if f.PriceMax != nil {
		add("<=", *f.PriceMax)
	}
	return sql, args
}

// apply narrows a games query. wishlist holds the viewer's wishlisted game ids.
func (f GameFilters) apply(db *gorm.DB, wishlist []uuid.UUID) *gorm.DB {
	if f.WishlistOnly {
		db = db.Where("games.id IN ?", wishlist)
	}
	if f.Query != "" {
		db = db.Where("games.name ILIKE ?", "%"+f.Query+"%")
	}

	priceSQL, priceArgs := f.priceConditions()
	if f.Vendor == "" && priceSQL == "" {
		return db
	}

	offer := "SELECT 1 FROM game_offers o WHERE o.game_id = games.id"
	var args []interface{}
	if f.Vendor != "" {
		offer += " AND o.vendor = ?"
		args = append(args, f.Vendor)
	}
	if priceSQL != "" {
		offer += " AND " + priceSQL
		args = append(args, priceArgs...)
	}
	return db.Where("EXISTS ("+offer+")", args...)
}

func (f GameFilters) order() clause.OrderByColumn {
	column := f.Sort
	if column == "" {
		column = "name"
	}
	return clause.OrderByColumn{
		Column: clause.Column{Table: "games", Name: column},
		Desc:   f.Order == "desc",
	}
}

// endregion

// region --- Public Handlers ---

func wishlistIDs(userID interface{}) []uuid.UUID {
	var ids []uuid.UUID
	if userID == nil {
		return ids
	}
	database.DB.Table("user_wishlist_games").Where("user_id = ?", userID).Pluck("game_id", &ids)
	return ids
}

// GetGames godoc
// @Summary      Get a list of games
// @Description  Retrieves a paginated list of games with their offers, filtered by name, vendor, price and wishlist.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        q              query     string  false  "Search query for game name"
// @Param        vendor         query     string  false  "Only games offered by this vendor" Enums(steam, instant_gaming)
// @Param        currency       query     string  false  "Currency of the price filters" default(EUR)
// @Param        price_compare  query     string  false  "Comparison applied with price" Enums(lt, lte, eq, gte, gt)
// @Param        price          query     number  false  "Price compared with price_compare"
// @Param        price_min      query     number  false  "Lowest current price"
// @Param        price_max      query     number  false  "Highest current price"
// @Param        sort           query     string  false  "Sort field" Enums(name, created_at, updated_at)
// @Param        order          query     string  false  "Sort order" Enums(asc, desc)
// @Param        wishlist_only  query     bool    false  "Return only wishlisted games"
// @Param        page           query     int     false  "Page number" default(1)
// @Param        limit          query     int     false  "Items per page" default(10)
// @Success      200 {object} PaginatedGameResponse
// @Failure      400 {object} ErrorResponse
// @Router       /games [get]
func GetGames(c *gin.Context) {
	userID, _ := c.Get("userID")
	page, limit := parsePagination(c)

	var filters GameFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wishlist := wishlistIDs(userID)
	if filters.WishlistOnly && len(wishlist) == 0 {
		c.JSON(http.StatusOK, NewPaginatedResponse([]GameResponse{}, 0, page, limit))
		return
	}
	wishlisted := make(map[uuid.UUID]bool, len(wishlist))
	for _, id := range wishlist {
		wishlisted[id] = true
	}

	var totalItems int64
	if err := filters.apply(database.DB.Model(&models.Game{}), wishlist).Count(&totalItems).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count games"})
		return
	}

	var games []models.Game
	err := filters.apply(database.DB.Model(&models.Game{}), wishlist).
		Preload("Offers").
		Order(filters.order()).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&games).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve games"})
		return
	}

	response := make([]GameResponse, 0, len(games))
	for _, game := range games {
		response = append(response, newGameResponse(game, wishlisted[game.ID]))
	}

	c.JSON(http.StatusOK, NewPaginatedResponse(response, totalItems, page, limit))
}

// CountGames godoc
// @Summary      Count games
// @Description  Returns the number of games in the catalog.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]int64 "{"count": 42}"
// @Router       /games/count [get]
func CountGames(c *gin.Context) {
	var count int64
	if err := database.DB.Model(&models.Game{}).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count games"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// GetGameByID godoc
// @Summary      Get a single game by ID
// @Description  Retrieves details for a single game, including its offers and wishlist status.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Game ID"
// @Success      200 {object} GameResponse
// @Failure      400 {object} ErrorResponse "Invalid game ID"
// @Failure      404 {object} ErrorResponse "Game not found"
// @Router       /games/{id} [get]
func GetGameByID(c *gin.Context) {
	userID, _ := c.Get("userID")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game ID"})
		return
	}

	var game models.Game
	if err := database.DB.Preload("Offers").First(&game, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	var wishlisted int64
	database.DB.Table("user_wishlist_games").Where("user_id = ? AND game_id = ?", userID, id).Count(&wishlisted)

	c.JSON(http.StatusOK, newGameResponse(game, wishlisted > 0))
}

// GetGameByAppID godoc
// @Summary      Get a game by Steam app ID
// @Description  Retrieves the catalog game known under a Steam app or package ID.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        appId path int true "Steam app ID"
// @Success      200 {object} GameResponse
// @Failure      400 {object} ErrorResponse "Invalid app ID"
// @Failure      404 {object} ErrorResponse "Game not found"
// @Router       /games/app/{appId} [get]
func GetGameByAppID(c *gin.Context) {
	appID, err := strconv.Atoi(c.Param("appId"))
	if err != nil || appID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid app ID"})
		return
	}

	game, err := store.NewGames(database.DB).FindByVendorID(c.Request.Context(), models.VendorSteam, strconv.Itoa(appID))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve game"})
		return
	}

	c.JSON(http.StatusOK, newGameResponse(*game, false))
}

// FindMissingGames godoc
// @Summary      Find Steam apps missing from the catalog
// @Description  Returns the submitted Steam app IDs that no catalog game is known under.
// @Tags         games
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body MissingGamesInput true "Steam app IDs"
// @Success      200 {object} MissingGamesResponse
// @Failure      400 {object} ErrorResponse
// @Router       /games/missing [post]
func FindMissingGames(c *gin.Context) {
	var input MissingGamesInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	games, err := store.NewGames(database.DB).FindBySteamAppIDs(c.Request.Context(), input.IDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up games"})
		return
	}

	c.JSON(http.StatusOK, missingAppIDs(input.IDs, games))
}

// missingAppIDs keeps the requested ids no game carries as a Steam id, in request order.
func missingAppIDs(requested []int, games []models.Game) MissingGamesResponse {
	known := make(map[string]bool, len(games))
	for _, game := range games {
		for _, gid := range game.GameIDs {
			if gid.Vendor == models.VendorSteam {
				known[gid.ID] = true
			}
		}
	}

	missing := []int{}
	seen := make(map[int]bool, len(requested))
	for _, id := range requested {
		if seen[id] || known[strconv.Itoa(id)] {
			continue
		}
		seen[id] = true
		missing = append(missing, id)
	}
	return MissingGamesResponse{Missing: missing, Count: len(missing)}
}

// GetUnprocessedGames godoc
// @Summary      List unprocessed games
// @Description  Retrieves titles found on vendors that wait to be promoted into catalog games.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        page  query  int  false  "Page number" default(1)
// @Param        limit query  int  false  "Items per page" default(10)
// @Success      200 {object} PaginatedUnprocessedResponse
// @Router       /games/unprocessed [get]
func GetUnprocessedGames(c *gin.Context) {
	page, limit := parsePagination(c)

	response, err := Paginate[models.UnprocessedGame](database.DB.Order("created_at desc"), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve unprocessed games"})
		return
	}
	c.JSON(http.StatusOK, response)
}

// ToggleWishlist godoc
// @Summary      Toggle a game in the wishlist
// @Description  Adds or removes a game from the user's wishlist.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Game ID"
// @Success      200 {object} map[string]bool "{"is_wishlisted": true}"
// @Failure      400 {object} ErrorResponse "Invalid game ID"
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse "User or game not found"
// @Failure      500 {object} ErrorResponse "Failed to update wishlist"
// @Router       /games/{id}/wishlist [post]
func ToggleWishlist(c *gin.Context) {
	userID, _ := c.Get("userID")
	gameID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game ID"})
		return
	}

	var user models.User
	// Eagerly load just the one wishlisted game we care about
	if err := database.DB.Preload("Wishlist", "id = ?", gameID).First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var game models.Game
	if err := database.DB.First(&game, "id = ?", gameID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	association := database.DB.Model(&user).Association("Wishlist")

	// If the preload found the game, it's already wishlisted
	if len(user.Wishlist) > 0 {
		if err := association.Delete(&game); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove from wishlist"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"is_wishlisted": false})
	} else {
		if err := association.Append(&game); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add to wishlist"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"is_wishlisted": true})
	}
}

// endregion

// region --- Admin Handlers ---

// DeleteGame godoc
// @Summary      Delete a game
// @Description  Deletes a game with its offers and wishlist entries.
// @Tags         admin-games
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Game ID"
// @Success      200 {object} map[string]string "{"message": "Game deleted"}"
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse "Admin access required"
// @Failure      404 {object} ErrorResponse "Game not found"
// @Router       /admin/games/{id} [delete]
func DeleteGame(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game ID"})
		return
	}

	var rows int64
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM user_wishlist_games WHERE game_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Game{}, "id = ?", id)
		rows = result.RowsAffected
		return result.Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete game"})
		return
	}
	if rows == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Game deleted"})
}

// endregion
