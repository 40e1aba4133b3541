package store

import (
	"testing"

	"gamesfinder/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dryRunDB renders PostgreSQL statements without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=gamesfinder dbname=gamesfinder sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestGameQueries(t *testing.T) {
	db := dryRunDB(t)
	filter, err := vendorIDFilter(models.VendorSteam, "570")
	require.NoError(t, err)

	tests := []struct {
		name  string
		query func(tx *gorm.DB) *gorm.DB
		want  []string
	}{
		{
			name: "vendor id containment",
			query: func(tx *gorm.DB) *gorm.DB {
				return tx.Scopes(withVendorID(filter)).Find(&[]models.Game{})
			},
			want: []string{`SELECT * FROM "games" WHERE game_ids @> '[{"vendor":"steam","id":"570"}]'::jsonb`},
		},
		{
			name: "name contained in title",
			query: func(tx *gorm.DB) *gorm.DB {
				return tx.Scopes(containedIn("Dota 2 Key")).Find(&[]models.Game{})
			},
			want: []string{
				`WHERE strpos(lower('Dota 2 Key'), lower(name)) > 0`,
				`ORDER BY length(name) asc`,
			},
		},
		{
			name: "steam app ids",
			query: func(tx *gorm.DB) *gorm.DB {
				return tx.Scopes(withSteamAppIDs([]int{570, 730})).Find(&[]models.Game{})
			},
			want: []string{
				`jsonb_array_elements(games.game_ids) AS elem`,
				`elem->>'vendor' = 'steam' AND elem->>'id' IN ('570','730')`,
			},
		},
		{
			name: "vendor ids",
			query: func(tx *gorm.DB) *gorm.DB {
				return vendorIDsQuery(tx, models.VendorInstantGaming)
			},
			want: []string{`WHERE elem->>'vendor' = 'instant_gaming'`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := db.ToSQL(tt.query)
			for _, fragment := range tt.want {
				assert.Contains(t, sql, fragment)
			}
		})
	}
}

func TestUpsertClauses(t *testing.T) {
	db := dryRunDB(t)

	game := models.NewGame("Dota 2")
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Omit(clause.Associations).Clauses(gameUpsert).Create([]*models.Game{game})
	})
	assert.Contains(t, sql, `INSERT INTO "games"`)
	assert.Contains(t, sql, `ON CONFLICT ("id") DO UPDATE SET`)
	assert.Contains(t, sql, `"game_ids"="excluded"."game_ids"`)

	offer := models.NewGameOffer(uuid.New(), models.VendorSteam, "570", "", true, nil)
	sql = db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Clauses(offerUpsert).Create(&offer)
	})
	assert.Contains(t, sql, `ON CONFLICT ("game_id","vendor") DO UPDATE SET`)
	assert.Contains(t, sql, `"prices"="excluded"."prices"`)
}
