package database

import (
	"log"
	"os"
	"time"

	"gamesfinder/backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to PostgreSQL and runs migrations.
func Open(dsn string) (*gorm.DB, error) {
	// Configure GORM logger
	customLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: customLogger,
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&models.User{}, &models.Game{}, &models.GameOffer{}, &models.UnprocessedGame{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Connect initializes the global database connection and runs migrations.
func Connect(dsn string) {
	db, err := Open(dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	DB = db

	log.Println("Database connection established and migrated.")
}
