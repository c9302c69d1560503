package database

import (
	"log"
	"os"

	"github.com/trafficlens/backend/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect initializes the database connection. Postgres when DATABASE_URL
// is set, a local sqlite file otherwise (development fallback).
func Connect() error {
	var (
		dialector gorm.Dialector
		err       error
	)

	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dialector = postgres.Open(databaseURL)
	} else {
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "trafficlens.db"
		}
		log.Printf("⚠️ DATABASE_URL not set, falling back to sqlite at %s", path)
		dialector = sqlite.Open("file:" + path + "?_busy_timeout=5000&_journal_mode=WAL")
	}

	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return err
	}

	log.Println("✅ Database connected successfully")

	return Migrate(DB)
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Camera{},
		&models.DetectionJob{},
		&models.Violation{},
		&models.Challan{},
		&models.ChallanSequence{},
		&models.TelemetryReport{},
	)
}

// Close closes the database connection
func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
