package database

import (
	"fmt"
	"log"
	"strings"

	"github.com/ventura-coast-web-design/california-kids-camp/internal/config"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table owned by the service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.APIKey{},
		&models.Registration{},
		&models.Attendee{},
		&models.Payment{},
		&models.Donation{},
		&models.CounsellorPair{},
	}
}

func Connect(cfg *config.Config) *gorm.DB {
	db, err := Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("Failed to auto migrate: %v", err)
	}

	return db
}

// Open dials the configured driver without migrating.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	switch strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver)) {
	case "", "sqlite":
		return gorm.Open(sqlite.Open(cfg.DatabasePath), gormCfg)
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseDSN) == "" {
			return nil, fmt.Errorf("DATABASE_DSN is required for the postgres driver")
		}
		return gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
