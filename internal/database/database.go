package database

import (
	"fmt"

	"github.com/gdg-garage/sputnik-ledger/internal/config"
	"github.com/gdg-garage/sputnik-ledger/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Connect opens the configured database and migrates the schema.
func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	log.Info("database ready", zap.String("driver", db.Dialector.Name()))
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Institute{},
		&models.Group{},
		&models.User{},
		&models.UserSettings{},
		&models.Achievement{},
		&models.IssuedAchievement{},
		&models.AwardAcknowledgment{},
		&models.AchievementOperation{},
		&models.APIKey{},
	)
}
