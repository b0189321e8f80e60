package database

import (
	"fmt"
	"log/slog"

	"github.com/casimir/freon/internal/config"
	"github.com/casimir/freon/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Token{},
		&domain.TokenScope{},
		&domain.WallabagSession{},
		&domain.WallabagCredentials{},
	)
}

// EnsureDefaultSuperuser creates the bootstrap superuser when none exists so a
// fresh install can always be administered.
func EnsureDefaultSuperuser(db *gorm.DB, cfg *config.Config, logger *slog.Logger, setPassword func(*domain.User, string) error) error {
	var count int64
	if err := db.Model(&domain.User{}).Where("is_superuser = ?", true).Count(&count).Error; err != nil {
		return fmt.Errorf("count superusers: %w", err)
	}
	if count > 0 {
		return nil
	}

	user := domain.User{
		Username:    cfg.AdminDefaultUsername,
		IsSuperuser: true,
	}
	if err := setPassword(&user, cfg.AdminDefaultPassword); err != nil {
		return fmt.Errorf("set bootstrap password: %w", err)
	}
	if err := db.Create(&user).Error; err != nil {
		return fmt.Errorf("create bootstrap superuser: %w", err)
	}
	logger.Info("created bootstrap superuser", "username", user.Username)
	return nil
}
