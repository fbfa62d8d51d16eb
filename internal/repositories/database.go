package repositories

import (
	"fmt"

	"storefront/config"
	"storefront/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDatabase connects to the configured database and migrates the product table.
func OpenDatabase(cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.Product{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.WithField("driver", cfg.Driver).Info("Database connected and migrated")
	return db, nil
}

// NewProductRepository picks the repository implementation for the configured driver.
// The returned close function releases the underlying connection, if any.
func NewProductRepository(cfg config.DatabaseConfig, log *logrus.Logger) (ProductRepository, func() error, error) {
	if cfg.Driver == "memory" {
		return NewMemoryProductRepository(), func() error { return nil }, nil
	}

	db, err := OpenDatabase(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	return NewGORMProductRepository(db), sqlDB.Close, nil
}
