package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/pulse/internal/config"
	"github.com/oggyb/pulse/internal/logger"
)

// Dialector picks the gorm driver named by DB_DRIVER.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres", "":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

// GormConfig is shared by the server and the tests: UTC timestamps and
// driver errors translated to gorm.ErrDuplicatedKey and friends.
func GormConfig(log *slog.Logger, level string) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLogger(log, level),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}
}

// NewDB initializes the database connection using DSN from config.
func NewDB(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, GormConfig(log, cfg.DB.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate keeps the schema in sync with the models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
