package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/config"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrDatabaseUnavailable = errors.New("database unavailable")

// sqlite needs a busy timeout and immediate write locks so concurrent
// webhook deliveries queue instead of failing with SQLITE_BUSY.
const sqliteOptions = "_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL"

// OpenDatabase connects to the configured store and migrates the schema.
func OpenDatabase(cfg config.Database) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is not set", ErrDatabaseUnavailable)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.URL)
	case "sqlite":
		dsn := cfg.URL
		if strings.Contains(dsn, "?") {
			dsn += "&" + sqliteOptions
		} else {
			dsn += "?" + sqliteOptions
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: unsupported driver %q", ErrDatabaseUnavailable, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrDatabaseUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}

	// Connection pool (important for webhooks)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return db, nil
}
