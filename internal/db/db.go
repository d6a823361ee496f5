package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/screamboard/screamboard/internal/config"
	"github.com/screamboard/screamboard/internal/logger"
	"github.com/screamboard/screamboard/internal/models"
)

// sqlitePragmas are appended to sqlite DSNs that carry no query string of their own.
const sqlitePragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Init opens the database named by cfg.URL and configures the pool.
func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.URL)
	if err != nil {
		return nil, err
	}

	logMode := gormlogger.Silent
	if cfg.LogSQL {
		logMode = gormlogger.Info
	}

	database, err := Open(dialector, logMode)
	if err != nil {
		return nil, err
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Log.Info("Database connection established")
	return database, nil
}

// Dialector picks the gorm dialector from a postgres:// or sqlite:// URL.
func Dialector(dbURL string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(dbURL, "postgres://"):
		logger.Log.Info("Connecting to PostgreSQL database")
		// pgx accepts the URL form directly.
		return postgres.Open(dbURL), nil
	case strings.HasPrefix(dbURL, "sqlite://"):
		dsn := strings.TrimPrefix(dbURL, "sqlite://")
		if !strings.Contains(dsn, "?") {
			dsn += sqlitePragmas
		}
		logger.Log.Info("Connecting to SQLite database", zap.String("dsn", dsn))
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("invalid database url %q: must start with postgres:// or sqlite://", dbURL)
	}
}

// Open opens a connection with UTC timestamps and driver error translation.
func Open(dialector gorm.Dialector, logMode gormlogger.LogLevel) (*gorm.DB, error) {
	database, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logMode),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, nil
}

// Migrate creates or updates every table and the feed/stat indexes.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_posts_created_id ON posts (created_at, id)",
		"CREATE INDEX IF NOT EXISTS idx_posts_author_created ON posts (author, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_reactions_post_emoji ON reactions (post_id, emoji)",
	}
	for _, stmt := range indexes {
		if err := database.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Health pings the database.
func Health(database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the underlying connection pool.
func Close(database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsUniqueViolation reports whether err is a unique-constraint failure from
// either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value")
}
