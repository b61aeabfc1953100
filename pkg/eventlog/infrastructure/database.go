package infrastructure

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DatabaseConfig selects and configures the database backing both the
// event store and the relational cache variant.
type DatabaseConfig struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

// DefaultSQLiteConfig returns a development-friendly SQLite configuration.
func DefaultSQLiteConfig() DatabaseConfig {
	return DatabaseConfig{Driver: "sqlite", DSN: "file:eventcore.db?cache=shared&mode=rwc"}
}

// PostgresDSN builds a libpq-style DSN for NewDatabase's "postgres" driver.
func PostgresDSN(host, user, password, dbname string, port int, sslmode string) string {
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		host, user, password, dbname, port, sslmode)
}

// NewDatabase opens a GORM connection for the configured driver. Schema
// setup happens separately, in each adapter's own migrate step, so that a
// single *gorm.DB can back a store and a cache that migrate independently.
func NewDatabase(config DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case "sqlite":
		dialector = sqlite.Open(config.DSN)
	case "postgres":
		dialector = postgres.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// HealthCheck pings the underlying connection.
func HealthCheck(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}
