package database

import (
	"fmt"

	"github.com/admoderation/platform/pkg/common/config"
	"github.com/admoderation/platform/pkg/common/logger"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDB opens the durable store selected by cfg.DBDriver. Postgres is the
// production backend; sqlite serves local runs.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	switch cfg.DBDriver {
	case "", "postgres", "postgresql":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.PostgresHost,
			cfg.PostgresUser,
			cfg.PostgresPassword,
			cfg.PostgresDB,
			cfg.PostgresPort,
			cfg.PostgresSSLMode,
		)
		db, err := gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			logger.Log.WithError(err).Error("Failed to connect to PostgreSQL")
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		logger.Log.WithField("host", cfg.PostgresHost).Info("Connected to PostgreSQL")
		return db, nil
	case "sqlite", "sqlite3":
		db, err := gorm.Open(gormsqlite.Open(cfg.SQLiteDSN), gormCfg)
		if err != nil {
			logger.Log.WithError(err).Error("Failed to open SQLite")
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Log.WithField("dsn", cfg.SQLiteDSN).Info("Opened SQLite")
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
