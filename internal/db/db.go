package db

import (
	"ecocycle/internal/config" // Application configuration
	"fmt"                      // Error wrapping

	"github.com/glebarez/sqlite" // Pure Go SQLite driver for GORM
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/logger"        // GORM logger
)

// Open connects to the database selected by DB_DRIVER
func Open(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		TranslateError: true, // Map driver errors to gorm.ErrDuplicatedKey etc.
	}
	if cfg.IsProd {
		gcfg.Logger = logger.Default.LogMode(logger.Error) // Only log errors in production
	}
	switch cfg.DBDriver {
	case "mysql":
		return gorm.Open(mysql.Open(cfg.MySQLDSN()), gcfg) // Open MySQL connection
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.DBPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), gcfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB() // Underlying connection pool
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1) // SQLite allows a single writer
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
