package db

import (
	"ecocycle/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/clause"        // Upsert clauses
)

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	err := db.AutoMigrate(
		&domain.User{},
		&domain.Wallet{},
		&domain.Transaction{},
		&domain.Scan{},
		&domain.Center{},
		&domain.DropOff{},
		&domain.DumpReport{},
	)
	if err != nil {
		return err // Return migration error
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}

// SeedCenters inserts catalog centers that are not in the database yet.
// Existing rows keep their current load.
func SeedCenters(db *gorm.DB, centers []domain.Center) error {
	if len(centers) == 0 {
		return nil // Nothing to seed
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&centers) // Insert, skip existing ids
	if res.Error != nil {
		return res.Error // Return insert error
	}
	logrus.WithField("inserted", res.RowsAffected).Info("Drop-off centers seeded") // Log seed result
	return nil
}
