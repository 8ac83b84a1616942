package main

import (
	"ecocycle/internal/catalog" // Drop-off centers to seed
	"ecocycle/internal/config"  // Custom import path (Config)
	"ecocycle/internal/db"      // Custom import path (Database)

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			logrus.Fatalf("failed to load catalog: %v", err)
		}
		cat = loaded
	}

	gdb, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}
	if err := db.SeedCenters(gdb, cat.CenterModels()); err != nil {
		logrus.Fatalf("seeding centers failed: %v", err)
	}
}
