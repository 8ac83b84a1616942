package main

import (
	"context"   // Startup and shutdown deadlines
	"errors"    // Error matching
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal notification
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"ecocycle/internal/api"        // Custom package for API handlers
	"ecocycle/internal/catalog"    // Pricing, centers and guide
	"ecocycle/internal/classifier" // Vision model client
	"ecocycle/internal/cloud"      // Firestore mirror and image archive
	"ecocycle/internal/config"     // Custom package for configuration
	"ecocycle/internal/db"         // Database connection and migrations
	"ecocycle/internal/notify"     // Moderator alerts
	"ecocycle/internal/realtime"   // Websocket hub
	"ecocycle/internal/rewards"    // Scan-and-earn flow

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money encoding
	"github.com/sirupsen/logrus"    // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode) // Set Mode to Release if in production
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	decimal.MarshalJSONWithoutQuotes = true // Amounts are JSON numbers for the web client

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			logrus.Fatalf("failed to load catalog: %v", err)
		}
		cat = loaded
	}

	// Connect to the database and bring the schema up to date
	gdb, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("failed to migrate DB: %v", err)
	}
	if err := db.SeedCenters(gdb, cat.CenterModels()); err != nil {
		logrus.Fatalf("failed to seed centers: %v", err)
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := redisClient.Ping(pingCtx).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err) // Test Redis connection
	}

	cls := classifier.New(classifier.Options{
		APIKey:     cfg.GroqAPIKey,
		BaseURL:    cfg.GroqBaseURL,
		Model:      cfg.ClassifierModel,
		TestModel:  cfg.ClassifierTest,
		Timeout:    cfg.ClassifierTimeout,
		MaxRetries: cfg.ClassifierRetries,
	}, cat)
	if cfg.GroqAPIKey == "" {
		logrus.Warn("GROQ_API_KEY not set, classification will fail")
	}

	hub := realtime.NewHub()
	deps := rewards.Deps{DB: gdb, Redis: redisClient, Classifier: cls, Events: hub, Mirror: cloud.NopMirror{}}
	var notifier notify.Notifier = notify.Nop{}
	startCtx := context.Background()

	// Optional integrations
	if cfg.FirebaseProjectID != "" {
		mirror, err := cloud.NewFirestoreMirror(startCtx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
		if err != nil {
			logrus.Fatalf("failed to init Firestore: %v", err)
		}
		defer mirror.Close()
		deps.Mirror = mirror
		logrus.WithField("project", cfg.FirebaseProjectID).Info("Firestore mirror enabled")
	}
	if cfg.GCSBucket != "" {
		store, err := cloud.NewGCSImageStore(startCtx, cfg.GCSBucket, cfg.FirebaseCredentials)
		if err != nil {
			logrus.Fatalf("failed to init GCS: %v", err)
		}
		defer store.Close()
		deps.Images = store
		logrus.WithField("bucket", cfg.GCSBucket).Info("Scan image archive enabled")
	}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logrus.Fatalf("failed to init Telegram: %v", err)
		}
		notifier = tg
		logrus.Info("Telegram moderator alerts enabled")
	}

	router := api.NewRouter(api.Deps{
		Config:     cfg,
		DB:         gdb,
		Redis:      redisClient,
		Catalog:    cat,
		Classifier: cls,
		Rewards:    rewards.NewService(deps),
		Hub:        hub,
		Notifier:   notifier,
		Mailer:     notify.LogMailer{RevealToken: !cfg.IsProd},
		Mirror:     deps.Mirror,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running") // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	// Wait for SIGINT/SIGTERM, then drain
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down")

	hub.Close() // Websocket handlers return once their queues close
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("graceful shutdown failed: %v", err)
	}
	_ = redisClient.Close()
}
