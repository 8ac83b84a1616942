package api

import (
	"time" // Rate limit window

	"ecocycle/internal/catalog"    // Static catalog
	"ecocycle/internal/cloud"      // Firestore mirror
	"ecocycle/internal/config"     // Application configuration
	"ecocycle/internal/middleware" // Custom middleware
	"ecocycle/internal/notify"     // Alerts and mail
	"ecocycle/internal/realtime"   // Websocket hub
	"ecocycle/internal/rewards"    // Scan-and-earn flow

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps is everything the HTTP layer talks to
type Deps struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Catalog    *catalog.Catalog
	Classifier Classifier
	Rewards    *rewards.Service
	Hub        *realtime.Hub
	Notifier   notify.Notifier
	Mailer     notify.Mailer
	Mirror     cloud.Mirror
}

// NewRouter builds the gin engine with every route
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Mailer == nil {
		d.Mailer = notify.LogMailer{RevealToken: !cfg.IsProd}
	}
	if d.Mirror == nil {
		d.Mirror = cloud.NopMirror{}
	}
	if d.Hub == nil {
		d.Hub = realtime.NewHub()
	}

	r := gin.New() // Gin router instance
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORSMiddleware(cfg.CORSOrigins))
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	auth := middleware.JWTAuthMiddleware(cfg.JWTSecret)
	upgrader := realtime.Upgrader(cfg.CORSOrigins)
	dumpDeps := DumpDeps{DB: d.DB, Redis: d.Redis, Catalog: d.Catalog, Events: d.Hub, Notifier: d.Notifier, Mirror: d.Mirror}

	// Classification service and health
	r.GET("/", RootHandler())
	r.GET("/test", TestHandler(d.Classifier))
	r.POST("/classify", ClassifyHandler(d.Classifier, cfg.MaxUploadBytes))

	// Public reference data
	r.GET("/pricing", PricingHandler(d.Catalog))
	r.GET("/guide", GuideHandler(d.Catalog))
	r.GET("/centers", ListCentersHandler(d.Rewards))
	r.GET("/impact", ImpactHandler(d.DB, d.Redis))
	r.GET("/dumps", ListDumpsHandler(d.DB, d.Redis))
	r.POST("/dumps", middleware.OptionalJWTMiddleware(cfg.JWTSecret), ReportDumpHandler(dumpDeps))

	// Auth routes
	authGroup := r.Group("/auth")
	authGroup.POST("/register", RegisterHandler(d.DB, cfg.JWTSecret))
	authGroup.POST("/login", LoginHandler(d.DB, d.Redis, cfg.JWTSecret, cfg.LoginMaxAttempts))
	authGroup.POST("/forgot", ForgotPasswordHandler(d.DB, d.Redis, d.Mailer))
	authGroup.POST("/reset", ResetPasswordHandler(d.DB, d.Redis))

	// Signed-in user
	me := r.Group("/me", auth)
	me.GET("", MeHandler(d.DB))
	me.POST("/heartbeat", HeartbeatHandler(d.DB))

	// Wallet routes (protected by JWT)
	walletGroup := r.Group("/wallet", auth)
	walletGroup.GET("", GetWalletHandler(d.DB, d.Redis))
	walletGroup.GET("/transactions", GetTransactionHistoryHandler(d.DB, d.Redis))
	walletGroup.POST("/transfer", TransferHandler(d.DB, d.Rewards))
	walletGroup.POST("/withdraw", WithdrawHandler(d.DB, d.Rewards))

	// Scan-and-earn
	scans := r.Group("/scans", auth)
	scans.GET("", ListScansHandler(d.Rewards))
	scans.POST("", middleware.RateLimitMiddleware(d.Redis, "scans", cfg.ScanRatePerMin, time.Minute), CreateScanHandler(d.Rewards, cfg.MaxUploadBytes))

	dropoffs := r.Group("/dropoffs", auth)
	dropoffs.GET("", ListDropOffsHandler(d.Rewards))
	dropoffs.POST("", CreateDropOffHandler(d.Rewards))

	// Live feeds
	r.GET("/ws/map", MapFeedHandler(d.Hub, upgrader, d.DB, d.Rewards))
	r.GET("/ws/wallet", WalletFeedHandler(d.Hub, upgrader, d.DB, cfg.JWTSecret))

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin", auth, middleware.AdminOnlyMiddleware(d.DB))
	adminGroup.GET("/users", ListUsersHandler(d.DB, d.Redis))
	adminGroup.GET("/transactions", ListTransactionsHandler(d.DB, d.Redis))
	adminGroup.POST("/wallets/:user_id/credit", CreditWalletHandler(d.DB, d.Rewards))
	adminGroup.POST("/centers/:id/empty", EmptyCenterHandler(d.Rewards))
	adminGroup.POST("/dumps/:id/clear", ClearDumpHandler(dumpDeps))

	return r
}
