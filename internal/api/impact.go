package api

import (
	"net/http" // HTTP status codes
	"time"     // Activity window

	"ecocycle/internal/catalog" // Pricing and guide
	"ecocycle/internal/domain"  // Importing domain models
	"ecocycle/internal/utils"   // Cache helpers

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Sums
	"gorm.io/gorm"                  // GORM ORM library
)

// ActiveWindow is how recent a heartbeat must be to count a user as active
const ActiveWindow = 5 * time.Minute

const impactCacheKey = "impact:summary"

// Impact is the community dashboard
type Impact struct {
	WasteDivertedKg   decimal.Decimal `json:"waste_diverted_kg"`   // Weight of recyclable scans
	WasteDivertedTons int64           `json:"waste_diverted_tons"` // Rounded to whole tons
	RewardsPaid       decimal.Decimal `json:"rewards_paid"`        // Sum of reward credits
	ActiveUsers       int64           `json:"active_users"`        // Heartbeat within ActiveWindow
	RegisteredUsers   int64           `json:"registered_users"`
	OpenDumpSites     int64           `json:"open_dump_sites"`
	DropOffCenters    int64           `json:"drop_off_centers"`
	DropOffs          int64           `json:"drop_offs"`
	Cached            bool            `json:"cached"`
}

// sumColumn adds up a decimal column, treating an empty table as zero
func sumColumn(q *gorm.DB, column string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := q.Select("SUM(" + column + ")").Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// ComputeImpact reads the dashboard figures from the database
func ComputeImpact(db *gorm.DB, now time.Time) (*Impact, error) {
	var (
		imp Impact
		err error
	)
	if imp.WasteDivertedKg, err = sumColumn(db.Model(&domain.Scan{}).Where("recyclable = ?", true), "weight_kg"); err != nil {
		return nil, err
	}
	imp.WasteDivertedTons = imp.WasteDivertedKg.Div(decimal.NewFromInt(1000)).Round(0).IntPart()
	if imp.RewardsPaid, err = sumColumn(db.Model(&domain.Transaction{}).Where("type = ?", domain.TxReward), "amount"); err != nil {
		return nil, err
	}
	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&imp.ActiveUsers, db.Model(&domain.User{}).Where("last_active >= ?", now.Add(-ActiveWindow).UnixMilli())},
		{&imp.RegisteredUsers, db.Model(&domain.User{})},
		{&imp.OpenDumpSites, db.Model(&domain.DumpReport{}).Where("status = ?", domain.DumpOpen)},
		{&imp.DropOffCenters, db.Model(&domain.Center{})},
		{&imp.DropOffs, db.Model(&domain.DropOff{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}
	return &imp, nil
}

// ImpactHandler serves the community dashboard, cached in Redis
func ImpactHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var cached Impact
		if found, err := utils.GetCache(ctx, rdb, impactCacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		imp, err := ComputeImpact(db, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute impact"})
			return
		}
		_ = utils.SetCache(ctx, rdb, impactCacheKey, imp, utils.CacheTTL)
		c.JSON(http.StatusOK, imp)
	}
}

// PricingHandler returns the payout table
func PricingHandler(cat *catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"currency": cat.Currency, "pricing": cat.Pricing})
	}
}

// GuideHandler returns the how-to-recycle guide
func GuideHandler(cat *catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"guide": cat.Guide})
	}
}
