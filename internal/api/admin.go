package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation
	"time"     // Date filters

	"ecocycle/internal/domain"  // Importing domain models
	"ecocycle/internal/ledger"  // Manual credits
	"ecocycle/internal/rewards" // Center updates and balance fan-out
	"ecocycle/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID          uint          `json:"id"`           // User ID
	Email       string        `json:"email"`        // Email
	DisplayName string        `json:"display_name"` // Display name
	Role        string        `json:"role"`         // User role
	LastActive  int64         `json:"last_active"`  // Last heartbeat
	Wallet      domain.Wallet `json:"wallet"`       // Associated wallet
}

type userListPage struct {
	Users      []UserAdminResponse `json:"users"`       // List of users
	Page       int                 `json:"page"`        // Current page
	PageSize   int                 `json:"page_size"`   // Page size
	Total      int64               `json:"total"`       // Total number of users
	TotalPages int                 `json:"total_pages"` // Total pages
	Cached     bool                `json:"cached"`      // Served from Redis
}

// ListUsersHandler returns all users with their wallet info
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := utils.Page(c)
		cacheKey := "admin:users:page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)
		var cached userListPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		var total int64 // Total user count
		if err := db.Model(&domain.User{}).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"})
			return
		}
		var users []domain.User // Preload Wallet relation, apply offset and limit for pagination
		if err := db.Preload("Wallet").Order("id").Offset(utils.Offset(page, pageSize)).Limit(pageSize).Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
			return
		}
		resp := userListPage{
			Users:      make([]UserAdminResponse, len(users)),
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: utils.TotalPages(total, pageSize),
		}
		for i, u := range users {
			resp.Users[i] = UserAdminResponse{
				ID:          u.ID,
				Email:       u.Email,
				DisplayName: u.DisplayName,
				Role:        u.Role,
				LastActive:  u.LastActive,
				Wallet:      u.Wallet,
			}
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL) // Cache the response for future requests
		c.JSON(http.StatusOK, resp)
	}
}

// parseTimeFilter accepts unix milliseconds or an RFC 3339 / YYYY-MM-DD date
func parseTimeFilter(v string) (int64, bool) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return ms, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UnixMilli(), true
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t.UnixMilli(), true
	}
	return 0, false
}

// ListTransactionsHandler returns all transactions, with optional filtering by user, type, or date
func ListTransactionsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := utils.Page(c)
		var keyParts []string // Parts of the cache key
		for _, k := range []string{"user_id", "type", "from", "to"} {
			keyParts = append(keyParts, k+"="+c.Query(k))
		}
		keyParts = append(keyParts, "page="+strconv.Itoa(page), "size="+strconv.Itoa(pageSize))
		cacheKey := "admin:txs:" + strings.Join(keyParts, ":")
		var cached txHistoryPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		query := db.Model(&domain.Transaction{}) // Start building the query
		if userID := c.Query("user_id"); userID != "" {
			wallets := db.Model(&domain.Wallet{}).Select("id").Where("user_id = ?", userID)
			query = query.Where("from_wallet_id IN (?) OR to_wallet_id IN (?)", wallets, wallets) // Filter by the user's wallet
		}
		if txType := c.Query("type"); txType != "" {
			query = query.Where("type = ?", txType) // Filter by transaction type
		}
		for param, op := range map[string]string{"from": ">=", "to": "<="} {
			v := c.Query(param)
			if v == "" {
				continue
			}
			ms, ok := parseTimeFilter(v)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + param + " date"})
				return
			}
			query = query.Where("created_at "+op+" ?", ms) // Filter by date
		}
		query = query.Session(&gorm.Session{})
		var total int64
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		txs := []domain.Transaction{}
		if err := query.Order("created_at desc").Order("id desc").Offset(utils.Offset(page, pageSize)).Limit(pageSize).Find(&txs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		resp := txHistoryPage{
			Transactions: txs,
			Page:         page,
			PageSize:     pageSize,
			Total:        total,
			TotalPages:   utils.TotalPages(total, pageSize),
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
		c.JSON(http.StatusOK, resp)
	}
}

// CreditRequest is a manual adjustment by an admin
type CreditRequest struct {
	Amount    decimal.Decimal `json:"amount"`    // Amount to add
	Reference string          `json:"reference"` // Optional idempotency reference
}

// CreditWalletHandler adds a manual adjustment to a user's wallet. The body
// reference, or else the Idempotency-Key header, makes it safe to retry.
func CreditWalletHandler(db *gorm.DB, svc *rewards.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
			return
		}
		var req CreditRequest
		if err := c.ShouldBindJSON(&req); err != nil || !validAmount(req.Amount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		reference := strings.TrimSpace(req.Reference)
		if reference == "" {
			reference = strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		}
		if reference != "" {
			reference = "admin:" + strconv.FormatUint(userID, 10) + ":" + reference // Scoped to the credited user
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			w, err := ledger.WalletByUser(tx, uint(userID))
			if err != nil {
				return err
			}
			_, err = ledger.Credit(tx, w.ID, req.Amount, domain.TxAdjustment, reference)
			return err
		})
		replayed := errors.Is(err, ledger.ErrDuplicateReference)
		if err != nil && !replayed {
			status, msg := ledgerStatus(err)
			logrus.WithFields(logrus.Fields{"user_id": userID, "amount": req.Amount.String(), "error": err.Error()}).Error("Manual credit failed")
			c.JSON(status, gin.H{"error": msg})
			return
		}
		if !replayed {
			logrus.WithFields(logrus.Fields{
				"user_id":   userID,
				"amount":    req.Amount.String(),
				"type":      domain.TxAdjustment,
				"reference": reference,
			}).Info("Manual credit")
		}
		balance, err := svc.SyncBalance(c.Request.Context(), uint(userID))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load wallet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Wallet credited", "balance": balance, "replayed": replayed})
	}
}

// EmptyCenterHandler resets a center's load after its bins are collected
func EmptyCenterHandler(svc *rewards.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		center, err := svc.EmptyCenter(c.Param("id"))
		if errors.Is(err, rewards.ErrCenterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Center not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to empty center"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"center": center.View()})
	}
}
