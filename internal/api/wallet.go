package api

import (
	"context"  // Request-scoped sync
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // Reference building
	"strings"  // Header trimming

	"ecocycle/internal/domain"     // Importing domain models
	"ecocycle/internal/ledger"     // Balance changes
	"ecocycle/internal/middleware" // Authenticated caller
	"ecocycle/internal/rewards"    // Balance fan-out
	"ecocycle/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// IdempotencyHeader carries a client-chosen key that makes a request safe to retry
const IdempotencyHeader = "Idempotency-Key"

// TransferRequest represents a transfer request
type TransferRequest struct {
	ToEmail string          `json:"to_email" binding:"required"` // Recipient email
	Amount  decimal.Decimal `json:"amount"`                      // Transfer amount
}

// WithdrawRequest represents a cash-out request
type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"` // Withdrawal amount
}

// validAmount accepts positive amounts with at most two decimal places
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

// ledgerStatus maps ledger errors to an HTTP status and message
func ledgerStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusBadRequest, "Insufficient funds"
	case errors.Is(err, ledger.ErrSelfTransfer):
		return http.StatusBadRequest, "Cannot transfer to yourself"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, "Invalid amount"
	case errors.Is(err, ledger.ErrWalletNotFound):
		return http.StatusNotFound, "Wallet not found"
	case errors.Is(err, ledger.ErrDuplicateReference):
		return http.StatusConflict, "Request already applied"
	default:
		return http.StatusInternalServerError, "Transaction failed"
	}
}

// TransferHandler allows a user to transfer funds to another user's wallet
func TransferHandler(db *gorm.DB, svc *rewards.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		fromUserID, ok := middleware.UserID(c) // Get userID from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req TransferRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil || !validAmount(req.Amount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var toUser domain.User // Find target user
		if err := db.Where("email = ?", normalizeEmail(req.ToEmail)).First(&toUser).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Target user not found"})
			return
		}
		if _, err := ledger.Transfer(db, fromUserID, toUser.ID, req.Amount); err != nil {
			status, msg := ledgerStatus(err)
			logrus.WithFields(logrus.Fields{
				"from_user_id": fromUserID,          // Sender user ID
				"to_user_id":   toUser.ID,           // Recipient user ID
				"amount":       req.Amount.String(), // Transfer amount
				"error":        err.Error(),         // Error message
			}).Error("Transfer failed")
			c.JSON(status, gin.H{"error": msg})
			return
		}
		logrus.WithFields(logrus.Fields{
			"from_user_id": fromUserID,          // Sender user ID
			"to_user_id":   toUser.ID,           // Recipient user ID
			"amount":       req.Amount.String(), // Transfer amount
			"type":         domain.TxTransfer,   // Transaction type
		}).Info("Transfer transaction")
		balance, err := svc.SyncBalance(c.Request.Context(), fromUserID) // Refresh caches and subscribers
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load wallet"})
			return
		}
		syncRecipient(c.Request.Context(), svc, toUser.ID)
		c.JSON(http.StatusOK, gin.H{"message": "Transfer successful", "balance": balance})
	}
}

// syncRecipient pushes a transfer recipient's new balance. The transfer is
// already committed, so a failure is logged and not returned.
func syncRecipient(ctx context.Context, svc *rewards.Service, userID uint) {
	if _, err := svc.SyncBalance(ctx, userID); err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,      // Recipient user ID
			"error":   err.Error(), // Wallet read failure
		}).Warn("Recipient wallet sync failed")
	}
}

// WithdrawHandler cashes out part of the balance. An Idempotency-Key header
// makes retries safe.
func WithdrawHandler(db *gorm.DB, svc *rewards.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req WithdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil || !validAmount(req.Amount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		reference := ""
		if key := strings.TrimSpace(c.GetHeader(IdempotencyHeader)); key != "" {
			reference = "withdraw:" + strconv.FormatUint(uint64(userID), 10) + ":" + key
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			w, err := ledger.WalletByUser(tx, userID)
			if err != nil {
				return err
			}
			_, err = ledger.Debit(tx, w.ID, req.Amount, domain.TxWithdrawal, reference)
			return err
		})
		replayed := errors.Is(err, ledger.ErrDuplicateReference)
		if err != nil && !replayed {
			status, msg := ledgerStatus(err)
			logrus.WithFields(logrus.Fields{"user_id": userID, "amount": req.Amount.String(), "error": err.Error()}).Error("Withdrawal failed")
			c.JSON(status, gin.H{"error": msg})
			return
		}
		if !replayed {
			logrus.WithFields(logrus.Fields{"user_id": userID, "amount": req.Amount.String(), "type": domain.TxWithdrawal}).Info("Withdrawal transaction")
		}
		balance, err := svc.SyncBalance(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load wallet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Withdrawal successful", "balance": balance, "replayed": replayed})
	}
}

// GetWalletHandler returns wallet info for the authenticated user
func GetWalletHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c) // Get userID from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := c.Request.Context()                                // Context for Redis operations
		cacheKey := utils.WalletKey(userID)                       // Cache key for wallet
		var wallet domain.Wallet                                  // Wallet struct to hold data
		found, err := utils.GetCache(ctx, rdb, cacheKey, &wallet) // Try to get from cache
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{"wallet": wallet, "cached": true}) // Return cached wallet
			return
		}
		w, err := ledger.WalletByUser(db, userID) // If not in cache, fetch from DB
		if err != nil {
			status, msg := ledgerStatus(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, w, utils.CacheTTL)  // Cache the wallet
		c.JSON(http.StatusOK, gin.H{"wallet": w, "cached": false}) // Return wallet info
	}
}

// txHistoryPage is the cached shape of one history page
type txHistoryPage struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page
	PageSize     int                  `json:"page_size"`    // Page size
	Total        int64                `json:"total"`        // Total transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
	Cached       bool                 `json:"cached"`       // Served from Redis
}

// GetTransactionHistoryHandler returns the authenticated user's transactions, newest first
func GetTransactionHistoryHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		wallet, err := ledger.WalletByUser(db, userID) // Get user's wallet
		if err != nil {
			status, msg := ledgerStatus(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		page, pageSize := utils.Page(c)
		ctx := c.Request.Context()
		cacheKey := utils.TxHistoryKey(userID, page, pageSize)
		var cached txHistoryPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		query := db.Model(&domain.Transaction{}).Where("from_wallet_id = ? OR to_wallet_id = ?", wallet.ID, wallet.ID).Session(&gorm.Session{})
		var total int64 // Total count of transactions
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		transactions := []domain.Transaction{} // Slice to hold transactions
		if err := query.Order("created_at desc").Order("id desc").
			Offset(utils.Offset(page, pageSize)).
			Limit(pageSize).
			Find(&transactions).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		resp := txHistoryPage{
			Transactions: transactions,
			Page:         page,
			PageSize:     pageSize,
			Total:        total,
			TotalPages:   utils.TotalPages(total, pageSize),
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL) // Cache the page
		c.JSON(http.StatusOK, resp)
	}
}
