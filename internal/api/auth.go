package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // Reset token payload
	"strings"  // String manipulation
	"time"     // Throttle windows

	"ecocycle/internal/domain"     // Importing domain models
	"ecocycle/internal/ledger"     // Wallet creation
	"ecocycle/internal/middleware" // Authenticated caller
	"ecocycle/internal/notify"     // Reset mail delivery
	"ecocycle/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/google/uuid"       // Reset tokens
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"golang.org/x/crypto/bcrypt"   // Password hashing
	"gorm.io/gorm"                 // GORM ORM library
)

// Auth limits
const (
	MinPasswordLength = 6                // Same rule as the sign-up form
	LoginWindow       = 15 * time.Minute // Failed login counting window
	ResetTokenTTL     = 30 * time.Minute // Password reset link lifetime
)

// Messages shown verbatim by the web client
const (
	msgInvalidEmail    = "Please enter a valid email"
	msgShortPassword   = "Password must be at least 6 characters"
	msgEmailTaken      = "This email is already registered. Try logging in."
	msgBadCredentials  = "Invalid email or password."
	msgTooManyAttempts = "Too many attempts. Try again later."
	msgResetSent       = "Check your email for password reset link."
)

// RegisterRequest is the sign-up form
type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`    // Email must be provided
	Password    string `json:"password" binding:"required"` // Password must be provided
	DisplayName string `json:"display_name"`                // Optional name
}

// LoginRequest is the sign-in form
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// ForgotPasswordRequest asks for a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"` // Account email
}

// ResetPasswordRequest sets a new password with a reset token
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`    // Token from the reset link
	Password string `json:"password" binding:"required"` // New password
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token string      `json:"token"` // JWT token
	User  domain.User `json:"user"`  // The signed-in user
}

// normalizeEmail trims and lowercases an email so lookups are case-insensitive
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isValidEmail applies the sign-up form's rule: an @ and a dot
func isValidEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".")
}

// isValidPassword checks the minimum password length
func isValidPassword(password string) bool {
	return len(password) >= MinPasswordLength
}

func loginFailKey(email string) string {
	return "login:fail:" + email
}

func resetKey(token string) string {
	return "pwreset:" + token
}

// RegisterHandler creates a user and their empty wallet
func RegisterHandler(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		email := normalizeEmail(req.Email)
		if !isValidEmail(email) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidEmail})
			return
		}
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgShortPassword})
			return
		}
		// Hash the password
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		user := domain.User{
			Email:       email,
			Password:    string(hash),
			DisplayName: utils.Truncate(utils.SanitizeText(req.DisplayName), 100),
			Role:        domain.RoleUser,
		}
		// User and wallet are created together
		err = db.Transaction(func(tx *gorm.DB) error {
			var n int64
			if err := tx.Model(&domain.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return gorm.ErrDuplicatedKey // Already registered
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			w, err := ledger.EnsureWallet(tx, user.ID)
			if err != nil {
				return err
			}
			user.Wallet = *w
			return nil
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": msgEmailTaken})
			return
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{"email": email, "error": err.Error()}).Error("Registration failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
			return
		}
		token, err := utils.GenerateJWT(user.ID, user.Email, jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "email": email}).Info("User registered")
		c.JSON(http.StatusCreated, AuthResponse{Token: token, User: user})
	}
}

// LoginHandler authenticates a user and returns a JWT token. Failed
// attempts are counted per email in Redis.
func LoginHandler(db *gorm.DB, rdb *redis.Client, jwtSecret string, maxAttempts int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		ctx := c.Request.Context()
		email := normalizeEmail(req.Email)
		failKey := loginFailKey(email)
		if maxAttempts > 0 {
			if n, err := utils.Hits(ctx, rdb, failKey); err == nil && n >= int64(maxAttempts) {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": msgTooManyAttempts})
				return
			}
		}
		fail := func() {
			_, _ = utils.Hit(ctx, rdb, failKey, LoginWindow) // Count the failure
			logrus.WithField("email", email).Warn("Login failed")
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgBadCredentials})
		}
		var user domain.User // Fetch user from database
		if err := db.Preload("Wallet").Where("email = ?", email).First(&user).Error; err != nil {
			fail()
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			fail()
			return
		}
		token, err := utils.GenerateJWT(user.ID, user.Email, jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		_ = utils.ResetHits(ctx, rdb, failKey) // Successful login clears the counter
		user.LastActive = time.Now().UnixMilli()
		_ = db.Model(&user).Update("last_active", user.LastActive).Error // Signing in counts as activity
		logrus.WithField("user_id", user.ID).Info("User logged in")
		c.JSON(http.StatusOK, AuthResponse{Token: token, User: user})
	}
}

// ForgotPasswordHandler issues a single-use reset token. The response is the
// same whether or not the email is registered.
func ForgotPasswordHandler(db *gorm.DB, rdb *redis.Client, mailer notify.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ForgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		email := normalizeEmail(req.Email)
		var user domain.User
		if err := db.Where("email = ?", email).First(&user).Error; err == nil {
			ctx := c.Request.Context()
			token := uuid.NewString()
			if err := rdb.Set(ctx, resetKey(token), strconv.FormatUint(uint64(user.ID), 10), ResetTokenTTL).Err(); err != nil {
				logrus.WithFields(logrus.Fields{"user_id": user.ID, "error": err.Error()}).Error("Reset token not stored")
			} else if err := mailer.SendPasswordReset(ctx, email, token); err != nil {
				logrus.WithFields(logrus.Fields{"user_id": user.ID, "error": err.Error()}).Error("Reset mail failed")
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": msgResetSent})
	}
}

// ResetPasswordHandler consumes a reset token and sets a new password
func ResetPasswordHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgShortPassword})
			return
		}
		ctx := c.Request.Context()
		raw, err := rdb.GetDel(ctx, resetKey(strings.TrimSpace(req.Token))).Result() // Single use
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset token"})
			return
		}
		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset token"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		var user domain.User
		if err := db.First(&user, uint(userID)).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset token"})
			return
		}
		if err := db.Model(&user).Update("password", string(hash)).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
			return
		}
		_ = utils.ResetHits(ctx, rdb, loginFailKey(user.Email)) // Let them sign in right away
		logrus.WithField("user_id", user.ID).Info("Password reset")
		c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
	}
}

// MeHandler returns the authenticated user with their wallet
func MeHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var user domain.User
		if err := db.Preload("Wallet").First(&user, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// HeartbeatHandler marks the user as active for the impact counter
func HeartbeatHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		now := time.Now().UnixMilli()
		res := db.Model(&domain.User{}).Where("id = ?", userID).Update("last_active", now)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record activity"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"last_active": now})
	}
}
