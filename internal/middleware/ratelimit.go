package middleware

import (
	"net/http" // HTTP status codes
	"strconv"  // Key building
	"time"     // Window length

	"ecocycle/internal/utils" // Redis counters

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Structured logging
)

// RateLimitMiddleware allows limit requests per user per window for one route
// group. It must run after JWTAuthMiddleware. Redis errors let the request through.
func RateLimitMiddleware(rdb *redis.Client, name string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next() // Disabled
			return
		}
		userID, ok := UserID(c)
		if !ok {
			c.Next() // Nobody to count against
			return
		}
		key := "ratelimit:" + name + ":user:" + strconv.FormatUint(uint64(userID), 10)
		n, err := utils.Hit(c.Request.Context(), rdb, key, window)
		if err != nil {
			logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Rate limiter unavailable")
			c.Next()
			return
		}
		if n > int64(limit) {
			ttl, _ := rdb.TTL(c.Request.Context(), key).Result()        // Time left in the window
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())+1)) // Round up
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Try again later."})
			return
		}
		c.Next()
	}
}
