package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strings"  // Form trimming

	"ecocycle/internal/middleware" // Authenticated caller
	"ecocycle/internal/rewards"    // Scan-and-earn flow
	"ecocycle/internal/utils"      // Pagination

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Weights
)

// CreateScanHandler classifies a photo and credits the reward to the caller
func CreateScanHandler(svc *rewards.Service, maxUpload int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		data, contentType, err := readImage(c, maxUpload)
		if err != nil {
			abortUpload(c, err)
			return
		}
		var weight decimal.Decimal
		if raw := strings.TrimSpace(c.PostForm("weight_kg")); raw != "" {
			if weight, err = decimal.NewFromString(raw); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": rewards.ErrInvalidWeight.Error()})
				return
			}
			if weight.IsZero() {
				c.JSON(http.StatusBadRequest, gin.H{"error": rewards.ErrInvalidWeight.Error()})
				return
			}
		}
		out, err := svc.Scan(c.Request.Context(), userID, rewards.ScanInput{
			Image:          data,
			ContentType:    contentType,
			WeightKg:       weight,
			IdempotencyKey: c.GetHeader(IdempotencyHeader),
		})
		switch {
		case errors.Is(err, rewards.ErrInvalidWeight), errors.Is(err, rewards.ErrEmptyImage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil && isUpstream(err):
			c.JSON(classifierStatus(err), gin.H{"error": "AI Error: " + err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record scan"})
			return
		}

		status := http.StatusCreated
		if out.Replayed {
			status = http.StatusOK
		}
		resp := gin.H{
			"scan":         out.Scan,
			"class":        out.Scan.Class,
			"confidence":   out.Scan.Confidence,
			"recyclable":   out.Scan.Recyclable,
			"price_per_kg": out.Scan.PricePerKg,
			"reward":       out.Scan.Reward,
			"balance":      out.Balance,
			"replayed":     out.Replayed,
		}
		if out.Result != nil {
			resp["debug"] = out.Result.Debug
		}
		c.JSON(status, resp)
	}
}

// ListScansHandler returns the caller's scans, newest first
func ListScansHandler(svc *rewards.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		page, pageSize := utils.Page(c)
		scans, total, err := svc.ListScans(userID, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scans"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"scans":       scans,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": utils.TotalPages(total, pageSize),
		})
	}
}
