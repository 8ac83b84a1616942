package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strings"  // Input trimming

	"ecocycle/internal/middleware" // Authenticated caller
	"ecocycle/internal/rewards"    // Drop-off confirmation
	"ecocycle/internal/utils"      // Pagination

	"github.com/gin-gonic/gin" // Gin web framework
)

// DropOffRequest links a scanned item to the center it was delivered to
type DropOffRequest struct {
	CenterID string `json:"center_id" binding:"required"` // Center slug
	ScanID   string `json:"scan_id" binding:"required"`   // Scan being delivered
}

// CreateDropOffHandler confirms a drop-off
func CreateDropOffHandler(svc *rewards.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req DropOffRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "center_id and scan_id are required"})
			return
		}
		drop, center, err := svc.DropOff(c.Request.Context(), userID, strings.TrimSpace(req.CenterID), strings.TrimSpace(req.ScanID))
		switch {
		case errors.Is(err, rewards.ErrScanNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
		case errors.Is(err, rewards.ErrCenterNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Center not found"})
		case errors.Is(err, rewards.ErrNotRecyclable):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Only recyclable items can be dropped off"})
		case errors.Is(err, rewards.ErrAlreadyDroppedOff):
			c.JSON(http.StatusConflict, gin.H{"error": "This item was already dropped off"})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record drop-off"})
		default:
			c.JSON(http.StatusCreated, gin.H{"dropoff": drop, "center": center.View()})
		}
	}
}

// ListDropOffsHandler returns the caller's drop-offs
func ListDropOffsHandler(svc *rewards.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		page, pageSize := utils.Page(c)
		drops, total, err := svc.ListDropOffs(userID, page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch drop-offs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"dropoffs":    drops,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": utils.TotalPages(total, pageSize),
		})
	}
}

// ListCentersHandler returns every center with its fullness and marker colour
func ListCentersHandler(svc *rewards.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		centers, err := svc.Centers()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch centers"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"centers": centers})
	}
}
