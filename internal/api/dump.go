package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strconv"  // Cache keys
	"time"     // Clearing time

	"ecocycle/internal/catalog"    // Known waste types
	"ecocycle/internal/cloud"      // Firestore mirror
	"ecocycle/internal/domain"     // Importing domain models
	"ecocycle/internal/middleware" // Reporter identity
	"ecocycle/internal/notify"     // Moderator alerts
	"ecocycle/internal/realtime"   // Map feed
	"ecocycle/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

const msgMissingLocation = "Please enter a location"

// DumpRequest reports an illegal dump site
type DumpRequest struct {
	Location    string   `json:"location"`    // Required, free text
	Description string   `json:"description"` // Optional details
	WasteType   string   `json:"waste_type"`  // Optional category
	Lat         *float64 `json:"lat"`         // Optional coordinates
	Lng         *float64 `json:"lng"`
}

// DumpDeps are the side channels a new report is announced on
type DumpDeps struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Catalog  *catalog.Catalog
	Events   realtime.Publisher
	Notifier notify.Notifier
	Mirror   cloud.Mirror
}

func invalidateDumps(c *gin.Context, rdb *redis.Client) {
	if err := utils.DeleteCachePattern(c.Request.Context(), rdb, "dumps:*"); err != nil {
		logrus.WithField("error", err.Error()).Warn("Dump cache invalidation failed")
	}
}

// validCoordinates requires both or neither coordinate, within range
func validCoordinates(lat, lng *float64) bool {
	if lat == nil && lng == nil {
		return true
	}
	if lat == nil || lng == nil {
		return false
	}
	return *lat >= -90 && *lat <= 90 && *lng >= -180 && *lng <= 180
}

// ReportDumpHandler stores a dump report from a signed-in or anonymous user
func ReportDumpHandler(d DumpDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DumpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		location := utils.Truncate(utils.SanitizeText(req.Location), 255)
		if location == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingLocation})
			return
		}
		if !validCoordinates(req.Lat, req.Lng) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates"})
			return
		}
		wasteType := ""
		if raw := utils.SanitizeText(req.WasteType); raw != "" {
			if wasteType = d.Catalog.Canonical(raw); wasteType == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown waste type"})
				return
			}
		}
		reporter := middleware.Email(c)
		if reporter == "" {
			reporter = domain.AnonymousReporter
		}
		report := domain.DumpReport{
			Location:    location,
			Description: utils.Truncate(utils.SanitizeText(req.Description), 1000),
			WasteType:   wasteType,
			Lat:         req.Lat,
			Lng:         req.Lng,
			Reporter:    reporter,
			Status:      domain.DumpOpen,
		}
		if err := d.DB.Create(&report).Error; err != nil {
			logrus.WithFields(logrus.Fields{"reporter": reporter, "error": err.Error()}).Error("Dump report failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save report"})
			return
		}
		logrus.WithFields(logrus.Fields{"dump_id": report.ID, "reporter": reporter, "location": location}).Info("Dump reported")

		invalidateDumps(c, d.Redis)
		if d.Events != nil {
			d.Events.Publish(realtime.TopicMap, realtime.Event{Type: realtime.EventDumpReported, Data: report})
		}
		ctx := c.Request.Context()
		if err := d.Notifier.DumpReported(ctx, report); err != nil {
			logrus.WithFields(logrus.Fields{"dump_id": report.ID, "error": err.Error()}).Warn("Moderator alert failed")
		}
		if err := d.Mirror.PublishDump(ctx, report); err != nil {
			logrus.WithFields(logrus.Fields{"dump_id": report.ID, "error": err.Error()}).Warn("Dump mirror failed")
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Dump reported", "dump": report})
	}
}

type dumpListPage struct {
	Dumps      []domain.DumpReport `json:"dumps"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	Total      int64               `json:"total"`
	TotalPages int                 `json:"total_pages"`
	Cached     bool                `json:"cached"`
}

// OpenDumps loads the open reports shown on the map
func OpenDumps(db *gorm.DB) ([]domain.DumpReport, error) {
	dumps := []domain.DumpReport{}
	err := db.Where("status = ?", domain.DumpOpen).Order("created_at desc").Find(&dumps).Error
	return dumps, err
}

// ListDumpsHandler lists dump reports by status (open, cleared or all)
func ListDumpsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.DefaultQuery("status", domain.DumpOpen)
		if status != domain.DumpOpen && status != domain.DumpCleared && status != "all" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be open, cleared or all"})
			return
		}
		page, pageSize := utils.Page(c)
		ctx := c.Request.Context()
		cacheKey := "dumps:status=" + status + ":page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)
		var cached dumpListPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		query := db.Model(&domain.DumpReport{})
		if status != "all" {
			query = query.Where("status = ?", status)
		}
		query = query.Session(&gorm.Session{})
		var total int64
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count reports"})
			return
		}
		dumps := []domain.DumpReport{}
		if err := query.Order("created_at desc").Order("id desc").Offset(utils.Offset(page, pageSize)).Limit(pageSize).Find(&dumps).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reports"})
			return
		}
		resp := dumpListPage{
			Dumps:      dumps,
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: utils.TotalPages(total, pageSize),
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
		c.JSON(http.StatusOK, resp)
	}
}

// ClearDumpHandler marks a dump site as cleaned up
func ClearDumpHandler(d DumpDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid dump id"})
			return
		}
		var report domain.DumpReport
		if err := d.DB.First(&report, uint(id)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Dump report not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load report"})
			return
		}
		now := time.Now().UnixMilli()
		res := d.DB.Model(&domain.DumpReport{}).
			Where("id = ? AND status = ?", report.ID, domain.DumpOpen).
			Updates(map[string]any{"status": domain.DumpCleared, "cleared_at": now})
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear report"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Dump already cleared"})
			return
		}
		report.Status = domain.DumpCleared
		report.ClearedAt = &now
		logrus.WithField("dump_id", report.ID).Info("Dump cleared")

		invalidateDumps(c, d.Redis)
		if d.Events != nil {
			d.Events.Publish(realtime.TopicMap, realtime.Event{Type: realtime.EventDumpCleared, Data: report})
		}
		if err := d.Mirror.PublishDump(c.Request.Context(), report); err != nil {
			logrus.WithFields(logrus.Fields{"dump_id": report.ID, "error": err.Error()}).Warn("Dump mirror failed")
		}
		c.JSON(http.StatusOK, gin.H{"dump": report})
	}
}
