package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strings"  // Header parsing

	"ecocycle/internal/domain"   // Importing domain models
	"ecocycle/internal/ledger"   // Wallet snapshot
	"ecocycle/internal/realtime" // Websocket hub
	"ecocycle/internal/rewards"  // Centers and balance payloads
	"ecocycle/internal/utils"    // Token parsing

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/gorilla/websocket" // Websocket upgrades
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// MapSnapshot is the first event on the map feed
type MapSnapshot struct {
	Centers []domain.CenterView `json:"centers"`
	Dumps   []domain.DumpReport `json:"dumps"`
}

// MapFeedHandler streams center and dump changes to map viewers. The
// snapshot is read inside the hub subscription so no change is missed.
func MapFeedHandler(hub *realtime.Hub, upgrader websocket.Upgrader, db *gorm.DB, svc *rewards.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logrus.WithField("error", err.Error()).Warn("Map feed upgrade failed")
			return // Upgrade already answered the request
		}
		err = hub.ServeSnapshot(conn, realtime.TopicMap, func() ([]realtime.Event, error) {
			centers, err := svc.Centers()
			if err != nil {
				return nil, err
			}
			dumps, err := OpenDumps(db)
			if err != nil {
				return nil, err
			}
			return []realtime.Event{{
				Type: realtime.EventSnapshot,
				Data: MapSnapshot{Centers: centers, Dumps: dumps},
			}}, nil
		})
		if err != nil && !errors.Is(err, realtime.ErrHubClosed) {
			logrus.WithField("error", err.Error()).Error("Map snapshot failed")
		}
	}
}

// WalletFeedHandler streams balance changes to their owner. Browsers cannot
// set headers on websocket requests, so the token may come as ?token=.
func WalletFeedHandler(hub *realtime.Hub, upgrader websocket.Upgrader, db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		}
		claims, err := utils.ParseJWT(token, jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		w, err := ledger.WalletByUser(db, claims.UserID)
		if err != nil {
			status, msg := ledgerStatus(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logrus.WithField("error", err.Error()).Warn("Wallet feed upgrade failed")
			return
		}
		hub.Serve(conn, realtime.WalletTopic(claims.UserID), realtime.Event{
			Type: realtime.EventWalletUpdated,
			Data: rewards.WalletUpdate{Balance: w.Balance, Currency: w.Currency},
		})
	}
}
