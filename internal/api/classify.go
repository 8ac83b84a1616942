package api

import (
	"context"  // Upstream calls
	"errors"   // Error matching
	"net/http" // HTTP status codes

	"ecocycle/internal/classifier" // Vision model client

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Classifier is the vision model as the HTTP layer sees it
type Classifier interface {
	Classify(ctx context.Context, image []byte, contentType string) (*classifier.Result, error)
	Ping(ctx context.Context) (string, error)
}

// classifierStatus maps classifier failures to 503 when the model is
// unavailable and 502 otherwise
func classifierStatus(err error) int {
	if errors.Is(err, classifier.ErrCircuitOpen) || errors.Is(err, classifier.ErrNotConfigured) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// RootHandler reports that the service is up and what it serves
func RootHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "EcoCycle Backend LIVE",
			"endpoints": []string{
				"POST /classify",
				"GET /test",
				"POST /auth/register",
				"POST /auth/login",
				"POST /scans",
				"GET /wallet",
				"POST /dropoffs",
				"POST /dumps",
				"GET /centers",
				"GET /impact",
				"GET /ws/map",
			},
		})
	}
}

// ClassifyHandler classifies an uploaded photo without crediting anyone
func ClassifyHandler(cls Classifier, maxUpload int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, contentType, err := readImage(c, maxUpload)
		if err != nil {
			abortUpload(c, err)
			return
		}
		res, err := cls.Classify(c.Request.Context(), data, contentType)
		if err != nil {
			logrus.WithField("error", err.Error()).Error("Classification failed")
			c.JSON(classifierStatus(err), gin.H{"error": "AI Error: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// TestHandler checks that the model provider answers
func TestHandler(cls Classifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		reply, err := cls.Ping(c.Request.Context())
		if err != nil {
			c.JSON(classifierStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "Groq OK", "response": reply})
	}
}

// isUpstream reports failures of the model call itself
func isUpstream(err error) bool {
	return errors.Is(err, classifier.ErrUpstream) ||
		errors.Is(err, classifier.ErrCircuitOpen) ||
		errors.Is(err, classifier.ErrNotConfigured) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
