package middleware

import (
	"time"

	"svgforge-go/internal/logging"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RequestLogger logs HTTP requests
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		// Include the authenticated user if an auth middleware set it
		userVal, _ := c.Get("user_email")
		intentVal, _ := c.Get("intent")
		extras := log.Fields{
			"status":     status,
			"latency_ms": logging.DurationMS(latency),
			"user_agent": c.Request.UserAgent(),
			"method":     method,
			"path":       path,
			"user":       userVal,
			"intent":     intentVal,
		}
		logging.WithReq(c, extras).Info("http_request")
	}
}
