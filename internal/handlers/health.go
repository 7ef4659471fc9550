package handlers

import (
	"net/http"

	"svgforge-go/internal/pool"
	"svgforge-go/internal/version"

	"github.com/gin-gonic/gin"
)

// Health reports liveness and the pool size so orchestrators can tell a
// running-but-unconfigured instance from a healthy one.
func Health(p *pool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"version":   version.Version,
			"pool_size": p.Size(),
		})
	}
}
