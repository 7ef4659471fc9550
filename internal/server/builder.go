// Package server wires the gin engine: middleware chain, public API routes,
// auth routes, and the admin surface.
package server

import (
	"net/http"

	"svgforge-go/internal/agents"
	"svgforge-go/internal/auth"
	"svgforge-go/internal/config"
	"svgforge-go/internal/handlers"
	mw "svgforge-go/internal/middleware"
	"svgforge-go/internal/pool"
	"svgforge-go/internal/quota"
	"svgforge-go/internal/userkeys"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies encapsulates runtime services required to build the HTTP engine.
type Dependencies struct {
	Pool         *pool.Pool
	Quota        quota.Ledger
	Keys         userkeys.Store
	Auth         *auth.Manager
	Orchestrator *agents.Orchestrator
}

// BuildEngine constructs the gin engine with all routes mounted.
func BuildEngine(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		mw.RequestID(),
		mw.Recovery(),
		mw.RequestLogger(),
		mw.Metrics(),
		mw.CORS(cfg.Server.CORSOrigins),
	)
	if cfg.RateLimit.Enabled {
		engine.Use(mw.RateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	root := engine.Group(cfg.Server.BasePath)

	root.GET("/healthz", handlers.Health(deps.Pool))
	root.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := &handlers.Auth{Manager: deps.Auth, Quota: deps.Quota}
	authGroup := root.Group("/auth")
	{
		authGroup.GET("/login", authHandler.Login)
		authGroup.GET("/callback", authHandler.Callback)
		authGroup.POST("/logout", auth.RequireSession(deps.Auth), authHandler.Logout)
		authGroup.GET("/me", auth.RequireSession(deps.Auth), authHandler.Me)
	}

	generateHandler := &handlers.Generate{
		Pool:         deps.Pool,
		Quota:        deps.Quota,
		Keys:         deps.Keys,
		Orchestrator: deps.Orchestrator,
	}
	keysHandler := &handlers.Keys{Store: deps.Keys}

	v1 := root.Group("/v1", auth.RequireSession(deps.Auth))
	{
		v1.POST("/generate", generateHandler.Handle)
		v1.GET("/keys", keysHandler.Status)
		v1.PUT("/keys", keysHandler.Put)
		v1.DELETE("/keys", keysHandler.Delete)
	}

	adminHandler := &handlers.Admin{
		Pool:              deps.Pool,
		ManagementKeyHash: cfg.Security.ManagementKeyHash,
	}
	admin := root.Group("/admin", adminHandler.Guard())
	{
		admin.GET("/pool", adminHandler.PoolState)
		admin.GET("/pool/ws", adminHandler.PoolStream)
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   gin.H{"message": "Not found", "type": "invalid_request_error", "code": "not_found"},
		})
	})

	return engine
}
