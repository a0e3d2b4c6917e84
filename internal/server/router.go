package server

import (
	"time"

	"aquadash/internal/handler"
	"aquadash/internal/middleware"
	"aquadash/internal/sim"
	"aquadash/internal/token"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	Store       *sim.Store
	Hub         *sim.Hub
	TokenConfig token.Config
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	api := r.Group("/api")

	loginLimiter := middleware.NewLoginLimiter(5, 15*time.Minute)
	authHandler := &handler.AuthHandler{Store: deps.Store, TokenConfig: deps.TokenConfig, LoginLimiter: loginLimiter}
	api.POST("/auth/login", authHandler.Login)

	wsHandler := &handler.WebSocketHandler{Hub: deps.Hub, TokenConfig: deps.TokenConfig}
	api.GET("/ws", wsHandler.Serve)

	protected := api.Group("")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))
	protected.GET("/auth/me", authHandler.Me)

	deviceHandler := &handler.DeviceHandler{Store: deps.Store, Hub: deps.Hub}
	protected.GET("/devices", deviceHandler.List)
	protected.GET("/devices/:id/current", deviceHandler.Current)
	protected.GET("/devices/:id/history", deviceHandler.History)
	protected.GET("/devices/:id/thresholds", deviceHandler.GetThresholds)
	protected.POST("/devices/:id/pump/start", deviceHandler.StartPump)
	protected.POST("/devices/:id/pump/stop", deviceHandler.StopPump)

	admin := protected.Group("")
	admin.Use(middleware.RequireAdmin())
	admin.POST("/auth/register", authHandler.Register)
	admin.POST("/devices", deviceHandler.Register)
	admin.PUT("/devices/:id/thresholds", deviceHandler.UpdateThresholds)
	admin.DELETE("/devices/:id", deviceHandler.Delete)

	userHandler := &handler.UserHandler{Store: deps.Store}
	admin.GET("/users", userHandler.List)
	admin.PUT("/users/:id/make-admin", userHandler.MakeAdmin)
	admin.DELETE("/users/:id", userHandler.Delete)

	return r
}
