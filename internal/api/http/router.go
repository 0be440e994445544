package http

import (
	"github.com/gin-gonic/gin"

	"github.com/kioskops/fleet-hub/internal/api/http/handler"
	"github.com/kioskops/fleet-hub/internal/api/http/middleware"
	"github.com/kioskops/fleet-hub/internal/api/ws"
	"github.com/kioskops/fleet-hub/internal/auth"
	"github.com/kioskops/fleet-hub/internal/channel"
	"github.com/kioskops/fleet-hub/internal/store"
)

type Services struct {
	Store    *store.Service
	Channels *channel.Registry
	Verifier *auth.Verifier
}

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)

	wsHandler := ws.NewHandler(srvs.Channels)
	engine.GET("/ws/:namespace", wsHandler.Serve)

	api := engine.Group("/api", middleware.JWTAuth(srvs.Verifier))

	brandHandler := handler.NewBrandHandler(srvs.Store, srvs.Channels)
	api.POST("/brands",
		middleware.RequireRole(auth.RoleSuperAdmin, auth.RoleOrgAdmin),
		brandHandler.Create)

	kioskHandler := handler.NewKioskHandler(srvs.Store, srvs.Channels)
	api.GET("/kiosks/:id", kioskHandler.List)
	api.POST("/kiosks/:id/set-url", kioskHandler.SetURL)
}
