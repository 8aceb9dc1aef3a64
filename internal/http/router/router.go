package router

import (
	"github.com/gin-gonic/gin"

	"situationcord.app/relay/internal/http/handler"
	"situationcord.app/relay/internal/http/middleware"
	"situationcord.app/relay/internal/service"
)

type RouterConfig struct {
	TraceHeaderName string
	AdminAPIKey     string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	webhookHandler := handler.NewDiscordWebhookHandler(services.EventIngest(), cfg.TraceHeaderName)
	DiscordRouter(router.Group("/api/discord"), webhookHandler)

	v1 := router.Group("/api/v1")
	{
		ignoredHandler := handler.NewIgnoredUserHandler(services.IgnoredUsers())
		admin := v1.Group("/ignored-users")
		admin.Use(middleware.RequireAdminKey(cfg.AdminAPIKey))
		IgnoredUserRouter(admin, ignoredHandler)
	}
}
