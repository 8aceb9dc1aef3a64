package router

import (
	"github.com/gin-gonic/gin"

	"situationcord.app/relay/internal/http/handler"
)

func DiscordRouter(router *gin.RouterGroup, handler *handler.DiscordWebhookHandler) {
	router.POST("/webhook", handler.Receive)
}
