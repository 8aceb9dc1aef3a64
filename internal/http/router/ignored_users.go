package router

import (
	"github.com/gin-gonic/gin"

	"situationcord.app/relay/internal/http/handler"
)

func IgnoredUserRouter(router *gin.RouterGroup, handler *handler.IgnoredUserHandler) {
	router.GET("", handler.List)
	router.POST("", handler.Add)
	router.DELETE("/:userId", handler.Remove)
}
