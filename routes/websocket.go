package routes

import (
	"lifeline/controllers"
	"lifeline/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func SetupWebSocketRoutes(router *gin.Engine, wsController *controllers.WebSocketController, redisClient *redis.Client) {
	// Authenticated through the query token inside the handler
	router.GET("/ws", middleware.WebSocketRateLimit(redisClient), wsController.HandleWebSocket)
	router.GET("/ws/stats", wsController.GetStats)
}
