package controllers

import (
	"lifeline/middleware"
	"lifeline/utils"
	"lifeline/websocket"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type WebSocketController struct {
	hub  *websocket.Hub
	auth *middleware.AuthMiddleware
}

func NewWebSocketController(hub *websocket.Hub, auth *middleware.AuthMiddleware) *WebSocketController {
	return &WebSocketController{
		hub:  hub,
		auth: auth,
	}
}

// HandleWebSocket upgrades an authenticated device connection.
// The token travels in the query string because browsers and most mobile
// websocket clients cannot set headers on the upgrade request.
func (wsc *WebSocketController) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		utils.UnauthorizedResponse(c, "Authentication token is required")
		return
	}

	principal, err := wsc.auth.Authenticate(token)
	if err != nil {
		logrus.Warnf("WebSocket authentication failed: %v", err)
		utils.UnauthorizedResponse(c, "Invalid authentication token")
		return
	}

	if err := wsc.hub.Upgrade(c.Writer, c.Request, principal); err != nil {
		// The upgrader has already written an HTTP error
		logrus.Errorf("Failed to upgrade WebSocket connection: %v", err)
		return
	}
}

func (wsc *WebSocketController) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, "WebSocket stats retrieved", wsc.hub.GetStats())
}
