package routes

import (
	"lifeline/controllers"
	"lifeline/middleware"
	"lifeline/models"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func SetupEmergencyRoutes(api *gin.RouterGroup, emergency *controllers.EmergencyController, contacts *controllers.ContactController, redisClient *redis.Client, perMinute int) {
	emergencyGroup := api.Group("/emergency")
	{
		// State machine transitions
		emergencyGroup.POST("/confirm", middleware.EmergencyRateLimit(redisClient, perMinute), emergency.BeginConfirmation)
		emergencyGroup.POST("/confirm/abort", emergency.AbortConfirmation)
		emergencyGroup.POST("/activate", middleware.EmergencyRateLimit(redisClient, perMinute), emergency.Activate)
		emergencyGroup.POST("/cancel", emergency.Cancel)
		emergencyGroup.POST("/resolve", emergency.Resolve)
		emergencyGroup.POST("/reset", emergency.Reset)
		emergencyGroup.GET("/status", emergency.GetStatus)
		emergencyGroup.GET("/history", emergency.GetEmergencyHistory)

		// Location
		emergencyGroup.POST("/location/refresh", emergency.RefreshLocation)
		emergencyGroup.GET("/location/history", emergency.GetLocationHistory)

		// Contacts
		contactGroup := emergencyGroup.Group("/contacts")
		{
			contactGroup.GET("", contacts.GetContacts)
			contactGroup.POST("", contacts.CreateContact)
			contactGroup.GET("/:contactId", contacts.GetContact)
			contactGroup.PUT("/:contactId", contacts.UpdateContact)
			contactGroup.DELETE("/:contactId", contacts.DeleteContact)
		}
	}
}

// SetupResponderRoutes exposes operations taken on someone else's emergency
func SetupResponderRoutes(api *gin.RouterGroup, emergency *controllers.EmergencyController, auth *middleware.AuthMiddleware) {
	responders := api.Group("/responders", auth.RequireRole(models.RoleResponder, models.RoleAdmin))
	{
		responders.POST("/emergencies/:userId/resolve", emergency.ResolveForUser)
	}
}
