package middleware

import (
	"strings"

	"lifeline/models"
	"lifeline/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthMiddleware struct {
	jwtService *utils.JWTService
}

func NewAuthMiddleware(jwtService *utils.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// RequireAuth validates JWT token and sets the principal in context
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		token := am.extractToken(c)
		if token == "" {
			utils.UnauthorizedResponse(c, "Authentication token required")
			c.Abort()
			return
		}

		principal, err := am.Authenticate(token)
		if err != nil {
			logrus.Warnf("Invalid token: %v", err)
			utils.UnauthorizedResponse(c, "Invalid authentication token")
			c.Abort()
			return
		}

		setPrincipal(c, principal)
		c.Next()
	})
}

// RequireRole validates user has specific role
func (am *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			utils.UnauthorizedResponse(c, "User not authenticated")
			c.Abort()
			return
		}

		if !principal.HasRole(roles...) {
			utils.ServiceErrorResponse(c, utils.NewForbiddenError("Insufficient permissions"))
			c.Abort()
			return
		}

		c.Next()
	})
}

// Authenticate verifies a raw token. Used directly by the WebSocket upgrade.
func (am *AuthMiddleware) Authenticate(token string) (models.Principal, error) {
	if token == "" {
		return models.Principal{}, utils.NewUnauthorizedError("Authentication token required")
	}

	claims, err := am.jwtService.ValidateToken(token)
	if err != nil {
		return models.Principal{}, err
	}
	return claims.Principal(), nil
}

// extractToken extracts JWT token from request
func (am *AuthMiddleware) extractToken(c *gin.Context) string {
	// Check Authorization header
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		// Bearer token format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// Browsers cannot set headers on a WebSocket upgrade
	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}

func setPrincipal(c *gin.Context, principal models.Principal) {
	c.Set("principal", principal)
	c.Set("userID", principal.UserID)
	c.Set("userRole", principal.Role)
}

// GetPrincipal returns the authenticated principal from context
func GetPrincipal(c *gin.Context) (models.Principal, bool) {
	value, exists := c.Get("principal")
	if !exists {
		return models.Principal{}, false
	}

	principal, ok := value.(models.Principal)
	return principal, ok
}

// GetCurrentUserID returns the current authenticated user ID from context
func GetCurrentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		return "", false
	}

	userIDStr, ok := userID.(string)
	return userIDStr, ok && userIDStr != ""
}
