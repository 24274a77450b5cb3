package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowAllOrigins  bool
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig returns production-safe CORS configuration
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{
			"https://lifeline.app",
			"https://*.lifeline.app",
		},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
			"X-Request-ID",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-RateLimit-Remaining",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// CORS returns a CORS middleware with the given configuration
func CORS(config CORSConfig) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if c.Request.Method == http.MethodOptions {
			handlePreflightRequest(c, config, origin, c.Request.Header.Get("Access-Control-Request-Headers"))
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		setOriginHeaders(c, config, origin)
		if len(config.ExposeHeaders) > 0 {
			c.Header("Access-Control-Expose-Headers", strings.Join(config.ExposeHeaders, ", "))
		}

		c.Next()
	})
}

func handlePreflightRequest(c *gin.Context, config CORSConfig, origin, requestHeaders string) {
	if !setOriginHeaders(c, config, origin) {
		logrus.Warnf("CORS: Origin not allowed: %s", origin)
		return
	}

	c.Header("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", "))

	if requestHeaders != "" {
		if allowed := filterAllowedHeaders(config, requestHeaders); len(allowed) > 0 {
			c.Header("Access-Control-Allow-Headers", strings.Join(allowed, ", "))
		}
	} else if len(config.AllowHeaders) > 0 {
		c.Header("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
	}

	if config.MaxAge > 0 {
		c.Header("Access-Control-Max-Age", strconv.Itoa(int(config.MaxAge.Seconds())))
	}
}

// setOriginHeaders reports whether the origin was accepted
func setOriginHeaders(c *gin.Context, config CORSConfig, origin string) bool {
	if !isOriginAllowed(config, origin) {
		return false
	}

	if config.AllowAllOrigins && !config.AllowCredentials {
		c.Header("Access-Control-Allow-Origin", "*")
	} else {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Vary", "Origin")
	}
	if config.AllowCredentials {
		c.Header("Access-Control-Allow-Credentials", "true")
	}
	return true
}

func isOriginAllowed(config CORSConfig, origin string) bool {
	if config.AllowAllOrigins {
		return true
	}

	if origin == "" {
		return false
	}

	for _, allowedOrigin := range config.AllowOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
		// Wildcard subdomains, e.g. https://*.example.com
		if i := strings.Index(allowedOrigin, "*."); i >= 0 {
			scheme, domain := allowedOrigin[:i], allowedOrigin[i+2:]
			if strings.HasPrefix(origin, scheme) && strings.HasSuffix(origin, "."+domain) {
				return true
			}
		}
	}

	return false
}

func filterAllowedHeaders(config CORSConfig, requestHeaders string) []string {
	var allowedHeaders []string
	for _, header := range strings.Split(requestHeaders, ",") {
		header = strings.TrimSpace(header)
		for _, allowed := range config.AllowHeaders {
			if strings.EqualFold(allowed, header) {
				allowedHeaders = append(allowedHeaders, header)
				break
			}
		}
	}
	return allowedHeaders
}

// CORSMiddleware selects the CORS configuration for the environment
func CORSMiddleware(environment string) gin.HandlerFunc {
	if environment == "development" {
		logrus.Info("🔓 Using development CORS configuration")
		config := DefaultCORSConfig()
		config.AllowAllOrigins = true
		return CORS(config)
	}
	return CORS(DefaultCORSConfig())
}
