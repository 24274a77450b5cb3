package utils

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var nonDigits = regexp.MustCompile(`\D`)

// ID Generation
func GenerateUUID() string {
	return uuid.New().String()
}

// String Utilities
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength-3]) + "..."
}

// Phone Number Utilities
func NormalizePhoneNumber(phone string) string {
	cleaned := nonDigits.ReplaceAllString(phone, "")

	// Add country code if missing
	if len(cleaned) == 10 {
		cleaned = "1" + cleaned
	}

	return "+" + cleaned
}

func MaskPhoneNumber(phone string) string {
	cleaned := nonDigits.ReplaceAllString(phone, "")
	if len(cleaned) < 4 {
		return phone
	}

	visible := cleaned[len(cleaned)-4:]
	masked := strings.Repeat("*", len(cleaned)-4) + visible
	return "+" + masked
}

// HandleServiceError writes err as an API error. Anything that is not a
// ServiceError is logged and reported as a 500.
func HandleServiceError(c *gin.Context, err error) {
	if serviceErr, ok := GetServiceError(err); ok {
		if serviceErr.StatusCode >= 500 {
			logrus.WithField("request_id", c.GetString("requestID")).Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		}
		ServiceErrorResponse(c, serviceErr)
		return
	}

	logrus.WithField("request_id", c.GetString("requestID")).Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	ServiceErrorResponse(c, NewInternalError("Internal server error"))
}
