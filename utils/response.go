package utils

import (
	"net/http"
	"time"

	"lifeline/models"

	"github.com/gin-gonic/gin"
)

// Success responses
func SuccessResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Meta:      requestMeta(c, 0),
		Timestamp: time.Now(),
	})
}

func SuccessListResponse(c *gin.Context, message string, data interface{}, total int) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Meta:      requestMeta(c, int64(total)),
		Timestamp: time.Now(),
	})
}

func CreatedResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Meta:      requestMeta(c, 0),
		Timestamp: time.Now(),
	})
}

// Error responses
func ErrorResponse(c *gin.Context, statusCode int, message string, details interface{}) {
	errorWithCode(c, statusCode, getErrorCode(statusCode), message, details)
}

func errorWithCode(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Message: message,
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta:      requestMeta(c, 0),
		Timestamp: time.Now(),
	})
}

func ValidationErrorResponse(c *gin.Context, validationErrors []ValidationError) {
	errorWithCode(c, http.StatusBadRequest, models.ErrCodeValidation, "Validation failed", validationErrors)
}

func BadRequestResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message, nil)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, message, nil)
}

func NotFoundResponse(c *gin.Context, resource string) {
	ErrorResponse(c, http.StatusNotFound, resource+" not found", nil)
}

func RateLimitResponse(c *gin.Context, retryAfter int64) {
	errorWithCode(c, http.StatusTooManyRequests, models.ErrCodeRateLimit, "Rate limit exceeded. Please try again later.", gin.H{"retryAfter": retryAfter})
}

func ServiceUnavailableResponse(c *gin.Context, message string, details interface{}) {
	ErrorResponse(c, http.StatusServiceUnavailable, message, details)
}

// ServiceErrorResponse writes a ServiceError using its own status and code.
func ServiceErrorResponse(c *gin.Context, err ServiceError) {
	status := err.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	var details interface{}
	if len(err.Details) > 0 {
		details = err.Details
	}
	errorWithCode(c, status, err.Code, err.Message, details)
}

func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return models.ErrCodeAuthentication
	case http.StatusForbidden:
		return models.ErrCodeAuthorization
	case http.StatusNotFound:
		return models.ErrCodeNotFound
	case http.StatusConflict:
		return models.ErrCodeConflict
	case http.StatusTooManyRequests:
		return models.ErrCodeRateLimit
	case http.StatusServiceUnavailable:
		return models.ErrCodeExternal
	default:
		return models.ErrCodeInternal
	}
}

func requestMeta(c *gin.Context, total int64) *models.MetaData {
	requestID := c.GetString("requestID")
	if requestID == "" && total == 0 {
		return nil
	}
	return &models.MetaData{Total: total, RequestID: requestID}
}
