package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"lifeline/models"
	"lifeline/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	environment string
	logger      *logrus.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(environment string, logger *logrus.Logger) *ErrorHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ErrorHandler{
		environment: environment,
		logger:      logger,
	}
}

// Handle returns the error handling middleware
func (eh *ErrorHandler) Handle() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				eh.handlePanic(c, err)
			}
		}()

		c.Next()

		// Errors attached with c.Error and no response written yet
		if len(c.Errors) > 0 && !c.Writer.Written() {
			eh.handleGinErrors(c)
		}
	})
}

func (eh *ErrorHandler) handlePanic(c *gin.Context, err interface{}) {
	eh.logger.WithFields(logrus.Fields{
		"panic":      err,
		"stack":      string(debug.Stack()),
		"request_id": c.GetString("requestID"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"user_id":    c.GetString("userID"),
	}).Error("Panic recovered")

	var details interface{}
	if eh.environment == "development" {
		details = gin.H{"panic": err}
	}

	utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error", details)
	c.Abort()
}

func (eh *ErrorHandler) handleGinErrors(c *gin.Context) {
	lastError := c.Errors.Last()
	if lastError == nil {
		return
	}

	for _, ginErr := range c.Errors {
		eh.logError(c, ginErr.Err)
	}

	eh.processError(c, lastError.Err)
}

func (eh *ErrorHandler) logError(c *gin.Context, err error) {
	fields := logrus.Fields{
		"error":      err.Error(),
		"request_id": c.GetString("requestID"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"user_id":    c.GetString("userID"),
	}

	if se, ok := utils.GetServiceError(err); ok && se.StatusCode < http.StatusInternalServerError {
		eh.logger.WithFields(fields).Warn("Client error")
		return
	}
	eh.logger.WithFields(fields).Error("Server error")
}

func (eh *ErrorHandler) processError(c *gin.Context, err error) {
	var validationErr validator.ValidationErrors

	switch {
	case errors.As(err, &validationErr):
		utils.ErrorResponse(c, http.StatusBadRequest, "Validation failed", nil)
	case mongo.IsDuplicateKeyError(err):
		utils.ErrorResponse(c, http.StatusConflict, "Resource already exists", nil)
	case errors.Is(err, mongo.ErrNoDocuments):
		utils.NotFoundResponse(c, "Resource")
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		utils.ServiceUnavailableResponse(c, "Database unavailable", nil)
	default:
		if se, ok := utils.GetServiceError(err); ok {
			utils.ServiceErrorResponse(c, se)
			return
		}
		var details interface{}
		if eh.environment == "development" {
			details = gin.H{"original_error": err.Error()}
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred", details)
	}
}

// NoRoute answers unknown paths with the standard envelope
func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.APIResponse{
		Success: false,
		Message: "Route not found",
		Error:   &models.APIError{Code: models.ErrCodeNotFound, Message: "Route not found"},
	})
}
