package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"lifeline/middleware"
	"lifeline/models"
	"lifeline/services"
	"lifeline/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// EmergencyHistoryStore reads persisted episodes.
type EmergencyHistoryStore interface {
	GetUserEmergencies(ctx context.Context, userID string, limit int64) ([]models.EmergencyRecord, error)
}

type EmergencyController struct {
	registry  *services.CoordinatorRegistry
	history   EmergencyHistoryStore
	validator *utils.ValidationService
}

func NewEmergencyController(registry *services.CoordinatorRegistry, history EmergencyHistoryStore) *EmergencyController {
	return &EmergencyController{
		registry:  registry,
		history:   history,
		validator: utils.NewValidationService(),
	}
}

// =================== LIFECYCLE ===================

// BeginConfirmation asks the user to confirm before anything is sent
func (ec *EmergencyController) BeginConfirmation(c *gin.Context) {
	coordinator, ok := ec.coordinatorFor(c)
	if !ok {
		return
	}

	event := coordinator.BeginConfirmation()
	if event.State != models.EmergencyStateConfirming {
		respondCoordinatorError(c, &services.InvalidTransitionError{Operation: "begin confirmation", From: event.State})
		return
	}
	utils.SuccessResponse(c, "Confirmation requested", event)
}

func (ec *EmergencyController) AbortConfirmation(c *gin.Context) {
	coordinator, ok := ec.coordinatorFor(c)
	if !ok {
		return
	}

	if err := coordinator.AbortConfirmation(); err != nil {
		respondCoordinatorError(c, err)
		return
	}
	utils.SuccessResponse(c, "Confirmation aborted", coordinator.Status())
}

// Activate starts the emergency. It answers once contacts are recorded as
// pending; delivery continues in the background.
func (ec *EmergencyController) Activate(c *gin.Context) {
	coordinator, ok := ec.coordinatorFor(c)
	if !ok {
		return
	}

	event, err := coordinator.Activate(c.Request.Context())
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    event.UserID,
		"episode_id": event.EpisodeID,
		"contacts":   len(event.DispatchOrder),
	}).Warn("🚨 Emergency activated")

	utils.SuccessResponse(c, "Emergency activated", event)
}

func (ec *EmergencyController) Cancel(c *gin.Context) {
	coordinator, ok := ec.coordinatorFor(c)
	if !ok {
		return
	}

	var req models.CancelEmergencyRequest
	if !ec.bindOptional(c, &req) {
		return
	}

	event, err := coordinator.Cancel(c.Request.Context(), req.Reason)
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}
	utils.SuccessResponse(c, "Emergency cancelled", event)
}

func (ec *EmergencyController) Resolve(c *gin.Context) {
	coordinator, ok := ec.coordinatorFor(c)
	if !ok {
		return
	}

	var req models.ResolveEmergencyRequest
	if !ec.bindOptional(c, &req) {
		return
	}

	principal := coordinator.Principal()
	event, err := coordinator.Resolve(c.Request.Context(), principal.UserID, req.Resolution)
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}
	utils.SuccessResponse(c, "Emergency resolved", event)
}

// ResolveForUser lets a responder close another user's active emergency
func (ec *EmergencyController) ResolveForUser(c *gin.Context) {
	responder, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.ResolveEmergencyRequest
	if !ec.bindOptional(c, &req) {
		return
	}

	coordinator, found := ec.registry.Lookup(c.Param("userId"))
	if !found {
		utils.NotFoundResponse(c, "Emergency")
		return
	}

	event, err := coordinator.Resolve(c.Request.Context(), responder.UserID, req.Resolution)
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id":      event.UserID,
		"episode_id":   event.EpisodeID,
		"responder_id": responder.UserID,
	}).Info("Emergency resolved by responder")

	utils.SuccessResponse(c, "Emergency resolved", event)
}

func (ec *EmergencyController) Reset(c *gin.Context) {
	coordinator, ok := ec.coordinatorFor(c)
	if !ok {
		return
	}

	if err := coordinator.Reset(); err != nil {
		respondCoordinatorError(c, err)
		return
	}
	utils.SuccessResponse(c, "Emergency reset", coordinator.Status())
}

func (ec *EmergencyController) GetStatus(c *gin.Context) {
	coordinator, ok := ec.coordinatorFor(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, "Emergency status retrieved", coordinator.Status())
}

// =================== LOCATION ===================

func (ec *EmergencyController) RefreshLocation(c *gin.Context) {
	coordinator, ok := ec.coordinatorFor(c)
	if !ok {
		return
	}

	sample, err := coordinator.RefreshLocation(c.Request.Context())
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}
	utils.SuccessResponse(c, "Location refreshed", sample)
}

func (ec *EmergencyController) GetLocationHistory(c *gin.Context) {
	coordinator, ok := ec.coordinatorFor(c)
	if !ok {
		return
	}

	history := coordinator.LocationHistory()
	utils.SuccessListResponse(c, "Location history retrieved", history, len(history))
}

// =================== HISTORY ===================

func (ec *EmergencyController) GetEmergencyHistory(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var query models.EmergencyHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequestResponse(c, "Invalid query parameters")
		return
	}
	if errs := ec.validator.ValidateStruct(&query); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}
	if query.Limit == 0 {
		query.Limit = 20
	}

	records, err := ec.history.GetUserEmergencies(c.Request.Context(), userID, query.Limit)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.SuccessListResponse(c, "Emergency history retrieved", records, len(records))
}

// =================== HELPERS ===================

func (ec *EmergencyController) coordinatorFor(c *gin.Context) (*services.EmergencyCoordinator, bool) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || principal.UserID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return nil, false
	}
	return ec.registry.Get(principal), true
}

// bindOptional accepts an empty body; a present body must be valid.
func (ec *EmergencyController) bindOptional(c *gin.Context, req interface{}) bool {
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
			utils.BadRequestResponse(c, "Invalid request body")
			return false
		}
	}
	if errs := ec.validator.ValidateStruct(req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return false
	}
	return true
}

// respondCoordinatorError maps coordinator failures onto API errors
func respondCoordinatorError(c *gin.Context, err error) {
	var invalid *services.InvalidTransitionError
	var location *services.LocationUnavailableError
	var directory *services.DirectoryUnavailableError

	switch {
	case errors.As(err, &invalid):
		utils.ServiceErrorResponse(c, utils.NewServiceErrorWithStatus(models.ErrCodeInvalidTransition, invalid.Error(), http.StatusConflict).
			WithDetail("operation", invalid.Operation).
			WithDetail("state", string(invalid.From)))
	case errors.As(err, &location):
		utils.ServiceErrorResponse(c, utils.NewServiceUnavailableError("Location unavailable").
			WithDetail("reason", location.Reason))
	case errors.As(err, &directory):
		utils.ServiceErrorResponse(c, utils.NewServiceUnavailableError("Contact directory unavailable").WithCause(directory))
	default:
		utils.HandleServiceError(c, err)
	}
}
