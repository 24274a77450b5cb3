package controllers

import (
	"lifeline/middleware"
	"lifeline/models"
	"lifeline/services"
	"lifeline/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContactController struct {
	directory *services.ContactDirectory
	validator *utils.ValidationService
}

func NewContactController(directory *services.ContactDirectory) *ContactController {
	return &ContactController{
		directory: directory,
		validator: utils.NewValidationService(),
	}
}

// GetContacts lists contacts in dispatch order, primaries first
func (cc *ContactController) GetContacts(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	contacts, err := cc.directory.List(c.Request.Context(), userID)
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}
	utils.SuccessListResponse(c, "Emergency contacts retrieved", contacts, len(contacts))
}

func (cc *ContactController) GetContact(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	contact, err := cc.directory.Get(c.Request.Context(), userID, c.Param("contactId"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, "Emergency contact retrieved", contact)
}

func (cc *ContactController) CreateContact(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		utils.HandleServiceError(c, utils.NewInvalidIDError("user"))
		return
	}

	var req models.CreateEmergencyContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}
	if errs := cc.validator.ValidateStruct(&req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}

	contact := &models.EmergencyContact{
		UserID:        owner,
		Name:          req.Name,
		Phone:         utils.NormalizePhoneNumber(req.Phone),
		Email:         req.Email,
		Relationship:  req.Relationship,
		IsPrimary:     req.IsPrimary,
		DeviceToken:   req.DeviceToken,
		NotifyMethods: req.NotifyMethods,
	}
	if err := cc.directory.Create(c.Request.Context(), contact); err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.CreatedResponse(c, "Emergency contact created", contact)
}

func (cc *ContactController) UpdateContact(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdateEmergencyContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}
	if errs := cc.validator.ValidateStruct(&req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}
	if req.Phone != nil {
		phone := utils.NormalizePhoneNumber(*req.Phone)
		req.Phone = &phone
	}

	contact, err := cc.directory.Update(c.Request.Context(), userID, c.Param("contactId"), &req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, "Emergency contact updated", contact)
}

func (cc *ContactController) DeleteContact(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	if err := cc.directory.Delete(c.Request.Context(), userID, c.Param("contactId")); err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, "Emergency contact deleted", nil)
}
