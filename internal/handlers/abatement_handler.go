package handlers

import (
	"errors"
	"net/http"

	apierrors "github.com/civitax/engine/internal/errors"
	"github.com/civitax/engine/internal/models"
	"github.com/civitax/engine/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AbatementHandler handles penalty abatement HTTP requests.
type AbatementHandler struct {
	service services.AbatementService
}

// NewAbatementHandler creates a new AbatementHandler instance.
func NewAbatementHandler(service services.AbatementService) *AbatementHandler {
	return &AbatementHandler{
		service: service,
	}
}

// SubmitAbatementRequest is the body for filing an abatement request.
type SubmitAbatementRequest struct {
	PenaltyID       string          `json:"penaltyId" binding:"required,uuid"`
	FilerID         string          `json:"filerId" binding:"required"`
	RequestedAmount decimal.Decimal `json:"requestedAmount"`
	Reason          string          `json:"reason" binding:"required"`
	Explanation     string          `json:"explanation" binding:"required"`
}

// ReviewAbatementRequest is the body for resolving a pending request.
type ReviewAbatementRequest struct {
	ApprovedAmount decimal.Decimal `json:"approvedAmount"`
	ReviewedBy     string          `json:"reviewedBy" binding:"required"`
	ReviewNotes    string          `json:"reviewNotes,omitempty"`
}

// Submit handles POST /api/abatements.
func (h *AbatementHandler) Submit(c *gin.Context) {
	var req SubmitAbatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	penaltyID, err := uuid.Parse(req.PenaltyID)
	if err != nil {
		apierrors.BadRequest(c, "penaltyId must be a valid UUID", nil)
		return
	}

	abatement, err := h.service.Submit(c.Request.Context(), services.SubmitAbatementInput{
		PenaltyID:       penaltyID,
		FilerID:         req.FilerID,
		RequestedAmount: req.RequestedAmount,
		Reason:          models.AbatementReason(req.Reason),
		Explanation:     req.Explanation,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientExplanation):
			apierrors.DomainError(c, apierrors.ErrInsufficientExplanation, err.Error())
		case errors.Is(err, services.ErrInvalidReason), errors.Is(err, services.ErrInvalidApprovedAmount):
			apierrors.BadRequest(c, err.Error(), nil)
		default:
			apierrors.InternalServerError(c, "Failed to submit abatement request", err)
		}
		return
	}

	c.JSON(http.StatusCreated, abatement)
}

// Get handles GET /api/abatements/:id.
func (h *AbatementHandler) Get(c *gin.Context) {
	id, ok := h.abatementID(c)
	if !ok {
		return
	}

	abatement, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrAbatementNotFound) {
			apierrors.NotFound(c, "Abatement request not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to fetch abatement request", err)
		return
	}

	c.JSON(http.StatusOK, abatement)
}

// Review handles PATCH /api/abatements/:id/review.
func (h *AbatementHandler) Review(c *gin.Context) {
	id, ok := h.abatementID(c)
	if !ok {
		return
	}

	var req ReviewAbatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	abatement, err := h.service.Review(c.Request.Context(), services.ReviewAbatementInput{
		AbatementID:    id,
		ApprovedAmount: req.ApprovedAmount,
		ReviewedBy:     req.ReviewedBy,
		ReviewNotes:    req.ReviewNotes,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAbatementNotFound):
			apierrors.NotFound(c, "Abatement request not found")
		case errors.Is(err, services.ErrAbatementAlreadyReviewed):
			apierrors.DomainError(c, apierrors.ErrAbatementAlreadyReviewed, err.Error())
		case errors.Is(err, services.ErrInvalidApprovedAmount):
			apierrors.BadRequest(c, err.Error(), nil)
		default:
			apierrors.InternalServerError(c, "Failed to review abatement request", err)
		}
		return
	}

	c.JSON(http.StatusOK, abatement)
}

// Withdraw handles PATCH /api/abatements/:id/withdraw.
func (h *AbatementHandler) Withdraw(c *gin.Context) {
	id, ok := h.abatementID(c)
	if !ok {
		return
	}

	abatement, err := h.service.Withdraw(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAbatementNotFound):
			apierrors.NotFound(c, "Abatement request not found")
		case errors.Is(err, services.ErrAbatementAlreadyReviewed):
			apierrors.DomainError(c, apierrors.ErrAbatementAlreadyReviewed, err.Error())
		default:
			apierrors.InternalServerError(c, "Failed to withdraw abatement request", err)
		}
		return
	}

	c.JSON(http.StatusOK, abatement)
}

// abatementID parses the :id path parameter, writing the error response
// itself when the value is not a UUID.
func (h *AbatementHandler) abatementID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "id must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
