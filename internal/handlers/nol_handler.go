package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/civitax/engine/internal/engine"
	apierrors "github.com/civitax/engine/internal/errors"
	"github.com/civitax/engine/internal/middleware"
	"github.com/civitax/engine/internal/models"
	"github.com/civitax/engine/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NOLHandler handles net-operating-loss ledger HTTP requests.
type NOLHandler struct {
	service services.NOLService
}

// NewNOLHandler creates a new NOLHandler instance.
func NewNOLHandler(service services.NOLService) *NOLHandler {
	return &NOLHandler{
		service: service,
	}
}

// AddVintageRequest is the body for recording a new loss year.
type AddVintageRequest struct {
	TaxYear int             `json:"taxYear" binding:"required,min=1990,max=2100"`
	Amount  decimal.Decimal `json:"amount"`
}

// ApplyDeductionRequest is the body for applying one year's NOL deduction.
// LimitationPercentage is in [0, 100] (80 for the post-2017 limitation).
type ApplyDeductionRequest struct {
	TaxYear                int             `json:"taxYear" binding:"required,min=1990,max=2100"`
	TaxableIncomeBeforeNOL decimal.Decimal `json:"taxableIncomeBeforeNol"`
	LimitationPercentage   decimal.Decimal `json:"limitationPercentage"`
}

// CarrybackRequest is the body for a carryback election.
type CarrybackRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// VintagesResponse lists a business's vintages oldest origin year first.
type VintagesResponse struct {
	BusinessID string              `json:"businessId"`
	Vintages   []models.NOLVintage `json:"vintages"`
	Count      int                 `json:"count"`
}

// AlertsResponse lists expiration alerts for a business.
type AlertsResponse struct {
	BusinessID string            `json:"businessId"`
	Alerts     []models.NOLAlert `json:"alerts"`
	Count      int               `json:"count"`
}

// Vintages handles GET /api/nol/schedule/:businessId/vintages/:taxYear.
// It returns the vintages with origin years at or before the given tax year,
// oldest first.
func (h *NOLHandler) Vintages(c *gin.Context) {
	businessID := c.Param("businessId")
	taxYear, err := strconv.Atoi(c.Param("taxYear"))
	if err != nil {
		apierrors.BadRequest(c, "taxYear must be an integer", nil)
		return
	}

	vintages, err := h.service.Vintages(c.Request.Context(), businessID)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list vintages", err)
		return
	}

	filtered := make([]models.NOLVintage, 0, len(vintages))
	for _, v := range vintages {
		if v.TaxYear <= taxYear {
			filtered = append(filtered, v)
		}
	}

	c.JSON(http.StatusOK, VintagesResponse{
		BusinessID: businessID,
		Vintages:   filtered,
		Count:      len(filtered),
	})
}

// Alerts handles GET /api/nol/alerts/:businessId.
func (h *NOLHandler) Alerts(c *gin.Context) {
	businessID := c.Param("businessId")

	alerts, err := h.service.Alerts(c.Request.Context(), businessID, time.Now().UTC())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to derive alerts", err)
		return
	}

	c.JSON(http.StatusOK, AlertsResponse{
		BusinessID: businessID,
		Alerts:     alerts,
		Count:      len(alerts),
	})
}

// AddVintage handles POST /api/nol/:businessId/vintages.
func (h *NOLHandler) AddVintage(c *gin.Context) {
	log := middleware.GetLogger(c)
	businessID := c.Param("businessId")

	var req AddVintageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	if log != nil {
		log.Info("Recording NOL vintage", map[string]interface{}{
			"business_id": businessID,
			"tax_year":    req.TaxYear,
			"amount":      req.Amount.String(),
		})
	}

	vintage, err := h.service.AddVintage(c.Request.Context(), businessID, req.TaxYear, req.Amount)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidLossAmount) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to record vintage", err)
		return
	}

	c.JSON(http.StatusCreated, vintage)
}

// ApplyDeduction handles POST /api/nol/:businessId/apply-deduction.
func (h *NOLHandler) ApplyDeduction(c *gin.Context) {
	businessID := c.Param("businessId")

	var req ApplyDeductionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	schedule, err := h.service.ApplyDeduction(c.Request.Context(), services.ApplyDeductionInput{
		BusinessID:             businessID,
		TaxYear:                req.TaxYear,
		TaxableIncomeBeforeNOL: req.TaxableIncomeBeforeNOL,
		LimitationPercentage:   req.LimitationPercentage,
	})
	if err != nil {
		if errors.Is(err, engine.ErrInvalidLimitation) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to apply deduction", err)
		return
	}

	c.JSON(http.StatusOK, schedule)
}

// ElectCarryback handles POST /api/nol/:businessId/vintages/:vintageId/carryback.
func (h *NOLHandler) ElectCarryback(c *gin.Context) {
	businessID := c.Param("businessId")
	vintageID, err := uuid.Parse(c.Param("vintageId"))
	if err != nil {
		apierrors.BadRequest(c, "vintageId must be a valid UUID", nil)
		return
	}

	var req CarrybackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	vintage, err := h.service.ElectCarryback(c.Request.Context(), businessID, vintageID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrVintageNotFound):
			apierrors.NotFound(c, "Vintage not found")
		case errors.Is(err, engine.ErrAlreadyCarriedBack):
			apierrors.DomainError(c, apierrors.ErrAlreadyCarriedBack, err.Error())
		case errors.Is(err, engine.ErrIneligibleVintage):
			apierrors.DomainError(c, apierrors.ErrIneligibleVintage, err.Error())
		case errors.Is(err, engine.ErrInvalidLossAmount), errors.Is(err, engine.ErrInsufficientBalance):
			apierrors.BadRequest(c, err.Error(), nil)
		default:
			apierrors.InternalServerError(c, "Failed to record carryback election", err)
		}
		return
	}

	c.JSON(http.StatusOK, vintage)
}
