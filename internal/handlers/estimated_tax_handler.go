package handlers

import (
	"errors"
	"net/http"

	"github.com/civitax/engine/internal/engine"
	apierrors "github.com/civitax/engine/internal/errors"
	"github.com/civitax/engine/internal/middleware"
	"github.com/civitax/engine/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// EstimatedTaxHandler handles safe-harbor and estimated-tax penalty requests.
type EstimatedTaxHandler struct {
	service services.EstimatedTaxService
}

// NewEstimatedTaxHandler creates a new EstimatedTaxHandler instance.
func NewEstimatedTaxHandler(service services.EstimatedTaxService) *EstimatedTaxHandler {
	return &EstimatedTaxHandler{
		service: service,
	}
}

// SafeHarborRequest is the body for the evaluate-safe-harbor endpoint.
// PriorYearTaxLiability is omitted for first-year filers, which makes the
// prior-year harbor not applicable rather than trivially met.
type SafeHarborRequest struct {
	TaxYear                 int              `json:"taxYear" binding:"required,min=2000,max=2100"`
	CurrentYearTaxLiability decimal.Decimal  `json:"currentYearTaxLiability"`
	TotalPaidEstimated      decimal.Decimal  `json:"totalPaidEstimated"`
	AGI                     decimal.Decimal  `json:"agi"`
	PriorYearTaxLiability   *decimal.Decimal `json:"priorYearTaxLiability,omitempty"`
}

// EstimatedPaymentBody is one estimated payment inside a penalty request.
type EstimatedPaymentBody struct {
	Date   string          `json:"date" binding:"required,datetime=2006-01-02"`
	Amount decimal.Decimal `json:"amount"`
}

// EstimatedPenaltyRequest is the body for the calculate-penalty endpoint.
// AnnualRate is a decimal fraction; omit it to resolve the configured
// ESTIMATED_TAX rate for the tax year.
type EstimatedPenaltyRequest struct {
	TenantID              string                 `json:"tenantId,omitempty"`
	TaxYear               int                    `json:"taxYear" binding:"required,min=2000,max=2100"`
	AnnualTaxLiability    decimal.Decimal        `json:"annualTaxLiability"`
	Payments              []EstimatedPaymentBody `json:"payments" binding:"dive"`
	AnnualRate            *decimal.Decimal       `json:"annualRate,omitempty"`
	AGI                   decimal.Decimal        `json:"agi"`
	PriorYearTaxLiability *decimal.Decimal       `json:"priorYearTaxLiability,omitempty"`
}

// EvaluateSafeHarbor handles POST /api/estimated-tax/evaluate-safe-harbor.
func (h *EstimatedTaxHandler) EvaluateSafeHarbor(c *gin.Context) {
	var req SafeHarborRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	eval, err := h.service.EvaluateSafeHarbor(c.Request.Context(), services.SafeHarborInput{
		CurrentYearLiability: req.CurrentYearTaxLiability,
		TotalPaid:            req.TotalPaidEstimated,
		AGI:                  req.AGI,
		PriorYearLiability:   req.PriorYearTaxLiability,
	})
	if err != nil {
		if errors.Is(err, engine.ErrNegativeAmount) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to evaluate safe harbor", err)
		return
	}

	c.JSON(http.StatusOK, eval)
}

// CalculatePenalty handles POST /api/estimated-tax/calculate-penalty.
func (h *EstimatedTaxHandler) CalculatePenalty(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req EstimatedPenaltyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	payments := make([]engine.EstimatedPayment, 0, len(req.Payments))
	for _, p := range req.Payments {
		date, err := parseDate(p.Date)
		if err != nil {
			apierrors.BadRequest(c, "payment dates must be calendar dates in YYYY-MM-DD form", nil)
			return
		}
		payments = append(payments, engine.EstimatedPayment{
			Date:   date,
			Amount: p.Amount,
		})
	}

	if log != nil {
		log.Info("Processing estimated tax penalty request", map[string]interface{}{
			"tax_year": req.TaxYear,
			"payments": len(payments),
		})
	}

	penalty, err := h.service.CalculatePenalty(c.Request.Context(), services.EstimatedPenaltyInput{
		TenantID:           req.TenantID,
		TaxYear:            req.TaxYear,
		AnnualLiability:    req.AnnualTaxLiability,
		Payments:           payments,
		AnnualRate:         req.AnnualRate,
		AGI:                req.AGI,
		PriorYearLiability: req.PriorYearTaxLiability,
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNegativeAmount):
			apierrors.BadRequest(c, err.Error(), nil)
		case errors.Is(err, services.ErrRateNotFound):
			apierrors.DomainError(c, apierrors.ErrRateNotFound, err.Error())
		default:
			apierrors.InternalServerError(c, "Failed to calculate estimated tax penalty", err)
		}
		return
	}

	c.JSON(http.StatusOK, penalty)
}
