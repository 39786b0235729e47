package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/civitax/engine/internal/engine"
	apierrors "github.com/civitax/engine/internal/errors"
	"github.com/civitax/engine/internal/middleware"
	"github.com/civitax/engine/internal/models"
	"github.com/civitax/engine/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// InterestHandler handles interest calculation HTTP requests.
type InterestHandler struct {
	service services.InterestService
}

// NewInterestHandler creates a new InterestHandler instance.
func NewInterestHandler(service services.InterestService) *InterestHandler {
	return &InterestHandler{
		service: service,
	}
}

// InterestCalculationRequest is the body for the calculate endpoint.
// AnnualInterestRate is a decimal fraction (0.07 for 7%); omit it or set
// retrieveCurrentRate to resolve the configured rate for the tax year.
type InterestCalculationRequest struct {
	TenantID                  string           `json:"tenantId,omitempty"`
	ReturnID                  string           `json:"returnId" binding:"required"`
	TaxDueDate                string           `json:"taxDueDate" binding:"required,datetime=2006-01-02"`
	UnpaidTaxAmount           decimal.Decimal  `json:"unpaidTaxAmount"`
	StartDate                 string           `json:"startDate,omitempty" binding:"omitempty,datetime=2006-01-02"`
	EndDate                   string           `json:"endDate,omitempty" binding:"omitempty,datetime=2006-01-02"`
	AnnualInterestRate        *decimal.Decimal `json:"annualInterestRate,omitempty"`
	RetrieveCurrentRate       bool             `json:"retrieveCurrentRate,omitempty"`
	IncludeQuarterlyBreakdown bool             `json:"includeQuarterlyBreakdown,omitempty"`
}

// InterestCalculationResponse is the calculation result plus its
// natural-language explanation.
type InterestCalculationResponse struct {
	ReturnID string `json:"returnId"`
	models.InterestCalculation
	Explanation string `json:"explanation"`
}

// Calculate handles POST /api/interest/calculate.
// Interest accrues from the start date (default: the tax due date) to the
// end date (default: today) with quarterly compounding.
func (h *InterestHandler) Calculate(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req InterestCalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	taxDueDate, err := parseDate(req.TaxDueDate)
	if err != nil {
		apierrors.BadRequest(c, "taxDueDate must be a calendar date in YYYY-MM-DD form", nil)
		return
	}
	startDate, err := parseDateOr(req.StartDate, taxDueDate)
	if err != nil {
		apierrors.BadRequest(c, "startDate must be a calendar date in YYYY-MM-DD form", nil)
		return
	}
	endDate, err := parseDateOr(req.EndDate, time.Now().UTC())
	if err != nil {
		apierrors.BadRequest(c, "endDate must be a calendar date in YYYY-MM-DD form", nil)
		return
	}

	rate := req.AnnualInterestRate
	if req.RetrieveCurrentRate {
		rate = nil
	}

	if log != nil {
		log.Info("Processing interest calculation request", map[string]interface{}{
			"return_id":  req.ReturnID,
			"unpaid_tax": req.UnpaidTaxAmount.String(),
		})
	}

	result, err := h.service.Calculate(c.Request.Context(), services.InterestInput{
		TenantID:         req.TenantID,
		TaxYear:          startDate.Year(),
		UnpaidTax:        req.UnpaidTaxAmount,
		StartDate:        startDate,
		EndDate:          endDate,
		AnnualRate:       rate,
		IncludeBreakdown: req.IncludeQuarterlyBreakdown,
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidDateRange):
			apierrors.DomainError(c, apierrors.ErrInvalidDateRange, err.Error())
		case errors.Is(err, engine.ErrNegativeAmount):
			apierrors.BadRequest(c, err.Error(), nil)
		case errors.Is(err, services.ErrRateNotFound):
			apierrors.DomainError(c, apierrors.ErrRateNotFound, err.Error())
		default:
			apierrors.InternalServerError(c, "Failed to calculate interest", err)
		}
		return
	}

	c.JSON(http.StatusOK, InterestCalculationResponse{
		ReturnID:            req.ReturnID,
		InterestCalculation: *result.Calculation,
		Explanation:         result.Explanation,
	})
}
