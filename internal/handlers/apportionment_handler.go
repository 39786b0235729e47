package handlers

import (
	"errors"
	"net/http"

	"github.com/civitax/engine/internal/engine"
	apierrors "github.com/civitax/engine/internal/errors"
	"github.com/civitax/engine/internal/models"
	"github.com/civitax/engine/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ApportionmentHandler handles Schedule Y apportionment HTTP requests.
type ApportionmentHandler struct {
	service services.ApportionmentService
}

// NewApportionmentHandler creates a new ApportionmentHandler instance.
func NewApportionmentHandler(service services.ApportionmentService) *ApportionmentHandler {
	return &ApportionmentHandler{
		service: service,
	}
}

// ApportionmentRequest is the body for the calculate endpoint. Factor
// percentages are in [0, 100].
type ApportionmentRequest struct {
	PropertyPct decimal.Decimal `json:"propertyPct"`
	PayrollPct  decimal.Decimal `json:"payrollPct"`
	SalesPct    decimal.Decimal `json:"salesPct"`
	Formula     string          `json:"formula" binding:"required,oneof=TRADITIONAL_THREE_FACTOR FOUR_FACTOR_DOUBLE_SALES SINGLE_SALES_FACTOR"`
}

// CompareRequest is the body for the compare endpoint. The traditional
// formula is contrasted against single sales factor.
type CompareRequest struct {
	PropertyPct        decimal.Decimal `json:"propertyPct"`
	PayrollPct         decimal.Decimal `json:"payrollPct"`
	SalesPct           decimal.Decimal `json:"salesPct"`
	TraditionalFormula string          `json:"traditionalFormula" binding:"required,oneof=TRADITIONAL_THREE_FACTOR FOUR_FACTOR_DOUBLE_SALES"`
}

// Calculate handles POST /api/apportionment/calculate.
func (h *ApportionmentHandler) Calculate(c *gin.Context) {
	var req ApportionmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	breakdown, err := h.service.Calculate(c.Request.Context(), engine.ApportionmentFactors{
		Property: req.PropertyPct,
		Payroll:  req.PayrollPct,
		Sales:    req.SalesPct,
	}, models.ApportionmentFormula(req.Formula))
	if err != nil {
		if errors.Is(err, engine.ErrInvalidFactorPercentage) {
			apierrors.DomainError(c, apierrors.ErrInvalidFactorPercentage, err.Error())
			return
		}
		apierrors.InternalServerError(c, "Failed to calculate apportionment", err)
		return
	}

	c.JSON(http.StatusOK, breakdown)
}

// Compare handles POST /api/apportionment/compare.
func (h *ApportionmentHandler) Compare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	comparison, err := h.service.Compare(c.Request.Context(), engine.ApportionmentFactors{
		Property: req.PropertyPct,
		Payroll:  req.PayrollPct,
		Sales:    req.SalesPct,
	}, models.ApportionmentFormula(req.TraditionalFormula))
	if err != nil {
		if errors.Is(err, engine.ErrInvalidFactorPercentage) {
			apierrors.DomainError(c, apierrors.ErrInvalidFactorPercentage, err.Error())
			return
		}
		apierrors.InternalServerError(c, "Failed to compare formulas", err)
		return
	}

	c.JSON(http.StatusOK, comparison)
}
