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

// PenaltyHandler handles penalty assessment HTTP requests.
type PenaltyHandler struct {
	service services.PenaltyService
}

// NewPenaltyHandler creates a new PenaltyHandler instance.
func NewPenaltyHandler(service services.PenaltyService) *PenaltyHandler {
	return &PenaltyHandler{
		service: service,
	}
}

// PenaltyCalculationRequest is the body for the calculate endpoint.
// ActualDate (default: today) is the date the return was filed and paid.
// When checkExisting is set the assessment is persisted, skipping penalty
// types already on file for the return; otherwise it is advisory only.
type PenaltyCalculationRequest struct {
	TenantID        string          `json:"tenantId,omitempty"`
	ReturnID        string          `json:"returnId" binding:"required"`
	TaxDueDate      string          `json:"taxDueDate" binding:"required,datetime=2006-01-02"`
	ActualDate      string          `json:"actualDate,omitempty" binding:"omitempty,datetime=2006-01-02"`
	UnpaidTaxAmount decimal.Decimal `json:"unpaidTaxAmount"`
	PenaltyType     string          `json:"penaltyType,omitempty" binding:"omitempty,oneof=LATE_FILING LATE_PAYMENT COMBINED"`
	CreatedBy       string          `json:"createdBy,omitempty"`
	CheckExisting   bool            `json:"checkExisting,omitempty"`
}

// PenaltyComponent is one evaluated penalty inside the response.
type PenaltyComponent struct {
	PenaltyType    models.PenaltyType `json:"penaltyType"`
	DaysLate       int                `json:"daysLate"`
	MonthsLate     int                `json:"monthsLate"`
	PenaltyRate    decimal.Decimal    `json:"penaltyRate"`
	PenaltyAmount  decimal.Decimal    `json:"penaltyAmount"`
	MaximumPenalty decimal.Decimal    `json:"maximumPenalty"`
	CappedAtMax    bool               `json:"cappedAtMax"`
	Explanation    string             `json:"explanation"`
}

// PenaltyCalculationResponse is both penalty components after the combined
// cap, plus any rows persisted.
type PenaltyCalculationResponse struct {
	ReturnID               string           `json:"returnId"`
	LateFiling             PenaltyComponent `json:"lateFiling"`
	LatePayment            PenaltyComponent `json:"latePayment"`
	TotalPenalty           decimal.Decimal  `json:"totalPenaltyAmount"`
	CombinedCapApplied     bool             `json:"combinedCapApplied"`
	CombinedCapExplanation string           `json:"combinedCapExplanation,omitempty"`
	Persisted              []models.Penalty `json:"persistedPenalties,omitempty"`
}

// ListPenaltiesResponse is the response for the by-return listing.
type ListPenaltiesResponse struct {
	ReturnID  string           `json:"returnId"`
	Penalties []models.Penalty `json:"penalties"`
	Count     int              `json:"count"`
	TotalOwed decimal.Decimal  `json:"totalOwed"`
}

// Calculate handles POST /api/penalties/calculate.
// It evaluates both late penalties against the return, applies the combined
// cap, and persists the assessment when requested.
func (h *PenaltyHandler) Calculate(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req PenaltyCalculationRequest
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
	actualDate, err := parseDateOr(req.ActualDate, time.Now().UTC())
	if err != nil {
		apierrors.BadRequest(c, "actualDate must be a calendar date in YYYY-MM-DD form", nil)
		return
	}

	if log != nil {
		log.Info("Processing penalty calculation request", map[string]interface{}{
			"return_id":   req.ReturnID,
			"unpaid_tax":  req.UnpaidTaxAmount.String(),
			"tax_due":     req.TaxDueDate,
			"actual_date": actualDate.Format(dateLayout),
		})
	}

	result, err := h.service.AssessLatePenalties(c.Request.Context(), services.AssessPenaltiesInput{
		TenantID:     req.TenantID,
		ReturnID:     req.ReturnID,
		TaxYear:      taxDueDate.Year(),
		TaxDueDate:   taxDueDate,
		FiledDate:    actualDate,
		PaidDate:     actualDate,
		TaxDue:       req.UnpaidTaxAmount,
		UnpaidAmount: req.UnpaidTaxAmount,
		CreatedBy:    req.CreatedBy,
		Persist:      req.CheckExisting,
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNegativeAmount):
			apierrors.BadRequest(c, err.Error(), nil)
		case errors.Is(err, services.ErrRateNotFound):
			apierrors.DomainError(c, apierrors.ErrRateNotFound, err.Error())
		default:
			apierrors.InternalServerError(c, "Failed to calculate penalties", err)
		}
		return
	}

	combined := result.Combined
	c.JSON(http.StatusOK, PenaltyCalculationResponse{
		ReturnID:               req.ReturnID,
		LateFiling:             toPenaltyComponent(combined.LateFiling),
		LatePayment:            toPenaltyComponent(combined.LatePayment),
		TotalPenalty:           combined.TotalPenalty,
		CombinedCapApplied:     combined.CombinedCapApplied,
		CombinedCapExplanation: combined.CombinedCapExplanation,
		Persisted:              result.Persisted,
	})
}

// ListByReturn handles GET /api/penalties/return/:returnId.
func (h *PenaltyHandler) ListByReturn(c *gin.Context) {
	returnID := c.Param("returnId")
	if returnID == "" {
		apierrors.BadRequest(c, "returnId is required", nil)
		return
	}
	tenantID := c.Query("tenantId")

	penalties, err := h.service.ListPenalties(c.Request.Context(), tenantID, returnID)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list penalties", err)
		return
	}

	totalOwed := decimal.Zero
	for i := range penalties {
		totalOwed = totalOwed.Add(penalties[i].AmountOwed())
	}

	c.JSON(http.StatusOK, ListPenaltiesResponse{
		ReturnID:  returnID,
		Penalties: penalties,
		Count:     len(penalties),
		TotalOwed: totalOwed,
	})
}

// toPenaltyComponent maps an evaluated penalty into its response form.
func toPenaltyComponent(p engine.LatePenalty) PenaltyComponent {
	return PenaltyComponent{
		PenaltyType:    p.Type,
		DaysLate:       p.DaysLate,
		MonthsLate:     p.MonthsLate,
		PenaltyRate:    p.MonthlyRate,
		PenaltyAmount:  p.PenaltyAmount,
		MaximumPenalty: p.MaximumPenalty,
		CappedAtMax:    p.CappedAtMax,
		Explanation:    p.Explanation,
	}
}
