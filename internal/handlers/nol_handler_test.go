package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/civitax/engine/internal/engine"
	apierrors "github.com/civitax/engine/internal/errors"
	"github.com/civitax/engine/internal/logger"
	"github.com/civitax/engine/internal/middleware"
	"github.com/civitax/engine/internal/models"
	"github.com/civitax/engine/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNOLService is a mock implementation of services.NOLService for handler
// tests.
type MockNOLService struct {
	mock.Mock
}

func (m *MockNOLService) Vintages(ctx context.Context, businessID string) ([]models.NOLVintage, error) {
	args := m.Called(ctx, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.NOLVintage), args.Error(1)
}

func (m *MockNOLService) Alerts(ctx context.Context, businessID string, asOf time.Time) ([]models.NOLAlert, error) {
	args := m.Called(ctx, businessID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.NOLAlert), args.Error(1)
}

func (m *MockNOLService) AddVintage(ctx context.Context, businessID string, taxYear int, amount decimal.Decimal) (*models.NOLVintage, error) {
	args := m.Called(ctx, businessID, taxYear, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NOLVintage), args.Error(1)
}

func (m *MockNOLService) ApplyDeduction(ctx context.Context, input services.ApplyDeductionInput) (*models.NOLSchedule, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NOLSchedule), args.Error(1)
}

func (m *MockNOLService) ElectCarryback(ctx context.Context, businessID string, vintageID uuid.UUID, amount decimal.Decimal) (*models.NOLVintage, error) {
	args := m.Called(ctx, businessID, vintageID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NOLVintage), args.Error(1)
}

// setupNOLTestRouter creates a test router with middleware and NOL handlers.
func setupNOLTestRouter(service services.NOLService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New("test")

	handler := NewNOLHandler(service)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))

	api := router.Group("/api")
	{
		nol := api.Group("/nol")
		{
			nol.GET("/schedule/:businessId/vintages/:taxYear", handler.Vintages)
			nol.GET("/alerts/:businessId", handler.Alerts)
			nol.POST("/:businessId/vintages", handler.AddVintage)
			nol.POST("/:businessId/apply-deduction", handler.ApplyDeduction)
			nol.POST("/:businessId/vintages/:vintageId/carryback", handler.ElectCarryback)
		}
	}

	return router
}

func ledgerVintage(taxYear int, available string) models.NOLVintage {
	amount := decimal.RequireFromString(available)
	return models.NOLVintage{
		ID:                 uuid.New(),
		BusinessID:         "biz-1",
		TaxYear:            taxYear,
		OriginalAmount:     amount,
		AvailableThisYear:  amount,
		RemainingForFuture: amount,
	}
}

func TestNOLVintages_FiltersByTaxYear(t *testing.T) {
	mockService := new(MockNOLService)
	router := setupNOLTestRouter(mockService)

	vintages := []models.NOLVintage{
		ledgerVintage(2018, "10000"),
		ledgerVintage(2020, "5000"),
		ledgerVintage(2023, "7000"),
	}
	mockService.On("Vintages", mock.Anything, "biz-1").Return(vintages, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/nol/schedule/biz-1/vintages/2020", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp VintagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "biz-1", resp.BusinessID)
	// The 2023 vintage postdates the requested schedule year.
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Vintages, 2)
	assert.Equal(t, 2018, resp.Vintages[0].TaxYear)
	assert.Equal(t, 2020, resp.Vintages[1].TaxYear)
}

func TestNOLVintages_BadTaxYear(t *testing.T) {
	mockService := new(MockNOLService)
	router := setupNOLTestRouter(mockService)

	req := httptest.NewRequest(http.MethodGet, "/api/nol/schedule/biz-1/vintages/soon", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "Vintages")
}

func TestNOLAlerts(t *testing.T) {
	mockService := new(MockNOLService)
	router := setupNOLTestRouter(mockService)

	alerts := []models.NOLAlert{
		{
			NOLID:         uuid.New(),
			TaxYear:       2005,
			NOLBalance:    decimal.RequireFromString("7500"),
			SeverityLevel: models.SeverityCritical,
		},
	}
	mockService.On("Alerts", mock.Anything, "biz-1", mock.AnythingOfType("time.Time")).Return(alerts, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/nol/alerts/biz-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp AlertsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, models.SeverityCritical, resp.Alerts[0].SeverityLevel)
}

func TestNOLAddVintage_Created(t *testing.T) {
	mockService := new(MockNOLService)
	router := setupNOLTestRouter(mockService)

	vintage := ledgerVintage(2020, "40000")
	mockService.On("AddVintage", mock.Anything, "biz-1", 2020, decimal.RequireFromString("40000")).
		Return(&vintage, nil)

	w := postJSON(t, router, "/api/nol/biz-1/vintages", map[string]interface{}{
		"taxYear": 2020,
		"amount":  "40000",
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.NOLVintage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2020, resp.TaxYear)
	assert.Equal(t, "40000", resp.AvailableThisYear.String())
}

func TestNOLAddVintage_NonPositiveAmount(t *testing.T) {
	mockService := new(MockNOLService)
	router := setupNOLTestRouter(mockService)

	mockService.On("AddVintage", mock.Anything, "biz-1", 2020, mock.AnythingOfType("decimal.Decimal")).
		Return(nil, engine.ErrInvalidLossAmount)

	w := postJSON(t, router, "/api/nol/biz-1/vintages", map[string]interface{}{
		"taxYear": 2020,
		"amount":  "0",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNOLAddVintage_TaxYearOutOfRange(t *testing.T) {
	mockService := new(MockNOLService)
	router := setupNOLTestRouter(mockService)

	w := postJSON(t, router, "/api/nol/biz-1/vintages", map[string]interface{}{
		"taxYear": 1850,
		"amount":  "40000",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeErrorResponse(t, w)
	assert.Equal(t, apierrors.ErrValidation, resp.Error.Code)
	mockService.AssertNotCalled(t, "AddVintage")
}

func TestNOLApplyDeduction(t *testing.T) {
	mockService := new(MockNOLService)
	router := setupNOLTestRouter(mockService)

	schedule := &models.NOLSchedule{
		BusinessID:       "biz-1",
		TaxYear:          2024,
		BeginningBalance: decimal.RequireFromString("15000"),
		TotalAvailable:   decimal.RequireFromString("15000"),
		NOLDeduction:     decimal.RequireFromString("6400"),
		EndingBalance:    decimal.RequireFromString("8600"),
	}

	var captured services.ApplyDeductionInput
	mockService.On("ApplyDeduction", mock.Anything, mock.AnythingOfType("services.ApplyDeductionInput")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(services.ApplyDeductionInput)
		}).
		Return(schedule, nil)

	w := postJSON(t, router, "/api/nol/biz-1/apply-deduction", map[string]interface{}{
		"taxYear":                2024,
		"taxableIncomeBeforeNol": "8000",
		"limitationPercentage":   "80",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.NOLSchedule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "6400", resp.NOLDeduction.String())
	assert.Equal(t, "biz-1", captured.BusinessID)
	assert.Equal(t, "80", captured.LimitationPercentage.String())
}

func TestNOLApplyDeduction_InvalidLimitation(t *testing.T) {
	mockService := new(MockNOLService)
	router := setupNOLTestRouter(mockService)

	mockService.On("ApplyDeduction", mock.Anything, mock.AnythingOfType("services.ApplyDeductionInput")).
		Return(nil, engine.ErrInvalidLimitation)

	w := postJSON(t, router, "/api/nol/biz-1/apply-deduction", map[string]interface{}{
		"taxYear":                2024,
		"taxableIncomeBeforeNol": "8000",
		"limitationPercentage":   "150",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNOLElectCarryback(t *testing.T) {
	mockService := new(MockNOLService)
	router := setupNOLTestRouter(mockService)

	vintage := ledgerVintage(2019, "18000")
	vintage.IsCarriedBack = true
	vintage.CarrybackAmount = decimal.RequireFromString("12000")
	mockService.On("ElectCarryback", mock.Anything, "biz-1", vintage.ID, decimal.RequireFromString("12000")).
		Return(&vintage, nil)

	w := postJSON(t, router, "/api/nol/biz-1/vintages/"+vintage.ID.String()+"/carryback", map[string]interface{}{
		"amount": "12000",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.NOLVintage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.IsCarriedBack)
	assert.Equal(t, "12000", resp.CarrybackAmount.String())
}

func TestNOLElectCarryback_Conflict(t *testing.T) {
	mockService := new(MockNOLService)
	router := setupNOLTestRouter(mockService)

	vintageID := uuid.New()
	mockService.On("ElectCarryback", mock.Anything, "biz-1", vintageID, mock.AnythingOfType("decimal.Decimal")).
		Return(nil, engine.ErrAlreadyCarriedBack)

	w := postJSON(t, router, "/api/nol/biz-1/vintages/"+vintageID.String()+"/carryback", map[string]interface{}{
		"amount": "1000",
	})

	require.Equal(t, http.StatusConflict, w.Code)
	resp := decodeErrorResponse(t, w)
	assert.Equal(t, apierrors.ErrAlreadyCarriedBack, resp.Error.Code)
}

func TestNOLElectCarryback_VintageNotFound(t *testing.T) {
	mockService := new(MockNOLService)
	router := setupNOLTestRouter(mockService)

	vintageID := uuid.New()
	mockService.On("ElectCarryback", mock.Anything, "biz-1", vintageID, mock.AnythingOfType("decimal.Decimal")).
		Return(nil, services.ErrVintageNotFound)

	w := postJSON(t, router, "/api/nol/biz-1/vintages/"+vintageID.String()+"/carryback", map[string]interface{}{
		"amount": "1000",
	})

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestNOLElectCarryback_BadVintageID(t *testing.T) {
	mockService := new(MockNOLService)
	router := setupNOLTestRouter(mockService)

	w := postJSON(t, router, "/api/nol/biz-1/vintages/nope/carryback", map[string]interface{}{
		"amount": "1000",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "ElectCarryback")
}
