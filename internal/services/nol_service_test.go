package services

import (
	"context"
	"testing"
	"time"

	"github.com/civitax/engine/internal/engine"
	"github.com/civitax/engine/internal/logger"
	"github.com/civitax/engine/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNOLRepository is a mock implementation of NOLRepository for testing
type MockNOLRepository struct {
	mock.Mock
}

func (m *MockNOLRepository) ListVintages(ctx context.Context, businessID string) ([]models.NOLVintage, error) {
	args := m.Called(ctx, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.NOLVintage), args.Error(1)
}

func (m *MockNOLRepository) InsertVintage(ctx context.Context, vintage *models.NOLVintage) error {
	args := m.Called(ctx, vintage)
	return args.Error(0)
}

func (m *MockNOLRepository) SaveVintages(ctx context.Context, vintages []models.NOLVintage) error {
	args := m.Called(ctx, vintages)
	return args.Error(0)
}

func newNOLService(repo *MockNOLRepository) NOLService {
	return NewNOLService(repo, testTaxConfig(), logger.New("test"))
}

func freshVintage(businessID string, taxYear int, amount string, expiration *time.Time) models.NOLVintage {
	loss := decimal.RequireFromString(amount)
	return models.NOLVintage{
		ID:                 uuid.New(),
		BusinessID:         businessID,
		TaxYear:            taxYear,
		OriginalAmount:     loss,
		AvailableThisYear:  loss,
		RemainingForFuture: loss,
		ExpirationDate:     expiration,
	}
}

func TestAddVintage_PreRuleChangeExpires(t *testing.T) {
	mockRepo := new(MockNOLRepository)
	service := newNOLService(mockRepo)

	ctx := context.Background()
	mockRepo.On("InsertVintage", ctx, mock.AnythingOfType("*models.NOLVintage")).Return(nil)

	vintage, err := service.AddVintage(ctx, "biz-1", 2010, decimal.RequireFromString("40000"))

	require.NoError(t, err)
	require.NotNil(t, vintage.ExpirationDate)
	assert.Equal(t, time.Date(2030, time.December, 31, 0, 0, 0, 0, time.UTC), *vintage.ExpirationDate)
	assert.Equal(t, "40000", vintage.AvailableThisYear.String())
	mockRepo.AssertExpectations(t)
}

func TestAddVintage_PostRuleChangeIndefinite(t *testing.T) {
	mockRepo := new(MockNOLRepository)
	service := newNOLService(mockRepo)

	ctx := context.Background()
	mockRepo.On("InsertVintage", ctx, mock.AnythingOfType("*models.NOLVintage")).Return(nil)

	vintage, err := service.AddVintage(ctx, "biz-1", 2021, decimal.RequireFromString("40000"))

	require.NoError(t, err)
	assert.Nil(t, vintage.ExpirationDate)
}

func TestAddVintage_NonPositiveAmount(t *testing.T) {
	mockRepo := new(MockNOLRepository)
	service := newNOLService(mockRepo)

	_, err := service.AddVintage(context.Background(), "biz-1", 2021, decimal.Zero)

	assert.ErrorIs(t, err, engine.ErrInvalidLossAmount)
	mockRepo.AssertNotCalled(t, "InsertVintage")
}

func TestApplyDeduction_FIFOAndRollForward(t *testing.T) {
	mockRepo := new(MockNOLRepository)
	service := newNOLService(mockRepo)

	ctx := context.Background()
	vintages := []models.NOLVintage{
		freshVintage("biz-1", 2019, "10000", nil),
		freshVintage("biz-1", 2020, "5000", nil),
	}
	mockRepo.On("ListVintages", ctx, "biz-1").Return(vintages, nil)

	var saved []models.NOLVintage
	mockRepo.On("SaveVintages", ctx, mock.AnythingOfType("[]models.NOLVintage")).
		Run(func(args mock.Arguments) {
			saved = args.Get(1).([]models.NOLVintage)
		}).
		Return(nil)

	schedule, err := service.ApplyDeduction(ctx, ApplyDeductionInput{
		BusinessID:             "biz-1",
		TaxYear:                2024,
		TaxableIncomeBeforeNOL: decimal.RequireFromString("8000"),
		LimitationPercentage:   decimal.RequireFromString("80"),
	})

	require.NoError(t, err)
	assert.Equal(t, "15000", schedule.BeginningBalance.String())
	assert.Equal(t, "15000", schedule.TotalAvailable.String())
	assert.Equal(t, "6400", schedule.NOLDeduction.String())
	assert.Equal(t, "8600", schedule.EndingBalance.String())
	assert.Equal(t, "1600", schedule.TaxableIncomeAfterNOL.String())
	assert.True(t, schedule.ExpiredAmount.IsZero())

	// Oldest vintage absorbs the whole deduction.
	require.Len(t, schedule.Vintages, 2)
	assert.Equal(t, "6400", schedule.Vintages[0].UsedThisYear.String())
	assert.True(t, schedule.Vintages[1].UsedThisYear.IsZero())

	// The stored ledger is rolled forward for the next year.
	require.Len(t, saved, 2)
	assert.Equal(t, "6400", saved[0].PreviouslyUsed.String())
	assert.Equal(t, "3600", saved[0].AvailableThisYear.String())
	assert.True(t, saved[0].UsedThisYear.IsZero())
	assert.Equal(t, "5000", saved[1].AvailableThisYear.String())
	for _, v := range saved {
		assert.True(t, v.Conserved(), "vintage %d not conserved", v.TaxYear)
	}
}

func TestApplyDeduction_ExpirationSweep(t *testing.T) {
	mockRepo := new(MockNOLRepository)
	service := newNOLService(mockRepo)

	ctx := context.Background()
	expires := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	vintages := []models.NOLVintage{
		freshVintage("biz-1", 2004, "3000", &expires),
		freshVintage("biz-1", 2020, "9000", nil),
	}
	mockRepo.On("ListVintages", ctx, "biz-1").Return(vintages, nil)
	mockRepo.On("SaveVintages", ctx, mock.AnythingOfType("[]models.NOLVintage")).Return(nil)

	schedule, err := service.ApplyDeduction(ctx, ApplyDeductionInput{
		BusinessID:             "biz-1",
		TaxYear:                2024,
		TaxableIncomeBeforeNOL: decimal.RequireFromString("10000"),
		LimitationPercentage:   decimal.RequireFromString("100"),
	})

	require.NoError(t, err)
	// The expiring tranche never participates in the deduction year.
	assert.Equal(t, "3000", schedule.ExpiredAmount.String())
	assert.Equal(t, "12000", schedule.BeginningBalance.String())
	assert.Equal(t, "9000", schedule.TotalAvailable.String())
	assert.Equal(t, "9000", schedule.NOLDeduction.String())
	assert.True(t, schedule.EndingBalance.IsZero())
}

func TestApplyDeduction_InvalidLimitation(t *testing.T) {
	mockRepo := new(MockNOLRepository)
	service := newNOLService(mockRepo)

	ctx := context.Background()
	mockRepo.On("ListVintages", ctx, "biz-1").Return([]models.NOLVintage{}, nil)

	_, err := service.ApplyDeduction(ctx, ApplyDeductionInput{
		BusinessID:             "biz-1",
		TaxYear:                2024,
		TaxableIncomeBeforeNOL: decimal.RequireFromString("8000"),
		LimitationPercentage:   decimal.RequireFromString("150"),
	})

	assert.ErrorIs(t, err, engine.ErrInvalidLimitation)
	mockRepo.AssertNotCalled(t, "SaveVintages")
}

func TestElectCarryback_Success(t *testing.T) {
	mockRepo := new(MockNOLRepository)
	service := newNOLService(mockRepo)

	ctx := context.Background()
	vintage := freshVintage("biz-1", 2019, "30000", nil)
	mockRepo.On("ListVintages", ctx, "biz-1").Return([]models.NOLVintage{vintage}, nil)

	var saved []models.NOLVintage
	mockRepo.On("SaveVintages", ctx, mock.AnythingOfType("[]models.NOLVintage")).
		Run(func(args mock.Arguments) {
			saved = args.Get(1).([]models.NOLVintage)
		}).
		Return(nil)

	updated, err := service.ElectCarryback(ctx, "biz-1", vintage.ID, decimal.RequireFromString("12000"))

	require.NoError(t, err)
	assert.True(t, updated.IsCarriedBack)
	assert.Equal(t, "12000", updated.CarrybackAmount.String())
	assert.Equal(t, "18000", updated.AvailableThisYear.String())
	require.Len(t, saved, 1)
	assert.Equal(t, vintage.ID, saved[0].ID)
	assert.True(t, saved[0].IsCarriedBack)
}

func TestElectCarryback_VintageNotFound(t *testing.T) {
	mockRepo := new(MockNOLRepository)
	service := newNOLService(mockRepo)

	ctx := context.Background()
	mockRepo.On("ListVintages", ctx, "biz-1").Return([]models.NOLVintage{}, nil)

	_, err := service.ElectCarryback(ctx, "biz-1", uuid.New(), decimal.RequireFromString("1000"))

	assert.ErrorIs(t, err, ErrVintageNotFound)
	mockRepo.AssertNotCalled(t, "SaveVintages")
}

func TestElectCarryback_SecondElectionRejected(t *testing.T) {
	mockRepo := new(MockNOLRepository)
	service := newNOLService(mockRepo)

	ctx := context.Background()
	vintage := freshVintage("biz-1", 2019, "30000", nil)
	vintage.IsCarriedBack = true
	mockRepo.On("ListVintages", ctx, "biz-1").Return([]models.NOLVintage{vintage}, nil)

	_, err := service.ElectCarryback(ctx, "biz-1", vintage.ID, decimal.RequireFromString("1000"))

	assert.ErrorIs(t, err, engine.ErrAlreadyCarriedBack)
	mockRepo.AssertNotCalled(t, "SaveVintages")
}

func TestVintages_EmptyLedger(t *testing.T) {
	mockRepo := new(MockNOLRepository)
	service := newNOLService(mockRepo)

	ctx := context.Background()
	mockRepo.On("ListVintages", ctx, "biz-1").Return(nil, nil)

	vintages, err := service.Vintages(ctx, "biz-1")

	require.NoError(t, err)
	assert.NotNil(t, vintages)
	assert.Empty(t, vintages)
}

func TestAlerts_ExpiringVintage(t *testing.T) {
	mockRepo := new(MockNOLRepository)
	service := newNOLService(mockRepo)

	ctx := context.Background()
	expires := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
	vintage := freshVintage("biz-1", 2005, "7500", &expires)
	mockRepo.On("ListVintages", ctx, "biz-1").Return([]models.NOLVintage{vintage}, nil)

	alerts, err := service.Alerts(ctx, "biz-1", time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityCritical, alerts[0].SeverityLevel)
	assert.Equal(t, "7500", alerts[0].NOLBalance.String())
	assert.Equal(t, 0, alerts[0].YearsUntilExpiration)
}

func TestApplyDeduction_ConcurrentSameBusiness(t *testing.T) {
	mockRepo := new(MockNOLRepository)
	service := newNOLService(mockRepo)

	ctx := context.Background()
	mockRepo.On("ListVintages", ctx, "biz-1").
		Return([]models.NOLVintage{freshVintage("biz-1", 2020, "10000", nil)}, nil)
	mockRepo.On("SaveVintages", ctx, mock.AnythingOfType("[]models.NOLVintage")).Return(nil)

	input := ApplyDeductionInput{
		BusinessID:             "biz-1",
		TaxYear:                2024,
		TaxableIncomeBeforeNOL: decimal.RequireFromString("1000"),
		LimitationPercentage:   decimal.RequireFromString("80"),
	}

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := service.ApplyDeduction(ctx, input)
			done <- err
		}()
	}
	for i := 0; i < 2; i++ {
		assert.NoError(t, <-done)
	}
}
