package services

import (
	"context"
	"testing"
	"time"

	"github.com/civitax/engine/internal/engine"
	"github.com/civitax/engine/internal/logger"
	"github.com/civitax/engine/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterestCalculate_SuppliedRate(t *testing.T) {
	mockRepo := new(MockRateRepository)
	rates := NewRateService(mockRepo, logger.New("test"))
	service := NewInterestService(rates, logger.New("test"))

	rate := decimal.RequireFromString("0.07")
	result, err := service.Calculate(context.Background(), InterestInput{
		TenantID:         "springfield",
		TaxYear:          2024,
		UnpaidTax:        decimal.RequireFromString("10000"),
		StartDate:        time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2024, time.October, 15, 0, 0, 0, 0, time.UTC),
		AnnualRate:       &rate,
		IncludeBreakdown: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "354.44", result.Calculation.TotalInterest.String())
	assert.Len(t, result.Calculation.Quarters, 3)
	assert.Contains(t, result.Explanation, "$354.44")
	// A supplied rate never touches the rate store.
	mockRepo.AssertNotCalled(t, "FindRate")
}

func TestInterestCalculate_ResolvedRate(t *testing.T) {
	mockRepo := new(MockRateRepository)
	rates := NewRateService(mockRepo, logger.New("test"))
	service := NewInterestService(rates, logger.New("test"))

	ctx := context.Background()
	mockRepo.On("FindRate", ctx, "springfield", 2024, models.RateInterest).
		Return(configuredRate(models.RateInterest, "0.07"), nil)

	result, err := service.Calculate(ctx, InterestInput{
		TenantID:  "springfield",
		TaxYear:   2024,
		UnpaidTax: decimal.RequireFromString("10000"),
		StartDate: time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.October, 15, 0, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	assert.Equal(t, "354.44", result.Calculation.TotalInterest.String())
	mockRepo.AssertExpectations(t)
}

func TestInterestCalculate_RateNotConfigured(t *testing.T) {
	mockRepo := new(MockRateRepository)
	rates := NewRateService(mockRepo, logger.New("test"))
	service := NewInterestService(rates, logger.New("test"))

	ctx := context.Background()
	mockRepo.On("FindRate", ctx, "springfield", 2024, models.RateInterest).
		Return(nil, nil)

	_, err := service.Calculate(ctx, InterestInput{
		TenantID:  "springfield",
		TaxYear:   2024,
		UnpaidTax: decimal.RequireFromString("10000"),
		StartDate: time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.October, 15, 0, 0, 0, 0, time.UTC),
	})

	assert.ErrorIs(t, err, ErrRateNotFound)
}

func TestInterestCalculate_InvalidRange(t *testing.T) {
	mockRepo := new(MockRateRepository)
	rates := NewRateService(mockRepo, logger.New("test"))
	service := NewInterestService(rates, logger.New("test"))

	rate := decimal.RequireFromString("0.07")
	_, err := service.Calculate(context.Background(), InterestInput{
		UnpaidTax:  decimal.RequireFromString("10000"),
		StartDate:  time.Date(2024, time.October, 15, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC),
		AnnualRate: &rate,
	})

	assert.ErrorIs(t, err, engine.ErrInvalidDateRange)
}
