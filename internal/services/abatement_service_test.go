package services

import (
	"context"
	"testing"
	"time"

	"github.com/civitax/engine/internal/logger"
	"github.com/civitax/engine/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAbatementRepository is a mock implementation of AbatementRepository for testing
type MockAbatementRepository struct {
	mock.Mock
}

func (m *MockAbatementRepository) Insert(ctx context.Context, abatement *models.PenaltyAbatement) error {
	args := m.Called(ctx, abatement)
	return args.Error(0)
}

func (m *MockAbatementRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.PenaltyAbatement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PenaltyAbatement), args.Error(1)
}

func (m *MockAbatementRepository) Update(ctx context.Context, abatement *models.PenaltyAbatement) error {
	args := m.Called(ctx, abatement)
	return args.Error(0)
}

func (m *MockAbatementRepository) CountGrantedSince(ctx context.Context, filerID string, since time.Time) (int, error) {
	args := m.Called(ctx, filerID, since)
	return args.Int(0), args.Error(1)
}

func newAbatementService(repo *MockAbatementRepository, penalties *MockPenaltyRepository) AbatementService {
	return NewAbatementService(repo, penalties, testTaxConfig(), logger.New("test"))
}

func submitInput() SubmitAbatementInput {
	return SubmitAbatementInput{
		PenaltyID:       uuid.New(),
		FilerID:         "FILER-7",
		RequestedAmount: decimal.RequireFromString("500"),
		Reason:          models.ReasonIllness,
		Explanation:     "Hospitalized for the entire filing month with documentation attached.",
	}
}

func pendingAbatement(reason models.AbatementReason) *models.PenaltyAbatement {
	return &models.PenaltyAbatement{
		ID:              uuid.New(),
		PenaltyID:       uuid.New(),
		FilerID:         "FILER-7",
		RequestedAmount: decimal.RequireFromString("500"),
		Reason:          reason,
		Explanation:     "Hospitalized for the entire filing month with documentation attached.",
		Status:          models.AbatementPending,
		ApprovedAmount:  decimal.Zero,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
}

func TestSubmitAbatement_Success(t *testing.T) {
	mockRepo := new(MockAbatementRepository)
	service := newAbatementService(mockRepo, new(MockPenaltyRepository))

	ctx := context.Background()
	input := submitInput()
	mockRepo.On("Insert", ctx, mock.AnythingOfType("*models.PenaltyAbatement")).Return(nil)

	abatement, err := service.Submit(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, models.AbatementPending, abatement.Status)
	assert.Equal(t, input.PenaltyID, abatement.PenaltyID)
	assert.Equal(t, input.FilerID, abatement.FilerID)
	assert.True(t, abatement.RequestedAmount.Equal(input.RequestedAmount))
	assert.Equal(t, input.Reason, abatement.Reason)
	assert.Equal(t, input.Explanation, abatement.Explanation)
	assert.True(t, abatement.ApprovedAmount.IsZero())
	mockRepo.AssertExpectations(t)
}

func TestSubmitAbatement_ShortExplanation(t *testing.T) {
	mockRepo := new(MockAbatementRepository)
	service := newAbatementService(mockRepo, new(MockPenaltyRepository))

	input := submitInput()
	input.Explanation = "too short"

	_, err := service.Submit(context.Background(), input)

	assert.ErrorIs(t, err, ErrInsufficientExplanation)
	mockRepo.AssertNotCalled(t, "Insert")
}

func TestSubmitAbatement_InvalidReason(t *testing.T) {
	mockRepo := new(MockAbatementRepository)
	service := newAbatementService(mockRepo, new(MockPenaltyRepository))

	input := submitInput()
	input.Reason = models.AbatementReason("DOG_ATE_IT")

	_, err := service.Submit(context.Background(), input)

	assert.ErrorIs(t, err, ErrInvalidReason)
	mockRepo.AssertNotCalled(t, "Insert")
}

func TestGetAbatement_NotFound(t *testing.T) {
	mockRepo := new(MockAbatementRepository)
	service := newAbatementService(mockRepo, new(MockPenaltyRepository))

	ctx := context.Background()
	id := uuid.New()
	mockRepo.On("FindByID", ctx, id).Return(nil, nil)

	_, err := service.Get(ctx, id)

	assert.ErrorIs(t, err, ErrAbatementNotFound)
}

func TestReviewAbatement_FullApproval(t *testing.T) {
	mockRepo := new(MockAbatementRepository)
	mockPenalties := new(MockPenaltyRepository)
	service := newAbatementService(mockRepo, mockPenalties)

	ctx := context.Background()
	pending := pendingAbatement(models.ReasonIllness)
	mockRepo.On("FindByID", ctx, pending.ID).Return(pending, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*models.PenaltyAbatement")).Return(nil)
	mockPenalties.On("UpdateAbatement", ctx, mock.AnythingOfType("*models.Penalty")).Return(nil)

	reviewed, err := service.Review(ctx, ReviewAbatementInput{
		AbatementID:    pending.ID,
		ApprovedAmount: decimal.RequireFromString("500"),
		ReviewedBy:     "reviewer-1",
	})

	require.NoError(t, err)
	assert.Equal(t, models.AbatementApproved, reviewed.Status)
	assert.Equal(t, "500", reviewed.ApprovedAmount.String())
	assert.Equal(t, "reviewer-1", reviewed.ReviewedBy)
	require.NotNil(t, reviewed.ReviewedAt)
	mockRepo.AssertExpectations(t)
	mockPenalties.AssertExpectations(t)
}

func TestReviewAbatement_Partial(t *testing.T) {
	mockRepo := new(MockAbatementRepository)
	mockPenalties := new(MockPenaltyRepository)
	service := newAbatementService(mockRepo, mockPenalties)

	ctx := context.Background()
	pending := pendingAbatement(models.ReasonIllness)
	mockRepo.On("FindByID", ctx, pending.ID).Return(pending, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*models.PenaltyAbatement")).Return(nil)
	mockPenalties.On("UpdateAbatement", ctx, mock.AnythingOfType("*models.Penalty")).Return(nil)

	reviewed, err := service.Review(ctx, ReviewAbatementInput{
		AbatementID:    pending.ID,
		ApprovedAmount: decimal.RequireFromString("200"),
		ReviewedBy:     "reviewer-1",
	})

	require.NoError(t, err)
	assert.Equal(t, models.AbatementPartial, reviewed.Status)
	assert.Equal(t, "200", reviewed.ApprovedAmount.String())
}

func TestReviewAbatement_Denied(t *testing.T) {
	mockRepo := new(MockAbatementRepository)
	mockPenalties := new(MockPenaltyRepository)
	service := newAbatementService(mockRepo, mockPenalties)

	ctx := context.Background()
	pending := pendingAbatement(models.ReasonOther)
	mockRepo.On("FindByID", ctx, pending.ID).Return(pending, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*models.PenaltyAbatement")).Return(nil)

	reviewed, err := service.Review(ctx, ReviewAbatementInput{
		AbatementID:    pending.ID,
		ApprovedAmount: decimal.Zero,
		ReviewedBy:     "reviewer-1",
	})

	require.NoError(t, err)
	assert.Equal(t, models.AbatementDenied, reviewed.Status)
	// A denial never touches the penalty row.
	mockPenalties.AssertNotCalled(t, "UpdateAbatement")
}

func TestReviewAbatement_AlreadyReviewed(t *testing.T) {
	mockRepo := new(MockAbatementRepository)
	service := newAbatementService(mockRepo, new(MockPenaltyRepository))

	ctx := context.Background()
	resolved := pendingAbatement(models.ReasonIllness)
	resolved.Status = models.AbatementApproved
	mockRepo.On("FindByID", ctx, resolved.ID).Return(resolved, nil)

	_, err := service.Review(ctx, ReviewAbatementInput{
		AbatementID:    resolved.ID,
		ApprovedAmount: decimal.RequireFromString("500"),
		ReviewedBy:     "reviewer-1",
	})

	assert.ErrorIs(t, err, ErrAbatementAlreadyReviewed)
	mockRepo.AssertNotCalled(t, "Update")
}

func TestReviewAbatement_ApprovedAboveRequested(t *testing.T) {
	mockRepo := new(MockAbatementRepository)
	service := newAbatementService(mockRepo, new(MockPenaltyRepository))

	ctx := context.Background()
	pending := pendingAbatement(models.ReasonIllness)
	mockRepo.On("FindByID", ctx, pending.ID).Return(pending, nil)

	_, err := service.Review(ctx, ReviewAbatementInput{
		AbatementID:    pending.ID,
		ApprovedAmount: decimal.RequireFromString("9999"),
		ReviewedBy:     "reviewer-1",
	})

	assert.ErrorIs(t, err, ErrInvalidApprovedAmount)
}

func TestReviewAbatement_FirstTimeEligible(t *testing.T) {
	mockRepo := new(MockAbatementRepository)
	mockPenalties := new(MockPenaltyRepository)
	service := newAbatementService(mockRepo, mockPenalties)

	ctx := context.Background()
	pending := pendingAbatement(models.ReasonFirstTime)
	mockRepo.On("FindByID", ctx, pending.ID).Return(pending, nil)
	mockRepo.On("CountGrantedSince", ctx, "FILER-7", mock.AnythingOfType("time.Time")).Return(0, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*models.PenaltyAbatement")).Return(nil)
	mockPenalties.On("UpdateAbatement", ctx, mock.AnythingOfType("*models.Penalty")).Return(nil)

	reviewed, err := service.Review(ctx, ReviewAbatementInput{
		AbatementID:    pending.ID,
		ApprovedAmount: decimal.RequireFromString("500"),
		ReviewedBy:     "reviewer-1",
	})

	require.NoError(t, err)
	assert.Equal(t, models.AbatementApproved, reviewed.Status)
	assert.True(t, reviewed.IsFirstTimeAbatement)
}

func TestReviewAbatement_FirstTimeIneligible(t *testing.T) {
	mockRepo := new(MockAbatementRepository)
	mockPenalties := new(MockPenaltyRepository)
	service := newAbatementService(mockRepo, mockPenalties)

	ctx := context.Background()
	pending := pendingAbatement(models.ReasonFirstTime)
	mockRepo.On("FindByID", ctx, pending.ID).Return(pending, nil)
	mockRepo.On("CountGrantedSince", ctx, "FILER-7", mock.AnythingOfType("time.Time")).Return(1, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*models.PenaltyAbatement")).Return(nil)

	reviewed, err := service.Review(ctx, ReviewAbatementInput{
		AbatementID:    pending.ID,
		ApprovedAmount: decimal.RequireFromString("500"),
		ReviewedBy:     "reviewer-1",
	})

	require.NoError(t, err)
	assert.Equal(t, models.AbatementDenied, reviewed.Status)
	assert.False(t, reviewed.IsFirstTimeAbatement)
	assert.Contains(t, reviewed.ReviewNotes, "First-time abatement denied")
	mockPenalties.AssertNotCalled(t, "UpdateAbatement")
}

func TestWithdrawAbatement_Pending(t *testing.T) {
	mockRepo := new(MockAbatementRepository)
	service := newAbatementService(mockRepo, new(MockPenaltyRepository))

	ctx := context.Background()
	pending := pendingAbatement(models.ReasonIllness)
	mockRepo.On("FindByID", ctx, pending.ID).Return(pending, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*models.PenaltyAbatement")).Return(nil)

	withdrawn, err := service.Withdraw(ctx, pending.ID)

	require.NoError(t, err)
	assert.Equal(t, models.AbatementWithdrawn, withdrawn.Status)
}

func TestWithdrawAbatement_AlreadyResolved(t *testing.T) {
	mockRepo := new(MockAbatementRepository)
	service := newAbatementService(mockRepo, new(MockPenaltyRepository))

	ctx := context.Background()
	resolved := pendingAbatement(models.ReasonIllness)
	resolved.Status = models.AbatementDenied
	mockRepo.On("FindByID", ctx, resolved.ID).Return(resolved, nil)

	_, err := service.Withdraw(ctx, resolved.ID)

	assert.ErrorIs(t, err, ErrAbatementAlreadyReviewed)
	mockRepo.AssertNotCalled(t, "Update")
}
