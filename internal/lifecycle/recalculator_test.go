package lifecycle

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/workhub/backend/internal/models"
)

type mockReviewStore struct {
	mock.Mock
}

func (m *mockReviewStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Review, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *mockReviewStore) ListForProject(ctx context.Context, projectID uuid.UUID) ([]models.Review, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]models.Review), args.Error(1)
}

type mockRatingStore struct {
	mock.Mock
}

func (m *mockRatingStore) SetUserRating(ctx context.Context, userID uuid.UUID, rating models.Rating) error {
	args := m.Called(ctx, userID, rating)
	return args.Error(0)
}

func (m *mockRatingStore) SetProjectRating(ctx context.Context, projectID uuid.UUID, rating models.Rating) error {
	args := m.Called(ctx, projectID, rating)
	return args.Error(0)
}

type mockStatsStore struct {
	mock.Mock
}

func (m *mockStatsStore) ComputeClientStats(ctx context.Context, userID uuid.UUID) (*models.ClientStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ClientStats), args.Error(1)
}

func (m *mockStatsStore) SetClientStats(ctx context.Context, userID uuid.UUID, stats models.ClientStats) error {
	args := m.Called(ctx, userID, stats)
	return args.Error(0)
}

func (m *mockStatsStore) ComputeFreelancerStats(ctx context.Context, userID uuid.UUID) (*models.FreelancerStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FreelancerStats), args.Error(1)
}

func (m *mockStatsStore) SetFreelancerStats(ctx context.Context, userID uuid.UUID, stats models.FreelancerStats) error {
	args := m.Called(ctx, userID, stats)
	return args.Error(0)
}

func TestRecomputeProgress(t *testing.T) {
	assert.Equal(t, 0, RecomputeProgress(nil))
	assert.Equal(t, 0, RecomputeProgress([]models.Milestone{}))

	milestones := []models.Milestone{
		{Status: models.MilestoneStatusApproved},
		{Status: models.MilestoneStatusApproved},
		{Status: models.MilestoneStatusCompleted},
		{Status: models.MilestoneStatusPending},
	}
	assert.Equal(t, 50, RecomputeProgress(milestones))

	// Повторный пересчёт над теми же данными даёт тот же результат.
	assert.Equal(t, RecomputeProgress(milestones), RecomputeProgress(milestones))

	third := []models.Milestone{
		{Status: models.MilestoneStatusApproved},
		{Status: models.MilestoneStatusPending},
		{Status: models.MilestoneStatusPending},
	}
	assert.Equal(t, 33, RecomputeProgress(third))
}

func TestRecalculator_RecomputeUserRating(t *testing.T) {
	reviews := new(mockReviewStore)
	ratings := new(mockRatingStore)
	recalc := NewRecalculator(reviews, ratings, nil)
	ctx := context.Background()

	userID := uuid.New()
	stored := []models.Review{
		{Rating: 5},
		{Rating: 4},
		{Rating: 4},
	}

	want := models.Rating{Average: 4.33, Count: 3}
	reviews.On("ListForUser", ctx, userID).Return(stored, nil)
	ratings.On("SetUserRating", ctx, userID, want).Return(nil)

	got, err := recalc.RecomputeUserRating(ctx, userID)

	assert.NoError(t, err)
	assert.Equal(t, want, got)
	ratings.AssertExpectations(t)
}

func TestRecalculator_RecomputeUserRating_NoReviews(t *testing.T) {
	reviews := new(mockReviewStore)
	ratings := new(mockRatingStore)
	recalc := NewRecalculator(reviews, ratings, nil)
	ctx := context.Background()

	userID := uuid.New()
	reviews.On("ListForUser", ctx, userID).Return([]models.Review{}, nil)
	ratings.On("SetUserRating", ctx, userID, models.Rating{}).Return(nil)

	got, err := recalc.RecomputeUserRating(ctx, userID)

	assert.NoError(t, err)
	assert.Equal(t, models.Rating{}, got)
}

func TestRecalculator_ReconcileClientStats(t *testing.T) {
	stats := new(mockStatsStore)
	recalc := NewRecalculator(nil, nil, stats)
	ctx := context.Background()

	userID := uuid.New()
	computed := &models.ClientStats{
		TotalProjects:     7,
		ActiveProjects:    2,
		CompletedProjects: 4,
		TotalSpent:        150000,
	}

	stats.On("ComputeClientStats", ctx, userID).Return(computed, nil)
	stats.On("SetClientStats", ctx, userID, *computed).Return(nil)

	got, err := recalc.ReconcileClientStats(ctx, userID)

	assert.NoError(t, err)
	assert.Equal(t, computed, got)

	// Сверка идемпотентна: второй прогон пишет те же значения.
	got2, err := recalc.ReconcileClientStats(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, got, got2)
	stats.AssertNumberOfCalls(t, "SetClientStats", 2)
}

func TestRecalculator_ReconcileFreelancerStats(t *testing.T) {
	stats := new(mockStatsStore)
	recalc := NewRecalculator(nil, nil, stats)
	ctx := context.Background()

	userID := uuid.New()
	computed := &models.FreelancerStats{
		TotalProposals:    12,
		OngoingProjects:   1,
		CompletedProjects: 5,
		TotalEarnings:     320000,
	}

	stats.On("ComputeFreelancerStats", ctx, userID).Return(computed, nil)
	stats.On("SetFreelancerStats", ctx, userID, *computed).Return(nil)

	got, err := recalc.ReconcileFreelancerStats(ctx, userID)

	assert.NoError(t, err)
	assert.Equal(t, computed, got)
	stats.AssertExpectations(t)
}
