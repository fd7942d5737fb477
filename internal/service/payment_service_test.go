package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/workhub/backend/internal/models"
	"github.com/workhub/backend/internal/pkg/apperror"
	"github.com/workhub/backend/internal/repository"
)

type mockPaymentRepo struct {
	mock.Mock
}

func (m *mockPaymentRepo) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserBalance), args.Error(1)
}

func (m *mockPaymentRepo) Deposit(ctx context.Context, userID uuid.UUID, amount float64, description string) (*models.Transaction, error) {
	args := m.Called(ctx, userID, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockPaymentRepo) CreateEscrow(ctx context.Context, projectID, milestoneID, clientID, freelancerID uuid.UUID, amount float64) (*models.Escrow, error) {
	args := m.Called(ctx, projectID, milestoneID, clientID, freelancerID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockPaymentRepo) ReleaseEscrow(ctx context.Context, milestoneID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, milestoneID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockPaymentRepo) RefundEscrow(ctx context.Context, milestoneID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, milestoneID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockPaymentRepo) ListHeldByProject(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockPaymentRepo) GetEscrowByMilestoneID(ctx context.Context, milestoneID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, milestoneID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockPaymentRepo) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func TestPaymentService_GetBalance(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo)
	ctx := context.Background()
	userID := uuid.New()

	expected := &models.UserBalance{UserID: userID, Available: 1000, Frozen: 500}
	repo.On("GetBalance", ctx, userID).Return(expected, nil)

	balance, err := svc.GetBalance(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, expected, balance)
	repo.AssertExpectations(t)
}

func TestPaymentService_Deposit_Success(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo)
	ctx := context.Background()
	userID := uuid.New()

	expected := &models.Transaction{ID: uuid.New(), Amount: 1000}
	repo.On("Deposit", ctx, userID, float64(1000), "Пополнение баланса").Return(expected, nil)

	tx, err := svc.Deposit(ctx, userID, 1000)
	assert.NoError(t, err)
	assert.Equal(t, expected, tx)
}

func TestPaymentService_Deposit_InvalidAmount(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Deposit(ctx, userID, 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "положительной")

	_, err = svc.Deposit(ctx, userID, -100)
	assert.Error(t, err)
}

func escrowFixture(projectID, milestoneID uuid.UUID) (*models.Project, *models.Milestone) {
	freelancerID := uuid.New()
	project := &models.Project{
		ID:                   projectID,
		ClientID:             uuid.New(),
		SelectedFreelancerID: &freelancerID,
	}
	milestone := &models.Milestone{
		ID:        milestoneID,
		ProjectID: projectID,
		Amount:    5000,
	}
	return project, milestone
}

func TestPaymentService_HoldForMilestone_Success(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo)
	ctx := context.Background()

	projectID := uuid.New()
	milestoneID := uuid.New()
	project, milestone := escrowFixture(projectID, milestoneID)

	expected := &models.Escrow{ID: uuid.New(), Amount: 5000, Status: models.EscrowStatusHeld}
	repo.On("GetEscrowByMilestoneID", ctx, milestoneID).Return(nil, repository.ErrEscrowNotFound)
	repo.On("CreateEscrow", ctx, projectID, milestoneID, project.ClientID, *project.SelectedFreelancerID, float64(5000)).Return(expected, nil)

	escrow, err := svc.HoldForMilestone(ctx, project, milestone)
	assert.NoError(t, err)
	assert.Equal(t, expected, escrow)
	repo.AssertExpectations(t)
}

func TestPaymentService_HoldForMilestone_Idempotent(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo)
	ctx := context.Background()

	projectID := uuid.New()
	milestoneID := uuid.New()
	project, milestone := escrowFixture(projectID, milestoneID)

	existing := &models.Escrow{ID: uuid.New(), MilestoneID: milestoneID, Status: models.EscrowStatusHeld}
	repo.On("GetEscrowByMilestoneID", ctx, milestoneID).Return(existing, nil)

	escrow, err := svc.HoldForMilestone(ctx, project, milestone)
	assert.NoError(t, err)
	assert.Equal(t, existing, escrow)
	repo.AssertNotCalled(t, "CreateEscrow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_HoldForMilestone_NoFreelancer(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo)

	project := &models.Project{ID: uuid.New(), ClientID: uuid.New()}
	milestone := &models.Milestone{ID: uuid.New(), ProjectID: project.ID, Amount: 5000}

	_, err := svc.HoldForMilestone(context.Background(), project, milestone)
	assert.True(t, apperror.IsValidation(err))
}

func TestPaymentService_HoldForMilestone_InsufficientFunds(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo)
	ctx := context.Background()

	projectID := uuid.New()
	milestoneID := uuid.New()
	project, milestone := escrowFixture(projectID, milestoneID)

	repo.On("GetEscrowByMilestoneID", ctx, milestoneID).Return(nil, repository.ErrEscrowNotFound)
	repo.On("CreateEscrow", ctx, projectID, milestoneID, project.ClientID, *project.SelectedFreelancerID, float64(5000)).Return(nil, repository.ErrInsufficientFunds)

	_, err := svc.HoldForMilestone(ctx, project, milestone)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "недостаточно средств")
}

func TestPaymentService_ReleaseByMilestone(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo)
	ctx := context.Background()
	milestoneID := uuid.New()

	released := &models.Escrow{MilestoneID: milestoneID, Status: models.EscrowStatusReleased}
	repo.On("ReleaseEscrow", ctx, milestoneID).Return(released, nil)

	err := svc.ReleaseByMilestone(ctx, milestoneID)
	assert.NoError(t, err)
}

func TestPaymentService_ReleaseByMilestone_AlreadyReleased(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo)
	ctx := context.Background()
	milestoneID := uuid.New()

	// Повторное освобождение того же этапа не считается ошибкой.
	repo.On("ReleaseEscrow", ctx, milestoneID).Return(nil, repository.ErrEscrowNotFound)

	err := svc.ReleaseByMilestone(ctx, milestoneID)
	assert.NoError(t, err)
}

func TestPaymentService_RefundByProject(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo)
	ctx := context.Background()
	projectID := uuid.New()

	first := uuid.New()
	second := uuid.New()
	repo.On("ListHeldByProject", ctx, projectID).Return([]uuid.UUID{first, second}, nil)
	repo.On("RefundEscrow", ctx, first).Return(&models.Escrow{Status: models.EscrowStatusRefunded}, nil)
	repo.On("RefundEscrow", ctx, second).Return(&models.Escrow{Status: models.EscrowStatusRefunded}, nil)

	err := svc.RefundByProject(ctx, projectID)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestPaymentService_ListTransactions_DefaultLimit(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("ListTransactions", ctx, userID, 20, 0).Return([]models.Transaction{}, nil)

	_, err := svc.ListTransactions(ctx, userID, 0, 0)
	assert.NoError(t, err)
}

func TestPaymentService_GetEscrowByMilestone(t *testing.T) {
	repo := new(mockPaymentRepo)
	svc := NewPaymentService(repo)
	ctx := context.Background()
	milestoneID := uuid.New()

	expected := &models.Escrow{ID: uuid.New(), MilestoneID: milestoneID}
	repo.On("GetEscrowByMilestoneID", ctx, milestoneID).Return(expected, nil)

	escrow, err := svc.GetEscrowByMilestone(ctx, milestoneID)
	assert.NoError(t, err)
	assert.Equal(t, expected, escrow)
}
