package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/workhub/backend/internal/models"
	"github.com/workhub/backend/internal/pkg/apperror"
)

type mockProjectStore struct {
	mock.Mock
}

func (m *mockProjectStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *mockProjectStore) GetWithDetails(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *mockProjectStore) GetProposalByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Proposal), args.Error(1)
}

func (m *mockProjectStore) GetMilestoneByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Milestone), args.Error(1)
}

func (m *mockProjectStore) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]models.Milestone), args.Error(1)
}

func (m *mockProjectStore) AssignFreelancer(ctx context.Context, projectID, freelancerID uuid.UUID) error {
	args := m.Called(ctx, projectID, freelancerID)
	return args.Error(0)
}

func (m *mockProjectStore) ClearSelectedFreelancer(ctx context.Context, projectID uuid.UUID) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

func (m *mockProjectStore) SetProjectStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockProjectStore) SetProposalStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockProjectStore) RejectPendingProposals(ctx context.Context, projectID uuid.UUID, exceptID uuid.UUID) error {
	args := m.Called(ctx, projectID, exceptID)
	return args.Error(0)
}

func (m *mockProjectStore) SetMilestoneStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockProjectStore) SetProgressPercent(ctx context.Context, projectID uuid.UUID, percent int) error {
	args := m.Called(ctx, projectID, percent)
	return args.Error(0)
}

func (m *mockProjectStore) AdjustBudget(ctx context.Context, projectID uuid.UUID, paidDelta, pendingDelta float64) error {
	args := m.Called(ctx, projectID, paidDelta, pendingDelta)
	return args.Error(0)
}

type mockProfileStore struct {
	mock.Mock
}

func (m *mockProfileStore) AdjustClientStats(ctx context.Context, userID uuid.UUID, delta models.ClientStats) error {
	args := m.Called(ctx, userID, delta)
	return args.Error(0)
}

func (m *mockProfileStore) AdjustFreelancerStats(ctx context.Context, userID uuid.UUID, delta models.FreelancerStats) error {
	args := m.Called(ctx, userID, delta)
	return args.Error(0)
}

type mockEscrowStore struct {
	mock.Mock
}

func (m *mockEscrowStore) HoldForMilestone(ctx context.Context, project *models.Project, milestone *models.Milestone) (*models.Escrow, error) {
	args := m.Called(ctx, project, milestone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowStore) ReleaseByMilestone(ctx context.Context, milestoneID uuid.UUID) error {
	args := m.Called(ctx, milestoneID)
	return args.Error(0)
}

func (m *mockEscrowStore) RefundByProject(ctx context.Context, projectID uuid.UUID) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

func openProject(clientID uuid.UUID) *models.Project {
	return &models.Project{
		ID:       uuid.New(),
		ClientID: clientID,
		Status:   models.ProjectStatusOpen,
		Budget: models.Budget{
			Type:      models.BudgetTypeFixed,
			Currency:  "RUB",
			MinAmount: 50000,
			MaxAmount: 100000,
		},
	}
}

func TestEngine_DecideProposal_AcceptCascade(t *testing.T) {
	projects := new(mockProjectStore)
	profiles := new(mockProfileStore)
	engine := NewEngine(projects, profiles, nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	project := openProject(clientID)
	proposal := &models.Proposal{
		ID:           uuid.New(),
		ProjectID:    project.ID,
		FreelancerID: freelancerID,
		Status:       models.ProposalStatusPending,
	}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	projects.On("GetProposalByID", ctx, proposal.ID).Return(proposal, nil)
	projects.On("AssignFreelancer", ctx, project.ID, freelancerID).Return(nil)
	projects.On("SetProposalStatus", ctx, proposal.ID, models.ProposalStatusAccepted).Return(nil)
	projects.On("RejectPendingProposals", ctx, project.ID, proposal.ID).Return(nil)
	projects.On("SetProjectStatus", ctx, project.ID, models.ProjectStatusInProgress).Return(nil)
	profiles.On("AdjustFreelancerStats", ctx, freelancerID, models.FreelancerStats{OngoingProjects: 1}).Return(nil)
	profiles.On("AdjustClientStats", ctx, clientID, models.ClientStats{ActiveProjects: 1, TotalFreelancersHired: 1}).Return(nil)
	projects.On("GetWithDetails", ctx, project.ID).Return(project, nil)

	result, err := engine.DecideProposal(ctx, project.ID, proposal.ID, models.ProposalStatusAccepted, Actor{ID: clientID, Role: models.RoleClient})

	assert.NoError(t, err)
	assert.NotNil(t, result)
	projects.AssertExpectations(t)
	profiles.AssertExpectations(t)
}

func TestEngine_DecideProposal_AlreadyAssigned(t *testing.T) {
	projects := new(mockProjectStore)
	profiles := new(mockProfileStore)
	engine := NewEngine(projects, profiles, nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	other := uuid.New()
	project := openProject(clientID)
	project.SelectedFreelancerID = &other
	proposal := &models.Proposal{
		ID:           uuid.New(),
		ProjectID:    project.ID,
		FreelancerID: uuid.New(),
		Status:       models.ProposalStatusPending,
	}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	projects.On("GetProposalByID", ctx, proposal.ID).Return(proposal, nil)

	_, err := engine.DecideProposal(ctx, project.ID, proposal.ID, models.ProposalStatusAccepted, Actor{ID: clientID, Role: models.RoleClient})

	assert.Error(t, err)
	assert.True(t, apperror.IsAlreadyAssigned(err))
	projects.AssertNotCalled(t, "AssignFreelancer", mock.Anything, mock.Anything, mock.Anything)
	projects.AssertNotCalled(t, "SetProposalStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_DecideProposal_LostRace(t *testing.T) {
	projects := new(mockProjectStore)
	profiles := new(mockProfileStore)
	engine := NewEngine(projects, profiles, nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	project := openProject(clientID)
	proposal := &models.Proposal{
		ID:           uuid.New(),
		ProjectID:    project.ID,
		FreelancerID: uuid.New(),
		Status:       models.ProposalStatusPending,
	}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	projects.On("GetProposalByID", ctx, proposal.ID).Return(proposal, nil)
	// Условная запись проиграна конкурирующему принятию.
	projects.On("AssignFreelancer", ctx, project.ID, proposal.FreelancerID).Return(apperror.ErrAlreadyAssigned)

	_, err := engine.DecideProposal(ctx, project.ID, proposal.ID, models.ProposalStatusAccepted, Actor{ID: clientID, Role: models.RoleClient})

	assert.True(t, apperror.IsAlreadyAssigned(err))
	projects.AssertNotCalled(t, "SetProposalStatus", mock.Anything, mock.Anything, mock.Anything)
	projects.AssertNotCalled(t, "RejectPendingProposals", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_DecideProposal_RejectedCannotBeAccepted(t *testing.T) {
	projects := new(mockProjectStore)
	profiles := new(mockProfileStore)
	engine := NewEngine(projects, profiles, nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	project := openProject(clientID)
	proposal := &models.Proposal{
		ID:           uuid.New(),
		ProjectID:    project.ID,
		FreelancerID: uuid.New(),
		Status:       models.ProposalStatusRejected,
	}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	projects.On("GetProposalByID", ctx, proposal.ID).Return(proposal, nil)

	_, err := engine.DecideProposal(ctx, project.ID, proposal.ID, models.ProposalStatusAccepted, Actor{ID: clientID, Role: models.RoleClient})

	assert.True(t, apperror.IsInvalidTransition(err))
	projects.AssertNotCalled(t, "AssignFreelancer", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_DecideProposal_FreelancerCannotAccept(t *testing.T) {
	projects := new(mockProjectStore)
	profiles := new(mockProfileStore)
	engine := NewEngine(projects, profiles, nil, nil)
	ctx := context.Background()

	project := openProject(uuid.New())
	proposal := &models.Proposal{
		ID:           uuid.New(),
		ProjectID:    project.ID,
		FreelancerID: uuid.New(),
		Status:       models.ProposalStatusPending,
	}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	projects.On("GetProposalByID", ctx, proposal.ID).Return(proposal, nil)

	_, err := engine.DecideProposal(ctx, project.ID, proposal.ID, models.ProposalStatusAccepted, Actor{ID: proposal.FreelancerID, Role: models.RoleFreelancer})

	var appErr *apperror.AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.ErrCodeForbidden, appErr.Code)
}

func TestEngine_DecideProposal_ProposalFromAnotherProject(t *testing.T) {
	projects := new(mockProjectStore)
	profiles := new(mockProfileStore)
	engine := NewEngine(projects, profiles, nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	project := openProject(clientID)
	proposal := &models.Proposal{
		ID:           uuid.New(),
		ProjectID:    uuid.New(), // чужой проект
		FreelancerID: uuid.New(),
		Status:       models.ProposalStatusPending,
	}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	projects.On("GetProposalByID", ctx, proposal.ID).Return(proposal, nil)

	_, err := engine.DecideProposal(ctx, project.ID, proposal.ID, models.ProposalStatusRejected, Actor{ID: clientID, Role: models.RoleClient})

	assert.ErrorIs(t, err, apperror.ErrProposalNotFound)
}

func TestEngine_ChangeProjectStatus_CompletedUpdatesStats(t *testing.T) {
	projects := new(mockProjectStore)
	profiles := new(mockProfileStore)
	engine := NewEngine(projects, profiles, nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	project := openProject(clientID)
	project.Status = models.ProjectStatusInReview
	project.SelectedFreelancerID = &freelancerID
	project.Budget.Paid = 80000

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	projects.On("SetProjectStatus", ctx, project.ID, models.ProjectStatusCompleted).Return(nil)
	profiles.On("AdjustFreelancerStats", ctx, freelancerID, models.FreelancerStats{
		OngoingProjects:   -1,
		CompletedProjects: 1,
		TotalEarnings:     80000,
	}).Return(nil)
	profiles.On("AdjustClientStats", ctx, clientID, models.ClientStats{
		ActiveProjects:    -1,
		CompletedProjects: 1,
	}).Return(nil)
	projects.On("GetWithDetails", ctx, project.ID).Return(project, nil)

	_, err := engine.ChangeProjectStatus(ctx, project.ID, models.ProjectStatusCompleted, Actor{ID: clientID, Role: models.RoleClient})

	assert.NoError(t, err)
	projects.AssertExpectations(t)
	profiles.AssertExpectations(t)
}

func TestEngine_ChangeProjectStatus_DirectInProgressDenied(t *testing.T) {
	projects := new(mockProjectStore)
	profiles := new(mockProfileStore)
	engine := NewEngine(projects, profiles, nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	project := openProject(clientID)

	projects.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := engine.ChangeProjectStatus(ctx, project.ID, models.ProjectStatusInProgress, Actor{ID: clientID, Role: models.RoleClient})

	assert.True(t, apperror.IsInvalidTransition(err))
	projects.AssertNotCalled(t, "SetProjectStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_ChangeProjectStatus_CancelledRejectsPending(t *testing.T) {
	projects := new(mockProjectStore)
	profiles := new(mockProfileStore)
	escrows := new(mockEscrowStore)
	engine := NewEngine(projects, profiles, escrows, nil)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	project := openProject(clientID)
	project.Status = models.ProjectStatusInProgress
	project.SelectedFreelancerID = &freelancerID

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	projects.On("SetProjectStatus", ctx, project.ID, models.ProjectStatusCancelled).Return(nil)
	projects.On("RejectPendingProposals", ctx, project.ID, uuid.Nil).Return(nil)
	profiles.On("AdjustFreelancerStats", ctx, freelancerID, models.FreelancerStats{OngoingProjects: -1}).Return(nil)
	profiles.On("AdjustClientStats", ctx, clientID, models.ClientStats{ActiveProjects: -1}).Return(nil)
	projects.On("ClearSelectedFreelancer", ctx, project.ID).Return(nil)
	escrows.On("RefundByProject", ctx, project.ID).Return(nil)
	projects.On("GetWithDetails", ctx, project.ID).Return(project, nil)

	_, err := engine.ChangeProjectStatus(ctx, project.ID, models.ProjectStatusCancelled, Actor{ID: clientID, Role: models.RoleClient})

	assert.NoError(t, err)
	projects.AssertExpectations(t)
	escrows.AssertExpectations(t)
}

func TestEngine_ChangeMilestoneStatus_ApproveCascade(t *testing.T) {
	projects := new(mockProjectStore)
	profiles := new(mockProfileStore)
	escrows := new(mockEscrowStore)
	engine := NewEngine(projects, profiles, escrows, nil)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	project := openProject(clientID)
	project.Status = models.ProjectStatusInProgress
	project.SelectedFreelancerID = &freelancerID
	project.Budget.Pending = 30000

	milestone := &models.Milestone{
		ID:        uuid.New(),
		ProjectID: project.ID,
		Amount:    30000,
		Status:    models.MilestoneStatusCompleted,
	}
	approved := &models.Milestone{
		ID:        milestone.ID,
		ProjectID: project.ID,
		Amount:    30000,
		Status:    models.MilestoneStatusApproved,
	}
	all := []models.Milestone{
		*approved,
		{ID: uuid.New(), ProjectID: project.ID, Status: models.MilestoneStatusInProgress},
	}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	projects.On("GetMilestoneByID", ctx, milestone.ID).Return(milestone, nil).Once()
	projects.On("SetMilestoneStatus", ctx, milestone.ID, models.MilestoneStatusApproved).Return(nil)
	projects.On("AdjustBudget", ctx, project.ID, 30000.0, -30000.0).Return(nil)
	profiles.On("AdjustClientStats", ctx, clientID, models.ClientStats{TotalSpent: 30000}).Return(nil)
	escrows.On("ReleaseByMilestone", ctx, milestone.ID).Return(nil)
	projects.On("ListMilestones", ctx, project.ID).Return(all, nil)
	projects.On("SetProgressPercent", ctx, project.ID, 50).Return(nil)
	projects.On("GetMilestoneByID", ctx, milestone.ID).Return(approved, nil).Once()

	updated, progress, err := engine.ChangeMilestoneStatus(ctx, project.ID, milestone.ID, models.MilestoneStatusApproved, Actor{ID: clientID, Role: models.RoleClient})

	assert.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusApproved, updated.Status)
	assert.Equal(t, 50, progress)
	projects.AssertExpectations(t)
	profiles.AssertExpectations(t)
	escrows.AssertExpectations(t)
}

func TestEngine_ChangeMilestoneStatus_EnvelopeExceeded(t *testing.T) {
	projects := new(mockProjectStore)
	profiles := new(mockProfileStore)
	engine := NewEngine(projects, profiles, nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	project := openProject(clientID)
	project.Status = models.ProjectStatusInProgress
	project.SelectedFreelancerID = &freelancerID
	project.Budget.Paid = 60000
	project.Budget.Pending = 30000

	milestone := &models.Milestone{
		ID:        uuid.New(),
		ProjectID: project.ID,
		Amount:    20000, // 60000 + 30000 + 20000 > 100000
		Status:    models.MilestoneStatusInProgress,
	}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	projects.On("GetMilestoneByID", ctx, milestone.ID).Return(milestone, nil)

	_, _, err := engine.ChangeMilestoneStatus(ctx, project.ID, milestone.ID, models.MilestoneStatusCompleted, Actor{ID: freelancerID, Role: models.RoleFreelancer})

	var appErr *apperror.AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.ErrCodeValidation, appErr.Code)
	projects.AssertNotCalled(t, "SetMilestoneStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_PartialApply(t *testing.T) {
	projects := new(mockProjectStore)
	profiles := new(mockProfileStore)
	engine := NewEngine(projects, profiles, nil, nil)
	engine.SetRetryPolicy(1, time.Millisecond)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	project := openProject(clientID)
	project.Status = models.ProjectStatusInReview
	project.SelectedFreelancerID = &freelancerID

	dbErr := errors.New("connection reset")
	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	projects.On("SetProjectStatus", ctx, project.ID, models.ProjectStatusCompleted).Return(nil)
	profiles.On("AdjustFreelancerStats", ctx, freelancerID, mock.Anything).Return(dbErr)

	_, err := engine.ChangeProjectStatus(ctx, project.ID, models.ProjectStatusCompleted, Actor{ID: clientID, Role: models.RoleClient})

	assert.True(t, apperror.IsPartialApply(err))

	var partial *PartialApplyError
	assert.True(t, errors.As(err, &partial))
	assert.Equal(t, "freelancer_stats", partial.Step)
	assert.ErrorIs(t, partial, dbErr)

	// До упавшего шага каскад применился, шаг повторялся по бюджету.
	projects.AssertCalled(t, "SetProjectStatus", ctx, project.ID, models.ProjectStatusCompleted)
	profiles.AssertNumberOfCalls(t, "AdjustFreelancerStats", 2)
	profiles.AssertNotCalled(t, "AdjustClientStats", mock.Anything, mock.Anything, mock.Anything)
}
