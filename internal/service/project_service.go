package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/workhub/backend/internal/domain/valueobject"
	"github.com/workhub/backend/internal/goroutine"
	"github.com/workhub/backend/internal/lifecycle"
	"github.com/workhub/backend/internal/logger"
	"github.com/workhub/backend/internal/models"
	"github.com/workhub/backend/internal/pkg/apperror"
	"github.com/workhub/backend/internal/repository"
	"github.com/workhub/backend/internal/repository/common"
	"github.com/workhub/backend/internal/validation"
)

// ProjectRepo описывает зависимости ProjectService от слоя хранилища.
type ProjectRepo interface {
	Create(ctx context.Context, project *models.Project, skills []models.RequiredSkill) error
	Update(ctx context.Context, project *models.Project, skills []models.RequiredSkill) error
	Delete(ctx context.Context, id, clientID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetWithDetails(ctx context.Context, id uuid.UUID) (*models.Project, error)
	List(ctx context.Context, params repository.ListFilterParams) (*repository.ListResult, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.Project, error)
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Project, error)
	CreateProposal(ctx context.Context, proposal *models.Proposal) error
	GetProposalByFreelancer(ctx context.Context, projectID, freelancerID uuid.UUID) (*models.Proposal, error)
	ListProposals(ctx context.Context, projectID uuid.UUID) ([]models.Proposal, error)
	ListMyProposals(ctx context.Context, freelancerID uuid.UUID) ([]models.Proposal, error)
	CreateMilestone(ctx context.Context, milestone *models.Milestone) error
	ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error)
}

// FreelancerStatsAdjuster инкрементирует счётчики фрилансера вне каскадов.
type FreelancerStatsAdjuster interface {
	AdjustFreelancerStats(ctx context.Context, userID uuid.UUID, delta models.FreelancerStats) error
}

// ProjectInput содержит данные создания или редактирования проекта.
type ProjectInput struct {
	Title       string
	Description string
	BudgetType  string
	Currency    string
	BudgetMin   float64
	BudgetMax   float64
	DeadlineAt  *time.Time
	Skills      []models.RequiredSkill
}

// MilestoneInput содержит данные создания этапа.
type MilestoneInput struct {
	Title   string
	Amount  float64
	DueDate *time.Time
}

// ProjectService — прикладной фасад над проектами: CRUD своими силами,
// все смены статусов — через движок жизненного цикла.
type ProjectService struct {
	repo     ProjectRepo
	profiles FreelancerStatsAdjuster
	engine   *lifecycle.Engine
	cache    *CacheService
	sink     lifecycle.EventSink // может быть nil
}

// NewProjectService создаёт сервис проектов.
func NewProjectService(repo ProjectRepo, profiles FreelancerStatsAdjuster, engine *lifecycle.Engine, cache *CacheService, sink lifecycle.EventSink) *ProjectService {
	return &ProjectService{
		repo:     repo,
		profiles: profiles,
		engine:   engine,
		cache:    cache,
		sink:     sink,
	}
}

// CreateProject создаёт черновик проекта.
func (s *ProjectService) CreateProject(ctx context.Context, clientID uuid.UUID, in ProjectInput) (*models.Project, error) {
	if err := s.validateProjectInput(in); err != nil {
		return nil, err
	}

	project := &models.Project{
		ID:          uuid.New(),
		ClientID:    clientID,
		Title:       in.Title,
		Description: in.Description,
		Budget: models.Budget{
			Type:      in.BudgetType,
			Currency:  in.Currency,
			MinAmount: in.BudgetMin,
			MaxAmount: in.BudgetMax,
		},
		Status:     models.ProjectStatusDraft,
		DeadlineAt: in.DeadlineAt,
	}

	if err := s.repo.Create(ctx, project, in.Skills); err != nil {
		return nil, err
	}
	project.Skills = in.Skills

	return project, nil
}

// GetProject возвращает проект с деталями. Чужие предложения видят
// только владелец и администратор, фрилансер видит своё.
func (s *ProjectService) GetProject(ctx context.Context, id uuid.UUID, actor lifecycle.Actor) (*models.Project, error) {
	project, err := s.repo.GetWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	if project.Status == models.ProjectStatusDraft && project.ClientID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, apperror.ErrProjectNotFound
	}

	if project.ClientID != actor.ID && actor.Role != models.RoleAdmin {
		own := project.Proposals[:0]
		for _, p := range project.Proposals {
			if p.FreelancerID == actor.ID {
				own = append(own, p)
			}
		}
		project.Proposals = own
	}

	return project, nil
}

// UpdateProject редактирует проект владельца. После выбора исполнителя
// описание и бюджет заморожены.
func (s *ProjectService) UpdateProject(ctx context.Context, id uuid.UUID, actor lifecycle.Actor, in ProjectInput) (*models.Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.ClientID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	if project.Status != models.ProjectStatusDraft && project.Status != models.ProjectStatusOpen {
		return nil, apperror.New(apperror.ErrCodeConflict, "проект нельзя редактировать после выбора исполнителя")
	}
	if err := s.validateProjectInput(in); err != nil {
		return nil, err
	}

	project.Title = in.Title
	project.Description = in.Description
	project.Budget.Type = in.BudgetType
	project.Budget.Currency = in.Currency
	project.Budget.MinAmount = in.BudgetMin
	project.Budget.MaxAmount = in.BudgetMax
	project.DeadlineAt = in.DeadlineAt

	if err := s.repo.Update(ctx, project, in.Skills); err != nil {
		return nil, err
	}
	s.invalidateProject(ctx, project.ID)

	return s.repo.GetWithDetails(ctx, id)
}

// DeleteProject удаляет черновик владельца.
func (s *ProjectService) DeleteProject(ctx context.Context, id uuid.UUID, actor lifecycle.Actor) error {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if project.ClientID != actor.ID && actor.Role != models.RoleAdmin {
		return apperror.ErrForbidden
	}
	if project.Status != models.ProjectStatusDraft {
		return apperror.New(apperror.ErrCodeConflict, "удалить можно только черновик")
	}
	return s.repo.Delete(ctx, id, project.ClientID)
}

// ListProjects возвращает страницу проектов по фильтрам.
func (s *ProjectService) ListProjects(ctx context.Context, params repository.ListFilterParams) (*repository.ListResult, error) {
	return s.repo.List(ctx, params)
}

// ListMyProjects возвращает проекты клиента.
func (s *ProjectService) ListMyProjects(ctx context.Context, clientID uuid.UUID) ([]models.Project, error) {
	return s.repo.ListByClient(ctx, clientID)
}

// ListAssignedProjects возвращает проекты, где пользователь — исполнитель.
func (s *ProjectService) ListAssignedProjects(ctx context.Context, freelancerID uuid.UUID) ([]models.Project, error) {
	return s.repo.ListByFreelancer(ctx, freelancerID)
}

// PublishProject публикует черновик.
func (s *ProjectService) PublishProject(ctx context.Context, id uuid.UUID, actor lifecycle.Actor) (*models.Project, error) {
	return s.ChangeStatus(ctx, id, models.ProjectStatusOpen, actor)
}

// ChangeStatus делегирует смену статуса проекта движку.
func (s *ProjectService) ChangeStatus(ctx context.Context, id uuid.UUID, status string, actor lifecycle.Actor) (*models.Project, error) {
	project, err := s.engine.ChangeProjectStatus(ctx, id, status, actor)
	if err != nil {
		return nil, err
	}
	s.invalidateProject(ctx, id)
	s.cache.InvalidateUserCache(ctx, project.ClientID)
	if project.SelectedFreelancerID != nil {
		s.cache.InvalidateUserCache(ctx, *project.SelectedFreelancerID)
	}
	return project, nil
}

// SubmitProposal создаёт предложение фрилансера на открытый проект.
func (s *ProjectService) SubmitProposal(ctx context.Context, projectID, freelancerID uuid.UUID, amount float64, coverLetter string) (*models.Proposal, error) {
	if err := validation.ValidateProposalCoverLetter(coverLetter); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status != models.ProjectStatusOpen {
		return nil, apperror.New(apperror.ErrCodeConflict, "проект не принимает предложения")
	}
	if project.ClientID == freelancerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя откликнуться на собственный проект")
	}

	budget, err := valueobject.NewBudget(project.Budget.MinAmount, project.Budget.MaxAmount, project.Budget.Currency)
	if err != nil {
		return nil, err
	}
	if !budget.IsInRange(amount) {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "ставка должна попадать в бюджет %s", budget)
	}

	proposal := &models.Proposal{
		ID:           uuid.New(),
		ProjectID:    projectID,
		FreelancerID: freelancerID,
		Amount:       amount,
		CoverLetter:  coverLetter,
		Status:       models.ProposalStatusPending,
	}

	if err := s.repo.CreateProposal(ctx, proposal); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, apperror.New(apperror.ErrCodeConflict, "вы уже откликнулись на этот проект")
		}
		return nil, err
	}

	if err := s.profiles.AdjustFreelancerStats(ctx, freelancerID, models.FreelancerStats{TotalProposals: 1}); err != nil && logger.Log != nil {
		logger.Log.WithField("freelancer_id", freelancerID).WithError(err).Warn("project service: не удалось обновить счётчик предложений")
	}

	s.publish(ctx, lifecycle.Event{
		Type:       lifecycle.EventProposalSubmitted,
		ProjectID:  projectID,
		ProposalID: &proposal.ID,
		ActorID:    freelancerID,
		Recipients: []uuid.UUID{project.ClientID},
		ToStatus:   models.ProposalStatusPending,
		OccurredAt: time.Now(),
	})

	return proposal, nil
}

// WithdrawProposal отзывает предложение его автора.
func (s *ProjectService) WithdrawProposal(ctx context.Context, projectID, proposalID uuid.UUID, actor lifecycle.Actor) (*models.Project, error) {
	return s.DecideProposal(ctx, projectID, proposalID, models.ProposalStatusWithdrawn, actor)
}

// DecideProposal делегирует решение по предложению движку.
func (s *ProjectService) DecideProposal(ctx context.Context, projectID, proposalID uuid.UUID, decision string, actor lifecycle.Actor) (*models.Project, error) {
	project, err := s.engine.DecideProposal(ctx, projectID, proposalID, decision, actor)
	if err != nil {
		return nil, err
	}
	s.invalidateProject(ctx, projectID)
	s.cache.InvalidateUserCache(ctx, project.ClientID)
	return project, nil
}

// ListMyProposals возвращает предложения фрилансера.
func (s *ProjectService) ListMyProposals(ctx context.Context, freelancerID uuid.UUID) ([]models.Proposal, error) {
	return s.repo.ListMyProposals(ctx, freelancerID)
}

// CreateMilestone добавляет этап. Сумма этапов не должна превышать бюджет.
func (s *ProjectService) CreateMilestone(ctx context.Context, projectID uuid.UUID, actor lifecycle.Actor, in MilestoneInput) (*models.Milestone, error) {
	if err := validation.ValidateNonEmpty("название этапа", in.Title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.Amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма этапа должна быть положительной")
	}

	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.ClientID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	if valueobject.ProjectStatus(project.Status).IsTerminal() {
		return nil, apperror.New(apperror.ErrCodeConflict, "проект завершён, этапы добавить нельзя")
	}

	milestones, err := s.repo.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var planned float64
	for _, m := range milestones {
		planned += m.Amount
	}
	if planned+in.Amount > project.Budget.MaxAmount {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма этапов превышает бюджет проекта")
	}

	milestone := &models.Milestone{
		ID:        uuid.New(),
		ProjectID: projectID,
		Title:     in.Title,
		Amount:    in.Amount,
		DueDate:   in.DueDate,
		Status:    models.MilestoneStatusPending,
	}
	if err := s.repo.CreateMilestone(ctx, milestone); err != nil {
		return nil, err
	}
	s.invalidateProject(ctx, projectID)

	return milestone, nil
}

// ListMilestones возвращает этапы проекта.
func (s *ProjectService) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error) {
	return s.repo.ListMilestones(ctx, projectID)
}

// ChangeMilestoneStatus делегирует смену статуса этапа движку.
func (s *ProjectService) ChangeMilestoneStatus(ctx context.Context, projectID, milestoneID uuid.UUID, status string, actor lifecycle.Actor) (*models.Milestone, int, error) {
	milestone, progress, err := s.engine.ChangeMilestoneStatus(ctx, projectID, milestoneID, status, actor)
	if err != nil {
		return nil, 0, err
	}
	s.invalidateProject(ctx, projectID)
	return milestone, progress, nil
}

func (s *ProjectService) validateProjectInput(in ProjectInput) error {
	if err := validation.ValidateProjectTitle(in.Title); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateProjectDescription(in.Description); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if _, ok := models.ValidBudgetTypes[in.BudgetType]; !ok {
		return apperror.New(apperror.ErrCodeValidation, "недопустимый тип бюджета")
	}
	if _, err := valueobject.NewBudget(in.BudgetMin, in.BudgetMax, in.Currency); err != nil {
		return err
	}
	for _, skill := range in.Skills {
		if err := validation.ValidateRequirementSkill(skill.Skill); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}
	return nil
}

func (s *ProjectService) invalidateProject(ctx context.Context, projectID uuid.UUID) {
	if s.cache != nil {
		s.cache.InvalidateProjectCache(ctx, projectID)
	}
}

func (s *ProjectService) publish(ctx context.Context, event lifecycle.Event) {
	if s.sink == nil {
		return
	}
	sink := s.sink
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		if err := sink.Publish(ctx, event); err != nil && logger.Log != nil {
			logger.Log.WithError(err).Warn("project service: не удалось опубликовать событие")
		}
	})
}
