package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/workhub/backend/internal/goroutine"
	"github.com/workhub/backend/internal/logger"
	"github.com/workhub/backend/internal/metrics"
	"github.com/workhub/backend/internal/models"
	"github.com/workhub/backend/internal/pkg/apperror"
)

// Actor — аутентифицированный инициатор перехода.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// ProjectStore — операции хранилища, нужные движку. Каждая запись
// идемпотентна: статусы пишутся абсолютным значением, счётчики —
// атомарными инкрементами, назначение исполнителя — условной записью.
type ProjectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetWithDetails(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetProposalByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	GetMilestoneByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error)

	// AssignFreelancer выполняет условную запись: назначает исполнителя только
	// если он ещё не назначен. Проигравший гонку получает ErrAlreadyAssigned.
	AssignFreelancer(ctx context.Context, projectID, freelancerID uuid.UUID) error
	ClearSelectedFreelancer(ctx context.Context, projectID uuid.UUID) error
	SetProjectStatus(ctx context.Context, id uuid.UUID, status string) error
	SetProposalStatus(ctx context.Context, id uuid.UUID, status string) error
	RejectPendingProposals(ctx context.Context, projectID uuid.UUID, exceptID uuid.UUID) error
	SetMilestoneStatus(ctx context.Context, id uuid.UUID, status string) error
	SetProgressPercent(ctx context.Context, projectID uuid.UUID, percent int) error
	AdjustBudget(ctx context.Context, projectID uuid.UUID, paidDelta, pendingDelta float64) error
}

// ProfileStore — атомарные инкременты статистики профилей.
// Поля дельты со знаком; нулевые поля не трогаются.
type ProfileStore interface {
	AdjustClientStats(ctx context.Context, userID uuid.UUID, delta models.ClientStats) error
	AdjustFreelancerStats(ctx context.Context, userID uuid.UUID, delta models.FreelancerStats) error
}

// EscrowStore — опциональная интеграция с платежами этапов.
type EscrowStore interface {
	HoldForMilestone(ctx context.Context, project *models.Project, milestone *models.Milestone) (*models.Escrow, error)
	ReleaseByMilestone(ctx context.Context, milestoneID uuid.UUID) error
	RefundByProject(ctx context.Context, projectID uuid.UUID) error
}

// PartialApplyError сигнализирует, что первичная запись прошла, но один из
// шагов каскада не удался после исчерпания бюджета повторов. Повторная
// отправка той же операции безопасна: все шаги идемпотентны.
type PartialApplyError struct {
	Op    string
	Step  string
	Cause error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("%s: шаг каскада %q не выполнен: %v", e.Op, e.Step, e.Cause)
}

func (e *PartialApplyError) Unwrap() error {
	return e.Cause
}

// Engine оркестрирует переходы: проверяет их валидатором, применяет
// первичную запись и выполняет каскад побочных записей упорядоченной
// последовательностью идемпотентных операций.
type Engine struct {
	projects ProjectStore
	profiles ProfileStore
	escrows  EscrowStore // может быть nil
	sink     EventSink   // может быть nil

	maxStepRetries int
	retryBase      time.Duration
}

// NewEngine создаёт движок. escrows и sink могут быть nil.
func NewEngine(projects ProjectStore, profiles ProfileStore, escrows EscrowStore, sink EventSink) *Engine {
	return &Engine{
		projects:       projects,
		profiles:       profiles,
		escrows:        escrows,
		sink:           sink,
		maxStepRetries: 3,
		retryBase:      50 * time.Millisecond,
	}
}

// SetRetryPolicy задаёт бюджет повторов шага каскада.
func (e *Engine) SetRetryPolicy(maxRetries int, base time.Duration) {
	if maxRetries >= 0 {
		e.maxStepRetries = maxRetries
	}
	if base > 0 {
		e.retryBase = base
	}
}

// DecideProposal применяет решение по предложению: accepted, rejected,
// shortlisted или withdrawn. Принятие каскадно отклоняет остальные
// ожидающие предложения, переводит проект в работу и обновляет статистику.
func (e *Engine) DecideProposal(ctx context.Context, projectID, proposalID uuid.UUID, decision string, actor Actor) (*models.Project, error) {
	project, err := e.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	proposal, err := e.projects.GetProposalByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.ProjectID != projectID {
		return nil, apperror.ErrProposalNotFound
	}

	relation := relationToProposal(project, proposal, actor)
	if d := CanTransition(KindProposal, proposal.Status, decision, actor.Role, relation); !d.Allowed {
		return nil, denialError(KindProposal, d)
	}

	switch decision {
	case models.ProposalStatusAccepted:
		return e.acceptProposal(ctx, project, proposal, actor)

	case models.ProposalStatusRejected, models.ProposalStatusShortlisted, models.ProposalStatusWithdrawn:
		if err := e.projects.SetProposalStatus(ctx, proposal.ID, decision); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить статус предложения")
		}
		metrics.TransitionsTotal.WithLabelValues(string(KindProposal), decision).Inc()
		e.publish(ctx, Event{
			Type:       proposalEventType(decision),
			ProjectID:  project.ID,
			ProposalID: &proposal.ID,
			ActorID:    actor.ID,
			Recipients: proposalEventRecipients(project, proposal, actor),
			FromStatus: proposal.Status,
			ToStatus:   decision,
			OccurredAt: time.Now(),
		})
		return e.projects.GetWithDetails(ctx, project.ID)

	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректное решение по предложению")
	}
}

// acceptProposal — каскад принятия: условное назначение исполнителя (CAS),
// затем упорядоченные идемпотентные записи.
func (e *Engine) acceptProposal(ctx context.Context, project *models.Project, proposal *models.Proposal, actor Actor) (*models.Project, error) {
	// Принятие допустимо только когда сам проект может перейти в работу.
	if d := CanTransition(KindProject, project.Status, models.ProjectStatusInProgress, actor.Role, relationToProject(project, actor)); !d.Allowed {
		return nil, denialError(KindProject, d)
	}

	// Единственность принятия гарантирует движок, а не хранилище:
	// сперва быстрая проверка, затем условная запись, выигрываемая
	// ровно одним из конкурирующих запросов.
	if project.SelectedFreelancerID != nil {
		return nil, apperror.ErrAlreadyAssigned
	}
	if err := e.projects.AssignFreelancer(ctx, project.ID, proposal.FreelancerID); err != nil {
		return nil, err
	}

	op := fmt.Sprintf("принятие предложения %s", proposal.ID)
	err := e.runCascade(ctx, op, []cascadeStep{
		{"accept_proposal", func(ctx context.Context) error {
			return e.projects.SetProposalStatus(ctx, proposal.ID, models.ProposalStatusAccepted)
		}},
		{"reject_siblings", func(ctx context.Context) error {
			return e.projects.RejectPendingProposals(ctx, project.ID, proposal.ID)
		}},
		{"project_in_progress", func(ctx context.Context) error {
			return e.projects.SetProjectStatus(ctx, project.ID, models.ProjectStatusInProgress)
		}},
		{"freelancer_stats", func(ctx context.Context) error {
			return e.profiles.AdjustFreelancerStats(ctx, proposal.FreelancerID, models.FreelancerStats{OngoingProjects: 1})
		}},
		{"client_stats", func(ctx context.Context) error {
			return e.profiles.AdjustClientStats(ctx, project.ClientID, models.ClientStats{ActiveProjects: 1, TotalFreelancersHired: 1})
		}},
	})
	if err != nil {
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(KindProposal), models.ProposalStatusAccepted).Inc()
	metrics.TransitionsTotal.WithLabelValues(string(KindProject), models.ProjectStatusInProgress).Inc()

	e.publish(ctx, Event{
		Type:       EventProposalAccepted,
		ProjectID:  project.ID,
		ProposalID: &proposal.ID,
		ActorID:    actor.ID,
		Recipients: proposalEventRecipients(project, proposal, actor),
		FromStatus: proposal.Status,
		ToStatus:   models.ProposalStatusAccepted,
		OccurredAt: time.Now(),
	})

	return e.projects.GetWithDetails(ctx, project.ID)
}

// ChangeProjectStatus применяет запрошенный статус проекта с каскадом
// побочных записей (отклонение ожидающих предложений, статистика, возвраты).
func (e *Engine) ChangeProjectStatus(ctx context.Context, projectID uuid.UUID, requested string, actor Actor) (*models.Project, error) {
	project, err := e.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	relation := relationToProject(project, actor)
	if d := CanTransition(KindProject, project.Status, requested, actor.Role, relation); !d.Allowed {
		return nil, denialError(KindProject, d)
	}

	// Перевод в работу выполняется только принятием предложения: прямой
	// запрос нарушил бы инвариант назначенного исполнителя.
	if requested == models.ProjectStatusInProgress {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition,
			"проект переводится в работу принятием предложения, а не сменой статуса")
	}

	steps := []cascadeStep{
		{"project_status", func(ctx context.Context) error {
			return e.projects.SetProjectStatus(ctx, project.ID, requested)
		}},
	}

	switch requested {
	case models.ProjectStatusOpen:
		steps = append(steps, cascadeStep{"client_total_projects", func(ctx context.Context) error {
			return e.profiles.AdjustClientStats(ctx, project.ClientID, models.ClientStats{TotalProjects: 1})
		}})

	case models.ProjectStatusCompleted:
		if project.SelectedFreelancerID != nil {
			freelancerID := *project.SelectedFreelancerID
			paid := project.Budget.Paid
			steps = append(steps,
				cascadeStep{"freelancer_stats", func(ctx context.Context) error {
					return e.profiles.AdjustFreelancerStats(ctx, freelancerID, models.FreelancerStats{
						OngoingProjects:   -1,
						CompletedProjects: 1,
						TotalEarnings:     paid,
					})
				}},
				cascadeStep{"client_stats", func(ctx context.Context) error {
					return e.profiles.AdjustClientStats(ctx, project.ClientID, models.ClientStats{
						ActiveProjects:    -1,
						CompletedProjects: 1,
					})
				}},
			)
		}

	case models.ProjectStatusCancelled:
		steps = append(steps, cascadeStep{"reject_pending", func(ctx context.Context) error {
			return e.projects.RejectPendingProposals(ctx, project.ID, uuid.Nil)
		}})
		if project.SelectedFreelancerID != nil {
			freelancerID := *project.SelectedFreelancerID
			steps = append(steps,
				cascadeStep{"freelancer_stats", func(ctx context.Context) error {
					return e.profiles.AdjustFreelancerStats(ctx, freelancerID, models.FreelancerStats{OngoingProjects: -1})
				}},
				cascadeStep{"client_stats", func(ctx context.Context) error {
					return e.profiles.AdjustClientStats(ctx, project.ClientID, models.ClientStats{ActiveProjects: -1})
				}},
				// Отменённый проект не относится к активным статусам,
				// поэтому ссылка на исполнителя снимается.
				cascadeStep{"clear_freelancer", func(ctx context.Context) error {
					return e.projects.ClearSelectedFreelancer(ctx, project.ID)
				}},
			)
			if e.escrows != nil {
				steps = append(steps, cascadeStep{"refund_escrows", func(ctx context.Context) error {
					return e.escrows.RefundByProject(ctx, project.ID)
				}})
			}
		}
	}

	if err := e.runCascade(ctx, fmt.Sprintf("смена статуса проекта %s", project.ID), steps); err != nil {
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(KindProject), requested).Inc()

	e.publish(ctx, Event{
		Type:       EventProjectStatusChanged,
		ProjectID:  project.ID,
		ActorID:    actor.ID,
		Recipients: projectEventRecipients(project, actor),
		FromStatus: project.Status,
		ToStatus:   requested,
		OccurredAt: time.Now(),
	})

	return e.projects.GetWithDetails(ctx, project.ID)
}

// ChangeMilestoneStatus применяет статус этапа, корректирует бюджетный
// конверт и синхронно пересчитывает прогресс проекта: UI читает процент
// сразу после ответа, устаревшее значение недопустимо.
func (e *Engine) ChangeMilestoneStatus(ctx context.Context, projectID, milestoneID uuid.UUID, requested string, actor Actor) (*models.Milestone, int, error) {
	project, err := e.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}

	milestone, err := e.projects.GetMilestoneByID(ctx, milestoneID)
	if err != nil {
		return nil, 0, err
	}
	if milestone.ProjectID != projectID {
		return nil, 0, apperror.ErrMilestoneNotFound
	}

	relation := relationToProject(project, actor)
	if d := CanTransition(KindMilestone, milestone.Status, requested, actor.Role, relation); !d.Allowed {
		return nil, 0, denialError(KindMilestone, d)
	}

	// Конверт: paid + pending не должны превысить верхнюю границу бюджета.
	if requested == models.MilestoneStatusCompleted &&
		project.Budget.Paid+project.Budget.Pending+milestone.Amount > project.Budget.MaxAmount {
		return nil, 0, apperror.New(apperror.ErrCodeValidation,
			"сумма этапов к оплате превышает бюджет проекта")
	}

	steps := []cascadeStep{
		{"milestone_status", func(ctx context.Context) error {
			return e.projects.SetMilestoneStatus(ctx, milestone.ID, requested)
		}},
	}

	switch requested {
	case models.MilestoneStatusInProgress:
		if milestone.Status == models.MilestoneStatusCompleted {
			// Этап возвращён в работу: ожидаемая оплата снимается.
			steps = append(steps, cascadeStep{"budget_pending", func(ctx context.Context) error {
				return e.projects.AdjustBudget(ctx, project.ID, 0, -milestone.Amount)
			}})
		} else if e.escrows != nil {
			steps = append(steps, cascadeStep{"escrow_hold", func(ctx context.Context) error {
				_, err := e.escrows.HoldForMilestone(ctx, project, milestone)
				return err
			}})
		}

	case models.MilestoneStatusCompleted:
		steps = append(steps, cascadeStep{"budget_pending", func(ctx context.Context) error {
			return e.projects.AdjustBudget(ctx, project.ID, 0, milestone.Amount)
		}})

	case models.MilestoneStatusApproved:
		steps = append(steps, cascadeStep{"budget_paid", func(ctx context.Context) error {
			return e.projects.AdjustBudget(ctx, project.ID, milestone.Amount, -milestone.Amount)
		}})
		steps = append(steps, cascadeStep{"client_spent", func(ctx context.Context) error {
			return e.profiles.AdjustClientStats(ctx, project.ClientID, models.ClientStats{TotalSpent: milestone.Amount})
		}})
		if e.escrows != nil {
			steps = append(steps, cascadeStep{"escrow_release", func(ctx context.Context) error {
				return e.escrows.ReleaseByMilestone(ctx, milestone.ID)
			}})
		}
	}

	// Прогресс пересчитывается в том же вызове, до ответа.
	var progress int
	steps = append(steps, cascadeStep{"recompute_progress", func(ctx context.Context) error {
		milestones, err := e.projects.ListMilestones(ctx, project.ID)
		if err != nil {
			return err
		}
		progress = RecomputeProgress(milestones)
		return e.projects.SetProgressPercent(ctx, project.ID, progress)
	}})

	if err := e.runCascade(ctx, fmt.Sprintf("смена статуса этапа %s", milestone.ID), steps); err != nil {
		return nil, 0, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(KindMilestone), requested).Inc()

	e.publish(ctx, Event{
		Type:        EventMilestoneStatusChanged,
		ProjectID:   project.ID,
		MilestoneID: &milestone.ID,
		ActorID:     actor.ID,
		Recipients:  projectEventRecipients(project, actor),
		FromStatus:  milestone.Status,
		ToStatus:    requested,
		OccurredAt:  time.Now(),
	})

	updated, err := e.projects.GetMilestoneByID(ctx, milestone.ID)
	if err != nil {
		return nil, 0, err
	}
	return updated, progress, nil
}

type cascadeStep struct {
	name string
	fn   func(ctx context.Context) error
}

// runCascade выполняет шаги по порядку. Упавший шаг повторяется с
// экспоненциальной паузой; после исчерпания бюджета операция завершается
// PartialApplyError — уже применённые шаги не откатываются, повторная
// отправка запроса сходится к тому же конечному состоянию.
func (e *Engine) runCascade(ctx context.Context, op string, steps []cascadeStep) error {
	for _, step := range steps {
		if err := e.runStep(ctx, step); err != nil {
			metrics.PartialAppliesTotal.Inc()
			partial := &PartialApplyError{Op: op, Step: step.name, Cause: err}
			if logger.Log != nil {
				logger.Log.WithField("step", step.name).WithError(err).Error("каскад применён частично")
			}
			return apperror.Wrap(partial, apperror.ErrCodePartialApply,
				"операция применена частично, повторите запрос")
		}
	}
	return nil
}

func (e *Engine) runStep(ctx context.Context, step cascadeStep) error {
	backoff := e.retryBase
	var err error
	for attempt := 0; attempt <= e.maxStepRetries; attempt++ {
		if attempt > 0 {
			metrics.CascadeRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = step.fn(ctx); err == nil {
			return nil
		}
	}
	return err
}

// publish отправляет событие в сток асинхронно, не блокируя ответ.
func (e *Engine) publish(ctx context.Context, event Event) {
	if e.sink == nil {
		return
	}
	sink := e.sink
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		if err := sink.Publish(ctx, event); err != nil && logger.Log != nil {
			logger.Log.WithError(err).Warn("не удалось опубликовать событие перехода")
		}
	})
}

func denialError(kind EntityKind, d Decision) error {
	metrics.DenialsTotal.WithLabelValues(string(kind), string(d.Reason)).Inc()
	if d.Reason == ReasonForbidden {
		return apperror.New(apperror.ErrCodeForbidden, d.Detail)
	}
	return apperror.New(apperror.ErrCodeInvalidTransition, d.Detail)
}

func relationToProject(project *models.Project, actor Actor) Relation {
	if actor.ID == project.ClientID {
		return RelationOwner
	}
	if project.SelectedFreelancerID != nil && actor.ID == *project.SelectedFreelancerID {
		return RelationAssigned
	}
	return RelationNone
}

func relationToProposal(project *models.Project, proposal *models.Proposal, actor Actor) Relation {
	if actor.ID == project.ClientID {
		return RelationOwner
	}
	if actor.ID == proposal.FreelancerID {
		return RelationProposer
	}
	return RelationNone
}

func proposalEventType(decision string) string {
	switch decision {
	case models.ProposalStatusRejected:
		return EventProposalRejected
	case models.ProposalStatusShortlisted:
		return EventProposalShortlisted
	case models.ProposalStatusWithdrawn:
		return EventProposalWithdrawn
	}
	return EventProposalAccepted
}

func proposalEventRecipients(project *models.Project, proposal *models.Proposal, actor Actor) []uuid.UUID {
	recipients := make([]uuid.UUID, 0, 2)
	if proposal.FreelancerID != actor.ID {
		recipients = append(recipients, proposal.FreelancerID)
	}
	if project.ClientID != actor.ID {
		recipients = append(recipients, project.ClientID)
	}
	return recipients
}

func projectEventRecipients(project *models.Project, actor Actor) []uuid.UUID {
	recipients := make([]uuid.UUID, 0, 2)
	if project.ClientID != actor.ID {
		recipients = append(recipients, project.ClientID)
	}
	if project.SelectedFreelancerID != nil && *project.SelectedFreelancerID != actor.ID {
		recipients = append(recipients, *project.SelectedFreelancerID)
	}
	return recipients
}
