package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/workhub/backend/internal/models"
	"github.com/workhub/backend/internal/pkg/apperror"
	"github.com/workhub/backend/internal/repository/common"
)

// ProjectRepository отвечает за работу с проектами, предложениями и этапами.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository создаёт новый экземпляр.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `
	id, client_id, title, description, budget_type, currency, budget_min, budget_max,
	budget_paid, budget_pending, status, selected_freelancer_id, progress_percent,
	rating_average, rating_count, deadline_at, created_at, updated_at
`

// GetByID возвращает проект по идентификатору.
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, fmt.Errorf("project repository: get by id %w", err)
	}
	return &project, nil
}

// GetWithDetails возвращает проект вместе с навыками, предложениями и этапами.
func (r *ProjectRepository) GetWithDetails(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	skillsQuery := `SELECT id, project_id, skill, level, priority FROM project_skills WHERE project_id = $1 ORDER BY skill`
	if err := r.db.SelectContext(ctx, &project.Skills, skillsQuery, id); err != nil {
		return nil, fmt.Errorf("project repository: get skills %w", err)
	}

	proposals, err := r.ListProposals(ctx, id)
	if err != nil {
		return nil, err
	}
	project.Proposals = proposals

	milestones, err := r.ListMilestones(ctx, id)
	if err != nil {
		return nil, err
	}
	project.Milestones = milestones

	return project, nil
}

// Create сохраняет проект и требуемые навыки в одной транзакции.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project, skills []models.RequiredSkill) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO projects (id, client_id, title, description, budget_type, currency, budget_min, budget_max, status, deadline_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, query,
			project.ID, project.ClientID, project.Title, project.Description,
			project.Budget.Type, project.Budget.Currency, project.Budget.MinAmount, project.Budget.MaxAmount,
			project.Status, project.DeadlineAt,
		).Scan(&project.CreatedAt, &project.UpdatedAt); err != nil {
			return fmt.Errorf("project repository: create %w", err)
		}

		if len(skills) == 0 {
			return nil
		}
		inserter := common.NewBatchInserter(tx,
			`INSERT INTO project_skills (id, project_id, skill, level, priority)`, 5, 100)
		for _, s := range skills {
			if err := inserter.Add(ctx, uuid.New(), project.ID, s.Skill, s.Level, s.Priority); err != nil {
				return fmt.Errorf("project repository: insert skills %w", err)
			}
		}
		return inserter.Flush(ctx)
	})
}

// Update обновляет редактируемые поля проекта и пересоздаёт навыки.
// Статус, бюджетные счётчики и исполнитель этим методом не меняются.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project, skills []models.RequiredSkill) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE projects
			SET title = $2, description = $3, budget_type = $4, currency = $5,
			    budget_min = $6, budget_max = $7, deadline_at = $8, updated_at = now()
			WHERE id = $1
		`
		res, err := tx.ExecContext(ctx, query,
			project.ID, project.Title, project.Description,
			project.Budget.Type, project.Budget.Currency, project.Budget.MinAmount, project.Budget.MaxAmount,
			project.DeadlineAt,
		)
		if err != nil {
			return fmt.Errorf("project repository: update %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.ErrProjectNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM project_skills WHERE project_id = $1`, project.ID); err != nil {
			return fmt.Errorf("project repository: delete skills %w", err)
		}
		if len(skills) == 0 {
			return nil
		}
		inserter := common.NewBatchInserter(tx,
			`INSERT INTO project_skills (id, project_id, skill, level, priority)`, 5, 100)
		for _, s := range skills {
			if err := inserter.Add(ctx, uuid.New(), project.ID, s.Skill, s.Level, s.Priority); err != nil {
				return fmt.Errorf("project repository: insert skills %w", err)
			}
		}
		return inserter.Flush(ctx)
	})
}

// Delete удаляет проект клиента. Используется только для черновиков.
func (r *ProjectRepository) Delete(ctx context.Context, id, clientID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM projects WHERE id = $1 AND client_id = $2 AND status = $3`,
		id, clientID, models.ProjectStatusDraft)
	if err != nil {
		return fmt.Errorf("project repository: delete %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.ErrProjectNotFound
	}
	return nil
}

// ListFilterParams параметры фильтрации и сортировки списка проектов.
type ListFilterParams struct {
	Status    string
	Search    string
	Skills    []string
	BudgetMin *float64
	BudgetMax *float64
	SortBy    string // "date", "budget", "proposals"
	SortOrder string // "asc", "desc"
	Limit     int
	Offset    int
}

// ListResult содержит список проектов и метаданные пагинации.
type ListResult struct {
	Projects []models.Project
	Total    int
	Limit    int
	Offset   int
	HasMore  bool
}

// List возвращает список проектов с пагинацией, фильтрацией и поиском.
func (r *ProjectRepository) List(ctx context.Context, params ListFilterParams) (*ListResult, error) {
	countQuery := `
		SELECT COUNT(DISTINCT p.id)
		FROM projects p
		LEFT JOIN project_skills ps ON p.id = ps.project_id
		WHERE 1=1
	`
	query := `
		SELECT DISTINCT p.*,
			COALESCE(proposal_counts.count, 0) as proposals_count
		FROM projects p
		LEFT JOIN project_skills ps ON p.id = ps.project_id
		LEFT JOIN (
			SELECT project_id, COUNT(*) as count
			FROM proposals
			GROUP BY project_id
		) proposal_counts ON p.id = proposal_counts.project_id
		WHERE 1=1
	`
	args := []interface{}{}
	argIndex := 1

	// Черновики видны только владельцу, в общей выдаче их нет.
	excludeClause := ` AND p.status <> 'draft'`
	query += excludeClause
	countQuery += excludeClause

	if params.Status != "" {
		clause := fmt.Sprintf(" AND p.status = $%d", argIndex)
		query += clause
		countQuery += clause
		args = append(args, params.Status)
		argIndex++
	} else {
		// По умолчанию показываем проекты, ещё открытые для предложений.
		clause := ` AND p.status = 'open'`
		query += clause
		countQuery += clause
	}

	if params.Search != "" {
		clause := fmt.Sprintf(" AND (p.title ILIKE $%d OR p.description ILIKE $%d)", argIndex, argIndex)
		query += clause
		countQuery += clause
		args = append(args, "%"+params.Search+"%")
		argIndex++
	}

	if len(params.Skills) > 0 {
		clause := fmt.Sprintf(" AND ps.skill = ANY($%d)", argIndex)
		query += clause
		countQuery += clause
		args = append(args, pq.Array(params.Skills))
		argIndex++
	}

	if params.BudgetMin != nil {
		clause := fmt.Sprintf(" AND p.budget_max >= $%d", argIndex)
		query += clause
		countQuery += clause
		args = append(args, *params.BudgetMin)
		argIndex++
	}
	if params.BudgetMax != nil {
		clause := fmt.Sprintf(" AND p.budget_min <= $%d", argIndex)
		query += clause
		countQuery += clause
		args = append(args, *params.BudgetMax)
		argIndex++
	}

	sortBy := params.SortBy
	if sortBy == "" {
		sortBy = "date"
	}
	sortOrder := params.SortOrder
	if sortOrder != "asc" {
		sortOrder = "desc"
	}

	switch sortBy {
	case "budget":
		query += fmt.Sprintf(" ORDER BY COALESCE(p.budget_min, p.budget_max, 0) %s", sortOrder)
	case "proposals":
		query += `
			ORDER BY (
				SELECT COUNT(*) FROM proposals pr WHERE pr.project_id = p.id
			) ` + sortOrder
	default: // "date"
		query += fmt.Sprintf(" ORDER BY p.created_at %s", sortOrder)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, fmt.Errorf("project repository: count %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, fmt.Errorf("project repository: list %w", err)
	}

	return &ListResult{
		Projects: projects,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
		HasMore:  offset+len(projects) < total,
	}, nil
}

// ListByClient возвращает все проекты клиента, включая черновики.
func (r *ProjectRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.Project, error) {
	query := `
		SELECT p.*, COALESCE(proposal_counts.count, 0) as proposals_count
		FROM projects p
		LEFT JOIN (
			SELECT project_id, COUNT(*) as count
			FROM proposals
			GROUP BY project_id
		) proposal_counts ON p.id = proposal_counts.project_id
		WHERE p.client_id = $1
		ORDER BY p.created_at DESC
	`
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, clientID); err != nil {
		return nil, fmt.Errorf("project repository: list by client %w", err)
	}
	return projects, nil
}

// ListByFreelancer возвращает проекты, где пользователь выбран исполнителем.
func (r *ProjectRepository) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE selected_freelancer_id = $1 ORDER BY created_at DESC`
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, freelancerID); err != nil {
		return nil, fmt.Errorf("project repository: list by freelancer %w", err)
	}
	return projects, nil
}

// AssignFreelancer назначает исполнителя условной записью: проходит только
// если исполнитель ещё не выбран. Гонку конкурирующих принятий выигрывает
// ровно один запрос, остальные получают ErrAlreadyAssigned.
func (r *ProjectRepository) AssignFreelancer(ctx context.Context, projectID, freelancerID uuid.UUID) error {
	query := `
		UPDATE projects
		SET selected_freelancer_id = $2, updated_at = now()
		WHERE id = $1 AND selected_freelancer_id IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, projectID, freelancerID)
	if err != nil {
		return fmt.Errorf("project repository: assign freelancer %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.ErrAlreadyAssigned
	}
	return nil
}

// ClearSelectedFreelancer снимает исполнителя с проекта.
func (r *ProjectRepository) ClearSelectedFreelancer(ctx context.Context, projectID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE projects SET selected_freelancer_id = NULL, updated_at = now() WHERE id = $1`,
		projectID); err != nil {
		return fmt.Errorf("project repository: clear freelancer %w", err)
	}
	return nil
}

// SetProjectStatus пишет статус абсолютным значением, повтор безопасен.
func (r *ProjectRepository) SetProjectStatus(ctx context.Context, id uuid.UUID, status string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE projects SET status = $2, updated_at = now() WHERE id = $1`,
		id, status); err != nil {
		return fmt.Errorf("project repository: set status %w", err)
	}
	return nil
}

// SetProgressPercent пишет пересчитанный прогресс проекта.
func (r *ProjectRepository) SetProgressPercent(ctx context.Context, projectID uuid.UUID, percent int) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE projects SET progress_percent = $2, updated_at = now() WHERE id = $1`,
		projectID, percent); err != nil {
		return fmt.Errorf("project repository: set progress %w", err)
	}
	return nil
}

// AdjustBudget атомарно сдвигает оплаченную и ожидаемую части конверта.
// Значения зажимаются снизу нулём, чтобы повтор шага не уводил их в минус.
func (r *ProjectRepository) AdjustBudget(ctx context.Context, projectID uuid.UUID, paidDelta, pendingDelta float64) error {
	query := `
		UPDATE projects
		SET budget_paid = GREATEST(budget_paid + $2, 0),
		    budget_pending = GREATEST(budget_pending + $3, 0),
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, projectID, paidDelta, pendingDelta); err != nil {
		return fmt.Errorf("project repository: adjust budget %w", err)
	}
	return nil
}

// SetProjectRating пишет пересчитанный рейтинг проекта.
func (r *ProjectRepository) SetProjectRating(ctx context.Context, projectID uuid.UUID, rating models.Rating) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE projects SET rating_average = $2, rating_count = $3, updated_at = now() WHERE id = $1`,
		projectID, rating.Average, rating.Count); err != nil {
		return fmt.Errorf("project repository: set rating %w", err)
	}
	return nil
}

// CreateProposal сохраняет предложение. На пару проект+фрилансер действует
// уникальный индекс, дубликат превращается в ErrAlreadyExists.
func (r *ProjectRepository) CreateProposal(ctx context.Context, proposal *models.Proposal) error {
	query := `
		INSERT INTO proposals (id, project_id, freelancer_id, amount, cover_letter, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		proposal.ID, proposal.ProjectID, proposal.FreelancerID,
		proposal.Amount, proposal.CoverLetter, proposal.Status,
	).Scan(&proposal.CreatedAt, &proposal.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("project repository: create proposal %w", err)
	}
	return nil
}

// GetProposalByID возвращает предложение по идентификатору.
func (r *ProjectRepository) GetProposalByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return common.GetByID[models.Proposal](ctx, r.db, "proposals", id, apperror.ErrProposalNotFound)
}

// GetProposalByFreelancer возвращает предложение фрилансера на проект, если есть.
func (r *ProjectRepository) GetProposalByFreelancer(ctx context.Context, projectID, freelancerID uuid.UUID) (*models.Proposal, error) {
	var proposal models.Proposal
	query := `SELECT * FROM proposals WHERE project_id = $1 AND freelancer_id = $2`
	if err := r.db.GetContext(ctx, &proposal, query, projectID, freelancerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.ErrProposalNotFound
		}
		return nil, fmt.Errorf("project repository: get proposal by freelancer %w", err)
	}
	return &proposal, nil
}

// ListProposals возвращает предложения проекта от новых к старым.
func (r *ProjectRepository) ListProposals(ctx context.Context, projectID uuid.UUID) ([]models.Proposal, error) {
	var proposals []models.Proposal
	query := `SELECT * FROM proposals WHERE project_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &proposals, query, projectID); err != nil {
		return nil, fmt.Errorf("project repository: list proposals %w", err)
	}
	return proposals, nil
}

// ListMyProposals возвращает все предложения фрилансера.
func (r *ProjectRepository) ListMyProposals(ctx context.Context, freelancerID uuid.UUID) ([]models.Proposal, error) {
	var proposals []models.Proposal
	query := `SELECT * FROM proposals WHERE freelancer_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &proposals, query, freelancerID); err != nil {
		return nil, fmt.Errorf("project repository: list my proposals %w", err)
	}
	return proposals, nil
}

// SetProposalStatus пишет статус предложения абсолютным значением.
func (r *ProjectRepository) SetProposalStatus(ctx context.Context, id uuid.UUID, status string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE proposals SET status = $2, updated_at = now() WHERE id = $1`,
		id, status); err != nil {
		return fmt.Errorf("project repository: set proposal status %w", err)
	}
	return nil
}

// RejectPendingProposals отклоняет все нерешённые предложения проекта,
// кроме указанного. Повторный вызов ничего не меняет.
func (r *ProjectRepository) RejectPendingProposals(ctx context.Context, projectID uuid.UUID, exceptID uuid.UUID) error {
	query := `
		UPDATE proposals
		SET status = $3, updated_at = now()
		WHERE project_id = $1 AND id <> $2 AND status IN ($4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query,
		projectID, exceptID, models.ProposalStatusRejected,
		models.ProposalStatusPending, models.ProposalStatusShortlisted); err != nil {
		return fmt.Errorf("project repository: reject pending proposals %w", err)
	}
	return nil
}

// CreateMilestone сохраняет этап проекта.
func (r *ProjectRepository) CreateMilestone(ctx context.Context, milestone *models.Milestone) error {
	query := `
		INSERT INTO milestones (id, project_id, title, amount, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		milestone.ID, milestone.ProjectID, milestone.Title,
		milestone.Amount, milestone.DueDate, milestone.Status,
	).Scan(&milestone.CreatedAt, &milestone.UpdatedAt)
	if err != nil {
		return fmt.Errorf("project repository: create milestone %w", err)
	}
	return nil
}

// GetMilestoneByID возвращает этап по идентификатору.
func (r *ProjectRepository) GetMilestoneByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	return common.GetByID[models.Milestone](ctx, r.db, "milestones", id, apperror.ErrMilestoneNotFound)
}

// ListMilestones возвращает этапы проекта в порядке создания.
func (r *ProjectRepository) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error) {
	var milestones []models.Milestone
	query := `SELECT * FROM milestones WHERE project_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &milestones, query, projectID); err != nil {
		return nil, fmt.Errorf("project repository: list milestones %w", err)
	}
	return milestones, nil
}

// SetMilestoneStatus пишет статус этапа абсолютным значением.
func (r *ProjectRepository) SetMilestoneStatus(ctx context.Context, id uuid.UUID, status string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE milestones SET status = $2, updated_at = now() WHERE id = $1`,
		id, status); err != nil {
		return fmt.Errorf("project repository: set milestone status %w", err)
	}
	return nil
}

// ComputeClientStats считает статистику клиента заново из его проектов.
func (r *ProjectRepository) ComputeClientStats(ctx context.Context, userID uuid.UUID) (*models.ClientStats, error) {
	var stats models.ClientStats
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status <> 'draft') as total_projects,
			COUNT(*) FILTER (WHERE status IN ('in_progress', 'in_review', 'disputed')) as active_projects,
			COUNT(*) FILTER (WHERE status = 'completed') as completed_projects,
			COUNT(DISTINCT selected_freelancer_id) as total_freelancers_hired,
			COALESCE(SUM(budget_paid), 0) as total_spent
		FROM projects
		WHERE client_id = $1
	`
	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, fmt.Errorf("project repository: compute client stats %w", err)
	}
	return &stats, nil
}

// ComputeFreelancerStats считает статистику фрилансера заново из проектов
// и предложений.
func (r *ProjectRepository) ComputeFreelancerStats(ctx context.Context, userID uuid.UUID) (*models.FreelancerStats, error) {
	var stats models.FreelancerStats
	query := `
		SELECT
			(SELECT COUNT(*) FROM proposals WHERE freelancer_id = $1) as total_proposals,
			COUNT(*) FILTER (WHERE status IN ('in_progress', 'in_review', 'disputed')) as ongoing_projects,
			COUNT(*) FILTER (WHERE status = 'completed') as completed_projects,
			COALESCE(SUM(budget_paid) FILTER (WHERE status = 'completed'), 0) as total_earnings
		FROM projects
		WHERE selected_freelancer_id = $1
	`
	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, fmt.Errorf("project repository: compute freelancer stats %w", err)
	}
	return &stats, nil
}
