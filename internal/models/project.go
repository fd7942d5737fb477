package models

import (
	"time"

	"github.com/google/uuid"
)

// Budget описывает бюджетный конверт проекта.
// Paid и Pending обновляются только движком жизненного цикла.
type Budget struct {
	Type      string  `db:"budget_type" json:"type"`
	Currency  string  `db:"currency" json:"currency"`
	MinAmount float64 `db:"budget_min" json:"min_amount"`
	MaxAmount float64 `db:"budget_max" json:"max_amount"`
	Paid      float64 `db:"budget_paid" json:"paid"`
	Pending   float64 `db:"budget_pending" json:"pending"`
}

// Rating агрегирует отзывы: среднее и количество.
type Rating struct {
	Average float64 `db:"rating_average" json:"average"`
	Count   int     `db:"rating_count" json:"count"`
}

// Project описывает проект, размещённый клиентом.
type Project struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	ClientID             uuid.UUID `db:"client_id" json:"client_id"`
	Title                string    `db:"title" json:"title"`
	Description          string    `db:"description" json:"description"`
	Budget               `json:"budget"`
	Status               string     `db:"status" json:"status"`
	SelectedFreelancerID *uuid.UUID `db:"selected_freelancer_id" json:"selected_freelancer_id,omitempty"`
	ProgressPercent      int        `db:"progress_percent" json:"progress_percent"`
	Rating               `json:"rating"`
	DeadlineAt           *time.Time `db:"deadline_at" json:"deadline_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`

	// Связанные данные (загружаются отдельными запросами)
	Skills         []RequiredSkill `json:"skills,omitempty"`
	Proposals      []Proposal      `json:"proposals,omitempty"`
	Milestones     []Milestone     `json:"milestones,omitempty"`
	ProposalsCount *int            `db:"proposals_count" json:"proposals_count,omitempty"`
}

// RequiredSkill хранит требуемый навык с уровнем и приоритетом.
type RequiredSkill struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProjectID uuid.UUID `db:"project_id" json:"project_id"`
	Skill     string    `db:"skill" json:"skill"`
	Level     string    `db:"level" json:"level"`
	Priority  string    `db:"priority" json:"priority"`
}

// Proposal представляет отклик фрилансера на проект.
// На один проект допускается не более одного отклика от фрилансера.
type Proposal struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ProjectID    uuid.UUID `db:"project_id" json:"project_id"`
	FreelancerID uuid.UUID `db:"freelancer_id" json:"freelancer_id"`
	Amount       float64   `db:"amount" json:"amount"`
	CoverLetter  string    `db:"cover_letter" json:"cover_letter"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Milestone описывает этап работы по проекту с собственной оплатой.
type Milestone struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ProjectID uuid.UUID  `db:"project_id" json:"project_id"`
	Title     string     `db:"title" json:"title"`
	Amount    float64    `db:"amount" json:"amount"`
	DueDate   *time.Time `db:"due_date" json:"due_date,omitempty"`
	Status    string     `db:"status" json:"status"`
	EscrowID  *uuid.UUID `db:"escrow_id" json:"escrow_id,omitempty"`
	ReviewID  *uuid.UUID `db:"review_id" json:"review_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// IsActiveStatus сообщает, находится ли проект в статусе, требующем назначенного исполнителя.
func IsActiveStatus(status string) bool {
	switch status {
	case ProjectStatusInProgress, ProjectStatusInReview, ProjectStatusCompleted, ProjectStatusDisputed:
		return true
	}
	return false
}
