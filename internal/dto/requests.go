package dto

import (
	"time"

	"github.com/workhub/backend/internal/models"
)

// CreateProjectRequest — тело запроса создания проекта.
type CreateProjectRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	BudgetType  string   `json:"budget_type" binding:"required"`
	Currency    string   `json:"currency" binding:"required"`
	BudgetMin   float64  `json:"budget_min" binding:"required,gt=0"`
	BudgetMax   float64  `json:"budget_max" binding:"required,gt=0"`
	Deadline    string   `json:"deadline"`
	Skills      []string `json:"skills"`
}

// UpdateProjectRequest — тело запроса редактирования проекта.
type UpdateProjectRequest = CreateProjectRequest

// ParseDeadline разбирает срок в формате RFC3339.
func (r *CreateProjectRequest) ParseDeadline() (*time.Time, error) {
	if r.Deadline == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, r.Deadline)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RequiredSkills преобразует навыки в модель требований проекта.
func (r *CreateProjectRequest) RequiredSkills() []models.RequiredSkill {
	skills := make([]models.RequiredSkill, 0, len(r.Skills))
	for _, s := range r.Skills {
		skills = append(skills, models.RequiredSkill{Skill: s})
	}
	return skills
}

// SubmitProposalRequest — тело запроса отклика на проект.
type SubmitProposalRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	CoverLetter string  `json:"cover_letter" binding:"required"`
}

// DecideProposalRequest — решение клиента по предложению.
type DecideProposalRequest struct {
	Decision string `json:"decision" binding:"required"`
}

// ChangeStatusRequest — запрошенный целевой статус.
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateMilestoneRequest — тело запроса создания этапа.
type CreateMilestoneRequest struct {
	Title   string  `json:"title" binding:"required"`
	Amount  float64 `json:"amount" binding:"required,gt=0"`
	DueDate string  `json:"due_date"`
}

// ParseDueDate разбирает срок этапа в формате RFC3339.
func (r *CreateMilestoneRequest) ParseDueDate() (*time.Time, error) {
	if r.DueDate == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, r.DueDate)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateReviewRequest — тело запроса создания отзыва.
type CreateReviewRequest struct {
	Rating  int     `json:"rating" binding:"required,min=1,max=5"`
	Comment *string `json:"comment"`
}

// UpdateClientProfileRequest — редактируемые поля профиля клиента.
type UpdateClientProfileRequest struct {
	DisplayName string  `json:"display_name" binding:"required"`
	Bio         *string `json:"bio"`
	CompanyName *string `json:"company_name"`
	Location    *string `json:"location"`
}

// UpdateFreelancerProfileRequest — редактируемые поля профиля фрилансера.
type UpdateFreelancerProfileRequest struct {
	DisplayName     string   `json:"display_name" binding:"required"`
	Bio             *string  `json:"bio"`
	HourlyRate      *float64 `json:"hourly_rate"`
	ExperienceLevel string   `json:"experience_level"`
	Skills          []string `json:"skills"`
	Location        *string  `json:"location"`
}

// DepositRequest — тело запроса пополнения баланса.
type DepositRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}
