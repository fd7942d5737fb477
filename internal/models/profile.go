package models

import (
	"time"

	"github.com/google/uuid"
)

// ClientStats агрегированная статистика клиента.
// Это производный кэш: источником истины служат проекты клиента,
// блок пересчитывается агрегатором и никогда не пишется хэндлерами напрямую.
type ClientStats struct {
	TotalProjects         int     `db:"total_projects" json:"total_projects"`
	ActiveProjects        int     `db:"active_projects" json:"active_projects"`
	CompletedProjects     int     `db:"completed_projects" json:"completed_projects"`
	TotalFreelancersHired int     `db:"total_freelancers_hired" json:"total_freelancers_hired"`
	TotalSpent            float64 `db:"total_spent" json:"total_spent"`
}

// FreelancerStats агрегированная статистика фрилансера.
type FreelancerStats struct {
	TotalProposals    int     `db:"total_proposals" json:"total_proposals"`
	OngoingProjects   int     `db:"ongoing_projects" json:"ongoing_projects"`
	CompletedProjects int     `db:"completed_projects" json:"completed_projects"`
	TotalEarnings     float64 `db:"total_earnings" json:"total_earnings"`
}

// ClientProfile описывает профиль клиента (заказчика).
type ClientProfile struct {
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Bio         *string   `db:"bio" json:"bio,omitempty"`
	CompanyName *string   `db:"company_name" json:"company_name,omitempty"`
	Location    *string   `db:"location" json:"location,omitempty"`
	ClientStats `json:"stats"`
	Rating      `json:"rating"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// FreelancerProfile описывает профиль фрилансера.
type FreelancerProfile struct {
	UserID          uuid.UUID `db:"user_id" json:"user_id"`
	DisplayName     string    `db:"display_name" json:"display_name"`
	Bio             *string   `db:"bio" json:"bio,omitempty"`
	HourlyRate      *float64  `db:"hourly_rate" json:"hourly_rate,omitempty"`
	ExperienceLevel string    `db:"experience_level" json:"experience_level"`
	Skills          []string  `db:"-" json:"skills"`
	Location        *string   `db:"location" json:"location,omitempty"`
	FreelancerStats `json:"stats"`
	Rating          `json:"rating"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Review описывает отзыв участника проекта о другом участнике после завершения.
type Review struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ProjectID  uuid.UUID `db:"project_id" json:"project_id"`
	ReviewerID uuid.UUID `db:"reviewer_id" json:"reviewer_id"`
	ReviewedID uuid.UUID `db:"reviewed_id" json:"reviewed_id"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
