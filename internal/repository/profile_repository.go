package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/workhub/backend/internal/models"
	"github.com/workhub/backend/internal/pkg/apperror"
)

// ProfileRepository отвечает за профили и их статистику.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository создаёт новый экземпляр.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetClientProfile возвращает профиль клиента.
func (r *ProfileRepository) GetClientProfile(ctx context.Context, userID uuid.UUID) (*models.ClientProfile, error) {
	var profile models.ClientProfile
	query := `
		SELECT user_id, display_name, bio, company_name, location,
		       total_projects, active_projects, completed_projects, total_freelancers_hired, total_spent,
		       rating_average, rating_count, updated_at
		FROM client_profiles
		WHERE user_id = $1
	`
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("profile repository: get client profile %w", err)
	}
	return &profile, nil
}

// GetFreelancerProfile возвращает профиль фрилансера вместе с навыками.
func (r *ProfileRepository) GetFreelancerProfile(ctx context.Context, userID uuid.UUID) (*models.FreelancerProfile, error) {
	var profile models.FreelancerProfile
	var skills pq.StringArray
	query := `
		SELECT user_id, display_name, bio, hourly_rate, experience_level, skills, location,
		       total_proposals, ongoing_projects, completed_projects, total_earnings,
		       rating_average, rating_count, updated_at
		FROM freelancer_profiles
		WHERE user_id = $1
	`
	if err := r.db.QueryRowxContext(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.DisplayName,
		&profile.Bio,
		&profile.HourlyRate,
		&profile.ExperienceLevel,
		&skills,
		&profile.Location,
		&profile.TotalProposals,
		&profile.OngoingProjects,
		&profile.CompletedProjects,
		&profile.TotalEarnings,
		&profile.Rating.Average,
		&profile.Rating.Count,
		&profile.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("profile repository: get freelancer profile %w", err)
	}
	profile.Skills = []string(skills)
	return &profile, nil
}

// UpsertClientProfile создаёт или обновляет описательные поля профиля клиента.
// Статистика и рейтинг при апдейте не затираются.
func (r *ProfileRepository) UpsertClientProfile(ctx context.Context, profile *models.ClientProfile) error {
	query := `
		INSERT INTO client_profiles (user_id, display_name, bio, company_name, location, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			bio = EXCLUDED.bio,
			company_name = EXCLUDED.company_name,
			location = EXCLUDED.location,
			updated_at = NOW()
		RETURNING updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		profile.UserID, profile.DisplayName, profile.Bio, profile.CompanyName, profile.Location,
	).Scan(&profile.UpdatedAt); err != nil {
		return fmt.Errorf("profile repository: upsert client profile %w", err)
	}
	return nil
}

// UpsertFreelancerProfile создаёт или обновляет описательные поля профиля фрилансера.
func (r *ProfileRepository) UpsertFreelancerProfile(ctx context.Context, profile *models.FreelancerProfile) error {
	query := `
		INSERT INTO freelancer_profiles (user_id, display_name, bio, hourly_rate, experience_level, skills, location, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			bio = EXCLUDED.bio,
			hourly_rate = EXCLUDED.hourly_rate,
			experience_level = EXCLUDED.experience_level,
			skills = EXCLUDED.skills,
			location = EXCLUDED.location,
			updated_at = NOW()
		RETURNING updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		profile.UserID, profile.DisplayName, profile.Bio, profile.HourlyRate,
		profile.ExperienceLevel, pq.Array(profile.Skills), profile.Location,
	).Scan(&profile.UpdatedAt); err != nil {
		return fmt.Errorf("profile repository: upsert freelancer profile %w", err)
	}
	return nil
}

// AdjustClientStats атомарно сдвигает счётчики клиента на указанные дельты.
// Счётчики зажимаются снизу нулём, повтор той же дельты не уводит их в минус
// после сверки.
func (r *ProfileRepository) AdjustClientStats(ctx context.Context, userID uuid.UUID, delta models.ClientStats) error {
	query := `
		UPDATE client_profiles
		SET total_projects = GREATEST(total_projects + $2, 0),
		    active_projects = GREATEST(active_projects + $3, 0),
		    completed_projects = GREATEST(completed_projects + $4, 0),
		    total_freelancers_hired = GREATEST(total_freelancers_hired + $5, 0),
		    total_spent = GREATEST(total_spent + $6, 0),
		    updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID,
		delta.TotalProjects, delta.ActiveProjects, delta.CompletedProjects,
		delta.TotalFreelancersHired, delta.TotalSpent); err != nil {
		return fmt.Errorf("profile repository: adjust client stats %w", err)
	}
	return nil
}

// AdjustFreelancerStats атомарно сдвигает счётчики фрилансера.
func (r *ProfileRepository) AdjustFreelancerStats(ctx context.Context, userID uuid.UUID, delta models.FreelancerStats) error {
	query := `
		UPDATE freelancer_profiles
		SET total_proposals = GREATEST(total_proposals + $2, 0),
		    ongoing_projects = GREATEST(ongoing_projects + $3, 0),
		    completed_projects = GREATEST(completed_projects + $4, 0),
		    total_earnings = GREATEST(total_earnings + $5, 0),
		    updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID,
		delta.TotalProposals, delta.OngoingProjects, delta.CompletedProjects,
		delta.TotalEarnings); err != nil {
		return fmt.Errorf("profile repository: adjust freelancer stats %w", err)
	}
	return nil
}

// SetClientStats пишет статистику клиента абсолютным значением после сверки.
func (r *ProfileRepository) SetClientStats(ctx context.Context, userID uuid.UUID, stats models.ClientStats) error {
	query := `
		UPDATE client_profiles
		SET total_projects = $2,
		    active_projects = $3,
		    completed_projects = $4,
		    total_freelancers_hired = $5,
		    total_spent = $6,
		    updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID,
		stats.TotalProjects, stats.ActiveProjects, stats.CompletedProjects,
		stats.TotalFreelancersHired, stats.TotalSpent); err != nil {
		return fmt.Errorf("profile repository: set client stats %w", err)
	}
	return nil
}

// SetFreelancerStats пишет статистику фрилансера абсолютным значением.
func (r *ProfileRepository) SetFreelancerStats(ctx context.Context, userID uuid.UUID, stats models.FreelancerStats) error {
	query := `
		UPDATE freelancer_profiles
		SET total_proposals = $2,
		    ongoing_projects = $3,
		    completed_projects = $4,
		    total_earnings = $5,
		    updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID,
		stats.TotalProposals, stats.OngoingProjects, stats.CompletedProjects,
		stats.TotalEarnings); err != nil {
		return fmt.Errorf("profile repository: set freelancer stats %w", err)
	}
	return nil
}

// SetUserRating пишет пересчитанный рейтинг в профиль пользователя.
// Роль владельца заранее неизвестна, обновляются обе таблицы профилей.
func (r *ProfileRepository) SetUserRating(ctx context.Context, userID uuid.UUID, rating models.Rating) error {
	clientQuery := `
		UPDATE client_profiles
		SET rating_average = $2, rating_count = $3, updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, clientQuery, userID, rating.Average, rating.Count); err != nil {
		return fmt.Errorf("profile repository: set client rating %w", err)
	}

	freelancerQuery := `
		UPDATE freelancer_profiles
		SET rating_average = $2, rating_count = $3, updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, freelancerQuery, userID, rating.Average, rating.Count); err != nil {
		return fmt.Errorf("profile repository: set freelancer rating %w", err)
	}
	return nil
}

// ListFreelancers возвращает фрилансеров с фильтром по навыкам и рейтингу.
func (r *ProfileRepository) ListFreelancers(ctx context.Context, skills []string, minRating *float64, limit, offset int) ([]models.FreelancerProfile, error) {
	query := `
		SELECT user_id, display_name, bio, hourly_rate, experience_level, skills, location,
		       total_proposals, ongoing_projects, completed_projects, total_earnings,
		       rating_average, rating_count, updated_at
		FROM freelancer_profiles
		WHERE 1=1
	`
	args := []interface{}{}
	argIndex := 1

	if len(skills) > 0 {
		query += fmt.Sprintf(" AND skills && $%d", argIndex)
		args = append(args, pq.Array(skills))
		argIndex++
	}
	if minRating != nil {
		query += fmt.Sprintf(" AND rating_average >= $%d", argIndex)
		args = append(args, *minRating)
		argIndex++
	}

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" ORDER BY rating_average DESC, rating_count DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("profile repository: list freelancers %w", err)
	}
	defer rows.Close()

	var profiles []models.FreelancerProfile
	for rows.Next() {
		var profile models.FreelancerProfile
		var skillsArr pq.StringArray
		if err := rows.Scan(
			&profile.UserID,
			&profile.DisplayName,
			&profile.Bio,
			&profile.HourlyRate,
			&profile.ExperienceLevel,
			&skillsArr,
			&profile.Location,
			&profile.TotalProposals,
			&profile.OngoingProjects,
			&profile.CompletedProjects,
			&profile.TotalEarnings,
			&profile.Rating.Average,
			&profile.Rating.Count,
			&profile.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("profile repository: scan freelancer %w", err)
		}
		profile.Skills = []string(skillsArr)
		profiles = append(profiles, profile)
	}
	return profiles, nil
}
