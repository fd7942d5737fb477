package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/workhub/backend/internal/models"
)

var ErrReviewNotFound = errors.New("review not found")

type ReviewRepository struct {
	db *sqlx.DB
}

func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create создаёт отзыв.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (project_id, reviewer_id, reviewed_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query,
		review.ProjectID, review.ReviewerID, review.ReviewedID, review.Rating, review.Comment,
	).Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)
}

// GetByID возвращает отзыв по ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.db.GetContext(ctx, &review, `SELECT * FROM reviews WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return &review, nil
}

// GetByProjectAndReviewer проверяет, оставлял ли пользователь отзыв на проект.
func (r *ReviewRepository) GetByProjectAndReviewer(ctx context.Context, projectID, reviewerID uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.db.GetContext(ctx, &review, `SELECT * FROM reviews WHERE project_id = $1 AND reviewer_id = $2`, projectID, reviewerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &review, nil
}

// ListForUser возвращает все отзывы о пользователе. Используется
// пересчётом рейтинга, поэтому без пагинации.
func (r *ReviewRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.SelectContext(ctx, &reviews,
		`SELECT * FROM reviews WHERE reviewed_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("review repository: list for user %w", err)
	}
	return reviews, nil
}

// ListForUserPaged возвращает страницу отзывов о пользователе.
func (r *ReviewRepository) ListForUserPaged(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.SelectContext(ctx, &reviews, `
		SELECT * FROM reviews WHERE reviewed_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return reviews, err
}

// ListForProject возвращает отзывы по проекту.
func (r *ReviewRepository) ListForProject(ctx context.Context, projectID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.SelectContext(ctx, &reviews, `SELECT * FROM reviews WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("review repository: list for project %w", err)
	}
	return reviews, nil
}

// Update обновляет отзыв.
func (r *ReviewRepository) Update(ctx context.Context, review *models.Review) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reviews SET rating = $2, comment = $3, updated_at = NOW() WHERE id = $1
	`, review.ID, review.Rating, review.Comment)
	return err
}

// Delete удаляет отзыв.
func (r *ReviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	return err
}
