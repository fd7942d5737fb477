package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/workhub/backend/internal/lifecycle"
	"github.com/workhub/backend/internal/logger"
	"github.com/workhub/backend/internal/models"
	"github.com/workhub/backend/internal/pkg/apperror"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	GetByProjectAndReviewer(ctx context.Context, projectID, reviewerID uuid.UUID) (*models.Review, error)
	ListForUserPaged(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Review, error)
	ListForProject(ctx context.Context, projectID uuid.UUID) ([]models.Review, error)
	Update(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProjectRepoForReview interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// ReviewService принимает отзывы участников завершённого проекта и
// запускает пересчёт затронутых рейтингов.
type ReviewService struct {
	repo     ReviewRepository
	projects ProjectRepoForReview
	recalc   *lifecycle.Recalculator
}

func NewReviewService(repo ReviewRepository, projects ProjectRepoForReview, recalc *lifecycle.Recalculator) *ReviewService {
	return &ReviewService{repo: repo, projects: projects, recalc: recalc}
}

// CreateReview создаёт отзыв после завершения проекта.
func (s *ReviewService) CreateReview(ctx context.Context, projectID, reviewerID uuid.UUID, rating int, comment *string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, apperror.New(apperror.ErrCodeValidation, "рейтинг должен быть от 1 до 5")
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if project.Status != models.ProjectStatusCompleted {
		return nil, apperror.New(apperror.ErrCodeValidation, "отзыв можно оставить только после завершения проекта")
	}

	// Отзыв оставляется второму участнику проекта.
	var reviewedID uuid.UUID
	switch {
	case reviewerID == project.ClientID:
		if project.SelectedFreelancerID == nil {
			return nil, apperror.New(apperror.ErrCodeValidation, "исполнитель не назначен на проект")
		}
		reviewedID = *project.SelectedFreelancerID
	case project.SelectedFreelancerID != nil && reviewerID == *project.SelectedFreelancerID:
		reviewedID = project.ClientID
	default:
		return nil, apperror.New(apperror.ErrCodeForbidden, "вы не участник этого проекта")
	}

	existing, err := s.repo.GetByProjectAndReviewer(ctx, projectID, reviewerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "вы уже оставили отзыв на этот проект")
	}

	review := &models.Review{
		ProjectID:  projectID,
		ReviewerID: reviewerID,
		ReviewedID: reviewedID,
		Rating:     rating,
		Comment:    comment,
	}

	if err := s.repo.Create(ctx, review); err != nil {
		return nil, err
	}

	s.recomputeRatings(ctx, reviewedID, projectID)

	return review, nil
}

// ListForUser возвращает страницу отзывов о пользователе.
func (s *ReviewService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListForUserPaged(ctx, userID, limit, offset)
}

// ListForProject возвращает отзывы по проекту.
func (s *ReviewService) ListForProject(ctx context.Context, projectID uuid.UUID) ([]models.Review, error) {
	return s.repo.ListForProject(ctx, projectID)
}

// UpdateReview обновляет отзыв его автора и пересчитывает рейтинги.
func (s *ReviewService) UpdateReview(ctx context.Context, reviewID, reviewerID uuid.UUID, rating int, comment *string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, apperror.New(apperror.ErrCodeValidation, "рейтинг должен быть от 1 до 5")
	}

	review, err := s.repo.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.ReviewerID != reviewerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "можно изменить только свой отзыв")
	}

	review.Rating = rating
	review.Comment = comment
	if err := s.repo.Update(ctx, review); err != nil {
		return nil, err
	}

	s.recomputeRatings(ctx, review.ReviewedID, review.ProjectID)

	return review, nil
}

// DeleteReview удаляет отзыв его автора и пересчитывает рейтинги.
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID, reviewerID uuid.UUID) error {
	review, err := s.repo.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if review.ReviewerID != reviewerID {
		return apperror.New(apperror.ErrCodeForbidden, "можно удалить только свой отзыв")
	}

	if err := s.repo.Delete(ctx, reviewID); err != nil {
		return err
	}

	s.recomputeRatings(ctx, review.ReviewedID, review.ProjectID)

	return nil
}

// recomputeRatings пересчитывает рейтинг пользователя и проекта. Ошибка
// пересчёта не отменяет сам отзыв: агрегат сойдётся при следующем пересчёте.
func (s *ReviewService) recomputeRatings(ctx context.Context, userID, projectID uuid.UUID) {
	if s.recalc == nil {
		return
	}
	if _, err := s.recalc.RecomputeUserRating(ctx, userID); err != nil && logger.Log != nil {
		logger.Log.WithField("user_id", userID).WithError(err).Warn("review service: не удалось пересчитать рейтинг пользователя")
	}
	if _, err := s.recalc.RecomputeProjectRating(ctx, projectID); err != nil && logger.Log != nil {
		logger.Log.WithField("project_id", projectID).WithError(err).Warn("review service: не удалось пересчитать рейтинг проекта")
	}
}
