package lifecycle

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/workhub/backend/internal/models"
)

// ReviewStore — чтение отзывов для пересчёта рейтингов.
type ReviewStore interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Review, error)
	ListForProject(ctx context.Context, projectID uuid.UUID) ([]models.Review, error)
}

// RatingStore — запись пересчитанных рейтингов абсолютным значением.
type RatingStore interface {
	SetUserRating(ctx context.Context, userID uuid.UUID, rating models.Rating) error
	SetProjectRating(ctx context.Context, projectID uuid.UUID, rating models.Rating) error
}

// StatsStore считает статистику профиля заново из исходных документов
// и записывает результат абсолютным значением.
type StatsStore interface {
	ComputeClientStats(ctx context.Context, userID uuid.UUID) (*models.ClientStats, error)
	SetClientStats(ctx context.Context, userID uuid.UUID, stats models.ClientStats) error
	ComputeFreelancerStats(ctx context.Context, userID uuid.UUID) (*models.FreelancerStats, error)
	SetFreelancerStats(ctx context.Context, userID uuid.UUID, stats models.FreelancerStats) error
}

// Recalculator пересчитывает производные агрегаты из первичных данных.
// Все операции идемпотентны: повторный запуск над теми же данными даёт
// тот же результат, поэтому сверку можно запускать в любой момент.
type Recalculator struct {
	reviews ReviewStore
	ratings RatingStore
	stats   StatsStore
}

func NewRecalculator(reviews ReviewStore, ratings RatingStore, stats StatsStore) *Recalculator {
	return &Recalculator{reviews: reviews, ratings: ratings, stats: stats}
}

// RecomputeProgress возвращает процент выполнения проекта: доля
// подтверждённых этапов от общего числа, округлённая до целого.
// Проект без этапов имеет нулевой прогресс.
func RecomputeProgress(milestones []models.Milestone) int {
	if len(milestones) == 0 {
		return 0
	}
	approved := 0
	for _, m := range milestones {
		if m.Status == models.MilestoneStatusApproved {
			approved++
		}
	}
	return int(math.Round(float64(approved) / float64(len(milestones)) * 100))
}

// RecomputeUserRating пересчитывает рейтинг пользователя по всем его отзывам.
func (r *Recalculator) RecomputeUserRating(ctx context.Context, userID uuid.UUID) (models.Rating, error) {
	reviews, err := r.reviews.ListForUser(ctx, userID)
	if err != nil {
		return models.Rating{}, err
	}
	rating := averageRating(reviews)
	if err := r.ratings.SetUserRating(ctx, userID, rating); err != nil {
		return models.Rating{}, err
	}
	return rating, nil
}

// RecomputeProjectRating пересчитывает рейтинг проекта по его отзывам.
func (r *Recalculator) RecomputeProjectRating(ctx context.Context, projectID uuid.UUID) (models.Rating, error) {
	reviews, err := r.reviews.ListForProject(ctx, projectID)
	if err != nil {
		return models.Rating{}, err
	}
	rating := averageRating(reviews)
	if err := r.ratings.SetProjectRating(ctx, projectID, rating); err != nil {
		return models.Rating{}, err
	}
	return rating, nil
}

// ReconcileClientStats выравнивает блок статистики клиента по фактическим
// проектам. Используется как самовосстановление после частичных каскадов.
func (r *Recalculator) ReconcileClientStats(ctx context.Context, userID uuid.UUID) (*models.ClientStats, error) {
	stats, err := r.stats.ComputeClientStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := r.stats.SetClientStats(ctx, userID, *stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// ReconcileFreelancerStats выравнивает блок статистики фрилансера.
func (r *Recalculator) ReconcileFreelancerStats(ctx context.Context, userID uuid.UUID) (*models.FreelancerStats, error) {
	stats, err := r.stats.ComputeFreelancerStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := r.stats.SetFreelancerStats(ctx, userID, *stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func averageRating(reviews []models.Review) models.Rating {
	if len(reviews) == 0 {
		return models.Rating{}
	}
	sum := 0
	for _, rv := range reviews {
		sum += rv.Rating
	}
	avg := float64(sum) / float64(len(reviews))
	return models.Rating{
		Average: math.Round(avg*100) / 100,
		Count:   len(reviews),
	}
}
