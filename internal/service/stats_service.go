package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/workhub/backend/internal/lifecycle"
	"github.com/workhub/backend/internal/models"
	"github.com/workhub/backend/internal/pkg/apperror"
)

const dashboardTTL = 2 * time.Minute

// ProjectStatsRepo — операции репозитория проектов, нужные для сводок.
type ProjectStatsRepo interface {
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.Project, error)
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Project, error)
	ListMyProposals(ctx context.Context, freelancerID uuid.UUID) ([]models.Proposal, error)
	SetProjectRating(ctx context.Context, projectID uuid.UUID, rating models.Rating) error
	ComputeClientStats(ctx context.Context, userID uuid.UUID) (*models.ClientStats, error)
	ComputeFreelancerStats(ctx context.Context, userID uuid.UUID) (*models.FreelancerStats, error)
}

// ProfileStatsRepo — операции репозитория профилей, нужные для сводок.
type ProfileStatsRepo interface {
	GetClientProfile(ctx context.Context, userID uuid.UUID) (*models.ClientProfile, error)
	GetFreelancerProfile(ctx context.Context, userID uuid.UUID) (*models.FreelancerProfile, error)
	SetUserRating(ctx context.Context, userID uuid.UUID, rating models.Rating) error
	SetClientStats(ctx context.Context, userID uuid.UUID, stats models.ClientStats) error
	SetFreelancerStats(ctx context.Context, userID uuid.UUID, stats models.FreelancerStats) error
}

// ClientDashboard — сводка для клиента: профиль и последние проекты.
type ClientDashboard struct {
	Profile        *models.ClientProfile `json:"profile"`
	RecentProjects []models.Project      `json:"recent_projects"`
}

// FreelancerDashboard — сводка для фрилансера: профиль, текущие
// проекты и последние отклики.
type FreelancerDashboard struct {
	Profile         *models.FreelancerProfile `json:"profile"`
	ActiveProjects  []models.Project          `json:"active_projects"`
	RecentProposals []models.Proposal         `json:"recent_proposals"`
}

// StatsService собирает сводки для личных кабинетов и запускает
// пересчёт производных агрегатов.
type StatsService struct {
	projects ProjectStatsRepo
	profiles ProfileStatsRepo
	recalc   *lifecycle.Recalculator
	cache    *CacheService
}

// NewStatsService создаёт сервис сводок.
func NewStatsService(projects ProjectStatsRepo, profiles ProfileStatsRepo, recalc *lifecycle.Recalculator, cache *CacheService) *StatsService {
	return &StatsService{projects: projects, profiles: profiles, recalc: recalc, cache: cache}
}

// GetClientDashboard возвращает сводку клиента. Результат кэшируется
// на короткий срок и сбрасывается при изменениях жизненного цикла.
func (s *StatsService) GetClientDashboard(ctx context.Context, userID uuid.UUID) (*ClientDashboard, error) {
	var dashboard ClientDashboard
	err := s.cache.GetOrSet(ctx, DashboardCacheKey(userID), dashboardTTL, &dashboard, func() (interface{}, error) {
		profile, err := s.profiles.GetClientProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		projects, err := s.projects.ListByClient(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &ClientDashboard{Profile: profile, RecentProjects: projects}, nil
	})
	if err != nil {
		return nil, err
	}
	return &dashboard, nil
}

// GetFreelancerDashboard возвращает сводку фрилансера.
func (s *StatsService) GetFreelancerDashboard(ctx context.Context, userID uuid.UUID) (*FreelancerDashboard, error) {
	var dashboard FreelancerDashboard
	err := s.cache.GetOrSet(ctx, DashboardCacheKey(userID), dashboardTTL, &dashboard, func() (interface{}, error) {
		profile, err := s.profiles.GetFreelancerProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		projects, err := s.projects.ListByFreelancer(ctx, userID)
		if err != nil {
			return nil, err
		}
		proposals, err := s.projects.ListMyProposals(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &FreelancerDashboard{Profile: profile, ActiveProjects: projects, RecentProposals: proposals}, nil
	})
	if err != nil {
		return nil, err
	}
	return &dashboard, nil
}

// ReconcileStats пересчитывает статистику профиля из первичных данных.
// Операция идемпотентна и служит для восстановления после частично
// применённых каскадов.
func (s *StatsService) ReconcileStats(ctx context.Context, userID uuid.UUID, role string) (interface{}, error) {
	var (
		stats interface{}
		err   error
	)
	switch role {
	case models.RoleClient:
		stats, err = s.recalc.ReconcileClientStats(ctx, userID)
	case models.RoleFreelancer:
		stats, err = s.recalc.ReconcileFreelancerStats(ctx, userID)
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимая роль для пересчёта статистики")
	}
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidateUserCache(ctx, userID)
	}
	return stats, nil
}

// ReconcileRating пересчитывает рейтинг пользователя из отзывов.
func (s *StatsService) ReconcileRating(ctx context.Context, userID uuid.UUID) (models.Rating, error) {
	rating, err := s.recalc.RecomputeUserRating(ctx, userID)
	if err != nil {
		return models.Rating{}, err
	}
	if s.cache != nil {
		s.cache.InvalidateUserCache(ctx, userID)
	}
	return rating, nil
}

// ratingStore объединяет запись рейтингов пользователей и проектов:
// они живут в разных репозиториях.
type ratingStore struct {
	profiles ProfileStatsRepo
	projects ProjectStatsRepo
}

func (rs ratingStore) SetUserRating(ctx context.Context, userID uuid.UUID, rating models.Rating) error {
	return rs.profiles.SetUserRating(ctx, userID, rating)
}

func (rs ratingStore) SetProjectRating(ctx context.Context, projectID uuid.UUID, rating models.Rating) error {
	return rs.projects.SetProjectRating(ctx, projectID, rating)
}

// statsStore объединяет расчёт статистики по проектам и её запись в
// профили.
type statsStore struct {
	profiles ProfileStatsRepo
	projects ProjectStatsRepo
}

func (ss statsStore) ComputeClientStats(ctx context.Context, userID uuid.UUID) (*models.ClientStats, error) {
	return ss.projects.ComputeClientStats(ctx, userID)
}

func (ss statsStore) SetClientStats(ctx context.Context, userID uuid.UUID, stats models.ClientStats) error {
	return ss.profiles.SetClientStats(ctx, userID, stats)
}

func (ss statsStore) ComputeFreelancerStats(ctx context.Context, userID uuid.UUID) (*models.FreelancerStats, error) {
	return ss.projects.ComputeFreelancerStats(ctx, userID)
}

func (ss statsStore) SetFreelancerStats(ctx context.Context, userID uuid.UUID, stats models.FreelancerStats) error {
	return ss.profiles.SetFreelancerStats(ctx, userID, stats)
}

// NewRecalculator собирает пересчёт агрегатов поверх репозиториев.
func NewRecalculator(reviews lifecycle.ReviewStore, profiles ProfileStatsRepo, projects ProjectStatsRepo) *lifecycle.Recalculator {
	return lifecycle.NewRecalculator(
		reviews,
		ratingStore{profiles: profiles, projects: projects},
		statsStore{profiles: profiles, projects: projects},
	)
}
