package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/workhub/backend/internal/models"
	"github.com/workhub/backend/internal/pkg/apperror"
	"github.com/workhub/backend/internal/validation"
)

// ProfileRepo описывает зависимости ProfileService от слоя хранилища.
type ProfileRepo interface {
	GetClientProfile(ctx context.Context, userID uuid.UUID) (*models.ClientProfile, error)
	GetFreelancerProfile(ctx context.Context, userID uuid.UUID) (*models.FreelancerProfile, error)
	UpsertClientProfile(ctx context.Context, profile *models.ClientProfile) error
	UpsertFreelancerProfile(ctx context.Context, profile *models.FreelancerProfile) error
	ListFreelancers(ctx context.Context, skills []string, minRating *float64, limit, offset int) ([]models.FreelancerProfile, error)
}

// UserReader возвращает пользователя для определения роли профиля.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ClientProfileInput содержит редактируемые поля профиля клиента.
type ClientProfileInput struct {
	DisplayName string
	Bio         *string
	CompanyName *string
	Location    *string
}

// FreelancerProfileInput содержит редактируемые поля профиля фрилансера.
type FreelancerProfileInput struct {
	DisplayName     string
	Bio             *string
	HourlyRate      *float64
	ExperienceLevel string
	Skills          []string
	Location        *string
}

// ProfileService отвечает за чтение и редактирование профилей.
// Блоки статистики и рейтинга доступны только на чтение: их
// поддерживают движок жизненного цикла и пересчёт агрегатов.
type ProfileService struct {
	repo  ProfileRepo
	users UserReader
	cache *CacheService
}

// NewProfileService создаёт сервис профилей.
func NewProfileService(repo ProfileRepo, users UserReader, cache *CacheService) *ProfileService {
	return &ProfileService{repo: repo, users: users, cache: cache}
}

// GetClientProfile возвращает профиль клиента.
func (s *ProfileService) GetClientProfile(ctx context.Context, userID uuid.UUID) (*models.ClientProfile, error) {
	return s.repo.GetClientProfile(ctx, userID)
}

// GetFreelancerProfile возвращает профиль фрилансера.
func (s *ProfileService) GetFreelancerProfile(ctx context.Context, userID uuid.UUID) (*models.FreelancerProfile, error) {
	return s.repo.GetFreelancerProfile(ctx, userID)
}

// UpdateClientProfile обновляет описательные поля профиля клиента.
func (s *ProfileService) UpdateClientProfile(ctx context.Context, userID uuid.UUID, in ClientProfileInput) (*models.ClientProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleClient {
		return nil, apperror.New(apperror.ErrCodeForbidden, "профиль клиента доступен только клиентам")
	}

	if err := validation.ValidateDisplayName(in.DisplayName); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateBio(in.Bio); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLocation(in.Location); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	profile := &models.ClientProfile{
		UserID:      userID,
		DisplayName: in.DisplayName,
		Bio:         in.Bio,
		CompanyName: in.CompanyName,
		Location:    in.Location,
	}
	if err := s.repo.UpsertClientProfile(ctx, profile); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidateUserCache(ctx, userID)
	}

	return s.repo.GetClientProfile(ctx, userID)
}

// UpdateFreelancerProfile обновляет описательные поля профиля фрилансера.
func (s *ProfileService) UpdateFreelancerProfile(ctx context.Context, userID uuid.UUID, in FreelancerProfileInput) (*models.FreelancerProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "профиль фрилансера доступен только фрилансерам")
	}

	if err := validation.ValidateDisplayName(in.DisplayName); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateBio(in.Bio); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateHourlyRate(in.HourlyRate); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateSkills(in.Skills); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.ExperienceLevel != "" {
		if _, ok := models.ValidExperienceLevels[in.ExperienceLevel]; !ok {
			return nil, apperror.New(apperror.ErrCodeValidation, "недопустимый уровень опыта")
		}
	} else {
		in.ExperienceLevel = models.ExperienceLevelJunior
	}

	profile := &models.FreelancerProfile{
		UserID:          userID,
		DisplayName:     in.DisplayName,
		Bio:             in.Bio,
		HourlyRate:      in.HourlyRate,
		ExperienceLevel: in.ExperienceLevel,
		Skills:          in.Skills,
		Location:        in.Location,
	}
	if err := s.repo.UpsertFreelancerProfile(ctx, profile); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidateUserCache(ctx, userID)
	}

	return s.repo.GetFreelancerProfile(ctx, userID)
}

// ListFreelancers возвращает каталог фрилансеров по навыкам и рейтингу.
func (s *ProfileService) ListFreelancers(ctx context.Context, skills []string, minRating *float64, limit, offset int) ([]models.FreelancerProfile, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListFreelancers(ctx, skills, minRating, limit, offset)
}
