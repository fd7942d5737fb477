package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/workhub/backend/internal/lifecycle"
	"github.com/workhub/backend/internal/models"
	"github.com/workhub/backend/internal/pkg/apperror"
)

// fakeReviewRepo держит отзывы в памяти и реализует ReviewRepository
// вместе с lifecycle.ReviewStore.
type fakeReviewRepo struct {
	reviews map[uuid.UUID]*models.Review
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{reviews: make(map[uuid.UUID]*models.Review)}
}

func (f *fakeReviewRepo) Create(ctx context.Context, review *models.Review) error {
	review.ID = uuid.New()
	f.reviews[review.ID] = review
	return nil
}

func (f *fakeReviewRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	if r, ok := f.reviews[id]; ok {
		return r, nil
	}
	return nil, apperror.New(apperror.ErrCodeNotFound, "отзыв не найден")
}

func (f *fakeReviewRepo) GetByProjectAndReviewer(ctx context.Context, projectID, reviewerID uuid.UUID) (*models.Review, error) {
	for _, r := range f.reviews {
		if r.ProjectID == projectID && r.ReviewerID == reviewerID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeReviewRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Review, error) {
	var out []models.Review
	for _, r := range f.reviews {
		if r.ReviewedID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReviewRepo) ListForUserPaged(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Review, error) {
	return f.ListForUser(ctx, userID)
}

func (f *fakeReviewRepo) ListForProject(ctx context.Context, projectID uuid.UUID) ([]models.Review, error) {
	var out []models.Review
	for _, r := range f.reviews {
		if r.ProjectID == projectID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReviewRepo) Update(ctx context.Context, review *models.Review) error {
	f.reviews[review.ID] = review
	return nil
}

func (f *fakeReviewRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.reviews, id)
	return nil
}

// fakeProjectReader отдаёт заранее подготовленные проекты.
type fakeProjectReader struct {
	projects map[uuid.UUID]*models.Project
}

func (f *fakeProjectReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	if p, ok := f.projects[id]; ok {
		return p, nil
	}
	return nil, apperror.ErrProjectNotFound
}

// fakeRatingSink запоминает последний записанный рейтинг.
type fakeRatingSink struct {
	userRatings    map[uuid.UUID]models.Rating
	projectRatings map[uuid.UUID]models.Rating
}

func newFakeRatingSink() *fakeRatingSink {
	return &fakeRatingSink{
		userRatings:    make(map[uuid.UUID]models.Rating),
		projectRatings: make(map[uuid.UUID]models.Rating),
	}
}

func (f *fakeRatingSink) SetUserRating(ctx context.Context, userID uuid.UUID, rating models.Rating) error {
	f.userRatings[userID] = rating
	return nil
}

func (f *fakeRatingSink) SetProjectRating(ctx context.Context, projectID uuid.UUID, rating models.Rating) error {
	f.projectRatings[projectID] = rating
	return nil
}

// fakeStatsSink не используется в сценариях отзывов.
type fakeStatsSink struct{}

func (fakeStatsSink) ComputeClientStats(ctx context.Context, userID uuid.UUID) (*models.ClientStats, error) {
	return &models.ClientStats{}, nil
}

func (fakeStatsSink) SetClientStats(ctx context.Context, userID uuid.UUID, stats models.ClientStats) error {
	return nil
}

func (fakeStatsSink) ComputeFreelancerStats(ctx context.Context, userID uuid.UUID) (*models.FreelancerStats, error) {
	return &models.FreelancerStats{}, nil
}

func (fakeStatsSink) SetFreelancerStats(ctx context.Context, userID uuid.UUID, stats models.FreelancerStats) error {
	return nil
}

func completedProject(clientID, freelancerID uuid.UUID) *models.Project {
	return &models.Project{
		ID:                   uuid.New(),
		ClientID:             clientID,
		SelectedFreelancerID: &freelancerID,
		Status:               models.ProjectStatusCompleted,
	}
}

func newReviewServiceFixture(project *models.Project) (*ReviewService, *fakeReviewRepo, *fakeRatingSink) {
	repo := newFakeReviewRepo()
	ratings := newFakeRatingSink()
	recalc := lifecycle.NewRecalculator(repo, ratings, fakeStatsSink{})
	projects := &fakeProjectReader{projects: map[uuid.UUID]*models.Project{project.ID: project}}
	return NewReviewService(repo, projects, recalc), repo, ratings
}

func TestReviewService_CreateRecalculatesRating(t *testing.T) {
	clientID := uuid.New()
	freelancerID := uuid.New()
	project := completedProject(clientID, freelancerID)
	svc, repo, ratings := newReviewServiceFixture(project)

	comment := "Отличная работа"
	review, err := svc.CreateReview(context.Background(), project.ID, clientID, 5, &comment)
	assert.NoError(t, err)
	assert.Equal(t, freelancerID, review.ReviewedID)
	assert.Len(t, repo.reviews, 1)

	// Рейтинг пересчитан из единственного отзыва.
	assert.Equal(t, models.Rating{Average: 5, Count: 1}, ratings.userRatings[freelancerID])
	assert.Equal(t, models.Rating{Average: 5, Count: 1}, ratings.projectRatings[project.ID])
}

func TestReviewService_FreelancerReviewsClient(t *testing.T) {
	clientID := uuid.New()
	freelancerID := uuid.New()
	project := completedProject(clientID, freelancerID)
	svc, _, ratings := newReviewServiceFixture(project)

	review, err := svc.CreateReview(context.Background(), project.ID, freelancerID, 4, nil)
	assert.NoError(t, err)
	assert.Equal(t, clientID, review.ReviewedID)
	assert.Equal(t, models.Rating{Average: 4, Count: 1}, ratings.userRatings[clientID])
}

func TestReviewService_RejectsActiveProject(t *testing.T) {
	clientID := uuid.New()
	freelancerID := uuid.New()
	project := completedProject(clientID, freelancerID)
	project.Status = models.ProjectStatusInProgress
	svc, _, _ := newReviewServiceFixture(project)

	_, err := svc.CreateReview(context.Background(), project.ID, clientID, 5, nil)
	assert.True(t, apperror.IsValidation(err))
}

func TestReviewService_RejectsOutsider(t *testing.T) {
	project := completedProject(uuid.New(), uuid.New())
	svc, _, _ := newReviewServiceFixture(project)

	_, err := svc.CreateReview(context.Background(), project.ID, uuid.New(), 5, nil)
	assert.True(t, apperror.IsForbidden(err))
}

func TestReviewService_RejectsDuplicate(t *testing.T) {
	clientID := uuid.New()
	project := completedProject(clientID, uuid.New())
	svc, _, _ := newReviewServiceFixture(project)

	_, err := svc.CreateReview(context.Background(), project.ID, clientID, 5, nil)
	assert.NoError(t, err)

	_, err = svc.CreateReview(context.Background(), project.ID, clientID, 3, nil)
	assert.Error(t, err)
	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeConflict, appErr.Code)
}

func TestReviewService_RejectsRatingOutOfRange(t *testing.T) {
	project := completedProject(uuid.New(), uuid.New())
	svc, _, _ := newReviewServiceFixture(project)

	_, err := svc.CreateReview(context.Background(), project.ID, project.ClientID, 0, nil)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.CreateReview(context.Background(), project.ID, project.ClientID, 6, nil)
	assert.True(t, apperror.IsValidation(err))
}

func TestReviewService_UpdateRecalculates(t *testing.T) {
	clientID := uuid.New()
	freelancerID := uuid.New()
	project := completedProject(clientID, freelancerID)
	svc, _, ratings := newReviewServiceFixture(project)

	review, err := svc.CreateReview(context.Background(), project.ID, clientID, 3, nil)
	assert.NoError(t, err)

	updated, err := svc.UpdateReview(context.Background(), review.ID, clientID, 5, nil)
	assert.NoError(t, err)
	assert.Equal(t, 5, updated.Rating)
	assert.Equal(t, models.Rating{Average: 5, Count: 1}, ratings.userRatings[freelancerID])
}

func TestReviewService_UpdateByStrangerForbidden(t *testing.T) {
	clientID := uuid.New()
	project := completedProject(clientID, uuid.New())
	svc, _, _ := newReviewServiceFixture(project)

	review, err := svc.CreateReview(context.Background(), project.ID, clientID, 3, nil)
	assert.NoError(t, err)

	_, err = svc.UpdateReview(context.Background(), review.ID, uuid.New(), 5, nil)
	assert.True(t, apperror.IsForbidden(err))
}

func TestReviewService_DeleteRecalculates(t *testing.T) {
	clientID := uuid.New()
	freelancerID := uuid.New()
	project := completedProject(clientID, freelancerID)
	svc, repo, ratings := newReviewServiceFixture(project)

	review, err := svc.CreateReview(context.Background(), project.ID, clientID, 5, nil)
	assert.NoError(t, err)

	err = svc.DeleteReview(context.Background(), review.ID, clientID)
	assert.NoError(t, err)
	assert.Len(t, repo.reviews, 0)
	assert.Equal(t, models.Rating{}, ratings.userRatings[freelancerID])
}
