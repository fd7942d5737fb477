package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/workhub/backend/internal/models"
	"github.com/workhub/backend/internal/pkg/apperror"
	"github.com/workhub/backend/internal/repository"
)

// PaymentRepo описывает зависимости PaymentService от слоя хранилища.
type PaymentRepo interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount float64, description string) (*models.Transaction, error)
	CreateEscrow(ctx context.Context, projectID, milestoneID, clientID, freelancerID uuid.UUID, amount float64) (*models.Escrow, error)
	ReleaseEscrow(ctx context.Context, milestoneID uuid.UUID) (*models.Escrow, error)
	RefundEscrow(ctx context.Context, milestoneID uuid.UUID) (*models.Escrow, error)
	ListHeldByProject(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error)
	GetEscrowByMilestoneID(ctx context.Context, milestoneID uuid.UUID) (*models.Escrow, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
}

// PaymentService управляет балансами и escrow по этапам проектов.
// Реализует сток платёжных шагов каскада: операции идемпотентны,
// повторный вызов по уже обработанному этапу не меняет состояние.
type PaymentService struct {
	repo PaymentRepo
}

// NewPaymentService создаёт платёжный сервис.
func NewPaymentService(repo PaymentRepo) *PaymentService {
	return &PaymentService{repo: repo}
}

// GetBalance возвращает баланс пользователя.
func (s *PaymentService) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	return s.repo.GetBalance(ctx, userID)
}

// Deposit пополняет баланс пользователя.
func (s *PaymentService) Deposit(ctx context.Context, userID uuid.UUID, amount float64) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма пополнения должна быть положительной")
	}
	return s.repo.Deposit(ctx, userID, amount, "Пополнение баланса")
}

// ListTransactions возвращает историю транзакций пользователя.
func (s *PaymentService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}

// GetEscrowByMilestone возвращает escrow этапа.
func (s *PaymentService) GetEscrowByMilestone(ctx context.Context, milestoneID uuid.UUID) (*models.Escrow, error) {
	return s.repo.GetEscrowByMilestoneID(ctx, milestoneID)
}

// HoldForMilestone замораживает оплату этапа. Повторный вызов по этапу
// с уже замороженным escrow возвращает существующий.
func (s *PaymentService) HoldForMilestone(ctx context.Context, project *models.Project, milestone *models.Milestone) (*models.Escrow, error) {
	if project.SelectedFreelancerID == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "исполнитель не назначен на проект")
	}

	existing, err := s.repo.GetEscrowByMilestoneID(ctx, milestone.ID)
	if err == nil && existing.Status == models.EscrowStatusHeld {
		return existing, nil
	}
	if err != nil && !errors.Is(err, repository.ErrEscrowNotFound) {
		return nil, err
	}

	escrow, err := s.repo.CreateEscrow(ctx, project.ID, milestone.ID, project.ClientID, *project.SelectedFreelancerID, milestone.Amount)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return nil, apperror.New(apperror.ErrCodeValidation, "недостаточно средств на балансе клиента")
		}
		return nil, fmt.Errorf("payment service: hold for milestone %w", err)
	}
	return escrow, nil
}

// ReleaseByMilestone выплачивает замороженные средства этапа фрилансеру.
// Уже освобождённый этап считается успехом.
func (s *PaymentService) ReleaseByMilestone(ctx context.Context, milestoneID uuid.UUID) error {
	_, err := s.repo.ReleaseEscrow(ctx, milestoneID)
	if errors.Is(err, repository.ErrEscrowNotFound) {
		return nil
	}
	return err
}

// RefundByProject возвращает клиенту все замороженные этапы проекта.
func (s *PaymentService) RefundByProject(ctx context.Context, projectID uuid.UUID) error {
	milestoneIDs, err := s.repo.ListHeldByProject(ctx, projectID)
	if err != nil {
		return err
	}
	for _, id := range milestoneIDs {
		if _, err := s.repo.RefundEscrow(ctx, id); err != nil && !errors.Is(err, repository.ErrEscrowNotFound) {
			return fmt.Errorf("payment service: refund milestone %s %w", id, err)
		}
	}
	return nil
}
