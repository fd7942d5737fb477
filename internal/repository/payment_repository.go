package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/workhub/backend/internal/models"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrEscrowNotFound    = errors.New("escrow not found")
)

// PaymentRepository отвечает за балансы, escrow по этапам и транзакции.
type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// GetBalance возвращает баланс пользователя, создаёт если не существует.
func (r *PaymentRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	var balance models.UserBalance
	query := `
		INSERT INTO user_balances (user_id, available, frozen)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING user_id, available, frozen, updated_at
	`
	if err := r.db.GetContext(ctx, &balance, query, userID); err != nil {
		return nil, fmt.Errorf("payment repository: get balance %w", err)
	}
	return &balance, nil
}

// Deposit пополняет баланс пользователя.
func (r *PaymentRepository) Deposit(ctx context.Context, userID uuid.UUID, amount float64, description string) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_balances (user_id, available, frozen)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET available = user_balances.available + $2, updated_at = NOW()
	`, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("payment repository: deposit update balance %w", err)
	}

	var transaction models.Transaction
	err = tx.GetContext(ctx, &transaction, `
		INSERT INTO transactions (user_id, type, amount, status, description, completed_at)
		VALUES ($1, 'deposit', $2, 'completed', $3, NOW())
		RETURNING id, user_id, project_id, milestone_id, type, amount, status, description, created_at, completed_at
	`, userID, amount, description)
	if err != nil {
		return nil, fmt.Errorf("payment repository: deposit create transaction %w", err)
	}

	return &transaction, tx.Commit()
}

// CreateEscrow создаёт escrow под этап и замораживает средства клиента.
// На этап допускается не более одного escrow в статусе held.
func (r *PaymentRepository) CreateEscrow(ctx context.Context, projectID, milestoneID, clientID, freelancerID uuid.UUID, amount float64) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var balance models.UserBalance
	err = tx.GetContext(ctx, &balance, `SELECT user_id, available, frozen FROM user_balances WHERE user_id = $1 FOR UPDATE`, clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}
	if balance.Available < amount {
		return nil, ErrInsufficientFunds
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET available = available - $2, frozen = frozen + $2, updated_at = NOW()
		WHERE user_id = $1
	`, clientID, amount)
	if err != nil {
		return nil, err
	}

	var escrow models.Escrow
	err = tx.GetContext(ctx, &escrow, `
		INSERT INTO escrow (project_id, milestone_id, client_id, freelancer_id, amount, status)
		VALUES ($1, $2, $3, $4, $5, 'held')
		RETURNING id, project_id, milestone_id, client_id, freelancer_id, amount, status, created_at, released_at
	`, projectID, milestoneID, clientID, freelancerID, amount)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, project_id, milestone_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, $3, 'escrow_hold', $4, 'completed', 'Заморозка средств под этап', NOW())
	`, clientID, projectID, milestoneID, amount)
	if err != nil {
		return nil, err
	}

	return &escrow, tx.Commit()
}

// ReleaseEscrow освобождает средства этапа в пользу фрилансера.
// Повторный вызов по уже освобождённому этапу возвращает ErrEscrowNotFound.
func (r *PaymentRepository) ReleaseEscrow(ctx context.Context, milestoneID uuid.UUID) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var escrow models.Escrow
	err = tx.GetContext(ctx, &escrow, `SELECT * FROM escrow WHERE milestone_id = $1 AND status = 'held' FOR UPDATE`, milestoneID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET frozen = frozen - $2, updated_at = NOW()
		WHERE user_id = $1
	`, escrow.ClientID, escrow.Amount)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_balances (user_id, available, frozen)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET available = user_balances.available + $2, updated_at = NOW()
	`, escrow.FreelancerID, escrow.Amount)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `UPDATE escrow SET status = 'released', released_at = $2 WHERE id = $1`, escrow.ID, now)
	if err != nil {
		return nil, err
	}
	escrow.Status = models.EscrowStatusReleased
	escrow.ReleasedAt = &now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, project_id, milestone_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, $3, 'escrow_release', $4, 'completed', 'Оплата принятого этапа', NOW())
	`, escrow.FreelancerID, escrow.ProjectID, milestoneID, escrow.Amount)
	if err != nil {
		return nil, err
	}

	return &escrow, tx.Commit()
}

// RefundEscrow возвращает средства этапа клиенту.
func (r *PaymentRepository) RefundEscrow(ctx context.Context, milestoneID uuid.UUID) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var escrow models.Escrow
	err = tx.GetContext(ctx, &escrow, `SELECT * FROM escrow WHERE milestone_id = $1 AND status = 'held' FOR UPDATE`, milestoneID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE user_balances SET available = available + $2, frozen = frozen - $2, updated_at = NOW()
		WHERE user_id = $1
	`, escrow.ClientID, escrow.Amount)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `UPDATE escrow SET status = 'refunded', released_at = $2 WHERE id = $1`, escrow.ID, now)
	if err != nil {
		return nil, err
	}
	escrow.Status = models.EscrowStatusRefunded
	escrow.ReleasedAt = &now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, project_id, milestone_id, type, amount, status, description, completed_at)
		VALUES ($1, $2, $3, 'escrow_refund', $4, 'completed', 'Возврат средств за этап', NOW())
	`, escrow.ClientID, escrow.ProjectID, milestoneID, escrow.Amount)
	if err != nil {
		return nil, err
	}

	return &escrow, tx.Commit()
}

// ListHeldByProject возвращает идентификаторы этапов проекта с замороженным escrow.
func (r *PaymentRepository) ListHeldByProject(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	var milestoneIDs []uuid.UUID
	err := r.db.SelectContext(ctx, &milestoneIDs,
		`SELECT milestone_id FROM escrow WHERE project_id = $1 AND status = 'held'`, projectID)
	if err != nil {
		return nil, fmt.Errorf("payment repository: list held by project %w", err)
	}
	return milestoneIDs, nil
}

// GetEscrowByMilestoneID возвращает escrow этапа.
func (r *PaymentRepository) GetEscrowByMilestoneID(ctx context.Context, milestoneID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	err := r.db.GetContext(ctx, &escrow, `SELECT * FROM escrow WHERE milestone_id = $1 ORDER BY created_at DESC LIMIT 1`, milestoneID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}
	return &escrow, nil
}

// ListTransactions возвращает историю транзакций пользователя.
func (r *PaymentRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT id, user_id, project_id, milestone_id, type, amount, status, description, created_at, completed_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return transactions, err
}
