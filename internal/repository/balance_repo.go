package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kazakhbala01/qazevAPP/internal/models"
)

// BalanceRepository holds prepaid user balances. Top-up is a single
// upsert-increment statement; debit locks the row and rejects overdrafts.
type BalanceRepository struct {
	db *sql.DB
}

// NewBalanceRepository returns the repository.
func NewBalanceRepository(db *sql.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Get returns the user's balance; absent rows read as zero.
func (r *BalanceRepository) Get(ctx context.Context, userID int64) (*models.UserBalance, error) {
	const query = `
		SELECT user_id, balance, updated_at
		FROM user_balances
		WHERE user_id = $1
	`
	var b models.UserBalance
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&b.UserID, &b.Balance, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.UserBalance{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// TopUp credits the balance atomically, creating the row if absent, and
// returns the new balance.
func (r *BalanceRepository) TopUp(ctx context.Context, userID, amount int64) (int64, error) {
	const query = `
		INSERT INTO user_balances (user_id, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			balance = user_balances.balance + EXCLUDED.balance,
			updated_at = NOW()
		RETURNING balance
	`
	var balance int64
	if err := r.db.QueryRowContext(ctx, query, userID, amount).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// Debit decrements the balance inside one transaction with a row lock. If the
// balance does not cover the amount the transaction rolls back and
// ErrInsufficientBalance is returned; the balance is never clamped.
func (r *BalanceRepository) Debit(ctx context.Context, userID, amount int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM user_balances WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		balance = 0
		err = nil
	}
	if err != nil {
		return 0, err
	}

	if balance < amount {
		return balance, models.ErrInsufficientBalance
	}

	newBalance := balance - amount
	_, err = tx.ExecContext(ctx,
		`UPDATE user_balances SET balance = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, newBalance,
	)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}
