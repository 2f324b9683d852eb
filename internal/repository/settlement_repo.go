package repository

import (
	"context"
	"database/sql"

	"github.com/kazakhbala01/qazevAPP/internal/models"
)

// SettlementRepository reads and advances settlement intents. Rows are
// inserted by SessionRepository.Close in the same transaction that closes the
// session.
type SettlementRepository struct {
	db *sql.DB
}

// NewSettlementRepository returns the repository.
func NewSettlementRepository(db *sql.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// ListPending returns up to limit settlements awaiting a ledger debit.
func (r *SettlementRepository) ListPending(ctx context.Context, limit int) ([]models.Settlement, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, session_id, user_id, amount, status, created_at, updated_at
		FROM settlements
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, models.SettlementPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settlements []models.Settlement
	for rows.Next() {
		var s models.Settlement
		if err := rows.Scan(&s.ID, &s.SessionID, &s.UserID, &s.Amount, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return settlements, nil
}

// Claim moves a pending settlement to processing. Exactly one caller wins
// the row; everyone else sees false and skips it.
func (r *SettlementRepository) Claim(ctx context.Context, id int64) (bool, error) {
	return r.transition(ctx, id, models.SettlementPending, models.SettlementProcessing)
}

// Release returns a claimed settlement to pending after a debit that failed
// without moving money, so a later run retries it.
func (r *SettlementRepository) Release(ctx context.Context, id int64) error {
	_, err := r.transition(ctx, id, models.SettlementProcessing, models.SettlementPending)
	return err
}

// Finish advances a claimed settlement to its terminal status.
func (r *SettlementRepository) Finish(ctx context.Context, id int64, status string) error {
	moved, err := r.transition(ctx, id, models.SettlementProcessing, status)
	if err != nil {
		return err
	}
	if !moved {
		return models.ErrNotFound
	}
	return nil
}

func (r *SettlementRepository) transition(ctx context.Context, id int64, from, to string) (bool, error) {
	const query = `
		UPDATE settlements
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query, id, to, from)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
