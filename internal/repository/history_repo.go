package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kazakhbala01/qazevAPP/internal/models"
)

// HistoryRepository reads the append-only charge history. Entries are written
// by SessionRepository.Close.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository returns the repository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const historyColumns = `id, session_id, connector_id, user_id, transaction_id, start_time, end_time, energy_kwh, cost, created_at`

// ListByUser returns the user's completed sessions, newest first.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.ChargeHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + historyColumns + `
		FROM charge_history
		WHERE user_id = $1
		ORDER BY end_time DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.ChargeHistoryEntry
	for rows.Next() {
		var e models.ChargeHistoryEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ConnectorID, &e.UserID, &e.TransactionID,
			&e.StartTime, &e.EndTime, &e.EnergyKWh, &e.Cost, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetByID returns one history entry.
func (r *HistoryRepository) GetByID(ctx context.Context, id int64) (*models.ChargeHistoryEntry, error) {
	query := `SELECT ` + historyColumns + ` FROM charge_history WHERE id = $1`
	var e models.ChargeHistoryEntry
	err := r.db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.SessionID, &e.ConnectorID, &e.UserID,
		&e.TransactionID, &e.StartTime, &e.EndTime, &e.EnergyKWh, &e.Cost, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
