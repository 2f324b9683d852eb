package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kazakhbala01/qazevAPP/internal/models"
)

// SessionRepository persists charging sessions. Start and Close are single
// database transactions so connector status, the session row, the history
// mirror and the settlement intent never diverge.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository returns the repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, connector_id, user_id, transaction_id, status, start_time, end_time, energy_kwh, cost`

// Start creates an active session. Inside one transaction it locks the
// connector row, verifies it is available, verifies the user has no other
// active session, inserts the session and flips the connector to in use.
func (r *SessionRepository) Start(ctx context.Context, session *models.ChargingSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM connectors WHERE id = $1 FOR UPDATE`,
		session.ConnectorID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != models.ConnectorAvailable {
		return models.ErrConnectorUnavailable
	}

	var userBusy bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM charging_sessions WHERE user_id = $1 AND status = $2)`,
		session.UserID, models.SessionActive,
	).Scan(&userBusy)
	if err != nil {
		return err
	}
	if userBusy {
		return models.ErrUserAlreadyCharging
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO charging_sessions (connector_id, user_id, transaction_id, status, start_time)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		session.ConnectorID,
		session.UserID,
		session.TransactionID,
		session.Status,
		session.StartTime,
	).Scan(&session.ID)
	if err != nil {
		// The EXISTS check above does not lock the user's rows, so two
		// simultaneous starts by one user can both reach the insert. The
		// partial unique indexes catch the loser.
		if isUniqueViolation(err, "charging_sessions_active_user") {
			return models.ErrUserAlreadyCharging
		}
		if isUniqueViolation(err, "charging_sessions_active_connector") {
			return models.ErrConnectorUnavailable
		}
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE connectors SET status = $2, updated_at = NOW() WHERE id = $1`,
		session.ConnectorID, models.ConnectorInUse,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// CloseInput carries the settlement figures computed by the lifecycle manager.
type CloseInput struct {
	TransactionID string
	EndTime       time.Time
	EnergyKWh     float64
	Cost          int64
}

// Close finalizes the active session for a transaction id. The conditional
// update on status makes a duplicate stop a no-op reported as ErrAlreadyClosed.
// The connector release, the history mirror and the pending settlement are
// written in the same transaction.
func (r *SessionRepository) Close(ctx context.Context, input CloseInput) (*models.ChargingSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var s models.ChargingSession
	var endTime sql.NullTime
	err = tx.QueryRowContext(ctx,
		`UPDATE charging_sessions
		 SET end_time = $2, energy_kwh = $3, cost = $4, status = $5
		 WHERE transaction_id = $1 AND status = $6
		 RETURNING `+sessionColumns,
		input.TransactionID,
		input.EndTime,
		input.EnergyKWh,
		input.Cost,
		models.SessionCompleted,
		models.SessionActive,
	).Scan(
		&s.ID, &s.ConnectorID, &s.UserID, &s.TransactionID, &s.Status,
		&s.StartTime, &endTime, &s.EnergyKWh, &s.Cost,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.classifyMissing(ctx, input.TransactionID)
	}
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		s.EndTime = &endTime.Time
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE connectors SET status = $2, updated_at = NOW() WHERE id = $1`,
		s.ConnectorID, models.ConnectorAvailable,
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO charge_history (session_id, connector_id, user_id, transaction_id, start_time, end_time, energy_kwh, cost, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		s.ID, s.ConnectorID, s.UserID, s.TransactionID, s.StartTime, s.EndTime, s.EnergyKWh, s.Cost,
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settlements (session_id, user_id, amount, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		s.ID, s.UserID, s.Cost, models.SettlementPending,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &s, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// classifyMissing distinguishes a duplicate stop from an unknown transaction.
func (r *SessionRepository) classifyMissing(ctx context.Context, transactionID string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM charging_sessions WHERE transaction_id = $1)`,
		transactionID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return models.ErrAlreadyClosed
	}
	return models.ErrNotFound
}

func (r *SessionRepository) getActive(ctx context.Context, where string, arg interface{}) (*models.ChargingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM charging_sessions WHERE ` + where + ` AND status = $2`
	var s models.ChargingSession
	var endTime sql.NullTime
	err := r.db.QueryRowContext(ctx, query, arg, models.SessionActive).Scan(
		&s.ID, &s.ConnectorID, &s.UserID, &s.TransactionID, &s.Status,
		&s.StartTime, &endTime, &s.EnergyKWh, &s.Cost,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		s.EndTime = &endTime.Time
	}
	return &s, nil
}

// GetActiveByTransaction returns the active session for a transaction id.
func (r *SessionRepository) GetActiveByTransaction(ctx context.Context, transactionID string) (*models.ChargingSession, error) {
	return r.getActive(ctx, "transaction_id = $1", transactionID)
}

// GetActiveByUser returns the user's single active session.
func (r *SessionRepository) GetActiveByUser(ctx context.Context, userID int64) (*models.ChargingSession, error) {
	return r.getActive(ctx, "user_id = $1", userID)
}

// GetActiveByConnector returns the active session bound to a connector.
func (r *SessionRepository) GetActiveByConnector(ctx context.Context, connectorID int64) (*models.ChargingSession, error) {
	return r.getActive(ctx, "connector_id = $1", connectorID)
}

// ActiveByStation returns in-flight sessions on any connector of one charge
// point. Used by the offline watchdog.
func (r *SessionRepository) ActiveByStation(ctx context.Context, stationID string) ([]models.ChargingSession, error) {
	const query = `
		SELECT s.id, s.connector_id, s.user_id, s.transaction_id, s.status, s.start_time, s.end_time, s.energy_kwh, s.cost
		FROM charging_sessions s
		JOIN connectors c ON s.connector_id = c.id
		WHERE c.station_id = $1 AND s.status = $2
	`
	rows, err := r.db.QueryContext(ctx, query, stationID, models.SessionActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.ChargingSession
	for rows.Next() {
		var s models.ChargingSession
		var endTime sql.NullTime
		if err := rows.Scan(&s.ID, &s.ConnectorID, &s.UserID, &s.TransactionID, &s.Status,
			&s.StartTime, &endTime, &s.EnergyKWh, &s.Cost); err != nil {
			return nil, err
		}
		if endTime.Valid {
			s.EndTime = &endTime.Time
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// HasSessionInWindow reports whether the user checked in on the connector
// within a reservation's slot window.
func (r *SessionRepository) HasSessionInWindow(ctx context.Context, connectorID, userID int64, from, to time.Time) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM charging_sessions
			WHERE connector_id = $1 AND user_id = $2 AND start_time >= $3 AND start_time < $4
		)
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, connectorID, userID, from, to).Scan(&exists)
	return exists, err
}
