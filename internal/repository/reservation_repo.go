package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kazakhbala01/qazevAPP/internal/models"
)

// ReservationRepository persists connector time-slot holds. Writers for one
// connector serialize on the connector row lock before scanning for overlap;
// locking only the existing reservation rows is not enough, a concurrent
// insert is invisible to both transactions when the day starts empty.
type ReservationRepository struct {
	db *sql.DB
}

// NewReservationRepository returns the repository.
func NewReservationRepository(db *sql.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `id, connector_id, user_id, to_char(reservation_date, 'YYYY-MM-DD'), to_char(arrival_time, 'HH24:MI'), duration, created_at`

func scanReservation(row interface{ Scan(...interface{}) error }) (models.Reservation, error) {
	var res models.Reservation
	err := row.Scan(&res.ID, &res.ConnectorID, &res.UserID, &res.Date, &res.ArrivalTime, &res.DurationMinutes, &res.CreatedAt)
	return res, err
}

// Create inserts a reservation after re-validating overlap against every slot
// already held for the connector and date.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	return r.insertConflictFree(ctx, res, 0)
}

// Update re-runs the overlap validation excluding the reservation itself.
func (r *ReservationRepository) Update(ctx context.Context, res *models.Reservation) error {
	return r.insertConflictFree(ctx, res, res.ID)
}

func (r *ReservationRepository) insertConflictFree(ctx context.Context, res *models.Reservation, excludeID int64) error {
	newStart, newEnd, err := res.SlotWindow()
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var lockedID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM connectors WHERE id = $1 FOR UPDATE`,
		res.ConnectorID,
	).Scan(&lockedID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE connector_id = $1 AND reservation_date = $2::date`,
		res.ConnectorID, res.Date,
	)
	if err != nil {
		return err
	}
	existing, err := collectReservations(rows)
	if err != nil {
		return err
	}

	for _, other := range existing {
		if other.ID == excludeID {
			continue
		}
		otherStart, otherEnd, err := other.SlotWindow()
		if err != nil {
			return err
		}
		if models.Overlaps(newStart, newEnd, otherStart, otherEnd) {
			return models.ErrReservationConflict
		}
	}

	if excludeID > 0 {
		result, err := tx.ExecContext(ctx,
			`UPDATE reservations
			 SET connector_id = $2, reservation_date = $3::date, arrival_time = $4::time, duration = $5
			 WHERE id = $1 AND user_id = $6`,
			res.ID, res.ConnectorID, res.Date, res.ArrivalTime, res.DurationMinutes, res.UserID,
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return models.ErrNotFound
		}
	} else {
		err = tx.QueryRowContext(ctx,
			`INSERT INTO reservations (connector_id, user_id, reservation_date, arrival_time, duration, created_at)
			 VALUES ($1, $2, $3::date, $4::time, $5, NOW())
			 RETURNING id, created_at`,
			res.ConnectorID, res.UserID, res.Date, res.ArrivalTime, res.DurationMinutes,
		).Scan(&res.ID, &res.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID returns one reservation.
func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Delete removes a reservation owned by the user.
func (r *ReservationRepository) Delete(ctx context.Context, id, userID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM reservations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListByConnector returns every hold on a connector, soonest first.
func (r *ReservationRepository) ListByConnector(ctx context.Context, connectorID int64) ([]models.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE connector_id = $1
		 ORDER BY reservation_date, arrival_time`,
		connectorID,
	)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ListByUser returns the user's holds, soonest first.
func (r *ReservationRepository) ListByUser(ctx context.Context, userID int64) ([]models.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE user_id = $1
		 ORDER BY reservation_date, arrival_time`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ExpiredCandidates snapshots reservations whose arrival time plus grace
// period has fully elapsed. The sweep decides per row whether a check-in saved
// it before calling DeleteIfUnchanged.
func (r *ReservationRepository) ExpiredCandidates(ctx context.Context, now time.Time, grace time.Duration) ([]models.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE (reservation_date + arrival_time) + make_interval(secs => $2) < $1`,
		now, grace.Seconds(),
	)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// DeleteIfUnchanged removes a reservation only if its slot was not moved since
// the sweep snapshot, so a concurrent update cannot be destroyed.
func (r *ReservationRepository) DeleteIfUnchanged(ctx context.Context, id int64, date, arrivalTime string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM reservations
		 WHERE id = $1 AND reservation_date = $2::date AND arrival_time = $3::time`,
		id, date, arrivalTime,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// NextUpcoming returns the nearest reservation on a connector starting after
// now and within the lookahead window, or ErrNotFound.
func (r *ReservationRepository) NextUpcoming(ctx context.Context, connectorID int64, now time.Time, lookahead time.Duration) (*models.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE connector_id = $1
		   AND (reservation_date + arrival_time) > $2
		   AND (reservation_date + arrival_time) <= $3
		 ORDER BY reservation_date, arrival_time
		 LIMIT 1`,
		connectorID, now, now.Add(lookahead),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func collectReservations(rows *sql.Rows) ([]models.Reservation, error) {
	defer rows.Close()
	var reservations []models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reservations, nil
}
