package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/kazakhbala01/qazevAPP/internal/models"
)

// ConnectorRepository is the authoritative connector status registry.
type ConnectorRepository struct {
	db *sql.DB
}

// NewConnectorRepository returns the registry.
func NewConnectorRepository(db *sql.DB) *ConnectorRepository {
	return &ConnectorRepository{db: db}
}

var allowedStatuses = map[string]struct{}{
	models.ConnectorAvailable:    {},
	models.ConnectorInUse:        {},
	models.ConnectorOutOfService: {},
}

// NormalizeStatus lowercases a reported status and rejects values outside the
// registry's vocabulary.
func NormalizeStatus(status string) (string, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if _, ok := allowedStatuses[status]; !ok {
		return "", models.ErrInvalidStatus
	}
	return status, nil
}

// GetByID returns one connector.
func (r *ConnectorRepository) GetByID(ctx context.Context, id int64) (*models.Connector, error) {
	const query = `
		SELECT id, station_id, connector_type, power, status, updated_at
		FROM connectors
		WHERE id = $1
	`
	var c models.Connector
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.StationID,
		&c.ConnectorType,
		&c.PowerKW,
		&c.Status,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetDetail returns a connector joined with its station and location.
func (r *ConnectorRepository) GetDetail(ctx context.Context, id int64) (*models.ConnectorDetail, error) {
	const query = `
		SELECT c.id, c.station_id, c.connector_type, c.power, c.status, c.updated_at,
		       s.station_number, l.name
		FROM connectors c
		LEFT JOIN stations s ON c.station_id = s.id
		LEFT JOIN locations l ON s.location_id = l.id
		WHERE c.id = $1
	`
	var d models.ConnectorDetail
	var stationNumber sql.NullInt64
	var locationName sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID,
		&d.StationID,
		&d.ConnectorType,
		&d.PowerKW,
		&d.Status,
		&d.UpdatedAt,
		&stationNumber,
		&locationName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.StationNumber = int(stationNumber.Int64)
	d.LocationName = locationName.String
	return &d, nil
}

// SetStatus writes a normalized status. The caller is expected to have run the
// value through NormalizeStatus already; unknown values are rejected here too.
func (r *ConnectorRepository) SetStatus(ctx context.Context, id int64, status string) error {
	status, err := NormalizeStatus(status)
	if err != nil {
		return err
	}
	const query = `
		UPDATE connectors
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, status)
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

// ListByStation returns all connectors of one charge point.
func (r *ConnectorRepository) ListByStation(ctx context.Context, stationID string) ([]models.Connector, error) {
	const query = `
		SELECT id, station_id, connector_type, power, status, updated_at
		FROM connectors
		WHERE station_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connectors []models.Connector
	for rows.Next() {
		var c models.Connector
		if err := rows.Scan(&c.ID, &c.StationID, &c.ConnectorType, &c.PowerKW, &c.Status, &c.UpdatedAt); err != nil {
			return nil, err
		}
		connectors = append(connectors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return connectors, nil
}

// MarkStationOutOfService flips every connector of a charge point to
// out of service. Used by the offline watchdog.
func (r *ConnectorRepository) MarkStationOutOfService(ctx context.Context, stationID string) error {
	const query = `
		UPDATE connectors
		SET status = $2, updated_at = NOW()
		WHERE station_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, stationID, models.ConnectorOutOfService)
	return err
}
