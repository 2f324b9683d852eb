package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/kazakhbala01/qazevAPP/internal/models"
)

// CatalogRepository serves the read-only location/station/connector tree for
// the map screen.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository returns the repository.
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Locations returns every location with its nested stations and connectors.
func (r *CatalogRepository) Locations(ctx context.Context) ([]models.Location, error) {
	const query = `
		SELECT
			l.id,
			l.name,
			l.latitude::float,
			l.longitude::float,
			l.details,
			l.capacity,
			COALESCE(JSON_AGG(
				JSON_BUILD_OBJECT(
					'id', s.id,
					'location_id', s.location_id,
					'station_number', s.station_number,
					'status', s.status,
					'connectors', (
						SELECT COALESCE(JSON_AGG(
							JSON_BUILD_OBJECT(
								'id', c.id,
								'station_id', c.station_id,
								'connector_type', c.connector_type,
								'power', c.power,
								'status', c.status
							)
						), '[]'::json)
						FROM connectors c
						WHERE c.station_id = s.id
					)
				)
			) FILTER (WHERE s.id IS NOT NULL), '[]'::json)
		FROM locations l
		LEFT JOIN stations s ON l.id = s.location_id
		GROUP BY l.id
		ORDER BY l.id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var loc models.Location
		var stationsJSON []byte
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Latitude, &loc.Longitude, &loc.Details, &loc.Capacity, &stationsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stationsJSON, &loc.Stations); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return locations, nil
}
