package repository

import (
	"context"
	"database/sql"

	"github.com/kazakhbala01/qazevAPP/internal/models"
)

// ChargePointRepository tracks the physical units seen via BootNotification.
type ChargePointRepository struct {
	db *sql.DB
}

// NewChargePointRepository returns the repository.
func NewChargePointRepository(db *sql.DB) *ChargePointRepository {
	return &ChargePointRepository{db: db}
}

// Upsert records a charge point's boot data and refreshes last_seen.
func (r *ChargePointRepository) Upsert(ctx context.Context, cp *models.ChargePoint) error {
	const query = `
		INSERT INTO charge_points (id, vendor, model, firmware_version, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			vendor = EXCLUDED.vendor,
			model = EXCLUDED.model,
			firmware_version = EXCLUDED.firmware_version,
			last_seen = EXCLUDED.last_seen
	`
	_, err := r.db.ExecContext(ctx, query, cp.ID, cp.Vendor, cp.Model, cp.FirmwareVersion, cp.LastSeen)
	return err
}

// Touch refreshes last_seen, used by the heartbeat handler.
func (r *ChargePointRepository) Touch(ctx context.Context, id string) error {
	const query = `UPDATE charge_points SET last_seen = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
