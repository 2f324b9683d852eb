package handlers

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/models"
	"github.com/kazakhbala01/qazevAPP/internal/ocpp"
	"github.com/kazakhbala01/qazevAPP/internal/ocpp/protocol"
)

// ChargePointRegistry records units seen on the wire.
type ChargePointRegistry interface {
	Upsert(ctx context.Context, cp *models.ChargePoint) error
	Touch(ctx context.Context, id string) error
}

// NewBootNotificationHandler accepts a charge point and advertises the
// heartbeat interval. No connector state changes here.
func NewBootNotificationHandler(repo ChargePointRegistry, heartbeatSeconds int, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.BootNotificationRequest](payload)
		if err != nil {
			return nil, err
		}

		cp := &models.ChargePoint{
			ID:              chargePointID,
			Vendor:          req.ChargePointVendor,
			Model:           req.ChargePointModel,
			FirmwareVersion: req.FirmwareVersion,
			LastSeen:        time.Now().UTC(),
		}
		if err := repo.Upsert(ctx, cp); err != nil {
			logger.Error("upsert charge point failed", zap.String("charge_point_id", chargePointID), zap.Error(err))
			return nil, err
		}

		return protocol.BootNotificationResponse{
			CurrentTime: time.Now().UTC(),
			Interval:    heartbeatSeconds,
			Status:      protocol.StatusAccepted,
		}, nil
	}
}

// NewHeartbeatHandler acks with the server time and refreshes last_seen.
func NewHeartbeatHandler(repo ChargePointRegistry) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		_ = repo.Touch(ctx, chargePointID)
		return protocol.HeartbeatResponse{CurrentTime: time.Now().UTC()}, nil
	}
}
