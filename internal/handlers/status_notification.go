package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/ocpp"
	"github.com/kazakhbala01/qazevAPP/internal/ocpp/protocol"
)

// StatusRegistry is the connector status write surface.
type StatusRegistry interface {
	SetStatus(ctx context.Context, id int64, status string) error
}

// NewStatusNotificationHandler forwards reported connector statuses into the
// registry. Unrecognized values are rejected without mutating state; the
// processor answers them with an InvalidStatus call error.
func NewStatusNotificationHandler(registry StatusRegistry, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.StatusNotificationRequest](payload)
		if err != nil {
			return nil, err
		}

		if err := registry.SetStatus(ctx, req.ConnectorID, req.Status); err != nil {
			return nil, err
		}

		logger.Info("connector status updated",
			zap.String("charge_point_id", chargePointID),
			zap.Int64("connector_id", req.ConnectorID),
			zap.String("status", req.Status),
		)
		return protocol.StatusNotificationResponse{}, nil
	}
}
