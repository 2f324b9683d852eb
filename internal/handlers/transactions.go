package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/models"
	"github.com/kazakhbala01/qazevAPP/internal/ocpp"
	"github.com/kazakhbala01/qazevAPP/internal/ocpp/protocol"
)

// SessionConfirmer is the lifecycle surface the transaction handlers drive.
type SessionConfirmer interface {
	ConfirmStart(ctx context.Context, connectorID int64, idTag, transactionID string) (string, error)
	ConfirmStop(ctx context.Context, transactionID string, meterStopKWh float64) (*models.ChargingSession, error)
}

// NewStartTransactionHandler confirms a charge point's StartTransaction. The
// returned transaction id is authoritative: an unsolicited cable-first start
// gets a fresh one, a start pushed from the app echoes the known id.
func NewStartTransactionHandler(sessions SessionConfirmer, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.StartTransactionRequest](payload)
		if err != nil {
			return nil, err
		}

		transactionID, err := sessions.ConfirmStart(ctx, req.ConnectorID, req.IdTag, req.TransactionID)
		if err != nil {
			logger.Warn("start transaction rejected",
				zap.String("charge_point_id", chargePointID),
				zap.Int64("connector_id", req.ConnectorID),
				zap.String("id_tag", req.IdTag),
				zap.Error(err),
			)
			return nil, err
		}

		return protocol.StartTransactionResponse{
			TransactionID: transactionID,
			IdTagInfo:     protocol.IdTagInfo{Status: protocol.StatusAccepted},
		}, nil
	}
}

// NewStopTransactionHandler settles a session on the charge point's
// StopTransaction. A stop for an already-settled transaction is acked anyway
// so the unit does not retry forever.
func NewStopTransactionHandler(sessions SessionConfirmer, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.StopTransactionRequest](payload)
		if err != nil {
			return nil, err
		}

		if _, err := sessions.ConfirmStop(ctx, req.TransactionID, req.MeterStop); err != nil {
			if !errors.Is(err, models.ErrAlreadyClosed) {
				logger.Error("stop transaction failed",
					zap.String("charge_point_id", chargePointID),
					zap.String("transaction_id", req.TransactionID),
					zap.Error(err),
				)
				return nil, err
			}
		}

		return protocol.StopTransactionResponse{
			IdTagInfo: protocol.IdTagInfo{Status: protocol.StatusAccepted},
		}, nil
	}
}
