package telemetry

import (
	"context"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/models"
	"github.com/kazakhbala01/qazevAPP/internal/redisstore"
)

// MeterUpdate is the event pushed to mobile subscribers.
type MeterUpdate struct {
	Type          string  `json:"type"`
	TransactionID string  `json:"transactionId"`
	ConnectorID   int64   `json:"connectorId"`
	MeterValue    float64 `json:"meterValue"`
}

// EventTypeMeterUpdate tags meter readings on the mobile channel.
const EventTypeMeterUpdate = "meter_update"

// ActiveIndex resolves a connector to its in-flight session.
type ActiveIndex interface {
	GetActiveByConnector(ctx context.Context, connectorID int64) (*redisstore.ActiveSession, error)
	SaveMeter(ctx context.Context, transactionID string, meterValue float64) error
}

// SessionLookup is the database fallback when the cache misses.
type SessionLookup interface {
	GetActiveByConnector(ctx context.Context, connectorID int64) (*models.ChargingSession, error)
}

// Broadcaster delivers events to subscribers.
type Broadcaster interface {
	Broadcast(event interface{})
}

// Fanout routes charge-point meter readings to the mobile subscribers
// watching the matching transaction. Readings without an active transaction
// are dropped; telemetry has no persistence or replay.
type Fanout struct {
	index    ActiveIndex
	sessions SessionLookup
	hub      Broadcaster
	logger   *zap.Logger
}

// NewFanout builds the fan-out.
func NewFanout(index ActiveIndex, sessions SessionLookup, hub Broadcaster, logger *zap.Logger) *Fanout {
	return &Fanout{
		index:    index,
		sessions: sessions,
		hub:      hub,
		logger:   logger,
	}
}

// HandleMeterValue resolves the transaction for a reading and rebroadcasts it.
func (f *Fanout) HandleMeterValue(ctx context.Context, connectorID int64, meterValue float64) {
	transactionID := f.resolveTransaction(ctx, connectorID)
	if transactionID == "" {
		f.logger.Warn("meter reading without active transaction, dropping",
			zap.Int64("connector_id", connectorID),
			zap.Float64("meter_value", meterValue),
		)
		return
	}

	if f.index != nil {
		if err := f.index.SaveMeter(ctx, transactionID, meterValue); err != nil {
			f.logger.Warn("cache meter reading failed", zap.Error(err))
		}
	}

	f.hub.Broadcast(MeterUpdate{
		Type:          EventTypeMeterUpdate,
		TransactionID: transactionID,
		ConnectorID:   connectorID,
		MeterValue:    meterValue,
	})
}

func (f *Fanout) resolveTransaction(ctx context.Context, connectorID int64) string {
	if f.index != nil {
		if cached, err := f.index.GetActiveByConnector(ctx, connectorID); err == nil {
			return cached.TransactionID
		}
	}
	session, err := f.sessions.GetActiveByConnector(ctx, connectorID)
	if err != nil {
		return ""
	}
	return session.TransactionID
}
