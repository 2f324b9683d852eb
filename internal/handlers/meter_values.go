package handlers

import (
	"context"
	"encoding/json"

	"github.com/kazakhbala01/qazevAPP/internal/ocpp"
	"github.com/kazakhbala01/qazevAPP/internal/ocpp/protocol"
)

// MeterSink receives live readings for fan-out.
type MeterSink interface {
	HandleMeterValue(ctx context.Context, connectorID int64, meterValue float64)
}

// NewMeterValuesHandler feeds readings into the telemetry fan-out. The ack is
// unconditional; a reading with no active transaction is dropped downstream.
func NewMeterValuesHandler(sink MeterSink) ocpp.HandlerFunc {
	return func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.Decode[protocol.MeterValuesRequest](payload)
		if err != nil {
			return nil, err
		}
		sink.HandleMeterValue(ctx, req.ConnectorID, req.MeterValue)
		return protocol.MeterValuesResponse{}, nil
	}
}
