package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/models"
	"github.com/kazakhbala01/qazevAPP/internal/ocpp/protocol"
)

type fakeChargePoints struct {
	upserted []*models.ChargePoint
	touched  []string
}

func (f *fakeChargePoints) Upsert(ctx context.Context, cp *models.ChargePoint) error {
	f.upserted = append(f.upserted, cp)
	return nil
}

func (f *fakeChargePoints) Touch(ctx context.Context, id string) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeStatusRegistry struct {
	statuses map[int64]string
	err      error
}

func (f *fakeStatusRegistry) SetStatus(ctx context.Context, id int64, status string) error {
	if f.err != nil {
		return f.err
	}
	if f.statuses == nil {
		f.statuses = make(map[int64]string)
	}
	f.statuses[id] = status
	return nil
}

type fakeConfirmer struct {
	startTx  string
	startErr error
	stopErr  error
	stops    []string
}

func (f *fakeConfirmer) ConfirmStart(ctx context.Context, connectorID int64, idTag, transactionID string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	return f.startTx, nil
}

func (f *fakeConfirmer) ConfirmStop(ctx context.Context, transactionID string, meterStopKWh float64) (*models.ChargingSession, error) {
	f.stops = append(f.stops, transactionID)
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	return &models.ChargingSession{TransactionID: transactionID}, nil
}

type fakeSink struct {
	readings []float64
}

func (f *fakeSink) HandleMeterValue(ctx context.Context, connectorID int64, meterValue float64) {
	f.readings = append(f.readings, meterValue)
}

func TestBootNotificationAdvertisesHeartbeat(t *testing.T) {
	repo := &fakeChargePoints{}
	handler := NewBootNotificationHandler(repo, 300, zap.NewNop())

	resp, err := handler(context.Background(), "CP-1", json.RawMessage(`{"chargePointVendor":"EVC","chargePointModel":"X1"}`))
	if err != nil {
		t.Fatalf("boot notification: %v", err)
	}

	boot, ok := resp.(protocol.BootNotificationResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", resp)
	}
	if boot.Interval != 300 || boot.Status != protocol.StatusAccepted {
		t.Fatalf("unexpected response: %+v", boot)
	}
	if len(repo.upserted) != 1 || repo.upserted[0].ID != "CP-1" || repo.upserted[0].Vendor != "EVC" {
		t.Fatalf("charge point not recorded: %+v", repo.upserted)
	}
}

func TestHeartbeatTouchesChargePoint(t *testing.T) {
	repo := &fakeChargePoints{}
	handler := NewHeartbeatHandler(repo)

	if _, err := handler(context.Background(), "CP-1", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if len(repo.touched) != 1 || repo.touched[0] != "CP-1" {
		t.Fatalf("last_seen not refreshed: %v", repo.touched)
	}
}

func TestStatusNotificationUpdatesRegistry(t *testing.T) {
	registry := &fakeStatusRegistry{}
	handler := NewStatusNotificationHandler(registry, zap.NewNop())

	_, err := handler(context.Background(), "CP-1", json.RawMessage(`{"connectorId":7,"status":"Available"}`))
	if err != nil {
		t.Fatalf("status notification: %v", err)
	}
	if registry.statuses[7] != "Available" {
		t.Fatalf("status not forwarded: %v", registry.statuses)
	}
}

func TestStatusNotificationRejectsUnknownStatus(t *testing.T) {
	registry := &fakeStatusRegistry{err: models.ErrInvalidStatus}
	handler := NewStatusNotificationHandler(registry, zap.NewNop())

	_, err := handler(context.Background(), "CP-1", json.RawMessage(`{"connectorId":7,"status":"Exploded"}`))
	if !errors.Is(err, models.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestStartTransactionEchoesAuthoritativeID(t *testing.T) {
	confirmer := &fakeConfirmer{startTx: "tx-authoritative"}
	handler := NewStartTransactionHandler(confirmer, zap.NewNop())

	resp, err := handler(context.Background(), "CP-1", json.RawMessage(`{"connectorId":7,"idTag":"42","transactionId":"tx-guess"}`))
	if err != nil {
		t.Fatalf("start transaction: %v", err)
	}
	start := resp.(protocol.StartTransactionResponse)
	if start.TransactionID != "tx-authoritative" || start.IdTagInfo.Status != protocol.StatusAccepted {
		t.Fatalf("unexpected response: %+v", start)
	}
}

func TestStopTransactionAcksDuplicate(t *testing.T) {
	confirmer := &fakeConfirmer{stopErr: models.ErrAlreadyClosed}
	handler := NewStopTransactionHandler(confirmer, zap.NewNop())

	resp, err := handler(context.Background(), "CP-1", json.RawMessage(`{"transactionId":"tx-1","meterStop":12.5}`))
	if err != nil {
		t.Fatalf("duplicate stop must be acked, got %v", err)
	}
	stop := resp.(protocol.StopTransactionResponse)
	if stop.IdTagInfo.Status != protocol.StatusAccepted {
		t.Fatalf("unexpected response: %+v", stop)
	}
}

func TestMeterValuesFeedTheSink(t *testing.T) {
	sink := &fakeSink{}
	handler := NewMeterValuesHandler(sink)

	if _, err := handler(context.Background(), "CP-1", json.RawMessage(`{"connectorId":7,"meterValue":3.5}`)); err != nil {
		t.Fatalf("meter values: %v", err)
	}
	if len(sink.readings) != 1 || sink.readings[0] != 3.5 {
		t.Fatalf("reading not forwarded: %v", sink.readings)
	}
}
