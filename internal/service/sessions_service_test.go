package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/models"
	"github.com/kazakhbala01/qazevAPP/internal/redisstore"
	"github.com/kazakhbala01/qazevAPP/internal/repository"
	"github.com/kazakhbala01/qazevAPP/internal/ws"
)

type fakeConnectors struct {
	connectors   map[int64]*models.Connector
	outOfService []string
}

func (f *fakeConnectors) GetByID(ctx context.Context, id int64) (*models.Connector, error) {
	c, ok := f.connectors[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (f *fakeConnectors) MarkStationOutOfService(ctx context.Context, stationID string) error {
	f.outOfService = append(f.outOfService, stationID)
	return nil
}

type fakeSessionStore struct {
	active   []*models.ChargingSession
	startErr error
	closeErr error
	started  []*models.ChargingSession
	closed   []repository.CloseInput
}

func (f *fakeSessionStore) Start(ctx context.Context, session *models.ChargingSession) error {
	if f.startErr != nil {
		return f.startErr
	}
	session.ID = int64(len(f.started) + 1)
	f.started = append(f.started, session)
	f.active = append(f.active, session)
	return nil
}

func (f *fakeSessionStore) Close(ctx context.Context, input repository.CloseInput) (*models.ChargingSession, error) {
	f.closed = append(f.closed, input)
	if f.closeErr != nil {
		return nil, f.closeErr
	}
	for i, s := range f.active {
		if s.TransactionID == input.TransactionID {
			closed := *s
			closed.Status = models.SessionCompleted
			closed.EndTime = &input.EndTime
			closed.EnergyKWh = input.EnergyKWh
			closed.Cost = input.Cost
			f.active = append(f.active[:i], f.active[i+1:]...)
			return &closed, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeSessionStore) GetActiveByTransaction(ctx context.Context, transactionID string) (*models.ChargingSession, error) {
	for _, s := range f.active {
		if s.TransactionID == transactionID {
			return s, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeSessionStore) GetActiveByUser(ctx context.Context, userID int64) (*models.ChargingSession, error) {
	for _, s := range f.active {
		if s.UserID == userID {
			return s, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeSessionStore) GetActiveByConnector(ctx context.Context, connectorID int64) (*models.ChargingSession, error) {
	for _, s := range f.active {
		if s.ConnectorID == connectorID {
			return s, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeSessionStore) ActiveByStation(ctx context.Context, stationID string) ([]models.ChargingSession, error) {
	var out []models.ChargingSession
	for _, s := range f.active {
		out = append(out, *s)
	}
	return out, nil
}

type fakeCache struct {
	saved    []redisstore.ActiveSession
	deleted  []string
	meter    float64
	meterErr error
}

func (f *fakeCache) SaveActive(ctx context.Context, session redisstore.ActiveSession) error {
	f.saved = append(f.saved, session)
	return nil
}

func (f *fakeCache) DeleteActive(ctx context.Context, connectorID int64, transactionID string) error {
	f.deleted = append(f.deleted, transactionID)
	return nil
}

func (f *fakeCache) GetMeter(ctx context.Context, transactionID string) (float64, error) {
	if f.meterErr != nil {
		return 0, f.meterErr
	}
	return f.meter, nil
}

type remoteCall struct {
	chargePointID string
	connectorID   int64
	transactionID string
}

type fakeLinks struct {
	starts  []remoteCall
	stops   []remoteCall
	sendErr error
}

func (f *fakeLinks) RemoteStart(chargePointID string, connectorID int64, idTag, transactionID string, cb ws.CallCallback) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.starts = append(f.starts, remoteCall{chargePointID, connectorID, transactionID})
	if cb != nil {
		cb(chargePointID, json.RawMessage(`{"status":"Accepted"}`), nil)
	}
	return nil
}

func (f *fakeLinks) RemoteStop(chargePointID, transactionID string, cb ws.CallCallback) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.stops = append(f.stops, remoteCall{chargePointID: chargePointID, transactionID: transactionID})
	return nil
}

type sessionsFixture struct {
	service    *SessionsService
	connectors *fakeConnectors
	store      *fakeSessionStore
	cache      *fakeCache
	links      *fakeLinks
	now        time.Time
}

func newSessionsFixture(t *testing.T) *sessionsFixture {
	t.Helper()
	fx := &sessionsFixture{
		connectors: &fakeConnectors{connectors: map[int64]*models.Connector{
			7: {ID: 7, StationID: "ST-1", PowerKW: 50, Status: models.ConnectorAvailable},
		}},
		store: &fakeSessionStore{},
		cache: &fakeCache{meterErr: redisstore.ErrMiss},
		links: &fakeLinks{},
		now:   time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
	}
	fx.service = NewSessionsService(fx.connectors, fx.store, fx.cache, fx.links, 100, 100, zap.NewNop())
	fx.service.now = func() time.Time { return fx.now }

	txCounter := 0
	fx.service.newTransactionID = func() string {
		txCounter++
		return "tx-test"
	}
	return fx
}

func (fx *sessionsFixture) withActiveSession(userID int64, startedAgo time.Duration) *models.ChargingSession {
	session := &models.ChargingSession{
		ID:            99,
		ConnectorID:   7,
		UserID:        userID,
		TransactionID: "tx-live",
		Status:        models.SessionActive,
		StartTime:     fx.now.Add(-startedAgo),
	}
	fx.store.active = append(fx.store.active, session)
	return session
}

func TestStartChargingHappyPath(t *testing.T) {
	fx := newSessionsFixture(t)

	session, err := fx.service.StartCharging(context.Background(), 42, 7)
	if err != nil {
		t.Fatalf("start charging: %v", err)
	}
	if session.TransactionID != "tx-test" || session.Status != models.SessionActive {
		t.Fatalf("unexpected session: %+v", session)
	}

	if len(fx.links.starts) != 1 {
		t.Fatalf("expected 1 remote start, got %d", len(fx.links.starts))
	}
	push := fx.links.starts[0]
	if push.chargePointID != "ST-1" || push.connectorID != 7 || push.transactionID != "tx-test" {
		t.Fatalf("push not addressed to owner: %+v", push)
	}

	if len(fx.cache.saved) != 1 || fx.cache.saved[0].TransactionID != "tx-test" {
		t.Fatalf("active session not cached: %+v", fx.cache.saved)
	}
}

func TestStartChargingRejectedByStore(t *testing.T) {
	fx := newSessionsFixture(t)
	fx.store.startErr = models.ErrConnectorUnavailable

	_, err := fx.service.StartCharging(context.Background(), 42, 7)
	if !errors.Is(err, models.ErrConnectorUnavailable) {
		t.Fatalf("expected ErrConnectorUnavailable, got %v", err)
	}
	if len(fx.links.starts) != 0 {
		t.Fatal("rejected start must not push to the charge point")
	}
}

func TestStartChargingLinkFailureDoesNotRollBack(t *testing.T) {
	fx := newSessionsFixture(t)
	fx.links.sendErr = errors.New("charge point not connected")

	session, err := fx.service.StartCharging(context.Background(), 42, 7)
	if err != nil {
		t.Fatalf("start must survive a push failure: %v", err)
	}
	if session.Status != models.SessionActive {
		t.Fatalf("unexpected status %s", session.Status)
	}
}

func TestStopComputesTimeBasedEnergy(t *testing.T) {
	fx := newSessionsFixture(t)
	fx.withActiveSession(42, 30*time.Minute)

	closed, err := fx.service.StopByUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("stop by user: %v", err)
	}

	// 0.5h at 50kW.
	if closed.EnergyKWh != 25 {
		t.Fatalf("expected 25 kWh, got %v", closed.EnergyKWh)
	}
	if closed.Cost != 2500 {
		t.Fatalf("expected cost 2500, got %d", closed.Cost)
	}
	if len(fx.links.stops) != 1 || fx.links.stops[0].chargePointID != "ST-1" {
		t.Fatalf("remote stop not pushed to owner: %+v", fx.links.stops)
	}
	if len(fx.cache.deleted) != 1 {
		t.Fatal("active cache entry not evicted")
	}
}

func TestStopPrefersCachedMeter(t *testing.T) {
	fx := newSessionsFixture(t)
	fx.withActiveSession(42, 30*time.Minute)
	fx.cache.meter = 10
	fx.cache.meterErr = nil

	closed, err := fx.service.StopByUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("stop by user: %v", err)
	}
	if closed.EnergyKWh != 10 || closed.Cost != 1000 {
		t.Fatalf("expected cached meter figures, got %v kWh / %d", closed.EnergyKWh, closed.Cost)
	}
}

func TestStopByTransactionAlreadyClosed(t *testing.T) {
	fx := newSessionsFixture(t)
	fx.store.closeErr = models.ErrAlreadyClosed

	_, err := fx.service.StopByTransaction(context.Background(), "tx-old")
	if !errors.Is(err, models.ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}
	if len(fx.links.stops) != 0 {
		t.Fatal("duplicate stop must not push to the charge point")
	}
}

func TestConfirmStartKnownTransaction(t *testing.T) {
	fx := newSessionsFixture(t)
	fx.withActiveSession(42, time.Minute)

	txID, err := fx.service.ConfirmStart(context.Background(), 7, "42", "tx-live")
	if err != nil {
		t.Fatalf("confirm start: %v", err)
	}
	if txID != "tx-live" {
		t.Fatalf("expected tx-live, got %s", txID)
	}
	if len(fx.store.started) != 0 {
		t.Fatal("confirming a known transaction must not open a new session")
	}
}

func TestConfirmStartUnsolicited(t *testing.T) {
	fx := newSessionsFixture(t)

	txID, err := fx.service.ConfirmStart(context.Background(), 7, "42", "")
	if err != nil {
		t.Fatalf("confirm start: %v", err)
	}
	if txID != "tx-test" {
		t.Fatalf("expected fresh transaction id, got %s", txID)
	}
	if len(fx.store.started) != 1 || fx.store.started[0].UserID != 42 {
		t.Fatalf("cable-first start not recorded: %+v", fx.store.started)
	}
}

func TestConfirmStartUnknownIdTag(t *testing.T) {
	fx := newSessionsFixture(t)

	_, err := fx.service.ConfirmStart(context.Background(), 7, "badge-007", "")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfirmStopUsesMeterOverride(t *testing.T) {
	fx := newSessionsFixture(t)
	fx.withActiveSession(42, 30*time.Minute)

	closed, err := fx.service.ConfirmStop(context.Background(), "tx-live", 12.5)
	if err != nil {
		t.Fatalf("confirm stop: %v", err)
	}
	if closed.EnergyKWh != 12.5 || closed.Cost != 1250 {
		t.Fatalf("expected override figures, got %v kWh / %d", closed.EnergyKWh, closed.Cost)
	}
	if len(fx.links.stops) != 0 {
		t.Fatal("charge-point-initiated stop must not push RemoteStopTransaction back")
	}
}

func TestActiveSessionViewCapsSOC(t *testing.T) {
	fx := newSessionsFixture(t)
	fx.withActiveSession(42, 10*time.Minute)
	fx.cache.meter = 250
	fx.cache.meterErr = nil

	view, err := fx.service.ActiveSession(context.Background(), 42)
	if err != nil {
		t.Fatalf("active session: %v", err)
	}
	if view.SOC != 100 {
		t.Fatalf("SOC must cap at 100, got %v", view.SOC)
	}
	if view.ProjectedCost != 25000 {
		t.Fatalf("expected projected cost 25000, got %d", view.ProjectedCost)
	}
	if view.ElapsedSeconds != 600 {
		t.Fatalf("expected 600 elapsed seconds, got %d", view.ElapsedSeconds)
	}
}

func TestForceStopStationSettlesAndDisables(t *testing.T) {
	fx := newSessionsFixture(t)
	fx.withActiveSession(42, time.Hour)

	fx.service.ForceStopStation(context.Background(), "ST-1")

	if len(fx.store.closed) != 1 {
		t.Fatalf("expected 1 forced close, got %d", len(fx.store.closed))
	}
	if len(fx.outOfServiceStations()) != 1 || fx.outOfServiceStations()[0] != "ST-1" {
		t.Fatalf("station not taken out of service: %v", fx.outOfServiceStations())
	}
	if len(fx.links.stops) != 0 {
		t.Fatal("offline station cannot receive a remote stop")
	}
}

func (fx *sessionsFixture) outOfServiceStations() []string {
	return fx.connectors.outOfService
}
