package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/models"
)

type fakeReservationStore struct {
	byID       map[int64]*models.Reservation
	created    []*models.Reservation
	updated    []*models.Reservation
	deleted    []int64
	createErr  error
	candidates []models.Reservation
	deleteOK   bool
	next       *models.Reservation
}

func newFakeReservationStore() *fakeReservationStore {
	return &fakeReservationStore{byID: make(map[int64]*models.Reservation), deleteOK: true}
}

func (f *fakeReservationStore) Create(ctx context.Context, res *models.Reservation) error {
	if f.createErr != nil {
		return f.createErr
	}
	res.ID = int64(len(f.created) + 1)
	f.created = append(f.created, res)
	f.byID[res.ID] = res
	return nil
}

func (f *fakeReservationStore) Update(ctx context.Context, res *models.Reservation) error {
	f.updated = append(f.updated, res)
	return nil
}

func (f *fakeReservationStore) Delete(ctx context.Context, id, userID int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeReservationStore) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	res, ok := f.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return res, nil
}

func (f *fakeReservationStore) ListByConnector(ctx context.Context, connectorID int64) ([]models.Reservation, error) {
	return nil, nil
}

func (f *fakeReservationStore) ListByUser(ctx context.Context, userID int64) ([]models.Reservation, error) {
	return nil, nil
}

func (f *fakeReservationStore) ExpiredCandidates(ctx context.Context, now time.Time, grace time.Duration) ([]models.Reservation, error) {
	return f.candidates, nil
}

func (f *fakeReservationStore) DeleteIfUnchanged(ctx context.Context, id int64, date, arrivalTime string) (bool, error) {
	if !f.deleteOK {
		return false, nil
	}
	f.deleted = append(f.deleted, id)
	return true, nil
}

func (f *fakeReservationStore) NextUpcoming(ctx context.Context, connectorID int64, now time.Time, lookahead time.Duration) (*models.Reservation, error) {
	if f.next == nil {
		return nil, models.ErrNotFound
	}
	return f.next, nil
}

type fakeCheckIns struct {
	checkedIn bool
	windows   [][2]time.Time
}

func (f *fakeCheckIns) HasSessionInWindow(ctx context.Context, connectorID, userID int64, from, to time.Time) (bool, error) {
	f.windows = append(f.windows, [2]time.Time{from, to})
	return f.checkedIn, nil
}

type reservationsFixture struct {
	service  *ReservationsService
	store    *fakeReservationStore
	checkIns *fakeCheckIns
	now      time.Time
}

func newReservationsFixture(t *testing.T) *reservationsFixture {
	t.Helper()
	fx := &reservationsFixture{
		store:    newFakeReservationStore(),
		checkIns: &fakeCheckIns{},
		now:      time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
	}
	connectors := &fakeConnectors{connectors: map[int64]*models.Connector{
		7: {ID: 7, StationID: "ST-1", PowerKW: 50, Status: models.ConnectorAvailable},
	}}
	fx.service = NewReservationsService(
		fx.store,
		fx.checkIns,
		connectors,
		5*time.Minute,
		time.Minute,
		6*time.Hour,
		360,
		zap.NewNop(),
	)
	fx.service.now = func() time.Time { return fx.now }
	return fx
}

func TestCreateRejectsInvalidSlots(t *testing.T) {
	fx := newReservationsFixture(t)

	cases := []models.Reservation{
		{ConnectorID: 7, UserID: 42, Date: "2025-06-11", ArrivalTime: "10:00", DurationMinutes: 0},
		{ConnectorID: 7, UserID: 42, Date: "2025-06-11", ArrivalTime: "10:00", DurationMinutes: -30},
		{ConnectorID: 7, UserID: 42, Date: "11.06.2025", ArrivalTime: "10:00", DurationMinutes: 30},
		{ConnectorID: 7, UserID: 42, Date: "2025-06-11", ArrivalTime: "25:99", DurationMinutes: 30},
	}
	for i, res := range cases {
		res := res
		if err := fx.service.Create(context.Background(), &res); !errors.Is(err, ErrInvalidSlot) {
			t.Errorf("case %d: expected ErrInvalidSlot, got %v", i, err)
		}
	}
	if len(fx.store.created) != 0 {
		t.Fatal("invalid slots must not reach the store")
	}
}

func TestCreatePropagatesConflict(t *testing.T) {
	fx := newReservationsFixture(t)
	fx.store.createErr = models.ErrReservationConflict

	res := models.Reservation{ConnectorID: 7, UserID: 42, Date: "2025-06-11", ArrivalTime: "10:00", DurationMinutes: 30}
	if err := fx.service.Create(context.Background(), &res); !errors.Is(err, models.ErrReservationConflict) {
		t.Fatalf("expected ErrReservationConflict, got %v", err)
	}
}

func TestUpdateRejectsForeignReservation(t *testing.T) {
	fx := newReservationsFixture(t)
	fx.store.byID[5] = &models.Reservation{ID: 5, ConnectorID: 7, UserID: 99, Date: "2025-06-11", ArrivalTime: "10:00", DurationMinutes: 30}

	res := models.Reservation{ID: 5, ConnectorID: 7, UserID: 42, Date: "2025-06-11", ArrivalTime: "11:00", DurationMinutes: 30}
	if err := fx.service.Update(context.Background(), &res); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign reservation, got %v", err)
	}
	if len(fx.store.updated) != 0 {
		t.Fatal("foreign reservation must not be updated")
	}
}

func TestSweepRemovesNoShow(t *testing.T) {
	fx := newReservationsFixture(t)
	fx.store.candidates = []models.Reservation{
		{ID: 5, ConnectorID: 7, UserID: 42, Date: "2025-06-10", ArrivalTime: "11:40", DurationMinutes: 60},
	}

	fx.service.Sweep(context.Background())

	if len(fx.store.deleted) != 1 || fx.store.deleted[0] != 5 {
		t.Fatalf("expected reservation 5 evicted, got %v", fx.store.deleted)
	}

	// Check-in window is [arrival, arrival+grace).
	if len(fx.checkIns.windows) != 1 {
		t.Fatalf("expected 1 check-in lookup, got %d", len(fx.checkIns.windows))
	}
	wantFrom := time.Date(2025, 6, 10, 11, 40, 0, 0, time.UTC)
	if !fx.checkIns.windows[0][0].Equal(wantFrom) || !fx.checkIns.windows[0][1].Equal(wantFrom.Add(5*time.Minute)) {
		t.Fatalf("unexpected check-in window: %v", fx.checkIns.windows[0])
	}
}

func TestSweepKeepsCheckedIn(t *testing.T) {
	fx := newReservationsFixture(t)
	fx.checkIns.checkedIn = true
	fx.store.candidates = []models.Reservation{
		{ID: 5, ConnectorID: 7, UserID: 42, Date: "2025-06-10", ArrivalTime: "11:40", DurationMinutes: 60},
	}

	fx.service.Sweep(context.Background())

	if len(fx.store.deleted) != 0 {
		t.Fatalf("checked-in reservation must survive the sweep, got %v", fx.store.deleted)
	}
}

func TestSweepSkipsConcurrentlyMovedReservation(t *testing.T) {
	fx := newReservationsFixture(t)
	fx.store.deleteOK = false
	fx.store.candidates = []models.Reservation{
		{ID: 5, ConnectorID: 7, UserID: 42, Date: "2025-06-10", ArrivalTime: "11:40", DurationMinutes: 60},
	}

	fx.service.Sweep(context.Background())

	if len(fx.store.deleted) != 0 {
		t.Fatal("moved reservation must not be deleted")
	}
}

func TestProjectWithoutUpcomingReservation(t *testing.T) {
	fx := newReservationsFixture(t)

	projection, err := fx.service.Project(context.Background(), 7)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if projection.AvailableMinutes != 360 {
		t.Fatalf("expected full window 360, got %d", projection.AvailableMinutes)
	}
	if projection.EnergyCeilingKWh != 300 {
		t.Fatalf("expected 300 kWh ceiling at 50kW, got %v", projection.EnergyCeilingKWh)
	}
	if projection.NextReservation != nil {
		t.Fatal("no reservation expected")
	}
}

func TestProjectClampsToNextReservation(t *testing.T) {
	fx := newReservationsFixture(t)
	// 90 minutes ahead of the fixed now.
	fx.store.next = &models.Reservation{ID: 9, ConnectorID: 7, UserID: 55, Date: "2025-06-10", ArrivalTime: "13:30", DurationMinutes: 60}

	projection, err := fx.service.Project(context.Background(), 7)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	// 90 minutes until arrival minus the 5 minute grace buffer.
	if projection.AvailableMinutes != 85 {
		t.Fatalf("expected 85 minutes, got %d", projection.AvailableMinutes)
	}
	if projection.NextReservation == nil {
		t.Fatal("expected next reservation timestamp")
	}
}

func TestProjectNeverNegative(t *testing.T) {
	fx := newReservationsFixture(t)
	// Reservation starts in 2 minutes, inside the grace buffer.
	fx.store.next = &models.Reservation{ID: 9, ConnectorID: 7, UserID: 55, Date: "2025-06-10", ArrivalTime: "12:02", DurationMinutes: 60}

	projection, err := fx.service.Project(context.Background(), 7)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if projection.AvailableMinutes != 0 {
		t.Fatalf("expected 0 minutes, got %d", projection.AvailableMinutes)
	}
	if projection.EnergyCeilingKWh != 0 {
		t.Fatalf("expected 0 kWh ceiling, got %v", projection.EnergyCeilingKWh)
	}
}
