package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/models"
)

// ErrInvalidSlot marks a reservation request with a bad duration or an
// unparseable date/time.
var ErrInvalidSlot = errors.New("invalid reservation slot")

// ReservationStore is the persistence surface for reservations.
type ReservationStore interface {
	Create(ctx context.Context, res *models.Reservation) error
	Update(ctx context.Context, res *models.Reservation) error
	Delete(ctx context.Context, id, userID int64) error
	GetByID(ctx context.Context, id int64) (*models.Reservation, error)
	ListByConnector(ctx context.Context, connectorID int64) ([]models.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Reservation, error)
	ExpiredCandidates(ctx context.Context, now time.Time, grace time.Duration) ([]models.Reservation, error)
	DeleteIfUnchanged(ctx context.Context, id int64, date, arrivalTime string) (bool, error)
	NextUpcoming(ctx context.Context, connectorID int64, now time.Time, lookahead time.Duration) (*models.Reservation, error)
}

// CheckInLookup detects whether a reservation was converted into a session.
type CheckInLookup interface {
	HasSessionInWindow(ctx context.Context, connectorID, userID int64, from, to time.Time) (bool, error)
}

// ConnectorLookup resolves connectors for the capacity projection.
type ConnectorLookup interface {
	GetByID(ctx context.Context, id int64) (*models.Connector, error)
}

// ReservationsService validates and stores time-slot holds, evicts no-shows
// and projects remaining capacity for the start-charging screen.
type ReservationsService struct {
	store      ReservationStore
	sessions   CheckInLookup
	connectors ConnectorLookup
	logger     *zap.Logger

	grace            time.Duration
	sweepInterval    time.Duration
	lookahead        time.Duration
	maxChargeMinutes int

	now func() time.Time
}

// NewReservationsService builds the scheduler.
func NewReservationsService(
	store ReservationStore,
	sessions CheckInLookup,
	connectors ConnectorLookup,
	grace, sweepInterval, lookahead time.Duration,
	maxChargeMinutes int,
	logger *zap.Logger,
) *ReservationsService {
	return &ReservationsService{
		store:            store,
		sessions:         sessions,
		connectors:       connectors,
		logger:           logger,
		grace:            grace,
		sweepInterval:    sweepInterval,
		lookahead:        lookahead,
		maxChargeMinutes: maxChargeMinutes,
		now:              time.Now,
	}
}

func (s *ReservationsService) validate(res *models.Reservation) error {
	if res.DurationMinutes <= 0 {
		return ErrInvalidSlot
	}
	if _, _, err := res.SlotWindow(); err != nil {
		return ErrInvalidSlot
	}
	return nil
}

// Create stores a new hold; overlap is re-validated atomically by the store.
func (s *ReservationsService) Create(ctx context.Context, res *models.Reservation) error {
	if err := s.validate(res); err != nil {
		return err
	}
	return s.store.Create(ctx, res)
}

// Update moves a hold the user owns, re-running the overlap validation.
func (s *ReservationsService) Update(ctx context.Context, res *models.Reservation) error {
	if err := s.validate(res); err != nil {
		return err
	}
	existing, err := s.store.GetByID(ctx, res.ID)
	if err != nil {
		return err
	}
	if existing.UserID != res.UserID {
		return models.ErrNotFound
	}
	return s.store.Update(ctx, res)
}

// Delete removes a hold owned by the user.
func (s *ReservationsService) Delete(ctx context.Context, id, userID int64) error {
	return s.store.Delete(ctx, id, userID)
}

// Get returns one reservation.
func (s *ReservationsService) Get(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.store.GetByID(ctx, id)
}

// ListByConnector returns every hold on a connector.
func (s *ReservationsService) ListByConnector(ctx context.Context, connectorID int64) ([]models.Reservation, error) {
	return s.store.ListByConnector(ctx, connectorID)
}

// ListByUser returns the user's holds.
func (s *ReservationsService) ListByUser(ctx context.Context, userID int64) ([]models.Reservation, error) {
	return s.store.ListByUser(ctx, userID)
}

// Start runs the expiry sweep until the context is cancelled.
func (s *ReservationsService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep evicts reservations whose grace period elapsed without a check-in.
// It works on a snapshot and deletes conditionally, so it is safe to run
// concurrently with create and update.
func (s *ReservationsService) Sweep(ctx context.Context) {
	now := s.now().UTC()
	candidates, err := s.store.ExpiredCandidates(ctx, now, s.grace)
	if err != nil {
		s.logger.Error("reservation sweep query failed", zap.Error(err))
		return
	}

	for _, res := range candidates {
		slotStart, _, err := res.SlotWindow()
		if err != nil {
			s.logger.Warn("skipping malformed reservation", zap.Int64("reservation_id", res.ID), zap.Error(err))
			continue
		}

		// A session started inside the check-in window means the user showed
		// up; the hold was consumed, not abandoned.
		checkedIn, err := s.sessions.HasSessionInWindow(ctx, res.ConnectorID, res.UserID, slotStart, slotStart.Add(s.grace))
		if err != nil {
			s.logger.Error("check-in lookup failed", zap.Int64("reservation_id", res.ID), zap.Error(err))
			continue
		}
		if checkedIn {
			continue
		}

		deleted, err := s.store.DeleteIfUnchanged(ctx, res.ID, res.Date, res.ArrivalTime)
		if err != nil {
			s.logger.Error("reservation delete failed", zap.Int64("reservation_id", res.ID), zap.Error(err))
			continue
		}
		if deleted {
			s.logger.Info("expired reservation removed",
				zap.Int64("reservation_id", res.ID),
				zap.Int64("connector_id", res.ConnectorID),
			)
		}
	}
}

// CapacityProjection bounds an advisable charge so it cannot run into the
// next reservation, keeping the grace buffer free.
type CapacityProjection struct {
	ConnectorID      int64      `json:"connector_id"`
	AvailableMinutes int        `json:"available_minutes"`
	EnergyCeilingKWh float64    `json:"energy_ceiling_kwh"`
	NextReservation  *time.Time `json:"next_reservation,omitempty"`
}

// Project computes the remaining capacity on a connector from now until the
// nearest reservation inside the lookahead window.
func (s *ReservationsService) Project(ctx context.Context, connectorID int64) (*CapacityProjection, error) {
	connector, err := s.connectors.GetByID(ctx, connectorID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	projection := &CapacityProjection{
		ConnectorID:      connectorID,
		AvailableMinutes: s.maxChargeMinutes,
	}

	next, err := s.store.NextUpcoming(ctx, connectorID, now, s.lookahead)
	switch {
	case errors.Is(err, models.ErrNotFound):
		// No reservation ahead; the full window is advisable.
	case err != nil:
		return nil, err
	default:
		nextStart, _, err := next.SlotWindow()
		if err != nil {
			return nil, err
		}
		projection.NextReservation = &nextStart
		available := int(nextStart.Sub(now).Minutes()) - int(s.grace.Minutes())
		if available < 0 {
			available = 0
		}
		if available > s.maxChargeMinutes {
			available = s.maxChargeMinutes
		}
		projection.AvailableMinutes = available
	}

	projection.EnergyCeilingKWh = connector.PowerKW * float64(projection.AvailableMinutes) / 60
	return projection, nil
}
