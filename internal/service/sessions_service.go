package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/models"
	"github.com/kazakhbala01/qazevAPP/internal/redisstore"
	"github.com/kazakhbala01/qazevAPP/internal/repository"
	"github.com/kazakhbala01/qazevAPP/internal/ws"
)

// ConnectorRegistry is the slice of the connector repository the lifecycle
// manager needs.
type ConnectorRegistry interface {
	GetByID(ctx context.Context, id int64) (*models.Connector, error)
	MarkStationOutOfService(ctx context.Context, stationID string) error
}

// SessionStore is the persistence surface for sessions.
type SessionStore interface {
	Start(ctx context.Context, session *models.ChargingSession) error
	Close(ctx context.Context, input repository.CloseInput) (*models.ChargingSession, error)
	GetActiveByTransaction(ctx context.Context, transactionID string) (*models.ChargingSession, error)
	GetActiveByUser(ctx context.Context, userID int64) (*models.ChargingSession, error)
	GetActiveByConnector(ctx context.Context, connectorID int64) (*models.ChargingSession, error)
	ActiveByStation(ctx context.Context, stationID string) ([]models.ChargingSession, error)
}

// ActiveCache is the hot index kept next to the database.
type ActiveCache interface {
	SaveActive(ctx context.Context, session redisstore.ActiveSession) error
	DeleteActive(ctx context.Context, connectorID int64, transactionID string) error
	GetMeter(ctx context.Context, transactionID string) (float64, error)
}

// LinkPusher pushes remote calls to the owning charge point.
type LinkPusher interface {
	RemoteStart(chargePointID string, connectorID int64, idTag, transactionID string, cb ws.CallCallback) error
	RemoteStop(chargePointID, transactionID string, cb ws.CallCallback) error
}

// SessionsService is the charging transaction state machine. Start and stop
// preconditions are enforced atomically by the session store; this layer
// generates ids, computes settlement figures and drives the charge-point link.
type SessionsService struct {
	connectors ConnectorRegistry
	sessions   SessionStore
	cache      ActiveCache
	links      LinkPusher
	logger     *zap.Logger

	tariffPerKWh       float64
	batteryCapacityKWh float64

	now              func() time.Time
	newTransactionID func() string
}

// NewSessionsService builds the lifecycle manager.
func NewSessionsService(
	connectors ConnectorRegistry,
	sessions SessionStore,
	cache ActiveCache,
	links LinkPusher,
	tariffPerKWh, batteryCapacityKWh float64,
	logger *zap.Logger,
) *SessionsService {
	return &SessionsService{
		connectors:         connectors,
		sessions:           sessions,
		cache:              cache,
		links:              links,
		logger:             logger,
		tariffPerKWh:       tariffPerKWh,
		batteryCapacityKWh: batteryCapacityKWh,
		now:                time.Now,
		newTransactionID:   generateTransactionID,
	}
}

// generateTransactionID composes unix seconds with six random digits.
func generateTransactionID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	suffix := binary.BigEndian.Uint64(buf[:]) % 1000000
	return fmt.Sprintf("%d%06d", time.Now().Unix(), suffix)
}

// StartCharging begins a session for the user on a connector. The store
// rejects the start atomically when the connector is busy or the user already
// charges elsewhere.
func (s *SessionsService) StartCharging(ctx context.Context, userID, connectorID int64) (*models.ChargingSession, error) {
	connector, err := s.connectors.GetByID(ctx, connectorID)
	if err != nil {
		return nil, err
	}

	session := &models.ChargingSession{
		ConnectorID:   connectorID,
		UserID:        userID,
		TransactionID: s.newTransactionID(),
		Status:        models.SessionActive,
		StartTime:     s.now().UTC(),
	}
	if err := s.sessions.Start(ctx, session); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SaveActive(ctx, redisstore.ActiveSession{
			SessionID:     session.ID,
			TransactionID: session.TransactionID,
			ConnectorID:   connectorID,
			UserID:        userID,
		}); err != nil {
			s.logger.Warn("cache active session failed", zap.Error(err))
		}
	}

	// Link errors never roll back the committed start; they are logged only.
	idTag := strconv.FormatInt(userID, 10)
	if err := s.links.RemoteStart(connector.StationID, connectorID, idTag, session.TransactionID, s.logConfirmation("RemoteStartTransaction")); err != nil {
		s.logger.Warn("remote start push failed",
			zap.String("charge_point_id", connector.StationID),
			zap.String("transaction_id", session.TransactionID),
			zap.Error(err),
		)
	}

	s.logger.Info("charging started",
		zap.Int64("user_id", userID),
		zap.Int64("connector_id", connectorID),
		zap.String("transaction_id", session.TransactionID),
	)
	return session, nil
}

// StopByTransaction stops the active session holding a transaction id.
func (s *SessionsService) StopByTransaction(ctx context.Context, transactionID string) (*models.ChargingSession, error) {
	session, err := s.sessions.GetActiveByTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Close classifies between a true miss and a duplicate stop.
			_, closeErr := s.sessions.Close(ctx, repository.CloseInput{TransactionID: transactionID, EndTime: s.now().UTC()})
			return nil, closeErr
		}
		return nil, err
	}
	return s.stopActive(ctx, session, nil, true)
}

// StopByUser stops the user's single active session.
func (s *SessionsService) StopByUser(ctx context.Context, userID int64) (*models.ChargingSession, error) {
	session, err := s.sessions.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.stopActive(ctx, session, nil, true)
}

// ConfirmStart answers a charge point's StartTransaction call. A known
// transaction id is confirmed as-is; an unsolicited start (cable-first flow)
// opens a session for the idTag's user.
func (s *SessionsService) ConfirmStart(ctx context.Context, connectorID int64, idTag, transactionID string) (string, error) {
	if transactionID != "" {
		if _, err := s.sessions.GetActiveByTransaction(ctx, transactionID); err == nil {
			return transactionID, nil
		}
	}
	if existing, err := s.sessions.GetActiveByConnector(ctx, connectorID); err == nil {
		return existing.TransactionID, nil
	}

	userID, err := strconv.ParseInt(idTag, 10, 64)
	if err != nil {
		return "", fmt.Errorf("unknown id tag %q: %w", idTag, models.ErrNotFound)
	}
	session, err := s.StartCharging(ctx, userID, connectorID)
	if err != nil {
		return "", err
	}
	return session.TransactionID, nil
}

// ConfirmStop answers a charge point's StopTransaction call. The final meter
// reading, when present, overrides the time-based energy estimate.
func (s *SessionsService) ConfirmStop(ctx context.Context, transactionID string, meterStopKWh float64) (*models.ChargingSession, error) {
	session, err := s.sessions.GetActiveByTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			_, closeErr := s.sessions.Close(ctx, repository.CloseInput{TransactionID: transactionID, EndTime: s.now().UTC()})
			return nil, closeErr
		}
		return nil, err
	}
	var override *float64
	if meterStopKWh > 0 {
		override = &meterStopKWh
	}
	return s.stopActive(ctx, session, override, false)
}

// ForceStopStation settles every in-flight session on a charge point that
// stayed offline past the timeout and takes its connectors out of service.
func (s *SessionsService) ForceStopStation(ctx context.Context, stationID string) {
	sessions, err := s.sessions.ActiveByStation(ctx, stationID)
	if err != nil {
		s.logger.Error("list station sessions failed", zap.String("charge_point_id", stationID), zap.Error(err))
		return
	}
	for i := range sessions {
		if _, err := s.stopActive(ctx, &sessions[i], nil, false); err != nil {
			s.logger.Error("force stop failed",
				zap.String("transaction_id", sessions[i].TransactionID),
				zap.Error(err),
			)
		}
	}
	if err := s.connectors.MarkStationOutOfService(ctx, stationID); err != nil {
		s.logger.Error("mark station out of service failed", zap.String("charge_point_id", stationID), zap.Error(err))
	}
	s.logger.Warn("charge point offline, sessions settled",
		zap.String("charge_point_id", stationID),
		zap.Int("sessions", len(sessions)),
	)
}

func (s *SessionsService) stopActive(ctx context.Context, session *models.ChargingSession, energyOverride *float64, pushRemote bool) (*models.ChargingSession, error) {
	connector, err := s.connectors.GetByID(ctx, session.ConnectorID)
	if err != nil {
		return nil, err
	}

	end := s.now().UTC()
	energy := s.resolveEnergy(ctx, session, connector, end, energyOverride)
	cost := s.Cost(energy)

	closed, err := s.sessions.Close(ctx, repository.CloseInput{
		TransactionID: session.TransactionID,
		EndTime:       end,
		EnergyKWh:     energy,
		Cost:          cost,
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.DeleteActive(ctx, session.ConnectorID, session.TransactionID); err != nil {
			s.logger.Warn("evict active session cache failed", zap.Error(err))
		}
	}

	if pushRemote {
		if err := s.links.RemoteStop(connector.StationID, session.TransactionID, s.logConfirmation("RemoteStopTransaction")); err != nil {
			s.logger.Warn("remote stop push failed",
				zap.String("charge_point_id", connector.StationID),
				zap.String("transaction_id", session.TransactionID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("charging stopped",
		zap.String("transaction_id", closed.TransactionID),
		zap.Float64("energy_kwh", closed.EnergyKWh),
		zap.Int64("cost", closed.Cost),
	)
	return closed, nil
}

// resolveEnergy prefers the explicit meter figure, then the cached live
// reading, then the time-based estimate elapsed_hours x connector power.
func (s *SessionsService) resolveEnergy(ctx context.Context, session *models.ChargingSession, connector *models.Connector, end time.Time, override *float64) float64 {
	if override != nil {
		return *override
	}
	if s.cache != nil {
		if meter, err := s.cache.GetMeter(ctx, session.TransactionID); err == nil && meter > 0 {
			return meter
		}
	}
	elapsedHours := end.Sub(session.StartTime).Hours()
	if elapsedHours < 0 {
		elapsedHours = 0
	}
	return elapsedHours * connector.PowerKW
}

// Cost converts energy to currency units at the configured tariff, rounded to
// the nearest whole unit.
func (s *SessionsService) Cost(energyKWh float64) int64 {
	return int64(math.Round(energyKWh * s.tariffPerKWh))
}

// ActiveSessionView is the live projection for the charging screen.
type ActiveSessionView struct {
	Session        *models.ChargingSession `json:"session"`
	ElapsedSeconds int64                   `json:"elapsed_seconds"`
	EnergyKWh      float64                 `json:"energy_kwh"`
	SOC            float64                 `json:"soc"`
	ProjectedCost  int64                   `json:"projected_cost"`
}

// ActiveSession returns the user's active session with live SOC and cost
// estimates. Without a meter reading the figures fall back to a time-based
// estimate.
func (s *SessionsService) ActiveSession(ctx context.Context, userID int64) (*ActiveSessionView, error) {
	session, err := s.sessions.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	connector, err := s.connectors.GetByID(ctx, session.ConnectorID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	energy := s.resolveEnergy(ctx, session, connector, now, nil)
	soc := 0.0
	if s.batteryCapacityKWh > 0 {
		soc = math.Min(100, energy/s.batteryCapacityKWh*100)
	}

	return &ActiveSessionView{
		Session:        session,
		ElapsedSeconds: int64(now.Sub(session.StartTime).Seconds()),
		EnergyKWh:      energy,
		SOC:            soc,
		ProjectedCost:  s.Cost(energy),
	}, nil
}

func (s *SessionsService) logConfirmation(action string) ws.CallCallback {
	return func(chargePointID string, payload json.RawMessage, err error) {
		if err != nil {
			s.logger.Warn("remote call not confirmed",
				zap.String("charge_point_id", chargePointID),
				zap.String("action", action),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug("remote call confirmed",
			zap.String("charge_point_id", chargePointID),
			zap.String("action", action),
		)
	}
}
