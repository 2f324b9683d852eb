package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/ocpp"
	"github.com/kazakhbala01/qazevAPP/internal/ocpp/protocol"
)

// Link is a live charge-point connection as the manager sees it.
type Link interface {
	ChargePointID() string
	Send(msg []byte)
	Ping() error
}

// Manager is the registry of live charge-point links. Outbound calls are
// addressed to the owning charge point, never broadcast, and confirmations are
// matched back through the pending-call table.
type Manager struct {
	mu      sync.RWMutex
	links   map[string]Link
	pending *pendingCalls
	logger  *zap.Logger

	pingInterval   time.Duration
	offlineTimeout time.Duration
	offlineTimers  map[string]*time.Timer
	onOffline      func(chargePointID string)
}

// NewManager builds the link registry.
func NewManager(pingInterval, callTimeout, offlineTimeout time.Duration, logger *zap.Logger) *Manager {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Manager{
		links:          make(map[string]Link),
		pending:        newPendingCalls(callTimeout),
		logger:         logger,
		pingInterval:   pingInterval,
		offlineTimeout: offlineTimeout,
		offlineTimers:  make(map[string]*time.Timer),
	}
}

// SetOfflineHandler registers the callback fired when a charge point stays
// disconnected past the offline timeout.
func (m *Manager) SetOfflineHandler(fn func(chargePointID string)) {
	m.mu.Lock()
	m.onOffline = fn
	m.mu.Unlock()
}

// Add registers a link and cancels any offline watchdog for its id.
func (m *Manager) Add(link Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := link.ChargePointID()
	m.links[id] = link
	if timer, ok := m.offlineTimers[id]; ok {
		timer.Stop()
		delete(m.offlineTimers, id)
	}
}

// Remove drops a link, fails its in-flight calls and arms the offline
// watchdog. A reconnect before the timeout disarms it. Only the link that
// currently owns the id is removed; a stale socket whose cleanup runs after
// the charge point already reconnected must not evict the fresh link.
func (m *Manager) Remove(link Link) {
	chargePointID := link.ChargePointID()

	m.mu.Lock()
	if current, ok := m.links[chargePointID]; !ok || current != link {
		m.mu.Unlock()
		return
	}
	delete(m.links, chargePointID)
	onOffline := m.onOffline
	if onOffline != nil && m.offlineTimeout > 0 {
		if timer, ok := m.offlineTimers[chargePointID]; ok {
			timer.Stop()
		}
		m.offlineTimers[chargePointID] = time.AfterFunc(m.offlineTimeout, func() {
			m.fireOffline(chargePointID)
		})
	}
	m.mu.Unlock()

	m.pending.dropForChargePoint(chargePointID)
}

func (m *Manager) fireOffline(chargePointID string) {
	m.mu.Lock()
	delete(m.offlineTimers, chargePointID)
	_, reconnected := m.links[chargePointID]
	onOffline := m.onOffline
	m.mu.Unlock()

	if reconnected || onOffline == nil {
		return
	}
	m.logger.Warn("charge point offline past timeout", zap.String("charge_point_id", chargePointID))
	onOffline(chargePointID)
}

// Connected reports whether a charge point currently has a live link.
func (m *Manager) Connected(chargePointID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.links[chargePointID]
	return ok
}

// HandleCallResult implements ocpp.ResultHandler.
func (m *Manager) HandleCallResult(chargePointID, uniqueID string, payload json.RawMessage) {
	m.pending.resolve(chargePointID, uniqueID, payload)
}

// SendCall pushes a CALL frame to one charge point and tracks its
// confirmation. The callback may be nil for fire-and-forget pushes.
func (m *Manager) SendCall(chargePointID, action string, payload interface{}, cb CallCallback) error {
	m.mu.RLock()
	link, ok := m.links[chargePointID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("ws: charge point %s is not connected", chargePointID)
	}

	uniqueID := m.pending.track(chargePointID, action, cb)
	frame, err := ocpp.BuildCall(uniqueID, action, payload)
	if err != nil {
		m.pending.expire(uniqueID)
		return err
	}

	link.Send(frame)
	m.logger.Debug("call sent",
		zap.String("charge_point_id", chargePointID),
		zap.String("action", action),
		zap.String("unique_id", uniqueID),
	)
	return nil
}

// RemoteStart pushes RemoteStartTransaction to the owning charge point.
func (m *Manager) RemoteStart(chargePointID string, connectorID int64, idTag, transactionID string, cb CallCallback) error {
	return m.SendCall(chargePointID, protocol.ActionRemoteStartTransaction, protocol.RemoteStartTransactionRequest{
		ConnectorID:   connectorID,
		IdTag:         idTag,
		TransactionID: transactionID,
	}, cb)
}

// RemoteStop pushes RemoteStopTransaction to the owning charge point.
func (m *Manager) RemoteStop(chargePointID, transactionID string, cb CallCallback) error {
	return m.SendCall(chargePointID, protocol.ActionRemoteStopTransaction, protocol.RemoteStopTransactionRequest{
		TransactionID: transactionID,
	}, cb)
}

// Start runs the keepalive ping loop until the context is cancelled.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			for _, link := range m.links {
				_ = link.Ping()
			}
			m.mu.RUnlock()
		}
	}
}
