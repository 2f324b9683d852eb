package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/http/middleware"
	"github.com/kazakhbala01/qazevAPP/internal/models"
	"github.com/kazakhbala01/qazevAPP/internal/service"
)

// SessionsBackend is the lifecycle surface the mobile endpoints use.
type SessionsBackend interface {
	StartCharging(ctx context.Context, userID, connectorID int64) (*models.ChargingSession, error)
	StopByUser(ctx context.Context, userID int64) (*models.ChargingSession, error)
	StopByTransaction(ctx context.Context, transactionID string) (*models.ChargingSession, error)
	ActiveSession(ctx context.Context, userID int64) (*service.ActiveSessionView, error)
}

// HistoryBackend serves completed session records.
type HistoryBackend interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.ChargeHistoryEntry, error)
	GetByID(ctx context.Context, id int64) (*models.ChargeHistoryEntry, error)
}

// SessionsHandlers serves the charging endpoints of the mobile API.
type SessionsHandlers struct {
	sessions SessionsBackend
	history  HistoryBackend
	logger   *zap.Logger
}

// NewSessionsHandlers returns handler.
func NewSessionsHandlers(sessions SessionsBackend, history HistoryBackend, logger *zap.Logger) *SessionsHandlers {
	return &SessionsHandlers{sessions: sessions, history: history, logger: logger}
}

type startChargeRequest struct {
	ConnectorID int64 `json:"connector_id"`
}

// StartCharge handles POST /api/start-charge.
func (h *SessionsHandlers) StartCharge(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req startChargeRequest
	if err := decodeJSON(r, &req); err != nil || req.ConnectorID <= 0 {
		writeError(w, http.StatusBadRequest, "connector_id is required")
		return
	}

	session, err := h.sessions.StartCharging(r.Context(), userID, req.ConnectorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type stopChargeRequest struct {
	TransactionID string `json:"transaction_id"`
}

// StopCharge handles POST /api/stop-charge. Without a transaction id it stops
// the caller's active session.
func (h *SessionsHandlers) StopCharge(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req stopChargeRequest
	if err := decodeJSON(r, &req); err != nil && r.ContentLength > 0 {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	var (
		session *models.ChargingSession
		err     error
	)
	if req.TransactionID != "" {
		session, err = h.sessions.StopByTransaction(r.Context(), req.TransactionID)
	} else {
		session, err = h.sessions.StopByUser(r.Context(), userID)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ActiveSession handles GET /api/active-session.
func (h *SessionsHandlers) ActiveSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	view, err := h.sessions.ActiveSession(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// History handles GET /api/charge-history.
func (h *SessionsHandlers) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	entries, err := h.history.ListByUser(r.Context(), userID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HistoryDetail handles GET /api/charge-history/{id}.
func (h *SessionsHandlers) HistoryDetail(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid history id")
		return
	}

	entry, err := h.history.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entry.UserID != userID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
