package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/http/middleware"
	"github.com/kazakhbala01/qazevAPP/internal/models"
)

// ReservationsBackend is the scheduler surface the mobile endpoints use.
type ReservationsBackend interface {
	Create(ctx context.Context, res *models.Reservation) error
	Update(ctx context.Context, res *models.Reservation) error
	Delete(ctx context.Context, id, userID int64) error
	ListByConnector(ctx context.Context, connectorID int64) ([]models.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Reservation, error)
}

// ReservationsHandlers serves the reservation CRUD endpoints.
type ReservationsHandlers struct {
	reservations ReservationsBackend
	logger       *zap.Logger
}

// NewReservationsHandlers returns handler.
func NewReservationsHandlers(reservations ReservationsBackend, logger *zap.Logger) *ReservationsHandlers {
	return &ReservationsHandlers{reservations: reservations, logger: logger}
}

type reservationRequest struct {
	ConnectorID     int64  `json:"connector_id"`
	Date            string `json:"reservation_date"`
	ArrivalTime     string `json:"arrival_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Create handles POST /api/reservations.
func (h *ReservationsHandlers) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	res := &models.Reservation{
		ConnectorID:     req.ConnectorID,
		UserID:          userID,
		Date:            req.Date,
		ArrivalTime:     req.ArrivalTime,
		DurationMinutes: req.DurationMinutes,
	}
	if err := h.reservations.Create(r.Context(), res); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Update handles PUT /api/reservations/{id}.
func (h *ReservationsHandlers) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	res := &models.Reservation{
		ID:              id,
		ConnectorID:     req.ConnectorID,
		UserID:          userID,
		Date:            req.Date,
		ArrivalTime:     req.ArrivalTime,
		DurationMinutes: req.DurationMinutes,
	}
	if err := h.reservations.Update(r.Context(), res); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Delete handles DELETE /api/reservations/{id}.
func (h *ReservationsHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	if err := h.reservations.Delete(r.Context(), id, userID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// ListMine handles GET /api/reservations.
func (h *ReservationsHandlers) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reservations, err := h.reservations.ListByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservations)
}

// ListByConnector handles GET /api/connectors/{id}/reservations.
func (h *ReservationsHandlers) ListByConnector(w http.ResponseWriter, r *http.Request) {
	connectorID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid connector id")
		return
	}

	reservations, err := h.reservations.ListByConnector(r.Context(), connectorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservations)
}
