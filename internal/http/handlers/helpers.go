package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kazakhbala01/qazevAPP/internal/models"
	"github.com/kazakhbala01/qazevAPP/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, target interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// writeDomainError maps domain errors to HTTP statuses. Precondition failures
// surface as 409 so the client can refresh its view and retry.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrConnectorUnavailable):
		writeError(w, http.StatusConflict, "connector unavailable")
	case errors.Is(err, models.ErrUserAlreadyCharging):
		writeError(w, http.StatusConflict, "user already has an active session")
	case errors.Is(err, models.ErrReservationConflict):
		writeError(w, http.StatusConflict, "reservation slot overlaps an existing one")
	case errors.Is(err, models.ErrAlreadyClosed):
		writeError(w, http.StatusConflict, "session already completed")
	case errors.Is(err, models.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, "insufficient balance")
	case errors.Is(err, models.ErrInvalidStatus), errors.Is(err, service.ErrInvalidSlot), errors.Is(err, service.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
