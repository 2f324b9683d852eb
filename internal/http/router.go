package httpserver

import (
	"net/http"

	"github.com/kazakhbala01/qazevAPP/internal/http/handlers"
	"github.com/kazakhbala01/qazevAPP/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	SessionsHandlers     *handlers.SessionsHandlers
	StationsHandlers     *handlers.StationsHandlers
	ReservationsHandlers *handlers.ReservationsHandlers
	BillingHandlers      *handlers.BillingHandlers
	HealthHandler        http.HandlerFunc
	ChargePointWS        http.HandlerFunc
	TelemetryWS          http.HandlerFunc
}

// NewRouter wires HTTP routes with middleware.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", method(http.MethodGet, deps.HealthHandler))

	// Charge points and telemetry subscribers attach over websockets.
	mux.Handle("/ocpp/", http.HandlerFunc(deps.ChargePointWS))
	mux.Handle("/ws", http.HandlerFunc(deps.TelemetryWS))

	mux.Handle("/api/locations", method(http.MethodGet, http.HandlerFunc(deps.StationsHandlers.Locations)))
	mux.Handle("/api/connectors/{id}", method(http.MethodGet, http.HandlerFunc(deps.StationsHandlers.ConnectorDetail)))
	mux.Handle("/api/connectors/{id}/capacity", method(http.MethodGet, http.HandlerFunc(deps.StationsHandlers.Capacity)))
	mux.Handle("/api/connectors/{id}/reservations", method(http.MethodGet, http.HandlerFunc(deps.ReservationsHandlers.ListByConnector)))

	authenticated := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, authMiddleware)
	}

	mux.Handle("/api/start-charge", method(http.MethodPost, authenticated(deps.SessionsHandlers.StartCharge)))
	mux.Handle("/api/stop-charge", method(http.MethodPost, authenticated(deps.SessionsHandlers.StopCharge)))
	mux.Handle("/api/active-session", method(http.MethodGet, authenticated(deps.SessionsHandlers.ActiveSession)))
	mux.Handle("/api/charge-history", method(http.MethodGet, authenticated(deps.SessionsHandlers.History)))
	mux.Handle("/api/charge-history/{id}", method(http.MethodGet, authenticated(deps.SessionsHandlers.HistoryDetail)))

	mux.Handle("POST /api/reservations", authenticated(deps.ReservationsHandlers.Create))
	mux.Handle("GET /api/reservations", authenticated(deps.ReservationsHandlers.ListMine))
	mux.Handle("PUT /api/reservations/{id}", authenticated(deps.ReservationsHandlers.Update))
	mux.Handle("DELETE /api/reservations/{id}", authenticated(deps.ReservationsHandlers.Delete))

	mux.Handle("/api/balance", method(http.MethodGet, authenticated(deps.BillingHandlers.Balance)))
	mux.Handle("/api/top-up-balance", method(http.MethodPost, authenticated(deps.BillingHandlers.TopUp)))

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
