package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/http/middleware"
	"github.com/kazakhbala01/qazevAPP/internal/models"
)

// BalanceBackend is the ledger surface the mobile endpoints use.
type BalanceBackend interface {
	Balance(ctx context.Context, userID int64) (*models.UserBalance, error)
	TopUp(ctx context.Context, userID, amount int64) (int64, error)
}

// BillingHandlers serves the prepaid balance endpoints.
type BillingHandlers struct {
	balances BalanceBackend
	logger   *zap.Logger
}

// NewBillingHandlers returns handler.
func NewBillingHandlers(balances BalanceBackend, logger *zap.Logger) *BillingHandlers {
	return &BillingHandlers{balances: balances, logger: logger}
}

// Balance handles GET /api/balance.
func (h *BillingHandlers) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	balance, err := h.balances.Balance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

type topUpRequest struct {
	Amount int64 `json:"amount"`
}

// TopUp handles POST /api/top-up-balance.
func (h *BillingHandlers) TopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req topUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	balance, err := h.balances.TopUp(r.Context(), userID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}
