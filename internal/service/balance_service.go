package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/models"
)

// ErrInvalidAmount rejects non-positive top-ups.
var ErrInvalidAmount = errors.New("amount must be positive")

// Ledger is the persistence surface for prepaid balances.
type Ledger interface {
	Get(ctx context.Context, userID int64) (*models.UserBalance, error)
	TopUp(ctx context.Context, userID, amount int64) (int64, error)
	Debit(ctx context.Context, userID, amount int64) (int64, error)
}

// BalanceService fronts the prepaid balance ledger.
type BalanceService struct {
	ledger Ledger
	logger *zap.Logger
}

// NewBalanceService builds the service.
func NewBalanceService(ledger Ledger, logger *zap.Logger) *BalanceService {
	return &BalanceService{ledger: ledger, logger: logger}
}

// Balance returns the user's current balance.
func (s *BalanceService) Balance(ctx context.Context, userID int64) (*models.UserBalance, error) {
	return s.ledger.Get(ctx, userID)
}

// TopUp credits the balance and returns the new total.
func (s *BalanceService) TopUp(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	balance, err := s.ledger.TopUp(ctx, userID, amount)
	if err != nil {
		return 0, err
	}
	s.logger.Info("balance topped up",
		zap.Int64("user_id", userID),
		zap.Int64("amount", amount),
		zap.Int64("balance", balance),
	)
	return balance, nil
}

// Debit charges the user, rejecting overdrafts atomically in the ledger.
func (s *BalanceService) Debit(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return s.currentBalance(ctx, userID)
	}
	return s.ledger.Debit(ctx, userID, amount)
}

func (s *BalanceService) currentBalance(ctx context.Context, userID int64) (int64, error) {
	b, err := s.ledger.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return b.Balance, nil
}
