package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kazakhbala01/qazevAPP/internal/models"
)

// SettlementStore reads and advances settlement intents.
type SettlementStore interface {
	ListPending(ctx context.Context, limit int) ([]models.Settlement, error)
	Claim(ctx context.Context, id int64) (bool, error)
	Release(ctx context.Context, id int64) error
	Finish(ctx context.Context, id int64, status string) error
}

// Debitor is the slice of the ledger the worker needs.
type Debitor interface {
	Debit(ctx context.Context, userID, amount int64) (int64, error)
}

const settlementBatch = 100

// SettlementWorker applies pending settlements to the balance ledger. The
// settlement row is the durable intent between session close and the debit; a
// crash between the two is retried, not lost.
type SettlementWorker struct {
	store    SettlementStore
	ledger   Debitor
	interval time.Duration
	logger   *zap.Logger
}

// NewSettlementWorker builds the worker.
func NewSettlementWorker(store SettlementStore, ledger Debitor, interval time.Duration, logger *zap.Logger) *SettlementWorker {
	return &SettlementWorker{
		store:    store,
		ledger:   ledger,
		interval: interval,
		logger:   logger,
	}
}

// Run processes settlements until the context is cancelled.
func (w *SettlementWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce drains one batch of pending settlements. Each row is claimed
// before the ledger is touched: the claim, not the terminal write, is what
// guards against a second debit, so a failure after a successful debit leaves
// the row in processing instead of re-debiting next cycle. A debit rejected
// for insufficient funds marks the settlement terminal; the session stays
// closed either way.
func (w *SettlementWorker) ProcessOnce(ctx context.Context) {
	pending, err := w.store.ListPending(ctx, settlementBatch)
	if err != nil {
		w.logger.Error("list pending settlements failed", zap.Error(err))
		return
	}

	for _, settlement := range pending {
		claimed, err := w.store.Claim(ctx, settlement.ID)
		if err != nil {
			w.logger.Error("claim settlement failed", zap.Int64("settlement_id", settlement.ID), zap.Error(err))
			continue
		}
		if !claimed {
			// Another run took the row.
			continue
		}

		if settlement.Amount <= 0 {
			w.finish(ctx, settlement, models.SettlementSettled)
			continue
		}

		_, err = w.ledger.Debit(ctx, settlement.UserID, settlement.Amount)
		switch {
		case errors.Is(err, models.ErrInsufficientBalance):
			w.logger.Warn("settlement debit rejected, balance too low",
				zap.Int64("settlement_id", settlement.ID),
				zap.Int64("user_id", settlement.UserID),
				zap.Int64("amount", settlement.Amount),
			)
			w.finish(ctx, settlement, models.SettlementInsufficient)
		case err != nil:
			// No money moved; put the row back for the next cycle.
			w.logger.Error("settlement debit failed", zap.Int64("settlement_id", settlement.ID), zap.Error(err))
			if releaseErr := w.store.Release(ctx, settlement.ID); releaseErr != nil {
				w.logger.Error("release settlement failed", zap.Int64("settlement_id", settlement.ID), zap.Error(releaseErr))
			}
		default:
			w.finish(ctx, settlement, models.SettlementSettled)
		}
	}
}

func (w *SettlementWorker) finish(ctx context.Context, settlement models.Settlement, status string) {
	if err := w.store.Finish(ctx, settlement.ID, status); err != nil {
		// The claim already protects the ledger; the row needs operator
		// attention, not a retry that would debit again.
		w.logger.Error("finish settlement failed, row left in processing",
			zap.Int64("settlement_id", settlement.ID),
			zap.String("status", status),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("settlement applied",
		zap.Int64("settlement_id", settlement.ID),
		zap.String("status", status),
	)
}
