// Package settlement resolves reservations whose post-commit money movement
// failed. A flagged reservation already shows its new terms to the guest; the
// worker's job is to make the matching refund land, eventually.
package settlement

import (
	"context"
	"time"

	"github.com/harborview/reservations/internal/domain"
	"github.com/harborview/reservations/internal/ledger"
	"github.com/harborview/reservations/internal/observability"
	"github.com/harborview/reservations/internal/payments"
)

type Worker struct {
	ledger   ledger.Ledger
	payments *payments.Coordinator
	logger   observability.Logger

	batch       int
	maxRetries  int
	backoffBase time.Duration
}

func NewWorker(led ledger.Ledger, coord *payments.Coordinator, logger observability.Logger) *Worker {
	return &Worker{ledger: led, payments: coord, logger: logger, batch: 20, maxRetries: 5, backoffBase: time.Second}
}

func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain attempts every flagged reservation once through the retry ladder.
func (w *Worker) Drain(ctx context.Context) {
	pending, err := w.ledger.ListSettlementPending(ctx, w.batch)
	if err != nil {
		w.logger.WithError(err).Error("failed to list pending settlements")
		return
	}
	observability.SettlementBacklog.Set(float64(len(pending)))

	for _, res := range pending {
		if err := w.settleWithRetry(ctx, res); err != nil {
			w.logger.WithError(err).WithField("reservation_id", res.ID).Error("settlement still failing, leaving flagged")
		}
	}
}

func (w *Worker) settleWithRetry(ctx context.Context, res domain.Reservation) error {
	owed := res.PendingSettlement
	if owed == nil {
		return nil
	}

	var lastErr error
	for i := 0; i < w.maxRetries; i++ {
		if i > 0 {
			observability.SettlementRetries.Inc()
			backoff := time.Duration(1<<uint(i-1)) * w.backoffBase
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = w.payments.Refund(ctx, owed.AuthorizationID, owed.Amount)
		if lastErr != nil {
			continue
		}

		res.PendingSettlement = nil
		if _, err := w.ledger.Update(ctx, res, ledger.EventSettlementResolved); err != nil {
			// refund landed but the flag is still set; the next drain will
			// retry the refund, which the coordinator rejects as exceeding
			// the captured amount, so log loudly
			w.logger.WithError(err).WithField("reservation_id", res.ID).Error("refund sent but flag not cleared")
			return err
		}
		w.logger.WithField("reservation_id", res.ID).Info("pending settlement resolved")
		return nil
	}
	return lastErr
}

// RunSweep completes yesterday's CONFIRMED stays on a daily cadence.
func (w *Worker) RunSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			n, err := w.ledger.SweepPastStays(ctx, today)
			if err != nil {
				w.logger.WithError(err).Error("past-stay sweep failed")
				continue
			}
			if n > 0 {
				w.logger.WithField("completed", n).Info("swept past stays")
			}
		}
	}
}
