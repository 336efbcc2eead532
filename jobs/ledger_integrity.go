package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/mise-erp/mise-erp/internal/jobs"
	"github.com/mise-erp/mise-erp/internal/ledger"
)

// NewLedgerIntegrityHandler processes TaskLedgerIntegrity tasks: every stock
// snapshot must equal the sum of its active ledger entries. Drift is reported,
// never auto-corrected; an operator decides which side is wrong.
func NewLedgerIntegrityHandler(logger *slog.Logger, svc *ledger.Service, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskLedgerIntegrity)
		drifts, err := svc.CheckConservation(ctx)
		if err != nil {
			logger.Error("integrity check failed", slog.Any("error", err))
			return tracker.End(err)
		}
		if len(drifts) == 0 {
			logger.Info("integrity check clean")
			return tracker.End(nil)
		}
		byKind := make(map[string]int)
		for _, d := range drifts {
			byKind[string(d.Kind)]++
			logger.Warn("ledger drift",
				slog.String("item_id", d.ItemID),
				slog.String("kind", string(d.Kind)),
				slog.String("name", d.Name),
				slog.Float64("snapshot_qty", d.SnapshotQty),
				slog.Float64("ledger_qty", d.LedgerQty))
		}
		for kind, count := range byKind {
			metrics.AddDrift(kind, count)
		}
		return tracker.End(nil)
	}
}
