package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/mise-erp/mise-erp/internal/finance"
	jobmetrics "github.com/mise-erp/mise-erp/internal/jobs"
)

// NewFinanceCancelHandler processes TaskFinanceCancel tasks. The sweep is
// idempotent, so a retried task that already ran flips zero rows and succeeds.
func NewFinanceCancelHandler(logger *slog.Logger, svc *finance.Service, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskFinanceCancel)
		var payload FinanceCancelPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			_ = tracker.End(err)
			return asynq.SkipRetry
		}
		n, err := svc.CancelLinkedTo(ctx, payload.DocID)
		if err != nil {
			logger.Error("finance sweep failed", slog.Any("error", err), slog.String("doc_id", payload.DocID))
			return tracker.End(err)
		}
		logger.Info("finance sweep done", slog.String("doc_id", payload.DocID), slog.Int("canceled", n))
		return tracker.End(nil)
	}
}
