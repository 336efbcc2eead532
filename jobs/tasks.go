// Package jobs runs background work over Asynq: the post-commit finance sweep
// for reversed documents and the periodic ledger integrity check.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskFinanceCancel sweeps finance rows linked to a reversed document.
	TaskFinanceCancel = "finance:cancel_linked"
	// TaskLedgerIntegrity compares snapshots against active ledger sums.
	TaskLedgerIntegrity = "ledger:integrity"
)

// FinanceCancelPayload names the document whose finance rows should flip.
type FinanceCancelPayload struct {
	DocID string `json:"doc_id"`
}

// NewFinanceCancelTask constructs the finance sweep task.
func NewFinanceCancelTask(payload FinanceCancelPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFinanceCancel, data), nil
}

// NewLedgerIntegrityTask constructs the integrity check task. It carries no
// payload; the check always covers every stock item.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueFinanceCancel enqueues the finance sweep for one document. The
// reversal services call this after their inventory transaction commits.
func (c *Client) EnqueueFinanceCancel(ctx context.Context, docID string) error {
	task, err := NewFinanceCancelTask(FinanceCancelPayload{DocID: docID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
