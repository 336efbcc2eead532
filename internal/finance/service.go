package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mise-erp/mise-erp/internal/shared"
)

// RepositoryPort abstracts transaction storage.
type RepositoryPort interface {
	Insert(ctx context.Context, tx Transaction) error
	List(ctx context.Context, filter Filter) ([]Transaction, error)
	CancelByDoc(ctx context.Context, docID string) (int, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes finance recording and reversal cleanup.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// RecordInput describes a new transaction.
type RecordInput struct {
	Type         TxType
	Category     string
	Amount       decimal.Decimal
	Description  string
	RelatedDocID string
	Performer    shared.Actor
}

// Record stores one transaction. Amounts must be positive; the type carries
// the direction.
func (s *Service) Record(ctx context.Context, input RecordInput) (Transaction, error) {
	if input.Type != TypeIncome && input.Type != TypeExpense {
		return Transaction{}, fmt.Errorf("%w: unknown transaction type %q", shared.ErrValidation, input.Type)
	}
	if !input.Amount.IsPositive() {
		return Transaction{}, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	tx := Transaction{
		ID:           uuid.NewString(),
		Type:         input.Type,
		Category:     input.Category,
		Amount:       input.Amount,
		Description:  input.Description,
		RelatedDocID: input.RelatedDocID,
		Status:       StatusActive,
		Performer:    input.Performer,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, tx); err != nil {
		return Transaction{}, fmt.Errorf("finance: record: %w", err)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:      input.Performer,
			Action:     "CREATE",
			Collection: "finance_transactions",
			Message:    fmt.Sprintf("%s %s %s", tx.Type, tx.Amount.StringFixed(2), tx.Category),
		})
	}
	return tx, nil
}

// CancelLinkedTo flips every active transaction of a document to canceled.
// Canceling a document with no finance rows, or one already swept, is a no-op
// so the cleanup job can be retried safely.
func (s *Service) CancelLinkedTo(ctx context.Context, docID string) (int, error) {
	if docID == "" {
		return 0, fmt.Errorf("%w: document id required", shared.ErrValidation)
	}
	n, err := s.repo.CancelByDoc(ctx, docID)
	if err != nil {
		return 0, fmt.Errorf("finance: cancel linked to %s: %w", docID, err)
	}
	return n, nil
}

// List returns transactions matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Transaction, error) {
	return s.repo.List(ctx, filter)
}
