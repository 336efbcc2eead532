package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mise-erp/mise-erp/internal/finance"
	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/sequence"
	"github.com/mise-erp/mise-erp/internal/shared"
)

// CodeGenerator hands out document codes. Codes are allocated before the
// transaction opens so a retried transaction keeps its code.
type CodeGenerator interface {
	Next(ctx context.Context, series string) (string, error)
}

// FinanceRecorder records the purchase expense of a committed receipt.
type FinanceRecorder interface {
	Record(ctx context.Context, input finance.RecordInput) (finance.Transaction, error)
}

// FinanceCleanup enqueues the post-commit sweep of finance rows linked to a
// reversed document.
type FinanceCleanup interface {
	EnqueueFinanceCancel(ctx context.Context, docID string) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates import receipts.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	codes   CodeGenerator
	fin     FinanceRecorder
	cleanup FinanceCleanup
	audit   AuditPort
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, codes CodeGenerator, fin FinanceRecorder, cleanup FinanceCleanup, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, codes: codes, fin: fin, cleanup: cleanup, audit: audit}
}

// CreateImportReceipt validates the request, allocates a code and runs one
// transaction: read every distinct ingredient, write the receipt, then post
// one import movement per line. The purchase expense is recorded after commit.
func (s *Service) CreateImportReceipt(ctx context.Context, input CreateInput) (Receipt, error) {
	date, err := validateCreate(input)
	if err != nil {
		return Receipt{}, err
	}

	code, err := s.codes.Next(ctx, sequence.SeriesImport)
	if err != nil {
		return Receipt{}, err
	}

	receipt := Receipt{
		ID:           uuid.NewString(),
		Code:         code,
		SupplierID:   input.SupplierID,
		SupplierName: input.SupplierName,
		Date:         date,
		Status:       StatusActive,
		Performer:    input.Performer,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		scope := ledger.NewScope(tx)
		for _, line := range input.Lines {
			if _, err := scope.ReadItem(ctx, line.IngredientID, ledger.KindIngredient); err != nil {
				return err
			}
		}

		receipt.Lines = receipt.Lines[:0]
		receipt.TotalValue = 0
		for _, line := range input.Lines {
			snap, _ := scope.Snapshot(line.IngredientID, ledger.KindIngredient)
			receipt.Lines = append(receipt.Lines, Line{
				IngredientID:   line.IngredientID,
				IngredientName: snap.Name,
				Quantity:       line.Quantity,
				LineValue:      line.LineValue,
			})
			receipt.TotalValue += line.LineValue
		}

		scope.BeginWrites()
		if err := tx.InsertReceipt(ctx, receipt); err != nil {
			return err
		}
		for _, line := range receipt.Lines {
			_, err := ledger.Apply(ctx, scope, ledger.Movement{
				Type:           ledger.EntryImport,
				ItemID:         line.IngredientID,
				ItemKind:       ledger.KindIngredient,
				QuantityChange: line.Quantity,
				UnitCost:       line.LineValue / line.Quantity,
				RelatedDocID:   receipt.ID,
				RelatedDocCode: receipt.Code,
				Performer:      input.Performer,
				OccurredAt:     date,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	if s.fin != nil {
		_, err := s.fin.Record(ctx, finance.RecordInput{
			Type:         finance.TypeExpense,
			Category:     "purchase",
			Amount:       decimal.NewFromFloat(receipt.TotalValue),
			Description:  fmt.Sprintf("Import %s from %s", receipt.Code, receipt.SupplierName),
			RelatedDocID: receipt.ID,
			Performer:    input.Performer,
		})
		if err != nil {
			s.logger.Warn("purchase expense not recorded", slog.Any("error", err), slog.String("receipt", receipt.Code))
		}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:      input.Performer,
			Action:     "CREATE",
			Collection: "import_receipts",
			Message:    fmt.Sprintf("Import %s: %d lines, total %.2f", receipt.Code, len(receipt.Lines), receipt.TotalValue),
		})
	}
	return receipt, nil
}

// CancelImportReceipt reverses a receipt: one transaction re-reads every
// ingredient, posts a compensating adjustment per line with the exact negated
// line value, flips the original entries and the receipt status. Finance
// cleanup runs after commit; if it cannot be enqueued the inventory reversal
// stands and the caller sees ErrPartialReversal.
func (s *Service) CancelImportReceipt(ctx context.Context, id string, performer shared.Actor) (Receipt, error) {
	if id == "" {
		return Receipt{}, fmt.Errorf("%w: receipt id required", shared.ErrValidation)
	}
	var receipt Receipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		receipt, err = tx.GetReceipt(ctx, id)
		if err != nil {
			return err
		}
		if receipt.Status == StatusCanceled {
			return fmt.Errorf("procurement: receipt %s: %w", receipt.Code, shared.ErrAlreadyCanceled)
		}

		scope := ledger.NewScope(tx)
		for _, line := range receipt.Lines {
			if _, err := scope.ReadItem(ctx, line.IngredientID, ledger.KindIngredient); err != nil {
				return err
			}
		}

		for _, line := range receipt.Lines {
			forced := -line.LineValue
			comp, err := ledger.Apply(ctx, scope, ledger.Movement{
				Type:           ledger.EntryAdjustment,
				ItemID:         line.IngredientID,
				ItemKind:       ledger.KindIngredient,
				QuantityChange: -line.Quantity,
				UnitCost:       line.LineValue / line.Quantity,
				ValueChange:    &forced,
				RelatedDocID:   receipt.ID,
				RelatedDocCode: receipt.Code,
				Performer:      performer,
			})
			if err != nil {
				return err
			}
			if err := scope.CancelDocEntries(ctx, receipt.ID, line.IngredientID, comp.ID); err != nil {
				return err
			}
		}
		if err := tx.MarkReceiptCanceled(ctx, receipt.ID); err != nil {
			return err
		}
		receipt.Status = StatusCanceled
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:      performer,
			Action:     "UPDATE",
			Collection: "import_receipts",
			Message:    fmt.Sprintf("Canceled import %s", receipt.Code),
		})
	}
	if s.cleanup != nil {
		if err := s.cleanup.EnqueueFinanceCancel(ctx, receipt.ID); err != nil {
			s.logger.Warn("finance cleanup not enqueued", slog.Any("error", err), slog.String("receipt", receipt.Code))
			return receipt, fmt.Errorf("procurement: cancel %s: %w", receipt.Code, shared.ErrPartialReversal)
		}
	}
	return receipt, nil
}

// GetReceipt returns one receipt by id or code.
func (s *Service) GetReceipt(ctx context.Context, id string) (Receipt, error) {
	if id == "" {
		return Receipt{}, fmt.Errorf("%w: receipt id required", shared.ErrValidation)
	}
	return s.repo.GetReceipt(ctx, id)
}

// ListReceipts returns recent receipts.
func (s *Service) ListReceipts(ctx context.Context, limit int) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, limit)
}

func validateCreate(input CreateInput) (time.Time, error) {
	if input.SupplierName == "" {
		return time.Time{}, fmt.Errorf("%w: supplier required", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return time.Time{}, fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	for i, line := range input.Lines {
		if line.IngredientID == "" {
			return time.Time{}, fmt.Errorf("%w: line %d: ingredient required", shared.ErrValidation, i+1)
		}
		if line.Quantity <= 0 {
			return time.Time{}, fmt.Errorf("%w: line %d: quantity must be positive", shared.ErrValidation, i+1)
		}
		if line.LineValue < 0 {
			return time.Time{}, fmt.Errorf("%w: line %d: value cannot be negative", shared.ErrValidation, i+1)
		}
	}
	date, err := time.Parse("2006-01-02", input.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", shared.ErrValidation)
	}
	return date, nil
}
