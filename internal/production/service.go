package production

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/sequence"
	"github.com/mise-erp/mise-erp/internal/shared"
)

// CodeGenerator hands out document codes before the transaction opens.
type CodeGenerator interface {
	Next(ctx context.Context, series string) (string, error)
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

// Service orchestrates production runs.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	codes   CodeGenerator
	cleanup FinanceCleanup
	audit   AuditPort
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, codes CodeGenerator, cleanup FinanceCleanup, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, codes: codes, cleanup: cleanup, audit: audit}
}

// CreateRun posts a production run in one transaction: read the product and
// every distinct ingredient, reject draws exceeding current stock, write the
// run, post one outbound movement per consumed ingredient and one inbound
// movement for the yielded product at the run's cost per unit.
func (s *Service) CreateRun(ctx context.Context, input CreateInput) (Run, error) {
	date, err := validateCreate(input)
	if err != nil {
		return Run{}, err
	}

	code, err := s.codes.Next(ctx, sequence.SeriesProduction)
	if err != nil {
		return Run{}, err
	}

	run := Run{
		ID:          uuid.NewString(),
		Code:        code,
		ProductID:   input.ProductID,
		Date:        date,
		ActualYield: input.ActualYield,
		Status:      StatusActive,
		Performer:   input.Performer,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		scope := ledger.NewScope(tx)
		product, err := scope.ReadItem(ctx, input.ProductID, ledger.KindProduct)
		if err != nil {
			return err
		}
		run.ProductName = product.Name

		for _, in := range input.Inputs {
			snap, err := scope.ReadItem(ctx, in.IngredientID, ledger.KindIngredient)
			if err != nil {
				return err
			}
			if in.ActualUsed > snap.QuantityOnHand {
				return fmt.Errorf("%w: %s has %.3f on hand, run needs %.3f",
					shared.ErrInsufficientStock, snap.Name, snap.QuantityOnHand, in.ActualUsed)
			}
		}

		run.Inputs = run.Inputs[:0]
		run.TotalCost = 0
		for _, in := range input.Inputs {
			snap, _ := scope.Snapshot(in.IngredientID, ledger.KindIngredient)
			cost := in.SnapshotCost
			if cost == 0 {
				cost = snap.AvgUnitCost
			}
			run.Inputs = append(run.Inputs, Input{
				IngredientID:   in.IngredientID,
				IngredientName: snap.Name,
				TheoreticalQty: in.TheoreticalQty,
				ActualUsed:     in.ActualUsed,
				SnapshotCost:   cost,
			})
			run.TotalCost += in.ActualUsed * cost
		}
		run.CostPerUnit = run.TotalCost / run.ActualYield

		scope.BeginWrites()
		if err := tx.InsertRun(ctx, run); err != nil {
			return err
		}
		for _, in := range run.Inputs {
			if in.ActualUsed <= 0 {
				continue
			}
			_, err := ledger.Apply(ctx, scope, ledger.Movement{
				Type:           ledger.EntryProductionOut,
				ItemID:         in.IngredientID,
				ItemKind:       ledger.KindIngredient,
				QuantityChange: -in.ActualUsed,
				UnitCost:       in.SnapshotCost,
				RelatedDocID:   run.ID,
				RelatedDocCode: run.Code,
				Performer:      input.Performer,
				OccurredAt:     date,
			})
			if err != nil {
				return err
			}
		}
		_, err = ledger.Apply(ctx, scope, ledger.Movement{
			Type:           ledger.EntryProductionIn,
			ItemID:         run.ProductID,
			ItemKind:       ledger.KindProduct,
			QuantityChange: run.ActualYield,
			UnitCost:       run.CostPerUnit,
			RelatedDocID:   run.ID,
			RelatedDocCode: run.Code,
			Performer:      input.Performer,
			OccurredAt:     date,
		})
		return err
	})
	if err != nil {
		return Run{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:      input.Performer,
			Action:     "CREATE",
			Collection: "production_runs",
			Message:    fmt.Sprintf("Run %s: %g x %s at %.2f/unit", run.Code, run.ActualYield, run.ProductName, run.CostPerUnit),
		})
	}
	return run, nil
}

// CancelRun reverses a run: the yielded product goes back out under the
// outbound rule (an emptied shelf resets its cost) and each consumed
// ingredient returns at its snapshot cost. Original entries and the run flip
// to canceled. Finance cleanup runs after commit.
func (s *Service) CancelRun(ctx context.Context, id string, performer shared.Actor) (Run, error) {
	if id == "" {
		return Run{}, fmt.Errorf("%w: run id required", shared.ErrValidation)
	}
	var run Run
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		run, err = tx.GetRun(ctx, id)
		if err != nil {
			return err
		}
		if run.Status == StatusCanceled {
			return fmt.Errorf("production: run %s: %w", run.Code, shared.ErrAlreadyCanceled)
		}

		scope := ledger.NewScope(tx)
		if _, err := scope.ReadItem(ctx, run.ProductID, ledger.KindProduct); err != nil {
			return err
		}
		for _, in := range run.Inputs {
			if _, err := scope.ReadItem(ctx, in.IngredientID, ledger.KindIngredient); err != nil {
				return err
			}
		}

		comp, err := ledger.Apply(ctx, scope, ledger.Movement{
			Type:           ledger.EntryAdjustment,
			ItemID:         run.ProductID,
			ItemKind:       ledger.KindProduct,
			QuantityChange: -run.ActualYield,
			UnitCost:       run.CostPerUnit,
			RelatedDocID:   run.ID,
			RelatedDocCode: run.Code,
			Performer:      performer,
		})
		if err != nil {
			return err
		}
		if err := scope.CancelDocEntries(ctx, run.ID, run.ProductID, comp.ID); err != nil {
			return err
		}

		for _, in := range run.Inputs {
			if in.ActualUsed <= 0 {
				continue
			}
			comp, err := ledger.Apply(ctx, scope, ledger.Movement{
				Type:           ledger.EntryAdjustment,
				ItemID:         in.IngredientID,
				ItemKind:       ledger.KindIngredient,
				QuantityChange: in.ActualUsed,
				UnitCost:       in.SnapshotCost,
				RelatedDocID:   run.ID,
				RelatedDocCode: run.Code,
				Performer:      performer,
			})
			if err != nil {
				return err
			}
			if err := scope.CancelDocEntries(ctx, run.ID, in.IngredientID, comp.ID); err != nil {
				return err
			}
		}
		if err := tx.MarkRunCanceled(ctx, run.ID); err != nil {
			return err
		}
		run.Status = StatusCanceled
		return nil
	})
	if err != nil {
		return Run{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:      performer,
			Action:     "UPDATE",
			Collection: "production_runs",
			Message:    fmt.Sprintf("Canceled run %s", run.Code),
		})
	}
	if s.cleanup != nil {
		if err := s.cleanup.EnqueueFinanceCancel(ctx, run.ID); err != nil {
			s.logger.Warn("finance cleanup not enqueued", slog.Any("error", err), slog.String("run", run.Code))
			return run, fmt.Errorf("production: cancel %s: %w", run.Code, shared.ErrPartialReversal)
		}
	}
	return run, nil
}

// GetRun returns one run by id or code.
func (s *Service) GetRun(ctx context.Context, id string) (Run, error) {
	if id == "" {
		return Run{}, fmt.Errorf("%w: run id required", shared.ErrValidation)
	}
	return s.repo.GetRun(ctx, id)
}

// ListRuns returns recent runs.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.repo.ListRuns(ctx, limit)
}

func validateCreate(input CreateInput) (time.Time, error) {
	if input.ProductID == "" {
		return time.Time{}, fmt.Errorf("%w: product required", shared.ErrValidation)
	}
	if input.ActualYield <= 0 {
		return time.Time{}, fmt.Errorf("%w: yield must be positive", shared.ErrValidation)
	}
	if len(input.Inputs) == 0 {
		return time.Time{}, fmt.Errorf("%w: at least one ingredient required", shared.ErrValidation)
	}
	for i, in := range input.Inputs {
		if in.IngredientID == "" {
			return time.Time{}, fmt.Errorf("%w: input %d: ingredient required", shared.ErrValidation, i+1)
		}
		if in.ActualUsed < 0 || in.TheoreticalQty < 0 || in.SnapshotCost < 0 {
			return time.Time{}, fmt.Errorf("%w: input %d: negative amounts", shared.ErrValidation, i+1)
		}
	}
	date, err := time.Parse("2006-01-02", input.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", shared.ErrValidation)
	}
	return date, nil
}
