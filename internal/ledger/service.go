package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/mise-erp/mise-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	GetSnapshot(ctx context.Context, id string, kind ItemKind) (StockSnapshot, error)
	GetEntry(ctx context.Context, id string) (Entry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	ListConservationDrift(ctx context.Context) ([]Drift, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes stocktake adjustments and ledger queries. The business
// document orchestrators live in their own packages; standalone adjustments
// have no document header, so they live with the engine.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// AdjustInput describes a stocktake correction.
type AdjustInput struct {
	ItemID      string
	Kind        ItemKind
	ActualStock float64
	Performer   shared.Actor
}

// AdjustStock reconciles a counted quantity against the snapshot. Equal counts
// are a no-op. Positive corrections carry the item's current average cost so a
// count fix does not dilute valuation; negative corrections are outbound and
// leave the average untouched.
func (s *Service) AdjustStock(ctx context.Context, input AdjustInput) (Entry, bool, error) {
	if input.ItemID == "" || (input.Kind != KindIngredient && input.Kind != KindProduct) {
		return Entry{}, false, fmt.Errorf("%w: item id and kind required", shared.ErrValidation)
	}
	now := time.Now().UTC()
	var entry Entry
	applied := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		scope := NewScope(tx)
		snap, err := scope.ReadItem(ctx, input.ItemID, input.Kind)
		if err != nil {
			return err
		}
		diff := input.ActualStock - snap.QuantityOnHand
		if diff == 0 {
			return nil
		}
		unitCost := 0.0
		if diff > 0 {
			unitCost = snap.AvgUnitCost
		}
		entry, err = Apply(ctx, scope, Movement{
			Type:           EntryAdjustment,
			ItemID:         input.ItemID,
			ItemKind:       input.Kind,
			QuantityChange: diff,
			UnitCost:       unitCost,
			Performer:      input.Performer,
			OccurredAt:     now,
		})
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	if applied && s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:      input.Performer,
			Action:     "TRANSACTION",
			Collection: "ledger_entries",
			Message:    fmt.Sprintf("Stocktake %s %s: %+g", input.Kind, input.ItemID, entry.QuantityChange),
		})
	}
	return entry, applied, nil
}

// CancelAdjustment reverses one standalone stocktake entry: it re-reads the
// item, applies the negated quantity with the exact negated value, and flips
// only that entry to canceled. A second attempt is rejected.
func (s *Service) CancelAdjustment(ctx context.Context, entryID string, performer shared.Actor) (Entry, error) {
	if entryID == "" {
		return Entry{}, fmt.Errorf("%w: entry id required", shared.ErrValidation)
	}
	now := time.Now().UTC()
	var comp Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		orig, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if orig.Type != EntryAdjustment || orig.RelatedDocID != "" {
			return fmt.Errorf("%w: only standalone adjustments can be canceled here", shared.ErrValidation)
		}
		if orig.Status == StatusCanceled {
			return fmt.Errorf("ledger: entry %s: %w", entryID, shared.ErrAlreadyCanceled)
		}

		scope := NewScope(tx)
		if _, err := scope.ReadItem(ctx, orig.ItemID, orig.ItemKind); err != nil {
			return err
		}

		forced := -orig.TotalValue
		comp, err = Apply(ctx, scope, Movement{
			Type:           EntryAdjustment,
			ItemID:         orig.ItemID,
			ItemKind:       orig.ItemKind,
			QuantityChange: -orig.QuantityChange,
			UnitCost:       orig.UnitCost,
			ValueChange:    &forced,
			RelatedDocID:   orig.ID,
			Performer:      performer,
			OccurredAt:     now,
		})
		if err != nil {
			return err
		}
		return scope.CancelEntry(ctx, orig.ID, comp.ID)
	})
	if err != nil {
		return Entry{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:      performer,
			Action:     "UPDATE",
			Collection: "ledger_entries",
			Message:    fmt.Sprintf("Canceled adjustment %s", entryID),
		})
	}
	return comp, nil
}

// GetSnapshot returns one item's current state.
func (s *Service) GetSnapshot(ctx context.Context, id string, kind ItemKind) (StockSnapshot, error) {
	if id == "" {
		return StockSnapshot{}, fmt.Errorf("%w: item id required", shared.ErrValidation)
	}
	return s.repo.GetSnapshot(ctx, id, kind)
}

// ListEntries returns ledger history for an item or document.
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	if filter.ItemID == "" && filter.DocID == "" {
		return nil, fmt.Errorf("%w: item or document filter required", shared.ErrValidation)
	}
	return s.repo.ListEntries(ctx, filter)
}

// CheckConservation reports snapshot/ledger drift for the integrity job.
func (s *Service) CheckConservation(ctx context.Context) ([]Drift, error) {
	return s.repo.ListConservationDrift(ctx)
}
