package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Apply is the costing & snapshot writer: given a movement whose item was
// already read into the scope, it computes the new quantity on hand and
// weighted-average cost, writes the snapshot and appends the ledger entry.
// All effects are transaction-scoped; retrying the surrounding transaction
// reproduces identical results.
//
// Value rules:
//   - an explicit ValueChange is applied verbatim (exact reversal rollback);
//   - inbound movements (QuantityChange > 0) contribute QuantityChange×UnitCost;
//   - outbound movements contribute nothing and leave the average cost alone.
//
// When the resulting quantity is zero or below, the average cost resets to
// zero so a later restock is not priced against a stale basis.
func Apply(ctx context.Context, scope *Scope, m Movement) (Entry, error) {
	if m.ItemID == "" {
		return Entry{}, fmt.Errorf("%w: item id required", ErrInvalidMovement)
	}
	switch m.Type {
	case EntryImport, EntrySale, EntryProductionIn, EntryProductionOut, EntryAdjustment:
	default:
		return Entry{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMovement, m.Type)
	}
	if m.QuantityChange == 0 && m.ValueChange == nil {
		return Entry{}, fmt.Errorf("%w: empty movement", ErrInvalidMovement)
	}

	snap, ok := scope.Snapshot(m.ItemID, m.ItemKind)
	if !ok {
		return Entry{}, ErrItemNotRead
	}

	newQty := snap.QuantityOnHand + m.QuantityChange

	var effValue float64
	hasValue := false
	switch {
	case m.ValueChange != nil:
		effValue = *m.ValueChange
		hasValue = true
	case m.QuantityChange > 0:
		effValue = m.QuantityChange * m.UnitCost
		hasValue = true
	}

	newAvg := snap.AvgUnitCost
	switch {
	case newQty <= 0:
		newAvg = 0
	case hasValue:
		// Rounded to the smallest currency unit, not truncated.
		newAvg = math.Round((snap.QuantityOnHand*snap.AvgUnitCost + effValue) / newQty)
	}
	if newAvg < 0 {
		newAvg = 0
	}

	if err := scope.WriteSnapshot(ctx, m.ItemID, m.ItemKind, newQty, newAvg); err != nil {
		return Entry{}, err
	}

	occurredAt := m.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	entry := Entry{
		ID:             uuid.NewString(),
		Type:           m.Type,
		OccurredAt:     occurredAt,
		ItemID:         m.ItemID,
		ItemKind:       m.ItemKind,
		ItemName:       snap.Name,
		QuantityChange: m.QuantityChange,
		UnitCost:       m.UnitCost,
		// The ledger keeps the nominal transaction value even when the
		// snapshot update used a forced ValueChange.
		TotalValue:     m.QuantityChange * m.UnitCost,
		RelatedDocID:   m.RelatedDocID,
		RelatedDocCode: m.RelatedDocCode,
		PerformerID:    m.Performer.ID,
		PerformerName:  m.Performer.Name,
		Status:         StatusActive,
	}
	if err := scope.AppendEntry(ctx, entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}
