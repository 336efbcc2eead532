// Package ledgertest provides an in-memory stand-in for the ledger storage
// surface, used by engine and orchestrator tests.
package ledgertest

import (
	"context"
	"fmt"
	"math"

	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/shared"
)

// Store keeps snapshots and entries in maps. WithTx snapshots the state and
// restores it when the callback fails, mimicking a rolled-back transaction.
type Store struct {
	items   map[ledger.ItemKey]ledger.StockSnapshot
	entries []ledger.Entry
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{items: make(map[ledger.ItemKey]ledger.StockSnapshot)}
}

// SeedItem installs a stock item snapshot.
func (s *Store) SeedItem(id string, kind ledger.ItemKind, name string, qty, avgCost float64) {
	key := ledger.ItemKey{ID: id, Kind: kind}
	s.items[key] = ledger.StockSnapshot{ID: id, Kind: kind, Name: name, QuantityOnHand: qty, AvgUnitCost: avgCost}
}

// Item returns the current snapshot for assertions.
func (s *Store) Item(id string, kind ledger.ItemKind) (ledger.StockSnapshot, bool) {
	snap, ok := s.items[ledger.ItemKey{ID: id, Kind: kind}]
	return snap, ok
}

// Entries returns a copy of all ledger entries in insert order.
func (s *Store) Entries() []ledger.Entry {
	out := make([]ledger.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ActiveQuantity sums active entry quantities for one item.
func (s *Store) ActiveQuantity(id string, kind ledger.ItemKind) float64 {
	var sum float64
	for _, e := range s.entries {
		if e.ItemID == id && e.ItemKind == kind && e.Status == ledger.StatusActive {
			sum += e.QuantityChange
		}
	}
	return sum
}

// WithTx satisfies the repository ports of the engine and the orchestrators.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, ledger.Tx) error) error {
	backupItems := make(map[ledger.ItemKey]ledger.StockSnapshot, len(s.items))
	for k, v := range s.items {
		backupItems[k] = v
	}
	backupEntries := make([]ledger.Entry, len(s.entries))
	copy(backupEntries, s.entries)

	if err := fn(ctx, &Tx{store: s}); err != nil {
		s.items = backupItems
		s.entries = backupEntries
		return err
	}
	return nil
}

// GetSnapshot implements the pool-level read.
func (s *Store) GetSnapshot(ctx context.Context, id string, kind ledger.ItemKind) (ledger.StockSnapshot, error) {
	snap, ok := s.items[ledger.ItemKey{ID: id, Kind: kind}]
	if !ok {
		return ledger.StockSnapshot{}, fmt.Errorf("ledgertest: stock item %s: %w", id, shared.ErrNotFound)
	}
	return snap, nil
}

// GetEntry implements the pool-level entry read.
func (s *Store) GetEntry(ctx context.Context, id string) (ledger.Entry, error) {
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return ledger.Entry{}, fmt.Errorf("ledgertest: entry %s: %w", id, shared.ErrNotFound)
}

// ListEntries filters entries newest-last (insert order).
func (s *Store) ListEntries(ctx context.Context, filter ledger.EntryFilter) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for _, e := range s.entries {
		if filter.ItemID != "" && e.ItemID != filter.ItemID {
			continue
		}
		if filter.Kind != "" && e.ItemKind != filter.Kind {
			continue
		}
		if filter.DocID != "" && e.RelatedDocID != filter.DocID {
			continue
		}
		out = append(out, e)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

// ListConservationDrift compares snapshots against active entry sums.
func (s *Store) ListConservationDrift(ctx context.Context) ([]ledger.Drift, error) {
	var drifts []ledger.Drift
	for key, snap := range s.items {
		ledgerQty := s.ActiveQuantity(key.ID, key.Kind)
		if math.Abs(snap.QuantityOnHand-ledgerQty) > 1e-6 {
			drifts = append(drifts, ledger.Drift{
				ItemID:      key.ID,
				Kind:        key.Kind,
				Name:        snap.Name,
				SnapshotQty: snap.QuantityOnHand,
				LedgerQty:   ledgerQty,
			})
		}
	}
	return drifts, nil
}

// Tx implements ledger.Tx against the parent store.
type Tx struct {
	store *Store
}

func (t *Tx) GetItem(ctx context.Context, id string, kind ledger.ItemKind) (ledger.StockSnapshot, error) {
	return t.store.GetSnapshot(ctx, id, kind)
}

func (t *Tx) UpdateSnapshot(ctx context.Context, id string, kind ledger.ItemKind, qty, avgCost float64) error {
	key := ledger.ItemKey{ID: id, Kind: kind}
	snap, ok := t.store.items[key]
	if !ok {
		return fmt.Errorf("ledgertest: stock item %s: %w", id, shared.ErrNotFound)
	}
	snap.QuantityOnHand = qty
	snap.AvgUnitCost = avgCost
	t.store.items[key] = snap
	return nil
}

func (t *Tx) InsertEntry(ctx context.Context, e ledger.Entry) error {
	t.store.entries = append(t.store.entries, e)
	return nil
}

func (t *Tx) GetEntry(ctx context.Context, id string) (ledger.Entry, error) {
	return t.store.GetEntry(ctx, id)
}

func (t *Tx) CancelEntry(ctx context.Context, id, reversalEntryID string) error {
	for i := range t.store.entries {
		if t.store.entries[i].ID == id && t.store.entries[i].Status == ledger.StatusActive {
			t.store.entries[i].Status = ledger.StatusCanceled
			t.store.entries[i].ReversalEntryID = reversalEntryID
			return nil
		}
	}
	return fmt.Errorf("ledgertest: entry %s: %w", id, shared.ErrAlreadyCanceled)
}

func (t *Tx) CancelDocEntries(ctx context.Context, relatedDocID, itemID, reversalEntryID string) error {
	for i := range t.store.entries {
		e := &t.store.entries[i]
		if e.RelatedDocID == relatedDocID && e.ItemID == itemID && e.Status == ledger.StatusActive && e.Type != ledger.EntryAdjustment {
			e.Status = ledger.StatusCanceled
			e.ReversalEntryID = reversalEntryID
		}
	}
	return nil
}

var _ ledger.Tx = (*Tx)(nil)
var _ ledger.RepositoryPort = (*Store)(nil)
