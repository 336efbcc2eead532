package ledger

import (
	"context"
	"fmt"
)

// Tx is the transaction-scoped storage surface the scope drives. Orchestrator
// repositories embed an implementation of it next to their own document
// operations so one database transaction covers both.
type Tx interface {
	GetItem(ctx context.Context, id string, kind ItemKind) (StockSnapshot, error)
	UpdateSnapshot(ctx context.Context, id string, kind ItemKind, qty, avgCost float64) error
	InsertEntry(ctx context.Context, e Entry) error
	GetEntry(ctx context.Context, id string) (Entry, error)
	CancelEntry(ctx context.Context, id, reversalEntryID string) error
	CancelDocEntries(ctx context.Context, relatedDocID, itemID, reversalEntryID string) error
}

// Scope enforces the read-all-before-write-any discipline of one transaction.
// Item reads are deduplicated and cached; once any write is issued, further
// reads fail with ErrReadAfterWrite. Orchestrators that write their business
// document through their own repository call BeginWrites first so a stray late
// read is still caught.
type Scope struct {
	tx      Tx
	items   map[ItemKey]StockSnapshot
	writing bool
}

// NewScope wraps a transaction in a fresh scope.
func NewScope(tx Tx) *Scope {
	return &Scope{tx: tx, items: make(map[ItemKey]StockSnapshot)}
}

// ReadItem fetches one stock item inside the open transaction. A repeated read
// of the same key returns the cached snapshot rather than hitting the store
// again. Missing items surface shared.ErrNotFound.
func (s *Scope) ReadItem(ctx context.Context, id string, kind ItemKind) (StockSnapshot, error) {
	if s.writing {
		return StockSnapshot{}, ErrReadAfterWrite
	}
	key := ItemKey{ID: id, Kind: kind}
	if snap, ok := s.items[key]; ok {
		return snap, nil
	}
	snap, err := s.tx.GetItem(ctx, id, kind)
	if err != nil {
		return StockSnapshot{}, err
	}
	s.items[key] = snap
	return snap, nil
}

// Snapshot returns the cached result of an earlier ReadItem.
func (s *Scope) Snapshot(id string, kind ItemKind) (StockSnapshot, bool) {
	snap, ok := s.items[ItemKey{ID: id, Kind: kind}]
	return snap, ok
}

// BeginWrites flips the scope into its write phase.
func (s *Scope) BeginWrites() {
	s.writing = true
}

// Writing reports whether the write phase has begun.
func (s *Scope) Writing() bool {
	return s.writing
}

// WriteSnapshot persists new quantity and average cost for an item and keeps
// the cached snapshot current, so several movements against the same item in
// one transaction compound correctly.
func (s *Scope) WriteSnapshot(ctx context.Context, id string, kind ItemKind, qty, avgCost float64) error {
	s.writing = true
	if err := s.tx.UpdateSnapshot(ctx, id, kind, qty, avgCost); err != nil {
		return err
	}
	key := ItemKey{ID: id, Kind: kind}
	snap, ok := s.items[key]
	if !ok {
		return fmt.Errorf("ledger: snapshot write for unread item %s: %w", id, ErrItemNotRead)
	}
	snap.QuantityOnHand = qty
	snap.AvgUnitCost = avgCost
	s.items[key] = snap
	return nil
}

// AppendEntry appends one ledger entry.
func (s *Scope) AppendEntry(ctx context.Context, e Entry) error {
	s.writing = true
	return s.tx.InsertEntry(ctx, e)
}

// CancelEntry flips a single entry from active to canceled, recording the
// compensating entry that negated it.
func (s *Scope) CancelEntry(ctx context.Context, id, reversalEntryID string) error {
	s.writing = true
	return s.tx.CancelEntry(ctx, id, reversalEntryID)
}

// CancelDocEntries flips every active entry a business document produced for
// one item, recording the compensating entry. Adjustment entries are exempt:
// the compensating entries of the cancel itself share the document id and must
// stay active.
func (s *Scope) CancelDocEntries(ctx context.Context, relatedDocID, itemID, reversalEntryID string) error {
	s.writing = true
	return s.tx.CancelDocEntries(ctx, relatedDocID, itemID, reversalEntryID)
}
