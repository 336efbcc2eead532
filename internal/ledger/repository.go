package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mise-erp/mise-erp/internal/platform/db"
	"github.com/mise-erp/mise-erp/internal/shared"
)

// Repository persists snapshots and ledger entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside the retrying repeatable-read transaction runner.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.RunTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxOps(tx))
	})
}

// GetSnapshot reads one stock item outside any transaction.
func (r *Repository) GetSnapshot(ctx context.Context, id string, kind ItemKind) (StockSnapshot, error) {
	return scanSnapshot(ctx, r.pool, id, kind, false)
}

// GetEntry reads one ledger entry.
func (r *Repository) GetEntry(ctx context.Context, id string) (Entry, error) {
	return getEntry(ctx, r.pool, id)
}

// ListEntries returns ledger entries newest first.
func (r *Repository) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
WHERE ($1 = '' OR item_id = $1)
  AND ($2 = '' OR item_kind = $2)
  AND ($3 = '' OR related_doc_id = $3)
ORDER BY occurred_at DESC, created_at DESC
LIMIT $4`, filter.ItemID, string(filter.Kind), filter.DocID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListConservationDrift reports items whose snapshot quantity disagrees with
// the sum of their active ledger entries. Healthy systems return nothing.
func (r *Repository) ListConservationDrift(ctx context.Context) ([]Drift, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.kind, i.name, i.quantity_on_hand, COALESCE(SUM(e.quantity_change), 0)
FROM stock_items i
LEFT JOIN ledger_entries e ON e.item_id = i.id AND e.item_kind = i.kind AND e.status = 'active'
GROUP BY i.id, i.kind, i.name, i.quantity_on_hand
HAVING ABS(i.quantity_on_hand - COALESCE(SUM(e.quantity_change), 0)) > 1e-6`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drifts []Drift
	for rows.Next() {
		var d Drift
		var kind string
		if err := rows.Scan(&d.ItemID, &kind, &d.Name, &d.SnapshotQty, &d.LedgerQty); err != nil {
			return nil, err
		}
		d.Kind = ItemKind(kind)
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

// NewTxOps adapts a pgx transaction to the scope's storage surface.
// Orchestrator repositories embed it next to their document operations.
func NewTxOps(tx pgx.Tx) Tx {
	return &txOps{tx: tx}
}

type txOps struct {
	tx pgx.Tx
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const entryColumns = `id, entry_type, occurred_at, item_id, item_kind, item_name, quantity_change, unit_cost, total_value, related_doc_id, related_doc_code, performer_id, performer_name, status, COALESCE(reversal_entry_id, ''), created_at`

func (t *txOps) GetItem(ctx context.Context, id string, kind ItemKind) (StockSnapshot, error) {
	return scanSnapshot(ctx, t.tx, id, kind, true)
}

func (t *txOps) UpdateSnapshot(ctx context.Context, id string, kind ItemKind, qty, avgCost float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE stock_items SET quantity_on_hand = $3, avg_unit_cost = $4, updated_at = NOW() WHERE id = $1 AND kind = $2`,
		id, string(kind), qty, avgCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger: stock item %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (t *txOps) InsertEntry(ctx context.Context, e Entry) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO ledger_entries
(id, entry_type, occurred_at, item_id, item_kind, item_name, quantity_change, unit_cost, total_value, related_doc_id, related_doc_code, performer_id, performer_name, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())`,
		e.ID, string(e.Type), e.OccurredAt, e.ItemID, string(e.ItemKind), e.ItemName,
		e.QuantityChange, e.UnitCost, e.TotalValue, e.RelatedDocID, e.RelatedDocCode,
		e.PerformerID, e.PerformerName, string(e.Status))
	return err
}

func (t *txOps) GetEntry(ctx context.Context, id string) (Entry, error) {
	return getEntry(ctx, t.tx, id)
}

func (t *txOps) CancelEntry(ctx context.Context, id, reversalEntryID string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE ledger_entries SET status = 'canceled', reversal_entry_id = $2 WHERE id = $1 AND status = 'active'`,
		id, reversalEntryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger: entry %s: %w", id, shared.ErrAlreadyCanceled)
	}
	return nil
}

func (t *txOps) CancelDocEntries(ctx context.Context, relatedDocID, itemID, reversalEntryID string) error {
	// Compensating entries share the document id but are adjustments; they
	// stay active.
	_, err := t.tx.Exec(ctx, `UPDATE ledger_entries SET status = 'canceled', reversal_entry_id = $3 WHERE related_doc_id = $1 AND item_id = $2 AND status = 'active' AND entry_type <> 'adjustment'`,
		relatedDocID, itemID, reversalEntryID)
	return err
}

func scanSnapshot(ctx context.Context, q queryer, id string, kind ItemKind, forUpdate bool) (StockSnapshot, error) {
	sql := `SELECT id, kind, code, name, quantity_on_hand, avg_unit_cost, updated_at FROM stock_items WHERE id = $1 AND kind = $2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var s StockSnapshot
	var k string
	err := q.QueryRow(ctx, sql, id, string(kind)).
		Scan(&s.ID, &k, &s.Code, &s.Name, &s.QuantityOnHand, &s.AvgUnitCost, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockSnapshot{}, fmt.Errorf("ledger: stock item %s: %w", id, shared.ErrNotFound)
		}
		return StockSnapshot{}, err
	}
	s.Kind = ItemKind(k)
	return s, nil
}

func getEntry(ctx context.Context, q queryer, id string) (Entry, error) {
	row := q.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("ledger: entry %s: %w", id, shared.ErrNotFound)
		}
		return Entry{}, err
	}
	return e, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var typ, kind, status string
	err := row.Scan(&e.ID, &typ, &e.OccurredAt, &e.ItemID, &kind, &e.ItemName,
		&e.QuantityChange, &e.UnitCost, &e.TotalValue, &e.RelatedDocID, &e.RelatedDocCode,
		&e.PerformerID, &e.PerformerName, &status, &e.ReversalEntryID, &e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	e.Type = EntryType(typ)
	e.ItemKind = ItemKind(kind)
	e.Status = EntryStatus(status)
	return e, nil
}
