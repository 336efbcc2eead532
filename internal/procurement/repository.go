package procurement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/platform/db"
	"github.com/mise-erp/mise-erp/internal/shared"
)

// TxRepository is the transaction-scoped surface the service drives: the
// ledger storage operations plus the receipt document itself, all inside one
// database transaction.
type TxRepository interface {
	ledger.Tx
	InsertReceipt(ctx context.Context, r Receipt) error
	GetReceipt(ctx context.Context, id string) (Receipt, error)
	MarkReceiptCanceled(ctx context.Context, id string) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReceipt(ctx context.Context, id string) (Receipt, error)
	ListReceipts(ctx context.Context, limit int) ([]Receipt, error)
}

// Repository persists import receipts in PostgreSQL. Lines are embedded as
// JSONB; a receipt is small and always handled whole.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside the retrying repeatable-read transaction runner.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.RunTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{Tx: ledger.NewTxOps(tx), tx: tx})
	})
}

// GetReceipt reads one receipt outside any transaction.
func (r *Repository) GetReceipt(ctx context.Context, id string) (Receipt, error) {
	return getReceipt(ctx, r.pool, id)
}

// ListReceipts returns receipts newest first.
func (r *Repository) ListReceipts(ctx context.Context, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+receiptColumns+` FROM import_receipts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var receipts []Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, rec)
	}
	return receipts, rows.Err()
}

type txRepo struct {
	ledger.Tx
	tx pgx.Tx
}

const receiptColumns = `id, code, supplier_id, supplier_name, receipt_date, lines, total_value, status, performer_id, performer_name, created_at`

func (t *txRepo) InsertReceipt(ctx context.Context, r Receipt) error {
	lines, err := json.Marshal(r.Lines)
	if err != nil {
		return fmt.Errorf("procurement: marshal lines: %w", err)
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO import_receipts
(id, code, supplier_id, supplier_name, receipt_date, lines, total_value, status, performer_id, performer_name, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		r.ID, r.Code, r.SupplierID, r.SupplierName, r.Date, lines, r.TotalValue,
		string(r.Status), r.Performer.ID, r.Performer.Name)
	return err
}

func (t *txRepo) GetReceipt(ctx context.Context, id string) (Receipt, error) {
	return getReceipt(ctx, t.tx, id)
}

func (t *txRepo) MarkReceiptCanceled(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE import_receipts SET status = 'canceled' WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("procurement: receipt %s: %w", id, shared.ErrAlreadyCanceled)
	}
	return nil
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getReceipt(ctx context.Context, q queryer, id string) (Receipt, error) {
	row := q.QueryRow(ctx, `SELECT `+receiptColumns+` FROM import_receipts WHERE id = $1 OR code = $1`, id)
	rec, err := scanReceipt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, fmt.Errorf("procurement: receipt %s: %w", id, shared.ErrNotFound)
		}
		return Receipt{}, err
	}
	return rec, nil
}

func scanReceipt(row pgx.Row) (Receipt, error) {
	var rec Receipt
	var status string
	var lines []byte
	err := row.Scan(&rec.ID, &rec.Code, &rec.SupplierID, &rec.SupplierName, &rec.Date,
		&lines, &rec.TotalValue, &status, &rec.Performer.ID, &rec.Performer.Name, &rec.CreatedAt)
	if err != nil {
		return Receipt{}, err
	}
	if err := json.Unmarshal(lines, &rec.Lines); err != nil {
		return Receipt{}, fmt.Errorf("procurement: unmarshal lines: %w", err)
	}
	rec.Status = ReceiptStatus(status)
	return rec, nil
}
