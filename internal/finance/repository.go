package finance

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists finance transactions in PostgreSQL. Amounts are stored
// as NUMERIC and handled as decimals end to end.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const txColumns = `id, tx_type, category, amount, description, related_doc_id, status, performer_id, performer_name, created_at`

// Insert stores one transaction.
func (r *Repository) Insert(ctx context.Context, tx Transaction) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO finance_transactions
(id, tx_type, category, amount, description, related_doc_id, status, performer_id, performer_name, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tx.ID, string(tx.Type), tx.Category, tx.Amount.String(), tx.Description,
		tx.RelatedDocID, string(tx.Status), tx.Performer.ID, tx.Performer.Name, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("finance: insert: %w", err)
	}
	return nil
}

// List returns transactions newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+txColumns+` FROM finance_transactions
WHERE ($1 = '' OR related_doc_id = $1)
  AND ($2 = '' OR tx_type = $2)
  AND ($3 = '' OR status = $3)
ORDER BY created_at DESC
LIMIT $4`, filter.DocID, string(filter.Type), string(filter.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// CancelByDoc flips every active transaction of a document to canceled and
// reports how many rows changed. Zero rows is not an error.
func (r *Repository) CancelByDoc(ctx context.Context, docID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE finance_transactions SET status = 'canceled' WHERE related_doc_id = $1 AND status = 'active'`, docID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var tx Transaction
	var typ, status, amount string
	err := row.Scan(&tx.ID, &typ, &tx.Category, &amount, &tx.Description,
		&tx.RelatedDocID, &status, &tx.Performer.ID, &tx.Performer.Name, &tx.CreatedAt)
	if err != nil {
		return Transaction{}, err
	}
	tx.Type = TxType(typ)
	tx.Status = TxStatus(status)
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("finance: parse amount: %w", err)
	}
	return tx, nil
}
