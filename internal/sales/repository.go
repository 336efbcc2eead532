package sales

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

// TxRepository is the transaction-scoped surface the service drives.
type TxRepository interface {
	ledger.Tx
	InsertOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, id string) (Order, error)
	MarkOrderCanceled(ctx context.Context, id string) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context, status OrderStatus, limit int) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to OrderStatus) error
}

// Repository persists sales orders in PostgreSQL with JSONB lines.
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

// GetOrder reads one order by id or code.
func (r *Repository) GetOrder(ctx context.Context, id string) (Order, error) {
	return getOrder(ctx, r.pool, id)
}

// ListOrders returns orders newest first, optionally by status.
func (r *Repository) ListOrders(ctx context.Context, status OrderStatus, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM sales_orders
WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateOrderStatus moves an order forward with an optimistic guard on the
// expected current status. Zero rows means the order moved underneath us.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id string, from, to OrderStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sales_orders SET status = $3 WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s is no longer %s", shared.ErrInvalidTransition, id, from)
	}
	return nil
}

type txRepo struct {
	ledger.Tx
	tx pgx.Tx
}

const orderColumns = `id, code, customer_name, customer_phone, address, delivery_date, lines, shipping_fee, revenue, cogs, profit, status, performer_id, performer_name, created_at`

func (t *txRepo) InsertOrder(ctx context.Context, o Order) error {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("sales: marshal lines: %w", err)
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO sales_orders
(id, code, customer_name, customer_phone, address, delivery_date, lines, shipping_fee, revenue, cogs, profit, status, performer_id, performer_name, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())`,
		o.ID, o.Code, o.CustomerName, o.CustomerPhone, o.Address, o.DeliveryDate, lines,
		o.ShippingFee, o.Revenue, o.COGS, o.Profit, string(o.Status), o.Performer.ID, o.Performer.Name)
	return err
}

func (t *txRepo) GetOrder(ctx context.Context, id string) (Order, error) {
	return getOrder(ctx, t.tx, id)
}

func (t *txRepo) MarkOrderCanceled(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sales_orders SET status = 'canceled' WHERE id = $1 AND status NOT IN ('canceled', 'completed')`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sales: order %s: %w", id, shared.ErrAlreadyCanceled)
	}
	return nil
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getOrder(ctx context.Context, q queryer, id string) (Order, error) {
	row := q.QueryRow(ctx, `SELECT `+orderColumns+` FROM sales_orders WHERE id = $1 OR code = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("sales: order %s: %w", id, shared.ErrNotFound)
		}
		return Order{}, err
	}
	return o, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	var lines []byte
	err := row.Scan(&o.ID, &o.Code, &o.CustomerName, &o.CustomerPhone, &o.Address, &o.DeliveryDate,
		&lines, &o.ShippingFee, &o.Revenue, &o.COGS, &o.Profit, &status,
		&o.Performer.ID, &o.Performer.Name, &o.CreatedAt)
	if err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return Order{}, fmt.Errorf("sales: unmarshal lines: %w", err)
	}
	o.Status = OrderStatus(status)
	return o, nil
}
