package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/shared"
)

// Repository persists catalog data in the stock_items table. The engine owns
// quantity_on_hand and avg_unit_cost; this repository only ever writes the
// descriptive columns.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, kind, code, name, unit, min_stock, sale_price, quantity_on_hand, avg_unit_cost, updated_at`

// Insert creates a stock item at zero quantity and cost.
func (r *Repository) Insert(ctx context.Context, item Item) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO stock_items
(id, kind, code, name, unit, min_stock, sale_price, quantity_on_hand, avg_unit_cost, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, NOW())`,
		item.ID, string(item.Kind), item.Code, item.Name, item.Unit, item.MinStock, item.SalePrice)
	return err
}

// Update writes descriptive fields.
func (r *Repository) Update(ctx context.Context, id string, kind ledger.ItemKind, input UpdateInput) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stock_items SET name = $3, unit = $4, min_stock = $5, sale_price = $6, updated_at = NOW()
WHERE id = $1 AND kind = $2`,
		id, string(kind), input.Name, input.Unit, input.MinStock, input.SalePrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("catalog: item %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// Get reads one item.
func (r *Repository) Get(ctx context.Context, id string, kind ledger.ItemKind) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE id = $1 AND kind = $2`, id, string(kind))
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, fmt.Errorf("catalog: item %s: %w", id, shared.ErrNotFound)
		}
		return Item{}, err
	}
	return item, nil
}

// List reads all items of one kind.
func (r *Repository) List(ctx context.Context, kind ledger.ItemKind) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE kind = $1`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Delete removes one item row.
func (r *Repository) Delete(ctx context.Context, id string, kind ledger.ItemKind) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM stock_items WHERE id = $1 AND kind = $2`, id, string(kind))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("catalog: item %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	var kind string
	err := row.Scan(&item.ID, &kind, &item.Code, &item.Name, &item.Unit,
		&item.MinStock, &item.SalePrice, &item.Quantity, &item.AvgCost, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	item.Kind = ledger.ItemKind(kind)
	return item, nil
}
