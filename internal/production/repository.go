package production

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
	InsertRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	MarkRunCanceled(ctx context.Context, id string) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Repository persists production runs in PostgreSQL with JSONB inputs.
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

// GetRun reads one run by id or code.
func (r *Repository) GetRun(ctx context.Context, id string) (Run, error) {
	return getRun(ctx, r.pool, id)
}

// ListRuns returns runs newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM production_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type txRepo struct {
	ledger.Tx
	tx pgx.Tx
}

const runColumns = `id, code, product_id, product_name, run_date, actual_yield, inputs, total_cost, cost_per_unit, status, performer_id, performer_name, created_at`

func (t *txRepo) InsertRun(ctx context.Context, run Run) error {
	inputs, err := json.Marshal(run.Inputs)
	if err != nil {
		return fmt.Errorf("production: marshal inputs: %w", err)
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO production_runs
(id, code, product_id, product_name, run_date, actual_yield, inputs, total_cost, cost_per_unit, status, performer_id, performer_name, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())`,
		run.ID, run.Code, run.ProductID, run.ProductName, run.Date, run.ActualYield, inputs,
		run.TotalCost, run.CostPerUnit, string(run.Status), run.Performer.ID, run.Performer.Name)
	return err
}

func (t *txRepo) GetRun(ctx context.Context, id string) (Run, error) {
	return getRun(ctx, t.tx, id)
}

func (t *txRepo) MarkRunCanceled(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE production_runs SET status = 'canceled' WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("production: run %s: %w", id, shared.ErrAlreadyCanceled)
	}
	return nil
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getRun(ctx context.Context, q queryer, id string) (Run, error) {
	row := q.QueryRow(ctx, `SELECT `+runColumns+` FROM production_runs WHERE id = $1 OR code = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, fmt.Errorf("production: run %s: %w", id, shared.ErrNotFound)
		}
		return Run{}, err
	}
	return run, nil
}

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	var status string
	var inputs []byte
	err := row.Scan(&run.ID, &run.Code, &run.ProductID, &run.ProductName, &run.Date,
		&run.ActualYield, &inputs, &run.TotalCost, &run.CostPerUnit, &status,
		&run.Performer.ID, &run.Performer.Name, &run.CreatedAt)
	if err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal(inputs, &run.Inputs); err != nil {
		return Run{}, fmt.Errorf("production: unmarshal inputs: %w", err)
	}
	run.Status = RunStatus(status)
	return run, nil
}
