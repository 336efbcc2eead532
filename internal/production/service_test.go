package production_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/ledger/ledgertest"
	"github.com/mise-erp/mise-erp/internal/production"
	"github.com/mise-erp/mise-erp/internal/shared"
)

type memoryRepo struct {
	store *ledgertest.Store
	runs  map[string]production.Run
}

func newMemoryRepo(store *ledgertest.Store) *memoryRepo {
	return &memoryRepo{store: store, runs: make(map[string]production.Run)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, production.TxRepository) error) error {
	backup := make(map[string]production.Run, len(m.runs))
	for k, v := range m.runs {
		backup[k] = v
	}
	err := m.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return fn(ctx, &memoryTx{Tx: tx, repo: m})
	})
	if err != nil {
		m.runs = backup
	}
	return err
}

func (m *memoryRepo) GetRun(ctx context.Context, id string) (production.Run, error) {
	if run, ok := m.runs[id]; ok {
		return run, nil
	}
	return production.Run{}, shared.ErrNotFound
}

func (m *memoryRepo) ListRuns(ctx context.Context, limit int) ([]production.Run, error) {
	var out []production.Run
	for _, run := range m.runs {
		out = append(out, run)
	}
	return out, nil
}

type memoryTx struct {
	ledger.Tx
	repo *memoryRepo
}

func (t *memoryTx) InsertRun(ctx context.Context, run production.Run) error {
	t.repo.runs[run.ID] = run
	return nil
}

func (t *memoryTx) GetRun(ctx context.Context, id string) (production.Run, error) {
	return t.repo.GetRun(ctx, id)
}

func (t *memoryTx) MarkRunCanceled(ctx context.Context, id string) error {
	run, ok := t.repo.runs[id]
	if !ok || run.Status == production.StatusCanceled {
		return shared.ErrAlreadyCanceled
	}
	run.Status = production.StatusCanceled
	t.repo.runs[id] = run
	return nil
}

type stubCodes struct{ n int }

func (s *stubCodes) Next(ctx context.Context, series string) (string, error) {
	s.n++
	return fmt.Sprintf("%s-%08d", series, s.n), nil
}

type stubCleanup struct{ docIDs []string }

func (s *stubCleanup) EnqueueFinanceCancel(ctx context.Context, docID string) error {
	s.docIDs = append(s.docIDs, docID)
	return nil
}

func newService(store *ledgertest.Store) (*production.Service, *memoryRepo) {
	repo := newMemoryRepo(store)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return production.NewService(logger, repo, &stubCodes{}, &stubCleanup{}, nil), repo
}

func TestCreateRunDerivesProductCost(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("butter", ledger.KindIngredient, "Bơ lạt", 2, 40)
	store.SeedItem("croissant", ledger.KindProduct, "Bánh sừng bò", 0, 0)
	svc, _ := newService(store)

	run, err := svc.CreateRun(context.Background(), production.CreateInput{
		ProductID:   "croissant",
		Date:        "2026-03-18",
		ActualYield: 1,
		Inputs:      []production.InputLine{{IngredientID: "butter", TheoreticalQty: 2, ActualUsed: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, "SX-00000001", run.Code)
	require.InDelta(t, 80, run.TotalCost, 1e-9)
	require.InDelta(t, 80, run.CostPerUnit, 1e-9)

	butter, _ := store.Item("butter", ledger.KindIngredient)
	require.Zero(t, butter.QuantityOnHand)
	require.Zero(t, butter.AvgUnitCost)
	croissant, _ := store.Item("croissant", ledger.KindProduct)
	require.InDelta(t, 1, croissant.QuantityOnHand, 1e-9)
	require.InDelta(t, 80, croissant.AvgUnitCost, 1e-9)

	entries := store.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, ledger.EntryProductionOut, entries[0].Type)
	require.Equal(t, ledger.EntryProductionIn, entries[1].Type)
}

func TestCreateRunRejectsOverdraw(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("butter", ledger.KindIngredient, "Bơ lạt", 1, 40)
	store.SeedItem("croissant", ledger.KindProduct, "Bánh sừng bò", 0, 0)
	svc, repo := newService(store)

	_, err := svc.CreateRun(context.Background(), production.CreateInput{
		ProductID:   "croissant",
		Date:        "2026-03-18",
		ActualYield: 1,
		Inputs:      []production.InputLine{{IngredientID: "butter", TheoreticalQty: 2, ActualUsed: 2}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Empty(t, store.Entries())
	require.Empty(t, repo.runs)

	butter, _ := store.Item("butter", ledger.KindIngredient)
	require.InDelta(t, 1, butter.QuantityOnHand, 1e-9)
}

func TestCreateRunValidation(t *testing.T) {
	svc, _ := newService(ledgertest.NewStore())
	ctx := context.Background()

	cases := []production.CreateInput{
		{Date: "2026-03-18", ActualYield: 1, Inputs: []production.InputLine{{IngredientID: "x", ActualUsed: 1}}},
		{ProductID: "p", Date: "2026-03-18", ActualYield: 0, Inputs: []production.InputLine{{IngredientID: "x", ActualUsed: 1}}},
		{ProductID: "p", Date: "2026-03-18", ActualYield: 1},
		{ProductID: "p", Date: "next week", ActualYield: 1, Inputs: []production.InputLine{{IngredientID: "x", ActualUsed: 1}}},
	}
	for _, input := range cases {
		_, err := svc.CreateRun(ctx, input)
		require.ErrorIs(t, err, shared.ErrValidation)
	}
}

func TestCreateRunSkipsUnusedInputs(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("butter", ledger.KindIngredient, "Bơ lạt", 5, 40)
	store.SeedItem("salt", ledger.KindIngredient, "Muối", 5, 10)
	store.SeedItem("croissant", ledger.KindProduct, "Bánh sừng bò", 0, 0)
	svc, _ := newService(store)

	_, err := svc.CreateRun(context.Background(), production.CreateInput{
		ProductID:   "croissant",
		Date:        "2026-03-18",
		ActualYield: 2,
		Inputs: []production.InputLine{
			{IngredientID: "butter", TheoreticalQty: 2, ActualUsed: 2},
			{IngredientID: "salt", TheoreticalQty: 1, ActualUsed: 0},
		},
	})
	require.NoError(t, err)

	salt, _ := store.Item("salt", ledger.KindIngredient)
	require.InDelta(t, 5, salt.QuantityOnHand, 1e-9)
	// Two entries: butter out, croissant in. Nothing for the unused salt.
	require.Len(t, store.Entries(), 2)
}

func TestCancelRunRestoresBothSides(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("butter", ledger.KindIngredient, "Bơ lạt", 5, 40)
	store.SeedItem("croissant", ledger.KindProduct, "Bánh sừng bò", 0, 0)
	svc, repo := newService(store)
	ctx := context.Background()

	run, err := svc.CreateRun(ctx, production.CreateInput{
		ProductID:   "croissant",
		Date:        "2026-03-18",
		ActualYield: 1,
		Inputs:      []production.InputLine{{IngredientID: "butter", TheoreticalQty: 2, ActualUsed: 2}},
	})
	require.NoError(t, err)

	canceled, err := svc.CancelRun(ctx, run.ID, shared.Actor{})
	require.NoError(t, err)
	require.Equal(t, production.StatusCanceled, canceled.Status)

	butter, _ := store.Item("butter", ledger.KindIngredient)
	require.InDelta(t, 5, butter.QuantityOnHand, 1e-9)
	require.InDelta(t, 40, butter.AvgUnitCost, 1e-9)

	// The emptied product shelf resets its cost basis.
	croissant, _ := store.Item("croissant", ledger.KindProduct)
	require.Zero(t, croissant.QuantityOnHand)
	require.Zero(t, croissant.AvgUnitCost)

	for _, e := range store.Entries() {
		if e.Type == ledger.EntryProductionIn || e.Type == ledger.EntryProductionOut {
			require.Equal(t, ledger.StatusCanceled, e.Status)
			require.NotEmpty(t, e.ReversalEntryID)
		}
	}
	require.Equal(t, production.StatusCanceled, repo.runs[run.ID].Status)
}

func TestCancelRunTwiceRejected(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("butter", ledger.KindIngredient, "Bơ lạt", 5, 40)
	store.SeedItem("croissant", ledger.KindProduct, "Bánh sừng bò", 0, 0)
	svc, _ := newService(store)
	ctx := context.Background()

	run, err := svc.CreateRun(ctx, production.CreateInput{
		ProductID:   "croissant",
		Date:        "2026-03-18",
		ActualYield: 1,
		Inputs:      []production.InputLine{{IngredientID: "butter", TheoreticalQty: 2, ActualUsed: 2}},
	})
	require.NoError(t, err)

	_, err = svc.CancelRun(ctx, run.ID, shared.Actor{})
	require.NoError(t, err)
	entriesBefore := len(store.Entries())

	_, err = svc.CancelRun(ctx, run.ID, shared.Actor{})
	require.ErrorIs(t, err, shared.ErrAlreadyCanceled)
	require.Len(t, store.Entries(), entriesBefore)
}
