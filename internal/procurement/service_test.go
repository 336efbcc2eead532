package procurement_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mise-erp/mise-erp/internal/finance"
	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/ledger/ledgertest"
	"github.com/mise-erp/mise-erp/internal/procurement"
	"github.com/mise-erp/mise-erp/internal/shared"
)

type memoryRepo struct {
	store    *ledgertest.Store
	receipts map[string]procurement.Receipt
}

func newMemoryRepo(store *ledgertest.Store) *memoryRepo {
	return &memoryRepo{store: store, receipts: make(map[string]procurement.Receipt)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, procurement.TxRepository) error) error {
	backup := make(map[string]procurement.Receipt, len(m.receipts))
	for k, v := range m.receipts {
		backup[k] = v
	}
	err := m.store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return fn(ctx, &memoryTx{Tx: tx, repo: m})
	})
	if err != nil {
		m.receipts = backup
	}
	return err
}

func (m *memoryRepo) GetReceipt(ctx context.Context, id string) (procurement.Receipt, error) {
	if rec, ok := m.receipts[id]; ok {
		return rec, nil
	}
	return procurement.Receipt{}, shared.ErrNotFound
}

func (m *memoryRepo) ListReceipts(ctx context.Context, limit int) ([]procurement.Receipt, error) {
	var out []procurement.Receipt
	for _, rec := range m.receipts {
		out = append(out, rec)
	}
	return out, nil
}

type memoryTx struct {
	ledger.Tx
	repo *memoryRepo
}

func (t *memoryTx) InsertReceipt(ctx context.Context, r procurement.Receipt) error {
	t.repo.receipts[r.ID] = r
	return nil
}

func (t *memoryTx) GetReceipt(ctx context.Context, id string) (procurement.Receipt, error) {
	return t.repo.GetReceipt(ctx, id)
}

func (t *memoryTx) MarkReceiptCanceled(ctx context.Context, id string) error {
	rec, ok := t.repo.receipts[id]
	if !ok || rec.Status == procurement.StatusCanceled {
		return shared.ErrAlreadyCanceled
	}
	rec.Status = procurement.StatusCanceled
	t.repo.receipts[id] = rec
	return nil
}

type stubCodes struct {
	n int
}

func (s *stubCodes) Next(ctx context.Context, series string) (string, error) {
	s.n++
	return fmt.Sprintf("%s-%08d", series, s.n), nil
}

type stubFinance struct {
	recorded []finance.RecordInput
}

func (s *stubFinance) Record(ctx context.Context, input finance.RecordInput) (finance.Transaction, error) {
	s.recorded = append(s.recorded, input)
	return finance.Transaction{ID: "tx-1"}, nil
}

type stubCleanup struct {
	docIDs []string
	fail   bool
}

func (s *stubCleanup) EnqueueFinanceCancel(ctx context.Context, docID string) error {
	if s.fail {
		return errors.New("queue down")
	}
	s.docIDs = append(s.docIDs, docID)
	return nil
}

type fixture struct {
	store   *ledgertest.Store
	repo    *memoryRepo
	codes   *stubCodes
	fin     *stubFinance
	cleanup *stubCleanup
	svc     *procurement.Service
}

func newFixture() *fixture {
	store := ledgertest.NewStore()
	f := &fixture{
		store:   store,
		repo:    newMemoryRepo(store),
		codes:   &stubCodes{},
		fin:     &stubFinance{},
		cleanup: &stubCleanup{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = procurement.NewService(logger, f.repo, f.codes, f.fin, f.cleanup, nil)
	return f
}

func TestCreateImportReceiptPostsEntries(t *testing.T) {
	f := newFixture()
	f.store.SeedItem("flour", ledger.KindIngredient, "Bột mì", 10, 50)
	f.store.SeedItem("sugar", ledger.KindIngredient, "Đường", 0, 0)

	receipt, err := f.svc.CreateImportReceipt(context.Background(), procurement.CreateInput{
		SupplierName: "Chợ Bến Thành",
		Date:         "2026-03-15",
		Lines: []procurement.LineInput{
			{IngredientID: "flour", Quantity: 5, LineValue: 100},
			{IngredientID: "sugar", Quantity: 8, LineValue: 240},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "NK-00000001", receipt.Code)
	require.InDelta(t, 340, receipt.TotalValue, 1e-9)
	require.Equal(t, "Bột mì", receipt.Lines[0].IngredientName)

	flour, _ := f.store.Item("flour", ledger.KindIngredient)
	require.InDelta(t, 15, flour.QuantityOnHand, 1e-9)
	require.InDelta(t, 40, flour.AvgUnitCost, 1e-9)
	sugar, _ := f.store.Item("sugar", ledger.KindIngredient)
	require.InDelta(t, 8, sugar.QuantityOnHand, 1e-9)
	require.InDelta(t, 30, sugar.AvgUnitCost, 1e-9)

	entries := f.store.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.Equal(t, ledger.EntryImport, e.Type)
		require.Equal(t, receipt.ID, e.RelatedDocID)
		require.Equal(t, receipt.Code, e.RelatedDocCode)
	}

	require.Len(t, f.fin.recorded, 1)
	require.Equal(t, finance.TypeExpense, f.fin.recorded[0].Type)
	require.Equal(t, receipt.ID, f.fin.recorded[0].RelatedDocID)
}

func TestCreateImportValidatesBeforeAnySideEffect(t *testing.T) {
	f := newFixture()
	f.store.SeedItem("flour", ledger.KindIngredient, "Bột mì", 0, 0)
	ctx := context.Background()

	cases := []procurement.CreateInput{
		{Date: "2026-03-15", Lines: []procurement.LineInput{{IngredientID: "flour", Quantity: 1, LineValue: 10}}},
		{SupplierName: "X", Date: "2026-03-15"},
		{SupplierName: "X", Date: "2026-03-15", Lines: []procurement.LineInput{{IngredientID: "flour", Quantity: 0, LineValue: 10}}},
		{SupplierName: "X", Date: "15/03/2026", Lines: []procurement.LineInput{{IngredientID: "flour", Quantity: 1, LineValue: 10}}},
	}
	for _, input := range cases {
		_, err := f.svc.CreateImportReceipt(ctx, input)
		require.ErrorIs(t, err, shared.ErrValidation)
	}
	require.Empty(t, f.store.Entries())
	require.Zero(t, f.codes.n)
}

func TestCreateImportUnknownIngredientAborts(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateImportReceipt(context.Background(), procurement.CreateInput{
		SupplierName: "X",
		Date:         "2026-03-15",
		Lines:        []procurement.LineInput{{IngredientID: "ghost", Quantity: 1, LineValue: 10}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, f.store.Entries())
	require.Empty(t, f.repo.receipts)
}

func TestCancelImportRoundTrip(t *testing.T) {
	f := newFixture()
	f.store.SeedItem("sugar", ledger.KindIngredient, "Đường", 20, 30)
	ctx := context.Background()

	receipt, err := f.svc.CreateImportReceipt(ctx, procurement.CreateInput{
		SupplierName: "X",
		Date:         "2026-03-15",
		Lines:        []procurement.LineInput{{IngredientID: "sugar", Quantity: 10, LineValue: 1000}},
	})
	require.NoError(t, err)

	snap, _ := f.store.Item("sugar", ledger.KindIngredient)
	require.InDelta(t, 53, snap.AvgUnitCost, 1e-9)

	canceled, err := f.svc.CancelImportReceipt(ctx, receipt.ID, shared.Actor{ID: "u1"})
	require.NoError(t, err)
	require.Equal(t, procurement.StatusCanceled, canceled.Status)

	// The forced value rollback restores the exact pre-import state.
	snap, _ = f.store.Item("sugar", ledger.KindIngredient)
	require.InDelta(t, 20, snap.QuantityOnHand, 1e-9)
	require.InDelta(t, 30, snap.AvgUnitCost, 1e-9)

	entries := f.store.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, ledger.StatusCanceled, entries[0].Status)
	require.Equal(t, entries[1].ID, entries[0].ReversalEntryID)
	require.Equal(t, ledger.StatusActive, entries[1].Status)
	require.Equal(t, ledger.EntryAdjustment, entries[1].Type)

	require.Equal(t, []string{receipt.ID}, f.cleanup.docIDs)
}

func TestCancelImportTwiceRejected(t *testing.T) {
	f := newFixture()
	f.store.SeedItem("sugar", ledger.KindIngredient, "Đường", 0, 0)
	ctx := context.Background()

	receipt, err := f.svc.CreateImportReceipt(ctx, procurement.CreateInput{
		SupplierName: "X",
		Date:         "2026-03-15",
		Lines:        []procurement.LineInput{{IngredientID: "sugar", Quantity: 10, LineValue: 1000}},
	})
	require.NoError(t, err)

	_, err = f.svc.CancelImportReceipt(ctx, receipt.ID, shared.Actor{})
	require.NoError(t, err)
	entriesBefore := len(f.store.Entries())

	_, err = f.svc.CancelImportReceipt(ctx, receipt.ID, shared.Actor{})
	require.ErrorIs(t, err, shared.ErrAlreadyCanceled)
	require.Len(t, f.store.Entries(), entriesBefore)

	snap, _ := f.store.Item("sugar", ledger.KindIngredient)
	require.Zero(t, snap.QuantityOnHand)
}

func TestCancelImportCleanupFailureKeepsReversal(t *testing.T) {
	f := newFixture()
	f.cleanup.fail = true
	f.store.SeedItem("sugar", ledger.KindIngredient, "Đường", 0, 0)
	ctx := context.Background()

	receipt, err := f.svc.CreateImportReceipt(ctx, procurement.CreateInput{
		SupplierName: "X",
		Date:         "2026-03-15",
		Lines:        []procurement.LineInput{{IngredientID: "sugar", Quantity: 10, LineValue: 1000}},
	})
	require.NoError(t, err)

	_, err = f.svc.CancelImportReceipt(ctx, receipt.ID, shared.Actor{})
	require.ErrorIs(t, err, shared.ErrPartialReversal)

	// Inventory reversal stands even though the finance sweep is pending.
	snap, _ := f.store.Item("sugar", ledger.KindIngredient)
	require.Zero(t, snap.QuantityOnHand)
	require.Equal(t, procurement.StatusCanceled, f.repo.receipts[receipt.ID].Status)
}
