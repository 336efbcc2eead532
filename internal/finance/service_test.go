package finance_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mise-erp/mise-erp/internal/finance"
	"github.com/mise-erp/mise-erp/internal/shared"
)

type memoryRepo struct {
	txs []finance.Transaction
}

func (m *memoryRepo) Insert(ctx context.Context, tx finance.Transaction) error {
	m.txs = append(m.txs, tx)
	return nil
}

func (m *memoryRepo) List(ctx context.Context, filter finance.Filter) ([]finance.Transaction, error) {
	var out []finance.Transaction
	for _, tx := range m.txs {
		if filter.DocID != "" && tx.RelatedDocID != filter.DocID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (m *memoryRepo) CancelByDoc(ctx context.Context, docID string) (int, error) {
	n := 0
	for i := range m.txs {
		if m.txs[i].RelatedDocID == docID && m.txs[i].Status == finance.StatusActive {
			m.txs[i].Status = finance.StatusCanceled
			n++
		}
	}
	return n, nil
}

func TestRecordStoresActiveTransaction(t *testing.T) {
	repo := &memoryRepo{}
	svc := finance.NewService(repo, nil)

	tx, err := svc.Record(context.Background(), finance.RecordInput{
		Type:         finance.TypeExpense,
		Category:     "purchase",
		Amount:       decimal.NewFromInt(1500),
		RelatedDocID: "doc-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, tx.ID)
	require.Equal(t, finance.StatusActive, tx.Status)
	require.Len(t, repo.txs, 1)
}

func TestRecordRejectsBadInput(t *testing.T) {
	svc := finance.NewService(&memoryRepo{}, nil)
	ctx := context.Background()

	_, err := svc.Record(ctx, finance.RecordInput{Type: "transfer", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Record(ctx, finance.RecordInput{Type: finance.TypeIncome, Amount: decimal.Zero})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCancelLinkedToIsIdempotent(t *testing.T) {
	repo := &memoryRepo{}
	svc := finance.NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Record(ctx, finance.RecordInput{
		Type: finance.TypeExpense, Category: "purchase",
		Amount: decimal.NewFromInt(500), RelatedDocID: "doc-1",
	})
	require.NoError(t, err)
	_, err = svc.Record(ctx, finance.RecordInput{
		Type: finance.TypeExpense, Category: "shipping",
		Amount: decimal.NewFromInt(50), RelatedDocID: "doc-1",
	})
	require.NoError(t, err)

	n, err := svc.CancelLinkedTo(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = svc.CancelLinkedTo(ctx, "doc-1")
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = svc.CancelLinkedTo(ctx, "doc-without-rows")
	require.NoError(t, err)
	require.Zero(t, n)
}
