package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/ledger/ledgertest"
)

func TestScopeRejectsReadAfterWrite(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("a", ledger.KindIngredient, "A", 1, 10)
	store.SeedItem("b", ledger.KindIngredient, "B", 1, 10)

	err := store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		scope := ledger.NewScope(tx)
		if _, err := scope.ReadItem(ctx, "a", ledger.KindIngredient); err != nil {
			return err
		}
		if err := scope.WriteSnapshot(ctx, "a", ledger.KindIngredient, 2, 10); err != nil {
			return err
		}
		_, err := scope.ReadItem(ctx, "b", ledger.KindIngredient)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrReadAfterWrite)
}

func TestScopeRejectsReadAfterBeginWrites(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("a", ledger.KindIngredient, "A", 1, 10)

	err := store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		scope := ledger.NewScope(tx)
		scope.BeginWrites()
		_, err := scope.ReadItem(ctx, "a", ledger.KindIngredient)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrReadAfterWrite)
}

func TestScopeDeduplicatesReads(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("a", ledger.KindIngredient, "A", 5, 10)

	err := store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		scope := ledger.NewScope(tx)
		first, err := scope.ReadItem(ctx, "a", ledger.KindIngredient)
		if err != nil {
			return err
		}
		// A second read of the same key must come from the cache, so a
		// concurrent-looking mutation of the backing store is invisible.
		store.SeedItem("a", ledger.KindIngredient, "A", 99, 10)
		second, err := scope.ReadItem(ctx, "a", ledger.KindIngredient)
		if err != nil {
			return err
		}
		require.Equal(t, first.QuantityOnHand, second.QuantityOnHand)
		return nil
	})
	require.NoError(t, err)
}

func TestScopeCacheTracksWrites(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("a", ledger.KindIngredient, "A", 0, 0)

	// Two movements against the same item in one transaction compound.
	err := store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		scope := ledger.NewScope(tx)
		if _, err := scope.ReadItem(ctx, "a", ledger.KindIngredient); err != nil {
			return err
		}
		if _, err := ledger.Apply(ctx, scope, ledger.Movement{
			Type: ledger.EntryImport, ItemID: "a", ItemKind: ledger.KindIngredient,
			QuantityChange: 10, UnitCost: 50,
		}); err != nil {
			return err
		}
		_, err := ledger.Apply(ctx, scope, ledger.Movement{
			Type: ledger.EntryImport, ItemID: "a", ItemKind: ledger.KindIngredient,
			QuantityChange: 5, UnitCost: 20,
		})
		return err
	})
	require.NoError(t, err)

	snap, _ := store.Item("a", ledger.KindIngredient)
	require.InDelta(t, 15, snap.QuantityOnHand, 1e-9)
	require.InDelta(t, 40, snap.AvgUnitCost, 1e-9)
}
