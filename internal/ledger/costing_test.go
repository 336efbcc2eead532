package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/ledger/ledgertest"
	"github.com/mise-erp/mise-erp/internal/shared"
)

func applyOne(t *testing.T, store *ledgertest.Store, m ledger.Movement) ledger.Entry {
	t.Helper()
	var entry ledger.Entry
	err := store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		scope := ledger.NewScope(tx)
		if _, err := scope.ReadItem(ctx, m.ItemID, m.ItemKind); err != nil {
			return err
		}
		var err error
		entry, err = ledger.Apply(ctx, scope, m)
		return err
	})
	require.NoError(t, err)
	return entry
}

func TestWeightedAverageOnImports(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("flour", ledger.KindIngredient, "Bột mì", 0, 0)

	// First import: qty 10 for 500 total.
	applyOne(t, store, ledger.Movement{
		Type: ledger.EntryImport, ItemID: "flour", ItemKind: ledger.KindIngredient,
		QuantityChange: 10, UnitCost: 50,
	})
	snap, _ := store.Item("flour", ledger.KindIngredient)
	require.InDelta(t, 10, snap.QuantityOnHand, 1e-9)
	require.InDelta(t, 50, snap.AvgUnitCost, 1e-9)

	// Second import: qty 5 for 100 total -> round((10*50+100)/15) = 40.
	applyOne(t, store, ledger.Movement{
		Type: ledger.EntryImport, ItemID: "flour", ItemKind: ledger.KindIngredient,
		QuantityChange: 5, UnitCost: 20,
	})
	snap, _ = store.Item("flour", ledger.KindIngredient)
	require.InDelta(t, 15, snap.QuantityOnHand, 1e-9)
	require.InDelta(t, 40, snap.AvgUnitCost, 1e-9)
}

func TestOutboundLeavesAverageCostAlone(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("cake", ledger.KindProduct, "Bánh kem", 10, 20)

	entry := applyOne(t, store, ledger.Movement{
		Type: ledger.EntrySale, ItemID: "cake", ItemKind: ledger.KindProduct,
		QuantityChange: -3, UnitCost: 20,
	})
	snap, _ := store.Item("cake", ledger.KindProduct)
	require.InDelta(t, 7, snap.QuantityOnHand, 1e-9)
	require.InDelta(t, 20, snap.AvgUnitCost, 1e-9)
	require.InDelta(t, -60, entry.TotalValue, 1e-9)
}

func TestEmptyShelfResetsAverageCost(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("milk", ledger.KindIngredient, "Sữa tươi", 4, 35)

	applyOne(t, store, ledger.Movement{
		Type: ledger.EntryProductionOut, ItemID: "milk", ItemKind: ledger.KindIngredient,
		QuantityChange: -4, UnitCost: 35,
	})
	snap, _ := store.Item("milk", ledger.KindIngredient)
	require.Zero(t, snap.QuantityOnHand)
	require.Zero(t, snap.AvgUnitCost)

	// Restock is priced fresh, not against the stale basis.
	applyOne(t, store, ledger.Movement{
		Type: ledger.EntryImport, ItemID: "milk", ItemKind: ledger.KindIngredient,
		QuantityChange: 2, UnitCost: 40,
	})
	snap, _ = store.Item("milk", ledger.KindIngredient)
	require.InDelta(t, 40, snap.AvgUnitCost, 1e-9)
}

func TestProductionInRecomputesProductCost(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("butter", ledger.KindIngredient, "Bơ lạt", 2, 40)
	store.SeedItem("croissant", ledger.KindProduct, "Bánh sừng bò", 0, 0)

	err := store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		scope := ledger.NewScope(tx)
		if _, err := scope.ReadItem(ctx, "butter", ledger.KindIngredient); err != nil {
			return err
		}
		if _, err := scope.ReadItem(ctx, "croissant", ledger.KindProduct); err != nil {
			return err
		}
		if _, err := ledger.Apply(ctx, scope, ledger.Movement{
			Type: ledger.EntryProductionOut, ItemID: "butter", ItemKind: ledger.KindIngredient,
			QuantityChange: -2, UnitCost: 40,
		}); err != nil {
			return err
		}
		_, err := ledger.Apply(ctx, scope, ledger.Movement{
			Type: ledger.EntryProductionIn, ItemID: "croissant", ItemKind: ledger.KindProduct,
			QuantityChange: 1, UnitCost: 80,
		})
		return err
	})
	require.NoError(t, err)

	product, _ := store.Item("croissant", ledger.KindProduct)
	require.InDelta(t, 1, product.QuantityOnHand, 1e-9)
	require.InDelta(t, 80, product.AvgUnitCost, 1e-9)
	butter, _ := store.Item("butter", ledger.KindIngredient)
	require.Zero(t, butter.QuantityOnHand)
	require.Zero(t, butter.AvgUnitCost)
}

func TestForcedValueChangeRollsBackExactly(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("sugar", ledger.KindIngredient, "Đường", 20, 30)

	// Inbound qty 10 for 1000 -> avg round((600+1000)/30) = 53.
	applyOne(t, store, ledger.Movement{
		Type: ledger.EntryImport, ItemID: "sugar", ItemKind: ledger.KindIngredient,
		QuantityChange: 10, UnitCost: 100,
	})
	snap, _ := store.Item("sugar", ledger.KindIngredient)
	require.InDelta(t, 53, snap.AvgUnitCost, 1e-9)

	// Forced rollback of the same value restores the pre-import average.
	forced := -1000.0
	applyOne(t, store, ledger.Movement{
		Type: ledger.EntryAdjustment, ItemID: "sugar", ItemKind: ledger.KindIngredient,
		QuantityChange: -10, UnitCost: 100, ValueChange: &forced,
	})
	snap, _ = store.Item("sugar", ledger.KindIngredient)
	require.InDelta(t, 20, snap.QuantityOnHand, 1e-9)
	require.InDelta(t, 30, snap.AvgUnitCost, 1e-9)
}

func TestAverageCostNeverNegative(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("salt", ledger.KindIngredient, "Muối", 5, 10)

	forced := -400.0
	applyOne(t, store, ledger.Movement{
		Type: ledger.EntryAdjustment, ItemID: "salt", ItemKind: ledger.KindIngredient,
		QuantityChange: -1, UnitCost: 0, ValueChange: &forced,
	})
	snap, _ := store.Item("salt", ledger.KindIngredient)
	require.GreaterOrEqual(t, snap.AvgUnitCost, 0.0)
}

func TestApplyRequiresPriorRead(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("flour", ledger.KindIngredient, "Bột mì", 0, 0)

	err := store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		scope := ledger.NewScope(tx)
		_, err := ledger.Apply(ctx, scope, ledger.Movement{
			Type: ledger.EntryImport, ItemID: "flour", ItemKind: ledger.KindIngredient,
			QuantityChange: 1, UnitCost: 10,
		})
		return err
	})
	require.ErrorIs(t, err, ledger.ErrItemNotRead)
}

func TestApplyRejectsUnknownType(t *testing.T) {
	store := ledgertest.NewStore()
	store.SeedItem("flour", ledger.KindIngredient, "Bột mì", 0, 0)

	err := store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		scope := ledger.NewScope(tx)
		if _, err := scope.ReadItem(ctx, "flour", ledger.KindIngredient); err != nil {
			return err
		}
		_, err := ledger.Apply(ctx, scope, ledger.Movement{
			Type: "waste", ItemID: "flour", ItemKind: ledger.KindIngredient, QuantityChange: -1,
		})
		return err
	})
	require.ErrorIs(t, err, ledger.ErrInvalidMovement)
}

func TestMissingItemAbortsBeforeWrites(t *testing.T) {
	store := ledgertest.NewStore()
	err := store.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		scope := ledger.NewScope(tx)
		_, err := scope.ReadItem(ctx, "ghost", ledger.KindIngredient)
		return err
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, store.Entries())
}
