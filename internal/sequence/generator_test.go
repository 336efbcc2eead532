package sequence_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mise-erp/mise-erp/internal/sequence"
	"github.com/mise-erp/mise-erp/internal/shared"
)

func newTestGenerator(t *testing.T) *sequence.Generator {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return sequence.NewGenerator(client)
}

func TestNextFormatsAndIncrements(t *testing.T) {
	gen := newTestGenerator(t)
	ctx := context.Background()

	first, err := gen.Next(ctx, sequence.SeriesImport)
	require.NoError(t, err)
	require.Equal(t, "NK-00000001", first)

	second, err := gen.Next(ctx, sequence.SeriesImport)
	require.NoError(t, err)
	require.Equal(t, "NK-00000002", second)
}

func TestSeriesAreIndependent(t *testing.T) {
	gen := newTestGenerator(t)
	ctx := context.Background()

	_, err := gen.Next(ctx, sequence.SeriesImport)
	require.NoError(t, err)

	code, err := gen.Next(ctx, sequence.SeriesSale)
	require.NoError(t, err)
	require.Equal(t, "DH-00000001", code)
}

func TestPeekDoesNotConsume(t *testing.T) {
	gen := newTestGenerator(t)
	ctx := context.Background()

	n, err := gen.Peek(ctx, sequence.SeriesProduction)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = gen.Next(ctx, sequence.SeriesProduction)
	require.NoError(t, err)

	n, err = gen.Peek(ctx, sequence.SeriesProduction)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestNextRequiresSeries(t *testing.T) {
	gen := newTestGenerator(t)
	_, err := gen.Next(context.Background(), "")
	require.ErrorIs(t, err, shared.ErrValidation)
}
