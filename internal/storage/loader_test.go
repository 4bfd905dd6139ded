package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intRows(n int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{i}
	}
	return rows
}

func TestLoadBatches_SplitsIntoBatches(t *testing.T) {
	t.Parallel()

	var batches [][][]any
	copyFn := func(_ context.Context, cols []string, b [][]any) (int64, error) {
		assert.Equal(t, []string{"co_procedimento"}, cols)
		batches = append(batches, b)
		return int64(len(b)), nil
	}

	ctx := context.Background()
	total, err := LoadBatches(ctx, nil, []string{"co_procedimento"}, Feed(ctx, intRows(7)), 3, copyFn)
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[2], 1)
	// Each batch owns its backing array.
	assert.Equal(t, 0, batches[0][0][0])
	assert.Equal(t, 3, batches[1][0][0])
	assert.Equal(t, 6, batches[2][0][0])
}

func TestLoadBatches_CountsWhatTheDatabaseReports(t *testing.T) {
	t.Parallel()

	// Half of every batch already exists and is skipped.
	copyFn := func(_ context.Context, _ []string, b [][]any) (int64, error) {
		return int64(len(b) / 2), nil
	}
	ctx := context.Background()
	total, err := LoadBatches(ctx, nil, []string{"c"}, Feed(ctx, intRows(8)), 4, copyFn)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
}

func TestLoadBatches_RejectsBadArguments(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, []string, [][]any) (int64, error) { return 0, nil }
	ctx := context.Background()

	_, err := LoadBatches(ctx, nil, nil, Feed(ctx, nil), 0, noop)
	assert.ErrorContains(t, err, "batchSize")

	_, err = LoadBatches(ctx, nil, nil, Feed(ctx, nil), 10, nil)
	assert.ErrorContains(t, err, "copyFn")
}

func TestLoadBatches_StopsOnFirstError(t *testing.T) {
	t.Parallel()

	boom := errors.New("duplicate key")
	calls := 0
	copyFn := func(_ context.Context, _ []string, b [][]any) (int64, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}
		return int64(len(b)), nil
	}

	in := make(chan []any, 6)
	for _, r := range intRows(6) {
		in <- r
	}
	close(in)

	total, err := LoadBatches(context.Background(), nil, []string{"c"}, in, 2, copyFn)
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, 2, calls)
}

func TestLoadBatches_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := LoadBatches(ctx, nil, []string{"c"}, make(chan []any), 2,
			func(context.Context, []string, [][]any) (int64, error) { return 0, nil })
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("loader ignored cancellation")
	}
}

func TestFeed_StopsWhenCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ch := Feed(ctx, intRows(100))
	<-ch
	cancel()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("feed kept the channel open")
		}
	}
}
