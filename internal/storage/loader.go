// This file implements a generic batched loader that drains rows from a
// channel and hands them to a backend's bulk-insert function (CopyFn) one
// batch at a time. Backends without a native bulk path (MySQL, SQLite) use it
// to turn a large insert into bounded multi-row statements inside a single
// transaction.
//
// Logging: every successful flush emits a debug line with running totals and
// instantaneous rows/sec since the previous flush.

package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CopyFn inserts one batch of rows (aligned to columns) and returns the number
// of rows the database reports as inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// Feed streams rows into a channel closed after the last row or when ctx is
// done.
func Feed(ctx context.Context, rows [][]any) <-chan []any {
	ch := make(chan []any)
	go func() {
		defer close(ch)
		for _, r := range rows {
			select {
			case ch <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn for each non-empty batch. It returns the sum of copyFn's counts
// and the first error. On cancellation it returns (total, ctx.Err()).
func LoadBatches(
	ctx context.Context,
	logger *zap.Logger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		total       int64
		batches     int64
		batch       = make([][]any, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n

		// Fresh slice: copyFn may retain the batch until its transaction ends.
		batch = make([][]any, 0, batchSize)

		if err != nil {
			logger.Warn("batch insert failed", zap.Int64("inserted", n), zap.Int64("total", total), zap.Error(err))
			return err
		}

		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(total-lastTotal) / sinceLast.Seconds()
		}
		logger.Debug("batch flushed",
			zap.Int64("batch", batches),
			zap.Float64("rps", rps),
			zap.Int64("inserted", n),
			zap.Int64("total_inserted", total),
			zap.Duration("elapsed", now.Sub(start).Truncate(time.Millisecond)),
		)
		lastFlushTS = now
		lastTotal = total
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
