// Package sqlite implements the storage contracts on SQLite using
// database/sql and the pure-Go modernc.org/sqlite driver. Inserts are
// multi-row INSERT OR IGNORE statements run in a single transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"layoutsync/internal/records"
	"layoutsync/internal/schema"
	"layoutsync/internal/storage"
)

// Repository is a SQLite-backed storage.Repository.
type Repository struct {
	db     *sql.DB
	cfg    Config
	logger *zap.Logger
}

// Open opens a SQLite database limited to one connection, which keeps
// ":memory:" databases shared across calls and serializes writers.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// New wraps an already opened database.
func New(db *sql.DB, cfg Config) *Repository {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, cfg: cfg, logger: logger}
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return New(db, cfg), func() { db.Close() }, nil
}

func (r *Repository) schema() string {
	if s := strings.TrimSpace(r.cfg.Schema); s != "" {
		return s
	}
	return DefaultSchema
}

// Columns implements storage.Introspector using pragma_table_info.
func (r *Repository) Columns(ctx context.Context, table string) ([]schema.LiveColumn, error) {
	if err := storage.CheckIdent(table); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT name, type, cid FROM pragma_table_info(?, ?) ORDER BY cid`, table, r.schema())
	if err != nil {
		return nil, fmt.Errorf("sqlite: columns of %s: %w", table, err)
	}
	defer rows.Close()

	var out []schema.LiveColumn
	for rows.Next() {
		var c schema.LiveColumn
		var cid int
		if err := rows.Scan(&c.Name, &c.DeclaredType, &cid); err != nil {
			return nil, fmt.Errorf("sqlite: scan columns of %s: %w", table, err)
		}
		c.Position = cid + 1
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReadRows implements storage.Reader.
func (r *Repository) ReadRows(ctx context.Context, table string, columns []string) ([]records.Record, error) {
	if err := storage.CheckIdent(append([]string{table}, columns...)...); err != nil {
		return nil, err
	}
	sel := make([]string, len(columns))
	for i, c := range columns {
		sel[i] = "CAST(" + sqlIdent(c) + " AS TEXT)"
	}
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(sel, ", "), r.fqn(table))

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: read %s: %w", table, err)
	}
	defer rows.Close()

	var raw [][]*string
	for rows.Next() {
		vals := make([]*string, len(columns))
		dst := make([]any, len(columns))
		for i := range vals {
			dst[i] = &vals[i]
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", table, err)
		}
		raw = append(raw, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: read %s: %w", table, err)
	}
	return storage.TextRecords(records.NewColumns(columns...), raw), nil
}

// Insert implements storage.Inserter. Rows that would violate a uniqueness
// constraint are ignored.
func (r *Repository) Insert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: insert: columns must not be empty")
	}
	if err := storage.CheckIdent(append([]string{table}, columns...)...); err != nil {
		return 0, err
	}
	live, err := r.Columns(ctx, table)
	if err != nil {
		return 0, err
	}
	rows = storage.BlankToNull(rows, columns, live)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	head := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES ", r.fqn(table), strings.Join(mapIdent(columns), ", "))
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	copyFn := func(ctx context.Context, cols []string, batch [][]any) (int64, error) {
		args := make([]any, 0, len(batch)*len(cols))
		tuples := make([]string, len(batch))
		for i, row := range batch {
			if len(row) != len(cols) {
				return 0, fmt.Errorf("sqlite: row length %d != columns length %d", len(row), len(cols))
			}
			tuples[i] = tuple
			args = append(args, row...)
		}
		res, err := tx.ExecContext(ctx, head+strings.Join(tuples, ", "), args...)
		if err != nil {
			return 0, fmt.Errorf("sqlite: insert: %w", err)
		}
		return res.RowsAffected()
	}

	batchSize := maxVariables / len(columns)
	if batchSize < 1 {
		batchSize = 1
	}
	feedCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	n, err := storage.LoadBatches(ctx, r.logger, columns, storage.Feed(feedCtx, rows), batchSize, copyFn)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return n, nil
}

// Exec executes an arbitrary SQL statement (typically DDL in tests and
// tooling).
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

func (r *Repository) fqn(table string) string {
	return sqlIdent(r.schema()) + "." + sqlIdent(table)
}

// sqlIdent quotes an identifier with double quotes, escaping embedded quotes.
func sqlIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = sqlIdent(c)
	}
	return out
}
