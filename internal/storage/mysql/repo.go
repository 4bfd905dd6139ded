// Package mysql implements the storage contracts on MySQL/MariaDB using
// database/sql and go-sql-driver/mysql. Inserts are multi-row INSERT IGNORE
// statements run in a single transaction.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"layoutsync/internal/records"
	"layoutsync/internal/schema"
	"layoutsync/internal/storage"
)

// maxRowsPerStatement bounds one multi-row INSERT; the placeholder limit
// (65535) caps it further for wide tables.
const (
	maxRowsPerStatement = 1000
	maxPlaceholders     = 65535
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN string
	// Schema is the database holding the tables; empty means the DSN's.
	Schema string
	Logger *zap.Logger
}

// Repository is a MySQL-backed storage.Repository.
type Repository struct {
	db     *sql.DB
	cfg    Config
	logger *zap.Logger
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := mysqldrv.ParseDSN(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, cfg: cfg, logger: logger}, func() { _ = db.Close() }, nil
}

const columnsSQL = `SELECT COLUMN_NAME, DATA_TYPE, ORDINAL_POSITION
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

// Columns implements storage.Introspector.
func (r *Repository) Columns(ctx context.Context, table string) ([]schema.LiveColumn, error) {
	if err := storage.CheckIdent(table); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, columnsSQL, r.cfg.Schema, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer rows.Close()

	var out []schema.LiveColumn
	for rows.Next() {
		var c schema.LiveColumn
		if err := rows.Scan(&c.Name, &c.DeclaredType, &c.Position); err != nil {
			return nil, fmt.Errorf("scan columns of %s: %w", table, err)
		}
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
		sel[i] = "CAST(" + myIdent(c) + " AS CHAR)"
	}
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(sel, ", "), r.fqn(table))

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
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
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		raw = append(raw, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return storage.TextRecords(records.NewColumns(columns...), raw), nil
}

// Insert implements storage.Inserter with INSERT IGNORE, so rows whose key
// already exists are skipped.
func (r *Repository) Insert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("insert: columns must not be empty")
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
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	head := fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES ", r.fqn(table), strings.Join(mapIdent(columns), ", "))
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	copyFn := func(ctx context.Context, cols []string, batch [][]any) (int64, error) {
		args := make([]any, 0, len(batch)*len(cols))
		tuples := make([]string, len(batch))
		for i, row := range batch {
			tuples[i] = tuple
			args = append(args, row...)
		}
		res, err := tx.ExecContext(ctx, head+strings.Join(tuples, ", "), args...)
		if err != nil {
			return 0, fmt.Errorf("insert: %w", err)
		}
		return res.RowsAffected()
	}

	feedCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	n, err := storage.LoadBatches(ctx, r.logger, columns, storage.Feed(feedCtx, rows), batchSize(len(columns)), copyFn)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func batchSize(ncols int) int {
	n := maxPlaceholders / ncols
	if n > maxRowsPerStatement {
		n = maxRowsPerStatement
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (r *Repository) fqn(table string) string {
	if s := strings.TrimSpace(r.cfg.Schema); s != "" {
		return myIdent(s) + "." + myIdent(table)
	}
	return myIdent(table)
}

// myIdent quotes an identifier with backticks, doubling embedded backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = myIdent(c)
	}
	return out
}
