// Package mssql implements the storage contracts on Microsoft SQL Server
// using the go-mssqldb bulk copy API. Inserts bulk copy into a session
// temporary table (#tmp) and then move rows whose primary key is not yet
// present into the target, all in one transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"go.uber.org/zap"

	"layoutsync/internal/records"
	"layoutsync/internal/schema"
	"layoutsync/internal/storage"
	"layoutsync/internal/typemap"
)

// DefaultSchema is used when Config.Schema is empty.
const DefaultSchema = "dbo"

// Config holds MSSQL repository configuration.
type Config struct {
	DSN    string
	Schema string
	Logger *zap.Logger
}

// Repository is an MSSQL-backed storage.Repository.
type Repository struct {
	db     *sql.DB
	cfg    Config
	logger *zap.Logger
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
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

func (r *Repository) schema() string {
	if s := strings.TrimSpace(r.cfg.Schema); s != "" {
		return s
	}
	return DefaultSchema
}

const columnsSQL = `SELECT COLUMN_NAME, DATA_TYPE, ORDINAL_POSITION
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
ORDER BY ORDINAL_POSITION`

const primaryKeySQL = `SELECT k.COLUMN_NAME
FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS c
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k
  ON k.CONSTRAINT_NAME = c.CONSTRAINT_NAME AND k.TABLE_SCHEMA = c.TABLE_SCHEMA
WHERE c.CONSTRAINT_TYPE = 'PRIMARY KEY' AND c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
ORDER BY k.ORDINAL_POSITION`

// Columns implements storage.Introspector.
func (r *Repository) Columns(ctx context.Context, table string) ([]schema.LiveColumn, error) {
	if err := storage.CheckIdent(table); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, columnsSQL, r.schema(), table)
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
		sel[i] = "CAST(" + msIdent(c) + " AS NVARCHAR(4000))"
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

// Insert implements storage.Inserter.
func (r *Repository) Insert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := storage.CheckIdent(append([]string{table}, columns...)...); err != nil {
		return 0, err
	}
	live, err := r.Columns(ctx, table)
	if err != nil {
		return 0, err
	}
	keys, err := r.primaryKey(ctx, table)
	if err != nil {
		return 0, err
	}
	rows = bulkValues(storage.BlankToNull(rows, columns, live), columns, live)

	tmp := "#tmp_" + table
	fqTable := r.fqn(table)
	cols := strings.Join(mapIdent(columns), ",")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	// 1) Create temp table with the same shape as the target.
	create := fmt.Sprintf("SELECT TOP 0 %s INTO %s FROM %s", cols, msIdent(tmp), fqTable)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		rollback()
		return 0, fmt.Errorf("create temp: %w", err)
	}

	// 2) Bulk copy rows into #tmp.
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(tmp, mssql.BulkOptions{}, columns...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("prepare bulk copy: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		rollback()
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	if err := stmt.Close(); err != nil {
		rollback()
		return 0, fmt.Errorf("bulk close: %w", err)
	}

	// 3) Move rows whose key is not yet stored.
	res, err := tx.ExecContext(ctx, insertSQL(fqTable, msIdent(tmp), columns, keys))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("insert phase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE "+msIdent(tmp)); err != nil {
		rollback()
		return 0, fmt.Errorf("drop temp: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	r.logger.Debug("inserted rows", zap.String("table", table), zap.Int64("rows", n), zap.Strings("key", keys))
	return n, nil
}

func (r *Repository) primaryKey(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, primaryKeySQL, r.schema(), table)
	if err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", table, err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan primary key of %s: %w", table, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// insertSQL builds the final INSERT ... SELECT. With key columns it skips
// rows already present in the target.
func insertSQL(target, tmp string, columns, keys []string) string {
	cols := strings.Join(mapIdent(columns), ",")
	q := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s AS S", target, cols, prefixed("S", columns), tmp)
	if len(keys) == 0 {
		return q
	}
	return q + fmt.Sprintf(" WHERE NOT EXISTS (SELECT 1 FROM %s AS T WHERE %s)", target, buildJoinCondition(keys))
}

// bulkValues converts rows into the shapes go-mssqldb's bulk copy accepts:
// text for every value, with DATE columns written as yyyy-mm-dd.
func bulkValues(rows [][]any, columns []string, live []schema.LiveColumn) [][]any {
	isDate := make([]bool, len(columns))
	for i, c := range columns {
		for _, l := range live {
			if strings.EqualFold(l.Name, c) && typemap.Canonical(l.DeclaredType) == "DATE" {
				isDate[i] = true
			}
		}
	}
	out := make([][]any, len(rows))
	for i, row := range rows {
		cp := make([]any, len(row))
		for j, v := range row {
			cp[j] = storage.TextArg(v)
			if s, ok := cp[j].(string); ok && j < len(isDate) && isDate[j] {
				cp[j] = isoDate(s)
			}
		}
		out[i] = cp
	}
	return out
}

// isoDate rewrites compact yyyymmdd dates; other values pass through.
func isoDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) != 8 {
		return s
	}
	if t, err := time.Parse("20060102", s); err == nil {
		return t.Format("2006-01-02")
	}
	return s
}

func (r *Repository) fqn(table string) string {
	return msIdent(r.schema()) + "." + msIdent(table)
}

// buildJoinCondition builds the T=S equality join for the provided key columns.
func buildJoinCondition(keyColumns []string) string {
	conds := make([]string, 0, len(keyColumns))
	for _, col := range keyColumns {
		conds = append(conds, fmt.Sprintf("T.%s = S.%s", msIdent(col), msIdent(col)))
	}
	return strings.Join(conds, " AND ")
}

func prefixed(alias string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + msIdent(c)
	}
	return strings.Join(out, ",")
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// mapIdent maps a list of column names to their bracket-quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = msIdent(c)
	}
	return out
}
