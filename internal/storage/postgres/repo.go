// Package postgres implements the storage contracts on Postgres using pgx v5.
// Inserts COPY into a session temporary table and then move rows into the
// target with INSERT ... ON CONFLICT DO NOTHING, all in one transaction.
package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"layoutsync/internal/records"
	"layoutsync/internal/schema"
	"layoutsync/internal/storage"
)

// DefaultSchema is used when Config.Schema is empty.
const DefaultSchema = "public"

// Config holds Postgres repository configuration.
type Config struct {
	DSN    string
	Schema string
	Logger *zap.Logger
}

// Repository is a Postgres-backed storage.Repository.
//
// Table names follow Postgres's folding of unquoted identifiers: they are
// lower-cased before use. Column names are used exactly as given, so callers
// pass the spelling reported by Columns.
type Repository struct {
	pool   *pgxpool.Pool
	cfg    Config
	logger *zap.Logger
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, cfg: cfg, logger: logger}, pool.Close, nil
}

func (r *Repository) schema() string {
	if s := strings.TrimSpace(r.cfg.Schema); s != "" {
		return s
	}
	return DefaultSchema
}

const columnsSQL = `SELECT column_name::text, data_type::text, ordinal_position::int
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

// Columns implements storage.Introspector.
func (r *Repository) Columns(ctx context.Context, table string) ([]schema.LiveColumn, error) {
	if err := storage.CheckIdent(table); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, columnsSQL, r.schema(), strings.ToLower(table))
	if err != nil {
		return nil, fmt.Errorf("query columns of %s: %w", table, err)
	}
	cols, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (schema.LiveColumn, error) {
		var c schema.LiveColumn
		err := row.Scan(&c.Name, &c.DeclaredType, &c.Position)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan columns of %s: %w", table, err)
	}
	return cols, nil
}

// ReadRows implements storage.Reader. Every column is cast to text.
func (r *Repository) ReadRows(ctx context.Context, table string, columns []string) ([]records.Record, error) {
	if err := storage.CheckIdent(append([]string{table}, columns...)...); err != nil {
		return nil, err
	}
	sel := make([]string, len(columns))
	for i, c := range columns {
		sel[i] = pgIdent(c) + "::text"
	}
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(sel, ", "), r.fqn(table))

	rows, err := r.pool.Query(ctx, q)
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
	rows = storage.BlankToNull(rows, columns, live)

	tmp := pgIdent("tmp_" + strings.ToLower(table))
	cols := strings.Join(mapIdent(columns), ", ")
	fq := r.fqn(table)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	create := fmt.Sprintf("CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT %s FROM %s WHERE false", tmp, cols, fq)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}

	copySQL := fmt.Sprintf("COPY %s (%s) FROM STDIN", tmp, cols)
	copied, err := tx.Conn().PgConn().CopyFrom(ctx, copyText(rows), copySQL)
	if err != nil {
		return 0, pgError("copy into temp", err)
	}
	r.logger.Debug("copied rows into temp table", zap.String("table", table), zap.Int64("rows", copied.RowsAffected()))

	insert := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT DO NOTHING", fq, cols, cols, tmp)
	tag, err := tx.Exec(ctx, insert)
	if err != nil {
		return 0, pgError("insert phase", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) fqn(table string) string {
	return pgIdent(r.schema()) + "." + pgIdent(strings.ToLower(table))
}

func pgError(step string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s: %s (%s): %w", step, pgErr.Detail, pgErr.SQLState(), err)
	}
	return fmt.Errorf("%s: %w", step, err)
}

var copyEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)

// copyText renders rows in COPY text format: tab separated, \N for null.
// Postgres parses each field with the column's input function, so numbers,
// dates and strings all travel the same way.
func copyText(rows [][]any) io.Reader {
	var b bytes.Buffer
	for _, row := range rows {
		for i, v := range row {
			if i > 0 {
				b.WriteByte('\t')
			}
			if v == nil {
				b.WriteString(`\N`)
				continue
			}
			b.WriteString(copyEscaper.Replace(records.FromAny(v).Text()))
		}
		b.WriteByte('\n')
	}
	return &b
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
