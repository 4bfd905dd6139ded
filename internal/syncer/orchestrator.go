// Package syncer drives the per-table pipeline: read the layout, reconcile it
// against the live table, decode the data file, diff it against the stored
// keys and insert what is new. Every table ends in exactly one Result; a
// failing table never stops the others in a batch.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"layoutsync/internal/fixedwidth"
	"layoutsync/internal/layout"
	"layoutsync/internal/metrics"
	"layoutsync/internal/novelty"
	"layoutsync/internal/records"
	"layoutsync/internal/schema"
	"layoutsync/internal/storage"
	"layoutsync/internal/typemap"
)

// Store is the subset of storage.Repository the orchestrator needs.
type Store interface {
	storage.Introspector
	storage.Reader
	storage.Inserter
}

// Tables resolves per-table settings. An empty encoding means "use the
// orchestrator default".
type Tables interface {
	PrimaryKey(table string) string
	Encoding(table string) string
}

// KeyOnly is a Tables that uses one primary key for every table.
type KeyOnly string

func (k KeyOnly) PrimaryKey(string) string { return string(k) }
func (KeyOnly) Encoding(string) string     { return "" }

// Config configures an Orchestrator. Zero values are usable except Tables,
// without which every table fails with ErrConfig.
type Config struct {
	Tables Tables
	// Encoding is the preferred data file encoding when Tables has none.
	Encoding string
	Match    typemap.Mode
	// Strict rejects data files with length or numeric issues before
	// decoding instead of correcting them.
	Strict bool
	// Workers bounds how many tables of a batch run at once (default 1).
	Workers int
	// Job labels metrics.
	Job     string
	Decoder *fixedwidth.Decoder
	Logger  *zap.Logger
}

// Orchestrator syncs tables against one Store.
type Orchestrator struct {
	store      Store
	tables     Tables
	encoding   string
	strict     bool
	workers    int
	job        string
	decoder    *fixedwidth.Decoder
	reconciler *schema.Reconciler
	logger     *zap.Logger
}

// New builds an Orchestrator.
func New(store Store, cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dec := cfg.Decoder
	if dec == nil {
		dec = fixedwidth.NewDecoder(logger)
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	job := cfg.Job
	if job == "" {
		job = "layoutsync"
	}
	return &Orchestrator{
		store:      store,
		tables:     cfg.Tables,
		encoding:   cfg.Encoding,
		strict:     cfg.Strict,
		workers:    workers,
		job:        job,
		decoder:    dec,
		reconciler: schema.NewReconciler(cfg.Match, logger),
		logger:     logger,
	}
}

// WithLogger returns a copy that logs through l, typically a logger carrying
// request fields such as upload_id.
func (o *Orchestrator) WithLogger(l *zap.Logger) *Orchestrator {
	cp := *o
	cp.logger = l
	return &cp
}

// Files names the data and layout file of one table. Relative paths are
// resolved against the batch work dir.
type Files struct {
	Data   string `json:"data_file"`
	Layout string `json:"layout_file"`
}

// SyncBatch syncs every table in tables and returns one Result per table,
// sorted by table name. Up to Workers tables run concurrently; a failing
// table does not affect the others.
func (o *Orchestrator) SyncBatch(ctx context.Context, tables map[string]Files, workDir string) []Result {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]Result, len(names))
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, name := range names {
		f := tables[name]
		g.Go(func() error {
			results[i] = o.SyncTable(ctx, name, resolve(workDir, f.Data), resolve(workDir, f.Layout))
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	o.logger.Info("batch finished", zap.Int("tables", len(results)), zap.Int("failed", failed))
	return results
}

func resolve(dir, p string) string {
	if dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// SyncTable runs the full pipeline for one table. Failures are reported in
// the Result, never returned.
func (o *Orchestrator) SyncTable(ctx context.Context, table, dataPath, layoutPath string) Result {
	start := time.Now()
	logger := o.logger.With(zap.String("table", table))
	logger.Info("sync started",
		zap.String("data_file", filepath.Base(dataPath)),
		zap.String("layout_file", filepath.Base(layoutPath)),
	)

	res := Result{Table: table, State: StateStart}
	err := o.run(ctx, logger, &res, dataPath, layoutPath)
	elapsed := time.Since(start)
	res.Duration = Duration(elapsed)

	if err != nil {
		var se *StepError
		step := "sync"
		if errors.As(err, &se) {
			step = se.State.step()
		}
		metrics.RecordStep(o.job, step, err, elapsed)
		logger.Error("sync failed", zap.String("state", string(res.State)), zap.Error(err))

		res.Status = StatusError
		res.State = StateError
		res.Message = err.Error()
		res.Err = err
		return res
	}

	metrics.RecordStep(o.job, "sync", nil, elapsed)
	metrics.RecordRow(o.job, "decoded", int64(res.Decoded))
	metrics.RecordRow(o.job, "existing", int64(res.Existing))
	metrics.RecordRow(o.job, "skipped_null_key", int64(res.SkippedNullKey))
	metrics.RecordRow(o.job, "inserted", res.Inserted)

	res.Status = StatusSuccess
	res.State = StateSuccess
	logger.Info("sync finished",
		zap.Int("decoded", res.Decoded),
		zap.Int("new", res.NewRecordCount),
		zap.Int64("inserted", res.Inserted),
		zap.Duration("elapsed", elapsed.Truncate(time.Millisecond)),
	)
	return res
}

func (o *Orchestrator) run(ctx context.Context, logger *zap.Logger, res *Result, dataPath, layoutPath string) error {
	table := res.Table
	fail := func(kind, err error) error { return stepErr(res.State, table, kind, err) }

	if !layout.IsIdentifier(table) {
		return fail(ErrConfig, fmt.Errorf("invalid table name %q", table))
	}
	key := ""
	if o.tables != nil {
		key = strings.TrimSpace(o.tables.PrimaryKey(table))
	}
	if key == "" {
		return fail(ErrConfig, errors.New("no primary key configured"))
	}

	specs, err := layout.ReadFile(layoutPath)
	if err != nil {
		return fail(ErrLayoutParse, err)
	}
	keySpec, ok := layout.Find(specs, key)
	if !ok {
		return fail(ErrConfig, fmt.Errorf("primary key %q is not a layout column", key))
	}
	res.State = StateLayoutParsed

	live, err := o.store.Columns(ctx, table)
	if err != nil {
		return fail(ErrIntrospect, err)
	}
	if len(live) == 0 {
		return fail(ErrSchemaMismatch, errors.New("table does not exist"))
	}
	diff := o.reconciler.Reconcile(table, specs, live)
	if diff.Blocking() {
		return fail(ErrSchemaMismatch, errors.New(diff.Summary()))
	}
	if diff.HasWarnings() {
		res.Warnings = &diff
	}
	res.State = StateSchemaChecked

	data, err := os.ReadFile(dataPath)
	if err != nil {
		return fail(ErrDecode, err)
	}
	res.Checksum = checksum(data)
	enc := o.encodingFor(table)
	if o.strict {
		issues, _, err := o.decoder.Validate(data, specs, enc)
		if err != nil {
			return fail(ErrDecode, err)
		}
		if len(issues) > 0 {
			return fail(ErrValidation, issueError(issues))
		}
	}
	decoded, err := o.decoder.Decode(data, specs, enc)
	if err != nil {
		return fail(ErrDecode, err)
	}
	res.Encoding = decoded.Encoding
	res.Decoded = len(decoded.Records)
	res.Adjusted = decoded.Adjusted
	if len(decoded.Records) == 0 {
		return fail(ErrNoRecords, nil)
	}
	res.State = StateDataDecoded

	columns := liveNames(specs, live)
	keyColumn, _ := liveName(live, keySpec.Name)
	existing, err := o.store.ReadRows(ctx, table, []string{keyColumn})
	if err != nil {
		return fail(ErrSnapshot, err)
	}
	det := novelty.Detector{
		Key:     keySpec.Name,
		Numeric: fixedwidth.IsNumeric(keySpec.LegacyType),
		Logger:  logger,
	}
	snap := det.Snapshot(existing)
	res.State = StateExistingFetched

	part := det.Partition(decoded.Records, snap)
	res.NewRecordCount = len(part.New)
	res.Existing = part.Existing
	res.SkippedNullKey = part.SkippedNullKey
	res.Duplicates = part.Duplicates
	res.State = StateNoveltyComputed

	if len(part.New) == 0 {
		res.State = StateSkippedNoNew
		res.Message = "no new records"
		return nil
	}

	n, err := o.store.Insert(ctx, table, columns, records.Rows(part.New))
	if err != nil {
		return fail(ErrInsert, err)
	}
	res.Inserted = n
	if n < int64(len(part.New)) {
		logger.Warn("rows already present at insert time",
			zap.Int("new", len(part.New)), zap.Int64("inserted", n))
	}
	res.State = StateInsertDone
	res.Message = fmt.Sprintf("inserted %d new records", n)
	return nil
}

func (o *Orchestrator) encodingFor(table string) string {
	if o.tables != nil {
		if enc := o.tables.Encoding(table); enc != "" {
			return enc
		}
	}
	return o.encoding
}

// liveNames maps layout column names onto the spelling the table uses, so
// backends that quote identifiers address the right columns.
func liveNames(specs []layout.ColumnSpec, live []schema.LiveColumn) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i], _ = liveName(live, s.Name)
	}
	return out
}

func liveName(live []schema.LiveColumn, name string) (string, bool) {
	for _, c := range live {
		if strings.EqualFold(c.Name, name) {
			return c.Name, true
		}
	}
	return name, false
}

func issueError(issues []fixedwidth.LineIssue) error {
	if len(issues) == 1 {
		return errors.New(issues[0].String())
	}
	more := fmt.Sprintf("%d", len(issues)-1)
	if len(issues) >= fixedwidth.MaxIssues {
		more += "+"
	}
	return fmt.Errorf("%s (and %s more)", issues[0], more)
}
