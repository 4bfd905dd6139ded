// Package ingest runs one uploaded bundle end to end: extract the ZIP, pair
// data files with layouts, sync every table and summarize the outcome. The
// HTTP upload endpoint and the sync command share it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"layoutsync/internal/datasource"
	"layoutsync/internal/datasource/archive"
	"layoutsync/internal/metrics"
	"layoutsync/internal/syncer"
)

// ErrNoPairs means the archive held no <table>.txt with a matching layout.
var ErrNoPairs = errors.New("no data/layout pairs found")

// Syncer is the part of syncer.Orchestrator a run needs.
type Syncer interface {
	SyncBatch(ctx context.Context, tables map[string]syncer.Files, workDir string) []syncer.Result
}

// Report is the outcome of one bundle. Success holds only when every table
// succeeded.
type Report struct {
	Success  bool            `json:"success"`
	UploadID string          `json:"upload_id"`
	Message  string          `json:"message"`
	Results  []syncer.Result `json:"results"`
	Unpaired []string        `json:"unpaired,omitempty"`
	Ignored  []string        `json:"ignored,omitempty"`
	Duration syncer.Duration `json:"duration"`
}

// Failed returns a report for a bundle rejected before any table ran.
func Failed(id, msg string) Report {
	return Report{UploadID: id, Message: msg, Results: []syncer.Result{}}
}

// Runner carries what every run shares.
type Runner struct {
	Sync    Syncer
	Archive archive.Options
	Job     string
	Logger  *zap.Logger
}

// NewID returns a fresh upload id.
func NewID() string { return uuid.NewString() }

// Run processes src under upload id. The error is non-nil only when the
// bundle itself is unusable (ErrNoPairs, archive.ErrArchive or I/O); table
// failures are reported in the Report and leave the error nil.
func (r *Runner) Run(ctx context.Context, id string, src datasource.Source) (rep Report, err error) {
	start := time.Now()
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("upload_id", id))

	defer func() {
		rep.Duration = syncer.Duration(time.Since(start))
		metrics.RecordUpload(r.Job, rep.Success)
		if err != nil {
			logger.Warn("upload rejected", zap.Error(err))
			return
		}
		logger.Info("upload processed",
			zap.Bool("success", rep.Success),
			zap.Int("tables", len(rep.Results)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	opts := r.Archive
	opts.Logger = logger
	ws, err := archive.Extract(ctx, src, opts)
	if err != nil {
		return Failed(id, err.Error()), err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			logger.Error("workspace cleanup failed", zap.Error(cerr))
		}
	}()

	pairing := archive.PairFiles(ws.Files)
	for _, f := range pairing.Unpaired {
		logger.Warn("file has no partner", zap.String("file", f))
	}
	if len(pairing.Pairs) == 0 {
		rep = Failed(id, ErrNoPairs.Error())
		rep.Unpaired, rep.Ignored = pairing.Unpaired, pairing.Ignored
		return rep, ErrNoPairs
	}

	tables := make(map[string]syncer.Files, len(pairing.Pairs))
	for _, p := range pairing.Pairs {
		tables[p.Table] = syncer.Files{Data: p.Data, Layout: p.Layout}
	}
	s := r.Sync
	if o, ok := s.(*syncer.Orchestrator); ok {
		s = o.WithLogger(logger)
	}
	results := s.SyncBatch(ctx, tables, ws.Dir)

	rep = Report{
		Success:  syncer.AllOK(results),
		UploadID: id,
		Results:  results,
		Unpaired: pairing.Unpaired,
		Ignored:  pairing.Ignored,
	}
	rep.Message = summarize(results)
	return rep, nil
}

func summarize(results []syncer.Result) string {
	var failed, inserted int
	for _, res := range results {
		if !res.OK() {
			failed++
		}
		inserted += res.NewRecordCount
	}
	if failed > 0 {
		return fmt.Sprintf("%d of %d tables failed", failed, len(results))
	}
	return fmt.Sprintf("processed %d tables, %d new records", len(results), inserted)
}
