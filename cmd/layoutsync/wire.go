package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"layoutsync/internal/config"
	"layoutsync/internal/datasource/archive"
	"layoutsync/internal/fixedwidth"
	"layoutsync/internal/ingest"
	"layoutsync/internal/metrics"
	"layoutsync/internal/metrics/datadog"
	"layoutsync/internal/metrics/prompush"
	"layoutsync/internal/storage"
	_ "layoutsync/internal/storage/all"
	"layoutsync/internal/syncer"
	"layoutsync/internal/typemap"
)

// startMetrics installs the configured backend. A backend that cannot be
// built is logged and metrics stay disabled.
func (a *app) startMetrics() {
	var (
		b   metrics.Backend
		err error
	)
	switch a.cfg.MetricsBackend {
	case "pushgateway":
		b, err = prompush.NewBackend(a.cfg.Job, a.cfg.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       a.cfg.DogStatsDAddr,
			GlobalTags: []string{"job:" + a.cfg.Job},
		})
	default:
		a.logger.Debug("metrics disabled")
		return
	}
	if err != nil {
		a.logger.Warn("metrics backend unavailable; using nop", zap.String("backend", a.cfg.MetricsBackend), zap.Error(err))
		return
	}
	a.logger.Info("metrics enabled", zap.String("backend", a.cfg.MetricsBackend), zap.String("job", a.cfg.Job))
	metrics.SetBackend(b)
	a.flush = append(a.flush, func() {
		if err := metrics.Flush(); err != nil {
			a.logger.Warn("metrics flush failed", zap.Error(err))
		}
	})
}

// openStore connects to the configured database.
func (a *app) openStore(ctx context.Context) (storage.Repository, error) {
	repo, err := storage.New(ctx, storage.Config{
		Kind:   a.cfg.DBDriver,
		DSN:    a.cfg.DSN,
		Schema: a.cfg.DBSchema,
		Logger: a.logger.Named(a.cfg.DBDriver),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", a.cfg.DBDriver, err)
	}
	a.flush = append(a.flush, repo.Close)
	return repo, nil
}

func (a *app) decoder() *fixedwidth.Decoder {
	return fixedwidth.NewDecoder(a.logger)
}

// runner opens the store and assembles the upload pipeline.
func (a *app) runner(ctx context.Context) (*ingest.Runner, error) {
	a.startMetrics()

	reg, err := a.cfg.Registry()
	if err != nil {
		return nil, err
	}
	mode, err := typemap.ParseMode(a.cfg.TypeMatch)
	if err != nil {
		return nil, err
	}
	repo, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	orch := syncer.New(repo, syncer.Config{
		Tables:   reg,
		Encoding: strings.TrimSpace(a.cfg.Encoding),
		Match:    mode,
		Strict:   a.cfg.Strict,
		Workers:  a.cfg.Workers,
		Job:      a.cfg.Job,
		Decoder:  a.decoder(),
		Logger:   a.logger,
	})
	return &ingest.Runner{
		Sync:    orch,
		Archive: archive.Options{},
		Job:     a.cfg.Job,
		Logger:  a.logger,
	}, nil
}

var _ syncer.Tables = (*config.Registry)(nil)
