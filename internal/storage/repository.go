// Package storage holds the database-agnostic contracts the sync engine talks
// to, plus a small factory registry that concrete backends (postgres, mssql,
// mysql, sqlite) join from their init functions.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"layoutsync/internal/records"
	"layoutsync/internal/schema"
)

// Config selects and configures a backend.
type Config struct {
	Kind string // postgres | mssql | mysql | sqlite
	DSN  string
	// Schema qualifies table names. Empty selects the backend default
	// (public, dbo, the connection's database, main).
	Schema string
	Logger *zap.Logger
}

// Introspector lists the columns of a live table. A table that does not
// exist yields an empty slice and no error.
type Introspector interface {
	Columns(ctx context.Context, table string) ([]schema.LiveColumn, error)
}

// Reader returns every row of table projected onto columns. Values come back
// as text (or null) so keys compare by their canonical string form.
type Reader interface {
	ReadRows(ctx context.Context, table string, columns []string) ([]records.Record, error)
}

// Inserter writes rows into table atomically: either every row not already
// present is stored or none is. Rows whose key already exists are skipped by
// the database rather than failing the call. It returns the number of rows
// actually inserted.
type Inserter interface {
	Insert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// Repository is what a backend provides.
type Repository interface {
	Introspector
	Reader
	Inserter
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind, replacing any previous
// registration.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
