// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init function of each concrete backend, which registers
// its factory with the storage package. After importing it the kinds
// "postgres", "mssql", "mysql" and "sqlite" are available to storage.New.
//
// Typical usage (in cmd/layoutsync or a similar wiring layer):
//
//	import (
//	    _ "layoutsync/internal/storage/all" // enable all built-in backends
//
//	    "layoutsync/internal/storage"
//	)
//
//	repo, err := storage.New(ctx, storage.Config{Kind: cfg.DB.Kind, DSN: cfg.DB.DSN})
//	if err != nil {
//	    // handle error
//	}
//	defer repo.Close()
//
// A binary that needs only a subset of backends can import those packages
// directly instead of this one.
package all

import (
	_ "layoutsync/internal/storage/mssql"
	_ "layoutsync/internal/storage/mysql"
	_ "layoutsync/internal/storage/postgres"
	_ "layoutsync/internal/storage/sqlite"
)
