// Command layoutsync loads fixed-width data files described by layout files
// into existing database tables, inserting only records whose primary key is
// not stored yet.
//
// Usage:
//
//	layoutsync serve --db-driver postgres --dsn "$DATABASE_URL"
//	layoutsync sync bundle.zip
//	layoutsync sync https://example.org/exports/bundle.zip
//	layoutsync check tb_procedimento.txt tb_procedimento_layout.txt
//
// Every flag can also be set through its environment variable; run
// `layoutsync --help` for the full list.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Getenv, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
