package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"layoutsync/internal/config"
	"layoutsync/internal/logging"
)

// errReported marks failures whose details were already written out; main
// only sets the exit status.
var errReported = errors.New("failed")

// app is the state shared by subcommands once flags are parsed.
type app struct {
	cfg    *config.Config
	getenv func(string) string
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
	flush  []func()
}

func newRootCmd(getenv func(string) string, stdout, stderr io.Writer) *cobra.Command {
	a := &app{getenv: getenv, stdout: stdout, stderr: stderr, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "layoutsync",
		Short:         "Sync fixed-width data files into existing database tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	a.cfg = config.Bind(root.PersistentFlags(), getenv)

	root.AddCommand(
		newServeCmd(a),
		newSyncCmd(a),
		newCheckCmd(a),
		newDDLCmd(a),
	)
	return root
}

// setup validates configuration and builds the logger. Offline commands pass
// needDB=false.
func (a *app) setup(needDB bool) error {
	issues := config.Validate(*a.cfg, needDB)
	if needDB {
		reg, err := a.cfg.Registry()
		if err != nil {
			return err
		}
		issues = append(issues, config.ValidateRegistry(reg)...)
	}
	for _, iss := range issues {
		fmt.Fprintf(a.stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration is invalid: %w", errReported)
	}

	logger, err := logging.New(a.cfg.LogLevel, a.cfg.LogFormat)
	if err != nil {
		return err
	}
	a.logger = logger
	a.flush = append(a.flush, func() { _ = logger.Sync() })
	return nil
}

// close releases what setup and runner acquired, newest first. Subcommands
// defer it.
func (a *app) close() {
	for i := len(a.flush) - 1; i >= 0; i-- {
		a.flush[i]()
	}
	a.flush = nil
}
