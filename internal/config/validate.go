package config

// This file adds a lightweight linter for Config values. It performs static
// checks and returns a list of issues (errors and warnings) that callers
// surface before doing any work.

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/zapcore"

	"layoutsync/internal/fixedwidth"
	"layoutsync/internal/layout"
	"layoutsync/internal/typemap"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding worth surfacing that does not block
	// execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path names the offending setting by flag name (e.g. "db-driver") or by
// registry path (e.g. "tables.tb_cid.encoding").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

var knownDrivers = map[string]struct{}{
	"postgres": {},
	"mssql":    {},
	"mysql":    {},
	"sqlite":   {},
}

// Validate checks c. When needDB is false (offline commands such as check)
// the database settings are not inspected.
func Validate(c Config, needDB bool) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if needDB {
		if _, ok := knownDrivers[c.DBDriver]; !ok {
			add(SeverityError, "db-driver", "unsupported driver %q (want postgres, mssql, mysql or sqlite)", c.DBDriver)
		}
		if strings.TrimSpace(c.DSN) == "" {
			add(SeverityError, "dsn", "database connection string must not be empty")
		}
		if c.DBSchema != "" && !layout.IsIdentifier(c.DBSchema) {
			add(SeverityError, "db-schema", "invalid schema name %q", c.DBSchema)
		}
	}

	if !layout.IsIdentifier(strings.TrimSpace(c.PrimaryKey)) {
		add(SeverityError, "primary-key", "invalid column name %q", c.PrimaryKey)
	}
	if c.Encoding != "" {
		if _, err := fixedwidth.Lookup(c.Encoding); err != nil {
			add(SeverityError, "encoding", "%v", err)
		}
	}
	if _, err := typemap.ParseMode(c.TypeMatch); err != nil {
		add(SeverityError, "type-match", "%v", err)
	}
	switch {
	case c.Workers < 1:
		add(SeverityError, "workers", "workers must be >= 1, got %d", c.Workers)
	case c.Workers > 32:
		add(SeverityWarning, "workers", "workers=%d opens that many concurrent database sessions per upload", c.Workers)
	}
	if c.MaxUploadMB < 1 {
		add(SeverityError, "max-upload-mb", "must be >= 1, got %d", c.MaxUploadMB)
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		add(SeverityError, "log-level", "%v", err)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		add(SeverityError, "log-format", "unknown format %q (want console or json)", c.LogFormat)
	}

	switch c.MetricsBackend {
	case "", "none":
	case "pushgateway":
		if c.PushgatewayURL == "" {
			add(SeverityError, "pushgateway-url", "required when metrics-backend=pushgateway")
		}
	case "datadog":
		if c.DogStatsDAddr == "" {
			add(SeverityError, "dogstatsd-addr", "required when metrics-backend=datadog")
		}
	default:
		add(SeverityError, "metrics-backend", "unknown backend %q (want none, pushgateway or datadog)", c.MetricsBackend)
	}
	if c.MetricsBackend != "" && c.MetricsBackend != "none" && strings.TrimSpace(c.Job) == "" {
		add(SeverityWarning, "job", "job is empty; metrics will use the backend default")
	}

	return issues
}

// ValidateRegistry checks table names, primary keys and encodings in r.
// Issues are ordered by table name.
func ValidateRegistry(r *Registry) []Issue {
	if r == nil {
		return nil
	}
	var issues []Issue
	add := func(sev IssueSeverity, path, msg string) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: msg})
	}
	if k := strings.TrimSpace(r.DefaultPrimaryKey); k != "" && !layout.IsIdentifier(k) {
		add(SeverityError, "default_primary_key", fmt.Sprintf("invalid column name %q", k))
	}

	names := make([]string, 0, len(r.Tables))
	for name := range r.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := map[string]string{}
	for _, name := range names {
		tc := r.Tables[name]
		path := "tables." + name
		if !layout.IsIdentifier(name) {
			add(SeverityError, path, fmt.Sprintf("invalid table name %q", name))
		}
		if prev, dup := seen[strings.ToLower(name)]; dup {
			add(SeverityWarning, path, fmt.Sprintf("same table as %q (names are case-insensitive)", prev))
		}
		seen[strings.ToLower(name)] = name

		if k := strings.TrimSpace(tc.PrimaryKey); k != "" && !layout.IsIdentifier(k) {
			add(SeverityError, path+".primary_key", fmt.Sprintf("invalid column name %q", k))
		}
		if tc.Encoding != "" {
			if _, err := fixedwidth.Lookup(tc.Encoding); err != nil {
				add(SeverityError, path+".encoding", err.Error())
			}
		}
	}
	return issues
}
