package config

import (
	"testing"
)

func validConfig() Config {
	return Config{
		DBDriver:       "postgres",
		DSN:            "postgres://u:p@localhost/db",
		PrimaryKey:     DefaultPrimaryKey,
		TypeMatch:      "family",
		Workers:        1,
		MaxUploadMB:    64,
		LogLevel:       "info",
		LogFormat:      "console",
		MetricsBackend: "none",
		Job:            "layoutsync",
	}
}

func paths(issues []Issue) map[string]IssueSeverity {
	out := map[string]IssueSeverity{}
	for _, i := range issues {
		out[i.Path] = i.Severity
	}
	return out
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	if issues := Validate(validConfig(), true); len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
}

func TestValidate_Findings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		needDB bool
		path   string
		sev    IssueSeverity
	}{
		{"driver", func(c *Config) { c.DBDriver = "oracle" }, true, "db-driver", SeverityError},
		{"dsn", func(c *Config) { c.DSN = " " }, true, "dsn", SeverityError},
		{"schema", func(c *Config) { c.DBSchema = "a;b" }, true, "db-schema", SeverityError},
		{"primary key", func(c *Config) { c.PrimaryKey = "1x" }, false, "primary-key", SeverityError},
		{"encoding", func(c *Config) { c.Encoding = "klingon-8" }, false, "encoding", SeverityError},
		{"type match", func(c *Config) { c.TypeMatch = "exact" }, false, "type-match", SeverityError},
		{"workers low", func(c *Config) { c.Workers = 0 }, false, "workers", SeverityError},
		{"workers high", func(c *Config) { c.Workers = 100 }, false, "workers", SeverityWarning},
		{"upload size", func(c *Config) { c.MaxUploadMB = 0 }, false, "max-upload-mb", SeverityError},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, false, "log-level", SeverityError},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, false, "log-format", SeverityError},
		{"metrics backend", func(c *Config) { c.MetricsBackend = "statsd" }, false, "metrics-backend", SeverityError},
		{"pushgateway url", func(c *Config) { c.MetricsBackend = "pushgateway" }, false, "pushgateway-url", SeverityError},
		{"dogstatsd addr", func(c *Config) { c.MetricsBackend = "datadog" }, false, "dogstatsd-addr", SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)
			got := paths(Validate(cfg, tt.needDB))
			if sev, ok := got[tt.path]; !ok || sev != tt.sev {
				t.Fatalf("issues = %v; want %s at %s", got, tt.sev, tt.path)
			}
		})
	}
}

func TestValidate_OfflineSkipsDB(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.DBDriver, cfg.DSN = "", ""
	if issues := Validate(cfg, false); len(issues) != 0 {
		t.Fatalf("offline validation should ignore db settings: %v", issues)
	}
	if !HasErrors(Validate(cfg, true)) {
		t.Fatalf("online validation should flag db settings")
	}
}

func TestValidateRegistry(t *testing.T) {
	t.Parallel()

	reg := &Registry{
		DefaultPrimaryKey: "bad key",
		Tables: map[string]TableConfig{
			"tb_ok":  {PrimaryKey: "co_ok", Encoding: "latin1"},
			"TB_OK":  {},
			"bad-tb": {PrimaryKey: "x;y", Encoding: "nope"},
		},
	}
	got := paths(ValidateRegistry(reg))
	want := map[string]IssueSeverity{
		"default_primary_key":       SeverityError,
		"tables.bad-tb":             SeverityError,
		"tables.bad-tb.primary_key": SeverityError,
		"tables.bad-tb.encoding":    SeverityError,
		"tables.tb_ok":              SeverityWarning,
	}
	for path, sev := range want {
		if got[path] != sev {
			t.Errorf("%s: got %q, want %q (all: %v)", path, got[path], sev, got)
		}
	}
	if ValidateRegistry(nil) != nil {
		t.Fatalf("nil registry should have no issues")
	}
}

func TestIssueError(t *testing.T) {
	t.Parallel()

	i := Issue{Severity: SeverityError, Path: "dsn", Message: "must not be empty"}
	if got, want := i.Error(), "error at dsn: must not be empty"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
