// Package config centralizes process configuration. Every tunable is a
// command-line flag whose default is seeded from an environment variable
// (12-factor friendly), so `--help` shows all knobs and their effective
// defaults.
//
// Typical usage with cobra:
//
//	cfg := config.Bind(cmd.PersistentFlags(), os.Getenv) // cobra parses later
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(fs, getenv, []string{"--workers=4"})
package config

import (
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// DefaultPrimaryKey is the key column used for tables the registry does not
// list.
const DefaultPrimaryKey = "co_procedimento"

// Config holds all process configuration derived from flags and environment
// variables. It is a plain value and safe to copy after construction.
type Config struct {
	// Destination database.
	DBDriver string // postgres | mssql | mysql | sqlite
	DSN      string
	DBSchema string // empty selects the backend default

	// Sync behavior.
	TablesFile string // optional YAML table registry
	PrimaryKey string
	Encoding   string // preferred data file encoding, tried before UTF-8
	TypeMatch  string // family | prefix
	Strict     bool
	Workers    int

	// Upload endpoint.
	Addr        string
	MaxUploadMB int

	// Logging.
	LogLevel  string
	LogFormat string // console | json

	// Metrics.
	MetricsBackend string // none | pushgateway | datadog
	PushgatewayURL string
	DogStatsDAddr  string
	Job            string
}

// Bind defines every flag on fs, seeding defaults from getenv, and returns
// the Config the flags write into. The values are final once fs is parsed.
func Bind(fs *pflag.FlagSet, getenv func(string) string) *Config {
	cfg := &Config{}

	envOrDefaultFn := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOrDefaultFn := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	boolEnvOrDefaultFn := func(k string, d bool) bool {
		if v := strings.ToLower(getenv(k)); v != "" {
			switch v {
			case "1", "true", "yes", "on":
				return true
			case "0", "false", "no", "off":
				return false
			}
		}
		return d
	}

	// DB connectivity
	fs.StringVar(&cfg.DBDriver, "db-driver", envOrDefaultFn("DB_DRIVER", "postgres"), "Database driver: postgres, mssql, mysql or sqlite")
	fs.StringVar(&cfg.DSN, "dsn", getenv("DATABASE_URL"), "Database connection string")
	fs.StringVar(&cfg.DBSchema, "db-schema", getenv("DB_SCHEMA"), "Schema that qualifies table names (default: backend default)")

	// Sync
	fs.StringVar(&cfg.TablesFile, "tables", getenv("TABLES_FILE"), "YAML file with per-table primary keys and encodings")
	fs.StringVar(&cfg.PrimaryKey, "primary-key", envOrDefaultFn("PRIMARY_KEY", DefaultPrimaryKey), "Primary key column for tables not listed in --tables")
	fs.StringVar(&cfg.Encoding, "encoding", getenv("ENCODING"), "Preferred data file encoding, tried before utf-8 and the single-byte fallbacks")
	fs.StringVar(&cfg.TypeMatch, "type-match", envOrDefaultFn("TYPE_MATCH", "family"), "Type comparison: family or prefix")
	fs.BoolVar(&cfg.Strict, "strict", boolEnvOrDefaultFn("STRICT", false), "Reject data files with wrong line lengths or non-numeric NUMBER fields")
	fs.IntVar(&cfg.Workers, "workers", intEnvOrDefaultFn("WORKERS", 1), "Tables synced concurrently within one upload")

	// HTTP
	fs.StringVar(&cfg.Addr, "addr", envOrDefaultFn("ADDR", ":5000"), "Listen address of the upload endpoint")
	fs.IntVar(&cfg.MaxUploadMB, "max-upload-mb", intEnvOrDefaultFn("MAX_UPLOAD_MB", 512), "Maximum accepted upload size in MiB")

	// Logging
	fs.StringVar(&cfg.LogLevel, "log-level", envOrDefaultFn("LOG_LEVEL", "info"), "Log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", envOrDefaultFn("LOG_FORMAT", "console"), "Log format: console or json")

	// Metrics
	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", envOrDefaultFn("METRICS_BACKEND", "none"), "Metrics backend: none, pushgateway or datadog")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway-url", getenv("PUSHGATEWAY_URL"), "Prometheus Pushgateway base URL")
	fs.StringVar(&cfg.DogStatsDAddr, "dogstatsd-addr", getenv("DOGSTATSD_ADDR"), "DogStatsD address, e.g. 127.0.0.1:8125")
	fs.StringVar(&cfg.Job, "job", envOrDefaultFn("JOB", "layoutsync"), "Job name used to label metrics")

	return cfg
}

// LoadFromArgs binds flags on fs and parses args.
//
// Precedence:
//  1. Environment values seed each flag's default.
//  2. Explicit flags in args override the seeded defaults.
func LoadFromArgs(fs *pflag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := Bind(fs, getenv)
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MaxUploadBytes converts MaxUploadMB to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
