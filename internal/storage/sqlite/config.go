package sqlite

import "go.uber.org/zap"

// DefaultSchema is the attached database used when Config.Schema is empty.
const DefaultSchema = "main"

// maxVariables bounds the number of bound parameters in one statement. Older
// SQLite builds cap it at 999.
const maxVariables = 999

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:sync.db?_pragma=busy_timeout(5000)"
	//   ":memory:"
	DSN string

	// Schema names an attached database ("main", "temp", or an ATTACH alias).
	Schema string

	Logger *zap.Logger
}
