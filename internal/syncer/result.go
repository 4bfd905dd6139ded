package syncer

import (
	"fmt"
	"time"

	"github.com/zeebo/xxh3"

	"layoutsync/internal/schema"
)

// Result is the outcome of one table sync.
type Result struct {
	Status         Status `json:"status"`
	Table          string `json:"table"`
	NewRecordCount int    `json:"new_record_count"`
	Message        string `json:"message,omitempty"`

	State          State        `json:"state"`
	Encoding       string       `json:"encoding,omitempty"`
	Decoded        int          `json:"decoded"`
	Adjusted       int          `json:"adjusted_lines,omitempty"`
	Existing       int          `json:"existing"`
	SkippedNullKey int          `json:"skipped_null_key,omitempty"`
	Duplicates     int          `json:"duplicates,omitempty"`
	Inserted       int64        `json:"inserted"`
	Warnings       *schema.Diff `json:"warnings,omitempty"`
	Checksum       string       `json:"checksum,omitempty"`
	Duration       Duration     `json:"duration"`

	// Err is the failure behind an error status. It is not serialized; the
	// message carries its text.
	Err error `json:"-"`
}

// OK reports a success status.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// AllOK reports whether every result succeeded. An empty batch is not OK.
func AllOK(results []Result) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.OK() {
			return false
		}
	}
	return true
}

// Duration marshals as a human readable string such as "1.25s".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).Round(time.Millisecond).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// checksum fingerprints a data file so repeated uploads are easy to spot in
// logs.
func checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}
