// Package novelty splits decoded records into those whose primary key is
// already stored and those that are new.
package novelty

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"layoutsync/internal/records"
)

// Detector compares records by the value of one key column.
//
// Keys compare by canonical text: numbers are formatted with the shortest
// round-tripping representation, and when Numeric is set textual keys that
// parse as numbers are reformatted the same way, so 7, 7.0, "7" and "007" are
// the same key. Textual keys are trimmed, which matches CHAR columns that the
// database returns blank-padded.
type Detector struct {
	Key     string
	Numeric bool
	Logger  *zap.Logger
}

// KeyOf returns the canonical key of v; ok is false for null or blank keys.
func (d Detector) KeyOf(v records.Value) (key string, ok bool) {
	switch v.Kind {
	case records.Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64), true
	case records.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return "", false
		}
		if d.Numeric {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return strconv.FormatFloat(f, 'f', -1, 64), true
			}
		}
		return s, true
	default:
		return "", false
	}
}

func (d Detector) keyOfRecord(r records.Record) (string, bool) {
	v, ok := r.Get(d.Key)
	if !ok {
		return "", false
	}
	return d.KeyOf(v)
}

// Snapshot is the set of keys already present in the destination table.
type Snapshot struct {
	keys map[string]struct{}
}

// Snapshot builds the key set from existing rows. Rows without a usable key
// are ignored.
func (d Detector) Snapshot(rows []records.Record) *Snapshot {
	s := &Snapshot{keys: make(map[string]struct{}, len(rows))}
	for _, r := range rows {
		if k, ok := d.keyOfRecord(r); ok {
			s.keys[k] = struct{}{}
		}
	}
	return s
}

// NewSnapshot is shorthand for Detector{Key: key, Numeric: numeric}.Snapshot(rows).
func NewSnapshot(rows []records.Record, key string, numeric bool) *Snapshot {
	return Detector{Key: key, Numeric: numeric}.Snapshot(rows)
}

// Has reports whether key is in the snapshot.
func (s *Snapshot) Has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.keys[key]
	return ok
}

// Len is the number of distinct keys.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Partition is the outcome of Detector.Partition.
type Partition struct {
	// New holds records whose key is absent from the snapshot, in input
	// order, at most one per key.
	New []records.Record
	// Existing counts records whose key is already stored.
	Existing int
	// SkippedNullKey counts records with a null, blank or absent key.
	SkippedNullKey int
	// Duplicates counts records dropped because an earlier record in the
	// same input carried the same new key.
	Duplicates int
}

// Partition splits recs against snap.
func (d Detector) Partition(recs []records.Record, snap *Snapshot) Partition {
	var p Partition
	fresh := make(map[string]struct{})
	for _, r := range recs {
		k, ok := d.keyOfRecord(r)
		if !ok {
			p.SkippedNullKey++
			continue
		}
		if snap.Has(k) {
			p.Existing++
			continue
		}
		if _, dup := fresh[k]; dup {
			p.Duplicates++
			continue
		}
		fresh[k] = struct{}{}
		p.New = append(p.New, r)
	}

	if d.Logger != nil {
		d.Logger.Debug("novelty computed",
			zap.String("key", d.Key),
			zap.Int("new", len(p.New)),
			zap.Int("existing", p.Existing),
			zap.Int("skipped_null_key", p.SkippedNullKey),
			zap.Int("duplicates", p.Duplicates),
		)
	}
	return p
}
