package storage

import (
	"fmt"
	"regexp"
	"strings"

	"layoutsync/internal/records"
	"layoutsync/internal/schema"
	"layoutsync/internal/typemap"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// CheckIdent rejects names that are not plain SQL identifiers. Backends call
// it on every table and column name before building statements.
func CheckIdent(names ...string) error {
	for _, n := range names {
		if !identRe.MatchString(n) {
			return fmt.Errorf("invalid identifier %q", n)
		}
	}
	return nil
}

// TextRecords builds records of text values from scanned nullable strings.
func TextRecords(cols *records.Columns, rows [][]*string) []records.Record {
	out := make([]records.Record, len(rows))
	for i, row := range rows {
		vals := make([]records.Value, len(row))
		for j, p := range row {
			if p != nil {
				vals[j] = records.StringValue(*p)
			}
		}
		out[i] = records.Make(cols, vals)
	}
	return out
}

// TextArg renders one insert argument as text, keeping nil as nil.
func TextArg(v any) any {
	if v == nil {
		return nil
	}
	return records.FromAny(v).Text()
}

// isCharacterType reports whether a declared type stores text verbatim. An
// empty declaration (SQLite columns without a type) counts as text.
func isCharacterType(declared string) bool {
	c := typemap.Canonical(declared)
	return c == "" || strings.Contains(c, "CHAR") || strings.Contains(c, "TEXT") || c == "STRING"
}

// BlankToNull returns rows with empty strings replaced by nil in every column
// whose live type is not a character type: a blank fixed-width DATE or NUMBER
// field means "no value", and most databases reject '' for those types. The
// input is not modified.
func BlankToNull(rows [][]any, columns []string, live []schema.LiveColumn) [][]any {
	types := make(map[string]string, len(live))
	for _, c := range live {
		types[strings.ToLower(c.Name)] = c.DeclaredType
	}
	mask := make([]bool, len(columns))
	masked := false
	for i, c := range columns {
		if t, ok := types[strings.ToLower(c)]; ok && !isCharacterType(t) {
			mask[i] = true
			masked = true
		}
	}
	if !masked {
		return rows
	}

	out := make([][]any, len(rows))
	for i, row := range rows {
		cp := make([]any, len(row))
		copy(cp, row)
		for j := range cp {
			if j < len(mask) && mask[j] {
				if s, ok := cp[j].(string); ok && strings.TrimSpace(s) == "" {
					cp[j] = nil
				}
			}
		}
		out[i] = cp
	}
	return out
}
