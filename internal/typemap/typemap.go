// Package typemap translates legacy (Oracle-style) type names found in layout
// descriptors into destination-database type families, and folds the type
// names reported by live schemas into the same vocabulary.
//
//	VARCHAR2 -> VARCHAR
//	NUMBER   -> NUMERIC
//	CHAR     -> CHAR
//	DATE     -> DATE
//	other    -> passed through (upper-cased)
//
// Two comparison modes exist. ModeFamily (default) compares base families after
// stripping precision/length qualifiers and folding aliases, so NUMBER(12,2)
// matches numeric(10,0) and VARCHAR2 matches "character varying". ModePrefix
// reproduces the older information_schema check: the live type must start with
// the long Postgres name of the mapped legacy type.
package typemap

import (
	"fmt"
	"strings"
)

// Mode selects how a legacy type is compared with a live declared type.
type Mode string

const (
	ModeFamily Mode = "family"
	ModePrefix Mode = "prefix"
)

// ParseMode parses a mode name; the empty string selects ModeFamily.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeFamily:
		return ModeFamily, nil
	case ModePrefix:
		return ModePrefix, nil
	default:
		return "", fmt.Errorf("unknown type match mode %q (want family or prefix)", s)
	}
}

var legacyFamilies = map[string]string{
	"VARCHAR2": "VARCHAR",
	"NUMBER":   "NUMERIC",
	"CHAR":     "CHAR",
	"DATE":     "DATE",
}

// legacyLongNames are the information_schema.columns.data_type spellings used
// by Postgres for each legacy type.
var legacyLongNames = map[string]string{
	"VARCHAR2": "character varying",
	"NUMBER":   "numeric",
	"CHAR":     "character",
	"DATE":     "date",
}

// liveAliases folds destination spellings (Postgres, SQL Server, MySQL,
// SQLite) onto the families produced by Family.
var liveAliases = map[string]string{
	"CHARACTER VARYING": "VARCHAR",
	"VARCHAR":           "VARCHAR",
	"VARCHAR2":          "VARCHAR",
	"NVARCHAR":          "VARCHAR",
	"NVARCHAR2":         "VARCHAR",
	"CHARACTER":         "CHAR",
	"CHAR":              "CHAR",
	"BPCHAR":            "CHAR",
	"NCHAR":             "CHAR",
	"NUMERIC":           "NUMERIC",
	"DECIMAL":           "NUMERIC",
	"NUMBER":            "NUMERIC",
	"DATE":              "DATE",
}

// Base strips a parenthesized qualifier and surrounding whitespace and
// upper-cases the result: "varchar2(10 byte)" -> "VARCHAR2".
func Base(t string) string {
	if i := strings.IndexByte(t, '('); i >= 0 {
		tail := ""
		if j := strings.LastIndexByte(t, ')'); j > i {
			tail = t[j+1:]
		}
		t = t[:i] + tail
	}
	return strings.Join(strings.Fields(strings.ToUpper(t)), " ")
}

// Family maps a legacy type to its destination family. Unmapped types pass
// through upper-cased.
func Family(legacy string) string {
	b := Base(legacy)
	if f, ok := legacyFamilies[b]; ok {
		return f
	}
	return b
}

// Canonical folds a live declared type onto the family vocabulary.
func Canonical(live string) string {
	b := Base(live)
	if f, ok := liveAliases[b]; ok {
		return f
	}
	return b
}

// LongName returns the lower-case Postgres data_type spelling for a legacy
// type, or the lower-cased base name when unmapped.
func LongName(legacy string) string {
	b := Base(legacy)
	if n, ok := legacyLongNames[b]; ok {
		return n
	}
	return strings.ToLower(b)
}

// HasPrefix reports whether the live type starts with LongName(legacy).
func HasPrefix(legacy, live string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(live)), LongName(legacy))
}

// Matches compares legacy and live under mode.
func Matches(mode Mode, legacy, live string) bool {
	if mode == ModePrefix {
		return HasPrefix(legacy, live)
	}
	return Family(legacy) == Canonical(live)
}
