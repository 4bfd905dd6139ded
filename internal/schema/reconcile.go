package schema

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"layoutsync/internal/layout"
	"layoutsync/internal/typemap"
)

// TypeMismatch records a column present on both sides whose types disagree.
type TypeMismatch struct {
	Column       string `json:"column"`
	ExpectedType string `json:"expected_type"`
	ActualType   string `json:"actual_type"`
}

// Diff is the result of one reconciliation.
//
// Missing lists layout columns absent from the table (layout order). Extra
// lists table columns absent from the layout, sorted case-insensitively so the
// report does not depend on the order the database returned them in.
// TypeMismatches follow layout order.
type Diff struct {
	Table          string         `json:"table"`
	Missing        []string       `json:"missing_columns"`
	Extra          []string       `json:"extra_columns"`
	TypeMismatches []TypeMismatch `json:"type_mismatches"`
}

// Blocking reports whether the diff prevents a sync: any missing column does.
func (d Diff) Blocking() bool { return len(d.Missing) > 0 }

// HasWarnings reports non-blocking differences.
func (d Diff) HasWarnings() bool { return len(d.Extra) > 0 || len(d.TypeMismatches) > 0 }

// Empty reports whether both sides agree completely.
func (d Diff) Empty() bool { return !d.Blocking() && !d.HasWarnings() }

// Summary renders the diff on one line for logs and result messages.
func (d Diff) Summary() string {
	var parts []string
	if len(d.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(d.Missing, ", "))
	}
	if len(d.Extra) > 0 {
		parts = append(parts, "extra columns: "+strings.Join(d.Extra, ", "))
	}
	if len(d.TypeMismatches) > 0 {
		ms := make([]string, len(d.TypeMismatches))
		for i, m := range d.TypeMismatches {
			ms[i] = fmt.Sprintf("%s (layout %s, table %s)", m.Column, m.ExpectedType, m.ActualType)
		}
		parts = append(parts, "type mismatches: "+strings.Join(ms, ", "))
	}
	if len(parts) == 0 {
		return "layout matches table"
	}
	return strings.Join(parts, "; ")
}

// Reconciler computes Diffs. The zero value compares type families and logs
// nothing.
type Reconciler struct {
	Mode   typemap.Mode
	Logger *zap.Logger
}

// NewReconciler returns a Reconciler using mode; a nil logger is replaced
// with a no-op one.
func NewReconciler(mode typemap.Mode, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{Mode: mode, Logger: logger}
}

// Reconcile compares specs with live. Names match case-insensitively and
// independently of position.
func (r *Reconciler) Reconcile(table string, specs []layout.ColumnSpec, live []LiveColumn) Diff {
	d := Diff{Table: table}

	liveByName := make(map[string]LiveColumn, len(live))
	for _, c := range live {
		k := strings.ToLower(c.Name)
		if _, ok := liveByName[k]; !ok {
			liveByName[k] = c
		}
	}
	layoutNames := newNameSet(layout.Names(specs))

	seen := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		k := strings.ToLower(s.Name)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		lc, ok := liveByName[k]
		if !ok {
			d.Missing = append(d.Missing, s.Name)
			continue
		}
		if !typemap.Matches(r.Mode, s.LegacyType, lc.DeclaredType) {
			d.TypeMismatches = append(d.TypeMismatches, TypeMismatch{
				Column:       s.Name,
				ExpectedType: r.expected(s.LegacyType),
				ActualType:   lc.DeclaredType,
			})
		}
	}

	extra := make(map[string]string)
	for _, c := range live {
		if !layoutNames.has(c.Name) {
			k := strings.ToLower(c.Name)
			if _, ok := extra[k]; !ok {
				extra[k] = c.Name
			}
		}
	}
	for _, n := range extra {
		d.Extra = append(d.Extra, n)
	}
	sort.Slice(d.Extra, func(i, j int) bool {
		a, b := strings.ToLower(d.Extra[i]), strings.ToLower(d.Extra[j])
		if a != b {
			return a < b
		}
		return d.Extra[i] < d.Extra[j]
	})

	if r.Logger != nil && !d.Empty() {
		r.Logger.Debug("schema diff",
			zap.String("table", table),
			zap.Strings("missing", d.Missing),
			zap.Strings("extra", d.Extra),
			zap.Int("type_mismatches", len(d.TypeMismatches)),
		)
	}
	return d
}

func (r *Reconciler) expected(legacy string) string {
	if r.Mode == typemap.ModePrefix {
		return typemap.LongName(legacy)
	}
	return typemap.Family(legacy)
}
