// Package ddl derives a CREATE TABLE statement from a layout. It is a helper
// for preparing a destination table before the first sync; the sync itself
// never creates or alters tables.
package ddl

import (
	"fmt"
	"strconv"
	"strings"

	"layoutsync/internal/layout"
	"layoutsync/internal/typemap"
)

// FromLayout builds a TableDef for table from specs. The key column is marked
// as primary key and NOT NULL; every other column is nullable. Sizes come
// from the legacy type's qualifier, falling back to the field width.
func FromLayout(table string, specs []layout.ColumnSpec, key string) (TableDef, error) {
	if strings.TrimSpace(table) == "" {
		return TableDef{}, fmt.Errorf("ddl: missing table name")
	}
	if len(specs) == 0 {
		return TableDef{}, fmt.Errorf("ddl: layout has no columns")
	}

	def := TableDef{FQN: table, Columns: make([]ColumnDef, 0, len(specs))}
	foundKey := key == ""
	for _, s := range specs {
		isKey := key != "" && strings.EqualFold(s.Name, key)
		foundKey = foundKey || isKey
		def.Columns = append(def.Columns, ColumnDef{
			Name:       strings.ToLower(s.Name),
			Type:       typemap.Family(s.LegacyType),
			Size:       size(s),
			Nullable:   !isKey,
			PrimaryKey: isKey,
		})
	}
	if !foundKey {
		return TableDef{}, fmt.Errorf("ddl: key column %q is not in the layout", key)
	}
	return def, nil
}

// size returns the digits and comma inside the legacy qualifier, e.g.
// "VARCHAR2(10 BYTE)" -> "10", or the field width when there is none.
// DATE fields never carry a size.
func size(s layout.ColumnSpec) string {
	if typemap.Family(s.LegacyType) == "DATE" {
		return ""
	}
	t := s.LegacyType
	if i := strings.IndexByte(t, '('); i >= 0 {
		if j := strings.LastIndexByte(t, ')'); j > i {
			q := strings.Map(func(r rune) rune {
				if (r >= '0' && r <= '9') || r == ',' {
					return r
				}
				return -1
			}, t[i+1:j])
			if q != "" {
				return q
			}
		}
	}
	return strconv.Itoa(s.Width())
}
