package ddl

import (
	"fmt"
	"strings"
)

// Dialect selects identifier quoting and type spelling. The values match the
// storage backend kinds.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MSSQL    Dialect = "mssql"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// ParseDialect accepts a storage kind.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case Postgres, MSSQL, MySQL, SQLite:
		return d, nil
	default:
		return "", fmt.Errorf("ddl: unknown dialect %q", s)
	}
}

// BuildCreateTableSQL renders t for dialect d:
//
//	CREATE TABLE [IF NOT EXISTS] <fqn> (
//	  <col> <type> [NOT NULL],
//	  ...,
//	  PRIMARY KEY (<pk-cols>)
//	);
//
// SQL Server has no IF NOT EXISTS for CREATE TABLE, so it is omitted there.
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: missing table name")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: no columns")
	}
	if _, err := ParseDialect(string(d)); err != nil {
		return "", err
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		line := quote(d, name) + " " + sqlType(d, c)
		if !c.Nullable {
			line += " NOT NULL"
		}
		cols = append(cols, line)
		if c.PrimaryKey {
			pks = append(pks, quote(d, name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	ifNotExists := "IF NOT EXISTS "
	if d == MSSQL {
		ifNotExists = ""
	}
	return fmt.Sprintf("CREATE TABLE %s%s (\n  %s\n);", ifNotExists, quoteFQN(d, fqn), strings.Join(cols, ",\n  ")), nil
}

func sqlType(d Dialect, c ColumnDef) string {
	sized := func(name string) string {
		if c.Size == "" {
			return name
		}
		return name + "(" + c.Size + ")"
	}
	switch c.Type {
	case "VARCHAR":
		if d == MSSQL {
			return sized("NVARCHAR")
		}
		return sized("VARCHAR")
	case "CHAR":
		if d == MSSQL {
			return sized("NCHAR")
		}
		return sized("CHAR")
	case "NUMERIC":
		if d == MySQL {
			return sized("DECIMAL")
		}
		return sized("NUMERIC")
	case "DATE":
		return "DATE"
	default:
		switch d {
		case MSSQL:
			return "NVARCHAR(MAX)"
		default:
			return "TEXT"
		}
	}
}

// quote quotes one identifier segment.
func quote(d Dialect, id string) string {
	switch d {
	case MSSQL:
		return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
	case MySQL:
		return "`" + strings.ReplaceAll(id, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
	}
}

// quoteFQN quotes each dot-separated segment.
func quoteFQN(d Dialect, fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = quote(d, strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}
