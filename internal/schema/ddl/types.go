package ddl

// ColumnDef is one column of a table definition.
//
// Type is a family from typemap.Family (VARCHAR, CHAR, NUMERIC, DATE or an
// unmapped legacy name); Size is the parenthesized qualifier without the
// parentheses, e.g. "10" or "8,2", and may be empty.
type ColumnDef struct {
	Name       string
	Type       string
	Size       string
	Nullable   bool
	PrimaryKey bool
}

// TableDef holds the table name (optionally schema qualified, "schema.table")
// and its ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}
