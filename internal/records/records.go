// Package records defines the row model shared by the decoder, the novelty
// detector and the storage backends.
//
// A Record is a fixed-shape row: an ordered slice of typed values bound to a
// shared Columns header. Every record decoded from the same layout shares the
// same *Columns, so per-row cost is one []Value and lookups by name go through
// a single case-insensitive index.
package records

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	// Null marks an absent value, including numeric fields that failed coercion.
	Null Kind = iota
	// String marks a trimmed textual value.
	String
	// Number marks a float64 value.
	Number
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case String:
		return "string"
	case Number:
		return "number"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a scalar cell: null, string or number.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
}

// NullValue returns the null Value.
func NullValue() Value { return Value{} }

// StringValue wraps s.
func StringValue(s string) Value { return Value{Kind: String, Str: s} }

// NumberValue wraps f.
func NumberValue(f float64) Value { return Value{Kind: Number, Num: f} }

// IsNull reports whether v holds no value.
func (v Value) IsNull() bool { return v.Kind == Null }

// Any returns the value in the shape database drivers expect: nil, string or
// float64.
func (v Value) Any() any {
	switch v.Kind {
	case String:
		return v.Str
	case Number:
		return v.Num
	default:
		return nil
	}
}

// Text renders v as text. Numbers use the shortest representation that
// round-trips ("123" rather than "123.000000"); null renders as "".
func (v Value) Text() string {
	switch v.Kind {
	case String:
		return v.Str
	case Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return ""
	}
}

func (v Value) String() string {
	if v.Kind == Null {
		return "<null>"
	}
	return v.Text()
}

// FromAny converts a value scanned from a database driver into a Value.
// Integers and floats become numbers, []byte and strings become strings, and
// anything else is rendered with fmt.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return NullValue()
	case Value:
		return t
	case string:
		return StringValue(t)
	case []byte:
		return StringValue(string(t))
	case float64:
		return NumberValue(t)
	case float32:
		return NumberValue(float64(t))
	case int:
		return NumberValue(float64(t))
	case int8:
		return NumberValue(float64(t))
	case int16:
		return NumberValue(float64(t))
	case int32:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case uint:
		return NumberValue(float64(t))
	case uint8:
		return NumberValue(float64(t))
	case uint16:
		return NumberValue(float64(t))
	case uint32:
		return NumberValue(float64(t))
	case uint64:
		return NumberValue(float64(t))
	case bool:
		return StringValue(strconv.FormatBool(t))
	case time.Time:
		return StringValue(t.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return StringValue(t.String())
	default:
		return StringValue(fmt.Sprint(t))
	}
}

// Columns is the ordered header shared by records of the same shape.
type Columns struct {
	names []string
	index map[string]int
}

// NewColumns builds a header. Lookups are case-insensitive; when two names
// fold to the same key the first one wins.
func NewColumns(names ...string) *Columns {
	c := &Columns{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		k := strings.ToLower(n)
		if _, dup := c.index[k]; !dup {
			c.index[k] = i
		}
	}
	return c
}

// Len returns the number of columns.
func (c *Columns) Len() int { return len(c.names) }

// Names returns a copy of the column names in order.
func (c *Columns) Names() []string { return append([]string(nil), c.names...) }

// Name returns the i-th column name.
func (c *Columns) Name(i int) string { return c.names[i] }

// Index returns the position of name, ignoring case.
func (c *Columns) Index(name string) (int, bool) {
	i, ok := c.index[strings.ToLower(name)]
	return i, ok
}

// Record is one row. The zero Record has no columns.
type Record struct {
	cols *Columns
	vals []Value
}

// New returns a record of shape cols with every value null.
func New(cols *Columns) Record {
	return Record{cols: cols, vals: make([]Value, cols.Len())}
}

// Make binds vals to cols. It panics when the lengths differ, which is always
// a programming error.
func Make(cols *Columns, vals []Value) Record {
	if len(vals) != cols.Len() {
		panic(fmt.Sprintf("records: %d values for %d columns", len(vals), cols.Len()))
	}
	return Record{cols: cols, vals: vals}
}

// Columns returns the header the record is bound to.
func (r Record) Columns() *Columns { return r.cols }

// Len returns the number of fields.
func (r Record) Len() int { return len(r.vals) }

// At returns the i-th value.
func (r Record) At(i int) Value { return r.vals[i] }

// Set replaces the i-th value.
func (r Record) Set(i int, v Value) { r.vals[i] = v }

// Get looks a value up by column name. Missing columns report ok=false.
func (r Record) Get(name string) (Value, bool) {
	if r.cols == nil {
		return Value{}, false
	}
	i, ok := r.cols.Index(name)
	if !ok {
		return Value{}, false
	}
	return r.vals[i], true
}

// Values returns the underlying values. Callers must not retain the slice
// past the record's lifetime if they mutate it.
func (r Record) Values() []Value { return r.vals }

// Args converts the record into driver arguments in column order.
func (r Record) Args() []any {
	out := make([]any, len(r.vals))
	for i, v := range r.vals {
		out[i] = v.Any()
	}
	return out
}

// Map renders the record as a name -> value map, mostly for logs and JSON.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.vals))
	for i, v := range r.vals {
		out[r.cols.Name(i)] = v.Any()
	}
	return out
}

// Rows converts a batch of records into the [][]any shape used by bulk
// loaders (pgx CopyFromRows, database/sql statements).
func Rows(recs []Record) [][]any {
	out := make([][]any, len(recs))
	for i, r := range recs {
		out[i] = r.Args()
	}
	return out
}
