// Package layout reads layout descriptors: small comma-separated files that
// describe, one row per column, where each field of a fixed-width data file
// starts and ends and which legacy (Oracle-style) type it carries.
//
// Expected header (extra columns are ignored, order is free):
//
//	Coluna,Tipo,Inicio,Fim
//	CO_PROCEDIMENTO,VARCHAR2(10),1,10
//	VL_SH,NUMBER(12,2),11,22
package layout

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrParse is wrapped by every error returned from Read.
var ErrParse = errors.New("layout parse error")

// Required header fields.
const (
	FieldName  = "Coluna"
	FieldType  = "Tipo"
	FieldStart = "Inicio"
	FieldEnd   = "Fim"
)

// ColumnSpec describes one positional field. Start and End are 1-based and
// inclusive.
type ColumnSpec struct {
	Name       string
	LegacyType string
	Start      int
	End        int
}

// Width returns the number of characters the field spans.
func (c ColumnSpec) Width() int { return c.End - c.Start + 1 }

// ExpectedLength returns the line length implied by specs: the End offset of
// the last spec. It returns 0 for an empty layout.
func ExpectedLength(specs []ColumnSpec) int {
	if len(specs) == 0 {
		return 0
	}
	return specs[len(specs)-1].End
}

// Names returns the column names in layout order.
func Names(specs []ColumnSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}

// Find returns the spec named name, ignoring case.
func Find(specs []ColumnSpec, name string) (ColumnSpec, bool) {
	for _, s := range specs {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return ColumnSpec{}, false
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// IsIdentifier reports whether s is safe to use as a table or column name.
func IsIdentifier(s string) bool { return identRe.MatchString(s) }

// ReadFile opens path and reads it with Read.
func ReadFile(path string) ([]ColumnSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrParse, path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a layout descriptor. Rows are returned in file order; offsets
// are validated per row (Start >= 1, End >= Start) but not across rows, so
// overlapping or out-of-order layouts surface later as decode-time length
// adjustments.
func Read(r io.Reader) ([]ColumnSpec, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty descriptor", ErrParse)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrParse, err)
	}

	idx, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var specs []ColumnSpec
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrParse, line, err)
		}
		if blank(rec) {
			continue
		}
		spec, err := parseRow(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrParse, line, err)
		}
		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no column rows", ErrParse)
	}
	return specs, nil
}

type fieldIndex struct{ name, typ, start, end int }

func headerIndex(header []string) (fieldIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		k := foldHeader(h)
		if _, dup := pos[k]; !dup {
			pos[k] = i
		}
	}

	var missing []string
	get := func(field string) int {
		i, ok := pos[foldHeader(field)]
		if !ok {
			missing = append(missing, field)
			return -1
		}
		return i
	}
	idx := fieldIndex{
		name:  get(FieldName),
		typ:   get(FieldType),
		start: get(FieldStart),
		end:   get(FieldEnd),
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("%w: header missing %s", ErrParse, strings.Join(missing, ", "))
	}
	return idx, nil
}

// foldHeader lowercases, trims, strips a UTF-8 BOM and removes accents so
// that "Início" and "inicio" address the same field.
func foldHeader(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.ToLower(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

func parseRow(rec []string, idx fieldIndex) (ColumnSpec, error) {
	cell := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	spec := ColumnSpec{
		Name:       cell(idx.name),
		LegacyType: strings.ToUpper(cell(idx.typ)),
	}
	if spec.Name == "" {
		return spec, errors.New("empty column name")
	}
	if !IsIdentifier(spec.Name) {
		return spec, fmt.Errorf("invalid column name %q", spec.Name)
	}
	if spec.LegacyType == "" {
		return spec, fmt.Errorf("column %s: empty type", spec.Name)
	}

	var err error
	if spec.Start, err = parseOffset(cell(idx.start)); err != nil {
		return spec, fmt.Errorf("column %s: %s: %v", spec.Name, FieldStart, err)
	}
	if spec.End, err = parseOffset(cell(idx.end)); err != nil {
		return spec, fmt.Errorf("column %s: %s: %v", spec.Name, FieldEnd, err)
	}
	if spec.Start < 1 {
		return spec, fmt.Errorf("column %s: start %d < 1", spec.Name, spec.Start)
	}
	if spec.End < spec.Start {
		return spec, fmt.Errorf("column %s: end %d < start %d", spec.Name, spec.End, spec.Start)
	}
	return spec, nil
}

// parseOffset accepts plain integers and integral floats such as "12.0",
// which spreadsheet exports tend to produce.
func parseOffset(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty offset")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
