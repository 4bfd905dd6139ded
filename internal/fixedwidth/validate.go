package fixedwidth

import (
	"fmt"
	"strconv"

	"layoutsync/internal/layout"
)

// IssueKind classifies a strict-mode finding.
type IssueKind string

const (
	IssueLength  IssueKind = "length"
	IssueNumeric IssueKind = "numeric"
)

// MaxIssues bounds the number of findings Validate returns.
const MaxIssues = 200

// LineIssue is one strict-mode finding. Line is 1-based over physical lines.
type LineIssue struct {
	Line    int       `json:"line"`
	Kind    IssueKind `json:"kind"`
	Column  string    `json:"column,omitempty"`
	Message string    `json:"message"`
}

func (i LineIssue) String() string {
	if i.Column != "" {
		return fmt.Sprintf("line %d: %s [%s]", i.Line, i.Message, i.Column)
	}
	return fmt.Sprintf("line %d: %s", i.Line, i.Message)
}

// Validate checks data against specs without the lenient repairs Decode
// applies: every line, blank ones included, must be exactly the layout width
// and every NUMBER field must parse as a number once trimmed. It returns the findings
// (at most MaxIssues), the encoding used and any decode error.
func (d *Decoder) Validate(data []byte, specs []layout.ColumnSpec, preferred string) ([]LineIssue, string, error) {
	if len(specs) == 0 {
		return nil, "", fmt.Errorf("%w: layout has no columns", ErrDecode)
	}
	text, enc, err := d.Text(data, preferred)
	if err != nil {
		return nil, "", err
	}

	width := layout.ExpectedLength(specs)
	var issues []LineIssue
	add := func(li LineIssue) bool {
		issues = append(issues, li)
		return len(issues) < MaxIssues
	}

	for n, line := range Lines(text) {
		rs := []rune(line)
		if len(rs) != width {
			if !add(LineIssue{
				Line:    n + 1,
				Kind:    IssueLength,
				Message: fmt.Sprintf("length %d, expected %d", len(rs), width),
			}) {
				break
			}
			continue
		}
		for _, s := range specs {
			if !IsNumeric(s.LegacyType) {
				continue
			}
			raw := field(rs, s)
			if _, err := strconv.ParseFloat(raw, 64); err != nil {
				if !add(LineIssue{
					Line:    n + 1,
					Kind:    IssueNumeric,
					Column:  s.Name,
					Message: fmt.Sprintf("invalid number %q", raw),
				}) {
					return issues, enc, nil
				}
			}
		}
	}
	return issues, enc, nil
}
