// Package fixedwidth decodes fixed-width text files into typed records using
// column specs produced by the layout package.
package fixedwidth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"layoutsync/internal/layout"
	"layoutsync/internal/records"
)

// Result is the outcome of decoding one data file.
type Result struct {
	Records  []records.Record
	Encoding string
	// Adjusted counts lines that were padded or truncated to the layout width.
	Adjusted int
}

// Decoder turns raw bytes into records. The zero value is not usable; build
// one with NewDecoder.
type Decoder struct {
	logger    *zap.Logger
	fallbacks []Charset
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithFallbacks replaces the single-byte chain tried after UTF-8.
func WithFallbacks(cs ...Charset) Option {
	return func(d *Decoder) { d.fallbacks = append([]Charset(nil), cs...) }
}

// NewDecoder returns a Decoder with the default fallback chain.
func NewDecoder(logger *zap.Logger, opts ...Option) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Decoder{logger: logger, fallbacks: DefaultFallbacks()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// candidates builds the ordered chain for one call. An unknown preferred
// name is logged and skipped.
func (d *Decoder) candidates(preferred string) []Charset {
	out := make([]Charset, 0, len(d.fallbacks)+2)
	add := func(cs Charset) {
		for _, have := range out {
			if have.same(cs) {
				return
			}
		}
		out = append(out, cs)
	}
	if strings.TrimSpace(preferred) != "" {
		cs, err := Lookup(preferred)
		if err != nil {
			d.logger.Warn("ignoring preferred encoding", zap.String("encoding", preferred), zap.Error(err))
		} else {
			add(cs)
		}
	}
	add(UTF8)
	for _, cs := range d.fallbacks {
		add(cs)
	}
	return out
}

// Text decodes data under the first candidate that accepts all of it and
// returns the text with any leading BOM removed.
func (d *Decoder) Text(data []byte, preferred string) (string, string, error) {
	var errs []error
	for _, cs := range d.candidates(preferred) {
		text, err := cs.decode(data)
		if err != nil {
			d.logger.Debug("encoding rejected", zap.String("encoding", cs.Name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		return strings.TrimPrefix(text, "\uFEFF"), cs.Name, nil
	}
	return "", "", fmt.Errorf("%w: no candidate encoding fits: %w", ErrDecode, errors.Join(errs...))
}

// Lines splits text into physical lines: "\r" before "\n" is dropped and a
// trailing empty segment left by a final newline is removed. Line numbers are
// the slice index plus one.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Decode picks an encoding, splits data into lines and slices every line
// into one record. Short lines are padded and long lines truncated to the
// layout width; neither is an error. A blank line yields a record of blank
// fields, which the novelty step later skips for its null key.
func (d *Decoder) Decode(data []byte, specs []layout.ColumnSpec, preferred string) (Result, error) {
	if len(specs) == 0 {
		return Result{}, fmt.Errorf("%w: layout has no columns", ErrDecode)
	}
	text, enc, err := d.Text(data, preferred)
	if err != nil {
		return Result{}, err
	}

	width := layout.ExpectedLength(specs)
	cols := records.NewColumns(layout.Names(specs)...)
	numeric := make([]bool, len(specs))
	for i, s := range specs {
		numeric[i] = IsNumeric(s.LegacyType)
	}

	res := Result{Encoding: enc}
	for n, line := range Lines(text) {
		rs := []rune(line)
		if len(rs) != width {
			res.Adjusted++
			d.logger.Debug("line width adjusted",
				zap.Int("line", n+1),
				zap.Int("length", len(rs)),
				zap.Int("expected", width),
			)
			rs = fit(rs, width)
		}

		vals := make([]records.Value, len(specs))
		for i, s := range specs {
			raw := field(rs, s)
			if numeric[i] {
				vals[i] = Coerce("NUMBER", raw)
			} else {
				vals[i] = records.StringValue(raw)
			}
		}
		res.Records = append(res.Records, records.Make(cols, vals))
	}

	d.logger.Info("decoded data file",
		zap.String("encoding", enc),
		zap.Int("records", len(res.Records)),
		zap.Int("adjusted_lines", res.Adjusted),
	)
	return res, nil
}

// DecodeFile reads path and decodes it.
func (d *Decoder) DecodeFile(path string, specs []layout.ColumnSpec, preferred string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read %s: %w", ErrDecode, path, err)
	}
	return d.Decode(data, specs, preferred)
}

func fit(rs []rune, width int) []rune {
	if len(rs) > width {
		return rs[:width]
	}
	out := make([]rune, width)
	copy(out, rs)
	for i := len(rs); i < width; i++ {
		out[i] = ' '
	}
	return out
}

// field slices [Start-1, End) out of rs, clamped to its length, and trims it.
func field(rs []rune, s layout.ColumnSpec) string {
	start := s.Start - 1
	if start < 0 {
		start = 0
	}
	if start >= len(rs) {
		return ""
	}
	end := s.End
	if end > len(rs) {
		end = len(rs)
	}
	if end <= start {
		return ""
	}
	return strings.TrimSpace(string(rs[start:end]))
}
