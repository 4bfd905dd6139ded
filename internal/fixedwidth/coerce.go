package fixedwidth

import (
	"strconv"
	"strings"

	"layoutsync/internal/records"
)

// IsNumeric reports whether a legacy type is coerced to a number.
func IsNumeric(legacyType string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(legacyType)), "NUMBER")
}

// ParseNumber keeps only digits, '.' and '-' from s and parses the rest as a
// float64. ok is false when nothing parseable remains.
func ParseNumber(s string) (f float64, ok bool) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' {
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Coerce turns a trimmed field into a typed value according to legacyType.
func Coerce(legacyType, raw string) records.Value {
	if !IsNumeric(legacyType) {
		return records.StringValue(raw)
	}
	if f, ok := ParseNumber(raw); ok {
		return records.NumberValue(f)
	}
	return records.NullValue()
}
