package fixedwidth

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// ErrDecode is wrapped when no candidate encoding accepts the whole file.
var ErrDecode = errors.New("decode error")

// Charset is one entry of the decoding chain.
//
// A nil Encoding means UTF-8, which rejects invalid byte sequences. For
// single-byte charmaps RejectUndefined fails the file when any byte maps to
// U+FFFD, and RejectC1 fails it when any byte maps to a C1 control
// (U+0080..U+009F); real text in these charsets does not contain C1 controls,
// so their presence means the bytes were written in some other charset.
type Charset struct {
	Name            string
	Encoding        encoding.Encoding
	RejectUndefined bool
	RejectC1        bool
}

// UTF8 is always tried right after the caller's preferred encoding.
var UTF8 = Charset{Name: "utf-8"}

// DefaultFallbacks is the single-byte chain tried after UTF-8, in order. The
// last entry accepts every byte sequence.
func DefaultFallbacks() []Charset {
	return []Charset{
		{Name: "windows-1252", Encoding: charmap.Windows1252, RejectUndefined: true, RejectC1: true},
		{Name: "iso-8859-15", Encoding: charmap.ISO8859_15, RejectUndefined: true, RejectC1: true},
		{Name: "iso-8859-1", Encoding: charmap.ISO8859_1},
	}
}

// aliases covers common spellings the IANA registry does not list.
var aliases = map[string]string{
	"cp1252":  "windows-1252",
	"win1252": "windows-1252",
	"latin1":  "iso-8859-1",
	"latin-1": "iso-8859-1",
	"latin9":  "iso-8859-15",
	"latin-9": "iso-8859-15",
}

// Lookup resolves a user-supplied encoding name through the IANA registry.
// Charsets obtained this way only reject undefined bytes: the caller asked
// for them explicitly, so C1 controls are taken at face value.
func Lookup(name string) (Charset, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return Charset{}, errors.New("empty encoding name")
	}
	if a, ok := aliases[n]; ok {
		n = a
	}
	switch strings.NewReplacer("-", "", "_", "").Replace(n) {
	case "utf8":
		return UTF8, nil
	}

	enc, err := ianaindex.IANA.Encoding(n)
	if err != nil {
		return Charset{}, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return Charset{}, fmt.Errorf("unsupported encoding %q", name)
	}
	return Charset{Name: charsetName(enc, n), Encoding: enc, RejectUndefined: true}, nil
}

// charsetName prefers the MIME name (ISO-8859-1), which is what reports and
// the fallback chain use, over the IANA primary name (ISO_8859-1:1987).
func charsetName(enc encoding.Encoding, fallback string) string {
	for _, idx := range []*ianaindex.Index{ianaindex.MIME, ianaindex.IANA} {
		if name, err := idx.Name(enc); err == nil && name != "" {
			return strings.ToLower(name)
		}
	}
	return fallback
}

// same reports whether cs and other decode identically. UTF-8 has a nil
// Encoding.
func (cs Charset) same(other Charset) bool {
	if cs.Encoding == nil || other.Encoding == nil {
		return cs.Encoding == nil && other.Encoding == nil
	}
	return cs.Name == other.Name || sameEncoding(cs.Encoding, other.Encoding)
}

func sameEncoding(a, b encoding.Encoding) (eq bool) {
	// Some encodings have non-comparable dynamic types.
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// decode converts data to text under cs or reports why cs does not fit.
func (cs Charset) decode(data []byte) (string, error) {
	if cs.Encoding == nil {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s: invalid byte sequence", cs.Name)
		}
		return string(data), nil
	}

	out, err := cs.Encoding.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", cs.Name, err)
	}
	text := string(out)
	if cs.RejectUndefined || cs.RejectC1 {
		for i, r := range text {
			if cs.RejectUndefined && r == utf8.RuneError {
				return "", fmt.Errorf("%s: undefined byte near offset %d", cs.Name, i)
			}
			if cs.RejectC1 && r >= 0x80 && r <= 0x9f {
				return "", fmt.Errorf("%s: control character U+%04X near offset %d", cs.Name, r, i)
			}
		}
	}
	return text, nil
}
