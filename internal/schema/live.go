// Package schema compares layout descriptors with the live schema of the
// destination table and reports what differs. It never changes the database:
// a Diff is a report, and deciding what is fatal is up to the caller.
package schema

import "strings"

// LiveColumn is one column of a table as reported by the database.
type LiveColumn struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declared_type"`
	Position     int    `json:"position"` // 1-based ordinal, 0 when unknown
}

// nameSet indexes names case-insensitively, remembering the first spelling.
type nameSet map[string]string

func newNameSet(names []string) nameSet {
	s := make(nameSet, len(names))
	for _, n := range names {
		k := strings.ToLower(n)
		if _, ok := s[k]; !ok {
			s[k] = n
		}
	}
	return s
}

func (s nameSet) has(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}
