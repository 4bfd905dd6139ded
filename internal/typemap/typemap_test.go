package typemap

import "testing"

func TestFamily(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"VARCHAR2":          "VARCHAR",
		"varchar2(10)":      "VARCHAR",
		"VARCHAR2(10 BYTE)": "VARCHAR",
		"NUMBER":            "NUMERIC",
		"number(12,2)":      "NUMERIC",
		"CHAR(1)":           "CHAR",
		"date":              "DATE",
		"clob":              "CLOB",
		"  timestamp(6) ":   "TIMESTAMP",
	}
	for in, want := range cases {
		if got := Family(in); got != want {
			t.Errorf("Family(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonical(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"character varying":      "VARCHAR",
		"character varying(255)": "VARCHAR",
		"VARCHAR(255)":           "VARCHAR",
		"nvarchar":               "VARCHAR",
		"bpchar":                 "CHAR",
		"character":              "CHAR",
		"numeric":                "NUMERIC",
		"numeric(10,2)":          "NUMERIC",
		"decimal(10,2)":          "NUMERIC",
		"date":                   "DATE",
		"text":                   "TEXT",
		"integer":                "INTEGER",
	}
	for in, want := range cases {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatches(t *testing.T) {
	t.Parallel()

	type tc struct {
		mode   Mode
		legacy string
		live   string
		want   bool
	}
	cases := []tc{
		{ModeFamily, "NUMBER", "numeric", true},
		{ModeFamily, "NUMBER(5)", "NUMERIC(10,2)", true},
		{ModeFamily, "VARCHAR2", "character varying", true},
		{ModeFamily, "VARCHAR2(10)", "VARCHAR(255)", true},
		{ModeFamily, "CHAR", "character", true},
		{ModeFamily, "CHAR", "character varying", false},
		{ModeFamily, "DATE", "timestamp without time zone", false},
		{ModeFamily, "NUMBER", "integer", false},
		{ModeFamily, "TEXT", "text", true},

		{ModePrefix, "VARCHAR2", "character varying", true},
		{ModePrefix, "NUMBER", "numeric", true},
		{ModePrefix, "CHAR", "character", true},
		// The prefix check is looser: "character varying" starts with "character".
		{ModePrefix, "CHAR", "character varying", true},
		{ModePrefix, "NUMBER", "integer", false},
		{ModePrefix, "DATE", "date", true},
		{ModePrefix, "CLOB", "clob", true},
	}
	for _, c := range cases {
		if got := Matches(c.mode, c.legacy, c.live); got != c.want {
			t.Errorf("Matches(%s, %q, %q) = %v, want %v", c.mode, c.legacy, c.live, got, c.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Mode{"": ModeFamily, "family": ModeFamily, " PREFIX ": ModePrefix} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("fuzzy"); err == nil {
		t.Errorf("ParseMode(fuzzy) should fail")
	}
}
