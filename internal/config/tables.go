package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TableConfig holds the settings of one table.
type TableConfig struct {
	PrimaryKey string `yaml:"primary_key"`
	Encoding   string `yaml:"encoding"`
}

// Registry maps table names to their settings. Lookups ignore case.
//
//	default_primary_key: co_procedimento
//	tables:
//	  tb_procedimento: {primary_key: co_procedimento, encoding: windows-1252}
//	  tb_cid:          {primary_key: co_cid}
type Registry struct {
	DefaultPrimaryKey string                 `yaml:"default_primary_key"`
	Tables            map[string]TableConfig `yaml:"tables"`
}

// ParseRegistry decodes a registry document. Unknown fields are rejected so
// typos do not silently fall back to defaults.
func ParseRegistry(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	reg := &Registry{}
	if err := dec.Decode(reg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("tables registry: %w", err)
	}
	return reg, nil
}

// LoadRegistry reads the registry at path. An empty path yields an empty
// registry.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return &Registry{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tables registry: %w", err)
	}
	defer f.Close()
	return ParseRegistry(f)
}

// Registry loads the table registry named by TablesFile and fills in the
// default primary key from PrimaryKey when the file does not set one.
func (c *Config) Registry() (*Registry, error) {
	reg, err := LoadRegistry(c.TablesFile)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reg.DefaultPrimaryKey) == "" {
		reg.DefaultPrimaryKey = c.PrimaryKey
	}
	return reg, nil
}

func (r *Registry) lookup(table string) (TableConfig, bool) {
	if tc, ok := r.Tables[table]; ok {
		return tc, true
	}
	for name, tc := range r.Tables {
		if strings.EqualFold(name, table) {
			return tc, true
		}
	}
	return TableConfig{}, false
}

// PrimaryKey returns the key column configured for table.
func (r *Registry) PrimaryKey(table string) string {
	if tc, ok := r.lookup(table); ok && strings.TrimSpace(tc.PrimaryKey) != "" {
		return strings.TrimSpace(tc.PrimaryKey)
	}
	if k := strings.TrimSpace(r.DefaultPrimaryKey); k != "" {
		return k
	}
	return DefaultPrimaryKey
}

// Encoding returns the encoding configured for table, or "".
func (r *Registry) Encoding(table string) string {
	tc, _ := r.lookup(table)
	return strings.TrimSpace(tc.Encoding)
}
