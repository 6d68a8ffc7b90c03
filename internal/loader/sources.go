package loader

import (
	"gopkg.in/yaml.v3"
)

// SourcesFileName is the per-project source definition file.
const SourcesFileName = "sources.yml"

// Source declares a group of externally managed tables under one schema.
type Source struct {
	Name     string          `yaml:"name"`
	Schema   string          `yaml:"schema"`
	Database string          `yaml:"database"`
	Quoting  map[string]bool `yaml:"quoting"`
	Tables   []SourceTable   `yaml:"tables"`
}

// SourceTable is one table within a source. When set, identifier overrides
// the relation name while the table keeps its declared name for lookups.
type SourceTable struct {
	Name        string `yaml:"name"`
	Ident       string `yaml:"identifier"`
	Description string `yaml:"description"`
}

// Identifier returns the relation identifier, defaulting to the table name.
func (t SourceTable) Identifier() string {
	if t.Ident != "" {
		return t.Ident
	}
	return t.Name
}

// SchemaName returns the schema sources resolve into, defaulting to the
// source name.
func (s Source) SchemaName() string {
	if s.Schema != "" {
		return s.Schema
	}
	return s.Name
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

func parseSources(data []byte) ([]Source, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Sources, nil
}
