package core

import "strings"

// Relation identifies a database object (database.schema.identifier) together
// with the quoting decisions made for each component.
type Relation struct {
	Database   string
	Schema     string
	Identifier string
	Quote      QuotePolicy
}

// NewRelation builds a relation with the given quote policy.
func NewRelation(database, schema, identifier string, quote QuotePolicy) Relation {
	return Relation{
		Database:   database,
		Schema:     schema,
		Identifier: identifier,
		Quote:      quote,
	}
}

// Render returns the SQL representation, quoting each present component
// according to the relation's policy.
func (r Relation) Render() string {
	parts := make([]string, 0, 3)
	if r.Database != "" {
		parts = append(parts, quoteIf(r.Database, r.Quote.Database))
	}
	if r.Schema != "" {
		parts = append(parts, quoteIf(r.Schema, r.Quote.Schema))
	}
	if r.Identifier != "" {
		parts = append(parts, quoteIf(r.Identifier, r.Quote.Identifier))
	}
	return strings.Join(parts, ".")
}

func (r Relation) String() string {
	return r.Render()
}

// ToDict returns the relation as a plain mapping for template contexts.
func (r Relation) ToDict() map[string]any {
	return map[string]any{
		"database":   r.Database,
		"schema":     r.Schema,
		"identifier": r.Identifier,
		"name":       r.Identifier,
	}
}

func quoteIf(s string, quote bool) string {
	if !quote {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
