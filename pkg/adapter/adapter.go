// Package adapter defines the contract database adapters implement and the
// template-facing wrappers that expose an adapter inside a rendering context.
// Concrete implementations live in pkg/adapters/ subdirectories and register
// themselves via init().
package adapter

import (
	"context"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// Adapter is the interface all database adapters implement.
type Adapter interface {
	// Type returns the adapter's registered name, e.g. "sqlite".
	Type() string

	// Connect establishes a connection using the provided credentials.
	Connect(ctx context.Context, creds core.Credentials) error

	// Close releases the connection and any associated resources.
	Close() error

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string) error

	// Query runs a statement and materializes its full result set.
	Query(ctx context.Context, sql string) (*Result, error)

	// GetColumnsInRelation lists the columns of rel, in ordinal order.
	GetColumnsInRelation(ctx context.Context, rel *core.Relation) ([]Column, error)

	// QuoteIdentifier quotes a single identifier component for this database.
	QuoteIdentifier(name string) string
}

// Column describes one column of a relation.
type Column struct {
	Name     string
	DataType string
	Nullable bool
}

// ToDict returns the template-facing shape of the column.
func (c Column) ToDict() map[string]any {
	return map[string]any{
		"name":      c.Name,
		"data_type": c.DataType,
		"nullable":  c.Nullable,
	}
}

// Result is a fully materialized query result, the unit stored by
// store_result and retrieved by load_result inside templates.
type Result struct {
	ColumnNames []string
	Rows        [][]any
	Status      string
}

// ToDict returns the template-facing shape of the result: column names, row
// tuples, and the status string reported by the database.
func (r *Result) ToDict() map[string]any {
	rows := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		m := make(map[string]any, len(r.ColumnNames))
		for j, name := range r.ColumnNames {
			if j < len(row) {
				m[name] = row[j]
			}
		}
		rows[i] = m
	}
	cols := make([]any, len(r.ColumnNames))
	for i, name := range r.ColumnNames {
		cols[i] = name
	}
	return map[string]any{
		"column_names": cols,
		"rows":         rows,
		"status":       r.Status,
	}
}
