// Package duckdb provides a DuckDB adapter.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/sqlforge/pkg/adapter"
	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// Adapter implements adapter.Adapter for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
func New(logger *slog.Logger) *Adapter {
	a := &Adapter{}
	a.Logger = logger
	return a
}

// Type returns the adapter's registered name.
func (a *Adapter) Type() string { return "duckdb" }

// Connect opens the database file. Use ":memory:" as the path for an
// in-memory database.
func (a *Adapter) Connect(ctx context.Context, creds core.Credentials) error {
	path := creds.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Creds = creds
	return nil
}

// GetColumnsInRelation lists the relation's columns from
// information_schema, ordered by ordinal position.
func (a *Adapter) GetColumnsInRelation(ctx context.Context, rel *core.Relation) ([]adapter.Column, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	schema := rel.Schema
	if schema == "" {
		schema = "main"
	}
	query := `
		select column_name, data_type, is_nullable
		from information_schema.columns
		where table_schema = ? and table_name = ?
		order by ordinal_position`

	rows, err := a.DB.QueryContext(ctx, query, schema, rel.Identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []adapter.Column
	for rows.Next() {
		var col adapter.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("relation %s not found", rel.Render())
	}
	return cols, nil
}

// QuoteIdentifier quotes an identifier with double quotes, doubling any
// embedded quote characters.
func (a *Adapter) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
