// Package sqlite provides a SQLite database adapter.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/sqlforge/pkg/adapter"
	"github.com/leapstack-labs/sqlforge/pkg/core"

	_ "modernc.org/sqlite" // sqlite driver
)

// Adapter implements adapter.Adapter for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
func New(logger *slog.Logger) *Adapter {
	a := &Adapter{}
	a.Logger = logger
	return a
}

// Type returns the adapter's registered name.
func (a *Adapter) Type() string { return "sqlite" }

// Connect opens the database file. Use ":memory:" as the path for an
// in-memory database.
func (a *Adapter) Connect(ctx context.Context, creds core.Credentials) error {
	path := creds.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	a.DB = db
	a.Creds = creds
	return nil
}

// GetColumnsInRelation lists the relation's columns via PRAGMA table_info.
func (a *Adapter) GetColumnsInRelation(ctx context.Context, rel *core.Relation) ([]adapter.Column, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	query := fmt.Sprintf("PRAGMA table_info(%s)", a.QuoteIdentifier(rel.Identifier))
	rows, err := a.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query table info for %s: %w", rel.Identifier, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []adapter.Column
	for rows.Next() {
		var (
			cid          int
			name, ctype  string
			notNull      int
			defaultValue sql.NullString
			pk           int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &defaultValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		cols = append(cols, adapter.Column{
			Name:     name,
			DataType: ctype,
			Nullable: notNull == 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table info: %w", err)
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
