// Package postgres provides a PostgreSQL adapter.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"github.com/leapstack-labs/sqlforge/pkg/adapter"
	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// Adapter implements adapter.Adapter for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
func New(logger *slog.Logger) *Adapter {
	a := &Adapter{}
	a.Logger = logger
	return a
}

// Type returns the adapter's registered name.
func (a *Adapter) Type() string { return "postgres" }

// Connect opens a connection pool to the configured server.
func (a *Adapter) Connect(ctx context.Context, creds core.Credentials) error {
	dsn := buildDSN(creds)
	if a.Logger != nil {
		a.Logger.Debug("connecting to postgres", "host", creds.Host, "database", creds.Database)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Creds = creds
	return nil
}

// buildDSN constructs a key=value connection string from the credentials.
func buildDSN(creds core.Credentials) string {
	host := creds.Host
	if host == "" {
		host = "localhost"
	}
	port := creds.Port
	if port == 0 {
		port = 5432
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=disable", host, port, creds.Database)
	if creds.User != "" {
		dsn += " user=" + creds.User
	}
	if creds.Password != "" {
		dsn += " password=" + creds.Password
	}
	return dsn
}

// GetColumnsInRelation lists the relation's columns from
// information_schema, ordered by ordinal position.
func (a *Adapter) GetColumnsInRelation(ctx context.Context, rel *core.Relation) ([]adapter.Column, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	schema := rel.Schema
	if schema == "" {
		schema = "public"
	}
	query := `
		select column_name, data_type, is_nullable
		from information_schema.columns
		where table_schema = $1 and table_name = $2
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
