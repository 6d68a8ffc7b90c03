// Package postgres provides a PostgreSQL adapter.
//
// This file registers the adapter with the adapter registry. Import the
// package with a blank identifier to register:
//
//	import _ "github.com/leapstack-labs/sqlforge/pkg/adapters/postgres"
package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/sqlforge/pkg/adapter"
)

func init() {
	adapter.Register("postgres", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
