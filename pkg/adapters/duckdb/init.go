// Package duckdb provides a DuckDB adapter.
//
// This file registers the adapter with the adapter registry. Import the
// package with a blank identifier to register:
//
//	import _ "github.com/leapstack-labs/sqlforge/pkg/adapters/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/sqlforge/pkg/adapter"
)

func init() {
	adapter.Register("duckdb", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
