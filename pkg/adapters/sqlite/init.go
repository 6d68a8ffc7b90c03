// Package sqlite provides a SQLite database adapter.
//
// This file registers the adapter with the adapter registry. Import the
// package with a blank identifier to register:
//
//	import _ "github.com/leapstack-labs/sqlforge/pkg/adapters/sqlite"
package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/sqlforge/pkg/adapter"
)

func init() {
	adapter.Register("sqlite", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
