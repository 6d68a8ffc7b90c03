// Command sqlforge is the CLI entrypoint.
package main

import (
	"os"

	"github.com/leapstack-labs/sqlforge/internal/cli"
	_ "github.com/leapstack-labs/sqlforge/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/sqlforge/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/sqlforge/pkg/adapters/sqlite"
)

func main() {
	os.Exit(cli.Execute())
}
