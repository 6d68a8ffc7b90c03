package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlforge/internal/rendering"
	"github.com/leapstack-labs/sqlforge/pkg/adapter"
	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

func newQueryCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Render and execute an ad-hoc SQL template",
		Long: `Query renders the given text as a template (so ref(), source(), and macros
work) and executes the result against the target.`,
		Example: `  sqlforge query "select count(*) from {{ ref('dim_customers') }}"
  sqlforge query "select * from {{ source('landing', 'events') }}" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, a, args[0], format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")
	return cmd
}

func runQuery(cmd *cobra.Command, a *app, rawSQL, format string) error {
	manifest, err := a.manifest()
	if err != nil {
		return err
	}
	ad, cleanup, err := a.connect(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	node := &core.Node{
		Name:         "query",
		PackageName:  a.cfg.ProjectName,
		ResourceType: core.ResourceOperation,
		RawSQL:       rawSQL,
	}
	p := &rendering.Provider{Adapter: ad, Execute: true, Logger: a.logger}
	ctx := rendering.Generate(node, a.cfg, manifest, p, nil)
	sql, err := tmpl.Render(rawSQL, ctx, node)
	if err != nil {
		return err
	}

	result, err := ad.Query(cmd.Context(), sql)
	if err != nil {
		return err
	}
	return printResult(cmd, result, format)
}

func printResult(cmd *cobra.Command, result *adapter.Result, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result.ToDict())
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(result.ColumnNames))
	for i, col := range result.ColumnNames {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range result.Rows {
		out := make(table.Row, len(row))
		for i, v := range row {
			if v == nil {
				out[i] = "NULL"
			} else {
				out[i] = fmt.Sprintf("%v", v)
			}
		}
		t.AppendRow(out)
	}
	t.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "(%d rows)\n", len(result.Rows))
	return nil
}
