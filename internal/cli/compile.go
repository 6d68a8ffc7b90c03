package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newCompileCmd(a *app) *cobra.Command {
	var writeOut bool

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile every model's template into SQL",
		Long: `Compile expands templates for every model in the project without touching
the database. Compiled SQL is written under the target path, mirroring the
model directory layout.`,
		Example: `  # Compile all models
  sqlforge compile

  # Compile with variable overrides
  sqlforge compile --vars '{start_date: 2026-01-01}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompile(cmd, a, writeOut)
		},
	}

	cmd.Flags().BoolVar(&writeOut, "write", true, "Write compiled SQL under the target path")
	return cmd
}

func runCompile(cmd *cobra.Command, a *app, writeOut bool) error {
	manifest, err := a.manifest()
	if err != nil {
		return err
	}
	eng, cleanup, err := a.engineFor(cmd, manifest, false)
	if err != nil {
		return err
	}
	defer cleanup()

	// Order output by dependencies when the graph builds; a broken model
	// still gets its error reported per row below.
	nodes := manifest.ModelNodes
	if g, gerr := eng.BuildGraph(nodes); gerr == nil {
		if sorted, serr := g.Sort(); serr == nil {
			nodes = sorted
		}
	} else {
		a.logger.Debug("dependency graph unavailable", "error", gerr)
	}

	results, renderErr := eng.RenderAll(cmd.Context(), nodes, false)

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Model", "Status"})

	compiled := 0
	for _, r := range results {
		status := "compiled"
		if r.Err != nil {
			status = fmt.Sprintf("error: %v", r.Err)
		} else {
			compiled++
			if writeOut {
				if err := writeCompiled(a, r.Node.OriginalFilePath, r.SQL); err != nil {
					return err
				}
			}
		}
		t.AppendRow(table.Row{r.Node.Name, status})
	}
	t.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "Compiled %d of %d models\n", compiled, len(results))

	return renderErr
}

func writeCompiled(a *app, relPath, sql string) error {
	path := filepath.Join(a.cfg.TargetPath, "compiled", relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sql+"\n"), 0o644)
}
