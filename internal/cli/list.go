package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the project's models, sources, and macros",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, a)
		},
	}
}

func runList(cmd *cobra.Command, a *app) error {
	manifest, err := a.manifest()
	if err != nil {
		return err
	}

	eng, cleanup, err := a.engineFor(cmd, manifest, false)
	if err != nil {
		return err
	}
	defer cleanup()

	deps := map[string][]string{}
	if g, gerr := eng.BuildGraph(manifest.ModelNodes); gerr == nil {
		for _, n := range manifest.ModelNodes {
			deps[n.Name] = g.Parents(n.Name)
		}
	} else {
		a.logger.Debug("dependency graph unavailable", "error", gerr)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Type", "Schema", "Depends On", "Path"})

	for _, n := range manifest.ModelNodes {
		schema := n.Schema
		if schema == "" {
			schema = a.cfg.Credentials.Schema
		}
		t.AppendRow(table.Row{n.Name, n.ResourceType, schema, strings.Join(deps[n.Name], ", "), n.OriginalFilePath})
	}

	sourceKeys := make([]string, 0, len(manifest.SourceNodes))
	for key := range manifest.SourceNodes {
		sourceKeys = append(sourceKeys, key)
	}
	sort.Strings(sourceKeys)
	for _, key := range sourceKeys {
		n := manifest.SourceNodes[key]
		t.AppendRow(table.Row{key, n.ResourceType, n.Schema, "", ""})
	}

	for _, n := range manifest.MacroNodes {
		t.AppendRow(table.Row{n.Name, n.ResourceType, "", "", n.OriginalFilePath})
	}

	t.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "%d models, %d sources, %d macros\n",
		len(manifest.ModelNodes), len(manifest.SourceNodes), len(manifest.MacroNodes))
	return nil
}
