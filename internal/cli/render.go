package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

func newRenderCmd(a *app) *cobra.Command {
	var capture bool

	cmd := &cobra.Command{
		Use:   "render <model>",
		Short: "Render one model's SQL with templates expanded",
		Long: `Render prints the compiled SQL for a single model. Useful for debugging
template issues before running anything against the warehouse.

With --capture, unresolved names render as empty strings instead of failing,
so partially configured projects can still be inspected.`,
		Example: `  # Render a model
  sqlforge render dim_customers

  # Render and save to a file
  sqlforge render dim_customers > rendered.sql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, a, args[0], capture)
		},
	}

	cmd.Flags().BoolVar(&capture, "capture", false, "Tolerate unresolved names, rendering them empty")
	return cmd
}

func runRender(cmd *cobra.Command, a *app, modelName string, capture bool) error {
	manifest, err := a.manifest()
	if err != nil {
		return err
	}

	var node *core.Node
	for _, n := range manifest.ModelNodes {
		if n.Name == modelName {
			node = n
			break
		}
	}
	if node == nil {
		return fmt.Errorf("model %q not found in project %q", modelName, a.cfg.ProjectName)
	}

	eng, cleanup, err := a.engineFor(cmd, manifest, false)
	if err != nil {
		return err
	}
	defer cleanup()

	var sql string
	if capture {
		sql, err = eng.CaptureReferences(node)
	} else {
		sql, err = eng.RenderNode(node, false)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), sql)
	return nil
}
