package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

func newRunOperationCmd(a *app) *cobra.Command {
	var argsYAML string

	cmd := &cobra.Command{
		Use:   "run-operation <macro>",
		Short: "Invoke a macro directly against the target",
		Long: `Run-operation executes one macro from the project with a live database
connection. Macro arguments are passed as a YAML mapping via --args.`,
		Example: `  sqlforge run-operation vacuum_tables
  sqlforge run-operation grant_select --args '{role: reporter}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, a, args[0], argsYAML)
		},
	}

	cmd.Flags().StringVar(&argsYAML, "args", "", "YAML mapping of macro arguments")
	return cmd
}

func runOperation(cmd *cobra.Command, a *app, macroName, argsYAML string) error {
	kwargs := map[string]any{}
	if argsYAML != "" {
		if err := yaml.Unmarshal([]byte(argsYAML), &kwargs); err != nil {
			return fmt.Errorf("invalid --args value: %w", err)
		}
	}

	manifest, err := a.manifest()
	if err != nil {
		return err
	}
	eng, cleanup, err := a.engineFor(cmd, manifest, true)
	if err != nil {
		return err
	}
	defer cleanup()

	node := &core.Node{
		Name:         macroName,
		PackageName:  a.cfg.ProjectName,
		ResourceType: core.ResourceOperation,
	}
	result, err := eng.ExecuteMacro(node, macroName, nil, kwargs)
	if err != nil {
		return err
	}
	if s, ok := result.(string); ok && s != "" {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return nil
}
