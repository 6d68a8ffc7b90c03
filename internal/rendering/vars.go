package rendering

import (
	"encoding/json"
	"strings"

	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

// Var resolves var() calls. CLI overrides take precedence over node-local
// declarations. String values may themselves contain template expressions and
// are rendered against the surrounding context before being returned.
type Var struct {
	node      *core.Node
	overrides map[string]any
	merged    map[string]any
	ctx       tmpl.Context
}

// NewVar builds a resolver for node with the given CLI overrides. node may be
// nil when rendering configuration files.
func NewVar(node *core.Node, overrides map[string]any) *Var {
	merged := map[string]any{}
	for k, v := range node.LocalVars() {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return &Var{node: node, overrides: overrides, merged: merged}
}

// BindContext attaches the assembled context used to render string values.
func (v *Var) BindContext(ctx tmpl.Context) { v.ctx = ctx }

// Func exposes the resolver as the "var" context callable.
func (v *Var) Func() *tmpl.Func {
	return tmpl.NewFunc("var", v.call)
}

// Has reports whether name is defined.
func (v *Var) Has(name string) bool {
	_, ok := v.merged[name]
	return ok
}

func (v *Var) call(args []any, kwargs map[string]any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, core.NewCompilationError("var takes a name and an optional default", v.node)
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, core.NewCompilationError("var: name must be a string", v.node)
	}

	val, found := v.merged[name]
	if !found {
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, v.undefinedError(name)
	}

	if s, ok := val.(string); ok && strings.Contains(s, "{") && v.ctx != nil {
		rendered, err := tmpl.Render(s, v.ctx, v.node)
		if err != nil {
			return nil, err
		}
		return rendered, nil
	}
	return val, nil
}

// undefinedError reports a missing required var, naming the node and dumping
// the vars that were supplied so the user can see what is actually in scope.
func (v *Var) undefinedError(name string) error {
	nodeName := "<Configuration>"
	if v.node != nil {
		nodeName = v.node.Name
	}
	pretty, err := json.MarshalIndent(v.merged, "", "    ")
	if err != nil {
		pretty = []byte("{}")
	}
	return core.CompilationErrorf(v.node,
		"Required var '%s' not found in config:\nVars supplied to %s = %s", name, nodeName, pretty)
}
