package macro

import (
	"errors"

	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

// Generator binds a macro definition node to a runtime context. A generator
// with no context can be constructed early and bound later via WithContext;
// calling before a context is bound is a programming error, not a user one.
type Generator struct {
	node    *core.Node
	context tmpl.Context
	cache   *TemplateCache
}

// NewGenerator builds a generator for node's macro. context may be nil if it
// is bound later.
func NewGenerator(node *core.Node, context tmpl.Context) *Generator {
	return &Generator{node: node, context: context, cache: DefaultCache()}
}

// WithContext returns a copy of the generator bound to ctx. Context builders
// use this to insert one shared definition into many render namespaces.
func (g *Generator) WithContext(ctx tmpl.Context) *Generator {
	bound := *g
	bound.context = ctx
	return &bound
}

// Node returns the macro's owning node.
func (g *Generator) Node() *core.Node { return g.node }

// Func exposes the generator as a context callable under the macro's short
// name.
func (g *Generator) Func() *tmpl.Func {
	return tmpl.NewFunc(tmpl.MacroShortName(tmpl.ResolveName(g.node.Name)), g.Call)
}

// Call executes the macro with the given arguments. Engine failures surface
// as compilation errors attributed to the macro's node, growing the node
// stack as they propagate through nested macro calls; the early-return
// signal is converted into a normal successful result.
func (g *Generator) Call(args []any, kwargs map[string]any) (any, error) {
	if g.context == nil {
		return nil, core.NewInternalError("context is still nil when calling macro %q", g.node.Name)
	}

	m, err := g.lookup()
	if err != nil {
		return nil, err
	}

	result, err := m.Call(args, kwargs)
	if err != nil {
		if ret, ok := tmpl.AsMacroReturn(err); ok {
			return ret.Value, nil
		}
		if ce, ok := core.AsCompilationError(err); ok {
			if fixed, _ := core.AsCompilationError(attributeTo(ce, g.node)); fixed != ce {
				return nil, fixed
			}
			ce.AppendFrame(g.node)
			return nil, ce
		}
		var ie *core.InternalError
		if errors.As(err, &ie) {
			return nil, err
		}
		return nil, core.NewCompilationError(err.Error(), g.node)
	}
	return result, nil
}

// lookup resolves the compiled macro through the template cache.
func (g *Generator) lookup() (*tmpl.Macro, error) {
	t, err := g.cache.GetNodeTemplate(g.node)
	if err != nil {
		return nil, attributeTo(err, g.node)
	}
	module, err := t.MakeModule(g.context)
	if err != nil {
		return nil, attributeTo(err, g.node)
	}
	resolved := tmpl.ResolveName(g.node.Name)
	m, ok := module.Macro(resolved)
	if !ok {
		return nil, core.CompilationErrorf(g.node,
			"macro %q not found in package %q (%s)", g.node.Name, g.node.PackageName, g.node.OriginalFilePath)
	}
	return m, nil
}

// attributeTo rebinds a compilation error to node. The template cache shares
// one compiled template per source file, so parse and module errors initially
// carry whichever of the file's macro nodes compiled it first.
func attributeTo(err error, node *core.Node) error {
	ce, ok := core.AsCompilationError(err)
	if !ok || node == nil || ce.Node == node {
		return err
	}
	if ce.Node == nil || ce.Node.OriginalFilePath == node.OriginalFilePath {
		return core.NewCompilationError(ce.Msg, node)
	}
	return err
}
