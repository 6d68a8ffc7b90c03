// Package engine orchestrates template rendering across the node graph:
// single-node renders, concurrent whole-graph renders, parse-time reference
// capture, and execute-macro dispatch.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlforge/internal/macro"
	"github.com/leapstack-labs/sqlforge/internal/rendering"
	"github.com/leapstack-labs/sqlforge/pkg/adapter"
	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

// Engine renders nodes against contexts built from one runtime config and
// manifest. The adapter may be nil for parse-only use.
type Engine struct {
	cfg      *core.RuntimeConfig
	manifest core.Manifest
	adapter  adapter.Adapter
	logger   *slog.Logger
}

// New builds an engine. logger may be nil.
func New(cfg *core.RuntimeConfig, manifest core.Manifest, a adapter.Adapter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, manifest: manifest, adapter: a, logger: logger}
}

// RenderNode renders a node's raw template into SQL. execute controls
// whether adapter calls inside the template reach the database.
func (e *Engine) RenderNode(node *core.Node, execute bool) (string, error) {
	p := &rendering.Provider{Adapter: e.adapter, Execute: execute, Logger: e.logger}
	ctx := rendering.Generate(node, e.cfg, e.manifest, p, node.NodeConfig)

	e.logger.Debug("rendering node", "node", node.Name, "package", node.PackageName)
	out, err := tmpl.Render(node.RawSQL, ctx, node)
	if err != nil {
		return "", err
	}
	node.InjectedSQL = out
	return out, nil
}

// CaptureReferences renders node in capture mode and reports every undefined
// name path the template touches. Nothing reaches the database; unresolved
// values render as empty strings unless the template forces one.
func (e *Engine) CaptureReferences(node *core.Node) (string, error) {
	p := &rendering.Provider{Adapter: e.adapter, Execute: false, Logger: e.logger}
	ctx := rendering.Generate(node, e.cfg, e.manifest, p, node.NodeConfig)
	return tmpl.GetRendered(node.RawSQL, ctx, node, tmpl.WithCapture())
}

// ExecuteMacro runs a named macro from the manifest under an execute-macro
// context and returns its result.
func (e *Engine) ExecuteMacro(node *core.Node, macroName string, args []any, kwargs map[string]any) (any, error) {
	target, ok := e.findMacro(macroName)
	if !ok {
		return nil, core.CompilationErrorf(node, "macro %q not found in any package", macroName)
	}

	p := &rendering.Provider{Adapter: e.adapter, Execute: true, Logger: e.logger}
	ctx := rendering.GenerateExecuteMacro(node, e.cfg, e.manifest, p)
	return macro.NewGenerator(target, ctx).Call(args, kwargs)
}

// MaterializationMacro finds the materialization implementation for the
// engine's adapter, falling back to the adapter-independent default.
func (e *Engine) MaterializationMacro(name string) (*core.Node, error) {
	adapterType := tmpl.DefaultAdapter
	if e.adapter != nil {
		adapterType = e.adapter.Type()
	}

	if m, ok := e.findMacro(tmpl.MaterializationMacroName(name, adapterType)); ok {
		return m, nil
	}
	if m, ok := e.findMacro(tmpl.MaterializationMacroName(name, tmpl.DefaultAdapter)); ok {
		return m, nil
	}
	return nil, fmt.Errorf("no materialization %q for adapter %q", name, adapterType)
}

// findMacro locates a macro node by name, trying the resolved form too.
func (e *Engine) findMacro(name string) (*core.Node, bool) {
	if e.manifest == nil {
		return nil, false
	}
	resolved := tmpl.ResolveName(name)
	for _, m := range e.manifest.Macros() {
		if m.Name == name || m.Name == resolved || tmpl.ResolveName(m.Name) == resolved {
			return m, true
		}
	}
	return nil, false
}
