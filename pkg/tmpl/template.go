// Package tmpl implements the template language used to author parameterized
// SQL models: a tag/block surface grammar with macro, materialization, and
// docs definition forms, rendered against a flat namespace. Expression
// evaluation inside tags is delegated to Starlark.
package tmpl

import (
	"errors"
	"os"
	"sort"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// EnvMacroDebugging names the environment variable that, when set, dumps
// template source to a temp file at parse time. Diagnostic only; this can
// write a lot of files if you aren't careful.
const EnvMacroDebugging = "SQLFORGE_MACRO_DEBUGGING"

// Env configures parsing and rendering: the node under compilation (for
// error attribution), the undefined-reference capture mode, and the table of
// registered block keywords.
type Env struct {
	node       *core.Node
	capture    bool
	extensions map[string]ParseFunc
}

// Option configures an Env.
type Option func(*Env)

// WithNode attributes parse and render errors to node.
func WithNode(node *core.Node) Option {
	return func(e *Env) { e.node = node }
}

// WithCapture enables undefined-reference capture: unresolved names become
// Unresolved placeholders instead of errors.
func WithCapture() Option {
	return func(e *Env) { e.capture = true }
}

// NewEnv builds an environment with the standard block keywords (macro,
// materialization, docs) registered.
func NewEnv(opts ...Option) *Env {
	env := &Env{
		extensions: map[string]ParseFunc{
			"macro":           parseMacro,
			"materialization": parseMaterialization,
			"docs":            parseDocs,
		},
	}
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// RegisterBlock registers a custom block keyword with its parse callback.
// Registering a base-grammar keyword is an error surfaced at parse time via
// normal dispatch, so callers get a deterministic table.
func (e *Env) RegisterBlock(keyword string, fn ParseFunc) {
	e.extensions[keyword] = fn
}

// Node returns the node this environment is bound to, if any.
func (e *Env) Node() *core.Node { return e.node }

// Parse compiles template source into a Template.
func (e *Env) Parse(text string) (*Template, error) {
	if os.Getenv(EnvMacroDebugging) != "" {
		dumpSource(text)
	}
	toks, err := tokenize(text)
	if err != nil {
		return nil, attribute(err, e.node)
	}
	p := &Parser{env: e, toks: toks}
	root, err := p.parseAll()
	if err != nil {
		return nil, attribute(err, e.node)
	}
	return &Template{env: e, root: root, src: text}, nil
}

// Template is a compiled fragment. It is immutable after parsing; renders
// and module builds against different contexts may proceed concurrently.
type Template struct {
	env  *Env
	root []Stmt
	src  string
}

// Source returns the original template text.
func (t *Template) Source() string { return t.src }

// Render executes the template against ctx and returns the produced text.
func (t *Template) Render(ctx Context) (string, error) {
	r, err := newRenderer(t.env, ctx)
	if err != nil {
		return "", err
	}
	if err := r.execStmts(t.root); err != nil {
		return "", attribute(err, t.env.node)
	}
	return r.out.String(), nil
}

// MakeModule executes the template's module-level statements against ctx and
// returns the resulting namespace of named callable fragments. Macros are
// registered by resolved name as definitions execute, which is what lets
// files reference macros from other files regardless of load order.
func (t *Template) MakeModule(ctx Context) (*Module, error) {
	r, err := newRenderer(t.env, ctx)
	if err != nil {
		return nil, err
	}
	if err := r.execStmts(t.root); err != nil {
		return nil, attribute(err, t.env.node)
	}
	return &Module{macros: r.macros, output: r.out.String()}, nil
}

// Module is the namespace a template instantiation produces: zero or more
// named callable fragments plus any module-level output.
type Module struct {
	macros map[string]*Macro
	output string
}

// Macro looks up a callable fragment by resolved name.
func (m *Module) Macro(resolved string) (*Macro, bool) {
	mac, ok := m.macros[resolved]
	return mac, ok
}

// MacroNames returns the resolved names defined by the module, sorted.
func (m *Module) MacroNames() []string {
	names := make([]string, 0, len(m.macros))
	for name := range m.macros {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Output returns the module-level rendered text.
func (m *Module) Output() string { return m.output }

// Parse validates template source without retaining the result.
func Parse(text string, node *core.Node) error {
	_, err := NewEnv(WithNode(node)).Parse(text)
	return err
}

// Render parses and renders text against ctx, attributing failures to node.
func Render(text string, ctx Context, node *core.Node) (string, error) {
	return GetRendered(text, ctx, node)
}

// GetRendered parses and renders text against ctx. Options extend the
// environment, e.g. WithCapture for static-analysis passes.
func GetRendered(text string, ctx Context, node *core.Node, opts ...Option) (string, error) {
	env := NewEnv(append([]Option{WithNode(node)}, opts...)...)
	t, err := env.Parse(text)
	if err != nil {
		return "", err
	}
	return t.Render(ctx)
}

// attribute ensures err is part of the compilation-failure taxonomy and
// carries the node. Early-return signals escaping a plain render are user
// errors, not control flow.
func attribute(err error, node *core.Node) error {
	if _, ok := AsMacroReturn(err); ok {
		return core.CompilationErrorf(node, "return() called outside of a macro invocation")
	}
	var ce *core.CompilationError
	if errors.As(err, &ce) {
		if ce.Node == nil && node != nil {
			ce.Node = node
			ce.Stack = append(ce.Stack, node)
		}
		return ce
	}
	var ie *core.InternalError
	if errors.As(err, &ie) {
		return ie
	}
	return core.NewCompilationError(err.Error(), node)
}

// dumpSource writes template source to a temp file for debugging.
func dumpSource(text string) {
	f, err := os.CreateTemp("", "sqlforge-macro-compiled-*.sql")
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(text)
}
