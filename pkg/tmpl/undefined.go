package tmpl

import (
	"strings"

	"github.com/leapstack-labs/sqlforge/pkg/core"
	"go.starlark.net/starlark"
)

// Unresolved is the placeholder bound to undefined names in capture mode.
// Instead of failing, each attribute access or call extends the recorded
// access path and returns another placeholder, so static-analysis passes can
// recover `package.macro_name(...)` references without executing anything.
// Forcing the value raises a compilation error naming the undefined name and
// the node under analysis.
type Unresolved struct {
	node *core.Node
	// pkg holds the package-qualifier slot: after the first attribute access
	// the initial name becomes the package and the attribute the name.
	pkg  string
	name string
	path []string
}

// NewUnresolved builds a placeholder for an undefined reference to name
// within node.
func NewUnresolved(node *core.Node, name string) *Unresolved {
	pkg := ""
	if node != nil {
		pkg = node.PackageName
	}
	return &Unresolved{node: node, pkg: pkg, name: name, path: []string{name}}
}

// Node returns the node under analysis.
func (u *Unresolved) Node() *core.Node { return u.node }

// PackageName returns the captured package qualifier.
func (u *Unresolved) PackageName() string { return u.pkg }

// CapturedName returns the last name segment of the access path.
func (u *Unresolved) CapturedName() string { return u.name }

// Path returns the full dotted access path.
func (u *Unresolved) Path() []string { return u.path }

func (u *Unresolved) String() string        { return "" }
func (u *Unresolved) Type() string          { return "unresolved" }
func (u *Unresolved) Freeze()               {}
func (u *Unresolved) Truth() starlark.Bool  { return starlark.True }
func (u *Unresolved) Hash() (uint32, error) { return 0, nil }

// Attr extends the access path: the previously captured name becomes the
// package qualifier and the attribute becomes the captured name.
func (u *Unresolved) Attr(name string) (starlark.Value, error) {
	next := &Unresolved{
		node: u.node,
		pkg:  u.name,
		name: name,
		path: append(append([]string{}, u.path...), name),
	}
	return next, nil
}

func (u *Unresolved) AttrNames() []string { return nil }

// Name implements starlark.Callable.
func (u *Unresolved) Name() string { return u.name }

// CallInternal returns the placeholder itself, so chained and invoked
// undefined access never raises until the value is truly forced.
func (u *Unresolved) CallInternal(_ *starlark.Thread, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	return u, nil
}

// Get implements starlark.Mapping; subscript access propagates the
// placeholder like attribute access does, without extending the path.
func (u *Unresolved) Get(_ starlark.Value) (starlark.Value, bool, error) {
	return u, true, nil
}

// ForceError is raised when the placeholder is forced: used in a boolean
// context, iterated, or copied. The message matches the engine's own
// undefined-variable error.
func (u *Unresolved) ForceError() error {
	err := core.CompilationErrorf(u.node, "'%s' is undefined", u.name)
	if len(u.path) > 1 {
		err.Msg += " (in " + strings.Join(u.path, ".") + ")"
	}
	return err
}
