package tmpl

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlforge/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// renderer executes parsed statements against a namespace. One renderer
// serves one render or module build; it holds no state shared across calls.
type renderer struct {
	env     *Env
	globals starlark.StringDict
	scopes  []starlark.StringDict
	out     *strings.Builder
	macros  map[string]*Macro
}

func newRenderer(env *Env, ctx Context) (*renderer, error) {
	globals := make(starlark.StringDict, len(ctx))
	for name, v := range ctx {
		sv, err := toStarlark(v)
		if err != nil {
			return nil, core.CompilationErrorf(env.node, "context value %q: %s", name, err)
		}
		globals[name] = sv
	}
	return &renderer{
		env:     env,
		globals: globals,
		out:     &strings.Builder{},
		macros:  make(map[string]*Macro),
	}, nil
}

// combinedScope flattens globals and scope frames into one namespace, later
// frames shadowing earlier ones.
func (r *renderer) combinedScope() starlark.StringDict {
	combined := make(starlark.StringDict, len(r.globals)+8)
	for k, v := range r.globals {
		combined[k] = v
	}
	for _, scope := range r.scopes {
		for k, v := range scope {
			combined[k] = v
		}
	}
	return combined
}

func (r *renderer) setLocal(name string, v starlark.Value) {
	if len(r.scopes) == 0 {
		r.globals[name] = v
		return
	}
	r.scopes[len(r.scopes)-1][name] = v
}

func (r *renderer) execStmts(stmts []Stmt) error {
	for _, s := range stmts {
		if err := r.execStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) execStmt(s Stmt) error {
	switch stmt := s.(type) {
	case *TextStmt:
		r.out.WriteString(stmt.Text)
		return nil

	case *OutputStmt:
		v, err := r.evalExpr(stmt.Expr, stmt.Line)
		if err != nil {
			return err
		}
		r.out.WriteString(formatOutput(v))
		return nil

	case *DoStmt:
		_, err := r.evalExpr(stmt.Expr, stmt.Line)
		return err

	case *SetStmt:
		v, err := r.evalExpr(stmt.Expr, stmt.Line)
		if err != nil {
			return err
		}
		r.setLocal(stmt.Name, v)
		return nil

	case *SetBlockStmt:
		text, err := r.renderToString(stmt.Body)
		if err != nil {
			return err
		}
		r.setLocal(stmt.Name, starlark.String(text))
		return nil

	case *IfStmt:
		return r.execIf(stmt)

	case *ForStmt:
		return r.execFor(stmt)

	case *MacroDef:
		r.defineMacro(stmt)
		return nil

	default:
		return core.NewInternalError("unknown statement type %T", s)
	}
}

func (r *renderer) execIf(stmt *IfStmt) error {
	for _, branch := range stmt.Branches {
		v, err := r.evalExpr(branch.Cond, branch.Line)
		if err != nil {
			return err
		}
		if u, ok := v.(*Unresolved); ok {
			return u.ForceError()
		}
		if err := r.forceCondition(branch.Cond); err != nil {
			return err
		}
		if bool(v.Truth()) {
			return r.execStmts(branch.Body)
		}
	}
	return r.execStmts(stmt.Else)
}

func (r *renderer) execFor(stmt *ForStmt) error {
	v, err := r.evalExpr(stmt.Iter, stmt.Line)
	if err != nil {
		return err
	}
	if u, ok := v.(*Unresolved); ok {
		return u.ForceError()
	}
	iter := starlark.Iterate(v)
	if iter == nil {
		return core.CompilationErrorf(r.env.node, "%s value is not iterable on line %d", v.Type(), stmt.Line)
	}
	var items []starlark.Value
	var item starlark.Value
	for iter.Next(&item) {
		items = append(items, item)
	}
	iter.Done()

	for i, elem := range items {
		scope := make(starlark.StringDict, len(stmt.Vars)+1)
		if err := bindLoopVars(scope, stmt.Vars, elem); err != nil {
			return core.CompilationErrorf(r.env.node, "%s on line %d", err, stmt.Line)
		}
		scope["loop"] = loopStruct(i, len(items))
		r.scopes = append(r.scopes, scope)
		err := r.execStmts(stmt.Body)
		r.scopes = r.scopes[:len(r.scopes)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

func bindLoopVars(scope starlark.StringDict, vars []string, elem starlark.Value) error {
	if len(vars) == 1 {
		scope[vars[0]] = elem
		return nil
	}
	idx, ok := elem.(starlark.Indexable)
	if !ok || idx.Len() != len(vars) {
		return fmt.Errorf("cannot unpack %s into %d loop variables", elem.Type(), len(vars))
	}
	for i, name := range vars {
		scope[name] = idx.Index(i)
	}
	return nil
}

func loopStruct(i, length int) starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("loop"), starlark.StringDict{
		"index":  starlark.MakeInt(i + 1),
		"index0": starlark.MakeInt(i),
		"first":  starlark.Bool(i == 0),
		"last":   starlark.Bool(i == length-1),
		"length": starlark.MakeInt(length),
	})
}

// defineMacro registers a callable fragment in the module namespace, under
// both its resolved name and (for plain macros) its declared short name so
// later statements in the same file can call it directly.
func (r *renderer) defineMacro(def *MacroDef) {
	m := &Macro{def: def, env: r.env, owner: r}
	r.macros[def.Name] = m
	r.globals[def.Name] = m
	if IsMacroName(def.Name) {
		r.globals[MacroShortName(def.Name)] = m
	}
}

// renderToString executes statements into a detached output buffer.
func (r *renderer) renderToString(stmts []Stmt) (string, error) {
	saved := r.out
	r.out = &strings.Builder{}
	err := r.execStmts(stmts)
	text := r.out.String()
	r.out = saved
	if err != nil {
		return "", err
	}
	return text, nil
}

// Macro is a compiled callable fragment produced by a macro, materialization,
// or docs definition. It is bound to the module namespace it was defined in;
// each invocation renders the body with its own argument scope.
type Macro struct {
	def   *MacroDef
	env   *Env
	owner *renderer
}

// ResolvedName returns the fully disambiguated macro name.
func (m *Macro) ResolvedName() string { return m.def.Name }

// Params returns the declared parameters.
func (m *Macro) Params() []Param { return m.def.Params }

func (m *Macro) String() string        { return "<macro " + m.def.Name + ">" }
func (m *Macro) Type() string          { return "macro" }
func (m *Macro) Freeze()               {}
func (m *Macro) Truth() starlark.Bool  { return starlark.True }
func (m *Macro) Hash() (uint32, error) { return starlark.String(m.def.Name).Hash() }

// Name implements starlark.Callable.
func (m *Macro) Name() string { return m.def.Name }

// CallInternal binds arguments to the declared parameters and renders the
// macro body. The rendered text is the return value.
func (m *Macro) CallInternal(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	short := MacroShortName(m.def.Name)
	params := m.def.Params
	if len(args) > len(params) {
		return nil, core.CompilationErrorf(m.env.node,
			"macro %q takes at most %d argument(s) (%d given)", short, len(params), len(args))
	}

	locals := make(starlark.StringDict, len(params))
	for i, a := range args {
		locals[params[i].Name] = a
	}
	for _, kv := range kwargs {
		key, ok := kv[0].(starlark.String)
		if !ok {
			return nil, core.CompilationErrorf(m.env.node, "macro %q: keyword name must be a string", short)
		}
		name := string(key)
		if !hasParam(params, name) {
			return nil, core.CompilationErrorf(m.env.node, "macro %q received unexpected keyword argument %q", short, name)
		}
		if _, bound := locals[name]; bound {
			return nil, core.CompilationErrorf(m.env.node, "macro %q got multiple values for argument %q", short, name)
		}
		locals[name] = kv[1]
	}

	sub := &renderer{
		env:     m.env,
		globals: m.owner.combinedScope(),
		out:     &strings.Builder{},
		macros:  m.owner.macros,
	}
	for _, p := range params {
		if _, bound := locals[p.Name]; bound {
			continue
		}
		if p.Default == "" {
			locals[p.Name] = starlark.None
			continue
		}
		v, err := sub.evalExpr(p.Default, m.def.Line)
		if err != nil {
			return nil, err
		}
		locals[p.Name] = v
	}
	sub.scopes = append(sub.scopes, locals)

	if err := sub.execStmts(m.def.Body); err != nil {
		return nil, err
	}
	return starlark.String(sub.out.String()), nil
}

// Call invokes the macro from Go with plain values.
func (m *Macro) Call(args []any, kwargs map[string]any) (any, error) {
	sargs := make(starlark.Tuple, len(args))
	for i, a := range args {
		v, err := toStarlark(a)
		if err != nil {
			return nil, core.CompilationErrorf(m.env.node, "macro %q: argument %d: %s", MacroShortName(m.def.Name), i, err)
		}
		sargs[i] = v
	}
	var skwargs []starlark.Tuple
	for name, a := range kwargs {
		v, err := toStarlark(a)
		if err != nil {
			return nil, core.CompilationErrorf(m.env.node, "macro %q: keyword %q: %s", MacroShortName(m.def.Name), name, err)
		}
		skwargs = append(skwargs, starlark.Tuple{starlark.String(name), v})
	}
	ret, err := m.CallInternal(nil, sargs, skwargs)
	if err != nil {
		return nil, err
	}
	return fromStarlark(ret)
}

func hasParam(params []Param, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}
	return false
}
