package tmpl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlforge/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// returnAlias stands in for the return builtin inside expression source.
// "return" is a reserved word in the expression engine, so occurrences are
// rewritten to this name before evaluation and the binding is aliased.
const returnAlias = "sqlforge_return__"

// evalExpr evaluates one expression against the renderer's combined
// namespace. In capture mode, free names with no binding are pre-bound to
// Unresolved placeholders instead of failing resolution.
func (r *renderer) evalExpr(expr string, line int) (starlark.Value, error) {
	globals := r.combinedScope()

	src := rewriteReturn(expr)
	if src != expr {
		if v, ok := globals["return"]; ok {
			globals[returnAlias] = v
		}
	}

	if r.env.capture {
		for _, name := range freeIdents(src) {
			if _, ok := globals[name]; !ok {
				globals[name] = NewUnresolved(r.env.node, name)
			}
		}
	}

	thread := &starlark.Thread{
		Name: r.threadName(),
		Print: func(_ *starlark.Thread, _ string) {
			// expression evaluation does not print
		},
	}
	v, err := starlark.Eval(thread, fmt.Sprintf("<expr line %d>", line), src, globals)
	if err != nil {
		return nil, r.classifyEvalError(err, expr, line)
	}
	return v, nil
}

// rewriteReturn substitutes the return builtin's name with returnAlias so the
// expression parser accepts it. Only whole identifiers are rewritten; string
// literals pass through untouched.
func rewriteReturn(src string) string {
	if !strings.Contains(src, "return") {
		return src
	}
	var b strings.Builder
	i := 0
	for i < len(src) {
		c := src[i]
		if c == '\'' || c == '"' {
			end, err := skipString(src, i)
			if err != nil {
				b.WriteString(src[i:])
				break
			}
			b.WriteString(src[i:end])
			i = end
			continue
		}
		if strings.HasPrefix(src[i:], "return") &&
			(i == 0 || !identByte(src[i-1])) &&
			(i+6 >= len(src) || !identByte(src[i+6])) {
			b.WriteString(returnAlias)
			i += 6
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func identByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func (r *renderer) threadName() string {
	if r.env.node != nil {
		return r.env.node.PackageName + "/" + r.env.node.OriginalFilePath
	}
	return "<template>"
}

// classifyEvalError maps engine failures onto the error taxonomy: the
// early-return signal and already-attributed compilation errors pass through
// untouched, undefined names become undefined-reference errors, and anything
// else becomes a compilation error carrying the engine's message.
func (r *renderer) classifyEvalError(err error, expr string, line int) error {
	if _, ok := AsMacroReturn(err); ok {
		return err
	}
	var ce *core.CompilationError
	if errors.As(err, &ce) {
		return err
	}
	var ie *core.InternalError
	if errors.As(err, &ie) {
		return err
	}

	msg := err.Error()
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		msg = evalErr.Msg
	}
	msg = strings.ReplaceAll(msg, returnAlias, "return")
	if name, ok := undefinedName(msg); ok {
		return core.CompilationErrorf(r.env.node, "'%s' is undefined", name)
	}
	return core.CompilationErrorf(r.env.node, "error evaluating %q on line %d: %s", expr, line, msg)
}

// undefinedName extracts the identifier from the engine's resolve error.
func undefinedName(msg string) (string, bool) {
	const marker = "undefined: "
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "", false
	}
	name := msg[idx+len(marker):]
	if end := strings.IndexAny(name, " \n("); end >= 0 {
		name = name[:end]
	}
	if name == "" {
		return "", false
	}
	return name, true
}

// forceCondition raises for undefined references inside a boolean condition
// evaluated in capture mode. Truth tests force a value, so a placeholder
// buried under not/and/or must fail even when the condition itself did not
// evaluate to one; the expression engine would otherwise coerce it silently.
func (r *renderer) forceCondition(expr string) error {
	if !r.env.capture {
		return nil
	}
	scope := r.combinedScope()
	for _, name := range freeIdents(rewriteReturn(expr)) {
		v, ok := scope[name]
		if !ok {
			return NewUnresolved(r.env.node, name).ForceError()
		}
		if u, ok := v.(*Unresolved); ok {
			return u.ForceError()
		}
	}
	return nil
}

// freeIdents collects the names an expression references from the enclosing
// namespace. Attribute names and keyword-argument names are not free
// references and are skipped.
func freeIdents(src string) []string {
	expr, err := syntax.ParseExpr("<expr>", src, 0)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var order []string

	var visit func(n syntax.Node) bool
	visit = func(n syntax.Node) bool {
		switch e := n.(type) {
		case *syntax.Ident:
			if !seen[e.Name] {
				seen[e.Name] = true
				order = append(order, e.Name)
			}
		case *syntax.DotExpr:
			syntax.Walk(e.X, visit)
			return false
		case *syntax.CallExpr:
			syntax.Walk(e.Fn, visit)
			for _, arg := range e.Args {
				if bin, ok := arg.(*syntax.BinaryExpr); ok && bin.Op == syntax.EQ {
					syntax.Walk(bin.Y, visit)
					continue
				}
				syntax.Walk(arg, visit)
			}
			return false
		}
		return true
	}
	syntax.Walk(expr, visit)
	return order
}
