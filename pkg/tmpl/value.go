package tmpl

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/leapstack-labs/sqlforge/pkg/core"
	"go.starlark.net/starlark"
)

// Context is the flat namespace of names visible during one render.
type Context = map[string]any

// Func is a Go callable exposed into template expressions. Arguments cross
// the boundary as plain Go values.
type Func struct {
	Name string
	Fn   func(args []any, kwargs map[string]any) (any, error)
}

// NewFunc wraps fn for use as a context value.
func NewFunc(name string, fn func(args []any, kwargs map[string]any) (any, error)) *Func {
	return &Func{Name: name, Fn: fn}
}

func (f *Func) builtin() *starlark.Builtin {
	return starlark.NewBuiltin(f.Name, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		goArgs := make([]any, len(args))
		for i, a := range args {
			v, err := fromStarlark(a)
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", f.Name, i, err)
			}
			goArgs[i] = v
		}
		goKwargs := make(map[string]any, len(kwargs))
		for _, kv := range kwargs {
			key, ok := kv[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("%s: keyword name must be a string", f.Name)
			}
			v, err := fromStarlark(kv[1])
			if err != nil {
				return nil, fmt.Errorf("%s: keyword %q: %w", f.Name, string(key), err)
			}
			goKwargs[string(key)] = v
		}
		ret, err := f.Fn(goArgs, goKwargs)
		if err != nil {
			return nil, err
		}
		return toStarlark(ret)
	})
}

// Call invokes a callable context value from Go. It accepts macros, context
// funcs, and any Starlark callable that crossed the value boundary.
func Call(callee any, args []any, kwargs map[string]any) (any, error) {
	switch c := callee.(type) {
	case *Func:
		return c.Fn(args, kwargs)
	case *Macro:
		return c.Call(args, kwargs)
	case starlark.Callable:
		sargs := make(starlark.Tuple, len(args))
		for i, a := range args {
			v, err := toStarlark(a)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			sargs[i] = v
		}
		var skwargs []starlark.Tuple
		for name, a := range kwargs {
			v, err := toStarlark(a)
			if err != nil {
				return nil, fmt.Errorf("keyword %q: %w", name, err)
			}
			skwargs = append(skwargs, starlark.Tuple{starlark.String(name), v})
		}
		thread := &starlark.Thread{Name: "call"}
		ret, err := starlark.Call(thread, c, sargs, skwargs)
		if err != nil {
			return nil, err
		}
		return fromStarlark(ret)
	default:
		return nil, fmt.Errorf("value of type %T is not callable", callee)
	}
}

// toStarlark converts a Go context value to a Starlark value. Starlark values
// pass through unchanged so macros and placeholders survive the round trip.
func toStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}
	switch val := v.(type) {
	case starlark.Value:
		return val, nil
	case *Func:
		return val.builtin(), nil
	case string:
		return starlark.String(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case bool:
		return starlark.Bool(val), nil
	case time.Time:
		return starlark.String(val.Format(time.RFC3339)), nil
	case core.Relation:
		return &relationValue{rel: val}, nil
	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil
	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case []map[string]any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case map[string]any:
		dict := starlark.NewDict(len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sv, err := toStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
		}
		return &namespace{dict: dict}, nil
	default:
		return nil, fmt.Errorf("unsupported context value type: %T", v)
	}
}

// fromStarlark converts a Starlark value back to a plain Go value. Callables
// and placeholders are returned unchanged.
func fromStarlark(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return string(val), nil
	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return val.String(), nil
		}
		return i64, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.Bool:
		return bool(val), nil
	case *relationValue:
		return val.rel, nil
	case *Unresolved:
		return val, nil
	case *starlark.List:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil
	case starlark.Tuple:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("tuple index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil
	case *namespace:
		return fromStarlark(val.dict)
	case *starlark.Dict:
		result := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be a string, got %s", item[0].Type())
			}
			gv, err := fromStarlark(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[string(key)] = gv
		}
		return result, nil
	case starlark.Callable:
		return val, nil
	default:
		return val.String(), nil
	}
}

// formatOutput renders an evaluated expression result as template output.
func formatOutput(v starlark.Value) string {
	switch val := v.(type) {
	case starlark.NoneType:
		return ""
	case starlark.String:
		return string(val)
	case starlark.Bool:
		if bool(val) {
			return "True"
		}
		return "False"
	case starlark.Int:
		return val.String()
	case starlark.Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case *relationValue:
		return val.rel.Render()
	case *Unresolved:
		return ""
	default:
		return val.String()
	}
}

// namespace wraps a dict so its entries are reachable both as items
// (ns["key"]) and as attributes (ns.key), the way context members like model,
// config, and the macro package namespaces are accessed. Attribute lookup
// prefers entries; names with no entry fall back to the dict's own methods.
type namespace struct {
	dict *starlark.Dict
}

func (n *namespace) String() string                           { return n.dict.String() }
func (n *namespace) Type() string                             { return "dict" }
func (n *namespace) Freeze()                                  { n.dict.Freeze() }
func (n *namespace) Truth() starlark.Bool                     { return n.dict.Truth() }
func (n *namespace) Hash() (uint32, error)                    { return 0, fmt.Errorf("unhashable type: dict") }
func (n *namespace) Len() int                                 { return n.dict.Len() }
func (n *namespace) Iterate() starlark.Iterator               { return n.dict.Iterate() }
func (n *namespace) Items() []starlark.Tuple                  { return n.dict.Items() }
func (n *namespace) Get(k starlark.Value) (starlark.Value, bool, error) { return n.dict.Get(k) }

func (n *namespace) Attr(name string) (starlark.Value, error) {
	if v, found, err := n.dict.Get(starlark.String(name)); err == nil && found {
		return v, nil
	}
	return n.dict.Attr(name)
}

func (n *namespace) AttrNames() []string {
	names := make([]string, 0, n.dict.Len())
	for _, item := range n.dict.Items() {
		if s, ok := item[0].(starlark.String); ok {
			names = append(names, string(s))
		}
	}
	sort.Strings(names)
	return names
}

// relationValue exposes a core.Relation to template expressions with
// attribute access for its components.
type relationValue struct {
	rel core.Relation
}

func (r *relationValue) String() string        { return r.rel.Render() }
func (r *relationValue) Type() string          { return "Relation" }
func (r *relationValue) Freeze()               {}
func (r *relationValue) Truth() starlark.Bool  { return starlark.True }
func (r *relationValue) Hash() (uint32, error) { return starlark.String(r.rel.Render()).Hash() }

func (r *relationValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "database":
		return starlark.String(r.rel.Database), nil
	case "schema":
		return starlark.String(r.rel.Schema), nil
	case "identifier", "name":
		return starlark.String(r.rel.Identifier), nil
	case "render":
		return starlark.NewBuiltin("render", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return starlark.String(r.rel.Render()), nil
		}), nil
	}
	return nil, nil
}

func (r *relationValue) AttrNames() []string {
	return []string{"database", "identifier", "name", "render", "schema"}
}
