package adapter

import (
	"context"

	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

// DatabaseWrapper gates adapter access from templates. During parsing the
// wrapper is built with execute=false and database calls return empty results
// instead of touching a connection, so templates referencing the adapter can
// still be compiled without a warehouse.
type DatabaseWrapper struct {
	adapter Adapter
	quoting core.QuotePolicy
	execute bool
}

// NewDatabaseWrapper wraps adapter for use inside a rendering context.
func NewDatabaseWrapper(a Adapter, quoting core.QuotePolicy, execute bool) *DatabaseWrapper {
	return &DatabaseWrapper{adapter: a, quoting: quoting, execute: execute}
}

// ContextValue returns the template-facing view of the wrapper, bound under
// the "adapter" context member.
func (w *DatabaseWrapper) ContextValue() tmpl.Context {
	return tmpl.Context{
		"type":                    tmpl.NewFunc("type", w.typeName),
		"execute":                 tmpl.NewFunc("execute", w.exec),
		"get_columns_in_relation": tmpl.NewFunc("get_columns_in_relation", w.getColumns),
		"quote":                   tmpl.NewFunc("quote", w.quote),
	}
}

func (w *DatabaseWrapper) typeName(args []any, kwargs map[string]any) (any, error) {
	if w.adapter == nil {
		return "", nil
	}
	return w.adapter.Type(), nil
}

func (w *DatabaseWrapper) exec(args []any, kwargs map[string]any) (any, error) {
	if len(args) < 1 {
		return nil, core.NewCompilationError("adapter.execute requires a sql argument", nil)
	}
	sqlStr, ok := args[0].(string)
	if !ok {
		return nil, core.NewCompilationError("adapter.execute: sql must be a string", nil)
	}
	fetch := false
	if v, ok := kwargs["fetch"].(bool); ok {
		fetch = v
	}
	if !w.execute || w.adapter == nil {
		return (&Result{Status: "none"}).ToDict(), nil
	}
	if !fetch {
		if err := w.adapter.Exec(context.Background(), sqlStr); err != nil {
			return nil, err
		}
		return (&Result{Status: "OK"}).ToDict(), nil
	}
	res, err := w.adapter.Query(context.Background(), sqlStr)
	if err != nil {
		return nil, err
	}
	return res.ToDict(), nil
}

func (w *DatabaseWrapper) getColumns(args []any, kwargs map[string]any) (any, error) {
	if len(args) != 1 {
		return nil, core.NewCompilationError("adapter.get_columns_in_relation takes one relation argument", nil)
	}
	if !w.execute || w.adapter == nil {
		return []any{}, nil
	}
	rel, ok := args[0].(core.Relation)
	if !ok {
		return nil, core.NewCompilationError("adapter.get_columns_in_relation: argument is not a relation", nil)
	}
	cols, err := w.adapter.GetColumnsInRelation(context.Background(), &rel)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c.ToDict()
	}
	return out, nil
}

func (w *DatabaseWrapper) quote(args []any, kwargs map[string]any) (any, error) {
	if len(args) != 1 {
		return nil, core.NewCompilationError("adapter.quote takes one identifier argument", nil)
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, core.NewCompilationError("adapter.quote: identifier must be a string", nil)
	}
	if w.adapter == nil {
		return `"` + name + `"`, nil
	}
	return w.adapter.QuoteIdentifier(name), nil
}

// RelationProxy builds relations with the project's quote policy applied.
// Sources carry their own quoting configuration, which takes precedence over
// the project policy when building from a source node. Nodes without an
// explicit database or schema fall back to the connection defaults.
type RelationProxy struct {
	quoting       core.QuotePolicy
	defaultDB     string
	defaultSchema string
}

// NewRelationProxy returns a proxy applying quoting to created relations.
func NewRelationProxy(quoting core.QuotePolicy, defaultDatabase, defaultSchema string) *RelationProxy {
	return &RelationProxy{quoting: quoting, defaultDB: defaultDatabase, defaultSchema: defaultSchema}
}

// ContextValue returns the template-facing view, bound under "api.Relation".
func (p *RelationProxy) ContextValue() tmpl.Context {
	return tmpl.Context{
		"create":             tmpl.NewFunc("create", p.create),
		"create_from_node":   tmpl.NewFunc("create_from_node", p.createFromNode),
		"create_from_source": tmpl.NewFunc("create_from_source", p.createFromSource),
	}
}

// FromNode builds the relation a model node materializes into.
func (p *RelationProxy) FromNode(node *core.Node) core.Relation {
	return core.NewRelation(p.database(node), p.schema(node), node.Name, p.quoting)
}

// FromSource builds a relation for a source node. The source's own quoting
// settings override the project policy.
func (p *RelationProxy) FromSource(node *core.Node) core.Relation {
	return core.NewRelation(p.database(node), p.schema(node), node.Name, p.quoting.Merge(node.Quoting))
}

func (p *RelationProxy) database(node *core.Node) string {
	if node.Database != "" {
		return node.Database
	}
	return p.defaultDB
}

func (p *RelationProxy) schema(node *core.Node) string {
	if node.Schema != "" {
		return node.Schema
	}
	return p.defaultSchema
}

func (p *RelationProxy) create(args []any, kwargs map[string]any) (any, error) {
	get := func(i int, key string) string {
		if i < len(args) {
			if s, ok := args[i].(string); ok {
				return s
			}
		}
		if s, ok := kwargs[key].(string); ok {
			return s
		}
		return ""
	}
	database := get(0, "database")
	schema := get(1, "schema")
	identifier := get(2, "identifier")
	return core.NewRelation(database, schema, identifier, p.quoting), nil
}

func (p *RelationProxy) createFromNode(args []any, kwargs map[string]any) (any, error) {
	node, err := nodeArg(args, "create_from_node")
	if err != nil {
		return nil, err
	}
	return p.FromNode(node), nil
}

func (p *RelationProxy) createFromSource(args []any, kwargs map[string]any) (any, error) {
	node, err := nodeArg(args, "create_from_source")
	if err != nil {
		return nil, err
	}
	return p.FromSource(node), nil
}

// nodeArg accepts either a *core.Node (Go callers) or the dict shape nodes
// take inside template contexts.
func nodeArg(args []any, fn string) (*core.Node, error) {
	if len(args) != 1 {
		return nil, core.CompilationErrorf(nil, "%s takes one node argument", fn)
	}
	switch v := args[0].(type) {
	case *core.Node:
		return v, nil
	case map[string]any:
		node := &core.Node{}
		node.Name, _ = v["name"].(string)
		node.Database, _ = v["database"].(string)
		node.Schema, _ = v["schema"].(string)
		node.PackageName, _ = v["package_name"].(string)
		if q, ok := v["quoting"].(map[string]any); ok {
			node.Quoting = make(map[string]bool, len(q))
			for k, qv := range q {
				if b, ok := qv.(bool); ok {
					node.Quoting[k] = b
				}
			}
		}
		return node, nil
	default:
		return nil, core.CompilationErrorf(nil, "%s: argument is not a node", fn)
	}
}
