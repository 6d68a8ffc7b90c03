package rendering

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/leapstack-labs/sqlforge/pkg/adapter"
	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

// Provider carries the execution-scoped collaborators a context needs beyond
// the static config: the live adapter and whether this render is allowed to
// touch the database. Parse-time contexts use Execute=false.
type Provider struct {
	Adapter adapter.Adapter
	Execute bool
	Logger  *slog.Logger
}

// GenerateConfig builds the context used to render configuration files
// (project and profile yaml values). Only the built-ins, the target snapshot,
// and CLI vars are in scope; no node, no macros, no adapter.
func GenerateConfig(cfg *core.RuntimeConfig, logger *slog.Logger) tmpl.Context {
	ctx := baseContext(logger)
	ctx["target"] = targetSnapshot(cfg)
	v := NewVar(nil, cfg.CLIVars)
	ctx["var"] = v.Func()
	v.BindContext(ctx)
	return ctx
}

// Generate builds the full model rendering context: everything ref(),
// source(), config(), the adapter wrapper, and the macro namespaces need,
// plus the model-only members this, pre_hooks, post_hooks, and sql.
// nodeConfig holds the node's resolved configuration, read by config.get.
func Generate(node *core.Node, cfg *core.RuntimeConfig, manifest core.Manifest, p *Provider, nodeConfig map[string]any) tmpl.Context {
	ctx := providerContext(node, cfg, manifest, p, nodeConfig)

	proxy := adapter.NewRelationProxy(cfg.Quoting, cfg.Credentials.Database, cfg.Credentials.Schema)
	ctx["this"] = proxy.FromNode(node)
	ctx["pre_hooks"] = hookDicts(node.PreHooks)
	ctx["post_hooks"] = hookDicts(node.PostHooks)
	ctx["sql"] = node.InjectedSQL
	return ctx
}

// GenerateExecuteMacro builds the context operations and run-hooks execute
// macros under. It is the provider context without the model-only members,
// always in execute mode.
func GenerateExecuteMacro(node *core.Node, cfg *core.RuntimeConfig, manifest core.Manifest, p *Provider) tmpl.Context {
	exec := &Provider{Adapter: p.Adapter, Execute: true, Logger: p.Logger}
	return providerContext(node, cfg, manifest, exec, nil)
}

// providerContext assembles the layers shared by model and execute-macro
// contexts.
func providerContext(node *core.Node, cfg *core.RuntimeConfig, manifest core.Manifest, p *Provider, nodeConfig map[string]any) tmpl.Context {
	ctx := baseContext(p.Logger)

	ctx["target"] = targetSnapshot(cfg)

	v := NewVar(node, cfg.CLIVars)
	ctx["var"] = v.Func()

	w := adapter.NewDatabaseWrapper(p.Adapter, cfg.Quoting, p.Execute)
	ctx["adapter"] = w.ContextValue()
	proxy := adapter.NewRelationProxy(cfg.Quoting, cfg.Credentials.Database, cfg.Credentials.Schema)
	ctx["api"] = tmpl.Context{"Relation": proxy.ContextValue()}

	addMacros(ctx, manifest, node)

	rs := newResultStore()
	ctx["store_result"] = tmpl.NewFunc("store_result", rs.store)
	ctx["load_result"] = tmpl.NewFunc("load_result", rs.load)
	ctx["run_query"] = tmpl.NewFunc("run_query", runQueryFunc(node, p))

	ctx["model"] = node.ToDict()
	if manifest != nil {
		ctx["graph"] = manifest.FlatGraph()
	}
	ctx["execute"] = p.Execute
	ctx["ref"] = tmpl.NewFunc("ref", refFunc(node, manifest, proxy))
	ctx["source"] = tmpl.NewFunc("source", sourceFunc(node, manifest, proxy))
	ctx["config"] = configNamespace(node, nodeConfig)
	ctx["exceptions"] = exceptionsNamespace(node, p.Logger)
	ctx["validation"] = tmpl.Context{"any": tmpl.NewFunc("any", validationAny)}
	ctx["try_or_compiler_error"] = tmpl.NewFunc("try_or_compiler_error", tryOrCompilerError(node))
	ctx["write"] = tmpl.NewFunc("write", writeFunc(node, cfg))
	ctx["render"] = tmpl.NewFunc("render", renderFunc(node, ctx))

	ctx["schema"] = defaulted(node.Schema, cfg.Credentials.Schema)
	ctx["database"] = defaulted(node.Database, cfg.Credentials.Database)

	v.BindContext(ctx)
	return ctx
}

// targetSnapshot is the "target" namespace: connection info plus run
// identity fields and the full config dump.
func targetSnapshot(cfg *core.RuntimeConfig) map[string]any {
	t := cfg.Credentials.ConnectionInfo()
	t["name"] = cfg.TargetName
	t["target_name"] = cfg.TargetName
	t["profile_name"] = cfg.ProfileName
	t["threads"] = cfg.Threads
	t["config"] = cfg.ToDict()
	return t
}

func defaulted(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func hookDicts(hooks []core.Hook) []any {
	out := make([]any, len(hooks))
	for i, h := range hooks {
		out[i] = h.ToDict()
	}
	return out
}

// resultStore holds the named query results of one render, written by
// store_result and read back by load_result.
type resultStore struct {
	mu      sync.Mutex
	results map[string]any
}

func newResultStore() *resultStore {
	return &resultStore{results: map[string]any{}}
}

func (rs *resultStore) store(args []any, kwargs map[string]any) (any, error) {
	if len(args) < 1 {
		return nil, core.NewCompilationError("store_result requires a name", nil)
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, core.NewCompilationError("store_result: name must be a string", nil)
	}
	entry := map[string]any{"status": "", "data": nil}
	if v, ok := kwargs["response"]; ok {
		entry["status"] = v
	} else if len(args) > 1 {
		entry["status"] = args[1]
	}
	if v, ok := kwargs["table"]; ok {
		entry["data"] = v
	} else if len(args) > 2 {
		entry["data"] = args[2]
	}
	rs.mu.Lock()
	rs.results[name] = entry
	rs.mu.Unlock()
	return "", nil
}

func (rs *resultStore) load(args []any, kwargs map[string]any) (any, error) {
	if len(args) != 1 {
		return nil, core.NewCompilationError("load_result takes a name", nil)
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, core.NewCompilationError("load_result: name must be a string", nil)
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if entry, ok := rs.results[name]; ok {
		return entry, nil
	}
	return nil, nil
}

// runQueryFunc executes SQL from inside a template and returns the result as
// a mapping. At parse time (or with no adapter) it returns an empty result so
// templates stay compilable.
func runQueryFunc(node *core.Node, p *Provider) func([]any, map[string]any) (any, error) {
	return func(args []any, kwargs map[string]any) (any, error) {
		if len(args) != 1 {
			return nil, core.NewCompilationError("run_query takes one SQL string", node)
		}
		sql, ok := args[0].(string)
		if !ok {
			return nil, core.NewCompilationError("run_query: argument must be a string", node)
		}
		if !p.Execute || p.Adapter == nil {
			empty := adapter.Result{Status: "none"}
			return empty.ToDict(), nil
		}
		result, err := p.Adapter.Query(context.Background(), sql)
		if err != nil {
			return nil, core.NewCompilationError(err.Error(), node)
		}
		return result.ToDict(), nil
	}
}

// refFunc resolves ref("name") or ref("package", "name") to a relation.
func refFunc(node *core.Node, manifest core.Manifest, proxy *adapter.RelationProxy) func([]any, map[string]any) (any, error) {
	return func(args []any, kwargs map[string]any) (any, error) {
		var name string
		switch len(args) {
		case 1:
			name, _ = args[0].(string)
		case 2:
			name, _ = args[1].(string)
		default:
			return nil, core.NewCompilationError("ref takes one or two string arguments", node)
		}
		if name == "" {
			return nil, core.NewCompilationError("ref: model name must be a string", node)
		}
		if manifest == nil {
			return nil, core.CompilationErrorf(node, "Model '%s' depends on a node named '%s' which was not found", nodeDisplay(node), name)
		}
		target, ok := manifest.ResolveRef(name, node.PackageName)
		if !ok {
			return nil, core.CompilationErrorf(node, "Model '%s' depends on a node named '%s' which was not found", nodeDisplay(node), name)
		}
		return proxy.FromNode(target), nil
	}
}

// sourceFunc resolves source("source_name", "table_name") to a relation,
// honouring the source's own quoting.
func sourceFunc(node *core.Node, manifest core.Manifest, proxy *adapter.RelationProxy) func([]any, map[string]any) (any, error) {
	return func(args []any, kwargs map[string]any) (any, error) {
		if len(args) != 2 {
			return nil, core.NewCompilationError("source takes a source name and a table name", node)
		}
		sourceName, _ := args[0].(string)
		tableName, _ := args[1].(string)
		if sourceName == "" || tableName == "" {
			return nil, core.NewCompilationError("source: both arguments must be strings", node)
		}
		if manifest == nil {
			return nil, core.CompilationErrorf(node, "Model '%s' references source '%s.%s' which was not found", nodeDisplay(node), sourceName, tableName)
		}
		target, ok := manifest.ResolveSource(sourceName, tableName)
		if !ok {
			return nil, core.CompilationErrorf(node, "Model '%s' references source '%s.%s' which was not found", nodeDisplay(node), sourceName, tableName)
		}
		return proxy.FromSource(target), nil
	}
}

func nodeDisplay(node *core.Node) string {
	if node == nil {
		return "<unknown>"
	}
	return node.Name
}

// configNamespace exposes the node's resolved configuration. get returns a
// default for missing keys; require fails the render.
func configNamespace(node *core.Node, nodeConfig map[string]any) tmpl.Context {
	return tmpl.Context{
		"get": tmpl.NewFunc("get", func(args []any, kwargs map[string]any) (any, error) {
			if len(args) < 1 || len(args) > 2 {
				return nil, core.NewCompilationError("config.get takes a name and an optional default", node)
			}
			name, _ := args[0].(string)
			if v, ok := nodeConfig[name]; ok {
				return v, nil
			}
			if d, ok := kwargs["default"]; ok {
				return d, nil
			}
			if len(args) == 2 {
				return args[1], nil
			}
			return nil, nil
		}),
		"require": tmpl.NewFunc("require", func(args []any, kwargs map[string]any) (any, error) {
			if len(args) != 1 {
				return nil, core.NewCompilationError("config.require takes a name", node)
			}
			name, _ := args[0].(string)
			if v, ok := nodeConfig[name]; ok {
				return v, nil
			}
			return nil, core.CompilationErrorf(node, "Required config '%s' not set", name)
		}),
	}
}

// exceptionsNamespace exposes error raising helpers to templates.
func exceptionsNamespace(node *core.Node, logger *slog.Logger) tmpl.Context {
	if logger == nil {
		logger = slog.Default()
	}
	return tmpl.Context{
		"raise_compiler_error": tmpl.NewFunc("raise_compiler_error", func(args []any, kwargs map[string]any) (any, error) {
			msg := "compiler error raised with no message"
			if len(args) > 0 {
				msg = fmt.Sprint(args[0])
			}
			return nil, core.NewCompilationError(msg, node)
		}),
		"warn": tmpl.NewFunc("warn", func(args []any, kwargs map[string]any) (any, error) {
			if len(args) > 0 {
				logger.Warn(fmt.Sprint(args[0]))
			}
			return "", nil
		}),
	}
}

// validationAny returns a validator callable that accepts any of the given
// values and fails with a ValidationError otherwise.
func validationAny(args []any, kwargs map[string]any) (any, error) {
	candidates := args
	return tmpl.NewFunc("validator", func(vArgs []any, vKwargs map[string]any) (any, error) {
		if len(vArgs) != 1 {
			return nil, &core.ValidationError{Msg: "validator takes one value"}
		}
		for _, c := range candidates {
			if reflect.DeepEqual(vArgs[0], c) {
				return "", nil
			}
		}
		return nil, &core.ValidationError{Msg: fmt.Sprintf("Expected value %v to be one of %v", vArgs[0], candidates)}
	}), nil
}

// tryOrCompilerError calls fn(args...); any failure is reported as a
// compilation error with the given message.
func tryOrCompilerError(node *core.Node) func([]any, map[string]any) (any, error) {
	return func(args []any, kwargs map[string]any) (any, error) {
		if len(args) < 2 {
			return nil, core.NewCompilationError("try_or_compiler_error takes a message and a callable", node)
		}
		msg, _ := args[0].(string)
		out, err := tmpl.Call(args[1], args[2:], nil)
		if err != nil {
			return nil, core.NewCompilationError(msg, node)
		}
		return out, nil
	}
}

// writeFunc writes payload to the node's compiled path under the target
// directory and returns an empty string.
func writeFunc(node *core.Node, cfg *core.RuntimeConfig) func([]any, map[string]any) (any, error) {
	return func(args []any, kwargs map[string]any) (any, error) {
		if len(args) != 1 {
			return nil, core.NewCompilationError("write takes a payload", node)
		}
		payload, _ := args[0].(string)
		path := filepath.Join(cfg.TargetPath, "run", node.PackageName, node.OriginalFilePath)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("write: %w", err)
		}
		if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
			return nil, fmt.Errorf("write: %w", err)
		}
		return "", nil
	}
}

// renderFunc renders a template string against the surrounding context.
func renderFunc(node *core.Node, ctx tmpl.Context) func([]any, map[string]any) (any, error) {
	return func(args []any, kwargs map[string]any) (any, error) {
		if len(args) != 1 {
			return nil, core.NewCompilationError("render takes a template string", node)
		}
		s, _ := args[0].(string)
		return tmpl.Render(s, ctx, node)
	}
}
