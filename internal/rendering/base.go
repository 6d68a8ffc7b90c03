// Package rendering builds the flat namespaces templates render against. A
// context is assembled in layers: engine built-ins first, then the target
// snapshot, the var resolver, the adapter wrappers, the macro namespaces, and
// finally the model-specific members. Later layers shadow earlier ones.
package rendering

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

// invocationID identifies one sqlforge process run. Every context built in
// this process reports the same id.
var invocationID = uuid.NewString()

// runStartedAt is captured at process start and exposed as run_started_at.
var runStartedAt = time.Now().UTC()

// InvocationID returns the id shared by all contexts in this process.
func InvocationID() string { return invocationID }

// baseContext returns the layer of members every context starts from.
func baseContext(logger *slog.Logger) tmpl.Context {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := tmpl.Context{
		"env_var":          tmpl.NewFunc("env_var", envVar),
		"return":           tmpl.NewFunc("return", returnSignal),
		"fromjson":         tmpl.NewFunc("fromjson", fromJSON),
		"tojson":           tmpl.NewFunc("tojson", toJSON),
		"log":              tmpl.NewFunc("log", logFn(logger)),
		"run_started_at":   runStartedAt.Format(time.RFC3339),
		"invocation_id":    invocationID,
		"sqlforge_version": core.Version,
		"modules":          modulesNamespace(),
	}
	if os.Getenv(tmpl.EnvMacroDebugging) != "" {
		ctx["debug"] = tmpl.NewFunc("debug", func(args []any, kwargs map[string]any) (any, error) {
			logger.Debug("template debug hook hit")
			return "", nil
		})
	}
	return ctx
}

// envVar reads an environment variable, with an optional default. A missing
// variable with no default is a compilation error, matching how profile and
// project files fail when rendered without their environment.
func envVar(args []any, kwargs map[string]any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, core.NewCompilationError("env_var takes a name and an optional default", nil)
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, core.NewCompilationError("env_var: name must be a string", nil)
	}
	if v, found := os.LookupEnv(name); found {
		return v, nil
	}
	if len(args) == 2 {
		return args[1], nil
	}
	return nil, core.CompilationErrorf(nil, "Env var required but not provided: '%s'", name)
}

// returnSignal raises the early-return signal. The macro call boundary
// converts it into the macro's result value.
func returnSignal(args []any, kwargs map[string]any) (any, error) {
	var v any
	if len(args) > 0 {
		v = args[0]
	}
	return nil, &tmpl.MacroReturn{Value: v}
}

func fromJSON(args []any, kwargs map[string]any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, core.NewCompilationError("fromjson takes a string and an optional default", nil)
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, core.NewCompilationError("fromjson: value must be a string", nil)
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, fmt.Errorf("fromjson: %w", err)
	}
	return out, nil
}

func toJSON(args []any, kwargs map[string]any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, core.NewCompilationError("tojson takes a value and an optional default", nil)
	}
	b, err := json.Marshal(args[0])
	if err != nil {
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, fmt.Errorf("tojson: %w", err)
	}
	return string(b), nil
}

func logFn(logger *slog.Logger) func(args []any, kwargs map[string]any) (any, error) {
	return func(args []any, kwargs map[string]any) (any, error) {
		if len(args) < 1 {
			return "", nil
		}
		msg := fmt.Sprint(args[0])
		if info, _ := kwargs["info"].(bool); info {
			logger.Info(msg)
		} else {
			logger.Debug(msg)
		}
		return "", nil
	}
}

// modulesNamespace exposes a small utility surface under "modules", mirroring
// the datetime and re helpers templates commonly reach for.
func modulesNamespace() tmpl.Context {
	return tmpl.Context{
		"datetime": tmpl.Context{
			"now": tmpl.NewFunc("now", func(args []any, kwargs map[string]any) (any, error) {
				return time.Now().Format(time.RFC3339), nil
			}),
			"utcnow": tmpl.NewFunc("utcnow", func(args []any, kwargs map[string]any) (any, error) {
				return time.Now().UTC().Format(time.RFC3339), nil
			}),
			"today": tmpl.NewFunc("today", func(args []any, kwargs map[string]any) (any, error) {
				return time.Now().Format("2006-01-02"), nil
			}),
		},
		"re": tmpl.Context{
			"match": tmpl.NewFunc("match", reMatch),
			"sub":   tmpl.NewFunc("sub", reSub),
		},
	}
}

func reMatch(args []any, kwargs map[string]any) (any, error) {
	if len(args) != 2 {
		return nil, core.NewCompilationError("re.match takes a pattern and a string", nil)
	}
	pattern, _ := args[0].(string)
	s, _ := args[1].(string)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("re.match: %w", err)
	}
	return re.MatchString(s), nil
}

func reSub(args []any, kwargs map[string]any) (any, error) {
	if len(args) != 3 {
		return nil, core.NewCompilationError("re.sub takes a pattern, a replacement, and a string", nil)
	}
	pattern, _ := args[0].(string)
	repl, _ := args[1].(string)
	s, _ := args[2].(string)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("re.sub: %w", err)
	}
	return re.ReplaceAllString(s, repl), nil
}
