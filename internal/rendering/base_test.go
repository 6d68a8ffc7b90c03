package rendering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

func TestEnvVar(t *testing.T) {
	t.Setenv("SQLFORGE_TEST_ENV", "from-env")

	got, err := envVar([]any{"SQLFORGE_TEST_ENV"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestEnvVar_Default(t *testing.T) {
	got, err := envVar([]any{"SQLFORGE_TEST_ENV_MISSING", "fallback"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)
}

func TestEnvVar_MissingRequired(t *testing.T) {
	_, err := envVar([]any{"SQLFORGE_TEST_ENV_MISSING"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Env var required but not provided: 'SQLFORGE_TEST_ENV_MISSING'")
}

func TestReturnSignal(t *testing.T) {
	_, err := returnSignal([]any{42}, nil)
	require.Error(t, err)

	ret, ok := tmpl.AsMacroReturn(err)
	require.True(t, ok)
	assert.Equal(t, 42, ret.Value)
}

func TestJSONRoundTrip(t *testing.T) {
	encoded, err := toJSON([]any{map[string]any{"a": float64(1)}}, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, encoded)

	decoded, err := fromJSON([]any{`{"a": 1}`}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, decoded)
}

func TestFromJSON_InvalidWithDefault(t *testing.T) {
	got, err := fromJSON([]any{"not json", "default"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "default", got)
}

func TestBaseContext_RendersBuiltins(t *testing.T) {
	t.Setenv("SQLFORGE_TEST_ENV", "prod")
	ctx := baseContext(nil)

	out, err := tmpl.Render(`{{ env_var("SQLFORGE_TEST_ENV") }}`, ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "prod", out)

	out, err = tmpl.Render(`{{ tojson(fromjson('{"x": 2}')) }}`, ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"x":2}`, out)
}

func TestBaseContext_InvocationIdentity(t *testing.T) {
	ctx := baseContext(nil)
	assert.Equal(t, InvocationID(), ctx["invocation_id"])
	assert.Equal(t, core.Version, ctx["sqlforge_version"])
	assert.NotEmpty(t, ctx["run_started_at"])
}

func TestModules_Regex(t *testing.T) {
	matched, err := reMatch([]any{`^stg_`, "stg_orders"}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, matched)

	replaced, err := reSub([]any{`\s+`, "_", "raw events table"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "raw_events_table", replaced)
}
