package rendering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlforge/pkg/adapter"
	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

func macroNode(pkg, name, body string) *core.Node {
	return &core.Node{
		Name:             name,
		PackageName:      pkg,
		OriginalFilePath: "macros/" + name + ".sql",
		ResourceType:     core.ResourceMacro,
		RawSQL:           "{% macro " + name + "() %}" + body + "{% endmacro %}",
	}
}

func testConfig() *core.RuntimeConfig {
	return &core.RuntimeConfig{
		ProjectName: "analytics",
		ProfileName: "analytics",
		TargetName:  "dev",
		Threads:     4,
		Credentials: core.Credentials{
			Type:     "sqlite",
			Database: "warehouse",
			Schema:   "main",
		},
	}
}

func TestGenerate_TargetSnapshot(t *testing.T) {
	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), &core.StaticManifest{}, &Provider{}, nil)

	target, ok := ctx["target"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "dev", target["name"])
	assert.Equal(t, "analytics", target["profile_name"])
	assert.Equal(t, 4, target["threads"])
	assert.Equal(t, "sqlite", target["type"])
}

func TestGenerate_ModelMembers(t *testing.T) {
	node := modelNode("customers", nil)
	node.Schema = "marts"
	node.InjectedSQL = "select 1"
	node.PreHooks = []core.Hook{{SQL: "analyze", Transaction: true}}

	ctx := Generate(node, testConfig(), &core.StaticManifest{}, &Provider{}, nil)

	assert.Equal(t, "select 1", ctx["sql"])
	assert.Equal(t, "marts", ctx["schema"])
	assert.Equal(t, "warehouse", ctx["database"])
	assert.Equal(t, false, ctx["execute"])

	this, ok := ctx["this"].(core.Relation)
	require.True(t, ok)
	assert.Equal(t, "customers", this.Identifier)

	hooks, ok := ctx["pre_hooks"].([]any)
	require.True(t, ok)
	require.Len(t, hooks, 1)
}

func TestGenerateExecuteMacro_NoModelMembers(t *testing.T) {
	node := modelNode("run_maintenance", nil)
	node.ResourceType = core.ResourceOperation

	ctx := GenerateExecuteMacro(node, testConfig(), &core.StaticManifest{}, &Provider{})

	assert.Equal(t, true, ctx["execute"])
	assert.NotContains(t, ctx, "this")
	assert.NotContains(t, ctx, "sql")
	assert.NotContains(t, ctx, "pre_hooks")
}

func TestGenerate_RefResolvesRelation(t *testing.T) {
	orders := modelNode("orders", nil)
	orders.Schema = "marts"
	manifest := &core.StaticManifest{ModelNodes: []*core.Node{orders}}

	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), manifest, &Provider{}, nil)

	out, err := tmpl.Render("select * from {{ ref('orders') }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, "select * from warehouse.marts.orders", out)
}

func TestGenerate_RefMissing(t *testing.T) {
	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), &core.StaticManifest{}, &Provider{}, nil)

	_, err := tmpl.Render("{{ ref('nope') }}", ctx, node)
	require.Error(t, err)

	ce, ok := core.AsCompilationError(err)
	require.True(t, ok)
	assert.Contains(t, ce.Msg, "'nope'")
	assert.Contains(t, ce.Msg, "customers")
}

func TestGenerate_SourceUsesOwnQuoting(t *testing.T) {
	src := &core.Node{
		Name:        "raw_events",
		PackageName: "analytics",
		Schema:      "landing",
		Quoting:     map[string]bool{"identifier": true},
	}
	manifest := &core.StaticManifest{
		SourceNodes: map[string]*core.Node{"tracking.raw_events": src},
	}

	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), manifest, &Provider{}, nil)

	out, err := tmpl.Render("{{ source('tracking', 'raw_events') }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, `warehouse.landing."raw_events"`, out)
}

func TestGenerate_LocalMacroShadowsGlobal(t *testing.T) {
	manifest := &core.StaticManifest{MacroNodes: []*core.Node{
		macroNode(core.GlobalProjectName, "greet", "global"),
		macroNode("analytics", "greet", "local"),
	}}

	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), manifest, &Provider{}, nil)

	out, err := tmpl.Render("{{ greet() }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, "local", out)

	out, err = tmpl.Render("{{ sqlforge.greet() }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, "global", out)

	out, err = tmpl.Render("{{ analytics.greet() }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, "local", out)
}

func TestGenerate_GlobalPackagesCollapse(t *testing.T) {
	manifest := &core.StaticManifest{MacroNodes: []*core.Node{
		macroNode("sqlforge_sqlite", "adapter_specific", "from adapter package"),
	}}

	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), manifest, &Provider{}, nil)

	out, err := tmpl.Render("{{ sqlforge.adapter_specific() }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, "from adapter package", out)

	out, err = tmpl.Render("{{ adapter_specific() }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, "from adapter package", out)
}

func TestGenerate_MacroSeesFullContext(t *testing.T) {
	manifest := &core.StaticManifest{MacroNodes: []*core.Node{
		macroNode("analytics", "whoami", "{{ model.name }}"),
	}}

	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), manifest, &Provider{}, nil)

	out, err := tmpl.Render("{{ whoami() }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, "customers", out)
}

type stubAdapter struct {
	adapter.Adapter
	lastSQL string
	result  *adapter.Result
}

func (s *stubAdapter) Type() string { return "sqlite" }

func (s *stubAdapter) Query(_ context.Context, sql string) (*adapter.Result, error) {
	s.lastSQL = sql
	return s.result, nil
}

func TestGenerate_RunQuery(t *testing.T) {
	stub := &stubAdapter{result: &adapter.Result{
		ColumnNames: []string{"n"},
		Rows:        [][]any{{int64(3)}},
		Status:      "SELECT 1",
	}}
	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), &core.StaticManifest{}, &Provider{Adapter: stub, Execute: true}, nil)

	out, err := tmpl.Render("{{ run_query('select count(*) as n from t')['rows'][0]['n'] }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, "3", out)
	assert.Equal(t, "select count(*) as n from t", stub.lastSQL)
}

func TestGenerate_RunQueryParseMode(t *testing.T) {
	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), &core.StaticManifest{}, &Provider{}, nil)

	out, err := tmpl.Render("{{ run_query('select 1')['status'] }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, "none", out)
}

func TestGenerate_StoreAndLoadResult(t *testing.T) {
	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), &core.StaticManifest{}, &Provider{}, nil)

	out, err := tmpl.Render(
		"{% do store_result('ids', response='OK') %}{{ load_result('ids').status }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, "OK", out)
}

func TestGenerate_ConfigGet(t *testing.T) {
	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), &core.StaticManifest{}, &Provider{},
		map[string]any{"materialized": "table"})

	out, err := tmpl.Render("{{ config.get('materialized') }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, "table", out)

	out, err = tmpl.Render("{{ config.get('missing', 'view') }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, "view", out)
}

func TestGenerate_RaiseCompilerError(t *testing.T) {
	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), &core.StaticManifest{}, &Provider{}, nil)

	_, err := tmpl.Render("{{ exceptions.raise_compiler_error('bad model') }}", ctx, node)
	require.Error(t, err)

	ce, ok := core.AsCompilationError(err)
	require.True(t, ok)
	assert.Equal(t, "bad model", ce.Msg)
	assert.Equal(t, node, ce.Node)
}

func TestGenerate_TryOrCompilerError(t *testing.T) {
	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), &core.StaticManifest{}, &Provider{}, nil)

	_, err := tmpl.Render(
		"{{ try_or_compiler_error('could not parse', fromjson, 'not json') }}", ctx, node)
	require.Error(t, err)

	ce, ok := core.AsCompilationError(err)
	require.True(t, ok)
	assert.Equal(t, "could not parse", ce.Msg)
}

func TestGenerate_ValidationAny(t *testing.T) {
	node := modelNode("customers", nil)
	ctx := Generate(node, testConfig(), &core.StaticManifest{}, &Provider{}, nil)

	out, err := tmpl.Render("{{ validation.any('table', 'view')('table') }}", ctx, node)
	require.NoError(t, err)
	assert.Equal(t, "", out)

	_, err = tmpl.Render("{{ validation.any('table', 'view')('bogus') }}", ctx, node)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected value")
}

func TestGenerateConfig_NoModelScope(t *testing.T) {
	ctx := GenerateConfig(testConfig(), nil)

	assert.NotContains(t, ctx, "ref")
	assert.NotContains(t, ctx, "model")
	assert.Contains(t, ctx, "env_var")
	assert.Contains(t, ctx, "var")
	assert.Contains(t, ctx, "target")
}
