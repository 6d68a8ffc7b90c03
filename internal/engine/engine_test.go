package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

func testConfig() *core.RuntimeConfig {
	return &core.RuntimeConfig{
		ProjectName: "analytics",
		ProfileName: "analytics",
		TargetName:  "dev",
		Threads:     4,
		Credentials: core.Credentials{Type: "sqlite", Schema: "main"},
	}
}

func model(name, raw string) *core.Node {
	return &core.Node{
		Name:             name,
		PackageName:      "analytics",
		OriginalFilePath: "models/" + name + ".sql",
		ResourceType:     core.ResourceModel,
		RawSQL:           raw,
	}
}

func macroDef(name, raw string) *core.Node {
	return &core.Node{
		Name:             name,
		PackageName:      "analytics",
		OriginalFilePath: "macros/" + name + ".sql",
		ResourceType:     core.ResourceMacro,
		RawSQL:           raw,
	}
}

func TestEngine_RenderNode(t *testing.T) {
	orders := model("orders", "select 1")
	orders.Schema = "main"
	manifest := &core.StaticManifest{ModelNodes: []*core.Node{orders}}
	e := New(testConfig(), manifest, nil, nil)

	node := model("customers", "select * from {{ ref('orders') }} where schema = '{{ schema }}'")
	out, err := e.RenderNode(node, false)
	require.NoError(t, err)
	assert.Equal(t, "select * from main.orders where schema = 'main'", out)
	assert.Equal(t, out, node.InjectedSQL)
}

func TestEngine_RenderNode_MacroCall(t *testing.T) {
	manifest := &core.StaticManifest{MacroNodes: []*core.Node{
		macroDef("limit_clause", "{% macro limit_clause(n) %}limit {{ n }}{% endmacro %}"),
	}}
	e := New(testConfig(), manifest, nil, nil)

	node := model("customers", "select 1 {{ limit_clause(10) }}")
	out, err := e.RenderNode(node, false)
	require.NoError(t, err)
	assert.Equal(t, "select 1 limit 10", out)
}

func TestEngine_RenderNode_NodeConfig(t *testing.T) {
	e := New(testConfig(), &core.StaticManifest{}, nil, nil)

	node := model("customers", "-- {{ config.get('materialized') }} {{ config.get('start_date', 'unset') }}\nselect 1")
	node.NodeConfig = map[string]any{"materialized": "view"}
	node.Vars = map[string]any{"start_date": "2026-01-01"}

	out, err := e.RenderNode(node, false)
	require.NoError(t, err)
	assert.Equal(t, "-- view unset\nselect 1", out)
}

func TestEngine_CaptureReferences(t *testing.T) {
	e := New(testConfig(), &core.StaticManifest{}, nil, nil)

	node := model("customers", "select {{ some_pkg.missing_macro() }} from t")
	out, err := e.CaptureReferences(node)
	require.NoError(t, err)
	assert.Equal(t, "select  from t", out)
}

func TestEngine_ExecuteMacro(t *testing.T) {
	manifest := &core.StaticManifest{MacroNodes: []*core.Node{
		macroDef("whoami", "{% macro whoami() %}{{ target.name }}{% endmacro %}"),
	}}
	e := New(testConfig(), manifest, nil, nil)

	node := &core.Node{Name: "op", PackageName: "analytics", ResourceType: core.ResourceOperation}
	out, err := e.ExecuteMacro(node, "whoami", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "dev", out)
}

func TestEngine_ExecuteMacro_Missing(t *testing.T) {
	e := New(testConfig(), &core.StaticManifest{}, nil, nil)

	node := &core.Node{Name: "op", ResourceType: core.ResourceOperation}
	_, err := e.ExecuteMacro(node, "nope", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `macro "nope" not found`)
}

func TestEngine_MaterializationMacro_DefaultFallback(t *testing.T) {
	tableDefault := macroDef("materialization_table__default",
		"{% materialization table, default %}x{% endmaterialization %}")
	manifest := &core.StaticManifest{MacroNodes: []*core.Node{tableDefault}}
	e := New(testConfig(), manifest, nil, nil)

	m, err := e.MaterializationMacro("table")
	require.NoError(t, err)
	assert.Same(t, tableDefault, m)

	_, err = e.MaterializationMacro("view")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no materialization "view"`)
}

func TestEngine_RenderAll(t *testing.T) {
	e := New(testConfig(), &core.StaticManifest{}, nil, nil)

	var nodes []*core.Node
	for i := 0; i < 20; i++ {
		nodes = append(nodes, model(fmt.Sprintf("m_%d", i), fmt.Sprintf("select {{ %d + 0 }}", i)))
	}

	results, err := e.RenderAll(context.Background(), nodes, false)
	require.NoError(t, err)
	require.Len(t, results, 20)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprintf("select %d", i), r.SQL)
		assert.Same(t, nodes[i], r.Node)
	}
}

func TestEngine_RenderAll_CollectsFailures(t *testing.T) {
	e := New(testConfig(), &core.StaticManifest{}, nil, nil)

	nodes := []*core.Node{
		model("good", "select 1"),
		model("bad", "{{ undefined_name }}"),
		model("also_good", "select 2"),
	}

	results, err := e.RenderAll(context.Background(), nodes, false)
	require.Error(t, err)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "select 2", results[2].SQL)
}
