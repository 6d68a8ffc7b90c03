package rendering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

func modelNode(name string, vars map[string]any) *core.Node {
	return &core.Node{
		Name:             name,
		PackageName:      "analytics",
		OriginalFilePath: "models/" + name + ".sql",
		ResourceType:     core.ResourceModel,
		Vars:             vars,
	}
}

func TestVar_LocalValue(t *testing.T) {
	v := NewVar(modelNode("customers", map[string]any{"start_date": "2024-01-01"}), nil)

	got, err := v.call([]any{"start_date"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", got)
}

func TestVar_OverrideBeatsLocal(t *testing.T) {
	node := modelNode("customers", map[string]any{"start_date": "2024-01-01"})
	v := NewVar(node, map[string]any{"start_date": "2025-06-30"})

	got, err := v.call([]any{"start_date"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-30", got)
}

func TestVar_DefaultForMissing(t *testing.T) {
	v := NewVar(modelNode("customers", nil), nil)

	got, err := v.call([]any{"missing", "fallback"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)
}

func TestVar_MissingListsSuppliedVars(t *testing.T) {
	node := modelNode("customers", map[string]any{"known": 1})
	v := NewVar(node, nil)

	_, err := v.call([]any{"missing"}, nil)
	require.Error(t, err)

	ce, ok := core.AsCompilationError(err)
	require.True(t, ok)
	assert.Contains(t, ce.Msg, "Required var 'missing' not found in config")
	assert.Contains(t, ce.Msg, "customers")
	assert.Contains(t, ce.Msg, `"known"`)
}

func TestVar_MissingWithoutNode(t *testing.T) {
	v := NewVar(nil, nil)

	_, err := v.call([]any{"missing"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<Configuration>")
}

func TestVar_StringValueRendered(t *testing.T) {
	node := modelNode("customers", map[string]any{"greeting": "hello {{ 1 + 1 }}"})
	v := NewVar(node, nil)
	v.BindContext(map[string]any{})

	got, err := v.call([]any{"greeting"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello 2", got)
}
