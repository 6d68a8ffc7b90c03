package macro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

func TestQueryStringGenerator_RendersComment(t *testing.T) {
	g, err := NewQueryStringGenerator(
		"run by {{ user }} on {{ connection_name }}",
		tmpl.Context{"user": "etl_bot"})
	require.NoError(t, err)

	out, err := g.Generate("primary", nil)
	require.NoError(t, err)
	assert.Equal(t, "run by etl_bot on primary", out)
}

func TestQueryStringGenerator_NodeAccess(t *testing.T) {
	g, err := NewQueryStringGenerator(
		"{% if node %}building {{ node.name }}{% else %}no node{% endif %}",
		tmpl.Context{})
	require.NoError(t, err)

	node := &core.Node{Name: "customers", ResourceType: core.ResourceModel}
	out, err := g.Generate("primary", node)
	require.NoError(t, err)
	assert.Equal(t, "building customers", out)

	out, err = g.Generate("primary", nil)
	require.NoError(t, err)
	assert.Equal(t, "no node", out)
}

func TestQueryStringGenerator_ParseError(t *testing.T) {
	_, err := NewQueryStringGenerator("{% if %}", tmpl.Context{})
	require.Error(t, err)
}
