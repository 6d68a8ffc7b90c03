package tmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

func captureNode() *core.Node {
	return &core.Node{
		Name:             "customers",
		PackageName:      "analytics",
		OriginalFilePath: "models/customers.sql",
		ResourceType:     core.ResourceModel,
	}
}

func TestCapture_UndefinedRendersEmpty(t *testing.T) {
	out, err := GetRendered("a {{ mystery }} b", nil, captureNode(), WithCapture())
	require.NoError(t, err)
	assert.Equal(t, "a  b", out)
}

func TestCapture_AttributeChainRendersEmpty(t *testing.T) {
	out, err := GetRendered("{{ some_pkg.some_macro }}", nil, captureNode(), WithCapture())
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestCapture_CallReturnsItself(t *testing.T) {
	out, err := GetRendered("{{ some_pkg.some_macro(1, x=2) }}", nil, captureNode(), WithCapture())
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestCapture_KnownNamesStillResolve(t *testing.T) {
	out, err := GetRendered("{{ known }}-{{ unknown }}", Context{"known": "v"}, captureNode(), WithCapture())
	require.NoError(t, err)
	assert.Equal(t, "v-", out)
}

func TestCapture_ForcingInIfFails(t *testing.T) {
	_, err := GetRendered("{% if bar %}x{% endif %}", nil, captureNode(), WithCapture())
	require.Error(t, err)

	ce, ok := core.AsCompilationError(err)
	require.True(t, ok)
	assert.Contains(t, ce.Msg, "'bar' is undefined")
	assert.Equal(t, "customers", ce.Node.Name)
}

func TestCapture_ForcingUnderNotFails(t *testing.T) {
	_, err := GetRendered("{% if not bar %}x{% endif %}", nil, captureNode(), WithCapture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'bar' is undefined")
}

func TestCapture_ForcingAssignedPlaceholderFails(t *testing.T) {
	_, err := GetRendered("{% set x = bar %}{% if not x %}x{% endif %}", nil, captureNode(), WithCapture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'bar' is undefined")
}

func TestCapture_BoundConditionRenders(t *testing.T) {
	out, err := GetRendered("{% if not flag %}x{% endif %}", Context{"flag": false}, captureNode(), WithCapture())
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}

func TestCapture_ForcingInForFails(t *testing.T) {
	_, err := GetRendered("{% for x in items %}{{ x }}{% endfor %}", nil, captureNode(), WithCapture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'items' is undefined")
}

func TestCapture_ForcedAttributeNamesLastSegment(t *testing.T) {
	_, err := GetRendered("{% if pkg.flag %}x{% endif %}", nil, captureNode(), WithCapture())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'flag' is undefined")
	assert.Contains(t, err.Error(), "pkg.flag")
}

func TestUnresolved_PathTracking(t *testing.T) {
	u := NewUnresolved(captureNode(), "my_pkg")
	assert.Equal(t, "analytics", u.PackageName())
	assert.Equal(t, "my_pkg", u.CapturedName())

	next, err := u.Attr("my_macro")
	require.NoError(t, err)

	n, ok := next.(*Unresolved)
	require.True(t, ok)
	assert.Equal(t, "my_pkg", n.PackageName())
	assert.Equal(t, "my_macro", n.CapturedName())
	assert.Equal(t, []string{"my_pkg", "my_macro"}, n.Path())
}

func TestUnresolved_ForceError(t *testing.T) {
	u := NewUnresolved(captureNode(), "missing")
	err := u.ForceError()

	ce, ok := core.AsCompilationError(err)
	require.True(t, ok)
	assert.Equal(t, "'missing' is undefined", ce.Msg)
	assert.Equal(t, "customers", ce.Node.Name)
}

func TestWithoutCapture_UndefinedFails(t *testing.T) {
	_, err := GetRendered("{{ mystery }}", nil, captureNode())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'mystery' is undefined")
}
