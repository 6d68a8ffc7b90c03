package macro

import (
	"strings"

	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

const queryCommentMacroName = "query_comment_macro"

// QueryStringGenerator renders the configured query-comment template once per
// issued statement. The raw comment text is wrapped in a synthetic macro so
// that it is compiled once and invoked with the connection name and the node
// the statement belongs to.
type QueryStringGenerator struct {
	macro *tmpl.Macro
	ctx   tmpl.Context
}

// NewQueryStringGenerator compiles queryComment against ctx. The comment text
// may reference any context member plus the connection_name and node call
// arguments.
func NewQueryStringGenerator(queryComment string, ctx tmpl.Context) (*QueryStringGenerator, error) {
	var b strings.Builder
	b.WriteString("{%- macro " + queryCommentMacroName + "(connection_name, node) -%}")
	b.WriteString(queryComment)
	b.WriteString("{% endmacro %}")

	t, err := tmpl.NewEnv().Parse(b.String())
	if err != nil {
		return nil, err
	}
	module, err := t.MakeModule(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := module.Macro(tmpl.MacroName(queryCommentMacroName))
	if !ok {
		return nil, core.NewInternalError("query comment macro did not compile")
	}
	return &QueryStringGenerator{macro: m, ctx: ctx}, nil
}

// Generate renders the comment for one statement. node may be nil for
// statements issued outside any node's build, for example connection setup.
func (g *QueryStringGenerator) Generate(connectionName string, node *core.Node) (string, error) {
	var nodeArg any
	if node != nil {
		nodeArg = node.ToDict()
	}
	out, err := g.macro.Call([]any{connectionName, nodeArg}, nil)
	if err != nil {
		if ret, ok := tmpl.AsMacroReturn(err); ok {
			out = ret.Value
		} else {
			return "", err
		}
	}
	s, _ := out.(string)
	return strings.TrimSpace(s), nil
}
