package core

// GlobalProjectName is the namespace that all built-in and adapter package
// macros collapse into when contexts are built.
const GlobalProjectName = "sqlforge"

// GlobalPackages are the packages whose macros are merged into the shared
// global namespace instead of their own package namespace.
var GlobalPackages = map[string]bool{
	GlobalProjectName: true,
	"sqlforge_sqlite": true,
}

// IsGlobalPackage reports whether macros from the named package belong to the
// shared global namespace.
func IsGlobalPackage(name string) bool {
	return GlobalPackages[name]
}

// Manifest is the parsed-graph view the templating core consumes. The loader
// that discovers and orders nodes is an external collaborator; this interface
// is the full surface the rendering layer needs from it.
type Manifest interface {
	// Macros returns every macro definition node in the graph, in a stable
	// order. Only nodes with ResourceType == ResourceMacro are callable.
	Macros() []*Node

	// FlatGraph returns a plain-mapping view of the graph for introspection
	// from within templates (the "graph" context member).
	FlatGraph() map[string]any

	// ResolveRef finds the model or seed node a ref() call names. Nodes in
	// currentPackage shadow same-named nodes from other packages.
	ResolveRef(name, currentPackage string) (*Node, bool)

	// ResolveSource finds the source table node for a source() call.
	ResolveSource(sourceName, tableName string) (*Node, bool)
}

// StaticManifest is a Manifest over a fixed set of nodes. The production
// loader returns one of these; tests build them directly.
type StaticManifest struct {
	MacroNodes []*Node
	ModelNodes []*Node
	// SourceNodes is keyed "source_name.table_name".
	SourceNodes map[string]*Node
	Graph       map[string]any
}

// Macros implements Manifest.
func (m *StaticManifest) Macros() []*Node {
	return m.MacroNodes
}

// FlatGraph implements Manifest.
func (m *StaticManifest) FlatGraph() map[string]any {
	if m.Graph == nil {
		return map[string]any{}
	}
	return m.Graph
}

// ResolveRef implements Manifest.
func (m *StaticManifest) ResolveRef(name, currentPackage string) (*Node, bool) {
	var fallback *Node
	for _, n := range m.ModelNodes {
		if n.Name != name {
			continue
		}
		if n.PackageName == currentPackage {
			return n, true
		}
		if fallback == nil {
			fallback = n
		}
	}
	return fallback, fallback != nil
}

// ResolveSource implements Manifest.
func (m *StaticManifest) ResolveSource(sourceName, tableName string) (*Node, bool) {
	n, ok := m.SourceNodes[sourceName+"."+tableName]
	return n, ok
}
