// Package core defines the shared object model for sqlforge: nodes, the
// manifest, runtime configuration, and the error taxonomy used across the
// templating and rendering layers.
package core

import "gopkg.in/yaml.v3"

// ResourceType classifies a node in the build graph.
type ResourceType string

// Resource type constants.
const (
	ResourceModel     ResourceType = "model"
	ResourceMacro     ResourceType = "macro"
	ResourceSeed      ResourceType = "seed"
	ResourceSource    ResourceType = "source"
	ResourceOperation ResourceType = "operation"
)

// Node is a unit of compiled build work (model, seed, macro, operation) with
// known package/path identity. The templating core never creates nodes; they
// come from the manifest loader.
type Node struct {
	// Name is the resolved node name (e.g., "customers").
	Name string
	// PackageName identifies the package this node was loaded from.
	PackageName string
	// OriginalFilePath is the path of the source file, relative to the
	// package root. Together with PackageName it forms the template cache key.
	OriginalFilePath string
	// RootPath is the absolute path of the package root.
	RootPath string
	// ResourceType classifies the node.
	ResourceType ResourceType
	// RawSQL is the unrendered template text of the node.
	RawSQL string
	// InjectedSQL is the compiled SQL body, set before full-model rendering.
	InjectedSQL string
	// Schema overrides the connection default schema when non-empty.
	Schema string
	// Database overrides the connection default database when non-empty.
	Database string
	// Vars are the node-local variable declarations.
	Vars map[string]any
	// NodeConfig is the node's resolved configuration, read by config.get
	// and config.require inside templates.
	NodeConfig map[string]any
	// Quoting holds source-level quoting overrides ("database", "schema",
	// "identifier"). Only sources carry these; models follow project quoting.
	Quoting map[string]bool
	// PreHooks and PostHooks run around the node's materialization.
	PreHooks  []Hook
	PostHooks []Hook
}

// Hook is a SQL statement run before or after a node is built.
type Hook struct {
	SQL         string `yaml:"sql"`
	Transaction bool   `yaml:"transaction"`
}

// UnmarshalYAML accepts either a bare SQL string or a {sql, transaction}
// mapping. Bare strings run in a transaction.
func (h *Hook) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		h.SQL = value.Value
		h.Transaction = true
		return nil
	}
	type plain Hook
	p := plain{Transaction: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*h = Hook(p)
	return nil
}

// ToDict returns the hook as a plain mapping for template contexts.
func (h Hook) ToDict() map[string]any {
	return map[string]any{
		"sql":         h.SQL,
		"transaction": h.Transaction,
	}
}

// LocalVars returns the node's variable declarations, never nil.
func (n *Node) LocalVars() map[string]any {
	if n == nil || n.Vars == nil {
		return map[string]any{}
	}
	return n.Vars
}

// ToDict returns the node as a plain mapping for template contexts.
func (n *Node) ToDict() map[string]any {
	if n == nil {
		return nil
	}
	d := map[string]any{
		"name":               n.Name,
		"package_name":       n.PackageName,
		"original_file_path": n.OriginalFilePath,
		"resource_type":      string(n.ResourceType),
		"schema":             n.Schema,
		"database":           n.Database,
		"raw_sql":            n.RawSQL,
	}
	if n.Quoting != nil {
		q := make(map[string]any, len(n.Quoting))
		for k, v := range n.Quoting {
			q[k] = v
		}
		d["quoting"] = q
	}
	return d
}
