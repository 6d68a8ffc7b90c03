package engine

import (
	"sync"

	"github.com/leapstack-labs/sqlforge/internal/dag"
	"github.com/leapstack-labs/sqlforge/internal/rendering"
	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

// recordingManifest wraps a manifest and records every ref lookup made
// through it. Unresolved refs resolve to a stand-in node so extraction can
// continue past them.
type recordingManifest struct {
	core.Manifest

	mu   sync.Mutex
	refs []string
}

func (r *recordingManifest) ResolveRef(name, currentPackage string) (*core.Node, bool) {
	r.mu.Lock()
	r.refs = append(r.refs, name)
	r.mu.Unlock()

	if node, ok := r.Manifest.ResolveRef(name, currentPackage); ok {
		return node, true
	}
	return &core.Node{Name: name, ResourceType: core.ResourceModel}, true
}

// Dependencies returns the names of the models a node references, in first
// use order. The node is rendered in capture mode; references to models the
// manifest does not know are still reported.
func (e *Engine) Dependencies(node *core.Node) ([]string, error) {
	rec := &recordingManifest{Manifest: e.manifest}
	p := &rendering.Provider{Adapter: e.adapter, Execute: false, Logger: e.logger}
	ctx := rendering.Generate(node, e.cfg, rec, p, node.NodeConfig)
	if _, err := tmpl.GetRendered(node.RawSQL, ctx, node, tmpl.WithCapture()); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var deps []string
	for _, ref := range rec.refs {
		if !seen[ref] {
			seen[ref] = true
			deps = append(deps, ref)
		}
	}
	return deps, nil
}

// BuildGraph extracts every model's references and assembles the dependency
// graph. References to models outside the manifest are ignored; a reference
// cycle surfaces as an error from the first Sort call, not here.
func (e *Engine) BuildGraph(nodes []*core.Node) (*dag.Graph, error) {
	g := dag.New()
	known := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		g.Add(node)
		known[node.Name] = true
	}

	for _, node := range nodes {
		deps, err := e.Dependencies(node)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			if !known[dep] {
				continue
			}
			if err := g.AddDependency(dep, node.Name); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}
