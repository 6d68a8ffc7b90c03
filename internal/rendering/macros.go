package rendering

import (
	"github.com/leapstack-labs/sqlforge/internal/macro"
	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

// addMacros wires every macro in the manifest into ctx. Each package gets its
// own namespace so any macro stays reachable fully qualified; macros from
// global packages all collapse into the shared namespace. The flat layer is
// merged global-first then local-package, so a local macro's short name wins
// over a global one of the same name.
//
// Generators are bound to ctx itself, which is still being assembled when
// this runs. Macro bodies therefore see the finished context at call time,
// including members added after this layer.
func addMacros(ctx tmpl.Context, manifest core.Manifest, node *core.Node) {
	if manifest == nil {
		return
	}

	namespaces := map[string]tmpl.Context{}
	var globalFlat, localFlat []*macro.Generator

	currentPackage := ""
	if node != nil {
		currentPackage = node.PackageName
	}

	for _, m := range manifest.Macros() {
		if m.ResourceType != core.ResourceMacro {
			continue
		}
		gen := macro.NewGenerator(m, ctx)
		short := tmpl.MacroShortName(tmpl.ResolveName(m.Name))

		nsName := m.PackageName
		if core.IsGlobalPackage(nsName) {
			nsName = core.GlobalProjectName
		}
		ns, ok := namespaces[nsName]
		if !ok {
			ns = tmpl.Context{}
			namespaces[nsName] = ns
		}
		ns[short] = gen.Func()

		switch {
		case core.IsGlobalPackage(m.PackageName):
			globalFlat = append(globalFlat, gen)
		case m.PackageName == currentPackage:
			localFlat = append(localFlat, gen)
		}
	}

	for name, ns := range namespaces {
		ctx[name] = ns
	}
	for _, gen := range globalFlat {
		ctx[tmpl.MacroShortName(tmpl.ResolveName(gen.Node().Name))] = gen.Func()
	}
	for _, gen := range localFlat {
		ctx[tmpl.MacroShortName(tmpl.ResolveName(gen.Node().Name))] = gen.Func()
	}
}
