package tmpl

import "strings"

// Macro name mangling. Every callable fragment gets a resolved name built
// from a prefix that users cannot collide with, so macros of the same short
// name defined in different packages or for different strategies stay
// distinct inside one module namespace.
const (
	macroPrefix = "sqlforge_macro__"
	docsPrefix  = "sqlforge_docs__"

	materializationPrefix = "materialization_"

	// DefaultAdapter is the adapter slot used by materializations that do not
	// declare one.
	DefaultAdapter = "default"
)

// MacroName returns the resolved name for a user macro.
func MacroName(name string) string {
	return macroPrefix + name
}

// MacroShortName strips the macro prefix, returning the declared name.
func MacroShortName(resolved string) string {
	return strings.TrimPrefix(resolved, macroPrefix)
}

// IsMacroName reports whether resolved names a user macro.
func IsMacroName(resolved string) bool {
	return strings.HasPrefix(resolved, macroPrefix)
}

// MaterializationMacroName returns the resolved name for a materialization
// strategy. An empty adapter selects the default slot.
func MaterializationMacroName(name, adapter string) string {
	if adapter == "" {
		adapter = DefaultAdapter
	}
	return materializationPrefix + name + "__" + adapter
}

// DocsMacroName returns the resolved name for a docs block.
func DocsMacroName(name string) string {
	return docsPrefix + name
}

// ResolveName maps a node-level macro name to its resolved form. Names that
// already carry a disambiguation prefix pass through unchanged.
func ResolveName(name string) string {
	if strings.HasPrefix(name, macroPrefix) ||
		strings.HasPrefix(name, docsPrefix) ||
		strings.HasPrefix(name, materializationPrefix) {
		return name
	}
	return MacroName(name)
}
