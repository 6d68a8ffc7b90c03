package loader

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// Frontmatter is the optional YAML block at the top of a model file,
// delimited by /*--- and ---*/. It carries node-level overrides that would
// otherwise come from project configuration.
type Frontmatter struct {
	Name      string         `yaml:"name"`
	Schema    string         `yaml:"schema"`
	Database  string         `yaml:"database"`
	Config    map[string]any `yaml:"config"`
	Vars      map[string]any `yaml:"vars"`
	PreHooks  []core.Hook    `yaml:"pre_hook"`
	PostHooks []core.Hook    `yaml:"post_hook"`
}

// FrontmatterResult pairs the parsed frontmatter with the template body that
// follows it.
type FrontmatterResult struct {
	Config  *Frontmatter
	SQL     string
	HasYAML bool
}

var frontmatterPattern = regexp.MustCompile(`(?s)^\s*/\*---\s*\n(.*?)\s*---\*/`)

// ExtractFrontmatter splits a model file into its frontmatter block and the
// SQL template that follows. Files without frontmatter pass through
// untouched.
func ExtractFrontmatter(content string) (*FrontmatterResult, error) {
	result := &FrontmatterResult{Config: &Frontmatter{}, SQL: content}

	matches := frontmatterPattern.FindStringSubmatch(content)
	if len(matches) < 2 {
		return result, nil
	}
	result.HasYAML = true
	result.SQL = strings.TrimSpace(frontmatterPattern.ReplaceAllString(content, ""))
	if strings.TrimSpace(matches[1]) == "" {
		return result, nil
	}

	dec := yaml.NewDecoder(strings.NewReader(matches[1]))
	dec.KnownFields(true)
	if err := dec.Decode(result.Config); err != nil {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}
	return result, nil
}
