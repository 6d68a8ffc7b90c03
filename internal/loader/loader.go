// Package loader discovers model and macro files on disk and assembles them
// into a manifest the engine can render against.
package loader

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/leapstack-labs/sqlforge/internal/config"
	"github.com/leapstack-labs/sqlforge/pkg/core"
	"github.com/leapstack-labs/sqlforge/pkg/tmpl"
)

// Loader walks a project's configured source paths and builds a manifest.
type Loader struct {
	projectDir string
	project    *config.Project
	logger     *slog.Logger
}

// New builds a loader rooted at projectDir. logger may be nil.
func New(projectDir string, project *config.Project, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{projectDir: projectDir, project: project, logger: logger}
}

// Load discovers models, macros, and sources and returns them as a manifest.
func (l *Loader) Load() (*core.StaticManifest, error) {
	manifest := &core.StaticManifest{}

	for _, dir := range l.project.ModelPaths {
		if err := l.loadModels(manifest, dir); err != nil {
			return nil, err
		}
	}
	for _, dir := range l.project.MacroPaths {
		if err := l.loadMacros(manifest, dir); err != nil {
			return nil, err
		}
	}
	if err := l.loadSources(manifest); err != nil {
		return nil, err
	}

	l.logger.Debug("manifest loaded",
		"models", len(manifest.ModelNodes),
		"macros", len(manifest.MacroNodes),
		"sources", len(manifest.SourceNodes))
	return manifest, nil
}

func (l *Loader) loadModels(manifest *core.StaticManifest, dir string) error {
	return l.walkSQL(dir, func(relPath, content string) error {
		fm, err := ExtractFrontmatter(content)
		if err != nil {
			return fmt.Errorf("%s: %w", relPath, err)
		}

		name := fm.Config.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(relPath), ".sql")
		}
		manifest.ModelNodes = append(manifest.ModelNodes, &core.Node{
			Name:             name,
			PackageName:      l.project.Name,
			OriginalFilePath: relPath,
			RootPath:         l.projectDir,
			ResourceType:     core.ResourceModel,
			RawSQL:           fm.SQL,
			Schema:           fm.Config.Schema,
			Database:         fm.Config.Database,
			NodeConfig:       fm.Config.Config,
			Vars:             fm.Config.Vars,
			PreHooks:         fm.Config.PreHooks,
			PostHooks:        fm.Config.PostHooks,
		})
		return nil
	})
}

var adapterArgPattern = regexp.MustCompile(`adapter\s*=\s*'([^']*)'`)

// loadMacros registers each top-level macro or materialization block as its
// own manifest node, all sharing the defining file's template.
func (l *Loader) loadMacros(manifest *core.StaticManifest, dir string) error {
	return l.walkSQL(dir, func(relPath, content string) error {
		blocks, err := tmpl.ExtractTopLevelBlocks(content, nil, false)
		if err != nil {
			return fmt.Errorf("%s: %w", relPath, err)
		}
		for _, b := range blocks {
			tag, ok := b.(*tmpl.BlockTag)
			if !ok || tag.TypeName == "docs" {
				continue
			}
			name := tag.Name
			if tag.TypeName == "materialization" {
				adapter := ""
				if m := adapterArgPattern.FindStringSubmatch(tag.RawArgs); m != nil {
					adapter = m[1]
				}
				name = tmpl.MaterializationMacroName(tag.Name, adapter)
			}
			manifest.MacroNodes = append(manifest.MacroNodes, &core.Node{
				Name:             name,
				PackageName:      l.project.Name,
				OriginalFilePath: relPath,
				RootPath:         l.projectDir,
				ResourceType:     core.ResourceMacro,
				RawSQL:           content,
			})
		}
		return nil
	})
}

// loadSources reads the optional sources.yml next to the project file.
func (l *Loader) loadSources(manifest *core.StaticManifest) error {
	path := filepath.Join(l.projectDir, SourcesFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	sources, err := parseSources(data)
	if err != nil {
		return fmt.Errorf("%s: %w", SourcesFileName, err)
	}

	manifest.SourceNodes = map[string]*core.Node{}
	for _, src := range sources {
		for _, table := range src.Tables {
			manifest.SourceNodes[src.Name+"."+table.Name] = &core.Node{
				Name:         table.Identifier(),
				PackageName:  l.project.Name,
				RootPath:     l.projectDir,
				ResourceType: core.ResourceSource,
				Schema:       src.SchemaName(),
				Database:     src.Database,
				Quoting:      src.Quoting,
			}
		}
	}
	return nil
}

func (l *Loader) walkSQL(dir string, fn func(relPath, content string) error) error {
	root := dir
	if !filepath.IsAbs(root) {
		root = filepath.Join(l.projectDir, dir)
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		l.logger.Debug("source path missing, skipping", "path", root)
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.projectDir, path)
		if err != nil {
			rel = path
		}
		return fn(filepath.ToSlash(rel), string(content))
	})
}
