package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// Load resolves the project file, the profiles file, and CLI flags into a
// RuntimeConfig, returning the parsed project alongside it for callers that
// need source paths. Precedence, highest first: flags > env vars (SQLFORGE_
// prefix) > project file > defaults. targetOverride selects a profile output
// other than the profile's default.
func Load(projectDir, profilesPath, targetOverride string, flags *pflag.FlagSet) (*core.RuntimeConfig, *Project, error) {
	project, err := loadProject(projectDir, flags)
	if err != nil {
		return nil, nil, err
	}

	profileName := project.Profile
	if profileName == "" {
		profileName = project.Name
	}
	profile, err := loadProfile(profilesPath, profileName)
	if err != nil {
		return nil, nil, err
	}

	targetName := profile.Target
	if targetOverride != "" {
		targetName = targetOverride
	}
	output, ok := profile.Outputs[targetName]
	if !ok {
		return nil, nil, fmt.Errorf("profile %q has no output named %q (available: %v)",
			profileName, targetName, outputNames(profile))
	}

	threads := output.Threads
	if threads <= 0 {
		threads = DefaultThreads
	}

	cliVars, err := parseCLIVars(flags)
	if err != nil {
		return nil, nil, err
	}
	for k, v := range project.Vars {
		if _, set := cliVars[k]; !set {
			cliVars[k] = v
		}
	}

	targetPath := project.TargetPath
	if !filepath.IsAbs(targetPath) {
		targetPath = filepath.Join(projectDir, targetPath)
	}

	return &core.RuntimeConfig{
		ProjectName: project.Name,
		ProfileName: profileName,
		TargetName:  targetName,
		TargetPath:  targetPath,
		Threads:     threads,
		Credentials: output.Credentials,
		Quoting:     core.QuotePolicy{}.Merge(project.Quoting),
		CLIVars:     cliVars,
	}, project, nil
}

// loadProject reads sqlforge.yml layered with env vars and flags.
func loadProject(projectDir string, flags *pflag.FlagSet) (*Project, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"model-paths": []string{"models"},
		"macro-paths": []string{"macros"},
		"target-path": DefaultTargetPath,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := filepath.Join(projectDir, ProjectFileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no %s found in %s", ProjectFileName, projectDir)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading project file %s: %w", path, err)
	}

	if err := k.Load(env.Provider("SQLFORGE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "SQLFORGE_")), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// vars is handled separately as a YAML payload
			if f.Name == "vars" {
				return "", nil
			}
			return f.Name, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var project Project
	if err := k.Unmarshal("", &project); err != nil {
		return nil, fmt.Errorf("unable to decode project file: %w", err)
	}
	if project.Name == "" {
		return nil, fmt.Errorf("project file %s has no name", path)
	}
	return &project, nil
}

// loadProfile reads one named profile from profiles.yml. When profilesPath is
// empty the file is looked up next to the project file, then under
// ~/.sqlforge/.
func loadProfile(profilesPath, profileName string) (*Profile, error) {
	path := profilesPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".sqlforge", ProfilesFileName)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}
	if path == "" {
		path = ProfilesFileName
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("profiles file not found: %s", path)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading profiles file %s: %w", path, err)
	}

	if !k.Exists(profileName) {
		return nil, fmt.Errorf("profile %q not found in %s", profileName, path)
	}
	var profile Profile
	if err := k.Unmarshal(profileName, &profile); err != nil {
		return nil, fmt.Errorf("unable to decode profile %q: %w", profileName, err)
	}
	if len(profile.Outputs) == 0 {
		return nil, fmt.Errorf("profile %q defines no outputs", profileName)
	}
	return &profile, nil
}

// parseCLIVars decodes the --vars flag, a YAML mapping supplied inline.
func parseCLIVars(flags *pflag.FlagSet) (map[string]any, error) {
	vars := map[string]any{}
	if flags == nil {
		return vars, nil
	}
	raw, err := flags.GetString("vars")
	if err != nil || raw == "" {
		return vars, nil
	}
	if err := yamlv3.Unmarshal([]byte(raw), &vars); err != nil {
		return nil, fmt.Errorf("invalid --vars value: %w", err)
	}
	return vars, nil
}

func outputNames(p *Profile) []string {
	names := make([]string, 0, len(p.Outputs))
	for name := range p.Outputs {
		names = append(names, name)
	}
	return names
}
