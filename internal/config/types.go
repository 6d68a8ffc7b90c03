// Package config loads the project file and the connection profiles and
// resolves them into the runtime configuration the rendering layer consumes.
package config

import (
	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// Project is the shape of sqlforge.yml.
type Project struct {
	Name       string          `koanf:"name"`
	Profile    string          `koanf:"profile"`
	ModelPaths []string        `koanf:"model-paths"`
	MacroPaths []string        `koanf:"macro-paths"`
	TargetPath string          `koanf:"target-path"`
	Quoting    map[string]bool `koanf:"quoting"`
	Vars       map[string]any  `koanf:"vars"`
}

// Profile is one named entry in profiles.yml: a default target name plus the
// outputs it can resolve to.
type Profile struct {
	Target  string            `koanf:"target"`
	Outputs map[string]Output `koanf:"outputs"`
}

// Output is one connection target within a profile.
type Output struct {
	core.Credentials `koanf:",squash"`
	Threads          int `koanf:"threads"`
}

// Default file and directory names.
const (
	ProjectFileName  = "sqlforge.yml"
	ProfilesFileName = "profiles.yml"

	DefaultTargetPath = "target"
	DefaultThreads    = 1
)
