package core

// Credentials is the resolved connection target snapshot. The templating core
// only reads it; profile loading happens in internal/config.
type Credentials struct {
	Type     string `koanf:"type"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	Schema   string `koanf:"schema"`
	// Path is used by file-backed databases such as sqlite.
	Path string `koanf:"path"`
}

// ConnectionInfo returns the non-secret credential fields as a mapping,
// suitable for exposure as the "target" namespace in rendering contexts.
func (c Credentials) ConnectionInfo() map[string]any {
	return map[string]any{
		"type":     c.Type,
		"host":     c.Host,
		"port":     c.Port,
		"user":     c.User,
		"database": c.Database,
		"schema":   c.Schema,
		"path":     c.Path,
	}
}

// QuotePolicy controls identifier quoting for relations built through the
// relation proxy.
type QuotePolicy struct {
	Database   bool `koanf:"database"`
	Schema     bool `koanf:"schema"`
	Identifier bool `koanf:"identifier"`
}

// Merge returns p overridden key-for-key by the set fields of other.
func (p QuotePolicy) Merge(other map[string]bool) QuotePolicy {
	merged := p
	if v, ok := other["database"]; ok {
		merged.Database = v
	}
	if v, ok := other["schema"]; ok {
		merged.Schema = v
	}
	if v, ok := other["identifier"]; ok {
		merged.Identifier = v
	}
	return merged
}

// RuntimeConfig is the fully resolved warehouse configuration handed to the
// rendering layer: target credentials, quoting policy, CLI variable
// overrides, and project identity.
type RuntimeConfig struct {
	ProjectName string
	ProfileName string
	TargetName  string
	TargetPath  string
	Threads     int
	Credentials Credentials
	Quoting     QuotePolicy
	// CLIVars are command-line-supplied variable overrides; they take
	// precedence over node-local variables.
	CLIVars map[string]any
}

// ToDict returns the project-level configuration snapshot exposed under
// target.config in rendering contexts.
func (c *RuntimeConfig) ToDict() map[string]any {
	return map[string]any{
		"project_name": c.ProjectName,
		"profile_name": c.ProfileName,
		"target_name":  c.TargetName,
		"threads":      c.Threads,
	}
}
