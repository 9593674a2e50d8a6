package config

// SourceKind identifies which configuration source an Entry came from.
type SourceKind string

const (
	// SourceMain marks entries declared in main.owl.
	SourceMain SourceKind = "main"

	// SourceHost marks entries declared in a hosts/<name>.owl override.
	SourceHost SourceKind = "host"

	// SourceGroup marks entries pulled in through an @group include.
	SourceGroup SourceKind = "group"
)

// ConfigMapping links a dotfile source to its destination on the host.
type ConfigMapping struct {
	// Source is the resolved location of the dotfile. Relative sources are
	// expanded below the root's dotfiles directory; absolute sources are
	// kept as written.
	Source string `json:"source" validate:"required"`

	// Destination is the target path exactly as written in the directive.
	// Expansion of "~" and environment references is left to the file
	// synchronizer consuming the model.
	Destination string `json:"destination" validate:"required"`
}

// ServiceSpec describes one service managed for a package.
type ServiceSpec struct {
	// Name is the service unit name (e.g. "neovim.socket").
	Name string `json:"name" validate:"required"`

	// Props holds the bracketed service properties. Values written as
	// true/false (any case) are booleans; everything else stays a string.
	Props map[string]any `json:"props,omitempty"`
}

// BoolProp reads a boolean property, returning def when the property is
// absent or not a boolean.
func (s *ServiceSpec) BoolProp(key string, def bool) bool {
	if v, ok := s.Props[key].(bool); ok {
		return v
	}
	return def
}

// StringProp reads a string property, returning def when the property is
// absent or not a string.
func (s *ServiceSpec) StringProp(key, def string) string {
	if v, ok := s.Props[key].(string); ok {
		return v
	}
	return def
}

// EnvVar is a single KEY = VALUE environment declaration.
type EnvVar struct {
	// Key is the variable name.
	Key string `json:"key" validate:"required"`

	// Value is kept verbatim as written, quotes included.
	Value string `json:"value"`
}

// GlobalScript is a setup script not attached to any package. Global
// scripts run before all package scripts.
type GlobalScript struct {
	// Script is the command line to run.
	Script string `json:"script" validate:"required"`

	// SourceFile is the file the script was declared in.
	SourceFile string `json:"source_file,omitempty"`
}

// Entry is the resolved per-package bundle of config mappings, setup
// scripts, services, and environment variables. A resolved configuration
// holds at most one Entry per package name; repeated directives for the
// same package accumulate onto the same Entry.
type Entry struct {
	// PackageName is the package this entry belongs to.
	PackageName string `json:"package" validate:"required"`

	// ConfigMappings lists the package's dotfile mappings in declaration
	// order.
	ConfigMappings []ConfigMapping `json:"configs,omitempty" validate:"dive"`

	// SetupScripts lists the package's setup commands in declaration order.
	SetupScripts []string `json:"scripts,omitempty"`

	// Services lists the services managed for this package.
	Services []ServiceSpec `json:"services,omitempty" validate:"dive"`

	// EnvVars lists the package-scoped environment variables.
	EnvVars []EnvVar `json:"envs,omitempty" validate:"dive"`

	// SourceFile is the file whose directives last defined this entry.
	SourceFile string `json:"source_file"`

	// SourceKind records the kind of source the entry last came from.
	SourceKind SourceKind `json:"source_kind"`

	// GroupName names the including group when SourceKind is SourceGroup.
	GroupName string `json:"group_name,omitempty"`
}

// Empty reports whether the entry carries no mappings, scripts, services,
// or environment variables.
func (e *Entry) Empty() bool {
	return len(e.ConfigMappings) == 0 &&
		len(e.SetupScripts) == 0 &&
		len(e.Services) == 0 &&
		len(e.EnvVars) == 0
}

// ResolvedConfig is the loader's output: the merged model every other
// subsystem consumes. It is produced fresh on every Resolve call and never
// mutated afterwards by this package.
type ResolvedConfig struct {
	// Host is the host name the configuration was resolved for.
	Host string `json:"host"`

	// Entries holds one entry per package in first-reference order: global
	// declaration order first, then host-only packages in host order.
	Entries []*Entry `json:"entries"`

	// GlobalEnvs lists host-wide environment variables, global file first,
	// then host file, each preserving declaration order. Concatenated,
	// never merged.
	GlobalEnvs []EnvVar `json:"global_envs,omitempty"`

	// GlobalScripts lists host-wide setup scripts in the same order.
	GlobalScripts []GlobalScript `json:"global_scripts,omitempty"`
}

// Entry returns the entry for the given package name, or nil when the
// package is not part of the resolved configuration.
func (c *ResolvedConfig) Entry(name string) *Entry {
	for _, e := range c.Entries {
		if e.PackageName == name {
			return e
		}
	}
	return nil
}

// PackageNames returns the resolved package names in declaration order.
func (c *ResolvedConfig) PackageNames() []string {
	names := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		names = append(names, e.PackageName)
	}
	return names
}
