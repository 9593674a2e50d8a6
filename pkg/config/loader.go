package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Loader orchestrates global and host file resolution below a single root
// directory. A Loader is stateless between calls: every Resolve re-reads
// and re-parses from scratch, and nothing is cached or shared across
// invocations.
//
// Fixed layout below the root:
//
//	main.owl          required global configuration
//	hosts/<name>.owl  optional per-host override
//	groups/<name>.owl required only when referenced via @group
//	dotfiles/         source tree :config mappings resolve into
type Loader struct {
	root   string
	logger zerolog.Logger
}

// NewLoader returns a loader rooted at dir. The root is normalized to an
// absolute path so diagnostics and resolved mappings carry absolute
// locations.
func NewLoader(dir string, logger zerolog.Logger) *Loader {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &Loader{
		root:   dir,
		logger: logger.With().Str("component", "config-loader").Logger(),
	}
}

// Root returns the absolute root directory.
func (l *Loader) Root() string { return l.root }

// MainPath returns the location of the required global configuration file.
func (l *Loader) MainPath() string { return filepath.Join(l.root, "main.owl") }

// HostPath returns the location of the optional override file for host.
func (l *Loader) HostPath(host string) string {
	return filepath.Join(l.root, "hosts", host+".owl")
}

// GroupPath returns the location an @group include resolves to.
func (l *Loader) GroupPath(name string) string {
	return filepath.Join(l.root, "groups", name+".owl")
}

// DotfilePath returns the location a relative :config source resolves to.
func (l *Loader) DotfilePath(source string) string {
	if filepath.IsAbs(source) {
		return source
	}
	return filepath.Join(l.root, "dotfiles", source)
}

// Resolve loads main.owl, overlays hosts/<hostName>.owl when present, and
// returns the merged model. The first diagnostic aborts the whole call: no
// partial results are ever returned.
func (l *Loader) Resolve(ctx context.Context, hostName string) (*ResolvedConfig, error) {
	mainPath := l.MainPath()
	if _, err := os.Stat(mainPath); err != nil {
		return nil, newError(ErrReference, mainPath, 0, "", "Global config file not found")
	}

	rs := &resolver{root: l.root, logger: l.logger}

	// The global and host files get independent in-progress sets: host-side
	// group cycles are unrelated to global-side ones.
	merged, err := rs.resolveFile(mainPath, SourceMain, "", newGroupStack())
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if hostName != "" {
		hostPath := l.HostPath(hostName)
		// Absence of a host file is not an error: the global configuration
		// stands alone.
		if _, err := os.Stat(hostPath); err == nil {
			host, err := rs.resolveFile(hostPath, SourceHost, "", newGroupStack())
			if err != nil {
				return nil, err
			}

			// Host entries win over global ones per the last-non-empty-wins
			// policy; global declarations concatenate global-then-host.
			mergeEntries(merged, host)
			merged.globalEnvs = append(merged.globalEnvs, host.globalEnvs...)
			merged.globalScripts = append(merged.globalScripts, host.globalScripts...)
		}
	}

	cfg := &ResolvedConfig{
		Host:          hostName,
		Entries:       merged.list(),
		GlobalEnvs:    merged.globalEnvs,
		GlobalScripts: merged.globalScripts,
	}

	l.logger.Debug().
		Str("host", hostName).
		Int("entries", len(cfg.Entries)).
		Int("global_envs", len(cfg.GlobalEnvs)).
		Int("global_scripts", len(cfg.GlobalScripts)).
		Msg("Configuration resolved")

	return cfg, nil
}
