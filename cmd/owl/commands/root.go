package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/owlconfig/owl/pkg/engine"
	"github.com/owlconfig/owl/pkg/stores"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	rootDir   string
	hostName  string
	verbose   bool
	logFormat string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "owl",
		Short: "owl - declarative dotfiles and package configuration",
		Long: `owl manages packages, dotfile links, services, environment variables,
and setup scripts from a small declarative configuration tree.

A tree has one global main.owl, per-host files under hosts/, and
reusable groups under groups/. Resolution merges the host file over the
global file so every machine gets exactly the entries it declares.

Features:
  - Declarative .owl configuration with host overrides and groups
  - Deterministic resolution with precise file:line diagnostics
  - Execution planning with dependency-ordered plan units
  - Rego policy enforcement for team conventions
  - SQLite-backed run and package state tracking`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logFormat == "json" {
				log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
			}
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", defaultRoot(), "configuration tree root")
	rootCmd.PersistentFlags().StringVarP(&hostName, "host", "H", engine.DefaultHostname(), "host to resolve the configuration for")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log output format (console or json)")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newEnvCommand())
	rootCmd.AddCommand(newScriptsCommand())
	rootCmd.AddCommand(newStateCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

// defaultRoot returns the configuration tree root: $OWL_ROOT when set,
// otherwise ~/.owl.
func defaultRoot() string {
	if env := os.Getenv("OWL_ROOT"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".owl"
	}
	return filepath.Join(home, ".owl")
}

// statePath returns the SQLite database path under the tree root.
func statePath() string {
	return filepath.Join(rootDir, "state", "owl.db")
}

// openStore opens the state database under the tree root, creating and
// migrating it on first use.
func openStore(ctx context.Context) (stores.Store, error) {
	if err := os.MkdirAll(filepath.Dir(statePath()), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: statePath()})
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize state database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}

	return store, nil
}
