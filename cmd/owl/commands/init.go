package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	var (
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize an owl configuration tree",
		Long: `Initialize a new owl configuration tree with a starter main.owl, the
hosts/, groups/, and dotfiles/ directories, and the state database.

Existing files are left untouched unless --force is given.`,
		Example: `  # Initialize the default tree under ~/.owl
  owl init

  # Initialize a tree in a custom location
  owl init --root ~/dotfiles`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("root", rootDir).
				Str("host", hostName).
				Msg("Initializing configuration tree")

			ctx := cmd.Context()

			fmt.Printf("Initializing owl configuration tree in %s\n\n", rootDir)

			// Step 1: Create directory structure
			dirs := []string{
				rootDir,
				filepath.Join(rootDir, "hosts"),
				filepath.Join(rootDir, "groups"),
				filepath.Join(rootDir, "dotfiles"),
				filepath.Join(rootDir, "state"),
			}

			for _, dir := range dirs {
				if err := os.MkdirAll(dir, 0700); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
				fmt.Printf("✓ Created directory: %s\n", dir)
			}

			// Step 2: Write starter configuration files
			mainPath := filepath.Join(rootDir, "main.owl")
			if err := writeStarterFile(mainPath, starterMain, force); err != nil {
				return err
			}

			hostPath := filepath.Join(rootDir, "hosts", hostName+".owl")
			if err := writeStarterFile(hostPath, fmt.Sprintf(starterHost, hostName), force); err != nil {
				return err
			}

			// Step 3: Initialize the state database
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Printf("✓ Initialized state database: %s\n", statePath())

			// Done
			fmt.Printf("\n✅ Configuration tree initialized successfully!\n\n")
			fmt.Printf("Next steps:\n")
			fmt.Printf("  1. Declare packages in %s\n\n", mainPath)
			fmt.Printf("  2. Check the tree:\n")
			fmt.Printf("     owl validate\n\n")
			fmt.Printf("  3. See what would change on this host:\n")
			fmt.Printf("     owl plan\n\n")

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing starter files")

	return cmd
}

// writeStarterFile writes content to path unless the file already exists
// and force is false.
func writeStarterFile(path, content string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		fmt.Printf("✓ File already exists: %s\n", path)
		return nil
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Printf("✓ Created file: %s\n", path)
	return nil
}

const starterMain = `# owl global configuration.
# Entries here apply to every host unless a host file overrides them.
#
# @package neovim
# :config nvim -> ~/.config/nvim
# :script ./bootstrap.sh
# :env EDITOR = nvim
#
# Host-wide environment and setup:
# @env PAGER = less -R
# @script ./update-mirrors.sh
#
# Pull in a shared group from groups/<name>.owl:
# @group development
`

const starterHost = `# Host overrides for %s.
# A package declared here replaces the global declaration with the same
# name. Groups referenced here expand into this host only.
`
