package commands

import (
	"fmt"

	"github.com/owlconfig/owl/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newScriptsCommand() *cobra.Command {
	var packageName string

	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "Print setup scripts in execution order",
		Long: `Print the setup scripts the resolved configuration declares, in the
order an executor would run them: host-wide scripts first, then each
package's scripts in resolution order.`,
		Example: `  # List every script for this machine
  owl scripts

  # Pipe one package's setup into a shell
  owl scripts --package neovim | sh`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Debug().
				Str("root", rootDir).
				Str("host", hostName).
				Msg("Listing setup scripts")

			ctx := cmd.Context()

			loader := config.NewLoader(rootDir, log.Logger)
			resolved, err := loader.Resolve(ctx, hostName)
			if err != nil {
				return err
			}

			if packageName != "" {
				entry := resolved.Entry(packageName)
				if entry == nil {
					return fmt.Errorf("package %q is not declared for host %s", packageName, resolved.Host)
				}
				for _, script := range entry.SetupScripts {
					fmt.Println(script)
				}
				return nil
			}

			if len(resolved.GlobalScripts) > 0 {
				fmt.Println("# host-wide")
				for _, script := range resolved.GlobalScripts {
					fmt.Println(script.Script)
				}
			}

			for _, entry := range resolved.Entries {
				if len(entry.SetupScripts) == 0 {
					continue
				}
				fmt.Printf("# %s\n", entry.PackageName)
				for _, script := range entry.SetupScripts {
					fmt.Println(script)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&packageName, "package", "p", "", "print a single package's scripts")

	return cmd
}
