package commands

import (
	"fmt"
	"strings"

	"github.com/owlconfig/owl/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newEnvCommand() *cobra.Command {
	var (
		shell       string
		packageName string
	)

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Render environment exports for a host",
		Long: `Render the environment variables the resolved configuration declares,
as shell statements suitable for eval.

Host-wide variables come first, then per-package variables in
resolution order. Values the author already wrapped in quotes are
emitted as written; anything else is quoted for the target shell.`,
		Example: `  # Load the environment into the current shell
  eval "$(owl env)"

  # Fish syntax
  owl env --shell fish | source

  # Only one package's variables
  owl env --package neovim`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Debug().
				Str("root", rootDir).
				Str("host", hostName).
				Str("shell", shell).
				Msg("Rendering environment exports")

			ctx := cmd.Context()

			loader := config.NewLoader(rootDir, log.Logger)
			resolved, err := loader.Resolve(ctx, hostName)
			if err != nil {
				return err
			}

			render := renderShExport
			switch shell {
			case "sh":
			case "fish":
				render = renderFishExport
			default:
				return fmt.Errorf("unknown shell %q (expected sh or fish)", shell)
			}

			if packageName != "" {
				entry := resolved.Entry(packageName)
				if entry == nil {
					return fmt.Errorf("package %q is not declared for host %s", packageName, resolved.Host)
				}
				for _, env := range entry.EnvVars {
					fmt.Println(render(env))
				}
				return nil
			}

			if len(resolved.GlobalEnvs) > 0 {
				fmt.Println("# host-wide")
				for _, env := range resolved.GlobalEnvs {
					fmt.Println(render(env))
				}
			}

			for _, entry := range resolved.Entries {
				if len(entry.EnvVars) == 0 {
					continue
				}
				fmt.Printf("# %s\n", entry.PackageName)
				for _, env := range entry.EnvVars {
					fmt.Println(render(env))
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&shell, "shell", "s", "sh", "shell syntax to emit (sh or fish)")
	cmd.Flags().StringVarP(&packageName, "package", "p", "", "render a single package's variables")

	return cmd
}

func renderShExport(env config.EnvVar) string {
	return fmt.Sprintf("export %s=%s", env.Key, quoteSh(env.Value))
}

func renderFishExport(env config.EnvVar) string {
	return fmt.Sprintf("set -gx %s %s", env.Key, quoteFish(env.Value))
}

// quoteSh single-quotes a value for POSIX shells unless the author
// already quoted it.
func quoteSh(value string) string {
	if isQuoted(value) {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

// quoteFish single-quotes a value for fish, which escapes backslashes
// and quotes inside single-quoted strings.
func quoteFish(value string) string {
	if isQuoted(value) {
		return value
	}
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "'" + escaped + "'"
}

func isQuoted(value string) bool {
	if len(value) < 2 {
		return false
	}
	first, last := value[0], value[len(value)-1]
	return (first == '"' && last == '"') || (first == '\'' && last == '\'')
}
