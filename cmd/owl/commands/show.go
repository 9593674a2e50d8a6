package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/owlconfig/owl/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newShowCommand() *cobra.Command {
	var (
		format      string
		packageName string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration for a host",
		Long: `Show the configuration the selected host actually gets after groups
are expanded and the host file is merged over main.owl.

The table format summarizes every entry with its provenance. The json
and yaml formats emit the full resolved configuration for scripting.`,
		Example: `  # Summarize the configuration for this machine
  owl show

  # Inspect one package in detail
  owl show --package neovim

  # Dump the resolved configuration for another host as JSON
  owl show --host workstation --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("root", rootDir).
				Str("host", hostName).
				Str("format", format).
				Msg("Showing resolved configuration")

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

				switch format {
				case "table":
					printEntryDetail(entry)
					return nil
				case "json":
					return printJSON(entry)
				case "yaml":
					return printYAML(entry)
				}
				return fmt.Errorf("unknown format %q (expected table, json, or yaml)", format)
			}

			switch format {
			case "table":
				printResolvedTable(resolved)
				return nil
			case "json":
				return printJSON(resolved)
			case "yaml":
				return printYAML(resolved)
			}
			return fmt.Errorf("unknown format %q (expected table, json, or yaml)", format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json, or yaml)")
	cmd.Flags().StringVarP(&packageName, "package", "p", "", "show a single package entry")

	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML round-trips through JSON so the YAML keys match the JSON
// field names instead of Go identifiers.
func printYAML(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}

	out, err := yaml.Marshal(generic)
	if err != nil {
		return err
	}

	fmt.Print(string(out))
	return nil
}

func printResolvedTable(resolved *config.ResolvedConfig) {
	fmt.Printf("Host: %s\n", resolved.Host)
	fmt.Printf("Entries: %d\n\n", len(resolved.Entries))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PACKAGE\tSOURCE\tCONFIGS\tSERVICES\tENVS\tSCRIPTS")
	for _, entry := range resolved.Entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
			entry.PackageName,
			entrySource(entry),
			len(entry.ConfigMappings),
			len(entry.Services),
			len(entry.EnvVars),
			len(entry.SetupScripts),
		)
	}
	w.Flush()

	if len(resolved.GlobalEnvs) > 0 {
		fmt.Printf("\nGlobal environment:\n")
		for _, env := range resolved.GlobalEnvs {
			fmt.Printf("  %s=%s\n", env.Key, env.Value)
		}
	}

	if len(resolved.GlobalScripts) > 0 {
		fmt.Printf("\nGlobal scripts:\n")
		for _, script := range resolved.GlobalScripts {
			fmt.Printf("  %s  (from %s)\n", script.Script, script.SourceFile)
		}
	}
}

func printEntryDetail(entry *config.Entry) {
	fmt.Printf("Package: %s\n", entry.PackageName)
	fmt.Printf("Source: %s (%s)\n", entry.SourceFile, entrySource(entry))

	if len(entry.ConfigMappings) > 0 {
		fmt.Printf("Configs:\n")
		for _, m := range entry.ConfigMappings {
			fmt.Printf("  %s -> %s\n", m.Source, m.Destination)
		}
	}

	if len(entry.Services) > 0 {
		fmt.Printf("Services:\n")
		for _, svc := range entry.Services {
			fmt.Printf("  %s%s\n", svc.Name, formatServiceProps(svc))
		}
	}

	if len(entry.EnvVars) > 0 {
		fmt.Printf("Environment:\n")
		for _, env := range entry.EnvVars {
			fmt.Printf("  %s=%s\n", env.Key, env.Value)
		}
	}

	if len(entry.SetupScripts) > 0 {
		fmt.Printf("Scripts:\n")
		for _, script := range entry.SetupScripts {
			fmt.Printf("  %s\n", script)
		}
	}
}

func entrySource(entry *config.Entry) string {
	if entry.SourceKind == config.SourceGroup {
		return "group:" + entry.GroupName
	}
	return string(entry.SourceKind)
}

func formatServiceProps(svc config.ServiceSpec) string {
	if len(svc.Props) == 0 {
		return ""
	}

	keys := make([]string, 0, len(svc.Props))
	for k := range svc.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, svc.Props[k]))
	}

	return " [" + strings.Join(parts, ", ") + "]"
}
