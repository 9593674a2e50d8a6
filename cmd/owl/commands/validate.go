package commands

import (
	"context"
	"fmt"

	"github.com/owlconfig/owl/pkg/config"
	"github.com/owlconfig/owl/pkg/policy"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	var (
		policyDirs []string
		strict     bool
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration tree",
		Long: `Validate the configuration tree for the selected host.

Validation resolves the tree (parsing every reachable file, expanding
groups, and merging the host file over main.owl), then checks the
resolved entries for structural problems such as empty packages or
duplicate link destinations. When --policy-dir is given, the resolved
configuration is also evaluated against the Rego policies found there.

The command exits non-zero on parse errors, structural issues, or
blocking policy violations. With --strict, warning-severity violations
fail the run too.`,
		Example: `  # Validate the tree for this machine
  owl validate

  # Validate for another host against team policies
  owl validate --host workstation --policy-dir ./policies

  # Keep validating as files change
  owl validate --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("root", rootDir).
				Str("host", hostName).
				Bool("watch", watch).
				Msg("Validating configuration")

			ctx := cmd.Context()
			logger := log.Logger

			loader := config.NewLoader(rootDir, logger)

			var policyEngine *policy.Engine
			if len(policyDirs) > 0 {
				eng, err := policy.NewEngine(logger)
				if err != nil {
					return fmt.Errorf("failed to create policy engine: %w", err)
				}
				if err := eng.LoadPolicies(ctx, policyDirs); err != nil {
					return fmt.Errorf("failed to load policies: %w", err)
				}
				policyEngine = eng
			}

			if watch {
				fmt.Printf("Watching %s for changes (Ctrl-C to stop)\n\n", rootDir)
				watcher := config.NewWatcher(loader, hostName, logger)
				return watcher.Watch(ctx, func(resolved *config.ResolvedConfig, err error) {
					if reportValidation(ctx, resolved, err, policyEngine, strict) {
						fmt.Printf("✅ Configuration is valid: %d entries for host %s\n\n", len(resolved.Entries), resolved.Host)
					} else {
						fmt.Println()
					}
				})
			}

			resolved, err := loader.Resolve(ctx, hostName)
			if !reportValidation(ctx, resolved, err, policyEngine, strict) {
				return fmt.Errorf("configuration is not valid")
			}

			fmt.Printf("✅ Configuration is valid: %d entries for host %s\n", len(resolved.Entries), resolved.Host)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&policyDirs, "policy-dir", nil, "directory or file of Rego policies (repeatable)")
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warning violations as failures")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-validate whenever the tree changes")

	return cmd
}

// reportValidation prints every problem found in one resolution pass and
// reports whether the configuration passed.
func reportValidation(ctx context.Context, resolved *config.ResolvedConfig, err error, policyEngine *policy.Engine, strict bool) bool {
	if err != nil {
		fmt.Printf("✗ %s\n", err)
		return false
	}

	ok := true

	issues := config.NewValidator().ValidateResolved(resolved)
	for _, issue := range issues {
		fmt.Printf("✗ %s\n", issue)
		ok = false
	}

	if policyEngine != nil {
		result, perr := policyEngine.EvaluateConfig(ctx, resolved)
		if perr != nil {
			fmt.Printf("✗ policy evaluation failed: %s\n", perr)
			return false
		}

		for _, v := range result.Violations {
			fmt.Printf("✗ [%s] %s", v.Severity, v.Policy)
			if v.Package != "" {
				fmt.Printf(" (%s)", v.Package)
			}
			fmt.Printf(": %s\n", v.Message)
			if v.Remediation != "" {
				fmt.Printf("    fix: %s\n", v.Remediation)
			}

			if v.Severity == policy.SeverityError {
				ok = false
			}
			if strict && v.Severity == policy.SeverityWarning {
				ok = false
			}
		}

		for _, warning := range result.Warnings {
			fmt.Printf("⚠ %s\n", warning)
		}

		fmt.Printf("Policies evaluated: %d, violations: %d\n", len(result.EvaluatedPolicies), len(result.Violations))
	}

	return ok
}
