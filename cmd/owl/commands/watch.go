package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/owlconfig/owl/pkg/config"
	"github.com/owlconfig/owl/pkg/policy"
	"github.com/owlconfig/owl/pkg/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var (
		policyDirs  []string
		strict      bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Validate continuously as the tree changes",
		Long: `Watch the configuration tree and re-validate on every change.

Each save of a .owl file under the root, hosts/, or groups/ directories
triggers a fresh resolution followed by the same checks "owl validate"
runs, including policy evaluation when --policy-dir is given. The loop
runs until interrupted.

With --metrics-addr, a Prometheus endpoint reports reload and
validation metrics for long-lived sessions.`,
		Example: `  # Re-validate on every save
  owl watch

  # Watch with team policies and a metrics endpoint
  owl watch --policy-dir ./policies --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("root", rootDir).
				Str("host", hostName).
				Str("metrics_addr", metricsAddr).
				Msg("Watching configuration tree")

			ctx := cmd.Context()
			logger := log.Logger

			telCfg := telemetry.DefaultConfig()
			telCfg.Logging.Output = "stderr"
			if metricsAddr != "" {
				telCfg.Metrics.Enabled = true
				telCfg.Metrics.ListenAddress = metricsAddr
			}

			tel, err := telemetry.NewTelemetry(telCfg)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				tel.Shutdown(shutdownCtx)
			}()

			if metricsAddr != "" {
				if err := tel.StartMetricsServer(); err != nil {
					return fmt.Errorf("failed to start metrics server: %w", err)
				}
				log.Info().Str("addr", metricsAddr).Msg("Metrics endpoint listening")
			}

			var policyEngine *policy.Engine
			if len(policyDirs) > 0 {
				eng, perr := policy.NewEngine(logger)
				if perr != nil {
					return fmt.Errorf("failed to create policy engine: %w", perr)
				}
				if perr := eng.LoadPolicies(ctx, policyDirs); perr != nil {
					return fmt.Errorf("failed to load policies: %w", perr)
				}
				policyEngine = eng
			}

			fmt.Printf("Watching %s for changes (Ctrl-C to stop)\n\n", rootDir)

			loader := config.NewLoader(rootDir, logger)
			watcher := config.NewWatcher(loader, hostName, logger)

			initial := true
			return watcher.Watch(ctx, func(resolved *config.ResolvedConfig, err error) {
				trigger := "fs_event"
				if initial {
					trigger = "initial"
					initial = false
				}
				tel.Metrics.RecordWatchReload(trigger)
				tel.Events.PublishWatchReload(rootDir)

				if reportValidation(ctx, resolved, err, policyEngine, strict) {
					tel.Metrics.SetEntriesResolved(float64(len(resolved.Entries)))
					fmt.Printf("✅ Configuration is valid: %d entries for host %s\n\n", len(resolved.Entries), resolved.Host)
				} else {
					fmt.Println()
				}
			})
		},
	}

	cmd.Flags().StringArrayVar(&policyDirs, "policy-dir", nil, "directory or file of Rego policies (repeatable)")
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warning violations as failures")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}
