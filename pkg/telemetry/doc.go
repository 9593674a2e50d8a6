// Package telemetry provides observability instrumentation for owl.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), metrics (Prometheus), and event publishing into a
// unified system for monitoring resolve passes, planning, and policy
// evaluation.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// Most owl invocations are short-lived CLI commands, so DefaultConfig keeps
// tracing and metrics off and enables logging only. Long-running commands
// such as watch mode opt in to the full stack.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "owl"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.Logger.NewComponentLogger("resolver")
//	logger = logger.WithHost("laptop").WithPackage("neovim")
//	logger.Info("Resolving host configuration")
//	logger.WithError(err).Error("Resolve failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into resolve and planning flow:
//
//	ctx, span := tel.Tracer.StartResolveSpan(ctx, "laptop")
//	defer span.End()
//
//	// Add attributes
//	span.SetAttributes(
//	    telemetry.AttrSourceFile.String("/owl/main.owl"),
//	    telemetry.AttrGroup.String("development"),
//	)
//
//	// Record errors
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Span helpers exist for each phase: StartResolveSpan, StartGroupSpan,
// StartPlanSpan, StartPolicySpan.
//
// # Metrics
//
// Prometheus metrics track engine behavior under the "owl" namespace:
//
//	// Record a resolve pass
//	tel.Metrics.RecordResolve("succeeded", duration)
//	tel.Metrics.SetEntriesResolved(float64(len(resolved.Entries)))
//
//	// Record planning
//	tel.Metrics.RecordPlanBuilt()
//	tel.Metrics.RecordPlanUnits("install", 3)
//
//	// Record policy activity
//	tel.Metrics.RecordPolicyEvaluation("link-destinations")
//	tel.Metrics.RecordPolicyViolation("link-destinations", "error")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics) when
// the metrics server is started, which watch mode does.
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	// Publish events
//	tel.Events.PublishResolveCompleted("laptop", 12, duration)
//	tel.Events.PublishPlanCreated("laptop", planID, 5)
//	tel.Events.PublishPolicyViolation("neovim", "link-destinations", reason)
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByHost, FilterByPackage
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "plan.build",
//	    telemetry.AttrHost.String(host))
//	defer ic.End(err)
//
//	ic.Logger.Info("Building plan")
//
//	// Resolve context
//	ctx = telemetry.WithResolveContext(ctx, host, root)
//	defer func() { telemetry.EndResolveContext(ctx, host, len(entries), err) }()
//
//	// Policy evaluation
//	err := telemetry.RecordPolicyOperation(ctx, "link-destinations", func() error {
//	    return evaluate(ctx, entry)
//	})
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
//	// Custom configuration
//	cfg := &telemetry.Config{
//	    ServiceName: "owl",
//	    ServiceVersion: "1.0.0",
//	    Environment: "staging",
//	    Logging: telemetry.LoggingConfig{
//	        Level: "info",
//	        Format: "json",
//	    },
//	    Tracing: telemetry.TracingConfig{
//	        Enabled: true,
//	        Exporter: "otlp",
//	        Endpoint: "otel-collector:4317",
//	        SamplingRate: 0.1,
//	    },
//	    Metrics: telemetry.MetricsConfig{
//	        Enabled: true,
//	        ListenAddress: ":9090",
//	    },
//	}
//
// # Exporters
//
// Tracing supports multiple exporters:
//
//   - "stdout": Print traces to stdout (development)
//   - "otlp": Export via OTLP/gRPC (production, works with collectors)
//   - "none": Generate traces but don't export (testing)
//
// Configure via TracingConfig.Exporter and TracingConfig.Endpoint
//
// # Common Metrics
//
// Key metrics exposed:
//
//   - owl_files_parsed_total{kind}
//   - owl_parse_errors_total{kind}
//   - owl_resolves_total{status}
//   - owl_resolve_duration_seconds{status}
//   - owl_entries_resolved
//   - owl_groups_expanded_total
//   - owl_plans_built_total
//   - owl_plan_units_total{operation}
//   - owl_policy_evaluations_total{policy}
//   - owl_policy_violations_total{policy,severity}
//   - owl_errors_by_class_total{class}
//   - owl_watch_reloads_total{trigger}
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// This ensures all buffered events are published and all pending traces are
// exported before the process exits.
package telemetry
