package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for owl.
type Metrics struct {
	config MetricsConfig

	// Parse metrics
	filesParsed *prometheus.CounterVec
	parseErrors *prometheus.CounterVec

	// Resolve metrics
	resolves        *prometheus.CounterVec
	resolveDuration *prometheus.HistogramVec
	entriesResolved prometheus.Gauge
	groupsExpanded  prometheus.Counter

	// Plan metrics
	plansBuilt prometheus.Counter
	planUnits  *prometheus.CounterVec

	// Policy metrics
	policyEvaluations *prometheus.CounterVec
	policyViolations  *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// Watch metrics
	watchReloads *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Parse metrics
		filesParsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_parsed_total",
				Help:      "Total number of source files parsed",
			},
			[]string{"kind"},
		),
		parseErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_errors_total",
				Help:      "Total number of parse and resolve errors by kind",
			},
			[]string{"kind"},
		),

		// Resolve metrics
		resolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolves_total",
				Help:      "Total number of resolve passes",
			},
			[]string{"status"},
		),
		resolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolve_duration_seconds",
				Help:      "Duration of resolve passes in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		entriesResolved: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "entries_resolved",
				Help:      "Number of entries produced by the most recent resolve",
			},
		),
		groupsExpanded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "groups_expanded_total",
				Help:      "Total number of group includes expanded",
			},
		),

		// Plan metrics
		plansBuilt: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_built_total",
				Help:      "Total number of plans built",
			},
		),
		planUnits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plan_units_total",
				Help:      "Total number of plan units by operation",
			},
			[]string{"operation"},
		),

		// Policy metrics
		policyEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_evaluations_total",
				Help:      "Total number of policy evaluations",
			},
			[]string{"policy"},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations",
			},
			[]string{"policy", "severity"},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		// Watch metrics
		watchReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_reloads_total",
				Help:      "Total number of reloads triggered in watch mode",
			},
			[]string{"trigger"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.filesParsed,
		m.parseErrors,
		m.resolves,
		m.resolveDuration,
		m.entriesResolved,
		m.groupsExpanded,
		m.plansBuilt,
		m.planUnits,
		m.policyEvaluations,
		m.policyViolations,
		m.errorsByClass,
		m.errorsByCode,
		m.watchReloads,
	)

	return m, nil
}

// Parse Metrics

// RecordFileParsed increments the parsed-file counter for a source kind
// (main, host, group).
func (m *Metrics) RecordFileParsed(kind string) {
	if m.filesParsed == nil {
		return
	}
	m.filesParsed.WithLabelValues(kind).Inc()
}

// RecordParseError increments the parse-error counter for an error kind.
func (m *Metrics) RecordParseError(kind string) {
	if m.parseErrors == nil {
		return
	}
	m.parseErrors.WithLabelValues(kind).Inc()
}

// Resolve Metrics

// RecordResolve records a completed resolve pass with its status and duration.
func (m *Metrics) RecordResolve(status string, duration time.Duration) {
	if m.resolves == nil {
		return
	}
	m.resolves.WithLabelValues(status).Inc()
	m.resolveDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// SetEntriesResolved sets the entry count from the most recent resolve.
func (m *Metrics) SetEntriesResolved(count float64) {
	if m.entriesResolved == nil {
		return
	}
	m.entriesResolved.Set(count)
}

// RecordGroupExpanded increments the group expansion counter.
func (m *Metrics) RecordGroupExpanded() {
	if m.groupsExpanded == nil {
		return
	}
	m.groupsExpanded.Inc()
}

// Plan Metrics

// RecordPlanBuilt increments the plan counter.
func (m *Metrics) RecordPlanBuilt() {
	if m.plansBuilt == nil {
		return
	}
	m.plansBuilt.Inc()
}

// RecordPlanUnits adds to the plan unit counter for an operation.
func (m *Metrics) RecordPlanUnits(operation string, count int) {
	if m.planUnits == nil {
		return
	}
	m.planUnits.WithLabelValues(operation).Add(float64(count))
}

// Policy Metrics

// RecordPolicyEvaluation increments the evaluation counter for a policy.
func (m *Metrics) RecordPolicyEvaluation(policy string) {
	if m.policyEvaluations == nil {
		return
	}
	m.policyEvaluations.WithLabelValues(policy).Inc()
}

// RecordPolicyViolation increments the violation counter for a policy.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Watch Metrics

// RecordWatchReload increments the reload counter for a trigger kind
// (file change, policy change, manual).
func (m *Metrics) RecordWatchReload(trigger string) {
	if m.watchReloads == nil {
		return
	}
	m.watchReloads.WithLabelValues(trigger).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
