package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog"

	"github.com/owlconfig/owl/pkg/config"
	"github.com/owlconfig/owl/pkg/engine"
)

// Engine evaluates Rego policies against resolved configurations and
// execution plans.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	store    storage.Store
	logger   zerolog.Logger
	builtins []Policy
}

// compiledPolicy holds a policy together with its prepared deny query.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		store:    inmem.New(),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
		builtins: BuiltinPolicies(),
	}

	if err := e.loadBuiltins(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load built-in policies: %w", err)
	}

	return e, nil
}

// EvaluateConfig evaluates all enabled policies against every entry of a
// resolved configuration.
func (e *Engine) EvaluateConfig(ctx context.Context, resolved *config.ResolvedConfig) (*Result, error) {
	if resolved == nil {
		return nil, fmt.Errorf("resolved configuration is nil")
	}

	started := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := e.newResult()

	for _, cp := range e.enabledPolicies() {
		result.EvaluatedPolicies = append(result.EvaluatedPolicies, cp.policy.Name)

		for _, entry := range resolved.Entries {
			input := &Input{
				Host:  resolved.Host,
				Entry: entry,
				Context: &Context{
					Timestamp: time.Now(),
					Operation: "validate",
				},
			}

			violations, err := e.evaluatePolicy(ctx, cp, input)
			if err != nil {
				e.logger.Error().Err(err).
					Str("policy", cp.policy.Name).
					Str("package", entry.PackageName).
					Msg("Policy evaluation failed")
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Policy %s evaluation failed: %v", cp.policy.Name, err))
				continue
			}

			result.Violations = append(result.Violations, violations...)
		}
	}

	e.finishResult(result, started)

	e.logger.Debug().
		Str("host", resolved.Host).
		Int("entries", len(resolved.Entries)).
		Int("violations", len(result.Violations)).
		Bool("allowed", result.Allowed).
		Dur("duration", result.Duration).
		Msg("Configuration policy evaluation completed")

	return result, nil
}

// EvaluatePlan evaluates all enabled policies against an execution plan.
func (e *Engine) EvaluatePlan(ctx context.Context, host string, plan *engine.Plan) (*Result, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan is nil")
	}

	started := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := e.newResult()

	for _, cp := range e.enabledPolicies() {
		result.EvaluatedPolicies = append(result.EvaluatedPolicies, cp.policy.Name)

		input := &Input{
			Host: host,
			Plan: plan,
			Context: &Context{
				Timestamp: time.Now(),
				Operation: "plan",
			},
		}

		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Str("plan", plan.ID).
				Msg("Policy evaluation failed")
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Policy %s evaluation failed: %v", cp.policy.Name, err))
			continue
		}

		result.Violations = append(result.Violations, violations...)
	}

	e.finishResult(result, started)

	e.logger.Debug().
		Str("plan_id", plan.ID).
		Int("violations", len(result.Violations)).
		Bool("allowed", result.Allowed).
		Dur("duration", result.Duration).
		Msg("Plan policy evaluation completed")

	return result, nil
}

// EvaluateEntry evaluates all enabled policies against a single entry.
func (e *Engine) EvaluateEntry(ctx context.Context, host string, entry *config.Entry) (*Result, error) {
	if entry == nil {
		return nil, fmt.Errorf("entry is nil")
	}

	started := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := e.newResult()

	for _, cp := range e.enabledPolicies() {
		result.EvaluatedPolicies = append(result.EvaluatedPolicies, cp.policy.Name)

		input := &Input{
			Host:  host,
			Entry: entry,
			Context: &Context{
				Timestamp: time.Now(),
				Operation: "validate",
			},
		}

		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Str("package", entry.PackageName).
				Msg("Policy evaluation failed")
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Policy %s evaluation failed: %v", cp.policy.Name, err))
			continue
		}

		result.Violations = append(result.Violations, violations...)
	}

	e.finishResult(result, started)

	return result, nil
}

// LoadPolicies loads and compiles policy files from the given paths,
// alongside the built-ins.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	for i := range policies {
		if err := e.compilePolicy(ctx, &policies[i]); err != nil {
			e.logger.Error().Err(err).
				Str("policy", policies[i].Name).
				Msg("Failed to compile policy")
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded")

	return nil
}

// enabledPolicies returns the enabled policies in name order, so identical
// inputs always produce violations in the same order.
func (e *Engine) enabledPolicies() []*compiledPolicy {
	names := make([]string, 0, len(e.policies))
	for name, cp := range e.policies {
		if cp.policy.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	enabled := make([]*compiledPolicy, 0, len(names))
	for _, name := range names {
		enabled = append(enabled, e.policies[name])
	}
	return enabled
}

func (e *Engine) newResult() *Result {
	return &Result{
		Violations:        make([]Violation, 0),
		EvaluatedPolicies: make([]string, 0, len(e.policies)),
	}
}

// finishResult stamps timing and derives Allowed from the violations.
func (e *Engine) finishResult(result *Result, started time.Time) {
	result.Allowed = true
	for i := range result.Violations {
		if result.Violations[i].Severity.Blocking() {
			result.Allowed = false
			break
		}
	}
	result.EvaluatedAt = time.Now()
	result.Duration = time.Since(started)
}

// evaluatePolicy runs one prepared deny query against the input.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *Input) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, e.newViolation(cp.policy, d, input))
		}
	}

	return violations, nil
}

// newViolation builds a Violation from one member of a policy's deny set.
// String members become the message; object members may carry message,
// severity, resource, package, and remediation keys.
func (e *Engine) newViolation(policy *Policy, result interface{}, input *Input) Violation {
	violation := Violation{
		Policy:     policy.Name,
		Severity:   policy.Severity,
		DetectedAt: time.Now(),
	}

	if input.Entry != nil {
		violation.Package = input.Entry.PackageName
		violation.Resource = "package:" + input.Entry.PackageName
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = Severity(sev)
		}
		if res, ok := v["resource"].(string); ok {
			violation.Resource = res
		}
		if pkg, ok := v["package"].(string); ok {
			violation.Package = pkg
		}
		if rem, ok := v["remediation"].(string); ok {
			violation.Remediation = rem
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

// compilePolicy parses the policy, prepares its deny query, and stores it.
func (e *Engine) compilePolicy(ctx context.Context, policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	query, err := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Store(e.store),
		rego.Query(fmt.Sprintf("data.%s.deny", regoPackage(policy.Rego))),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		module:   module,
		query:    query,
		compiled: time.Now(),
	}

	e.logger.Debug().
		Str("policy", policy.Name).
		Msg("Policy compiled")

	return nil
}

// regoPackage extracts the package path from Rego source.
func regoPackage(source string) string {
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "owl.policies"
}

// loadBuiltins compiles the built-in policies.
func (e *Engine) loadBuiltins(ctx context.Context) error {
	for i := range e.builtins {
		if err := e.compilePolicy(ctx, &e.builtins[i]); err != nil {
			return fmt.Errorf("failed to compile built-in policy %s: %w", e.builtins[i].Name, err)
		}
	}

	e.logger.Debug().
		Int("count", len(e.builtins)).
		Msg("Built-in policies loaded")

	return nil
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}

	return cp.policy, nil
}

// ListPolicies returns all loaded policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		policies = append(policies, *cp.policy)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })

	return policies
}

// ReloadPolicies drops every loaded policy and recompiles the built-ins.
// External policies must be loaded again by the caller.
func (e *Engine) ReloadPolicies(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.policies = make(map[string]*compiledPolicy)

	return e.loadBuiltins(ctx)
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = true
	e.logger.Info().Str("policy", name).Msg("Policy enabled")

	return nil
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = false
	e.logger.Info().Str("policy", name).Msg("Policy disabled")

	return nil
}
