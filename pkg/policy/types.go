package policy

import (
	"time"

	"github.com/owlconfig/owl/pkg/config"
	"github.com/owlconfig/owl/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block operations.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocking returns true if violations of this severity reject the evaluation.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Resource is the resource ID that violated the policy, when known.
	Resource string `json:"resource,omitempty"`

	// Package is the owning package name, when the violation is entry-scoped.
	Package string `json:"package,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Remediation provides a suggested fix.
	Remediation string `json:"remediation,omitempty"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// Result represents the outcome of one policy evaluation pass.
type Result struct {
	// Allowed indicates if the evaluated subject passed. Violations at
	// warning or info severity do not affect it.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations, blocking or not.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists policies that could not be evaluated.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation ran.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Blocking returns the subset of violations that reject the subject.
func (r *Result) Blocking() []Violation {
	blocking := make([]Violation, 0)
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			blocking = append(blocking, v)
		}
	}
	return blocking
}

// Input is the document handed to Rego for evaluation. Exactly one of Entry
// or Plan is set per pass; policies select themselves by guarding on the
// field they care about.
type Input struct {
	// Host is the host the configuration was resolved for.
	Host string `json:"host"`

	// Entry is the package entry being evaluated, for entry-scoped passes.
	Entry *config.Entry `json:"entry,omitempty"`

	// Plan is the execution plan being evaluated, for plan-scoped passes.
	Plan *engine.Plan `json:"plan,omitempty"`

	// Context provides additional evaluation context.
	Context *Context `json:"context"`
}

// Context provides context information for policy evaluation.
type Context struct {
	// User is the user performing the operation.
	User string `json:"user,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Operation is the operation being performed, e.g. "validate" or "plan".
	Operation string `json:"operation,omitempty"`

	// DryRun indicates if this is a dry-run evaluation.
	DryRun bool `json:"dry_run"`

	// Metadata contains additional context metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Bundle represents a collection of related policies.
type Bundle struct {
	// Name is the unique name of the bundle.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Policies are the policies in this bundle.
	Policies []Policy `json:"policies"`

	// CreatedAt is when the bundle was created.
	CreatedAt time.Time `json:"created_at"`
}

// Summary provides aggregate statistics over one or more evaluation results.
type Summary struct {
	// TotalViolations is the total number of violations.
	TotalViolations int `json:"total_violations"`

	// ViolationsBySeverity breaks down violations by severity.
	ViolationsBySeverity map[Severity]int `json:"violations_by_severity"`

	// Allowed is the number of passes that were allowed.
	Allowed int `json:"allowed"`

	// Blocked is the number of passes that were blocked.
	Blocked int `json:"blocked"`

	// EvaluationDuration is the total evaluation time.
	EvaluationDuration time.Duration `json:"evaluation_duration"`
}

// Summarize aggregates evaluation results into a summary.
func Summarize(results ...*Result) *Summary {
	summary := &Summary{
		ViolationsBySeverity: make(map[Severity]int),
	}

	for _, result := range results {
		if result == nil {
			continue
		}
		summary.TotalViolations += len(result.Violations)
		for _, v := range result.Violations {
			summary.ViolationsBySeverity[v.Severity]++
		}
		if result.Allowed {
			summary.Allowed++
		} else {
			summary.Blocked++
		}
		summary.EvaluationDuration += result.Duration
	}

	return summary
}
