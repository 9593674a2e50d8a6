// Package policy provides Open Policy Agent (OPA) integration for owl.
//
// This package evaluates Rego policies against resolved configurations and
// execution plans before anything touches the host. It ships with built-in
// guardrails for common dotfiles mistakes and supports loading custom
// policies from files and directories.
//
// # Architecture
//
// The policy system consists of four main components:
//
//  1. Engine - Compiles and evaluates Rego policies
//  2. Loader - Loads policies from files, directories, and bundles
//  3. Types - Data structures for policies, violations, and results
//  4. Built-in Policies - Pre-defined guardrails
//
// # Usage
//
// Creating a policy engine:
//
//	logger := zerolog.New(os.Stdout)
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Evaluating a resolved configuration:
//
//	result, err := eng.EvaluateConfig(ctx, resolved)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !result.Allowed {
//	    for _, violation := range result.Violations {
//	        fmt.Printf("Policy %s violated: %s\n", violation.Policy, violation.Message)
//	    }
//	}
//
// Loading custom policies:
//
//	paths := []string{
//	    "~/.owl/policies",
//	    "/etc/owl/policies/team.rego",
//	}
//
//	err = eng.LoadPolicies(ctx, paths)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Built-in Policies
//
// The following policies are included by default:
//
//  1. link-destinations - Mapping destinations must be absolute or ~/ paths
//  2. service-scopes - Service scope must be system or user
//  3. package-naming - Package names must be valid package manager names
//  4. script-hygiene - Setup scripts must be non-empty; sudo usage is flagged
//  5. plan-safety - Flags bulk removals and piped-download scripts in plans
//
// # Custom Policies
//
// Custom policies are written in Rego against the same input document. An
// entry-scoped pass sets input.entry, a plan-scoped pass sets input.plan:
//
//	package owl.policies.editors
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.entry
//	    input.entry["package"] == "emacs"
//
//	    violation := {
//	        "message": "This household uses vim",
//	        "severity": "error",
//	        "package": "emacs",
//	    }
//	}
//
// Deny set members may be plain strings or objects with message, severity,
// resource, package, and remediation keys. Severity falls back to the
// policy's default when a member does not carry its own.
//
// # Severity Levels
//
// Violations have four severity levels:
//
//   - info: Informational messages
//   - warning: Issues that should be reviewed but don't block operations
//   - error: Issues that block operations
//   - critical: Severe issues requiring immediate attention
//
// # Hot Reload
//
// The loader supports watching policy files for changes and reloading
// automatically, which backs the validate --watch flow:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return eng.LoadPolicies(ctx, paths)
//	})
//
// # Performance
//
// Each policy's deny query is prepared once at load time with OPA's
// PreparedEvalQuery and reused for every evaluation.
package policy
