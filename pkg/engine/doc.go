// Package engine provides the planning layer of the owl configuration engine.
//
// # Overview
//
// The engine sits between the resolved configuration model and the external
// apply layer. It never touches the host: it compares what the configuration
// declares with what the state store has recorded, and emits a plan for
// executors to carry out. The workflow has four phases:
//
//  1. Resolve - Load and merge the .owl configuration (pkg/config)
//  2. Diff - Compare declared entries with recorded host state (ComputeDiff)
//  3. Plan - Expand package diffs into plan units (BuildPlan)
//  4. Graph - Order units into a DAG with execution levels (BuildGraph)
//
// # Core Domain Types
//
//   - ResourceDiff: One package's difference between declared and recorded
//   - DiffResult: All creates, updates, and deletes for one host
//   - PlanUnit: A unit of work with a deterministic semantic ID such as
//     "install:neovim" or "link:neovim:~/.config/nvim"
//   - Dependency: An edge in the execution graph (require/order)
//   - Plan: A complete execution plan with statistics and attached graph
//   - ExecutionGraph: The DAG with topological levels for parallel apply
//   - HostFacts: Informational snapshot of the local host
//
// # Plan Structure
//
// Each installed or updated package expands into a package unit plus one unit
// per config mapping, service, environment variable, and setup script. Links,
// services, and env vars require their package unit; scripts additionally
// require the package's link units and are ordered after global script units.
// Removals disable services and remove links before the package itself.
//
// # Error Classification
//
// Errors are classified for the retry logic of callers:
//
//   - Validation: Invalid plans, unknown dependencies, bad operations
//   - Transient: Temporary failures that may succeed on retry
//   - Permanent: Non-recoverable errors
//   - Cancelled: Context cancellation
//
// Use the helper predicates to inspect errors:
//
//	if engine.IsRetryable(err) {
//	    // Retry the operation
//	}
//
// # Example Usage
//
//	planner := engine.NewPlanner(logger)
//
//	diff, err := planner.ComputeDiff(ctx, resolved, recorded)
//	plan, err := planner.BuildPlan(ctx, resolved, diff)
//	graph, err := planner.BuildGraph(ctx, plan)
//
//	for _, root := range graph.Roots {
//	    // Root units have no dependencies and can start immediately.
//	}
//
// # Thread Safety
//
// Planner implementations are stateless and safe for concurrent use. A
// DAGBuilder accumulates state across calls and must not be shared between
// goroutines.
package engine
