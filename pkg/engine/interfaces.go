package engine

import (
	"context"

	"github.com/owlconfig/owl/pkg/config"
	"github.com/owlconfig/owl/pkg/stores"
)

// Resolver loads and resolves the declared configuration for one host.
// Phase 1 of the pipeline: Resolve -> Diff -> Plan -> Graph.
type Resolver interface {
	// Resolve produces the merged configuration model for the given host.
	Resolve(ctx context.Context, host string) (*config.ResolvedConfig, error)
}

// Planner computes differences and builds execution plans.
// Phases 2 through 4 of the pipeline.
type Planner interface {
	// ComputeDiff compares the resolved configuration with recorded state.
	ComputeDiff(ctx context.Context, desired *config.ResolvedConfig, recorded *stores.HostState) (*DiffResult, error)

	// BuildPlan expands a diff into an execution plan.
	BuildPlan(ctx context.Context, resolved *config.ResolvedConfig, diff *DiffResult) (*Plan, error)

	// BuildGraph creates the dependency graph for plan execution.
	BuildGraph(ctx context.Context, plan *Plan) (*ExecutionGraph, error)

	// ValidatePlan validates a plan for correctness.
	ValidatePlan(ctx context.Context, plan *Plan) error
}

// StateReader is the slice of the state store the planner consumes. The full
// store interface lives in pkg/stores; the planner only ever reads.
type StateReader interface {
	// GetHostState returns everything recorded for one host.
	GetHostState(ctx context.Context, host string) (*stores.HostState, error)
}

// FactsCollector gathers host facts for run annotations.
type FactsCollector interface {
	// Collect gathers a fresh facts snapshot.
	Collect(ctx context.Context) (*HostFacts, error)
}
