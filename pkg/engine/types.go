package engine

import (
	"encoding/json"
	"time"
)

// ResourceKind identifies the kind of host resource a plan unit touches.
type ResourceKind string

const (
	// KindPackage is an installable package.
	KindPackage ResourceKind = "package"

	// KindConfigLink is a dotfile link from the tree to a host destination.
	KindConfigLink ResourceKind = "config_link"

	// KindService is a managed service unit.
	KindService ResourceKind = "service"

	// KindEnvVar is an exported environment variable.
	KindEnvVar ResourceKind = "env_var"

	// KindScript is a setup script, package-scoped or global.
	KindScript ResourceKind = "script"
)

// ResourceDiff represents the difference for a single package between the
// declared configuration and the recorded host state.
type ResourceDiff struct {
	// ResourceID identifies the resource, e.g. "package:neovim".
	ResourceID string `json:"resource_id"`

	// Kind is the resource kind.
	Kind ResourceKind `json:"kind"`

	// Package is the package name the diff belongs to.
	Package string `json:"package"`

	// Operation is the required operation.
	Operation OperationType `json:"operation"`

	// Before is the recorded entry content, if any.
	Before json.RawMessage `json:"before,omitempty"`

	// After is the declared entry content, if any.
	After json.RawMessage `json:"after,omitempty"`

	// Reason explains why the operation is needed.
	Reason string `json:"reason"`
}

// DiffResult represents the outcome of comparing a resolved configuration
// with recorded host state.
type DiffResult struct {
	// Host is the host the diff was computed for.
	Host string `json:"host"`

	// Creates lists packages declared but not recorded.
	Creates []ResourceDiff `json:"creates"`

	// Updates lists packages whose declared content changed since last apply.
	Updates []ResourceDiff `json:"updates"`

	// Deletes lists packages recorded but no longer declared.
	Deletes []ResourceDiff `json:"deletes"`

	// UnchangedCount is the number of packages already in sync.
	UnchangedCount int `json:"unchanged_count"`

	// ComputedAt is when the diff was computed.
	ComputedAt time.Time `json:"computed_at"`
}

// Empty returns true if the diff requires no operations.
func (d *DiffResult) Empty() bool {
	return len(d.Creates) == 0 && len(d.Updates) == 0 && len(d.Deletes) == 0
}

// PlanUnit represents a unit of work in the execution DAG.
type PlanUnit struct {
	// ID is the deterministic semantic identifier of this plan unit,
	// e.g. "install:neovim" or "link:neovim:~/.config/nvim".
	ID string `json:"id"`

	// ResourceID identifies the host resource the unit operates on.
	ResourceID string `json:"resource_id"`

	// Kind is the kind of resource the unit operates on.
	Kind ResourceKind `json:"kind"`

	// Package is the owning package name. Empty for global script units.
	Package string `json:"package,omitempty"`

	// Operation is the operation to perform.
	Operation OperationType `json:"operation"`

	// Status is the planning-time status of this unit.
	Status PlanStatus `json:"status"`

	// Dependencies lists plan unit IDs that must complete before this unit.
	Dependencies []Dependency `json:"dependencies,omitempty"`

	// Detail is a human-readable summary of the unit's work, e.g. the
	// "source -> destination" pair of a link unit.
	Detail string `json:"detail,omitempty"`

	// ExecutionOrder is the topological level assigned by the DAG builder.
	// Units sharing a level have no ordering constraints between them.
	ExecutionOrder int `json:"execution_order"`
}

// Dependency represents an edge in the execution DAG.
type Dependency struct {
	// TargetID is the ID of the plan unit this depends on.
	TargetID string `json:"target_id"`

	// Type is the type of dependency relationship.
	Type DependencyType `json:"type"`
}

// DependencyType represents the type of dependency between plan units.
type DependencyType string

const (
	// DependencyRequire indicates a hard dependency that must succeed.
	DependencyRequire DependencyType = "require"

	// DependencyOrder indicates ordering without a success requirement.
	DependencyOrder DependencyType = "order"
)

// Plan represents a complete execution plan for one host.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`

	// Host is the host the plan was built for.
	Host string `json:"host"`

	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at"`

	// Units are all the plan units to be executed.
	Units []PlanUnit `json:"units"`

	// Graph is the DAG representation of the plan, attached by BuildGraph.
	Graph *ExecutionGraph `json:"graph,omitempty"`

	// Stats provides high-level statistics about the plan.
	Stats PlanStats `json:"stats"`
}

// Unit returns the plan unit with the given ID, or nil.
func (p *Plan) Unit(id string) *PlanUnit {
	for i := range p.Units {
		if p.Units[i].ID == id {
			return &p.Units[i]
		}
	}
	return nil
}

// PlanStats provides statistics about a plan.
type PlanStats struct {
	// Total is the total number of plan units.
	Total int `json:"total"`

	// ByOperation counts plan units per operation type.
	ByOperation map[OperationType]int `json:"by_operation,omitempty"`
}

// ExecutionGraph represents the DAG of plan units.
type ExecutionGraph struct {
	// Nodes maps plan unit IDs to their graph nodes.
	Nodes map[string]*GraphNode `json:"nodes"`

	// Edges lists all dependency edges in the graph.
	Edges []GraphEdge `json:"edges"`

	// Roots are the plan unit IDs with no dependencies.
	Roots []string `json:"roots"`

	// Depth is the number of topological levels in the graph.
	Depth int `json:"depth"`
}

// GraphNode represents a node in the execution graph.
type GraphNode struct {
	// ID is the plan unit ID.
	ID string `json:"id"`

	// Level is the topological level (depth from roots).
	Level int `json:"level"`

	// Dependencies are the incoming edges (units this depends on).
	Dependencies []string `json:"dependencies"`

	// Dependents are the outgoing edges (units that depend on this).
	Dependents []string `json:"dependents"`
}

// GraphEdge represents an edge in the execution graph.
type GraphEdge struct {
	// From is the source plan unit ID.
	From string `json:"from"`

	// To is the target plan unit ID.
	To string `json:"to"`

	// Type is the dependency type.
	Type DependencyType `json:"type"`
}
