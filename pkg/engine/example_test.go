package engine_test

import (
	"encoding/json"
	"time"

	"github.com/owlconfig/owl/pkg/engine"
)

// Example_workflow demonstrates how the core types compose together in a
// typical plan lifecycle.
func Example_workflow() {
	// 1. A diff entry for a package that is declared but not yet recorded
	diff := engine.ResourceDiff{
		ResourceID: "package:neovim",
		Kind:       engine.KindPackage,
		Package:    "neovim",
		Operation:  engine.OperationInstall,
		After:      json.RawMessage(`{"package_name":"neovim"}`),
		Reason:     "not recorded on host",
	}

	// 2. The plan unit expanded from the diff
	planUnit := engine.PlanUnit{
		ID:         "install:neovim",
		ResourceID: diff.ResourceID,
		Kind:       diff.Kind,
		Package:    diff.Package,
		Operation:  diff.Operation,
		Status:     engine.PlanStatusPending,
		Detail:     diff.Reason,
	}

	// 3. A dependent unit linking the package's dotfiles
	linkUnit := engine.PlanUnit{
		ID:         "link:neovim:~/.config/nvim",
		ResourceID: "config_link:~/.config/nvim",
		Kind:       engine.KindConfigLink,
		Package:    "neovim",
		Operation:  engine.OperationLink,
		Status:     engine.PlanStatusPending,
		Dependencies: []engine.Dependency{
			{TargetID: "install:neovim", Type: engine.DependencyRequire},
		},
		Detail: "/owl/dotfiles/nvim -> ~/.config/nvim",
	}

	// 4. The execution graph built from the units
	graph := engine.ExecutionGraph{
		Nodes: map[string]*engine.GraphNode{
			"install:neovim": {
				ID:           "install:neovim",
				Level:        0,
				Dependencies: []string{},
				Dependents:   []string{"link:neovim:~/.config/nvim"},
			},
			"link:neovim:~/.config/nvim": {
				ID:           "link:neovim:~/.config/nvim",
				Level:        1,
				Dependencies: []string{"install:neovim"},
				Dependents:   []string{},
			},
		},
		Edges: []engine.GraphEdge{
			{From: "install:neovim", To: "link:neovim:~/.config/nvim", Type: engine.DependencyRequire},
		},
		Roots: []string{"install:neovim"},
		Depth: 2,
	}

	// 5. The complete plan for the host
	plan := engine.Plan{
		ID:        "plan-001",
		Host:      "laptop",
		CreatedAt: time.Now(),
		Units:     []engine.PlanUnit{planUnit, linkUnit},
		Graph:     &graph,
		Stats: engine.PlanStats{
			Total: 2,
			ByOperation: map[engine.OperationType]int{
				engine.OperationInstall: 1,
				engine.OperationLink:    1,
			},
		},
	}

	// Types compose cleanly: ResourceDiff -> PlanUnit -> Plan -> ExecutionGraph
	_, _ = diff, plan
}

// Example_errorHandling demonstrates error classification and handling.
func Example_errorHandling() {
	// Create different error types
	transientErr := engine.NewTransientError("state store is locked", nil).
		WithResource("package:neovim").
		WithOperation("install")

	validationErr := engine.NewValidationError("plan unit has empty ID", nil).
		WithCode(engine.ErrCodeValidation)

	// Check error classification
	canRetry := engine.IsRetryable(transientErr)       // true - transient errors are retryable
	cannotRetry := !engine.IsRetryable(validationErr)  // true - validation errors are not retryable

	_, _, _ = transientErr, validationErr, canRetry && cannotRetry
}

// Example_statusValidation demonstrates status enum validation.
func Example_statusValidation() {
	// Validate status enums
	status := engine.RunStatusRunning
	isValid := status.Validate() == nil // Status is valid

	// Check status properties
	isActive := status.IsActive()         // Status is pending or running
	isNotTerminal := !status.IsTerminal() // Status has not reached a final state

	// Check operation properties
	op := engine.OperationRemove
	requiresConfirmation := op.IsDestructive() // Confirm with user before proceeding

	_, _, _, _ = isValid, isActive, isNotTerminal, requiresConfirmation
}
