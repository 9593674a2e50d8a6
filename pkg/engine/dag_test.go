package engine

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDAGBuilder_BuildGraph_EmptyUnits(t *testing.T) {
	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph([]PlanUnit{})

	if err != nil {
		t.Fatalf("Expected no error for empty units, got: %v", err)
	}

	if len(graph.Nodes) != 0 {
		t.Errorf("Expected 0 nodes, got %d", len(graph.Nodes))
	}

	if len(graph.Edges) != 0 {
		t.Errorf("Expected 0 edges, got %d", len(graph.Edges))
	}

	if graph.Depth != 0 {
		t.Errorf("Expected depth 0, got %d", graph.Depth)
	}
}

func TestDAGBuilder_BuildGraph_SingleUnit(t *testing.T) {
	units := []PlanUnit{
		{
			ID:           "install:neovim",
			ResourceID:   "package:neovim",
			Kind:         KindPackage,
			Package:      "neovim",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
	}

	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph(units)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(graph.Nodes) != 1 {
		t.Errorf("Expected 1 node, got %d", len(graph.Nodes))
	}

	if len(graph.Roots) != 1 {
		t.Errorf("Expected 1 root, got %d", len(graph.Roots))
	}

	if graph.Depth != 1 {
		t.Errorf("Expected depth 1, got %d", graph.Depth)
	}

	node := graph.Nodes["install:neovim"]
	if node.Level != 0 {
		t.Errorf("Expected level 0, got %d", node.Level)
	}
}

func TestDAGBuilder_BuildGraph_LinearDependencies(t *testing.T) {
	units := []PlanUnit{
		{
			ID:           "install:neovim",
			ResourceID:   "package:neovim",
			Kind:         KindPackage,
			Package:      "neovim",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
		{
			ID:         "link:neovim:~/.config/nvim",
			ResourceID: "config_link:~/.config/nvim",
			Kind:       KindConfigLink,
			Package:    "neovim",
			Operation:  OperationLink,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:neovim", Type: DependencyRequire},
			},
		},
		{
			ID:         "run:neovim:1",
			ResourceID: "script:neovim:1",
			Kind:       KindScript,
			Package:    "neovim",
			Operation:  OperationRun,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "link:neovim:~/.config/nvim", Type: DependencyRequire},
			},
		},
	}

	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph(units)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(graph.Nodes) != 3 {
		t.Errorf("Expected 3 nodes, got %d", len(graph.Nodes))
	}

	if graph.Depth != 3 {
		t.Errorf("Expected depth 3, got %d", graph.Depth)
	}

	// Verify levels
	if graph.Nodes["install:neovim"].Level != 0 {
		t.Errorf("install:neovim should be at level 0, got %d", graph.Nodes["install:neovim"].Level)
	}
	if graph.Nodes["link:neovim:~/.config/nvim"].Level != 1 {
		t.Errorf("link unit should be at level 1, got %d", graph.Nodes["link:neovim:~/.config/nvim"].Level)
	}
	if graph.Nodes["run:neovim:1"].Level != 2 {
		t.Errorf("run:neovim:1 should be at level 2, got %d", graph.Nodes["run:neovim:1"].Level)
	}

	// Verify edges
	if len(graph.Edges) != 2 {
		t.Errorf("Expected 2 edges, got %d", len(graph.Edges))
	}
}

func TestDAGBuilder_BuildGraph_ParallelUnits(t *testing.T) {
	units := []PlanUnit{
		{
			ID:           "install:neovim",
			ResourceID:   "package:neovim",
			Kind:         KindPackage,
			Package:      "neovim",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
		{
			ID:           "install:ripgrep",
			ResourceID:   "package:ripgrep",
			Kind:         KindPackage,
			Package:      "ripgrep",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
		{
			ID:           "install:tmux",
			ResourceID:   "package:tmux",
			Kind:         KindPackage,
			Package:      "tmux",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
	}

	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph(units)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(graph.Nodes) != 3 {
		t.Errorf("Expected 3 nodes, got %d", len(graph.Nodes))
	}

	if graph.Depth != 1 {
		t.Errorf("Expected depth 1, got %d", graph.Depth)
	}

	// All units should be at level 0 (parallel)
	for _, unit := range units {
		if graph.Nodes[unit.ID].Level != 0 {
			t.Errorf("%s should be at level 0, got %d", unit.ID, graph.Nodes[unit.ID].Level)
		}
	}

	if len(graph.Roots) != 3 {
		t.Errorf("Expected 3 roots, got %d", len(graph.Roots))
	}
}

func TestDAGBuilder_BuildGraph_DiamondDependencies(t *testing.T) {
	// Diamond pattern: install -> two links -> setup script
	units := []PlanUnit{
		{
			ID:           "install:zsh",
			ResourceID:   "package:zsh",
			Kind:         KindPackage,
			Package:      "zsh",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
		{
			ID:         "link:zsh:~/.zshrc",
			ResourceID: "config_link:~/.zshrc",
			Kind:       KindConfigLink,
			Package:    "zsh",
			Operation:  OperationLink,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:zsh", Type: DependencyRequire},
			},
		},
		{
			ID:         "link:zsh:~/.zshenv",
			ResourceID: "config_link:~/.zshenv",
			Kind:       KindConfigLink,
			Package:    "zsh",
			Operation:  OperationLink,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:zsh", Type: DependencyRequire},
			},
		},
		{
			ID:         "run:zsh:1",
			ResourceID: "script:zsh:1",
			Kind:       KindScript,
			Package:    "zsh",
			Operation:  OperationRun,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "link:zsh:~/.zshrc", Type: DependencyRequire},
				{TargetID: "link:zsh:~/.zshenv", Type: DependencyRequire},
			},
		},
	}

	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph(units)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(graph.Nodes) != 4 {
		t.Errorf("Expected 4 nodes, got %d", len(graph.Nodes))
	}

	if graph.Depth != 3 {
		t.Errorf("Expected depth 3, got %d", graph.Depth)
	}

	// Verify levels
	if graph.Nodes["install:zsh"].Level != 0 {
		t.Errorf("install:zsh should be at level 0, got %d", graph.Nodes["install:zsh"].Level)
	}
	if graph.Nodes["link:zsh:~/.zshrc"].Level != 1 {
		t.Errorf("link:zsh:~/.zshrc should be at level 1, got %d", graph.Nodes["link:zsh:~/.zshrc"].Level)
	}
	if graph.Nodes["link:zsh:~/.zshenv"].Level != 1 {
		t.Errorf("link:zsh:~/.zshenv should be at level 1, got %d", graph.Nodes["link:zsh:~/.zshenv"].Level)
	}
	if graph.Nodes["run:zsh:1"].Level != 2 {
		t.Errorf("run:zsh:1 should be at level 2, got %d", graph.Nodes["run:zsh:1"].Level)
	}

	if len(graph.Edges) != 4 {
		t.Errorf("Expected 4 edges, got %d", len(graph.Edges))
	}
}

func TestDAGBuilder_DetectCycles_SimpleCycle(t *testing.T) {
	// Simple cycle: a -> b -> a
	units := []PlanUnit{
		{
			ID:         "install:a",
			ResourceID: "package:a",
			Kind:       KindPackage,
			Package:    "a",
			Operation:  OperationInstall,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:b", Type: DependencyRequire},
			},
		},
		{
			ID:         "install:b",
			ResourceID: "package:b",
			Kind:       KindPackage,
			Package:    "b",
			Operation:  OperationInstall,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:a", Type: DependencyRequire},
			},
		},
	}

	builder := NewDAGBuilder()
	_, err := builder.BuildGraph(units)

	if err == nil {
		t.Fatal("Expected error for circular dependency, got nil")
	}

	if !IsValidation(err) {
		t.Error("Expected validation error for circular dependency")
	}

	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("Expected EngineError, got: %T", err)
	}
	if engineErr.Code != ErrCodeDependencyCycle {
		t.Errorf("Expected code %s, got %s", ErrCodeDependencyCycle, engineErr.Code)
	}
	if !strings.Contains(engineErr.Message, "install:a") {
		t.Errorf("Expected cycle message to name the units, got: %s", engineErr.Message)
	}
}

func TestDAGBuilder_DetectCycles_ComplexCycle(t *testing.T) {
	// Longer cycle: a -> b -> c -> a
	units := []PlanUnit{
		{
			ID:         "install:a",
			ResourceID: "package:a",
			Kind:       KindPackage,
			Package:    "a",
			Operation:  OperationInstall,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:c", Type: DependencyRequire},
			},
		},
		{
			ID:         "install:b",
			ResourceID: "package:b",
			Kind:       KindPackage,
			Package:    "b",
			Operation:  OperationInstall,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:a", Type: DependencyRequire},
			},
		},
		{
			ID:         "install:c",
			ResourceID: "package:c",
			Kind:       KindPackage,
			Package:    "c",
			Operation:  OperationInstall,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:b", Type: DependencyRequire},
			},
		},
	}

	builder := NewDAGBuilder()
	_, err := builder.BuildGraph(units)

	if err == nil {
		t.Fatal("Expected error for circular dependency, got nil")
	}
}

func TestDAGBuilder_InvalidDependency(t *testing.T) {
	units := []PlanUnit{
		{
			ID:         "link:neovim:~/.config/nvim",
			ResourceID: "config_link:~/.config/nvim",
			Kind:       KindConfigLink,
			Package:    "neovim",
			Operation:  OperationLink,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:nonexistent", Type: DependencyRequire},
			},
		},
	}

	builder := NewDAGBuilder()
	_, err := builder.BuildGraph(units)

	if err == nil {
		t.Fatal("Expected error for invalid dependency, got nil")
	}

	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("Expected EngineError, got: %T", err)
	}
	if engineErr.Code != ErrCodeUnknownDependency {
		t.Errorf("Expected code %s, got %s", ErrCodeUnknownDependency, engineErr.Code)
	}
}

func TestDAGBuilder_DuplicateIDs(t *testing.T) {
	units := []PlanUnit{
		{
			ID:           "install:neovim",
			ResourceID:   "package:neovim",
			Kind:         KindPackage,
			Package:      "neovim",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
		{
			ID:           "install:neovim", // Duplicate ID
			ResourceID:   "package:neovim",
			Kind:         KindPackage,
			Package:      "neovim",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
	}

	builder := NewDAGBuilder()
	_, err := builder.BuildGraph(units)

	if err == nil {
		t.Fatal("Expected error for duplicate IDs, got nil")
	}

	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("Expected EngineError, got: %T", err)
	}
	if engineErr.Code != ErrCodeDuplicateUnit {
		t.Errorf("Expected code %s, got %s", ErrCodeDuplicateUnit, engineErr.Code)
	}
}

func TestDAGBuilder_DeterministicLevels(t *testing.T) {
	// Units declared in non-alphabetical order; levels must come out sorted
	// so that identical plans always produce identical graphs.
	units := []PlanUnit{
		{
			ID:           "install:zsh",
			ResourceID:   "package:zsh",
			Kind:         KindPackage,
			Package:      "zsh",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
		{
			ID:           "install:neovim",
			ResourceID:   "package:neovim",
			Kind:         KindPackage,
			Package:      "neovim",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
		{
			ID:           "install:ripgrep",
			ResourceID:   "package:ripgrep",
			Kind:         KindPackage,
			Package:      "ripgrep",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
	}

	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph(units)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	wantRoots := []string{"install:neovim", "install:ripgrep", "install:zsh"}
	if !reflect.DeepEqual(graph.Roots, wantRoots) {
		t.Errorf("Expected sorted roots %v, got %v", wantRoots, graph.Roots)
	}

	levels := builder.GetLevels()
	if len(levels) != 1 {
		t.Fatalf("Expected 1 level, got %d", len(levels))
	}
	if !reflect.DeepEqual(levels[0], wantRoots) {
		t.Errorf("Expected sorted level %v, got %v", wantRoots, levels[0])
	}
}

func TestDAGBuilder_TopologicalSort(t *testing.T) {
	units := []PlanUnit{
		{
			ID:         "run:tmux:1",
			ResourceID: "script:tmux:1",
			Kind:       KindScript,
			Package:    "tmux",
			Operation:  OperationRun,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "link:tmux:~/.tmux.conf", Type: DependencyRequire},
			},
		},
		{
			ID:           "install:tmux",
			ResourceID:   "package:tmux",
			Kind:         KindPackage,
			Package:      "tmux",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
		{
			ID:         "link:tmux:~/.tmux.conf",
			ResourceID: "config_link:~/.tmux.conf",
			Kind:       KindConfigLink,
			Package:    "tmux",
			Operation:  OperationLink,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:tmux", Type: DependencyRequire},
			},
		},
	}

	builder := NewDAGBuilder()
	if _, err := builder.BuildGraph(units); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	sorted := builder.TopologicalSort()
	want := []string{"install:tmux", "link:tmux:~/.tmux.conf", "run:tmux:1"}
	if !reflect.DeepEqual(sorted, want) {
		t.Errorf("Expected order %v, got %v", want, sorted)
	}
}

func TestDAGBuilder_StampsExecutionOrder(t *testing.T) {
	units := []PlanUnit{
		{
			ID:           "install:git",
			ResourceID:   "package:git",
			Kind:         KindPackage,
			Package:      "git",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
		{
			ID:         "link:git:~/.gitconfig",
			ResourceID: "config_link:~/.gitconfig",
			Kind:       KindConfigLink,
			Package:    "git",
			Operation:  OperationLink,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:git", Type: DependencyRequire},
			},
		},
	}

	builder := NewDAGBuilder()
	if _, err := builder.BuildGraph(units); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if units[0].ExecutionOrder != 0 {
		t.Errorf("Expected install:git at order 0, got %d", units[0].ExecutionOrder)
	}
	if units[1].ExecutionOrder != 1 {
		t.Errorf("Expected link unit at order 1, got %d", units[1].ExecutionOrder)
	}
}

func TestDAGBuilder_ToDOT(t *testing.T) {
	units := []PlanUnit{
		{
			ID:           "install:neovim",
			ResourceID:   "package:neovim",
			Kind:         KindPackage,
			Package:      "neovim",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
		{
			ID:         "link:neovim:~/.config/nvim",
			ResourceID: "config_link:~/.config/nvim",
			Kind:       KindConfigLink,
			Package:    "neovim",
			Operation:  OperationLink,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:neovim", Type: DependencyRequire},
			},
		},
	}

	builder := NewDAGBuilder()
	_, err := builder.BuildGraph(units)
	if err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}

	dot := builder.ToDOT()

	// Check that DOT output contains expected elements
	if len(dot) == 0 {
		t.Error("Expected non-empty DOT output")
	}

	// Should contain digraph declaration
	if !strings.Contains(dot, "digraph ExecutionGraph") {
		t.Error("DOT output missing digraph declaration")
	}

	// Should contain nodes
	if !strings.Contains(dot, "install:neovim") || !strings.Contains(dot, "link:neovim:~/.config/nvim") {
		t.Error("DOT output missing expected nodes")
	}

	// Should contain edge
	if !strings.Contains(dot, "->") {
		t.Error("DOT output missing edge")
	}

	// Levels are rendered as clusters
	if !strings.Contains(dot, "cluster_level_0") {
		t.Error("DOT output missing level cluster")
	}
}

func TestDAGBuilder_DifferentDependencyTypes(t *testing.T) {
	units := []PlanUnit{
		{
			ID:           "run:global:1",
			ResourceID:   "script:global:1",
			Kind:         KindScript,
			Operation:    OperationRun,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
		{
			ID:           "install:neovim",
			ResourceID:   "package:neovim",
			Kind:         KindPackage,
			Package:      "neovim",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
		{
			ID:         "run:neovim:1",
			ResourceID: "script:neovim:1",
			Kind:       KindScript,
			Package:    "neovim",
			Operation:  OperationRun,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:neovim", Type: DependencyRequire},
				{TargetID: "run:global:1", Type: DependencyOrder},
			},
		},
	}

	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph(units)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Verify all dependency types are preserved in edges
	dependencyTypes := make(map[DependencyType]int)
	for _, edge := range graph.Edges {
		dependencyTypes[edge.Type]++
	}

	if dependencyTypes[DependencyRequire] != 1 {
		t.Errorf("Expected 1 require dependency, got %d", dependencyTypes[DependencyRequire])
	}
	if dependencyTypes[DependencyOrder] != 1 {
		t.Errorf("Expected 1 order dependency, got %d", dependencyTypes[DependencyOrder])
	}
}

func TestDAGBuilder_ValidateGraph(t *testing.T) {
	units := []PlanUnit{
		{
			ID:           "install:fzf",
			ResourceID:   "package:fzf",
			Kind:         KindPackage,
			Package:      "fzf",
			Operation:    OperationInstall,
			Status:       PlanStatusPending,
			Dependencies: []Dependency{},
		},
		{
			ID:         "link:fzf:~/.fzf.zsh",
			ResourceID: "config_link:~/.fzf.zsh",
			Kind:       KindConfigLink,
			Package:    "fzf",
			Operation:  OperationLink,
			Status:     PlanStatusPending,
			Dependencies: []Dependency{
				{TargetID: "install:fzf", Type: DependencyRequire},
			},
		},
	}

	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph(units)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := builder.ValidateGraph(graph); err != nil {
		t.Errorf("Expected valid graph, got: %v", err)
	}
}
