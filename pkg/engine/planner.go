package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/owlconfig/owl/pkg/config"
	"github.com/owlconfig/owl/pkg/stores"
)

// DefaultPlanner implements the Planner interface.
// It compares the resolved configuration against recorded host state, expands
// package differences into plan units, and builds dependency graphs for
// parallel execution by the apply layer.
type DefaultPlanner struct {
	logger zerolog.Logger
}

// NewPlanner creates a new default planner implementation.
func NewPlanner(logger zerolog.Logger) *DefaultPlanner {
	return &DefaultPlanner{
		logger: logger.With().Str("component", "planner").Logger(),
	}
}

// EntryHash returns the canonical content hash of a resolved entry. The hash
// covers the declared content only; where the entry was declared does not
// affect it, so moving a package between files does not force an update.
func EntryHash(entry *config.Entry) (string, error) {
	canonical := struct {
		Package  string                 `json:"package"`
		Configs  []config.ConfigMapping `json:"configs,omitempty"`
		Scripts  []string               `json:"scripts,omitempty"`
		Services []config.ServiceSpec   `json:"services,omitempty"`
		Envs     []config.EnvVar        `json:"envs,omitempty"`
	}{
		Package:  entry.PackageName,
		Configs:  entry.ConfigMappings,
		Scripts:  entry.SetupScripts,
		Services: entry.Services,
		Envs:     entry.EnvVars,
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("encoding entry for hashing: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ComputeDiff compares the resolved configuration with recorded host state to
// determine required operations. A nil recorded state is treated as an empty
// host: every declared package becomes a create.
func (p *DefaultPlanner) ComputeDiff(ctx context.Context, desired *config.ResolvedConfig, recorded *stores.HostState) (*DiffResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewCancelledError("diff computation cancelled", err)
	}
	if desired == nil {
		return nil, NewValidationError("resolved configuration is nil", nil).
			WithCode(ErrCodeValidation)
	}

	result := &DiffResult{
		Host:       desired.Host,
		Creates:    make([]ResourceDiff, 0),
		Updates:    make([]ResourceDiff, 0),
		Deletes:    make([]ResourceDiff, 0),
		ComputedAt: time.Now(),
	}

	var records map[string]*stores.PackageRecord
	if recorded != nil {
		records = recorded.Packages
	}

	declared := make(map[string]bool, len(desired.Entries))
	for _, entry := range desired.Entries {
		declared[entry.PackageName] = true

		hash, err := EntryHash(entry)
		if err != nil {
			return nil, fmt.Errorf("hashing entry %s: %w", entry.PackageName, err)
		}
		after, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("encoding entry %s: %w", entry.PackageName, err)
		}

		record, ok := records[entry.PackageName]
		switch {
		case !ok:
			result.Creates = append(result.Creates, ResourceDiff{
				ResourceID: "package:" + entry.PackageName,
				Kind:       KindPackage,
				Package:    entry.PackageName,
				Operation:  OperationInstall,
				After:      after,
				Reason:     "not recorded on host",
			})
		case record.Hash != hash:
			result.Updates = append(result.Updates, ResourceDiff{
				ResourceID: "package:" + entry.PackageName,
				Kind:       KindPackage,
				Package:    entry.PackageName,
				Operation:  OperationUpdate,
				Before:     json.RawMessage(record.Entry),
				After:      after,
				Reason:     "declared content changed since last apply",
			})
		default:
			result.UnchangedCount++
		}
	}

	// Recorded packages that are no longer declared. Sorted so identical
	// inputs always yield identical diffs.
	removed := make([]string, 0)
	for name := range records {
		if !declared[name] {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	for _, name := range removed {
		result.Deletes = append(result.Deletes, ResourceDiff{
			ResourceID: "package:" + name,
			Kind:       KindPackage,
			Package:    name,
			Operation:  OperationRemove,
			Before:     json.RawMessage(records[name].Entry),
			Reason:     "no longer declared",
		})
	}

	p.logger.Debug().
		Str("host", result.Host).
		Int("creates", len(result.Creates)).
		Int("updates", len(result.Updates)).
		Int("deletes", len(result.Deletes)).
		Int("unchanged", result.UnchangedCount).
		Msg("Computed configuration diff")

	return result, nil
}

// BuildPlan expands a diff into an execution plan. Every package diff becomes
// a package unit plus one unit per declared mapping, service, environment
// variable, and setup script, wired with dependency edges:
//
//   - link, service, and env units require their package unit
//   - script units require their package unit and its link units, and are
//     ordered after every global script unit
//   - removals require service-disable and unlink units before the package
//     removal itself
func (p *DefaultPlanner) BuildPlan(ctx context.Context, resolved *config.ResolvedConfig, diff *DiffResult) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewCancelledError("plan construction cancelled", err)
	}
	if resolved == nil {
		return nil, NewValidationError("resolved configuration is nil", nil).
			WithCode(ErrCodeValidation)
	}
	if diff == nil {
		return nil, NewValidationError("diff result is nil", nil).
			WithCode(ErrCodeValidation)
	}

	plan := &Plan{
		ID:        uuid.New().String(),
		Host:      diff.Host,
		CreatedAt: time.Now(),
		Units:     make([]PlanUnit, 0),
		Stats:     PlanStats{ByOperation: make(map[OperationType]int)},
	}

	// Global scripts run before every package script. They are only planned
	// when at least one package is being installed or updated.
	globalScriptIDs := make([]string, 0, len(resolved.GlobalScripts))
	if len(diff.Creates)+len(diff.Updates) > 0 {
		for i, script := range resolved.GlobalScripts {
			id := fmt.Sprintf("run:global:%d", i+1)
			plan.Units = append(plan.Units, PlanUnit{
				ID:         id,
				ResourceID: fmt.Sprintf("script:global:%d", i+1),
				Kind:       KindScript,
				Operation:  OperationRun,
				Status:     PlanStatusPending,
				Detail:     script.Script,
			})
			globalScriptIDs = append(globalScriptIDs, id)
		}
	}

	for _, d := range diff.Creates {
		if err := p.expandPackage(plan, resolved, d, OperationInstall, globalScriptIDs); err != nil {
			return nil, err
		}
	}
	for _, d := range diff.Updates {
		if err := p.expandPackage(plan, resolved, d, OperationUpdate, globalScriptIDs); err != nil {
			return nil, err
		}
	}
	for _, d := range diff.Deletes {
		p.expandRemoval(plan, d)
	}

	for i := range plan.Units {
		plan.Stats.ByOperation[plan.Units[i].Operation]++
	}
	plan.Stats.Total = len(plan.Units)

	p.logger.Debug().
		Str("plan_id", plan.ID).
		Str("host", plan.Host).
		Int("units", plan.Stats.Total).
		Msg("Built execution plan")

	return plan, nil
}

// expandPackage appends the units for one created or updated package.
func (p *DefaultPlanner) expandPackage(plan *Plan, resolved *config.ResolvedConfig, d ResourceDiff, op OperationType, globalScriptIDs []string) error {
	entry := resolved.Entry(d.Package)
	if entry == nil {
		// The diff was computed from a different resolve; fall back to the
		// entry content embedded in the diff itself.
		entry = &config.Entry{}
		if err := json.Unmarshal(d.After, entry); err != nil {
			return NewValidationError(fmt.Sprintf("diff for package %s carries no entry content", d.Package), err).
				WithCode(ErrCodeValidation).
				WithResource(d.ResourceID)
		}
	}

	pkgUnitID := fmt.Sprintf("%s:%s", op, d.Package)
	plan.Units = append(plan.Units, PlanUnit{
		ID:         pkgUnitID,
		ResourceID: d.ResourceID,
		Kind:       KindPackage,
		Package:    d.Package,
		Operation:  op,
		Status:     PlanStatusPending,
		Detail:     d.Reason,
	})

	linkIDs := make([]string, 0, len(entry.ConfigMappings))
	for _, mapping := range entry.ConfigMappings {
		id := fmt.Sprintf("link:%s:%s", d.Package, mapping.Destination)
		plan.Units = append(plan.Units, PlanUnit{
			ID:           id,
			ResourceID:   "config_link:" + mapping.Destination,
			Kind:         KindConfigLink,
			Package:      d.Package,
			Operation:    OperationLink,
			Status:       PlanStatusPending,
			Dependencies: requireOn(pkgUnitID),
			Detail:       mapping.Source + " -> " + mapping.Destination,
		})
		linkIDs = append(linkIDs, id)
	}

	for _, svc := range entry.Services {
		operation := OperationEnable
		if !svc.BoolProp("enable", true) {
			operation = OperationDisable
		}
		plan.Units = append(plan.Units, PlanUnit{
			ID:           fmt.Sprintf("%s:%s:%s", operation, d.Package, svc.Name),
			ResourceID:   "service:" + svc.Name,
			Kind:         KindService,
			Package:      d.Package,
			Operation:    operation,
			Status:       PlanStatusPending,
			Dependencies: requireOn(pkgUnitID),
			Detail:       fmt.Sprintf("%s (%s)", svc.Name, svc.StringProp("scope", "system")),
		})
	}

	for _, env := range entry.EnvVars {
		plan.Units = append(plan.Units, PlanUnit{
			ID:           fmt.Sprintf("env:%s:%s", d.Package, env.Key),
			ResourceID:   "env_var:" + env.Key,
			Kind:         KindEnvVar,
			Package:      d.Package,
			Operation:    OperationUpdate,
			Status:       PlanStatusPending,
			Dependencies: requireOn(pkgUnitID),
			Detail:       env.Key + "=" + env.Value,
		})
	}

	for i, script := range entry.SetupScripts {
		deps := make([]Dependency, 0, 1+len(linkIDs)+len(globalScriptIDs))
		deps = append(deps, Dependency{TargetID: pkgUnitID, Type: DependencyRequire})
		for _, linkID := range linkIDs {
			deps = append(deps, Dependency{TargetID: linkID, Type: DependencyRequire})
		}
		for _, globalID := range globalScriptIDs {
			deps = append(deps, Dependency{TargetID: globalID, Type: DependencyOrder})
		}

		plan.Units = append(plan.Units, PlanUnit{
			ID:           fmt.Sprintf("run:%s:%d", d.Package, i+1),
			ResourceID:   fmt.Sprintf("script:%s:%d", d.Package, i+1),
			Kind:         KindScript,
			Package:      d.Package,
			Operation:    OperationRun,
			Status:       PlanStatusPending,
			Dependencies: deps,
			Detail:       script,
		})
	}

	return nil
}

// expandRemoval appends the units for one removed package. Services are
// disabled and links removed before the package itself goes.
func (p *DefaultPlanner) expandRemoval(plan *Plan, d ResourceDiff) {
	entry := &config.Entry{}
	if len(d.Before) > 0 {
		if err := json.Unmarshal(d.Before, entry); err != nil {
			p.logger.Warn().
				Err(err).
				Str("package", d.Package).
				Msg("Recorded entry is not decodable, planning bare removal")
			entry = &config.Entry{}
		}
	}

	cleanupDeps := make([]Dependency, 0, len(entry.Services)+len(entry.ConfigMappings))

	for _, svc := range entry.Services {
		id := fmt.Sprintf("disable:%s:%s", d.Package, svc.Name)
		plan.Units = append(plan.Units, PlanUnit{
			ID:         id,
			ResourceID: "service:" + svc.Name,
			Kind:       KindService,
			Package:    d.Package,
			Operation:  OperationDisable,
			Status:     PlanStatusPending,
			Detail:     svc.Name,
		})
		cleanupDeps = append(cleanupDeps, Dependency{TargetID: id, Type: DependencyRequire})
	}

	for _, mapping := range entry.ConfigMappings {
		id := fmt.Sprintf("unlink:%s:%s", d.Package, mapping.Destination)
		plan.Units = append(plan.Units, PlanUnit{
			ID:         id,
			ResourceID: "config_link:" + mapping.Destination,
			Kind:       KindConfigLink,
			Package:    d.Package,
			Operation:  OperationUnlink,
			Status:     PlanStatusPending,
			Detail:     mapping.Destination,
		})
		cleanupDeps = append(cleanupDeps, Dependency{TargetID: id, Type: DependencyRequire})
	}

	plan.Units = append(plan.Units, PlanUnit{
		ID:           "remove:" + d.Package,
		ResourceID:   d.ResourceID,
		Kind:         KindPackage,
		Package:      d.Package,
		Operation:    OperationRemove,
		Status:       PlanStatusPending,
		Dependencies: cleanupDeps,
		Detail:       d.Reason,
	})
}

// requireOn returns a fresh dependency list requiring the given unit.
func requireOn(unitID string) []Dependency {
	return []Dependency{{TargetID: unitID, Type: DependencyRequire}}
}

// BuildGraph creates the dependency graph for plan execution, attaches it to
// the plan, and stamps each unit with its topological level. Root units are
// marked ready, everything else blocked.
func (p *DefaultPlanner) BuildGraph(ctx context.Context, plan *Plan) (*ExecutionGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewCancelledError("graph construction cancelled", err)
	}
	if plan == nil {
		return nil, NewValidationError("plan is nil", nil).
			WithCode(ErrCodeValidation)
	}

	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph(plan.Units)
	if err != nil {
		return nil, fmt.Errorf("failed to build DAG: %w", err)
	}

	if err := builder.ValidateGraph(graph); err != nil {
		return nil, fmt.Errorf("graph validation failed: %w", err)
	}

	for i := range plan.Units {
		if plan.Units[i].ExecutionOrder == 0 {
			plan.Units[i].Status = PlanStatusReady
		} else {
			plan.Units[i].Status = PlanStatusBlocked
		}
	}

	plan.Graph = graph
	return graph, nil
}

// ValidatePlan validates a plan for correctness: unique unit IDs, known
// dependency targets, valid operations and statuses. An empty plan is valid,
// it simply means the host is in sync.
func (p *DefaultPlanner) ValidatePlan(ctx context.Context, plan *Plan) error {
	if err := ctx.Err(); err != nil {
		return NewCancelledError("plan validation cancelled", err)
	}
	if plan == nil {
		return NewValidationError("plan is nil", nil).
			WithCode(ErrCodeValidation)
	}

	seen := make(map[string]bool, len(plan.Units))
	for i := range plan.Units {
		unit := &plan.Units[i]
		if err := p.validatePlanUnit(unit); err != nil {
			return fmt.Errorf("invalid plan unit %s: %w", unit.ID, err)
		}
		if seen[unit.ID] {
			return NewValidationError(fmt.Sprintf("duplicate plan unit ID: %s", unit.ID), nil).
				WithCode(ErrCodeDuplicateUnit)
		}
		seen[unit.ID] = true
	}

	for i := range plan.Units {
		unit := &plan.Units[i]
		for _, dep := range unit.Dependencies {
			if dep.TargetID == unit.ID {
				return NewValidationError(fmt.Sprintf("plan unit %s depends on itself", unit.ID), nil).
					WithCode(ErrCodeDependencyCycle).
					WithResource(unit.ID)
			}
			if !seen[dep.TargetID] {
				return NewValidationError(
					fmt.Sprintf("plan unit %s depends on non-existent unit %s", unit.ID, dep.TargetID),
					nil,
				).WithCode(ErrCodeUnknownDependency).WithResource(unit.ID)
			}
		}
	}

	return nil
}

// validatePlanUnit validates a single plan unit.
func (p *DefaultPlanner) validatePlanUnit(unit *PlanUnit) error {
	if unit.ID == "" {
		return NewValidationError("plan unit has empty ID", nil).
			WithCode(ErrCodeValidation)
	}

	if unit.ResourceID == "" {
		return NewValidationError("plan unit has empty resource ID", nil).
			WithCode(ErrCodeValidation).
			WithResource(unit.ID)
	}

	if unit.Package == "" && unit.Kind != KindScript {
		return NewValidationError("plan unit has no owning package", nil).
			WithCode(ErrCodeValidation).
			WithResource(unit.ID)
	}

	if err := unit.Operation.Validate(); err != nil {
		return err
	}

	return unit.Status.Validate()
}
