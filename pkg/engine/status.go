package engine

import (
	"encoding/json"
	"fmt"
)

// OperationType represents the kind of work a plan unit asks the executor
// layer to perform.
type OperationType string

const (
	// OperationInstall indicates a package should be installed.
	OperationInstall OperationType = "install"

	// OperationRemove indicates a package should be removed.
	OperationRemove OperationType = "remove"

	// OperationUpdate indicates a resource should be brought up to date with
	// its declared content.
	OperationUpdate OperationType = "update"

	// OperationLink indicates a dotfile should be linked to its destination.
	OperationLink OperationType = "link"

	// OperationUnlink indicates a dotfile link should be removed.
	OperationUnlink OperationType = "unlink"

	// OperationEnable indicates a service should be enabled.
	OperationEnable OperationType = "enable"

	// OperationDisable indicates a service should be disabled.
	OperationDisable OperationType = "disable"

	// OperationRun indicates a setup script should be executed.
	OperationRun OperationType = "run"

	// OperationNoop indicates no work is needed.
	OperationNoop OperationType = "noop"
)

// IsDestructive returns true if the operation removes something from the host.
func (o OperationType) IsDestructive() bool {
	return o == OperationRemove || o == OperationUnlink || o == OperationDisable
}

// IsMutating returns true if the operation changes host state.
func (o OperationType) IsMutating() bool {
	return o != OperationNoop
}

// Validate checks if the operation type is valid.
func (o OperationType) Validate() error {
	switch o {
	case OperationInstall, OperationRemove, OperationUpdate, OperationLink,
		OperationUnlink, OperationEnable, OperationDisable, OperationRun, OperationNoop:
		return nil
	default:
		return fmt.Errorf("invalid operation type: %s", o)
	}
}

// PlanStatus represents the planning-time status of a plan unit. Execution
// statuses belong to the external apply layer; the planner only distinguishes
// units that are ready from units waiting on dependencies.
type PlanStatus string

const (
	// PlanStatusPending indicates the plan unit is waiting to be considered.
	PlanStatusPending PlanStatus = "pending"

	// PlanStatusReady indicates every dependency of the plan unit is satisfied.
	PlanStatusReady PlanStatus = "ready"

	// PlanStatusBlocked indicates the plan unit is waiting on dependencies.
	PlanStatusBlocked PlanStatus = "blocked"

	// PlanStatusSkipped indicates the plan unit was excluded from the plan.
	PlanStatusSkipped PlanStatus = "skipped"
)

// Validate checks if the plan status is valid.
func (s PlanStatus) Validate() error {
	switch s {
	case PlanStatusPending, PlanStatusReady, PlanStatusBlocked, PlanStatusSkipped:
		return nil
	default:
		return fmt.Errorf("invalid plan status: %s", s)
	}
}

// RunStatus represents the overall status of a recorded run.
type RunStatus string

const (
	// RunStatusPending indicates the run is recorded but not yet started.
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning indicates the run is currently in progress.
	RunStatusRunning RunStatus = "running"

	// RunStatusCompleted indicates the run finished successfully.
	RunStatusCompleted RunStatus = "completed"

	// RunStatusFailed indicates the run finished with errors.
	RunStatusFailed RunStatus = "failed"

	// RunStatusCancelled indicates the run was cancelled.
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// IsActive returns true if the run is pending or running.
func (s RunStatus) IsActive() bool {
	return s == RunStatusPending || s == RunStatusRunning
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted,
		RunStatusFailed, RunStatusCancelled:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(str)
	return s.Validate()
}
