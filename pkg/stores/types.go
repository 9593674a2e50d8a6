package stores

import (
	"context"
	"database/sql"
	"time"
)

// RunStatus represents the status of a recorded run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Run represents one recorded invocation of a planning command against a host
type Run struct {
	ID          string     `json:"id"`
	Host        string     `json:"host"`
	Command     string     `json:"command"` // e.g. "plan", "validate"
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Metadata    string     `json:"metadata"` // JSON blob
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PackageRecord represents the recorded state of one managed package on a host
type PackageRecord struct {
	ID         string    `json:"id"`
	Host       string    `json:"host"`
	Name       string    `json:"name"`
	SourceKind string    `json:"source_kind"` // main, host, or group
	GroupName  string    `json:"group_name,omitempty"`
	Entry      string    `json:"entry"` // JSON blob of the applied entry
	Hash       string    `json:"hash"`  // SHA256 of the entry for drift detection
	LastRunID  *string   `json:"last_run_id,omitempty"`
	AppliedAt  time.Time `json:"applied_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HostState bundles every package record for a single host, keyed by
// package name. It is the recorded side of a diff: the planner compares
// it against the resolved configuration to decide what changed.
type HostState struct {
	Host     string                    `json:"host"`
	Packages map[string]*PackageRecord `json:"packages"`
}

// Event represents an append-only log event correlated with a run
type Event struct {
	ID        int64      `json:"id"`
	RunID     *string    `json:"run_id,omitempty"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRunStatus(ctx context.Context, id string, status RunStatus, err *string) error
	ListRuns(ctx context.Context, host *string, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error
	PruneRuns(ctx context.Context, before time.Time) (int64, error)

	// Package record operations
	UpsertPackageRecord(ctx context.Context, record *PackageRecord) error
	GetPackageRecord(ctx context.Context, host, name string) (*PackageRecord, error)
	ListPackageRecords(ctx context.Context, host string) ([]*PackageRecord, error)
	DeletePackageRecord(ctx context.Context, host, name string) error
	GetHostState(ctx context.Context, host string) (*HostState, error)

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, runID *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
