package stores

import (
	"context"
	"os"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreRequiresPath tests that a path is mandatory
func TestStoreRequiresPath(t *testing.T) {
	_, err := NewSQLiteStore(Config{})
	if err == nil {
		t.Fatal("expected error for empty database path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Check that tables exist by querying them
	tables := []string{"runs", "managed_packages", "events"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

// TestRunCRUD tests Run CRUD operations
func TestRunCRUD(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Create
	run := &Run{
		ID:        "run-001",
		Host:      "laptop",
		Command:   "plan",
		Status:    RunStatusPending,
		StartedAt: now,
		Metadata:  `{"packages":3}`,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	// Read
	retrieved, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if retrieved.ID != run.ID {
		t.Errorf("expected ID %s, got %s", run.ID, retrieved.ID)
	}
	if retrieved.Host != run.Host {
		t.Errorf("expected Host %s, got %s", run.Host, retrieved.Host)
	}
	if retrieved.Command != run.Command {
		t.Errorf("expected Command %s, got %s", run.Command, retrieved.Command)
	}
	if retrieved.Status != run.Status {
		t.Errorf("expected Status %s, got %s", run.Status, retrieved.Status)
	}

	// Update
	errMsg := "resolve failed"
	if err := store.UpdateRunStatus(ctx, run.ID, RunStatusFailed, &errMsg); err != nil {
		t.Fatalf("failed to update run status: %v", err)
	}

	updated, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get updated run: %v", err)
	}

	if updated.Status != RunStatusFailed {
		t.Errorf("expected Status %s, got %s", RunStatusFailed, updated.Status)
	}
	if updated.Error == nil || *updated.Error != errMsg {
		t.Errorf("expected Error %s, got %v", errMsg, updated.Error)
	}
	if updated.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}

	// List
	runs, err := store.ListRuns(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}

	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}

	// Delete
	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	_, err = store.GetRun(ctx, run.ID)
	if err == nil {
		t.Error("expected error when getting deleted run")
	}
}

// TestListRunsByHost tests the host filter on ListRuns
func TestListRunsByHost(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	runs := []*Run{
		{ID: "run-001", Host: "laptop"},
		{ID: "run-002", Host: "laptop"},
		{ID: "run-003", Host: "desktop"},
	}
	for i, run := range runs {
		run.Command = "plan"
		run.Status = RunStatusCompleted
		run.StartedAt = now.Add(time.Duration(i) * time.Second)
		run.Metadata = `{}`
		run.CreatedAt = now
		run.UpdatedAt = now
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
	}

	laptop := "laptop"
	filtered, err := store.ListRuns(ctx, &laptop, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs by host: %v", err)
	}

	if len(filtered) != 2 {
		t.Errorf("expected 2 laptop runs, got %d", len(filtered))
	}
	for _, run := range filtered {
		if run.Host != "laptop" {
			t.Errorf("expected host laptop, got %s", run.Host)
		}
	}

	all, err := store.ListRuns(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list all runs: %v", err)
	}

	if len(all) != 3 {
		t.Errorf("expected 3 runs, got %d", len(all))
	}
}

// TestPruneRuns tests pruning old runs and their events
func TestPruneRuns(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	old := &Run{
		ID:        "run-old",
		Host:      "laptop",
		Command:   "plan",
		Status:    RunStatusCompleted,
		StartedAt: now.Add(-48 * time.Hour),
		Metadata:  `{}`,
		CreatedAt: now.Add(-48 * time.Hour),
		UpdatedAt: now.Add(-48 * time.Hour),
	}
	recent := &Run{
		ID:        "run-recent",
		Host:      "laptop",
		Command:   "plan",
		Status:    RunStatusCompleted,
		StartedAt: now,
		Metadata:  `{}`,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, run := range []*Run{old, recent} {
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
	}

	event := &Event{
		RunID:     &old.ID,
		Level:     EventLevelInfo,
		Message:   "old run event",
		Timestamp: old.StartedAt,
	}
	if err := store.AppendEvent(ctx, event); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	pruned, err := store.PruneRuns(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("failed to prune runs: %v", err)
	}

	if pruned != 1 {
		t.Errorf("expected 1 pruned run, got %d", pruned)
	}

	if _, err := store.GetRun(ctx, old.ID); err == nil {
		t.Error("expected error when getting pruned run")
	}
	if _, err := store.GetRun(ctx, recent.ID); err != nil {
		t.Errorf("expected recent run to survive prune: %v", err)
	}

	// Events attached to the pruned run are gone
	events, err := store.GetEvents(ctx, &old.ID, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected 0 events after prune, got %d", len(events))
	}
}

// TestPackageRecordCRUD tests PackageRecord operations
func TestPackageRecordCRUD(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Create a run first (referenced by last_run_id)
	run := &Run{
		ID:        "run-010",
		Host:      "laptop",
		Command:   "plan",
		Status:    RunStatusCompleted,
		StartedAt: now,
		Metadata:  `{}`,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	// Upsert (insert)
	record := &PackageRecord{
		ID:         "pr-001",
		Host:       "laptop",
		Name:       "neovim",
		SourceKind: "main",
		Entry:      `{"package":"neovim","configs":[{"source":"nvim","destination":"~/.config/nvim"}]}`,
		Hash:       "abc123def456",
		LastRunID:  &run.ID,
		AppliedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := store.UpsertPackageRecord(ctx, record); err != nil {
		t.Fatalf("failed to upsert package record: %v", err)
	}

	// Get
	retrieved, err := store.GetPackageRecord(ctx, "laptop", "neovim")
	if err != nil {
		t.Fatalf("failed to get package record: %v", err)
	}

	if retrieved.Hash != record.Hash {
		t.Errorf("expected Hash %s, got %s", record.Hash, retrieved.Hash)
	}
	if retrieved.SourceKind != "main" {
		t.Errorf("expected SourceKind main, got %s", retrieved.SourceKind)
	}

	// Upsert (update)
	record.Entry = `{"package":"neovim","configs":[]}`
	record.Hash = "xyz789ghi012"
	record.SourceKind = "host"

	if err := store.UpsertPackageRecord(ctx, record); err != nil {
		t.Fatalf("failed to upsert package record (update): %v", err)
	}

	updated, err := store.GetPackageRecord(ctx, "laptop", "neovim")
	if err != nil {
		t.Fatalf("failed to get updated package record: %v", err)
	}

	if updated.Hash != "xyz789ghi012" {
		t.Errorf("expected updated Hash xyz789ghi012, got %s", updated.Hash)
	}
	if updated.SourceKind != "host" {
		t.Errorf("expected updated SourceKind host, got %s", updated.SourceKind)
	}

	// List
	records, err := store.ListPackageRecords(ctx, "laptop")
	if err != nil {
		t.Fatalf("failed to list package records: %v", err)
	}

	if len(records) != 1 {
		t.Errorf("expected 1 package record, got %d", len(records))
	}

	// Delete
	if err := store.DeletePackageRecord(ctx, "laptop", "neovim"); err != nil {
		t.Fatalf("failed to delete package record: %v", err)
	}

	_, err = store.GetPackageRecord(ctx, "laptop", "neovim")
	if err == nil {
		t.Error("expected error when getting deleted package record")
	}
}

// TestPackageRecordsPerHost tests that records for different hosts do not collide
func TestPackageRecordsPerHost(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	laptop := &PackageRecord{
		ID:         "pr-laptop",
		Host:       "laptop",
		Name:       "tmux",
		SourceKind: "main",
		Entry:      `{"package":"tmux"}`,
		Hash:       "hash-laptop",
		AppliedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	desktop := &PackageRecord{
		ID:         "pr-desktop",
		Host:       "desktop",
		Name:       "tmux",
		SourceKind: "host",
		Entry:      `{"package":"tmux"}`,
		Hash:       "hash-desktop",
		AppliedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for _, record := range []*PackageRecord{laptop, desktop} {
		if err := store.UpsertPackageRecord(ctx, record); err != nil {
			t.Fatalf("failed to upsert package record: %v", err)
		}
	}

	got, err := store.GetPackageRecord(ctx, "laptop", "tmux")
	if err != nil {
		t.Fatalf("failed to get laptop record: %v", err)
	}
	if got.Hash != "hash-laptop" {
		t.Errorf("expected hash-laptop, got %s", got.Hash)
	}

	got, err = store.GetPackageRecord(ctx, "desktop", "tmux")
	if err != nil {
		t.Fatalf("failed to get desktop record: %v", err)
	}
	if got.Hash != "hash-desktop" {
		t.Errorf("expected hash-desktop, got %s", got.Hash)
	}
}

// TestGetHostState tests loading the recorded state for a host
func TestGetHostState(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	names := []string{"neovim", "tmux", "zsh"}
	for i, name := range names {
		record := &PackageRecord{
			ID:         "pr-hs-" + name,
			Host:       "laptop",
			Name:       name,
			SourceKind: "main",
			Entry:      `{"package":"` + name + `"}`,
			Hash:       "hash-" + name,
			AppliedAt:  now.Add(time.Duration(i) * time.Second),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := store.UpsertPackageRecord(ctx, record); err != nil {
			t.Fatalf("failed to upsert package record: %v", err)
		}
	}

	state, err := store.GetHostState(ctx, "laptop")
	if err != nil {
		t.Fatalf("failed to get host state: %v", err)
	}

	if state.Host != "laptop" {
		t.Errorf("expected host laptop, got %s", state.Host)
	}
	if len(state.Packages) != 3 {
		t.Fatalf("expected 3 packages, got %d", len(state.Packages))
	}
	for _, name := range names {
		record, ok := state.Packages[name]
		if !ok {
			t.Errorf("expected package %s in host state", name)
			continue
		}
		if record.Hash != "hash-"+name {
			t.Errorf("expected hash-%s, got %s", name, record.Hash)
		}
	}

	// Unknown host yields an empty map, not an error
	empty, err := store.GetHostState(ctx, "unknown")
	if err != nil {
		t.Fatalf("failed to get empty host state: %v", err)
	}
	if empty.Packages == nil {
		t.Error("expected non-nil package map for unknown host")
	}
	if len(empty.Packages) != 0 {
		t.Errorf("expected 0 packages for unknown host, got %d", len(empty.Packages))
	}
}

// TestEventOperations tests Event operations
func TestEventOperations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Create a run first
	run := &Run{
		ID:        "run-020",
		Host:      "laptop",
		Command:   "validate",
		Status:    RunStatusRunning,
		StartedAt: now,
		Metadata:  `{}`,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	// Append events
	events := []*Event{
		{
			RunID:     &run.ID,
			Level:     EventLevelInfo,
			Message:   "Resolve started",
			Timestamp: now,
		},
		{
			RunID:     &run.ID,
			Level:     EventLevelWarning,
			Message:   "Policy violation: destination outside home",
			Timestamp: now.Add(1 * time.Second),
		},
		{
			RunID:     &run.ID,
			Level:     EventLevelError,
			Message:   "Resolve failed",
			Timestamp: now.Add(2 * time.Second),
		},
	}

	for _, event := range events {
		if err := store.AppendEvent(ctx, event); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if event.ID == 0 {
			t.Error("expected event ID to be set after insert")
		}
	}

	// Get all events for run
	retrieved, err := store.GetEvents(ctx, &run.ID, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}

	if len(retrieved) != 3 {
		t.Errorf("expected 3 events, got %d", len(retrieved))
	}

	// Filter by level
	errorLevel := EventLevelError
	filtered, err := store.GetEvents(ctx, nil, &errorLevel, 10, 0)
	if err != nil {
		t.Fatalf("failed to get filtered events: %v", err)
	}

	if len(filtered) != 1 {
		t.Errorf("expected 1 error event, got %d", len(filtered))
	}
	if filtered[0].Level != EventLevelError {
		t.Errorf("expected level %s, got %s", EventLevelError, filtered[0].Level)
	}
}

// TestTransactions tests transaction support
func TestTransactions(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Begin transaction
	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}

	// Create run within transaction
	run := &Run{
		ID:        "run-tx-001",
		Host:      "laptop",
		Command:   "plan",
		Status:    RunStatusPending,
		StartedAt: now,
		Metadata:  `{}`,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		INSERT INTO runs (id, host, command, status, started_at, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query, run.ID, run.Host, run.Command, run.Status, run.StartedAt, run.Metadata, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		store.RollbackTx(tx)
		t.Fatalf("failed to insert run in transaction: %v", err)
	}

	// Rollback
	if err := store.RollbackTx(tx); err != nil {
		t.Fatalf("failed to rollback transaction: %v", err)
	}

	// Verify run was not created
	_, err = store.GetRun(ctx, run.ID)
	if err == nil {
		t.Error("expected error when getting rolled back run")
	}

	// Begin new transaction and commit
	tx, err = store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin second transaction: %v", err)
	}

	_, err = tx.ExecContext(ctx, query, run.ID, run.Host, run.Command, run.Status, run.StartedAt, run.Metadata, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		store.RollbackTx(tx)
		t.Fatalf("failed to insert run in second transaction: %v", err)
	}

	if err := store.CommitTx(tx); err != nil {
		t.Fatalf("failed to commit transaction: %v", err)
	}

	// Verify run was created
	retrieved, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get committed run: %v", err)
	}

	if retrieved.ID != run.ID {
		t.Errorf("expected ID %s, got %s", run.ID, retrieved.ID)
	}
}

// TestCascadeDelete tests foreign key cascading
func TestCascadeDelete(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Create run
	run := &Run{
		ID:        "run-cascade-001",
		Host:      "laptop",
		Command:   "plan",
		Status:    RunStatusRunning,
		StartedAt: now,
		Metadata:  `{}`,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	// Create a package record referencing the run
	record := &PackageRecord{
		ID:         "pr-cascade-001",
		Host:       "laptop",
		Name:       "ripgrep",
		SourceKind: "main",
		Entry:      `{"package":"ripgrep"}`,
		Hash:       "hash-ripgrep",
		LastRunID:  &run.ID,
		AppliedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := store.UpsertPackageRecord(ctx, record); err != nil {
		t.Fatalf("failed to upsert package record: %v", err)
	}

	// Create event
	event := &Event{
		RunID:     &run.ID,
		Level:     EventLevelInfo,
		Message:   "plan created",
		Timestamp: now,
	}
	if err := store.AppendEvent(ctx, event); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	// Delete run (events cascade, package record keeps its row)
	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	// Verify events were deleted
	events, err := store.GetEvents(ctx, &run.ID, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected 0 events after cascade delete, got %d", len(events))
	}

	// Verify the package record survives with a cleared run reference
	kept, err := store.GetPackageRecord(ctx, "laptop", "ripgrep")
	if err != nil {
		t.Fatalf("failed to get package record after run delete: %v", err)
	}
	if kept.LastRunID != nil {
		t.Errorf("expected LastRunID to be cleared, got %v", *kept.LastRunID)
	}
}

// TestMain sets up and tears down test environment
func TestMain(m *testing.M) {
	// Run tests
	code := m.Run()

	// Exit
	os.Exit(code)
}
