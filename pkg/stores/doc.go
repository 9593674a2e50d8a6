// Package stores provides the persistence layer for owl's recorded state.
// It includes SQLite-based storage with WAL mode, connection pooling,
// and CRUD operations for runs, managed package records, and events.
// The planner reads this state back as the baseline for diffing.
package stores
