// Package taskstore is the Task Store (spec.md §4.7): the
// system-of-record for task lifecycle, backed by Postgres rather than
// the bbolt-backed Cluster Descriptor cache, because its invariant —
// a task transitions to a terminal state at most once — is enforced
// by the database's own row-level locking, one row per task.
package taskstore
