// Package repair implements the Repair Engine (spec.md §4.6): it reads
// a DiffFile produced by the Diff Executor, resolves one reconciled
// target row per divergent primary key under either a declared
// source-of-truth or a fix-nulls column merge, and converges every
// other node onto that target.
//
// Reconciliation only ever happens in memory, against the rows a prior
// table-diff already captured; the engine never re-reads live data
// before planning. Planning (Plan) and applying (Engine.applyNode) are split so a
// dry_run task can surface the exact operations it would have taken
// without ever opening a write transaction.
//
// Every node's plan is applied in its own transaction; a rollback on
// one node is recorded and the remaining nodes still proceed (spec.md
// §9: per-node repair transactions have no ordering or atomicity
// guarantee across nodes). Every write is a single idempotent
// upsert-or-delete, so re-running the same plan against an already
// converged node is a no-op.
package repair
