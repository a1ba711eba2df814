/*
Package worker implements the worker pool that runs admitted tasks.

A Worker pulls types.Task values off a channel fed by the Periodic
Scheduler and dispatches each to the Diff Executor or Repair Engine,
bounded to a fixed pool size. Unlike a container-runtime worker, there
is no standing agent state to report back: a task's only observable
lifecycle is its transition from RUNNING to COMPLETED or FAILED in the
Task Store.

	┌─────────────────────── Worker pool ─────────────────────────┐
	│                                                               │
	│   Scheduler ──tasks──▶ taskCh ──▶ dispatch(task)             │
	│                                       │                      │
	│                    ┌──────────────────┼──────────────────┐   │
	│                    ▼                  ▼                  ▼   │
	│            diff.Executor      repair.Engine        (other     │
	│            (table-diff,        (table-repair)       task      │
	│             repset-diff)                             types)   │
	│                    │                  │                        │
	│                    └──────────┬───────┘                        │
	│                               ▼                                │
	│                         taskstore.Store                        │
	└──────────────────────────────────────────────────────────────┘

Each dispatched task gets its own dbpool.Pool, scoped to that task and
closed when the task finishes, per the Connection Pool's no-cross-task-
reuse contract.
*/
package worker
