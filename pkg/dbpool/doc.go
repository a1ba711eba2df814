/*
Package dbpool implements the Connection Pool (spec.md §4.2): on-demand
SQL sessions to a (node, database, user) triple, each carrying a
configured statement_timeout, acquired for one unit of work and
released on every exit path.

# Scope

A Pool is owned by a single task. It holds one pgxpool.Pool per node
name, opened lazily on first Acquire and closed together by Pool.Close
when the task finishes. There is no cross-task reuse: the pool's job is
bounded-concurrency fan-out within one task's lifetime, not a
long-lived connection cache (contrast with a typical service-wide
pgxpool, which this intentionally is not).

# Failure modes

Acquire classifies connection failures into the three kinds spec.md
names: types.ErrConnectRefused, types.ErrAuthFailed, and
types.ErrStatementTimeout, by inspecting the pgconn error returned by
pgx. Any other failure is wrapped as KindTransient.
*/
package dbpool
