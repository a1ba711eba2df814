/*
Package types defines the core data structures shared across the Anti-Chaos
Engine: cluster topology, task lifecycle, block-hash diff artifacts, and
Spock exception-log status tracking.

# Architecture

The types package is the foundation of ACE's data model. It defines:

  - Cluster topology (nodes, databases, credentials)
  - Task lifecycle state (id, type, status, context, result)
  - Block-hash diff artifacts (Block, BlockHash, RowDiff, DiffFile)
  - Replication exception status (ExceptionStatus, ExceptionStatusDetail)
  - A closed set of error kinds shared by the API Gateway and Task Store

# Core Types

Cluster Topology:
  - Cluster: a named set of nodes, immutable once loaded
  - Node: host/port/database/user/password/TLS material for one replica
  - DatabaseConfig: per-database replication settings shared by a cluster

Task Execution:
  - Task: unit of work admitted via the API Gateway
  - TaskType: table-diff, table-repair, table-rerun, repset-diff,
    schema-diff, spock-diff
  - TaskStatus: RUNNING, COMPLETED, FAILED (terminal once reached)
  - TaskContext: closed tagged variant, one shape per TaskType

Diff Artifacts:
  - Block: a half-open primary-key interval on one table
  - BlockHash: a block's digest on one node
  - RowDiff: full rows present on each node for a divergent block
  - DiffFile: the persisted JSON artifact consumed by the Repair Engine

Exception Tracking:
  - ExceptionStatus: promoted parent row for one (origin, commit_ts, xid)
  - ExceptionStatusDetail: child row adding command_counter

# State Machine

Tasks follow a single-transition state machine:

	RUNNING → COMPLETED
	RUNNING → FAILED

There is no path back to RUNNING and no path between COMPLETED and
FAILED: a task transitions to a terminal state at most once. Attempting
a second terminal transition returns ErrAlreadyTerminal.

# Design Patterns

Enumeration Pattern:

	Enums use typed string constants:
	  type TaskStatus string
	  const (
	      TaskStatusRunning   TaskStatus = "RUNNING"
	      TaskStatusCompleted TaskStatus = "COMPLETED"
	  )

Tagged Variant Pattern:

	TaskContext carries one concrete params struct per TaskType behind
	an interface, replacing the loosely-typed query-parameter bags the
	original CLI/API accepted. See task.go.

# Thread Safety

Cluster and Node values are read-only after Resolve returns them; no
synchronization is required by callers. Task values returned by the
Task Store are snapshots — mutating them has no effect on persisted
state.

# See Also

  - pkg/clusterdesc for Cluster Descriptor resolution
  - pkg/taskstore for Task persistence
  - pkg/diff for Block/BlockHash/RowDiff/DiffFile production
*/
package types
