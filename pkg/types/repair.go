package types

// NodeRepairResult is one node's outcome from applying a repair plan.
// Error is set only when that node's transaction rolled back; other
// nodes still proceed independently (spec.md §9's per-node isolation
// invariant).
type NodeRepairResult struct {
	Upserted int    `json:"upserted"`
	Deleted  int    `json:"deleted"`
	Error    string `json:"error,omitempty"`
}

// RepairSummary is the task-result payload attached to a completed (or
// partially-failed) table-repair task. PerNode and ElapsedMS are only
// populated when the request set generate_report (spec.md §4.6:
// "generate_report attaches per-node counts and elapsed time to the
// task result") — otherwise the summary carries only the plan-level
// counts every repair reports regardless of the flag.
type RepairSummary struct {
	Table        string                      `json:"table"`
	Mode         string                      `json:"mode"` // "source-of-truth" or "fix-nulls"
	DryRun       bool                        `json:"dry_run"`
	KeysExamined int                         `json:"keys_examined"`
	KeysPlanned  int                         `json:"keys_planned"`
	PerNode      map[string]NodeRepairResult `json:"per_node,omitempty"`
	ElapsedMS    int64                       `json:"elapsed_ms,omitempty"`
}
