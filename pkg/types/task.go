package types

import "time"

// TaskType enumerates the task kinds the API Gateway admits.
type TaskType string

const (
	TaskTypeTableDiff   TaskType = "table-diff"
	TaskTypeTableRepair TaskType = "table-repair"
	TaskTypeTableRerun  TaskType = "table-rerun"
	TaskTypeRepsetDiff  TaskType = "repset-diff"
	TaskTypeSchemaDiff  TaskType = "schema-diff"
	TaskTypeSpockDiff   TaskType = "spock-diff"
)

// TaskStatus is a task's lifecycle state. A task is created RUNNING and
// transitions at most once to a terminal state.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

// Terminal reports whether s is a terminal status.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskContext is the closed tagged variant replacing the original
// loosely-typed query-parameter bag: each TaskType has exactly one
// concrete params struct below that implements this marker interface.
type TaskContext interface {
	taskContext()
	Type() TaskType
}

// TableDiffParams backs TaskTypeTableDiff.
type TableDiffParams struct {
	ClusterName string   `json:"cluster_name"`
	TableName   string   `json:"table_name"`
	DBName      string   `json:"dbname,omitempty"`
	BlockRows   int      `json:"block_rows,omitempty"`
	MaxCPURatio float64  `json:"max_cpu_ratio,omitempty"`
	Output      string   `json:"output,omitempty"`
	Nodes       []string `json:"nodes,omitempty"`
	BatchSize   int      `json:"batch_size,omitempty"`
	TableFilter string   `json:"table_filter,omitempty"`
	Quiet       bool     `json:"quiet,omitempty"`
}

func (TableDiffParams) taskContext()    {}
func (TableDiffParams) Type() TaskType  { return TaskTypeTableDiff }

// TableRepairParams backs TaskTypeTableRepair.
type TableRepairParams struct {
	ClusterName    string `json:"cluster_name"`
	DiffFile       string `json:"diff_file"`
	SourceOfTruth  string `json:"source_of_truth,omitempty"`
	TableName      string `json:"table_name"`
	DBName         string `json:"dbname,omitempty"`
	DryRun         bool   `json:"dry_run,omitempty"`
	Quiet          bool   `json:"quiet,omitempty"`
	GenerateReport bool   `json:"generate_report,omitempty"`
	UpsertOnly     bool   `json:"upsert_only,omitempty"`
	FixNulls       bool   `json:"fix_nulls,omitempty"`
}

func (TableRepairParams) taskContext()   {}
func (TableRepairParams) Type() TaskType { return TaskTypeTableRepair }

// RerunBehavior selects how table-rerun re-verifies a prior diff.
type RerunBehavior string

const (
	RerunMultiprocessing RerunBehavior = "multiprocessing"
	RerunHostDB          RerunBehavior = "hostdb"
)

// TableRerunParams backs TaskTypeTableRerun.
type TableRerunParams struct {
	ClusterName string        `json:"cluster_name"`
	DiffFile    string        `json:"diff_file"`
	TableName   string        `json:"table_name"`
	DBName      string        `json:"dbname,omitempty"`
	Quiet       bool          `json:"quiet,omitempty"`
	Behavior    RerunBehavior `json:"behavior,omitempty"`
}

func (TableRerunParams) taskContext()   {}
func (TableRerunParams) Type() TaskType { return TaskTypeTableRerun }

// RepsetDiffParams backs TaskTypeRepsetDiff.
type RepsetDiffParams struct {
	ClusterName string   `json:"cluster_name"`
	RepsetName  string   `json:"repset_name"`
	DBName      string   `json:"dbname,omitempty"`
	BlockRows   int      `json:"block_rows,omitempty"`
	MaxCPURatio float64  `json:"max_cpu_ratio,omitempty"`
	Output      string   `json:"output,omitempty"`
	Nodes       []string `json:"nodes,omitempty"`
	BatchSize   int      `json:"batch_size,omitempty"`
	Quiet       bool     `json:"quiet,omitempty"`
	SkipTables  []string `json:"skip_tables,omitempty"`
}

func (RepsetDiffParams) taskContext()   {}
func (RepsetDiffParams) Type() TaskType { return TaskTypeRepsetDiff }

// SchemaDiffParams backs TaskTypeSchemaDiff.
type SchemaDiffParams struct {
	ClusterName string   `json:"cluster_name"`
	SchemaName  string   `json:"schema_name"`
	DBName      string   `json:"dbname,omitempty"`
	Nodes       []string `json:"nodes,omitempty"`
	Quiet       bool     `json:"quiet,omitempty"`
}

func (SchemaDiffParams) taskContext()   {}
func (SchemaDiffParams) Type() TaskType { return TaskTypeSchemaDiff }

// SpockDiffParams backs TaskTypeSpockDiff.
type SpockDiffParams struct {
	ClusterName string   `json:"cluster_name"`
	DBName      string   `json:"dbname,omitempty"`
	Nodes       []string `json:"nodes,omitempty"`
	Quiet       bool     `json:"quiet,omitempty"`
}

func (SpockDiffParams) taskContext()   {}
func (SpockDiffParams) Type() TaskType { return TaskTypeSpockDiff }

// Task is a unit of work admitted via the API Gateway. TaskContext is a
// JSON snapshot of the submitted parameters (the common lifecycle
// fields live on Task itself); TaskResult is opaque JSON produced by
// the handler.
type Task struct {
	TaskID      string          `json:"task_id"`
	TaskType    TaskType        `json:"task_type"`
	TaskStatus  TaskStatus      `json:"task_status"`
	TaskContext TaskContext     `json:"task_context"`
	TaskResult  TaskResult      `json:"task_result,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	ClientRole  string          `json:"client_role"`
}

// TaskResult is the opaque JSON result attached to a terminal task. For
// a FAILED task, Error is populated with the structured failure; for a
// COMPLETED task, Summary carries a handler-specific payload (diff
// summary, repair report, etc).
type TaskResult struct {
	Summary any        `json:"summary,omitempty"`
	Error   *TaskError  `json:"error,omitempty"`
}

// TaskError is the structured error captured into TaskResult when a
// worker-path error fails a task (spec.md §7 propagation policy).
type TaskError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
