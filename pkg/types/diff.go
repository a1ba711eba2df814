package types

// Block is a half-open primary-key interval [Lo, Hi) on one table,
// intended to contain ~block_rows rows on the reference node that
// defined it. Lo == nil means -∞; Hi == nil means +∞. Boundaries are
// chosen once from a reference node and reused against every node.
type Block struct {
	ID  int      // ordinal position in the planned sequence, ascending
	Lo  []any    // primary-key tuple, nil for the first block
	Hi  []any    // primary-key tuple, nil for the last block
}

// BlockHash is one node's digest for one Block.
type BlockHash struct {
	BlockID int
	Node    string
	Digest  string // hex-encoded SHA-256
	Rows    int64
	Err     error // set when the job is indeterminate (timeout, lost connection)
}

// RowDiff is the set of full rows present on each node for a block
// declared divergent, keyed by node name. At least two entries differ
// for any block that appears here.
type RowDiff struct {
	BlockID int
	Rows    map[string][]Row // node name -> rows, ascending primary-key order
}

// Row is one table row, keyed by column name, as it will be rendered
// into a DiffFile.
type Row map[string]any

// DiffFile is the persisted JSON artifact written by the Diff Executor
// and consumed by the Repair Engine and human operators. It is never
// mutated after being written.
type DiffFile struct {
	Schema     string              `json:"schema"`
	Table      string              `json:"table"`
	PrimaryKey []string            `json:"primary_key"`
	Diffs      map[string][]Row    `json:"diffs"`
}

// DiffSummary is the task-result payload attached to a completed
// table-diff task.
type DiffSummary struct {
	TotalRows        int64  `json:"total_rows"`
	DivergentRows    int64  `json:"divergent_rows"`
	MismatchedBlocks int    `json:"mismatched_blocks"`
	DiffFilePath     string `json:"diff_file_path,omitempty"`
}

// RerunSummary is the task-result payload attached to a completed
// table-rerun task: it re-verifies the rows named in a previously
// produced DiffFile rather than re-planning the whole table.
type RerunSummary struct {
	RowsChecked     int    `json:"rows_checked"`
	StillDivergent  int    `json:"still_divergent"`
	DiffFilePath    string `json:"diff_file_path,omitempty"`
}

// RepsetTableResult is one member table's diff outcome within a
// repset-diff task.
type RepsetTableResult struct {
	TableName string       `json:"table_name"`
	Summary   *DiffSummary `json:"summary,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// RepsetDiffSummary is the task-result payload attached to a completed
// repset-diff task: the aggregated outcome of diffing every table
// registered in the named replication set.
type RepsetDiffSummary struct {
	RepsetName string              `json:"repset_name"`
	Tables     []RepsetTableResult `json:"tables"`
}

// SchemaMismatch describes one table whose shape disagrees across
// nodes.
type SchemaMismatch struct {
	TableName string   `json:"table_name"`
	Detail    string   `json:"detail"`
	Nodes     []string `json:"nodes"`
}

// SchemaDiffSummary is the task-result payload attached to a completed
// schema-diff task.
type SchemaDiffSummary struct {
	SchemaName    string           `json:"schema_name"`
	TablesChecked int              `json:"tables_checked"`
	Mismatches    []SchemaMismatch `json:"mismatches"`
}

// SpockMismatch describes one Spock catalog disagreement between a
// node and the reference node.
type SpockMismatch struct {
	Catalog string `json:"catalog"`
	Node    string `json:"node"`
	Detail  string `json:"detail"`
}

// SpockDiffSummary is the task-result payload attached to a completed
// spock-diff task: divergence in replication topology itself (node
// and subscription catalogs), as distinct from divergence in
// replicated data.
type SpockDiffSummary struct {
	Mismatches []SpockMismatch `json:"mismatches"`
}
