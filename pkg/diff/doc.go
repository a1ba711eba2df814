/*
Package diff implements the Diff Planner, Block Hasher, and Diff
Executor (spec.md §4.3–§4.5): partitioning a table's primary-key space
into blocks, hashing each block on every node, and resolving divergent
blocks into a row-level DiffFile.

# Pipeline

Executor.Run is the entry point a worker calls for a table-diff task:

 1. Pre-flight loads each included node's column list and primary key
    and rejects any disagreement with types.ErrSchemaDivergence.
 2. Plan partitions the reference node's key space into blocks.
 3. Hashing fans (block × node) jobs out across a bounded worker pool
    (golang.org/x/sync/errgroup), one retry on indeterminate jobs, then
    types.ErrPartialHashFailure if any job is still indeterminate.
 4. Divergent blocks are resolved to full rows and, when the divergent
    row count exceeds batch_size, recursively split and re-hashed until
    the divergent rows fit the configured batch size. A block whose
    reference node holds fewer than two rows is not split further, so
    it can return more divergent rows than batch_size.
 5. A DiffFile is written and a types.DiffSummary returned.

No step in this package performs retries beyond what's described above
or applies any write to the target databases — this package only
reads.
*/
package diff
