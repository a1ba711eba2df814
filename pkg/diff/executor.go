package diff

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/log"
	"github.com/cuemby/ace/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// retryBackoff is the fixed delay before the single retry of
// indeterminate hash jobs (spec.md §9's recommended default).
const retryBackoff = 500 * time.Millisecond

// Config holds the defaults a table-diff task falls back to when its
// params omit a value.
type Config struct {
	DefaultBlockRows   int
	DefaultMaxCPURatio float64
	DefaultBatchSize   int
	OutputDir          string
}

// Executor is the Diff Executor (spec.md §4.5): the pipeline that
// turns a TableDiffParams into a DiffFile and types.DiffSummary.
type Executor struct {
	pool    *dbpool.Pool
	cluster *types.Cluster
	cfg     Config
	logger  zerolog.Logger
}

// NewExecutor builds an Executor bound to one cluster's connection
// pool. A fresh Pool/Executor pair is created per task.
func NewExecutor(pool *dbpool.Pool, cluster *types.Cluster, cfg Config) *Executor {
	return &Executor{
		pool:    pool,
		cluster: cluster,
		cfg:     cfg,
		logger:  log.WithComponent("diff-executor").With().Str("cluster_name", cluster.Name).Logger(),
	}
}

// Run executes a table-diff task end to end and returns its summary,
// or a types.Error (ErrSchemaDivergence, ErrPartialHashFailure) on
// failure.
func (e *Executor) Run(ctx context.Context, params types.TableDiffParams) (*types.DiffSummary, error) {
	schema, table := splitSchemaTable(params.TableName)

	nodes := params.Nodes
	if len(nodes) == 0 {
		nodes = e.cluster.NodeNames()
	}
	if len(nodes) == 0 {
		return nil, types.NewError(types.KindValidation, "cluster has no nodes", types.ErrInvalidClusterSpec)
	}

	blockRows := params.BlockRows
	if blockRows <= 0 {
		blockRows = e.cfg.DefaultBlockRows
	}
	maxCPURatio := params.MaxCPURatio
	if maxCPURatio <= 0 {
		maxCPURatio = e.cfg.DefaultMaxCPURatio
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = e.cfg.DefaultBatchSize
	}

	meta, err := e.preflight(ctx, nodes, schema, table)
	if err != nil {
		return nil, err
	}

	refConn, err := e.pool.Acquire(ctx, nodes[0])
	if err != nil {
		return nil, err
	}
	blocks, err := Plan(ctx, refConn, meta, blockRows)
	refConn.Release()
	if err != nil {
		return nil, err
	}

	concurrency := int(maxCPURatio * float64(runtime.NumCPU()))
	if concurrency < 1 {
		concurrency = 1
	}

	hashes, err := e.hashAllBlocks(ctx, meta, nodes, blocks, concurrency)
	if err != nil {
		return nil, err
	}

	diffs := make(map[string][]types.Row)
	var totalRows, divergentRows int64
	mismatchedBlocks := 0

	for _, block := range blocks {
		blockHashes := hashes[block.ID]
		totalRows += maxRowCount(blockHashes)
		if blockAgrees(blockHashes) {
			continue
		}

		mismatchedBlocks++
		resolved, err := e.resolveDivergentBlock(ctx, meta, nodes, block, batchSize)
		if err != nil {
			return nil, err
		}
		for node, rows := range resolved {
			diffs[node] = append(diffs[node], rows...)
			divergentRows += int64(len(rows))
		}
	}

	summary := &types.DiffSummary{
		TotalRows:        totalRows,
		DivergentRows:    divergentRows,
		MismatchedBlocks: mismatchedBlocks,
	}

	if mismatchedBlocks == 0 {
		e.logger.Info().Str("table", params.TableName).Msg("table-diff found no divergence")
		return summary, nil
	}

	diffFile := &types.DiffFile{
		Schema:     meta.Schema,
		Table:      meta.Table,
		PrimaryKey: meta.PrimaryKey,
		Diffs:      diffs,
	}
	path := params.Output
	if path == "" {
		path = e.defaultOutputPath(meta)
	}
	if err := WriteDiffFile(path, diffFile); err != nil {
		return nil, types.NewError(types.KindFatal, "write diff file", err)
	}
	summary.DiffFilePath = path

	e.logger.Info().
		Str("table", params.TableName).
		Int("mismatched_blocks", mismatchedBlocks).
		Int64("divergent_rows", divergentRows).
		Msg("table-diff found divergence")

	return summary, nil
}

func (e *Executor) defaultOutputPath(meta TableMeta) string {
	dir := e.cfg.OutputDir
	if dir == "" {
		dir = "/var/lib/ace/diffs"
	}
	name := fmt.Sprintf("%s.%s.%s.%d.json", e.cluster.Name, meta.Schema, meta.Table, time.Now().UTC().Unix())
	return filepath.Join(dir, name)
}

// preflight verifies every node agrees on columns and primary key
// (spec.md §4.5 step 1).
func (e *Executor) preflight(ctx context.Context, nodes []string, schema, table string) (TableMeta, error) {
	var reference TableMeta
	for i, node := range nodes {
		conn, err := e.pool.Acquire(ctx, node)
		if err != nil {
			return TableMeta{}, err
		}
		meta, err := LoadTableMeta(ctx, conn, schema, table)
		conn.Release()
		if err != nil {
			return TableMeta{}, err
		}

		if i == 0 {
			reference = meta
			continue
		}
		if !sameTableMeta(reference, meta) {
			return TableMeta{}, types.NewError(types.KindFatal,
				fmt.Sprintf("schema divergence on %s.%s: node %s disagrees with node %s", schema, table, node, nodes[0]),
				types.ErrSchemaDivergence)
		}
	}
	return reference, nil
}

func sameTableMeta(a, b TableMeta) bool {
	if !reflect.DeepEqual(a.PrimaryKey, b.PrimaryKey) {
		return false
	}
	if len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i].Name != b.Columns[i].Name || a.Columns[i].Position != b.Columns[i].Position ||
			!strings.EqualFold(a.Columns[i].DataType, b.Columns[i].DataType) {
			return false
		}
	}
	return true
}

type hashJob struct {
	block types.Block
	node  string
}

// hashAllBlocks fans (block × node) hash jobs out across a bounded
// worker pool, retries indeterminate jobs once after a fixed backoff,
// and fails the whole diff with ErrPartialHashFailure if any job is
// still indeterminate (spec.md §4.5 failure policy).
func (e *Executor) hashAllBlocks(ctx context.Context, meta TableMeta, nodes []string, blocks []types.Block, concurrency int) (map[int][]types.BlockHash, error) {
	jobs := make([]hashJob, 0, len(blocks)*len(nodes))
	for _, b := range blocks {
		for _, n := range nodes {
			jobs = append(jobs, hashJob{block: b, node: n})
		}
	}

	results := make(map[int][]types.BlockHash)
	var mu sync.Mutex

	run := func(batch []hashJob) []hashJob {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		var indeterminate []hashJob
		var imu sync.Mutex

		for _, j := range batch {
			j := j
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				bh, err := e.hashBlockOnNode(gctx, meta, j.node, j.block)
				if err != nil {
					bh = types.BlockHash{BlockID: j.block.ID, Node: j.node, Err: err}
					imu.Lock()
					indeterminate = append(indeterminate, j)
					imu.Unlock()
				}
				mu.Lock()
				results[j.block.ID] = append(results[j.block.ID], bh)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
		return indeterminate
	}

	indeterminate := run(jobs)
	if len(indeterminate) > 0 {
		for _, j := range indeterminate {
			mu.Lock()
			results[j.block.ID] = removeNodeResult(results[j.block.ID], j.node)
			mu.Unlock()
		}
		time.Sleep(retryBackoff)
		stillIndeterminate := run(indeterminate)
		if len(stillIndeterminate) > 0 {
			return nil, types.NewError(types.KindPartial,
				fmt.Sprintf("%d block/node hash jobs indeterminate after retry", len(stillIndeterminate)),
				types.ErrPartialHashFailure)
		}
	}

	return results, nil
}

func (e *Executor) hashBlockOnNode(ctx context.Context, meta TableMeta, node string, block types.Block) (types.BlockHash, error) {
	conn, err := e.pool.Acquire(ctx, node)
	if err != nil {
		return types.BlockHash{}, err
	}
	defer conn.Release()
	return HashBlock(ctx, conn, meta, node, block)
}

func removeNodeResult(hashes []types.BlockHash, node string) []types.BlockHash {
	out := hashes[:0]
	for _, h := range hashes {
		if h.Node != node {
			out = append(out, h)
		}
	}
	return out
}

func maxRowCount(hashes []types.BlockHash) int64 {
	var max int64
	for _, h := range hashes {
		if h.Rows > max {
			max = h.Rows
		}
	}
	return max
}

func blockAgrees(hashes []types.BlockHash) bool {
	if len(hashes) == 0 {
		return true
	}
	first := hashes[0].Digest
	for _, h := range hashes[1:] {
		if h.Digest != first {
			return false
		}
	}
	return true
}

// resolveDivergentBlock fetches full rows for block from every node
// and returns only the rows that actually disagree, recursively
// splitting the key range when more than batchSize keys diverge
// (spec.md §4.5 batching).
func (e *Executor) resolveDivergentBlock(ctx context.Context, meta TableMeta, nodes []string, block types.Block, batchSize int) (map[string][]types.Row, error) {
	perNode := make(map[string][]types.Row, len(nodes))
	for _, node := range nodes {
		conn, err := e.pool.Acquire(ctx, node)
		if err != nil {
			return nil, err
		}
		rows, err := FetchBlockRows(ctx, conn, meta, block)
		conn.Release()
		if err != nil {
			return nil, err
		}
		perNode[node] = rows
	}

	merged, divergentCount := mergeDivergentRows(meta.PrimaryKey, nodes, perNode)
	if divergentCount <= batchSize {
		return merged, nil
	}

	refRows := perNode[nodes[0]]
	if len(refRows) < 2 {
		return merged, nil
	}
	mid := pkTuple(refRows[len(refRows)/2], meta.PrimaryKey)

	left := types.Block{ID: block.ID, Lo: block.Lo, Hi: mid}
	right := types.Block{ID: block.ID, Lo: mid, Hi: block.Hi}

	result := make(map[string][]types.Row)
	for _, half := range []types.Block{left, right} {
		hashes := make([]types.BlockHash, 0, len(nodes))
		for _, node := range nodes {
			bh, err := e.hashBlockOnNode(ctx, meta, node, half)
			if err != nil {
				return nil, err
			}
			hashes = append(hashes, bh)
		}
		if blockAgrees(hashes) {
			continue
		}
		sub, err := e.resolveDivergentBlock(ctx, meta, nodes, half, batchSize)
		if err != nil {
			return nil, err
		}
		for node, rows := range sub {
			result[node] = append(result[node], rows...)
		}
	}
	return result, nil
}

// mergeDivergentRows compares every node's view of a block's rows by
// primary key and returns, per node, only the rows where that node's
// value disagrees with the merged view (differs from another node's
// row, or is missing while present elsewhere).
func mergeDivergentRows(pk []string, nodes []string, perNode map[string][]types.Row) (map[string][]types.Row, int) {
	byKey := make(map[string]map[string]types.Row)
	var order []string

	for _, node := range nodes {
		for _, row := range perNode[node] {
			key := pkKeyString(row, pk)
			if _, ok := byKey[key]; !ok {
				byKey[key] = make(map[string]types.Row)
				order = append(order, key)
			}
			byKey[key][node] = row
		}
	}

	result := make(map[string][]types.Row)
	divergentCount := 0
	for _, key := range order {
		rowsByNode := byKey[key]
		if rowsAgreeAcrossNodes(rowsByNode, nodes) {
			continue
		}
		divergentCount++
		for _, node := range nodes {
			if row, ok := rowsByNode[node]; ok {
				result[node] = append(result[node], row)
			}
		}
	}
	return result, divergentCount
}

func rowsAgreeAcrossNodes(rowsByNode map[string]types.Row, nodes []string) bool {
	if len(rowsByNode) != len(nodes) {
		return false
	}
	var first types.Row
	firstSet := false
	for _, node := range nodes {
		row, ok := rowsByNode[node]
		if !ok {
			return false
		}
		if !firstSet {
			first = row
			firstSet = true
			continue
		}
		if !reflect.DeepEqual(first, row) {
			return false
		}
	}
	return true
}

func pkKeyString(row types.Row, pk []string) string {
	var b strings.Builder
	for _, col := range pk {
		b.Write(encodeValue(row[col]))
		b.WriteByte(columnSeparator)
	}
	return b.String()
}

func pkTuple(row types.Row, pk []string) []any {
	tuple := make([]any, len(pk))
	for i, col := range pk {
		tuple[i] = row[col]
	}
	return tuple
}

func splitSchemaTable(name string) (string, string) {
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return "public", name
}
