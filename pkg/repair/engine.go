package repair

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/diff"
	"github.com/cuemby/ace/pkg/log"
	"github.com/cuemby/ace/pkg/types"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// repairModeStmt disables replication of the applied rows' origin for
// the session so Spock does not forward a manual repair back out as a
// new change (spec.md §4.6 step 3).
const repairModeStmt = "SELECT spock.repair_mode(true)"

// Engine is the Repair Engine (spec.md §4.6): it turns a DiffFile plus
// a reconciliation policy into a per-node plan, and optionally applies
// it.
type Engine struct {
	pool    *dbpool.Pool
	cluster *types.Cluster
	logger  zerolog.Logger
}

// NewEngine builds an Engine bound to one cluster's connection pool. A
// fresh Pool/Engine pair is created per task, matching the Diff
// Executor's lifecycle.
func NewEngine(pool *dbpool.Pool, cluster *types.Cluster) *Engine {
	return &Engine{
		pool:    pool,
		cluster: cluster,
		logger:  log.WithComponent("repair-engine").With().Str("cluster_name", cluster.Name).Logger(),
	}
}

// Run executes a table-repair task end to end: load the diff, build a
// plan, and — unless dry_run — apply it node by node, continuing past
// a single node's failure (spec.md §9: no cross-node atomicity).
func (e *Engine) Run(ctx context.Context, params types.TableRepairParams) (*types.RepairSummary, error) {
	start := time.Now()

	if params.DiffFile == "" {
		return nil, types.NewError(types.KindValidation, "diff_file is required", nil)
	}
	if !params.FixNulls && params.SourceOfTruth == "" {
		return nil, types.NewError(types.KindValidation, "source_of_truth is required unless fix_nulls is set", nil)
	}

	df, err := diff.ReadDiffFile(params.DiffFile)
	if err != nil {
		return nil, types.NewError(types.KindFatal, "read diff file", err)
	}

	if params.SourceOfTruth != "" && e.cluster.NodeByName(params.SourceOfTruth) == nil {
		return nil, types.NewError(types.KindValidation, fmt.Sprintf("source_of_truth node %q not in cluster %q", params.SourceOfTruth, e.cluster.Name), nil)
	}

	nodes := sortedNodeSet(df.Diffs, params.SourceOfTruth)
	byKey := rowsByKey(df.PrimaryKey, nodes, df.Diffs)

	var plan Plan
	if params.FixNulls {
		plan = buildFixNullsPlan(df.PrimaryKey, nodes, byKey)
	} else {
		plan = buildSourceOfTruthPlan(df.PrimaryKey, nodes, params.SourceOfTruth, byKey, params.UpsertOnly)
	}

	summary := &types.RepairSummary{
		Table:        df.Table,
		Mode:         plan.Mode,
		DryRun:       params.DryRun,
		KeysExamined: plan.KeysExamined,
		KeysPlanned:  plan.KeysPlanned,
	}
	if params.GenerateReport {
		summary.PerNode = make(map[string]types.NodeRepairResult)
	}

	if params.DryRun {
		e.logger.Info().Str("table", df.Table).Int("keys_planned", plan.KeysPlanned).Msg("table-repair dry run")
		if params.GenerateReport {
			summary.ElapsedMS = time.Since(start).Milliseconds()
		}
		return summary, nil
	}

	var firstErr error
	for node, ops := range plan.PerNode {
		result, err := e.applyNode(ctx, df.Schema, df.Table, df.PrimaryKey, node, ops)
		if params.GenerateReport {
			summary.PerNode[node] = result
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if params.GenerateReport {
		summary.ElapsedMS = time.Since(start).Milliseconds()
	}

	if firstErr != nil {
		e.logger.Error().Str("table", df.Table).Err(firstErr).Msg("table-repair had per-node failures")
		return summary, types.NewError(types.KindPartial, "one or more node repair transactions failed", firstErr)
	}

	e.logger.Info().Str("table", df.Table).Int("keys_planned", plan.KeysPlanned).Msg("table-repair converged")
	return summary, nil
}

// applyNode runs ops against node in a single transaction. A rollback
// is reported on the returned result and as a non-nil error; it never
// aborts repair of any other node.
func (e *Engine) applyNode(ctx context.Context, schema, table string, pk []string, node string, ops []RowOp) (types.NodeRepairResult, error) {
	conn, err := e.pool.Acquire(ctx, node)
	if err != nil {
		return types.NodeRepairResult{Error: err.Error()}, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return types.NodeRepairResult{Error: err.Error()}, err
	}

	if _, err := tx.Exec(ctx, repairModeStmt); err != nil {
		_ = tx.Rollback(ctx)
		return types.NodeRepairResult{Error: err.Error()}, err
	}

	var result types.NodeRepairResult
	for _, op := range ops {
		switch op.Kind {
		case opUpsert:
			query, args := buildUpsertSQL(schema, table, pk, op.Row)
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				_ = tx.Rollback(ctx)
				return types.NodeRepairResult{Error: err.Error()}, err
			}
			result.Upserted++
		case opDelete:
			query, args := buildDeleteSQL(schema, table, pk, op.PK)
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				_ = tx.Rollback(ctx)
				return types.NodeRepairResult{Error: err.Error()}, err
			}
			result.Deleted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NodeRepairResult{Error: err.Error()}, err
	}
	return result, nil
}

// buildUpsertSQL builds an idempotent INSERT ... ON CONFLICT DO UPDATE
// for row: re-applying the same target row twice converges to the
// same state (spec.md §9 idempotence property).
func buildUpsertSQL(schema, table string, pk []string, row types.Row) (string, []any) {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	tableIdent := pgx.Identifier{schema, table}.Sanitize()
	colIdents := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		colIdents[i] = pgx.Identifier{col}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[col]
	}

	pkSet := make(map[string]bool, len(pk))
	for _, col := range pk {
		pkSet[col] = true
	}
	var setClauses []string
	for _, col := range columns {
		if pkSet[col] {
			continue
		}
		ident := pgx.Identifier{col}.Sanitize()
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", ident, ident))
	}

	pkIdents := make([]string, len(pk))
	for i, col := range pk {
		pkIdents[i] = pgx.Identifier{col}.Sanitize()
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		tableIdent, strings.Join(colIdents, ", "), strings.Join(placeholders, ", "), strings.Join(pkIdents, ", "))

	if len(setClauses) == 0 {
		query += " DO NOTHING"
	} else {
		query += " DO UPDATE SET " + strings.Join(setClauses, ", ")
	}
	return query, args
}

// buildDeleteSQL builds a parameterized DELETE keyed by the (possibly
// composite) primary key.
func buildDeleteSQL(schema, table string, pk []string, pkValues []any) (string, []any) {
	tableIdent := pgx.Identifier{schema, table}.Sanitize()
	clauses := make([]string, len(pk))
	for i, col := range pk {
		clauses[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{col}.Sanitize(), i+1)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", tableIdent, strings.Join(clauses, " AND "))
	return query, pkValues
}
