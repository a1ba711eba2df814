package diff

import (
	"context"
	"fmt"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/types"
)

// tablesInRepsetQuery enumerates every table registered to a named
// Spock replication set on one node, grounded in Spock's own
// replication_set/replication_set_table catalogs (spock.py references
// spock.replication_set_add_table and the replication-set catalogs it
// populates).
const tablesInRepsetQuery = `
SELECT n.nspname, c.relname
FROM spock.replication_set_table rt
JOIN spock.replication_set rs ON rs.set_id = rt.set_id
JOIN pg_class c ON c.oid = rt.set_reloid
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE rs.set_name = $1
ORDER BY 1, 2`

// RepsetDiff diffs every table registered to params.RepsetName, one
// table-diff at a time, reusing Executor.Run for each member table.
// Table membership is read from the first node in the node list only (replication
// set membership is DDL, expected identical everywhere by the time a
// repset-diff is requested).
func RepsetDiff(ctx context.Context, pool *dbpool.Pool, cluster *types.Cluster, cfg Config, params types.RepsetDiffParams) (*types.RepsetDiffSummary, error) {
	nodes := params.Nodes
	if len(nodes) == 0 {
		nodes = cluster.NodeNames()
	}
	if len(nodes) == 0 {
		return nil, types.NewError(types.KindValidation, "cluster has no nodes", types.ErrInvalidClusterSpec)
	}

	tables, err := repsetTables(ctx, pool, nodes[0], params.RepsetName)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, types.NewError(types.KindValidation, fmt.Sprintf("replication set %q has no member tables", params.RepsetName), nil)
	}

	skip := make(map[string]bool, len(params.SkipTables))
	for _, t := range params.SkipTables {
		skip[t] = true
	}

	executor := NewExecutor(pool, cluster, cfg)
	summary := &types.RepsetDiffSummary{RepsetName: params.RepsetName}

	for _, table := range tables {
		if skip[table] {
			continue
		}
		result := types.RepsetTableResult{TableName: table}
		tableSummary, err := executor.Run(ctx, types.TableDiffParams{
			ClusterName: params.ClusterName,
			TableName:   table,
			DBName:      params.DBName,
			BlockRows:   params.BlockRows,
			MaxCPURatio: params.MaxCPURatio,
			Output:      params.Output,
			Nodes:       params.Nodes,
			BatchSize:   params.BatchSize,
			Quiet:       params.Quiet,
		})
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Summary = tableSummary
		}
		summary.Tables = append(summary.Tables, result)
	}

	return summary, nil
}

func repsetTables(ctx context.Context, pool *dbpool.Pool, node, repsetName string) ([]string, error) {
	conn, err := pool.Acquire(ctx, node)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, tablesInRepsetQuery, repsetName)
	if err != nil {
		return nil, fmt.Errorf("list tables for replication set %q: %w", repsetName, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var schema, table string
		if err := rows.Scan(&schema, &table); err != nil {
			return nil, err
		}
		tables = append(tables, schema+"."+table)
	}
	return tables, rows.Err()
}
