package diff

import (
	"context"
	"fmt"
	"sort"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/types"
)

const schemaTablesQuery = `
SELECT table_name FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`

// SchemaDiff compares the table list and each table's column shape
// (via LoadTableMeta, the same pre-flight check Executor.Run uses)
// across every node, reporting every table whose shape or presence
// disagrees with the reference node (the first in the node list).
func SchemaDiff(ctx context.Context, pool *dbpool.Pool, cluster *types.Cluster, params types.SchemaDiffParams) (*types.SchemaDiffSummary, error) {
	nodes := params.Nodes
	if len(nodes) == 0 {
		nodes = cluster.NodeNames()
	}
	if len(nodes) < 1 {
		return nil, types.NewError(types.KindValidation, "cluster has no nodes", types.ErrInvalidClusterSpec)
	}

	perNodeTables := make(map[string][]string, len(nodes))
	for _, node := range nodes {
		tables, err := schemaTableNames(ctx, pool, node, params.SchemaName)
		if err != nil {
			return nil, err
		}
		perNodeTables[node] = tables
	}

	summary := &types.SchemaDiffSummary{SchemaName: params.SchemaName}
	reference := nodes[0]
	allTables := unionTableNames(perNodeTables)
	summary.TablesChecked = len(allTables)

	for _, table := range allTables {
		var refMeta TableMeta
		var refErr error
		if contains(perNodeTables[reference], table) {
			refMeta, refErr = loadTableMetaOn(ctx, pool, reference, params.SchemaName, table)
		}
		for _, node := range nodes[1:] {
			if !contains(perNodeTables[node], table) {
				summary.Mismatches = append(summary.Mismatches, types.SchemaMismatch{
					TableName: table,
					Detail:    fmt.Sprintf("present on %s, missing on %s", reference, node),
					Nodes:     []string{reference, node},
				})
				continue
			}
			if !contains(perNodeTables[reference], table) {
				summary.Mismatches = append(summary.Mismatches, types.SchemaMismatch{
					TableName: table,
					Detail:    fmt.Sprintf("present on %s, missing on %s", node, reference),
					Nodes:     []string{reference, node},
				})
				continue
			}
			if refErr != nil {
				continue
			}
			meta, err := loadTableMetaOn(ctx, pool, node, params.SchemaName, table)
			if err != nil {
				summary.Mismatches = append(summary.Mismatches, types.SchemaMismatch{
					TableName: table,
					Detail:    fmt.Sprintf("failed to load metadata on %s: %v", node, err),
					Nodes:     []string{reference, node},
				})
				continue
			}
			if !sameTableMeta(refMeta, meta) {
				summary.Mismatches = append(summary.Mismatches, types.SchemaMismatch{
					TableName: table,
					Detail:    "column list or primary key differs from reference node",
					Nodes:     []string{reference, node},
				})
			}
		}
	}

	return summary, nil
}

func schemaTableNames(ctx context.Context, pool *dbpool.Pool, node, schema string) ([]string, error) {
	conn, err := pool.Acquire(ctx, node)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, schemaTablesQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables for schema %q on %s: %w", schema, node, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func unionTableNames(perNode map[string][]string) []string {
	seen := make(map[string]bool)
	for _, tables := range perNode {
		for _, t := range tables {
			seen[t] = true
		}
	}
	union := make([]string, 0, len(seen))
	for t := range seen {
		union = append(union, t)
	}
	sort.Strings(union)
	return union
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func loadTableMetaOn(ctx context.Context, pool *dbpool.Pool, node, schema, table string) (TableMeta, error) {
	conn, err := pool.Acquire(ctx, node)
	if err != nil {
		return TableMeta{}, err
	}
	defer conn.Release()
	return LoadTableMeta(ctx, conn, schema, table)
}
