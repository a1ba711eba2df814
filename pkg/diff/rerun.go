package diff

import (
	"context"
	"fmt"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/types"
	"github.com/jackc/pgx/v5"
)

// Rerun re-verifies the specific rows named in a previously produced
// DiffFile, rather than re-planning the whole table from scratch: each
// recorded primary key is re-fetched from every node that appeared in
// the original diff and re-compared, so rows repaired or resolved by
// later writes drop out of the divergent count. Behavior is accepted
// for parity with the scheduling API but this implementation always
// re-checks in-process; it has no separate host-db execution path.
func Rerun(ctx context.Context, pool *dbpool.Pool, cluster *types.Cluster, params types.TableRerunParams) (*types.RerunSummary, error) {
	df, err := ReadDiffFile(params.DiffFile)
	if err != nil {
		return nil, err
	}

	nodes := make([]string, 0, len(df.Diffs))
	for node := range df.Diffs {
		nodes = append(nodes, node)
	}
	if len(nodes) == 0 {
		return &types.RerunSummary{DiffFilePath: params.DiffFile}, nil
	}

	schema, table := splitSchemaTable(df.Table)
	if df.Schema != "" {
		schema = df.Schema
	}

	refConn, err := pool.Acquire(ctx, nodes[0])
	if err != nil {
		return nil, err
	}
	meta, err := LoadTableMeta(ctx, refConn, schema, table)
	refConn.Release()
	if err != nil {
		return nil, err
	}

	pkSet := uniquePKs(df)
	stillDivergent := 0

	for _, pk := range pkSet {
		rowsByNode := make(map[string]types.Row, len(nodes))
		for _, node := range nodes {
			row, ok, err := fetchRowByPK(ctx, pool, node, meta, pk)
			if err != nil {
				return nil, err
			}
			if ok {
				rowsByNode[node] = row
			}
		}
		if rowsStillDiverge(rowsByNode, len(nodes), meta) {
			stillDivergent++
		}
	}

	return &types.RerunSummary{
		RowsChecked:    len(pkSet),
		StillDivergent: stillDivergent,
		DiffFilePath:   params.DiffFile,
	}, nil
}

// uniquePKs collects the distinct primary-key tuples referenced across
// every node's row list in df, preserving df.PrimaryKey's column order.
func uniquePKs(df *types.DiffFile) [][]any {
	seen := make(map[string]bool)
	var pks [][]any
	for _, rows := range df.Diffs {
		for _, row := range rows {
			pk := make([]any, len(df.PrimaryKey))
			for i, col := range df.PrimaryKey {
				pk[i] = row[col]
			}
			key := fmt.Sprintf("%v", pk)
			if seen[key] {
				continue
			}
			seen[key] = true
			pks = append(pks, pk)
		}
	}
	return pks
}

// fetchRowByPK fetches the single row matching pk's primary-key tuple,
// or (nil, false, nil) if no such row exists on node.
func fetchRowByPK(ctx context.Context, pool *dbpool.Pool, node string, meta TableMeta, pk []any) (types.Row, bool, error) {
	conn, err := pool.Acquire(ctx, node)
	if err != nil {
		return nil, false, err
	}
	defer conn.Release()

	columnIdent := quoteIdentList(meta.ColumnNames())
	tableIdent := pgx.Identifier{meta.Schema, meta.Table}.Sanitize()
	pkIdent := quoteIdentList(meta.PrimaryKey)
	tuple := pkIdent
	if len(meta.PrimaryKey) > 1 {
		tuple = "(" + pkIdent + ")"
	}
	ph := placeholders(len(meta.PrimaryKey), 1)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", columnIdent, tableIdent, tuple, parenIfComposite(ph, len(meta.PrimaryKey)))

	rows, err := conn.Query(ctx, query, pk...)
	if err != nil {
		return nil, false, fmt.Errorf("fetch row by primary key on %s: %w", node, err)
	}
	defer rows.Close()

	columns := meta.ColumnNames()
	if !rows.Next() {
		return nil, false, rows.Err()
	}
	values, err := rows.Values()
	if err != nil {
		return nil, false, err
	}
	row := make(types.Row, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	return row, true, nil
}

// rowsStillDiverge reports whether the rows observed for one primary
// key still disagree: missing on any of the wantNodes nodes named in
// the diff file, or present everywhere but not byte-identical
// once serialized in column order.
func rowsStillDiverge(rowsByNode map[string]types.Row, wantNodes int, meta TableMeta) bool {
	if len(rowsByNode) != wantNodes {
		return true
	}
	columns := meta.ColumnNames()
	var first []byte
	haveFirst := false
	for _, row := range rowsByNode {
		serialized := SerializeRow(row, columns)
		if !haveFirst {
			first = serialized
			haveFirst = true
			continue
		}
		if string(serialized) != string(first) {
			return true
		}
	}
	return false
}
