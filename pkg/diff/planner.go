package diff

import (
	"context"
	"fmt"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/types"
	"github.com/jackc/pgx/v5"
)

// ColumnMeta is one column's name, ordinal position, and declared type
// as seen on a given node.
type ColumnMeta struct {
	Name     string
	Position int
	DataType string
}

// TableMeta is the schema shape a node reports for one table: its
// column list in ordinal order and resolved primary key. Two nodes'
// TableMeta must be equal (ignoring DataType case) for a diff to
// proceed past pre-flight.
type TableMeta struct {
	Schema     string
	Table      string
	Columns    []ColumnMeta
	PrimaryKey []string
}

// ColumnNames returns the table's column names in ordinal order.
func (m TableMeta) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

const fetchColumnsQuery = `
SELECT column_name, ordinal_position, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

// primaryKeyQuery resolves the declared primary key; replicaIdentityQuery
// falls back to the replica-identity unique index when no primary key
// exists (spec.md §4.3 step 1).
const primaryKeyQuery = `
SELECT a.attname
FROM pg_index i
JOIN pg_class c ON c.oid = i.indrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
WHERE n.nspname = $1 AND c.relname = $2 AND i.indisprimary
ORDER BY array_position(i.indkey, a.attnum)`

const replicaIdentityKeyQuery = `
SELECT a.attname
FROM pg_index i
JOIN pg_class c ON c.oid = i.indrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
WHERE n.nspname = $1 AND c.relname = $2 AND i.indisunique AND i.indisreplident
ORDER BY array_position(i.indkey, a.attnum)`

// LoadTableMeta fetches schema and primary-key metadata for one
// (schema, table) on the connection's node. Returns types.ErrNoKey if
// neither a primary key nor a replica-identity unique index exists.
func LoadTableMeta(ctx context.Context, conn *dbpool.Conn, schema, table string) (TableMeta, error) {
	rows, err := conn.Query(ctx, fetchColumnsQuery, schema, table)
	if err != nil {
		return TableMeta{}, fmt.Errorf("fetch columns for %s.%s: %w", schema, table, err)
	}
	var columns []ColumnMeta
	for rows.Next() {
		var c ColumnMeta
		if err := rows.Scan(&c.Name, &c.Position, &c.DataType); err != nil {
			rows.Close()
			return TableMeta{}, fmt.Errorf("scan column metadata: %w", err)
		}
		columns = append(columns, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return TableMeta{}, fmt.Errorf("iterate column metadata: %w", err)
	}
	if len(columns) == 0 {
		return TableMeta{}, types.NewError(types.KindValidation, fmt.Sprintf("table %s.%s not found", schema, table), types.ErrClusterNotFound)
	}

	pk, err := fetchKeyColumns(ctx, conn, primaryKeyQuery, schema, table)
	if err != nil {
		return TableMeta{}, err
	}
	if len(pk) == 0 {
		pk, err = fetchKeyColumns(ctx, conn, replicaIdentityKeyQuery, schema, table)
		if err != nil {
			return TableMeta{}, err
		}
	}
	if len(pk) == 0 {
		return TableMeta{}, types.NewError(types.KindValidation, fmt.Sprintf("%s.%s has no primary key or replica-identity unique index", schema, table), types.ErrNoKey)
	}

	return TableMeta{Schema: schema, Table: table, Columns: columns, PrimaryKey: pk}, nil
}

func fetchKeyColumns(ctx context.Context, conn *dbpool.Conn, query, schema, table string) ([]string, error) {
	rows, err := conn.Query(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("resolve key for %s.%s: %w", schema, table, err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan key column: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// Plan partitions meta's key space into blocks of ~blockRows rows each,
// by sampling every blockRows-th key on conn's node in ascending key
// order. Blocks cover (-∞, +∞): the first block's Lo is nil, the last
// block's Hi is nil.
func Plan(ctx context.Context, conn *dbpool.Conn, meta TableMeta, blockRows int) ([]types.Block, error) {
	if blockRows <= 0 {
		blockRows = 10000
	}

	pkIdent := quoteIdentList(meta.PrimaryKey)
	tableIdent := pgx.Identifier{meta.Schema, meta.Table}.Sanitize()

	query := fmt.Sprintf(`
SELECT %s FROM (
  SELECT %s, row_number() OVER (ORDER BY %s) AS rn
  FROM %s
) sub
WHERE rn %% $1 = 0
ORDER BY %s`, pkIdent, pkIdent, pkIdent, tableIdent, pkIdent)

	rows, err := conn.Query(ctx, query, blockRows)
	if err != nil {
		return nil, fmt.Errorf("plan blocks for %s.%s: %w", meta.Schema, meta.Table, err)
	}
	defer rows.Close()

	var boundaries [][]any
	for rows.Next() {
		v, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read block boundary: %w", err)
		}
		boundaries = append(boundaries, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block boundaries: %w", err)
	}

	if len(boundaries) == 0 {
		return []types.Block{{ID: 0, Lo: nil, Hi: nil}}, nil
	}

	blocks := make([]types.Block, 0, len(boundaries)+1)
	var lo []any
	for i, hi := range boundaries {
		blocks = append(blocks, types.Block{ID: i, Lo: lo, Hi: hi})
		lo = hi
	}
	blocks = append(blocks, types.Block{ID: len(boundaries), Lo: lo, Hi: nil})
	return blocks, nil
}

func quoteIdentList(cols []string) string {
	s := ""
	for i, c := range cols {
		if i > 0 {
			s += ", "
		}
		s += pgx.Identifier{c}.Sanitize()
	}
	return s
}
