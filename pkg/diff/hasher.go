package diff

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/types"
	"github.com/jackc/pgx/v5"
)

// columnSeparator is the reserved byte spec.md §6 uses to separate
// column encodings within one row's serialization.
const columnSeparator = 0x1F

// rowSeparator frames one row from the next inside a block's digest
// input; spec.md only constrains the within-row encoding, so this
// package chooses an unambiguous row boundary of its own.
const rowSeparator = 0x1E

// FetchBlockRows returns every row in [block.Lo, block.Hi) on conn's
// node, in ascending primary-key order, as column-name-keyed
// types.Row values.
func FetchBlockRows(ctx context.Context, conn *dbpool.Conn, meta TableMeta, block types.Block) ([]types.Row, error) {
	where, args := blockWhereClause(meta.PrimaryKey, block.Lo, block.Hi)
	columnIdent := quoteIdentList(meta.ColumnNames())
	tableIdent := pgx.Identifier{meta.Schema, meta.Table}.Sanitize()
	pkIdent := quoteIdentList(meta.PrimaryKey)

	query := fmt.Sprintf("SELECT %s FROM %s", columnIdent, tableIdent)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + pkIdent

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch block rows for %s.%s: %w", meta.Schema, meta.Table, err)
	}
	defer rows.Close()

	var result []types.Row
	columns := meta.ColumnNames()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read block row: %w", err)
		}
		row := make(types.Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// blockWhereClause builds a row-wise comparison predicate for the
// half-open interval [lo, hi) over a (possibly composite) primary key.
func blockWhereClause(pk []string, lo, hi []any) (string, []any) {
	ident := quoteIdentList(pk)
	tuple := ident
	if len(pk) > 1 {
		tuple = "(" + ident + ")"
	}

	var clauses []string
	var args []any
	argN := 1

	if lo != nil {
		ph := placeholders(len(pk), argN)
		clauses = append(clauses, fmt.Sprintf("%s >= %s", tuple, parenIfComposite(ph, len(pk))))
		args = append(args, lo...)
		argN += len(pk)
	}
	if hi != nil {
		ph := placeholders(len(pk), argN)
		clauses = append(clauses, fmt.Sprintf("%s < %s", tuple, parenIfComposite(ph, len(pk))))
		args = append(args, hi...)
		argN += len(pk)
	}
	return strings.Join(clauses, " AND "), args
}

func placeholders(n, startAt int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", startAt+i)
	}
	return strings.Join(parts, ", ")
}

func parenIfComposite(ph string, n int) string {
	if n > 1 {
		return "(" + ph + ")"
	}
	return ph
}

// HashBlock computes one node's digest for block: the rows in range
// are serialized in primary-key order and fed to SHA-256, domain
// separated by the table identifier and column list so that two
// structurally different tables never collide.
func HashBlock(ctx context.Context, conn *dbpool.Conn, meta TableMeta, node string, block types.Block) (types.BlockHash, error) {
	rows, err := FetchBlockRows(ctx, conn, meta, block)
	if err != nil {
		return types.BlockHash{}, err
	}

	return types.BlockHash{
		BlockID: block.ID,
		Node:    node,
		Digest:  digestRows(meta, rows),
		Rows:    int64(len(rows)),
	}, nil
}

// digestRows computes the domain-separated SHA-256 digest over rows in
// the order given, serialized per meta's column list. Equal content
// across two nodes' row sets yields an equal digest.
func digestRows(meta TableMeta, rows []types.Row) string {
	h := sha256.New()
	h.Write([]byte(meta.Schema + "." + meta.Table))
	h.Write([]byte{columnSeparator})
	h.Write([]byte(strings.Join(meta.ColumnNames(), ",")))

	columns := meta.ColumnNames()
	for _, row := range rows {
		h.Write([]byte{rowSeparator})
		h.Write(SerializeRow(row, columns))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SerializeRow concatenates row's values in columns order, each
// encoded canonically per spec.md §6 and separated by 0x1F.
func SerializeRow(row types.Row, columns []string) []byte {
	var buf []byte
	for i, col := range columns {
		if i > 0 {
			buf = append(buf, columnSeparator)
		}
		buf = append(buf, encodeValue(row[col])...)
	}
	return buf
}

func encodeValue(v any) []byte {
	if v == nil {
		return []byte{0x00}
	}
	switch t := v.(type) {
	case bool:
		if t {
			return []byte{'t'}
		}
		return []byte{'f'}
	case time.Time:
		return []byte(t.UTC().Format("2006-01-02T15:04:05.000000Z"))
	case []byte:
		dst := make([]byte, hex.EncodedLen(len(t)))
		hex.Encode(dst, t)
		return dst
	case string:
		return []byte(t)
	case fmt.Stringer:
		return []byte(t.String())
	default:
		return []byte(fmt.Sprintf("%v", t))
	}
}
