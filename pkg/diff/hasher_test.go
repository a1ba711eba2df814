package diff

import (
	"testing"
	"time"

	"github.com/cuemby/ace/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRowDeterministic(t *testing.T) {
	row := types.Row{"id": int64(1), "v": "x", "ts": time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC)}
	columns := []string{"id", "v", "ts"}

	a := SerializeRow(row, columns)
	b := SerializeRow(row, columns)
	assert.Equal(t, a, b)
}

func TestSerializeRowColumnOrderMatters(t *testing.T) {
	row := types.Row{"id": int64(1), "v": "x"}
	a := SerializeRow(row, []string{"id", "v"})
	b := SerializeRow(row, []string{"v", "id"})
	assert.NotEqual(t, a, b)
}

func TestEncodeValueNull(t *testing.T) {
	assert.Equal(t, []byte{0x00}, encodeValue(nil))
}

func TestEncodeValueBool(t *testing.T) {
	assert.Equal(t, []byte("t"), encodeValue(true))
	assert.Equal(t, []byte("f"), encodeValue(false))
}

func TestEncodeValueBytesAsHex(t *testing.T) {
	got := encodeValue([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	assert.Equal(t, []byte("deadbeef"), got)
}

func TestEncodeValueTimeISO8601UTC(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 8000, time.UTC)
	got := encodeValue(ts)
	assert.Equal(t, "2026-03-04T05:06:07.000008Z", string(got))
}

func TestDigestRowsEqualContentEqualDigest(t *testing.T) {
	meta := TableMeta{Schema: "public", Table: "t", Columns: []ColumnMeta{{Name: "id"}, {Name: "v"}}, PrimaryKey: []string{"id"}}
	rows := []types.Row{{"id": int64(1), "v": "x"}, {"id": int64(2), "v": "y"}}

	h1 := digestRows(meta, rows)
	h2 := digestRows(meta, rows)
	require.Equal(t, h1, h2)
}

func TestDigestRowsDivergesOnDifferentContent(t *testing.T) {
	meta := TableMeta{Schema: "public", Table: "t", Columns: []ColumnMeta{{Name: "id"}, {Name: "v"}}, PrimaryKey: []string{"id"}}
	rowsA := []types.Row{{"id": int64(1), "v": "x"}}
	rowsB := []types.Row{{"id": int64(1), "v": "y"}}

	assert.NotEqual(t, digestRows(meta, rowsA), digestRows(meta, rowsB))
}
