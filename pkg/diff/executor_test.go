package diff

import (
	"testing"

	"github.com/cuemby/ace/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSchemaTable(t *testing.T) {
	schema, table := splitSchemaTable("orders")
	assert.Equal(t, "public", schema)
	assert.Equal(t, "orders", table)

	schema, table = splitSchemaTable("sales.orders")
	assert.Equal(t, "sales", schema)
	assert.Equal(t, "orders", table)
}

func TestBlockAgreesEmptyIsTrue(t *testing.T) {
	assert.True(t, blockAgrees(nil))
}

func TestBlockAgreesAllEqual(t *testing.T) {
	hashes := []types.BlockHash{
		{Node: "a", Digest: "abc"},
		{Node: "b", Digest: "abc"},
		{Node: "c", Digest: "abc"},
	}
	assert.True(t, blockAgrees(hashes))
}

func TestBlockAgreesOneMismatch(t *testing.T) {
	hashes := []types.BlockHash{
		{Node: "a", Digest: "abc"},
		{Node: "b", Digest: "xyz"},
	}
	assert.False(t, blockAgrees(hashes))
}

func TestMaxRowCount(t *testing.T) {
	hashes := []types.BlockHash{{Rows: 3}, {Rows: 10}, {Rows: 7}}
	assert.Equal(t, int64(10), maxRowCount(hashes))
}

func TestMergeDivergentRowsOnlyFlagsActualDifferences(t *testing.T) {
	pk := []string{"id"}
	nodes := []string{"a", "b"}
	perNode := map[string][]types.Row{
		"a": {{"id": int64(1), "v": "x"}, {"id": int64(2), "v": "y"}},
		"b": {{"id": int64(1), "v": "x"}, {"id": int64(2), "v": "Y"}},
	}

	merged, count := mergeDivergentRows(pk, nodes, perNode)
	require.Equal(t, 1, count)
	require.Contains(t, merged, "a")
	require.Contains(t, merged, "b")
	assert.Len(t, merged["a"], 1)
	assert.Len(t, merged["b"], 1)
	assert.Equal(t, int64(2), merged["a"][0]["id"])
}

func TestMergeDivergentRowsMissingOnOneNode(t *testing.T) {
	pk := []string{"id"}
	nodes := []string{"a", "b"}
	perNode := map[string][]types.Row{
		"a": {{"id": int64(1), "v": "x"}},
		"b": {},
	}

	merged, count := mergeDivergentRows(pk, nodes, perNode)
	require.Equal(t, 1, count)
	assert.Len(t, merged["a"], 1)
	assert.Len(t, merged["b"], 0)
}

func TestMergeDivergentRowsConvergedClusterYieldsNoDivergence(t *testing.T) {
	pk := []string{"id"}
	nodes := []string{"a", "b"}
	perNode := map[string][]types.Row{
		"a": {{"id": int64(1), "v": "x"}},
		"b": {{"id": int64(1), "v": "x"}},
	}

	merged, count := mergeDivergentRows(pk, nodes, perNode)
	assert.Equal(t, 0, count)
	assert.Empty(t, merged)
}

func TestPkTuple(t *testing.T) {
	row := types.Row{"id": int64(7), "tenant": "acme", "v": "x"}
	tuple := pkTuple(row, []string{"tenant", "id"})
	assert.Equal(t, []any{"acme", int64(7)}, tuple)
}
