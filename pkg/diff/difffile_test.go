package diff

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/ace/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestWriteReadDiffFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	df := &types.DiffFile{
		Schema:     "public",
		Table:      "orders",
		PrimaryKey: []string{"id"},
		Diffs: map[string][]types.Row{
			"b": {{"id": int64(2), "v": "y"}, {"id": int64(1), "v": "x"}},
		},
	}

	require.NoError(t, WriteDiffFile(path, df))

	got, err := ReadDiffFile(path)
	require.NoError(t, err)
	require.Equal(t, "public", got.Schema)
	require.Equal(t, "orders", got.Table)
	require.Len(t, got.Diffs["b"], 2)
}

func TestWriteDiffFileSortsRowsByPrimaryKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	df := &types.DiffFile{
		Schema:     "public",
		Table:      "orders",
		PrimaryKey: []string{"id"},
		Diffs: map[string][]types.Row{
			"a": {{"id": int64(3), "v": "c"}, {"id": int64(1), "v": "a"}, {"id": int64(2), "v": "b"}},
		},
	}
	require.NoError(t, WriteDiffFile(path, df))

	got, err := ReadDiffFile(path)
	require.NoError(t, err)

	rows := got.Diffs["a"]
	require.Len(t, rows, 3)
	require.EqualValues(t, 1, rows[0]["id"])
	require.EqualValues(t, 2, rows[1]["id"])
	require.EqualValues(t, 3, rows[2]["id"])
}

func TestWriteDiffFileSortsDoubleDigitIDsNumerically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	df := &types.DiffFile{
		Schema:     "public",
		Table:      "orders",
		PrimaryKey: []string{"id"},
		Diffs: map[string][]types.Row{
			"a": {{"id": int64(10), "v": "b"}, {"id": int64(2), "v": "a"}},
		},
	}
	require.NoError(t, WriteDiffFile(path, df))

	got, err := ReadDiffFile(path)
	require.NoError(t, err)

	rows := got.Diffs["a"]
	require.Len(t, rows, 2)
	require.EqualValues(t, 2, rows[0]["id"])
	require.EqualValues(t, 10, rows[1]["id"])
}

func TestCompareValuesOrdersCompositeTimeAndStringKeys(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	require.Negative(t, compareValues(older, newer))
	require.Positive(t, compareValues(newer, older))
	require.Zero(t, compareValues(older, older))

	require.Negative(t, compareValues("alpha", "beta"))
	require.Negative(t, compareValues(int32(9), int64(10)))
}
