package diff

import (
	"testing"

	"github.com/cuemby/ace/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestUniquePKsDedupesAcrossNodes(t *testing.T) {
	df := &types.DiffFile{
		PrimaryKey: []string{"id"},
		Diffs: map[string][]types.Row{
			"n1": {{"id": int64(1), "v": "x"}, {"id": int64(2), "v": "y"}},
			"n2": {{"id": int64(1), "v": "X"}},
		},
	}
	pks := uniquePKs(df)
	assert.Len(t, pks, 2)
}

func TestRowsStillDivergeMissingNode(t *testing.T) {
	meta := TableMeta{Columns: []ColumnMeta{{Name: "id"}, {Name: "v"}}}
	rows := map[string]types.Row{
		"n1": {"id": int64(1), "v": "x"},
	}
	assert.True(t, rowsStillDiverge(rows, 2, meta))
}

func TestRowsStillDivergeMismatchedValue(t *testing.T) {
	meta := TableMeta{Columns: []ColumnMeta{{Name: "id"}, {Name: "v"}}}
	rows := map[string]types.Row{
		"n1": {"id": int64(1), "v": "x"},
		"n2": {"id": int64(1), "v": "y"},
	}
	assert.True(t, rowsStillDiverge(rows, 2, meta))
}

func TestRowsStillDivergeResolved(t *testing.T) {
	meta := TableMeta{Columns: []ColumnMeta{{Name: "id"}, {Name: "v"}}}
	rows := map[string]types.Row{
		"n1": {"id": int64(1), "v": "x"},
		"n2": {"id": int64(1), "v": "x"},
	}
	assert.False(t, rowsStillDiverge(rows, 2, meta))
}
