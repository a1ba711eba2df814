package repair

import (
	"testing"

	"github.com/cuemby/ace/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPkKeyJoinsColumnsInOrder(t *testing.T) {
	row := types.Row{"tenant": "acme", "id": int64(7)}
	assert.Equal(t, "acme\x1f7", pkKey(row, []string{"tenant", "id"}))
}

func TestSortedNodeSetDedupesAndSorts(t *testing.T) {
	diffs := map[string][]types.Row{"c": nil, "a": nil}
	nodes := sortedNodeSet(diffs, "b", "a")
	assert.Equal(t, []string{"a", "b", "c"}, nodes)
}

func TestBuildSourceOfTruthPlanUpdatesDivergentNode(t *testing.T) {
	pk := []string{"id"}
	byKey := rowsByKey(pk, []string{"a", "b"}, map[string][]types.Row{
		"a": {{"id": int64(2), "v": "x"}},
		"b": {{"id": int64(2), "v": "y"}},
	})

	plan := buildSourceOfTruthPlan(pk, []string{"a", "b"}, "a", byKey, false)

	require.Equal(t, 1, plan.KeysExamined)
	require.Equal(t, 1, plan.KeysPlanned)
	require.Empty(t, plan.PerNode["a"])
	require.Len(t, plan.PerNode["b"], 1)
	assert.Equal(t, opUpsert, plan.PerNode["b"][0].Kind)
	assert.Equal(t, "x", plan.PerNode["b"][0].Row["v"])
}

func TestBuildSourceOfTruthPlanDeletesWhenAbsentOnTruth(t *testing.T) {
	pk := []string{"id"}
	byKey := rowsByKey(pk, []string{"a", "b"}, map[string][]types.Row{
		"b": {{"id": int64(9), "v": "stale"}},
	})

	plan := buildSourceOfTruthPlan(pk, []string{"a", "b"}, "a", byKey, false)

	require.Len(t, plan.PerNode["b"], 1)
	assert.Equal(t, opDelete, plan.PerNode["b"][0].Kind)
	assert.Equal(t, []any{int64(9)}, plan.PerNode["b"][0].PK)
}

func TestBuildSourceOfTruthPlanSkipsDeleteWhenUpsertOnly(t *testing.T) {
	pk := []string{"id"}
	byKey := rowsByKey(pk, []string{"a", "b"}, map[string][]types.Row{
		"b": {{"id": int64(9), "v": "stale"}},
	})

	plan := buildSourceOfTruthPlan(pk, []string{"a", "b"}, "a", byKey, true)

	assert.Empty(t, plan.PerNode["b"])
	assert.Equal(t, 0, plan.KeysPlanned)
}

func TestBuildSourceOfTruthPlanNoOpWhenAlreadyConverged(t *testing.T) {
	pk := []string{"id"}
	byKey := rowsByKey(pk, []string{"a", "b"}, map[string][]types.Row{
		"a": {{"id": int64(1), "v": "x"}},
		"b": {{"id": int64(1), "v": "x"}},
	})

	plan := buildSourceOfTruthPlan(pk, []string{"a", "b"}, "a", byKey, false)

	assert.Equal(t, 0, plan.KeysPlanned)
	assert.Empty(t, plan.PerNode["b"])
}

func TestFoldNonNullPrefersFirstNonNullAlphabetically(t *testing.T) {
	rows := map[string]types.Row{
		"A": {"id": int64(1), "a": nil, "b": "x"},
		"B": {"id": int64(1), "a": "alpha", "b": nil},
		"C": {"id": int64(1), "a": nil, "b": nil},
	}

	target := foldNonNull([]string{"A", "B", "C"}, rows)

	assert.Equal(t, "alpha", target["a"])
	assert.Equal(t, "x", target["b"])
}

func TestFoldNonNullKeepsNullWhenAllNodesNull(t *testing.T) {
	rows := map[string]types.Row{
		"A": {"id": int64(1), "a": nil},
		"B": {"id": int64(1), "a": nil},
	}

	target := foldNonNull([]string{"A", "B"}, rows)
	assert.Nil(t, target["a"])
}

func TestBuildFixNullsPlanUpsertsNodesThatNeedTheMerge(t *testing.T) {
	pk := []string{"id"}
	byKey := rowsByKey(pk, []string{"A", "B", "C"}, map[string][]types.Row{
		"A": {{"id": int64(1), "a": nil, "b": "x"}},
		"B": {{"id": int64(1), "a": "alpha", "b": nil}},
		"C": {{"id": int64(1), "a": nil, "b": nil}},
	})

	plan := buildFixNullsPlan(pk, []string{"A", "B", "C"}, byKey)

	require.Equal(t, 1, plan.KeysPlanned)
	require.Len(t, plan.PerNode["A"], 1)
	require.Len(t, plan.PerNode["C"], 1)
	assert.Equal(t, "alpha", plan.PerNode["A"][0].Row["a"])
	assert.Equal(t, "x", plan.PerNode["A"][0].Row["b"])
}
