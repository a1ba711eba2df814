package repair

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/diff"
	"github.com/cuemby/ace/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpsertSQLOrdersColumnsAndUpsertsOnConflict(t *testing.T) {
	row := types.Row{"id": int64(1), "v": "x", "a": "y"}
	query, args := buildUpsertSQL("public", "orders", []string{"id"}, row)

	assert.Contains(t, query, `INSERT INTO "public"."orders" ("a", "id", "v")`)
	assert.Contains(t, query, `ON CONFLICT ("id") DO UPDATE SET "a" = EXCLUDED."a", "v" = EXCLUDED."v"`)
	assert.Equal(t, []any{"y", int64(1), "x"}, args)
}

func TestBuildUpsertSQLOnlyPKColumnsDoesNothing(t *testing.T) {
	row := types.Row{"id": int64(1)}
	query, _ := buildUpsertSQL("public", "orders", []string{"id"}, row)
	assert.Contains(t, query, "DO NOTHING")
}

func TestBuildUpsertSQLCompositeKey(t *testing.T) {
	row := types.Row{"tenant": "acme", "id": int64(1), "v": "x"}
	query, _ := buildUpsertSQL("public", "orders", []string{"tenant", "id"}, row)
	assert.Contains(t, query, `ON CONFLICT ("tenant", "id")`)
}

func TestBuildDeleteSQLParameterizesPrimaryKey(t *testing.T) {
	query, args := buildDeleteSQL("public", "orders", []string{"id"}, []any{int64(9)})
	assert.Equal(t, `DELETE FROM "public"."orders" WHERE "id" = $1`, query)
	assert.Equal(t, []any{int64(9)}, args)
}

func TestBuildDeleteSQLCompositeKey(t *testing.T) {
	query, args := buildDeleteSQL("public", "orders", []string{"tenant", "id"}, []any{"acme", int64(1)})
	assert.Equal(t, `DELETE FROM "public"."orders" WHERE "tenant" = $1 AND "id" = $2`, query)
	assert.Equal(t, []any{"acme", int64(1)}, args)
}

func writeTestDiffFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diff.json")
	df := &types.DiffFile{
		Schema:     "public",
		Table:      "orders",
		PrimaryKey: []string{"id"},
		Diffs: map[string][]types.Row{
			"a": {{"id": int64(1), "v": nil}},
			"b": {{"id": int64(1), "v": "x"}},
		},
	}
	require.NoError(t, diff.WriteDiffFile(path, df))
	return path
}

func newTestCluster() *types.Cluster {
	return &types.Cluster{
		Name:  "c1",
		Nodes: []*types.Node{{Name: "a"}, {Name: "b"}},
	}
}

func TestRunDryRunOmitsPerNodeAndElapsedWithoutGenerateReport(t *testing.T) {
	cluster := newTestCluster()
	engine := NewEngine(dbpool.New(cluster, time.Second), cluster)

	summary, err := engine.Run(context.Background(), types.TableRepairParams{
		DiffFile: writeTestDiffFile(t),
		FixNulls: true,
		DryRun:   true,
	})
	require.NoError(t, err)
	assert.Nil(t, summary.PerNode)
	assert.Zero(t, summary.ElapsedMS)
}

func TestRunDryRunReportsPerNodeAndElapsedWithGenerateReport(t *testing.T) {
	cluster := newTestCluster()
	engine := NewEngine(dbpool.New(cluster, time.Second), cluster)

	summary, err := engine.Run(context.Background(), types.TableRepairParams{
		DiffFile:       writeTestDiffFile(t),
		FixNulls:       true,
		DryRun:         true,
		GenerateReport: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, summary.PerNode)
	assert.GreaterOrEqual(t, summary.ElapsedMS, int64(0))
}
