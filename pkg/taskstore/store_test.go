package taskstore

import (
	"testing"

	"github.com/cuemby/ace/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalTaskContextRoundTrip(t *testing.T) {
	cases := []types.TaskContext{
		types.TableDiffParams{ClusterName: "prod", TableName: "orders", BlockRows: 1000},
		types.TableRepairParams{ClusterName: "prod", DiffFile: "/tmp/d.json", SourceOfTruth: "a", TableName: "orders"},
		types.TableRerunParams{ClusterName: "prod", DiffFile: "/tmp/d.json", TableName: "orders", Behavior: types.RerunHostDB},
		types.RepsetDiffParams{ClusterName: "prod", RepsetName: "default"},
		types.SchemaDiffParams{ClusterName: "prod", SchemaName: "public"},
		types.SpockDiffParams{ClusterName: "prod"},
	}

	for _, c := range cases {
		data, err := marshalTaskContext(c)
		require.NoError(t, err)

		got, err := unmarshalTaskContext(c.Type(), data)
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestUnmarshalTaskContextUnknownType(t *testing.T) {
	_, err := unmarshalTaskContext(types.TaskType("bogus"), []byte(`{}`))
	assert.Error(t, err)
}

// TestStoreLifecycle stands in for a Create/Get/UpdateStatus round trip
// against a real control-plane database. It has no database fixture
// and always skips; ACE_TEST_DATABASE_URL is not read.
func TestStoreLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Postgres-backed integration test")
	}
	t.Skip("requires a live control-plane database; wire ACE_TEST_DATABASE_URL to run")
}
