package worker

import (
	"testing"

	"github.com/cuemby/ace/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterNameOfKnownTypes(t *testing.T) {
	name, err := clusterNameOf(types.TableDiffParams{ClusterName: "prod"})
	require.NoError(t, err)
	assert.Equal(t, "prod", name)

	name, err = clusterNameOf(types.TableRepairParams{ClusterName: "prod2"})
	require.NoError(t, err)
	assert.Equal(t, "prod2", name)
}

func TestClusterNameOfUnknownTypeErrors(t *testing.T) {
	_, err := clusterNameOf(nil)
	assert.Error(t, err)
}

func TestToTaskErrorPreservesKind(t *testing.T) {
	err := types.NewError(types.KindPartial, "some nodes failed", nil)
	te := toTaskError(err)
	assert.Equal(t, string(types.KindPartial), te.Kind)
}

func TestToTaskErrorWrapsPlainError(t *testing.T) {
	te := toTaskError(assertError("boom"))
	assert.Equal(t, string(types.KindFatal), te.Kind)
	assert.Equal(t, "boom", te.Message)
}

type plainErr string

func (e plainErr) Error() string { return string(e) }

func assertError(msg string) error { return plainErr(msg) }

func TestSubmitRejectsAfterStop(t *testing.T) {
	w := New(Config{Concurrency: 1})
	w.Start()
	w.Stop()

	err := w.Submit(types.Task{TaskID: "t1"})
	assert.Error(t, err)
}

func TestInFlightCountStartsZero(t *testing.T) {
	w := New(Config{Concurrency: 1})
	assert.Equal(t, 0, w.InFlightCount())
}
