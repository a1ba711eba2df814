package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuemby/ace/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	lastTask *types.Task
	err      error
}

func (f *fakeScheduler) SubmitAdHoc(_ context.Context, task *types.Task) error {
	if f.err != nil {
		return f.err
	}
	task.TaskID = "11111111-1111-1111-1111-111111111111"
	f.lastTask = task
	return nil
}

func newTestServer(sched Scheduler) *Server {
	return &Server{cfg: Config{Scheduler: sched}}
}

func TestHandleTableDiffRejectsMissingClusterName(t *testing.T) {
	s := newTestServer(&fakeScheduler{})
	req := httptest.NewRequest(http.MethodPost, "/ace/table-diff?table_name=accounts", nil)
	w := httptest.NewRecorder()

	s.handleTableDiff(w, req, "operator")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleTableDiffRejectsBadBlockRows(t *testing.T) {
	s := newTestServer(&fakeScheduler{})
	req := httptest.NewRequest(http.MethodPost, "/ace/table-diff?cluster_name=c1&table_name=accounts&block_rows=not-a-number", nil)
	w := httptest.NewRecorder()

	s.handleTableDiff(w, req, "operator")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleTableDiffSubmitsTaskAndReportsID(t *testing.T) {
	fs := &fakeScheduler{}
	s := newTestServer(fs)
	req := httptest.NewRequest(http.MethodPost, "/ace/table-diff?cluster_name=c1&table_name=accounts&nodes=n1,n2&quiet=true", nil)
	w := httptest.NewRecorder()

	s.handleTableDiff(w, req, "operator")

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, fs.lastTask)
	params, ok := fs.lastTask.TaskContext.(types.TableDiffParams)
	require.True(t, ok)
	assert.Equal(t, "c1", params.ClusterName)
	assert.Equal(t, "accounts", params.TableName)
	assert.Equal(t, []string{"n1", "n2"}, params.Nodes)
	assert.True(t, params.Quiet)
	assert.Equal(t, "operator", fs.lastTask.ClientRole)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, fs.lastTask.TaskID, body["task_id"])
}

func TestHandleTableRerunRejectsUnknownBehavior(t *testing.T) {
	s := newTestServer(&fakeScheduler{})
	req := httptest.NewRequest(http.MethodPost, "/ace/table-rerun?cluster_name=c1&diff_file=f.json&table_name=t&behavior=bogus", nil)
	w := httptest.NewRecorder()

	s.handleTableRerun(w, req, "operator")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleTableRerunAcceptsKnownBehavior(t *testing.T) {
	fs := &fakeScheduler{}
	s := newTestServer(fs)
	req := httptest.NewRequest(http.MethodPost, "/ace/table-rerun?cluster_name=c1&diff_file=f.json&table_name=t&behavior=hostdb", nil)
	w := httptest.NewRecorder()

	s.handleTableRerun(w, req, "operator")

	require.Equal(t, http.StatusOK, w.Code)
	params := fs.lastTask.TaskContext.(types.TableRerunParams)
	assert.Equal(t, types.RerunHostDB, params.Behavior)
}

func TestHandleSpockDiffSubmitsTask(t *testing.T) {
	fs := &fakeScheduler{}
	s := newTestServer(fs)
	req := httptest.NewRequest(http.MethodPost, "/ace/spock-diff?cluster_name=c1", nil)
	w := httptest.NewRecorder()

	s.handleSpockDiff(w, req, "operator")

	require.Equal(t, http.StatusOK, w.Code)
	params := fs.lastTask.TaskContext.(types.SpockDiffParams)
	assert.Equal(t, "c1", params.ClusterName)
}

func TestHandleSchemaDiffRequiresSchemaName(t *testing.T) {
	s := newTestServer(&fakeScheduler{})
	req := httptest.NewRequest(http.MethodPost, "/ace/schema-diff?cluster_name=c1", nil)
	w := httptest.NewRecorder()

	s.handleSchemaDiff(w, req, "operator")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRepsetDiffSubmitsTask(t *testing.T) {
	fs := &fakeScheduler{}
	s := newTestServer(fs)
	req := httptest.NewRequest(http.MethodPost, "/ace/repset-diff?cluster_name=c1&repset_name=default&skip_tables=audit_log,%20scratch", nil)
	w := httptest.NewRecorder()

	s.handleRepsetDiff(w, req, "operator")

	require.Equal(t, http.StatusOK, w.Code)
	params := fs.lastTask.TaskContext.(types.RepsetDiffParams)
	assert.Equal(t, []string{"audit_log", "scratch"}, params.SkipTables)
}

func TestHandleTaskStatusRejectsMissingTaskID(t *testing.T) {
	s := newTestServer(&fakeScheduler{})
	req := httptest.NewRequest(http.MethodGet, "/ace/task-status", nil)
	w := httptest.NewRecorder()

	s.handleTaskStatus(w, req, "operator")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
