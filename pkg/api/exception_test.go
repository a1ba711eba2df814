package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleUpdateSpockExceptionRejectsWrongContentType(t *testing.T) {
	s := newTestServer(&fakeScheduler{})
	req := httptest.NewRequest(http.MethodPost, "/ace/update-spock-exception?cluster_name=c1&node_name=n1", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()

	s.handleUpdateSpockException(w, req, "operator")

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestHandleUpdateSpockExceptionRejectsMissingClusterName(t *testing.T) {
	s := newTestServer(&fakeScheduler{})
	req := httptest.NewRequest(http.MethodPost, "/ace/update-spock-exception?node_name=n1", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleUpdateSpockException(w, req, "operator")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleUpdateSpockExceptionRejectsMalformedBody(t *testing.T) {
	s := newTestServer(&fakeScheduler{})
	req := httptest.NewRequest(http.MethodPost, "/ace/update-spock-exception?cluster_name=c1&node_name=n1", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleUpdateSpockException(w, req, "operator")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleUpdateSpockExceptionRejectsMissingStatus(t *testing.T) {
	s := newTestServer(&fakeScheduler{})
	req := httptest.NewRequest(http.MethodPost, "/ace/update-spock-exception?cluster_name=c1&node_name=n1", bytes.NewBufferString(`{"remote_xid":1}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleUpdateSpockException(w, req, "operator")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
