package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cuemby/ace/pkg/types"
)

// updateSpockExceptionBody is the JSON body of POST
// /ace/update-spock-exception. It names one exception_status row (the
// "trio" of remote_origin/remote_commit_ts/remote_xid) and, optionally,
// a single exception_status_detail row within it (that trio plus
// command_counter).
type updateSpockExceptionBody struct {
	RemoteOrigin      string    `json:"remote_origin"`
	RemoteCommitTS    time.Time `json:"remote_commit_ts"`
	RemoteXID         int64     `json:"remote_xid"`
	CommandCounter    *int      `json:"command_counter,omitempty"`
	Status            string    `json:"status"`
	ResolutionClass   string    `json:"resolution_class,omitempty"`
	ResolutionDetails string    `json:"resolution_details,omitempty"`
}

const updateDetailSQL = `
UPDATE spock.exception_status_detail
SET status = $1, resolution_class = $2, resolution_details = $3
WHERE remote_origin = $4 AND remote_commit_ts = $5 AND remote_xid = $6 AND command_counter = $7`

const updateParentSQL = `
UPDATE spock.exception_status
SET status = $1, resolution_details = $2, resolved_at = $3
WHERE remote_origin = $4 AND remote_commit_ts = $5 AND remote_xid = $6`

// cascadeDetailsSQL updates every still-PENDING detail of the named
// trio when the caller omits command_counter: spec.md leaves the
// omitted-command_counter case open, and the decision recorded here is
// "update the parent, and cascade the same resolution to every PENDING
// detail under it" rather than leaving siblings stranded at PENDING
// under a RESOLVED parent.
const cascadeDetailsSQL = `
UPDATE spock.exception_status_detail
SET status = $1, resolution_class = $2, resolution_details = $3
WHERE remote_origin = $4 AND remote_commit_ts = $5 AND remote_xid = $6 AND status = 'PENDING'`

// handleUpdateSpockException applies an operator's resolution to one
// Spock exception (or, with command_counter omitted, to an entire
// exception trio). Unlike the other endpoints this is not task-backed:
// it is a direct, synchronous catalog update against the named node.
func (s *Server) handleUpdateSpockException(w http.ResponseWriter, r *http.Request, _ string) {
	if ct := r.Header.Get("Content-Type"); ct != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	clusterName, err := requiredParam(r, "cluster_name")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	nodeName, err := requiredParam(r, "node_name")
	if err != nil {
		writeTaskError(w, err)
		return
	}

	var body updateSpockExceptionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body: "+err.Error())
		return
	}
	if body.Status == "" {
		writeError(w, http.StatusBadRequest, `body field "status" is required`)
		return
	}

	pool, _, err := s.clusterPool(clusterName)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	defer pool.Close()

	conn, err := pool.Acquire(r.Context(), nodeName)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	defer conn.Release()

	if body.CommandCounter != nil {
		if _, err := conn.Exec(r.Context(), updateDetailSQL,
			body.Status, body.ResolutionClass, body.ResolutionDetails,
			body.RemoteOrigin, body.RemoteCommitTS, body.RemoteXID, *body.CommandCounter,
		); err != nil {
			writeTaskError(w, types.NewError(types.KindFatal, "update exception_status_detail", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "exception detail updated"})
		return
	}

	if _, err := conn.Exec(r.Context(), cascadeDetailsSQL,
		body.Status, body.ResolutionClass, body.ResolutionDetails,
		body.RemoteOrigin, body.RemoteCommitTS, body.RemoteXID,
	); err != nil {
		writeTaskError(w, types.NewError(types.KindFatal, "cascade exception_status_detail", err))
		return
	}

	var resolvedAt *time.Time
	if body.Status == "RESOLVED" {
		now := time.Now().UTC()
		resolvedAt = &now
	}
	if _, err := conn.Exec(r.Context(), updateParentSQL,
		body.Status, body.ResolutionDetails, resolvedAt,
		body.RemoteOrigin, body.RemoteCommitTS, body.RemoteXID,
	); err != nil {
		writeTaskError(w, types.NewError(types.KindFatal, "update exception_status", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "exception updated"})
}
