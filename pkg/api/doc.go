/*
Package api implements the API Gateway: the mandatory-mTLS HTTP surface
clients use to submit diff/repair/rerun tasks and query their status.

# Architecture

	┌──────────────── CLIENT (operator tool, cron caller) ────────┐
	│  HTTPS client, presents a client certificate signed by the   │
	│  configured CA                                                │
	└─────────────────────────┬─────────────────────────────────────┘
	                          │ HTTP/1.1, HTTP/2 over TLS 1.2+, port 5000
	┌─────────────────────────▼──────────────── ACE PROCESS ───────┐
	│  ┌──────────────────────────────────────────────┐            │
	│  │          API Gateway (pkg/api)                │            │
	│  │  - mandatory client-cert verification         │            │
	│  │  - subject CN -> client_role                  │            │
	│  │  - basic admission validation only            │            │
	│  └──────────────────┬───────────────────────────┘            │
	│                     │ SubmitAdHoc                              │
	│  ┌──────────────────▼───────────────────────────┐            │
	│  │         Periodic Scheduler (pkg/scheduler)    │            │
	│  └──────────────────┬───────────────────────────┘            │
	│                     │ Submit                                   │
	│  ┌──────────────────▼───────────────────────────┐            │
	│  │         Worker pool (pkg/worker)              │            │
	│  └────────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────────────┘

# Endpoints

All endpoints return JSON. POST endpoints (other than
update-spock-exception) take their parameters as URL query parameters,
not a request body:

	POST /ace/table-diff
	POST /ace/table-repair
	POST /ace/table-rerun
	POST /ace/repset-diff
	POST /ace/spock-diff
	POST /ace/schema-diff
	GET  /ace/task-status
	POST /ace/update-spock-exception   (JSON body)

Every task-submitting POST responds `{task_id, submitted_at}` on
success; task-status responds the full task record; every failure
responds `{error}` with the status code from types.Error.HTTPStatus.

# Admission validation

Admission checks only that required fields are present and that
numeric/list fields parse — it never touches the target cluster. Full
validation (does the cluster exist, does the table exist, are the
credentials good) happens inside the worker once the task is
dispatched, so a slow or unreachable cluster never blocks the HTTP
response.

# mTLS

The underlying *tls.Config requires and verifies a client certificate
for every connection (tls.RequireAndVerifyClientCert); a client
presenting no certificate, or one not signed by the configured CA,
never completes a TLS handshake and so never reaches a handler. Once a
connection is established, the leaf certificate's subject Common Name
becomes that task's client_role and is attributed to every SQL
statement the task runs.
*/
package api
