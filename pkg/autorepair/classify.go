package autorepair

import (
	"strings"
	"time"
)

// ExceptionClass is the remediation category a pending exception falls
// into (spec.md §4.10: "insert-insert, update-missing, delete-missing,
// etc.").
type ExceptionClass string

const (
	// ClassInsertInsert: the remote INSERT conflicted with a row
	// already present locally — the two sides have diverged and the
	// remote's version wins.
	ClassInsertInsert ExceptionClass = "insert-insert"
	// ClassUpdateMissing: the remote UPDATE found no matching row
	// locally — the row must be inserted from the remote's data.
	ClassUpdateMissing ExceptionClass = "update-missing"
	// ClassDeleteMissing: the remote DELETE found no matching row
	// locally — the row is already gone, nothing to do.
	ClassDeleteMissing ExceptionClass = "delete-missing"
	// ClassUnresolvable: no automated remediation applies (unknown
	// operation, or an UPDATE/INSERT with no captured row data).
	ClassUnresolvable ExceptionClass = "unresolvable"
)

// Remediable reports whether c is repaired by driving a row through the
// Repair Engine. ClassDeleteMissing is not: the Repair Driver marks it
// RESOLVED without a repair.
func (c ExceptionClass) Remediable() bool {
	return c == ClassInsertInsert || c == ClassUpdateMissing
}

// LogEntry is one spock.exception_log row joined to its
// ExceptionStatusDetail, enough to classify and, for remediable
// classes, reconstruct the row that needs upserting.
type LogEntry struct {
	RemoteOrigin   string
	RemoteCommitTS time.Time
	RemoteXID      int64
	CommandCounter int
	TableSchema    string
	TableName      string
	Operation      string // INSERT, UPDATE, or DELETE as logged by Spock
	RemoteNewTup   map[string]any
}

// Classify categorizes entry by its logged operation and captured row
// data.
func Classify(entry LogEntry) ExceptionClass {
	switch strings.ToUpper(entry.Operation) {
	case "INSERT":
		if len(entry.RemoteNewTup) == 0 {
			return ClassUnresolvable
		}
		return ClassInsertInsert
	case "UPDATE":
		if len(entry.RemoteNewTup) == 0 {
			return ClassUnresolvable
		}
		return ClassUpdateMissing
	case "DELETE":
		return ClassDeleteMissing
	default:
		return ClassUnresolvable
	}
}
