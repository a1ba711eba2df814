/*
Package autorepair implements the Auto-Repair Loop (spec.md §4.10):
two interval jobs, run on this package's own tickers rather than
through pkg/scheduler, that keep a cluster's
Spock exception log from silently accumulating unresolved replication
conflicts.

The Status Promoter runs the three idempotent SQL steps Spock itself
doesn't yet run as triggers: promote every novel (remote_origin,
remote_commit_ts, remote_xid) trio in spock.exception_log into a
PENDING spock.exception_status parent row, promote every
(..., command_counter) quadruple into a PENDING
spock.exception_status_detail child row, then flip any parent whose
children are now all RESOLVED.

The Repair Driver scans PENDING detail rows, classifies each by the
logged operation (insert-insert, update-missing, delete-missing, or
unresolvable), and for every remediable class (insert-insert,
update-missing) synthesises a one-row types.DiffFile and drives it
through pkg/repair's Engine with the exception's remote_origin as
source of truth. delete-missing entries are marked RESOLVED without a
repair, since the row is already absent locally. Unresolvable entries
are marked UNRESOLVABLE with a structured resolution detail instead of
being retried forever.

Loop runs both passes on their own tickers (status_update_interval and
poll_interval respectively), gated by the same leadership check
pkg/scheduler's recurring jobs use — only the elected control-plane
leader drives promotion and remediation, since both passes are pinned
to one configured cluster rather than parameterised per firing the way
a Task Store admission is.
*/
package autorepair
