/*
Package clusterdesc implements the Cluster Descriptor (spec.md §4.1):
resolving a cluster name to {nodes, databases, credentials} from an
immutable, locally cached snapshot.

# Architecture

Cluster topology is loaded by an out-of-scope external collaborator
(the command-line front-end's cluster-file loader, per spec.md §1) and
written, through Put, into an embedded bbolt database keyed by cluster
name. The database is opened once at process start; Resolve never
writes, and each call reads and decodes the stored record from that
local file with no network I/O, satisfying "a cluster's
lifetime ≥ task's lifetime" and "descriptors are immutable once
loaded."

Node passwords are stored AES-256-GCM sealed (pkg/security) and
decrypted only inside Resolve, so a Cluster value handed to a caller
always carries a usable plaintext password in memory but the on-disk
cache never does.

# Errors

Resolve returns types.ErrClusterNotFound when the name is absent from
the cache, and types.ErrInvalidClusterSpec when a stored record is
missing required fields (no nodes, a node missing name/host/port/database).
Neither path performs network I/O.
*/
package clusterdesc
