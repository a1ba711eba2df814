/*
Package leader elects a single control-plane leader across ACE
processes sharing a cluster, so that only one instance fires periodic
scheduler jobs at a time.

It is a thin wrapper around hashicorp/raft: the FSM (epochFSM) carries
nothing but a monotonically bumped leadership epoch, since the actual
state the ACE control plane needs to agree on — the Task Store, the
job registry — already lives in Postgres and in-memory state,
respectively. Raft here exists purely to pick a leader, not to
replicate application data.

A single-process deployment bootstraps its own one-node cluster and is
always its own leader.
*/
package leader
