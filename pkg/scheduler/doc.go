/*
Package scheduler provides the Periodic Scheduler for the Anti-Chaos
Engine control plane.

It recurringly submits table-diff and table-repair tasks — and any
other TaskType — on two kinds of trigger:

  - CrontabSchedule: a standard 5-field cron expression, driven by
    github.com/robfig/cron/v3.
  - RunFrequency: an "Nw Nd Nh Nm Ns" interval string (each unit
    optional, additive), driven by a dedicated time.Ticker per job.

# Leadership and suppression

	┌─────────────────────────────────────────────────────────┐
	│                      Scheduler                          │
	│                                                          │
	│   cron.Cron ──fire(name)──┐                              │
	│                           │                              │
	│   ticker (per job) ───────┤                              │
	│                           ▼                              │
	│                  ┌─────────────────┐                     │
	│                  │  leader gate?    │── not leader ──▶ skip
	│                  └────────┬─────────┘
	│                           │ leader
	│                           ▼
	│                  ┌─────────────────┐
	│                  │ still RUNNING?   │── yes ──▶ suppress
	│                  └────────┬─────────┘
	│                           │ no
	│                           ▼
	│               Store.Create + Submitter.Submit
	└──────────────────────────────────────────────────────────┘

Only the elected control-plane leader fires periodic jobs; a
single-process deployment is always its own leader. Every recurring
job has an implicit max_instances=1: a job whose previously submitted
task has not yet reached a terminal status suppresses the next
firing rather than queueing behind it.

Ad-hoc jobs submitted through the API Gateway bypass both the leader
gate and the suppression check via SubmitAdHoc — they are meant to run
immediately and exactly once.
*/
package scheduler
