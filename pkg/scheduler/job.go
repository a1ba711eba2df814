package scheduler

import "github.com/cuemby/ace/pkg/types"

// Job is a recurring table-diff/table-repair/etc. trigger (spec.md
// §4.9). Exactly one of CrontabSchedule or RunFrequency is set.
type Job struct {
	Name            string
	TaskType        types.TaskType
	TaskContext     types.TaskContext
	Enabled         bool
	CrontabSchedule string // standard 5-field cron expression
	RunFrequency    string // "Nw Nd Nh Nm Ns" interval grammar
}
