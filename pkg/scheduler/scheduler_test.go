package scheduler

import (
	"testing"
	"time"

	"github.com/cuemby/ace/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddJobRejectsMissingName(t *testing.T) {
	s := New(Config{})
	err := s.AddJob(Job{RunFrequency: "1h"})
	assert.Error(t, err)
}

func TestAddJobRejectsNeitherScheduleField(t *testing.T) {
	s := New(Config{})
	err := s.AddJob(Job{Name: "job-a"})
	assert.Error(t, err)
}

func TestAddJobRejectsBothScheduleFields(t *testing.T) {
	s := New(Config{})
	err := s.AddJob(Job{Name: "job-a", CrontabSchedule: "* * * * *", RunFrequency: "1h"})
	assert.Error(t, err)
}

func TestAddJobRejectsDuplicateName(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.AddJob(Job{Name: "job-a", RunFrequency: "1h"}))
	err := s.AddJob(Job{Name: "job-a", RunFrequency: "2h"})
	assert.Error(t, err)
	s.RemoveJob("job-a")
}

func TestAddJobRegistersCronEntry(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.AddJob(Job{Name: "job-cron", CrontabSchedule: "*/5 * * * *"}))
	_, ok := s.cronEntries["job-cron"]
	assert.True(t, ok)
	s.RemoveJob("job-cron")
}

func TestAddJobRejectsInvalidCrontab(t *testing.T) {
	s := New(Config{})
	err := s.AddJob(Job{Name: "job-bad-cron", CrontabSchedule: "not a cron expr"})
	assert.Error(t, err)
}

func TestAddJobRejectsInvalidInterval(t *testing.T) {
	s := New(Config{})
	err := s.AddJob(Job{Name: "job-bad-interval", RunFrequency: "banana"})
	assert.Error(t, err)
}

func TestAddJobStartsIntervalTicker(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.AddJob(Job{Name: "job-interval", RunFrequency: "1h"}))
	_, ok := s.intervals["job-interval"]
	assert.True(t, ok)
	s.RemoveJob("job-interval")
}

func TestRemoveJobStopsIntervalTicker(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.AddJob(Job{Name: "job-interval", RunFrequency: "1h"}))
	s.RemoveJob("job-interval")

	s.mu.Lock()
	_, stillPresent := s.intervals["job-interval"]
	s.mu.Unlock()
	assert.False(t, stillPresent)
}

type fakeLeaderGate struct{ leader bool }

func (f fakeLeaderGate) IsLeader() bool { return f.leader }

func TestFireSkipsWhenNotLeader(t *testing.T) {
	s := New(Config{Leader: fakeLeaderGate{leader: false}})
	s.mu.Lock()
	s.jobs["job-a"] = Job{Name: "job-a", Enabled: true, TaskType: types.TaskTypeTableDiff}
	s.mu.Unlock()

	// Submitter/Store are both nil: if fire() got past the leader check
	// it would panic on a nil Store.Create call, so a clean return here
	// proves the leader gate short-circuited first.
	s.fire("job-a")
}

func TestFireSkipsDisabledJob(t *testing.T) {
	s := New(Config{})
	s.mu.Lock()
	s.jobs["job-a"] = Job{Name: "job-a", Enabled: false}
	s.mu.Unlock()

	s.fire("job-a")
}

func TestIsStillRunningFalseWithoutPriorSubmission(t *testing.T) {
	s := New(Config{})
	assert.False(t, s.isStillRunning("never-submitted"))
}

func TestStartStopWithNoJobs(t *testing.T) {
	s := New(Config{})
	s.Start()
	time.Sleep(10 * time.Millisecond)
	s.Stop()
}
