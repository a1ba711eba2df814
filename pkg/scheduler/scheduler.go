package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/ace/pkg/log"
	"github.com/cuemby/ace/pkg/taskstore"
	"github.com/cuemby/ace/pkg/types"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TaskSubmitter enqueues a task for dispatch. Satisfied by
// *worker.Worker.
type TaskSubmitter interface {
	Submit(task types.Task) error
}

// LeaderGate reports whether this process currently holds control-plane
// leadership. Satisfied by *leader.Gate. Only the leader fires periodic
// jobs; every process still accepts ad-hoc submissions.
type LeaderGate interface {
	IsLeader() bool
}

// Config holds the dependencies a Scheduler needs.
type Config struct {
	Submitter TaskSubmitter
	Store     *taskstore.Store
	Leader    LeaderGate
}

// intervalJob pairs a Job with the goroutine driving its ticker.
type intervalJob struct {
	job    Job
	ticker *time.Ticker
	stopCh chan struct{}
}

// Scheduler is the Periodic Scheduler (spec.md §4.9): cron-triggered
// jobs run through robfig/cron, interval-triggered jobs
// ("Nw Nd Nh Nm Ns") each run their own time.Ticker loop in the
// teacher's original scheduler style, and every recurring job has
// max_instances=1 — a still-RUNNING previous instance suppresses the
// next firing rather than queueing behind it.
type Scheduler struct {
	cfg    Config
	logger zerolog.Logger

	mu          sync.Mutex
	jobs        map[string]Job
	cronEntries map[string]cron.EntryID
	intervals   map[string]*intervalJob
	lastTaskID  map[string]string

	cronRunner *cron.Cron
	wg         sync.WaitGroup
}

// New builds a Scheduler. Call Start to begin firing registered jobs.
func New(cfg Config) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		logger:      log.WithComponent("scheduler"),
		jobs:        make(map[string]Job),
		cronEntries: make(map[string]cron.EntryID),
		intervals:   make(map[string]*intervalJob),
		lastTaskID:  make(map[string]string),
		cronRunner:  cron.New(),
	}
}

// Start begins the cron runner. Interval jobs start their own ticker
// as soon as they're added via AddJob, independent of Start.
func (s *Scheduler) Start() {
	s.cronRunner.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop halts the cron runner and every interval job's ticker goroutine.
func (s *Scheduler) Stop() {
	ctx := s.cronRunner.Stop()
	<-ctx.Done()

	s.mu.Lock()
	for _, ij := range s.intervals {
		close(ij.stopCh)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// AddJob registers job for recurring triggering. Exactly one of
// job.CrontabSchedule or job.RunFrequency must be set.
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	if (job.CrontabSchedule == "") == (job.RunFrequency == "") {
		return fmt.Errorf("job %q must set exactly one of crontab_schedule or run_frequency", job.Name)
	}

	s.jobs[job.Name] = job

	if job.CrontabSchedule != "" {
		entryID, err := s.cronRunner.AddFunc(job.CrontabSchedule, func() { s.fire(job.Name) })
		if err != nil {
			delete(s.jobs, job.Name)
			return fmt.Errorf("job %q: parse crontab_schedule: %w", job.Name, err)
		}
		s.cronEntries[job.Name] = entryID
		return nil
	}

	interval, err := ParseInterval(job.RunFrequency)
	if err != nil {
		delete(s.jobs, job.Name)
		return fmt.Errorf("job %q: %w", job.Name, err)
	}
	ij := &intervalJob{job: job, ticker: time.NewTicker(interval), stopCh: make(chan struct{})}
	s.intervals[job.Name] = ij
	s.wg.Add(1)
	go s.runInterval(ij)
	return nil
}

// RemoveJob unregisters job by name, stopping its ticker or cron entry.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.cronEntries[name]; ok {
		s.cronRunner.Remove(entryID)
		delete(s.cronEntries, name)
	}
	if ij, ok := s.intervals[name]; ok {
		close(ij.stopCh)
		delete(s.intervals, name)
	}
	delete(s.jobs, name)
	delete(s.lastTaskID, name)
}

func (s *Scheduler) runInterval(ij *intervalJob) {
	defer s.wg.Done()
	defer ij.ticker.Stop()
	for {
		select {
		case <-ij.ticker.C:
			s.fire(ij.job.Name)
		case <-ij.stopCh:
			return
		}
	}
}

// fire submits one instance of the named job, unless it is disabled,
// this process is not the leader, or a previously submitted instance
// is still RUNNING.
func (s *Scheduler) fire(name string) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok || !job.Enabled {
		return
	}

	if s.cfg.Leader != nil && !s.cfg.Leader.IsLeader() {
		s.logger.Debug().Str("job", name).Msg("not leader, skipping periodic trigger")
		return
	}

	if s.isStillRunning(name) {
		s.logger.Info().Str("job", name).Msg("previous instance still running, suppressing this firing")
		return
	}

	task := types.Task{
		TaskID:      uuid.NewString(),
		TaskType:    job.TaskType,
		TaskStatus:  types.TaskStatusRunning,
		TaskContext: job.TaskContext,
		SubmittedAt: time.Now().UTC(),
		ClientRole:  "scheduler",
	}

	if err := s.cfg.Store.Create(context.Background(), &task); err != nil {
		s.logger.Error().Str("job", name).Err(err).Msg("failed to admit scheduled task")
		return
	}

	s.mu.Lock()
	s.lastTaskID[name] = task.TaskID
	s.mu.Unlock()

	if err := s.cfg.Submitter.Submit(task); err != nil {
		s.logger.Error().Str("job", name).Str("task_id", task.TaskID).Err(err).Msg("failed to submit scheduled task")
	}
}

func (s *Scheduler) isStillRunning(name string) bool {
	s.mu.Lock()
	taskID, ok := s.lastTaskID[name]
	s.mu.Unlock()
	if !ok {
		return false
	}

	task, err := s.cfg.Store.Get(context.Background(), taskID)
	if err != nil {
		return false
	}
	return !task.TaskStatus.Terminal()
}

// SubmitAdHoc admits and submits task immediately, bypassing
// leadership gating and max_instances suppression — ad-hoc jobs from
// the API Gateway are one-off by definition. task is populated in
// place with its assigned TaskID and SubmittedAt so the caller (the
// API Gateway) can report them back to the client.
func (s *Scheduler) SubmitAdHoc(ctx context.Context, task *types.Task) error {
	if err := s.cfg.Store.Create(ctx, task); err != nil {
		return err
	}
	return s.cfg.Submitter.Submit(*task)
}
