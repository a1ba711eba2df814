package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/diff"
	"github.com/cuemby/ace/pkg/log"
	"github.com/cuemby/ace/pkg/repair"
	"github.com/cuemby/ace/pkg/taskstore"
	"github.com/cuemby/ace/pkg/types"
	"github.com/rs/zerolog"
)

// ClusterResolver resolves a cluster name to its connection topology.
// Satisfied by *clusterdesc.Descriptor.
type ClusterResolver interface {
	Resolve(name string) (*types.Cluster, error)
}

// Config holds the dependencies and tuning a Worker needs.
type Config struct {
	Concurrency      int
	QueueSize        int
	StatementTimeout time.Duration
	DiffConfig       diff.Config
	Store            *taskstore.Store
	Resolver         ClusterResolver
}

// Worker is the worker pool (spec.md §4.9): a fixed number of
// goroutines pulling admitted tasks off a channel and dispatching each
// to the Diff Executor or Repair Engine, one task at a time per slot.
type Worker struct {
	cfg    Config
	logger zerolog.Logger

	taskCh chan types.Task
	stopCh chan struct{}
	wg     sync.WaitGroup

	inFlightMu sync.RWMutex
	inFlight   map[string]context.CancelFunc
}

// New builds a Worker. Call Start to begin consuming submitted tasks.
func New(cfg Config) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 32
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Concurrency * 4
	}
	return &Worker{
		cfg:      cfg,
		logger:   log.WithComponent("worker"),
		taskCh:   make(chan types.Task, cfg.QueueSize),
		stopCh:   make(chan struct{}),
		inFlight: make(map[string]context.CancelFunc),
	}
}

// Start launches cfg.Concurrency dispatch goroutines.
func (w *Worker) Start() {
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop()
	}
	w.logger.Info().Int("concurrency", w.cfg.Concurrency).Msg("worker pool started")
}

// Stop signals every dispatch goroutine to exit and waits for
// in-flight tasks to finish. Tasks still waiting in the queue are not
// dispatched.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info().Msg("worker pool stopped")
}

// Submit enqueues task for dispatch. It returns an error rather than
// blocking forever if the queue is full.
func (w *Worker) Submit(task types.Task) error {
	select {
	case <-w.stopCh:
		return types.NewError(types.KindFatal, "worker pool is stopped", nil)
	default:
	}

	select {
	case w.taskCh <- task:
		return nil
	default:
		return types.NewError(types.KindTransient, "worker queue is full", nil)
	}
}

// InFlightCount reports how many tasks are currently dispatched. The
// scheduler's max_instances=1 suppression does not use it; that check
// reads the previous task's status from the Task Store.
func (w *Worker) InFlightCount() int {
	w.inFlightMu.RLock()
	defer w.inFlightMu.RUnlock()
	return len(w.inFlight)
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.taskCh:
			w.dispatch(task)
		case <-w.stopCh:
			return
		}
	}
}

// dispatch runs one task to completion and records its terminal state
// in the Task Store. A dispatch failure never takes down the worker
// goroutine: every error path here is recorded against the task, not
// propagated.
func (w *Worker) dispatch(task types.Task) {
	ctx, cancel := context.WithCancel(context.Background())
	w.inFlightMu.Lock()
	w.inFlight[task.TaskID] = cancel
	w.inFlightMu.Unlock()
	defer func() {
		cancel()
		w.inFlightMu.Lock()
		delete(w.inFlight, task.TaskID)
		w.inFlightMu.Unlock()
	}()

	if err := w.cfg.Store.MarkStarted(ctx, task.TaskID); err != nil {
		w.logger.Warn().Str("task_id", task.TaskID).Err(err).Msg("failed to mark task started")
	}

	summary, err := w.run(ctx, task)

	result := types.TaskResult{Summary: summary}
	status := types.TaskStatusCompleted
	if err != nil {
		status = types.TaskStatusFailed
		result.Error = toTaskError(err)
		w.logger.Error().Str("task_id", task.TaskID).Str("task_type", string(task.TaskType)).Err(err).Msg("task failed")
	} else {
		w.logger.Info().Str("task_id", task.TaskID).Str("task_type", string(task.TaskType)).Msg("task completed")
	}

	if uerr := w.cfg.Store.UpdateStatus(ctx, task.TaskID, status, result); uerr != nil {
		w.logger.Error().Str("task_id", task.TaskID).Err(uerr).Msg("failed to record terminal task status")
	}
}

// run resolves the task's cluster, opens a task-scoped connection
// pool, and invokes the handler for its type.
func (w *Worker) run(ctx context.Context, task types.Task) (any, error) {
	clusterName, err := clusterNameOf(task.TaskContext)
	if err != nil {
		return nil, types.NewError(types.KindValidation, "resolve cluster name", err)
	}

	cluster, err := w.cfg.Resolver.Resolve(clusterName)
	if err != nil {
		return nil, err
	}

	pool := dbpool.New(cluster, w.cfg.StatementTimeout)
	defer pool.Close()

	switch params := task.TaskContext.(type) {
	case types.TableDiffParams:
		return diff.NewExecutor(pool, cluster, w.cfg.DiffConfig).Run(ctx, params)
	case types.TableRepairParams:
		return repair.NewEngine(pool, cluster).Run(ctx, params)
	case types.TableRerunParams:
		return diff.Rerun(ctx, pool, cluster, params)
	case types.RepsetDiffParams:
		return diff.RepsetDiff(ctx, pool, cluster, w.cfg.DiffConfig, params)
	case types.SchemaDiffParams:
		return diff.SchemaDiff(ctx, pool, cluster, params)
	case types.SpockDiffParams:
		return diff.SpockDiff(ctx, pool, cluster, params)
	default:
		return nil, types.NewError(types.KindFatal, fmt.Sprintf("task type %q has no dispatch handler", task.TaskType), nil)
	}
}

func clusterNameOf(ctx types.TaskContext) (string, error) {
	switch p := ctx.(type) {
	case types.TableDiffParams:
		return p.ClusterName, nil
	case types.TableRepairParams:
		return p.ClusterName, nil
	case types.TableRerunParams:
		return p.ClusterName, nil
	case types.RepsetDiffParams:
		return p.ClusterName, nil
	case types.SchemaDiffParams:
		return p.ClusterName, nil
	case types.SpockDiffParams:
		return p.ClusterName, nil
	default:
		return "", fmt.Errorf("unknown task context type %T", ctx)
	}
}

func toTaskError(err error) *types.TaskError {
	if ace, ok := err.(*types.Error); ok {
		return &types.TaskError{Kind: string(ace.Kind), Message: ace.Error()}
	}
	return &types.TaskError{Kind: string(types.KindFatal), Message: err.Error()}
}
