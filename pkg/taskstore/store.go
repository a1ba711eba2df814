package taskstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/ace/pkg/log"
	"github.com/cuemby/ace/pkg/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS ace_tasks (
	task_id      text PRIMARY KEY,
	task_type    text NOT NULL,
	task_status  text NOT NULL,
	task_context jsonb NOT NULL,
	task_result  jsonb,
	client_role  text NOT NULL,
	submitted_at timestamptz NOT NULL,
	started_at   timestamptz,
	finished_at  timestamptz
)`

// Store is the Task Store (spec.md §4.7): a durable, Postgres-backed
// record of every admitted task, keyed by opaque task_id. Unlike
// dbpool.Pool, this pool is long-lived and shared across every task —
// it is the control plane's own bookkeeping database, not a customer
// cluster.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New connects to the control-plane database at dsn and ensures the
// ace_tasks table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, types.NewError(types.KindFatal, "connect to control-plane database", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, types.NewError(types.KindFatal, "ensure ace_tasks table", err)
	}
	return &Store{pool: pool, logger: log.WithComponent("taskstore")}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Create admits task: if TaskID is empty a UUIDv4 is generated
// independent of the store's own availability (spec.md §4.7), before
// the insert below runs. A failed insert is returned as a KindFatal
// error and is not retried.
func (s *Store) Create(ctx context.Context, task *types.Task) error {
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}
	if task.TaskStatus == "" {
		task.TaskStatus = types.TaskStatusRunning
	}
	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = time.Now().UTC()
	}

	contextJSON, err := marshalTaskContext(task.TaskContext)
	if err != nil {
		return types.NewError(types.KindValidation, "marshal task context", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO ace_tasks (task_id, task_type, task_status, task_context, client_role, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		task.TaskID, string(task.TaskType), string(task.TaskStatus), contextJSON, task.ClientRole, task.SubmittedAt)
	if err != nil {
		return types.NewError(types.KindFatal, "insert task", err)
	}

	s.logger.Debug().Str("task_id", task.TaskID).Str("task_type", string(task.TaskType)).Msg("task admitted")
	return nil
}

// MarkStarted records that a worker has picked task_id up.
func (s *Store) MarkStarted(ctx context.Context, taskID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ace_tasks SET started_at = $2
		WHERE task_id = $1 AND task_status = $3 AND started_at IS NULL`,
		taskID, time.Now().UTC(), string(types.TaskStatusRunning))
	if err != nil {
		return types.NewError(types.KindFatal, "mark task started", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewError(types.KindNotFound, fmt.Sprintf("task %q not found or already started", taskID), types.ErrTaskNotFound)
	}
	return nil
}

// Get returns the task record for taskID, or types.ErrTaskNotFound.
func (s *Store) Get(ctx context.Context, taskID string) (*types.Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT task_id, task_type, task_status, task_context, task_result,
		       client_role, submitted_at, started_at, finished_at
		FROM ace_tasks WHERE task_id = $1`, taskID)

	var (
		task           types.Task
		taskType       string
		taskStatus     string
		contextJSON    []byte
		resultJSON     []byte
	)
	err := row.Scan(&task.TaskID, &taskType, &taskStatus, &contextJSON, &resultJSON,
		&task.ClientRole, &task.SubmittedAt, &task.StartedAt, &task.FinishedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, types.NewError(types.KindNotFound, fmt.Sprintf("task %q not found", taskID), types.ErrTaskNotFound)
		}
		return nil, types.NewError(types.KindFatal, "query task", err)
	}

	task.TaskType = types.TaskType(taskType)
	task.TaskStatus = types.TaskStatus(taskStatus)
	if task.TaskContext, err = unmarshalTaskContext(task.TaskType, contextJSON); err != nil {
		return nil, types.NewError(types.KindFatal, "unmarshal task context", err)
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &task.TaskResult); err != nil {
			return nil, types.NewError(types.KindFatal, "unmarshal task result", err)
		}
	}
	return &task, nil
}

// UpdateStatus performs the one allowed terminal transition for
// taskID. The UPDATE's WHERE clause only matches a row still RUNNING,
// so concurrent callers racing to finish the same task never both
// succeed: the database's row-level lock on that one row serialises
// them, and the loser's zero-rows-affected becomes ErrAlreadyTerminal
// (spec.md §4.7 — last-writer-wins is forbidden).
func (s *Store) UpdateStatus(ctx context.Context, taskID string, status types.TaskStatus, result types.TaskResult) error {
	if !status.Terminal() {
		return types.NewError(types.KindValidation, fmt.Sprintf("status %q is not terminal", status), nil)
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return types.NewError(types.KindFatal, "marshal task result", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE ace_tasks SET task_status = $2, task_result = $3, finished_at = $4
		WHERE task_id = $1 AND task_status = $5`,
		taskID, string(status), resultJSON, time.Now().UTC(), string(types.TaskStatusRunning))
	if err != nil {
		return types.NewError(types.KindFatal, "update task status", err)
	}
	if tag.RowsAffected() == 0 {
		existing, getErr := s.Get(ctx, taskID)
		if getErr != nil {
			return types.NewError(types.KindNotFound, fmt.Sprintf("task %q not found", taskID), types.ErrTaskNotFound)
		}
		if existing.TaskStatus.Terminal() {
			return types.NewError(types.KindValidation, fmt.Sprintf("task %q already terminal", taskID), types.ErrAlreadyTerminal)
		}
		return types.NewError(types.KindFatal, fmt.Sprintf("task %q status update affected no rows", taskID), nil)
	}
	return nil
}

// marshalTaskContext serializes a TaskContext implementation to JSON.
// The concrete type is recovered on read via unmarshalTaskContext,
// keyed by the sibling task_type column.
func marshalTaskContext(ctx types.TaskContext) ([]byte, error) {
	return json.Marshal(ctx)
}

// unmarshalTaskContext recovers the concrete TaskContext implementation
// for taskType from its JSON snapshot.
func unmarshalTaskContext(taskType types.TaskType, data []byte) (types.TaskContext, error) {
	switch taskType {
	case types.TaskTypeTableDiff:
		var p types.TableDiffParams
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case types.TaskTypeTableRepair:
		var p types.TableRepairParams
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case types.TaskTypeTableRerun:
		var p types.TableRerunParams
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case types.TaskTypeRepsetDiff:
		var p types.RepsetDiffParams
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case types.TaskTypeSchemaDiff:
		var p types.SchemaDiffParams
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case types.TaskTypeSpockDiff:
		var p types.SpockDiffParams
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}
}
