package api

import (
	"net/http"

	"github.com/cuemby/ace/pkg/types"
)

// submitTask admits task (stamping ClientRole and a fresh TaskID),
// and on success writes {task_id, submitted_at} per spec.md §4.8.
func (s *Server) submitTask(w http.ResponseWriter, r *http.Request, clientRole string, taskType types.TaskType, ctx types.TaskContext) {
	task := types.Task{
		TaskType:    taskType,
		TaskContext: ctx,
		ClientRole:  clientRole,
	}
	if err := s.cfg.Scheduler.SubmitAdHoc(r.Context(), &task); err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":      task.TaskID,
		"submitted_at": task.SubmittedAt,
	})
}

func (s *Server) handleTableDiff(w http.ResponseWriter, r *http.Request, clientRole string) {
	clusterName, err := requiredParam(r, "cluster_name")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	tableName, err := requiredParam(r, "table_name")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	blockRows, err := optionalInt(r, "block_rows")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	maxCPURatio, err := optionalFloat(r, "max_cpu_ratio")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	batchSize, err := optionalInt(r, "batch_size")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	quiet, err := optionalBool(r, "quiet")
	if err != nil {
		writeTaskError(w, err)
		return
	}

	s.submitTask(w, r, clientRole, types.TaskTypeTableDiff, types.TableDiffParams{
		ClusterName: clusterName,
		TableName:   tableName,
		DBName:      optionalParam(r, "dbname"),
		BlockRows:   blockRows,
		MaxCPURatio: maxCPURatio,
		Output:      optionalParam(r, "output"),
		Nodes:       optionalList(r, "nodes"),
		BatchSize:   batchSize,
		TableFilter: optionalParam(r, "table_filter"),
		Quiet:       quiet,
	})
}

func (s *Server) handleTableRepair(w http.ResponseWriter, r *http.Request, clientRole string) {
	clusterName, err := requiredParam(r, "cluster_name")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	diffFile, err := requiredParam(r, "diff_file")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	tableName, err := requiredParam(r, "table_name")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	dryRun, err := optionalBool(r, "dry_run")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	quiet, err := optionalBool(r, "quiet")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	generateReport, err := optionalBool(r, "generate_report")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	upsertOnly, err := optionalBool(r, "upsert_only")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	fixNulls, err := optionalBool(r, "fix_nulls")
	if err != nil {
		writeTaskError(w, err)
		return
	}

	s.submitTask(w, r, clientRole, types.TaskTypeTableRepair, types.TableRepairParams{
		ClusterName:    clusterName,
		DiffFile:       diffFile,
		SourceOfTruth:  optionalParam(r, "source_of_truth"),
		TableName:      tableName,
		DBName:         optionalParam(r, "dbname"),
		DryRun:         dryRun,
		Quiet:          quiet,
		GenerateReport: generateReport,
		UpsertOnly:     upsertOnly,
		FixNulls:       fixNulls,
	})
}

func (s *Server) handleTableRerun(w http.ResponseWriter, r *http.Request, clientRole string) {
	clusterName, err := requiredParam(r, "cluster_name")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	diffFile, err := requiredParam(r, "diff_file")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	tableName, err := requiredParam(r, "table_name")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	quiet, err := optionalBool(r, "quiet")
	if err != nil {
		writeTaskError(w, err)
		return
	}

	behavior := types.RerunBehavior(optionalParam(r, "behavior"))
	switch behavior {
	case "", types.RerunMultiprocessing, types.RerunHostDB:
	default:
		writeTaskError(w, &admissionError{msg: `parameter "behavior" must be one of multiprocessing, hostdb`})
		return
	}

	s.submitTask(w, r, clientRole, types.TaskTypeTableRerun, types.TableRerunParams{
		ClusterName: clusterName,
		DiffFile:    diffFile,
		TableName:   tableName,
		DBName:      optionalParam(r, "dbname"),
		Quiet:       quiet,
		Behavior:    behavior,
	})
}

func (s *Server) handleRepsetDiff(w http.ResponseWriter, r *http.Request, clientRole string) {
	clusterName, err := requiredParam(r, "cluster_name")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	repsetName, err := requiredParam(r, "repset_name")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	blockRows, err := optionalInt(r, "block_rows")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	maxCPURatio, err := optionalFloat(r, "max_cpu_ratio")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	batchSize, err := optionalInt(r, "batch_size")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	quiet, err := optionalBool(r, "quiet")
	if err != nil {
		writeTaskError(w, err)
		return
	}

	s.submitTask(w, r, clientRole, types.TaskTypeRepsetDiff, types.RepsetDiffParams{
		ClusterName: clusterName,
		RepsetName:  repsetName,
		DBName:      optionalParam(r, "dbname"),
		BlockRows:   blockRows,
		MaxCPURatio: maxCPURatio,
		Output:      optionalParam(r, "output"),
		Nodes:       optionalList(r, "nodes"),
		BatchSize:   batchSize,
		Quiet:       quiet,
		SkipTables:  optionalList(r, "skip_tables"),
	})
}

func (s *Server) handleSpockDiff(w http.ResponseWriter, r *http.Request, clientRole string) {
	clusterName, err := requiredParam(r, "cluster_name")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	quiet, err := optionalBool(r, "quiet")
	if err != nil {
		writeTaskError(w, err)
		return
	}

	s.submitTask(w, r, clientRole, types.TaskTypeSpockDiff, types.SpockDiffParams{
		ClusterName: clusterName,
		DBName:      optionalParam(r, "dbname"),
		Nodes:       optionalList(r, "nodes"),
		Quiet:       quiet,
	})
}

func (s *Server) handleSchemaDiff(w http.ResponseWriter, r *http.Request, clientRole string) {
	clusterName, err := requiredParam(r, "cluster_name")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	schemaName, err := requiredParam(r, "schema_name")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	quiet, err := optionalBool(r, "quiet")
	if err != nil {
		writeTaskError(w, err)
		return
	}

	s.submitTask(w, r, clientRole, types.TaskTypeSchemaDiff, types.SchemaDiffParams{
		ClusterName: clusterName,
		SchemaName:  schemaName,
		DBName:      optionalParam(r, "dbname"),
		Nodes:       optionalList(r, "nodes"),
		Quiet:       quiet,
	})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request, _ string) {
	taskID, err := requiredParam(r, "task_id")
	if err != nil {
		writeTaskError(w, err)
		return
	}
	task, err := s.cfg.Store.Get(r.Context(), taskID)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
