package autorepair

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/diff"
	"github.com/cuemby/ace/pkg/log"
	"github.com/cuemby/ace/pkg/repair"
	"github.com/cuemby/ace/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const pendingDetailsSQL = `
SELECT
	esd.remote_origin, esd.remote_commit_ts, esd.remote_xid, esd.command_counter,
	el.table_schema, el.table_name, el.operation, el.remote_new_tup
FROM spock.exception_status_detail esd
JOIN spock.exception_log el
	ON esd.remote_origin = el.remote_origin
	AND esd.remote_commit_ts = el.remote_commit_ts
	AND esd.command_counter = el.command_counter
WHERE esd.status = 'PENDING'
LIMIT $1`

const resolveDetailSQL = `
UPDATE spock.exception_status_detail
SET status = $1, resolution_class = $2, resolution_details = $3
WHERE remote_origin = $4 AND remote_commit_ts = $5 AND command_counter = $6`

const detailBatchSize = 200

// Driver is the Repair Driver half of the Auto-Repair Loop: it scans
// one node at a time for PENDING exception_status_detail rows,
// classifies each, and for remediable classes drives pkg/repair's
// Engine against a single-row diff synthesised from the logged
// remote_new_tup.
type Driver struct {
	pool       *dbpool.Pool
	cluster    *types.Cluster
	primaryKey map[string][]string // table "schema.name" -> primary key columns
	tmpDir     string
	logger     zerolog.Logger
}

// NewDriver builds a Driver. primaryKey maps "schema.table" to its
// primary-key column list — the Repair Driver has no independent way
// to discover this, so the caller supplies it (cmd/aced builds it by
// loading table metadata, on the cluster's first node, for every table
// named in spock.exception_log).
func NewDriver(pool *dbpool.Pool, cluster *types.Cluster, primaryKey map[string][]string, tmpDir string) *Driver {
	return &Driver{
		pool:       pool,
		cluster:    cluster,
		primaryKey: primaryKey,
		tmpDir:     tmpDir,
		logger:     log.WithComponent("autorepair-driver").With().Str("cluster_name", cluster.Name).Logger(),
	}
}

// Run scans every node's PENDING exception details and attempts
// remediation for each, continuing past individual failures.
func (d *Driver) Run(ctx context.Context) error {
	var firstErr error
	for _, node := range d.cluster.Nodes {
		if err := d.runNode(ctx, node.Name); err != nil {
			d.logger.Error().Str("node", node.Name).Err(err).Msg("repair driver scan failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (d *Driver) runNode(ctx context.Context, localNode string) error {
	conn, err := d.pool.Acquire(ctx, localNode)
	if err != nil {
		return err
	}
	rows, err := conn.Query(ctx, pendingDetailsSQL, detailBatchSize)
	if err != nil {
		conn.Release()
		return err
	}

	var entries []LogEntry
	for rows.Next() {
		var (
			e           LogEntry
			newTupJSON  []byte
		)
		if err := rows.Scan(&e.RemoteOrigin, &e.RemoteCommitTS, &e.RemoteXID, &e.CommandCounter,
			&e.TableSchema, &e.TableName, &e.Operation, &newTupJSON); err != nil {
			rows.Close()
			conn.Release()
			return err
		}
		if len(newTupJSON) > 0 {
			if err := json.Unmarshal(newTupJSON, &e.RemoteNewTup); err != nil {
				rows.Close()
				conn.Release()
				return fmt.Errorf("decode remote_new_tup: %w", err)
			}
		}
		entries = append(entries, e)
	}
	rowsErr := rows.Err()
	rows.Close()
	conn.Release()
	if rowsErr != nil {
		return rowsErr
	}

	for _, entry := range entries {
		d.remediate(ctx, localNode, entry)
	}
	return nil
}

func (d *Driver) remediate(ctx context.Context, localNode string, entry LogEntry) {
	class := Classify(entry)

	if class == ClassDeleteMissing {
		d.resolveDetail(ctx, localNode, entry, types.ExceptionResolved, class, "row already absent locally, nothing to repair")
		return
	}

	if !class.Remediable() {
		d.resolveDetail(ctx, localNode, entry, types.ExceptionUnresolvable, class, "no automated remediation for this operation/payload")
		return
	}

	pk, ok := d.primaryKey[entry.TableSchema+"."+entry.TableName]
	if !ok || len(pk) == 0 {
		d.resolveDetail(ctx, localNode, entry, types.ExceptionUnresolvable, class, fmt.Sprintf("no known primary key for %s.%s", entry.TableSchema, entry.TableName))
		return
	}

	df := &types.DiffFile{
		Schema:     entry.TableSchema,
		Table:      entry.TableName,
		PrimaryKey: pk,
		Diffs: map[string][]types.Row{
			localNode:        {},
			entry.RemoteOrigin: {types.Row(entry.RemoteNewTup)},
		},
	}

	path, err := d.writeTempDiffFile(df)
	if err != nil {
		d.resolveDetail(ctx, localNode, entry, types.ExceptionUnresolvable, class, fmt.Sprintf("failed to stage repair diff: %v", err))
		return
	}
	defer os.Remove(path)

	_, err = repair.NewEngine(d.pool, d.cluster).Run(ctx, types.TableRepairParams{
		ClusterName:   d.cluster.Name,
		DiffFile:      path,
		SourceOfTruth: entry.RemoteOrigin,
		TableName:     entry.TableName,
	})
	if err != nil {
		d.resolveDetail(ctx, localNode, entry, types.ExceptionUnresolvable, class, fmt.Sprintf("repair engine failed: %v", err))
		return
	}

	d.resolveDetail(ctx, localNode, entry, types.ExceptionResolved, class, "")
}

func (d *Driver) resolveDetail(ctx context.Context, localNode string, entry LogEntry, status types.ExceptionResolution, class ExceptionClass, detail string) {
	conn, err := d.pool.Acquire(ctx, localNode)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to acquire connection to record exception resolution")
		return
	}
	defer conn.Release()

	detailJSON, _ := json.Marshal(map[string]string{"details": detail})
	if _, err := conn.Exec(ctx, resolveDetailSQL, string(status), string(class), string(detailJSON),
		entry.RemoteOrigin, entry.RemoteCommitTS, entry.CommandCounter); err != nil {
		d.logger.Error().Err(err).
			Str("remote_origin", entry.RemoteOrigin).
			Int("command_counter", entry.CommandCounter).
			Msg("failed to record exception resolution")
	}
}

func (d *Driver) writeTempDiffFile(df *types.DiffFile) (string, error) {
	path := d.tmpDir + "/autorepair-" + uuid.NewString() + ".json"
	if err := diff.WriteDiffFile(path, df); err != nil {
		return "", err
	}
	return path, nil
}
