package autorepair

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/log"
	"github.com/cuemby/ace/pkg/types"
	"github.com/rs/zerolog"
)

// Postgres doesn't support Oracle-style MERGE the way the reference
// implementation's MERGE INTO statements do; INSERT ... ON CONFLICT DO
// NOTHING is the equivalent "insert iff not already present" idiom and
// preserves the same promotion invariant (spec.md §9).
const promoteParentsSQL = `
INSERT INTO spock.exception_status (remote_origin, remote_commit_ts, remote_xid, status)
SELECT DISTINCT remote_origin, remote_commit_ts, remote_xid, 'PENDING'
FROM spock.exception_log
ON CONFLICT (remote_origin, remote_commit_ts, remote_xid) DO NOTHING`

const promoteDetailsSQL = `
INSERT INTO spock.exception_status_detail (remote_origin, remote_commit_ts, command_counter, remote_xid, status)
SELECT DISTINCT remote_origin, remote_commit_ts, command_counter, remote_xid, 'PENDING'
FROM spock.exception_log
ON CONFLICT (remote_origin, remote_commit_ts, command_counter) DO NOTHING`

const resolveParentsSQL = `
UPDATE spock.exception_status es
SET status = 'RESOLVED', resolved_at = $1, resolution_details = $2
FROM (
	SELECT remote_xid
	FROM spock.exception_status_detail
	GROUP BY remote_xid
	HAVING COUNT(*) = COUNT(CASE WHEN status = 'RESOLVED' THEN 1 END)
) resolved
WHERE es.remote_xid = resolved.remote_xid AND es.status != 'RESOLVED'`

var autoResolvedDetail = mustJSON(map[string]string{
	"details": "all transaction operations auto-resolved by the repair driver; " +
		"see resolution_details on spock.exception_status_detail for specifics",
})

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Promoter runs the three-step promotion pipeline against every node
// of one cluster: populate exception_status and
// exception_status_detail from the raw exception_log, then flip any
// parent whose children have all resolved. None of these statements
// read any application row data — they operate purely on Spock's own
// bookkeeping catalogs.
type Promoter struct {
	pool    *dbpool.Pool
	cluster *types.Cluster
	logger  zerolog.Logger
}

// NewPromoter builds a Promoter bound to one cluster's connection pool.
func NewPromoter(pool *dbpool.Pool, cluster *types.Cluster) *Promoter {
	return &Promoter{pool: pool, cluster: cluster, logger: log.WithComponent("autorepair-promoter").With().Str("cluster_name", cluster.Name).Logger()}
}

// Run executes the promotion pipeline on every node, continuing past a
// single node's failure (matching the Repair Engine's no-cross-node
// atomicity).
func (p *Promoter) Run(ctx context.Context) error {
	var firstErr error
	for _, node := range p.cluster.Nodes {
		if err := p.runNode(ctx, node.Name); err != nil {
			p.logger.Error().Str("node", node.Name).Err(err).Msg("exception status promotion failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *Promoter) runNode(ctx context.Context, node string) error {
	conn, err := p.pool.Acquire(ctx, node)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, promoteParentsSQL); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if _, err := tx.Exec(ctx, promoteDetailsSQL); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if _, err := tx.Exec(ctx, resolveParentsSQL, time.Now().UTC(), autoResolvedDetail); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}
