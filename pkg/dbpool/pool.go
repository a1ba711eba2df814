package dbpool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/ace/pkg/log"
	"github.com/cuemby/ace/pkg/types"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// sqlstate codes this package classifies into spec.md's failure modes.
const (
	sqlstateInvalidPassword    = "28P01"
	sqlstateInvalidAuthSpec    = "28000"
	sqlstateQueryCanceled      = "57014"
	sqlstateAdminShutdown      = "57P01"
	sqlstateCannotConnectNow   = "57P03"
	perNodePoolMaxConns        = 4
	perNodePoolMinConns        = 0
	perNodePoolHealthCheck     = 30 * time.Second
	perNodePoolMaxConnIdleTime = 2 * time.Minute
)

// Pool opens on-demand SQL sessions against every node of one cluster,
// scoped to a single task. It is not safe to share across tasks: the
// point of a fresh Pool per task is bounded, task-local concurrency,
// not connection reuse.
type Pool struct {
	cluster          *types.Cluster
	statementTimeout time.Duration
	logger           zerolog.Logger

	mu       sync.Mutex
	perNode  map[string]*pgxpool.Pool
	closed   bool
}

// New creates a Pool for cluster. No connections are opened until
// Acquire is called for a given node.
func New(cluster *types.Cluster, statementTimeout time.Duration) *Pool {
	return &Pool{
		cluster:          cluster,
		statementTimeout: statementTimeout,
		logger:           log.WithComponent("dbpool").With().Str("cluster_name", cluster.Name).Logger(),
		perNode:          make(map[string]*pgxpool.Pool),
	}
}

// Conn is one acquired session. Callers must call Release exactly once
// on every exit path, including error.
type Conn struct {
	*pgxpool.Conn
	nodeName string
}

// Release returns the underlying connection to its node pool.
func (c *Conn) Release() {
	c.Conn.Release()
}

// Acquire opens (if needed) the node's pool and checks out one
// connection with statement_timeout set for this session. The caller
// owns Release.
func (p *Pool) Acquire(ctx context.Context, nodeName string) (*Conn, error) {
	node := p.cluster.NodeByName(nodeName)
	if node == nil {
		return nil, types.NewError(types.KindValidation, fmt.Sprintf("node %q not in cluster %q", nodeName, p.cluster.Name), nil)
	}

	pool, err := p.poolForNode(ctx, node)
	if err != nil {
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, classifyConnErr(err)
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", p.statementTimeout.Milliseconds())); err != nil {
		conn.Release()
		return nil, classifyConnErr(err)
	}

	return &Conn{Conn: conn, nodeName: nodeName}, nil
}

func (p *Pool) poolForNode(ctx context.Context, node *types.Node) (*pgxpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, types.NewError(types.KindFatal, "dbpool is closed", nil)
	}

	if existing, ok := p.perNode[node.Name]; ok {
		return existing, nil
	}

	cfg, err := pgxpool.ParseConfig(node.DSN())
	if err != nil {
		return nil, types.NewError(types.KindFatal, fmt.Sprintf("parse DSN for node %s", node.Name), err)
	}
	cfg.MaxConns = perNodePoolMaxConns
	cfg.MinConns = perNodePoolMinConns
	cfg.HealthCheckPeriod = perNodePoolHealthCheck
	cfg.MaxConnIdleTime = perNodePoolMaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, classifyConnErr(err)
	}

	p.logger.Debug().Str("node", node.Name).Msg("opened node connection pool")
	p.perNode[node.Name] = pool
	return pool, nil
}

// Close releases every node's pool. Safe to call once after the owning
// task has finished.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for name, pool := range p.perNode {
		pool.Close()
		p.logger.Debug().Str("node", name).Msg("closed node connection pool")
	}
}

// classifyConnErr maps a pgx/pgconn error into one of spec.md's three
// Connection Pool failure modes, or wraps it as a transient error.
func classifyConnErr(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateInvalidPassword, sqlstateInvalidAuthSpec:
			return types.NewError(types.KindAuth, "authentication failed", types.ErrAuthFailed)
		case sqlstateQueryCanceled:
			return types.NewError(types.KindTransient, "statement timeout", types.ErrStatementTimeout)
		case sqlstateAdminShutdown, sqlstateCannotConnectNow:
			return types.NewError(types.KindTransient, "connection refused", types.ErrConnectRefused)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.KindTransient, "statement timeout", types.ErrStatementTimeout)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no route to host"),
		strings.Contains(msg, "network is unreachable"):
		return types.NewError(types.KindTransient, "connection refused", types.ErrConnectRefused)
	case strings.Contains(msg, "password authentication failed"),
		strings.Contains(msg, "authentication failed"):
		return types.NewError(types.KindAuth, "authentication failed", types.ErrAuthFailed)
	case strings.Contains(msg, "timeout"):
		return types.NewError(types.KindTransient, "statement timeout", types.ErrStatementTimeout)
	}

	return types.NewError(types.KindTransient, "connection error", err)
}
