package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/log"
	"github.com/cuemby/ace/pkg/scheduler"
	"github.com/cuemby/ace/pkg/security"
	"github.com/cuemby/ace/pkg/taskstore"
	"github.com/cuemby/ace/pkg/types"
	"github.com/rs/zerolog"
)

// Scheduler is the subset of *scheduler.Scheduler the gateway needs:
// admit an ad-hoc task bypassing the leader/max-instances gates that
// only apply to recurring triggers (spec.md §4.9 expansion).
type Scheduler interface {
	SubmitAdHoc(ctx context.Context, task *types.Task) error
}

var _ Scheduler = (*scheduler.Scheduler)(nil)

// ClusterResolver resolves a cluster name to its connection topology.
// Satisfied by *clusterdesc.Descriptor. update-spock-exception is the
// one gateway endpoint that talks to a cluster node directly rather
// than going through a task.
type ClusterResolver interface {
	Resolve(name string) (*types.Cluster, error)
}

// Config holds the dependencies and TLS material the API Gateway
// needs.
type Config struct {
	ListenAddr       string
	CertFile         string
	KeyFile          string
	CAFile           string
	StatementTimeout time.Duration
	Scheduler        Scheduler
	Store            *taskstore.Store
	Resolver         ClusterResolver
}

// Server is the API Gateway (spec.md §4.8): a plain HTTP/1.1+HTTP/2
// service behind mandatory mTLS, admitting tasks into the Periodic
// Scheduler's ad-hoc path and reporting their status.
type Server struct {
	cfg    Config
	logger zerolog.Logger
	http   *http.Server
}

// NewServer loads cfg's TLS material and builds a Server. Call Start
// to begin serving.
func NewServer(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":5000"
	}

	tlsConfig, err := security.ServerTLSConfig(cfg.CertFile, cfg.KeyFile, cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("build API Gateway TLS config: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		logger: log.WithComponent("api"),
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		TLSConfig:    tlsConfig,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s, nil
}

// routes wires the endpoint table from spec.md §4.8.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ace/table-diff", s.withClientRole(s.handleTableDiff))
	mux.HandleFunc("/ace/table-repair", s.withClientRole(s.handleTableRepair))
	mux.HandleFunc("/ace/table-rerun", s.withClientRole(s.handleTableRerun))
	mux.HandleFunc("/ace/repset-diff", s.withClientRole(s.handleRepsetDiff))
	mux.HandleFunc("/ace/spock-diff", s.withClientRole(s.handleSpockDiff))
	mux.HandleFunc("/ace/schema-diff", s.withClientRole(s.handleSchemaDiff))
	mux.HandleFunc("/ace/task-status", s.withClientRole(s.handleTaskStatus))
	mux.HandleFunc("/ace/update-spock-exception", s.withClientRole(s.handleUpdateSpockException))
	return mux
}

// Start blocks serving HTTPS until Shutdown is called, or ln's
// listener returns an error.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	tlsLn := tls.NewListener(ln, s.http.TLSConfig)

	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("API Gateway listening")
	if err := s.http.Serve(tlsLn); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server, waiting for in-flight
// requests to finish (admission only; the worker pool drains
// independently).
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// clusterPool opens a short-lived, task-scoped connection pool for
// cluster, the same lifecycle pkg/worker gives every dispatched task.
func (s *Server) clusterPool(clusterName string) (*dbpool.Pool, *types.Cluster, error) {
	cluster, err := s.cfg.Resolver.Resolve(clusterName)
	if err != nil {
		return nil, nil, err
	}
	return dbpool.New(cluster, s.cfg.StatementTimeout), cluster, nil
}
