package autorepair

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/log"
	"github.com/cuemby/ace/pkg/types"
	"github.com/rs/zerolog"
)

// LeaderGate reports whether this process currently holds control-plane
// leadership. Satisfied by *leader.Gate. Only the leader drives the
// Auto-Repair Loop; every other process stays idle so the same
// exception trio is never promoted or remediated twice.
type LeaderGate interface {
	IsLeader() bool
}

// Config holds the dependencies and timing a Loop needs.
type Config struct {
	Pool                 *dbpool.Pool
	Cluster              *types.Cluster
	PrimaryKey           map[string][]string
	TmpDir               string
	PollInterval         time.Duration
	StatusUpdateInterval time.Duration
	Leader               LeaderGate
}

// Loop runs the Status Promoter and Repair Driver on their own tickers
// (spec.md §4.10's status_update_interval and poll_interval), the same
// independent-ticker-per-job shape pkg/scheduler gives a RunFrequency
// job. It is kept separate from pkg/scheduler because both interval
// jobs here are cluster-pinned by configuration rather than
// task-parameterised per firing — there is no per-invocation
// TaskContext to admit through the Task Store.
type Loop struct {
	cfg      Config
	promoter *Promoter
	driver   *Driver
	logger   zerolog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewLoop builds a Loop bound to cfg.Cluster's connection pool. Call
// Start to begin ticking.
func NewLoop(cfg Config) *Loop {
	return &Loop{
		cfg:      cfg,
		promoter: NewPromoter(cfg.Pool, cfg.Cluster),
		driver:   NewDriver(cfg.Pool, cfg.Cluster, cfg.PrimaryKey, cfg.TmpDir),
		logger:   log.WithComponent("autorepair-loop").With().Str("cluster_name", cfg.Cluster.Name).Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Start begins both tickers in their own goroutines. Call Stop to halt
// them and wait for any in-flight pass to finish.
func (l *Loop) Start() {
	l.wg.Add(2)
	go l.run("status-promoter", l.cfg.StatusUpdateInterval, l.promoter.Run)
	go l.run("repair-driver", l.cfg.PollInterval, l.driver.Run)
}

// Stop halts both tickers and waits for any pass in progress to
// return.
func (l *Loop) Stop() {
	close(l.stopCh)
	l.wg.Wait()
}

func (l *Loop) run(name string, interval time.Duration, pass func(context.Context) error) {
	defer l.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if l.cfg.Leader != nil && !l.cfg.Leader.IsLeader() {
				continue
			}
			if err := pass(context.Background()); err != nil {
				l.logger.Error().Str("pass", name).Err(err).Msg("auto-repair pass failed")
			}
		case <-l.stopCh:
			return
		}
	}
}
