package leader

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/ace/pkg/log"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"
)

// Config holds the Raft wiring for a Gate; it carries no peer list. A
// single-process deployment sets Bootstrap true: it forms a one-node
// cluster and is immediately its own leader.
type Config struct {
	NodeID    string
	BindAddr  string
	DataDir   string
	Bootstrap bool
}

// Gate reports whether this process currently holds control-plane
// leadership, gating the Periodic Scheduler's recurring job triggers.
// It satisfies scheduler.LeaderGate.
type Gate struct {
	cfg    Config
	raft   *raft.Raft
	fsm    *epochFSM
	logger zerolog.Logger
}

// New starts Raft for nodeID and, if cfg.Bootstrap is set, bootstraps a
// fresh single-node cluster. Joining an existing cluster is left to a
// future AddVoter call against the current leader, mirroring the
// teacher's Manager.Bootstrap/Manager.Join split.
func New(cfg Config) (*Gate, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create leader data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	raftCfg.HeartbeatTimeout = 500 * time.Millisecond
	raftCfg.ElectionTimeout = 500 * time.Millisecond
	raftCfg.CommitTimeout = 50 * time.Millisecond
	raftCfg.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve leader bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create leader raft transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create leader snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "leader-log.db"))
	if err != nil {
		return nil, fmt.Errorf("create leader log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "leader-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("create leader stable store: %w", err)
	}

	fsm := newEpochFSM()
	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("create leader raft instance: %w", err)
	}

	g := &Gate{cfg: cfg, raft: r, fsm: fsm, logger: log.WithComponent("leader")}

	if cfg.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{{ID: raftCfg.LocalID, Address: transport.LocalAddr()}},
		}
		if err := r.BootstrapCluster(configuration).Error(); err != nil {
			return nil, fmt.Errorf("bootstrap leader cluster: %w", err)
		}
	}

	return g, nil
}

// IsLeader reports whether this process currently holds leadership.
func (g *Gate) IsLeader() bool {
	return g.raft.State() == raft.Leader
}

// LeaderNotify forwards hashicorp/raft's own leadership-change
// notifications. Each value is true when this process just became
// leader, false when it just lost leadership.
func (g *Gate) LeaderNotify() <-chan bool {
	return g.raft.LeaderCh()
}

// BumpEpoch submits a leadership-epoch increment through Raft. Callers
// don't generally need this directly — it exists so the FSM's Apply
// path is exercised the same way the teacher's Command dispatch is.
func (g *Gate) BumpEpoch() (uint64, error) {
	data, err := json.Marshal(epochCommand{Op: "bump-epoch"})
	if err != nil {
		return 0, fmt.Errorf("marshal bump-epoch command: %w", err)
	}

	future := g.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return 0, fmt.Errorf("apply bump-epoch command: %w", err)
	}
	if epoch, ok := future.Response().(uint64); ok {
		return epoch, nil
	}
	return g.fsm.currentEpoch(), nil
}

// Shutdown stops the Raft instance.
func (g *Gate) Shutdown() error {
	if err := g.raft.Shutdown().Error(); err != nil {
		return fmt.Errorf("shutdown leader raft: %w", err)
	}
	return nil
}
