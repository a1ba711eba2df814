package leader

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// epochFSM is a minimal raft.FSM: its only state is a leadership epoch
// counter, bumped every time a new leader is elected. Stripped down
// from the teacher's WarrenFSM, which fans a Command.Op switch out
// over Node/Service/Task/Secret/Volume state — this FSM has no
// application state to replicate, so its Apply switch has exactly one
// case.
type epochFSM struct {
	mu    sync.RWMutex
	epoch uint64
}

func newEpochFSM() *epochFSM {
	return &epochFSM{}
}

// epochCommand is the sole Raft log entry this FSM understands.
type epochCommand struct {
	Op string `json:"op"`
}

// Apply applies a committed Raft log entry.
func (f *epochFSM) Apply(log *raft.Log) interface{} {
	var cmd epochCommand
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("unmarshal leadership command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case "bump-epoch":
		f.epoch++
		return f.epoch
	default:
		return fmt.Errorf("unknown leadership command: %s", cmd.Op)
	}
}

func (f *epochFSM) currentEpoch() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.epoch
}

// Snapshot returns a point-in-time copy of the epoch counter.
func (f *epochFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &epochSnapshot{Epoch: f.epoch}, nil
}

// Restore replaces the epoch counter from a snapshot.
func (f *epochFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap epochSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("decode leadership snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.epoch = snap.Epoch
	return nil
}

type epochSnapshot struct {
	Epoch uint64 `json:"epoch"`
}

// Persist writes the snapshot to sink.
func (s *epochSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release is a no-op: there is nothing held open between Persist calls.
func (s *epochSnapshot) Release() {}
