package autorepair

import (
	"testing"
	"time"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/types"
	"github.com/stretchr/testify/assert"
)

type fakeLeaderGate struct{ leader bool }

func (f fakeLeaderGate) IsLeader() bool { return f.leader }

func TestLoopStartStopWithNoLeadership(t *testing.T) {
	cluster := &types.Cluster{Name: "c1"}
	l := NewLoop(Config{
		Pool:                 dbpool.New(cluster, time.Second),
		Cluster:              cluster,
		PrimaryKey:           map[string][]string{},
		PollInterval:         5 * time.Millisecond,
		StatusUpdateInterval: 5 * time.Millisecond,
		Leader:               fakeLeaderGate{leader: false},
	})

	l.Start()
	time.Sleep(20 * time.Millisecond)
	l.Stop()
}

func TestLoopRunStopsCleanlyOnSignal(t *testing.T) {
	cluster := &types.Cluster{Name: "c1"}
	l := NewLoop(Config{
		Pool:                 dbpool.New(cluster, time.Second),
		Cluster:              cluster,
		PrimaryKey:           map[string][]string{},
		PollInterval:         time.Hour,
		StatusUpdateInterval: time.Hour,
	})

	done := make(chan struct{})
	go func() {
		l.Start()
		l.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.True(t, true)
}
