package hint

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu      sync.Mutex
	written [][]byte
}

func (w *recordingWriter) Write(ctx context.Context, peer string, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, payload)
	return nil
}

func TestZeroThrottleIsUnlimited(t *testing.T) {
	writer := &recordingWriter{}
	d := NewDispatcher(writer, ThrottleConfig{ThrottleKB: 0, ClusterSize: 3})

	require.NoError(t, d.Send(context.Background(), "peer-1", make([]byte, 1<<20)))
	assert.Len(t, writer.written, 1)
}

func TestDispatcherReusesLimiterPerPeer(t *testing.T) {
	writer := &recordingWriter{}
	d := NewDispatcher(writer, ThrottleConfig{ThrottleKB: 100, ClusterSize: 3})

	l1 := d.limiterFor("peer-1")
	l2 := d.limiterFor("peer-1")
	assert.Same(t, l1, l2)

	l3 := d.limiterFor("peer-2")
	assert.NotSame(t, l1, l3)
}

func TestPerPeerRateSplitsAcrossCluster(t *testing.T) {
	c := ThrottleConfig{ThrottleKB: 100, ClusterSize: 5}
	// 100kB/s split across 4 peers (cluster size - 1) = 25kB/s = 25600 B/s.
	assert.InDelta(t, 25600, float64(c.perPeerRate()), 1)
}
