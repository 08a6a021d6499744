// Package hint packages a per-peer dispatch throttle, the shape spec.md
// §5 describes: "Per-peer hint dispatch is gated by a per-peer rate
// limiter computed as configured_throttle_kB / max(1, cluster_size-1);
// zero means unlimited." Hint storage and replay are explicitly out of
// scope (spec.md's Non-goals); this package only throttles send calls.
package hint

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// ThrottleConfig mirrors the teacher's plain struct-config idiom.
type ThrottleConfig struct {
	// ThrottleKB is the configured aggregate throughput budget in
	// kilobytes/sec across all peers; 0 means unlimited.
	ThrottleKB int
	// ClusterSize is the number of nodes the budget is divided across
	// (minus this node itself).
	ClusterSize int
}

// perPeerRate implements configured_throttle_kB / max(1, cluster_size-1).
func (c ThrottleConfig) perPeerRate() rate.Limit {
	if c.ThrottleKB <= 0 {
		return rate.Inf
	}
	denom := c.ClusterSize - 1
	if denom < 1 {
		denom = 1
	}
	kbPerSec := float64(c.ThrottleKB) / float64(denom)
	return rate.Limit(kbPerSec * 1024)
}

// Dispatcher gates hint sends per peer, grounded on the teacher's
// messaging.Publisher Publish/Close shape: Send plays the role of
// Publish, restricted to one destination peer and byte-budgeted via
// golang.org/x/time/rate rather than left unthrottled.
type Dispatcher struct {
	mu      sync.Mutex
	config  ThrottleConfig
	writer  Writer
	limiter map[string]*rate.Limiter
}

// Writer is the underlying hint transport a Dispatcher throttles in
// front of.
type Writer interface {
	Write(ctx context.Context, peer string, payload []byte) error
}

// NewDispatcher builds a Dispatcher over writer using config's
// per-peer rate budget.
func NewDispatcher(writer Writer, config ThrottleConfig) *Dispatcher {
	return &Dispatcher{
		config:  config,
		writer:  writer,
		limiter: make(map[string]*rate.Limiter),
	}
}

// Send waits for peer's rate limiter to admit len(payload) bytes, then
// writes it. Blocks on ctx, so a cancelled context aborts the wait
// instead of sending late.
func (d *Dispatcher) Send(ctx context.Context, peer string, payload []byte) error {
	limiter := d.limiterFor(peer)
	if err := limiter.WaitN(ctx, len(payload)); err != nil {
		return err
	}
	return d.writer.Write(ctx, peer, payload)
}

func (d *Dispatcher) limiterFor(peer string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.limiter[peer]
	if !ok {
		r := d.config.perPeerRate()
		burst := 1
		if r != rate.Inf {
			burst = int(r)
			if burst < 1 {
				burst = 1
			}
		}
		l = rate.NewLimiter(r, burst)
		d.limiter[peer] = l
	}
	return l
}
