package repair

import (
	"sync"

	"ringstore/internal/common"
)

// DispatchPolicy selects how a RequestCoordinator fans out its pending
// requests. spec.md §9's redesign note asks for a tagged enum here
// rather than a Sequential/Parallel subclass pair, since the two only
// differ in Start/Completed's control flow, not in any state they carry.
type DispatchPolicy int

const (
	// Sequential sends one request at a time, advancing to the next
	// only once the previous one completes.
	Sequential DispatchPolicy = iota
	// Parallel sends every pending request immediately on Start.
	Parallel
)

// RequestCoordinator collects a batch of opaque requests, dispatches
// them per policy, and tracks completions. Requests are any type the
// caller's send function understands — a wire.TreeRequest destined for
// one endpoint, or a *Differencer job — so one coordinator
// implementation serves both the tree-request fan-out and the
// differencer fan-out spec.md describes.
type RequestCoordinator struct {
	policy  DispatchPolicy
	send    func(req any)
	mu      sync.Mutex
	pending []any
	next    int
	started bool
	outstanding int
}

// NewRequestCoordinator builds a coordinator that calls send once per
// dispatched request.
func NewRequestCoordinator(policy DispatchPolicy, send func(req any)) *RequestCoordinator {
	return &RequestCoordinator{policy: policy, send: send}
}

// Add queues req for dispatch. Must be called before Start.
func (c *RequestCoordinator) Add(req any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return common.ErrInternalError("request coordinator: Add called after Start")
	}
	c.pending = append(c.pending, req)
	return nil
}

// Start begins dispatch: Parallel sends every pending request at once;
// Sequential sends only the first, holding the rest until Completed
// reports each prior request done.
func (c *RequestCoordinator) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.outstanding = len(c.pending)

	switch c.policy {
	case Parallel:
		reqs := append([]any(nil), c.pending...)
		c.mu.Unlock()
		for _, r := range reqs {
			c.send(r)
		}
	default: // Sequential
		if len(c.pending) == 0 {
			c.mu.Unlock()
			return
		}
		first := c.pending[0]
		c.next = 1
		c.mu.Unlock()
		c.send(first)
	}
}

// Completed records one request's completion and returns the number
// still outstanding. Under Sequential policy, reaching zero for the
// just-completed slot triggers sending the next queued request, if any.
func (c *RequestCoordinator) Completed() int {
	c.mu.Lock()
	c.outstanding--
	remaining := c.outstanding
	var next any
	hasNext := false
	if c.policy == Sequential && c.next < len(c.pending) {
		next = c.pending[c.next]
		c.next++
		hasNext = true
	}
	c.mu.Unlock()

	if hasNext {
		c.send(next)
	}
	return remaining
}

// Outstanding reports the current number of un-completed requests.
func (c *RequestCoordinator) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outstanding
}
