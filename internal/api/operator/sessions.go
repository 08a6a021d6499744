package operator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"ringstore/internal/common"
	"ringstore/internal/config"
	"ringstore/internal/failuredetector"
	"ringstore/internal/messaging"
	"ringstore/internal/repair"
	"ringstore/internal/token"
)

// SessionRegistry tracks live repair Sessions by ID so the HTTP surface
// can report status and accept termination requests for sessions
// already in flight. It also gates how many sessions may run
// concurrently, per spec.md §5's sessions-pool concurrency model.
type SessionRegistry struct {
	requester         repair.TreeRequester
	snapshotter       repair.SnapshotRequester
	detector          failuredetector.Detector
	newStreamer       func(endpoint string) repair.Streamer
	events            *messaging.EventPublisher
	convictThreshold  float64
	convictMultiplier float64
	slots             chan struct{}

	mu       sync.Mutex
	sessions map[string]*repair.Session
}

// SetEventPublisher attaches an event publisher every subsequently
// created Session reports its lifecycle to. Nil-safe when never called.
func (r *SessionRegistry) SetEventPublisher(events *messaging.EventPublisher) {
	r.events = events
}

// NewSessionRegistry builds a registry whose Sessions share the given
// transport/membership collaborators — the same out-of-scope network
// and gossip layer every repair.Session depends on — and whose
// concurrency and convict-phi bar come from repairConfig
// (RepairConfig.MaxConcurrentSessions, ConvictThreshold,
// ConvictMultiplier).
func NewSessionRegistry(requester repair.TreeRequester, snapshotter repair.SnapshotRequester, detector failuredetector.Detector, newStreamer func(endpoint string) repair.Streamer, repairConfig config.RepairConfig) *SessionRegistry {
	maxConcurrent := repairConfig.MaxConcurrentSessions
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &SessionRegistry{
		requester:         requester,
		snapshotter:       snapshotter,
		detector:          detector,
		newStreamer:       newStreamer,
		convictThreshold:  repairConfig.ConvictThreshold,
		convictMultiplier: repairConfig.ConvictMultiplier,
		slots:             make(chan struct{}, maxConcurrent),
		sessions:          make(map[string]*repair.Session),
	}
}

// CreateSessionParams is the input to Create.
type CreateSessionParams struct {
	ID             string
	Keyspace       string
	Tables         []string
	Range          token.AbstractBounds
	Endpoints      []string
	Sequential     bool
	GCGraceSeconds int64
	MaxTreeDepth   int
}

// Create builds and starts a new repair Session and registers it. If
// p.ID is empty, one is minted so callers (e.g. the admin CLI) can
// start a session without precomputing an ID themselves. Sessions are
// bounded by a counting semaphore sized RepairConfig.MaxConcurrentSessions;
// Create fails fast rather than queuing when the pool is full.
// Delivery of tree responses from the transport layer into the
// running session is out of this registry's scope.
func (r *SessionRegistry) Create(ctx context.Context, p CreateSessionParams) (*repair.Session, error) {
	select {
	case r.slots <- struct{}{}:
	default:
		return nil, common.ErrRepairSessionLimitError(cap(r.slots))
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	policy := repair.Parallel
	if p.Sequential {
		policy = repair.Sequential
	}

	session := repair.NewSession(id, p.Keyspace, p.Tables, p.Range, p.Endpoints, policy, p.GCGraceSeconds, p.MaxTreeDepth, r.convictThreshold, r.convictMultiplier, r.requester, r.snapshotter, r.detector, r.newStreamer)
	session.SetEventPublisher(r.events)

	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()

	go func() {
		_ = session.Wait()
		<-r.slots
	}()

	if err := session.Start(ctx); err != nil {
		return session, err
	}
	return session, nil
}

// Get returns a registered session by ID.
func (r *SessionRegistry) Get(id string) (*repair.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Terminate forcibly fails a registered session.
func (r *SessionRegistry) Terminate(id string) error {
	s, ok := r.Get(id)
	if !ok {
		return common.ErrNotFoundError("repair session not found: " + id)
	}
	s.Terminate()
	return nil
}
