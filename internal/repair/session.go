package repair

import (
	"context"
	"fmt"
	"sync"

	"ringstore/internal/common"
	"ringstore/internal/failuredetector"
	"ringstore/internal/messaging"
	"ringstore/internal/token"
	"ringstore/internal/wire"
)

// SessionState is a repair Session's coarse lifecycle stage, per
// spec.md §4.5: New -> AwaitingTrees -> Differencing -> Streaming ->
// Done/Failed.
type SessionState int

const (
	SessionNew SessionState = iota
	SessionAwaitingTrees
	SessionDifferencing
	SessionStreaming
	SessionDone
	SessionFailed
)

// String reports the session state's lowercase wire name, used both in
// published lifecycle events and the operator's JSON session view.
func (s SessionState) String() string {
	switch s {
	case SessionNew:
		return "new"
	case SessionAwaitingTrees:
		return "awaiting_trees"
	case SessionDifferencing:
		return "differencing"
	case SessionStreaming:
		return "streaming"
	case SessionDone:
		return "done"
	case SessionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TreeRequester sends a TreeRequest to endpoint. Responses arrive later
// and asynchronously, out of band, through Session.HandleTreeResponse —
// the request/response pair is not a blocking RPC, matching the
// real verb-handler dispatch this core is a stand-in for.
type TreeRequester interface {
	SendTreeRequest(ctx context.Context, endpoint string, req wire.TreeRequest) error
}

// SnapshotRequester sends a SnapshotCommand to endpoint ahead of tree
// requests, used by the sequential pre-phase.
type SnapshotRequester interface {
	SendSnapshotCommand(ctx context.Context, endpoint string, cmd wire.SnapshotCommand) error
}

// Session coordinates repairing one or more tables across a set of
// endpoints. It owns one Job per table and fails outright — independent
// of job progress — the moment any member endpoint is reported dead,
// removed, or restarted by the failure detector.
type Session struct {
	ID             string
	Keyspace       string
	Tables         []string
	Range          token.AbstractBounds
	Endpoints      []string // neighbors, already resolved, minus self
	Policy         DispatchPolicy
	Local          bool
	GCGraceSeconds int64
	MaxTreeDepth   int

	convictPhi  float64 // session fails on ReasonConvicted only once phi crosses this, not the detector's own (lower) liveness threshold
	requester   TreeRequester
	snapshotter SnapshotRequester
	detector    failuredetector.Detector
	newStreamer func(endpoint string) Streamer
	events      *messaging.EventPublisher

	mu          sync.Mutex
	state       SessionState
	jobs        map[string]*Job
	coordinator *RequestCoordinator
	err         error
	doneCh      chan struct{}
	closeOnce   sync.Once
	stopWatch   chan struct{}
}

// NewSession builds a Session over the given endpoints and tables.
// convictThreshold/convictMultiplier set the phi bar a ReasonConvicted
// event must cross to fail the session outright (spec.md §5: "convict
// (endpoint, φ) with φ >= 2 × convict_threshold ⇒ mark session
// failed") — distinct from, and stricter than, the detector's own
// liveness threshold used by IsAlive/Start. requester/snapshotter/
// detector/newStreamer are external collaborators the repair core
// treats as out of scope: transport, membership, and row streaming
// respectively.
func NewSession(id, keyspace string, tables []string, r token.AbstractBounds, endpoints []string, policy DispatchPolicy, gcGraceSeconds int64, maxTreeDepth int, convictThreshold, convictMultiplier float64, requester TreeRequester, snapshotter SnapshotRequester, detector failuredetector.Detector, newStreamer func(endpoint string) Streamer) *Session {
	return &Session{
		ID:             id,
		Keyspace:       keyspace,
		Tables:         tables,
		Range:          r,
		Endpoints:      endpoints,
		Policy:         policy,
		GCGraceSeconds: gcGraceSeconds,
		MaxTreeDepth:   maxTreeDepth,
		convictPhi:     convictThreshold * convictMultiplier,
		requester:      requester,
		snapshotter:    snapshotter,
		detector:       detector,
		newStreamer:    newStreamer,
		state:          SessionNew,
		jobs:           make(map[string]*Job, len(tables)),
		doneCh:         make(chan struct{}),
		stopWatch:      make(chan struct{}),
	}
}

// SetEventPublisher attaches an event publisher the session reports its
// lifecycle transitions and stream starts to. Nil-safe when never called:
// a session with no publisher simply runs without emitting events.
func (s *Session) SetEventPublisher(events *messaging.EventPublisher) {
	s.events = events
}

func (s *Session) publishState(ctx context.Context, state SessionState) {
	if s.events == nil {
		return
	}
	_ = s.events.PublishEvent(ctx, messaging.EventRepairSessionState, map[string]interface{}{
		"session_id": s.ID,
		"keyspace":   s.Keyspace,
		"state":      state.String(),
	})
}

func (s *Session) publishStreamStarted(ctx context.Context, table, endpoint string) {
	if s.events == nil {
		return
	}
	_ = s.events.PublishEvent(ctx, messaging.EventRepairStreamStarted, map[string]interface{}{
		"session_id": s.ID,
		"keyspace":   s.Keyspace,
		"table":      table,
		"endpoint":   endpoint,
	})
}

// Start computes liveness of every endpoint, runs the sequential
// snapshot pre-phase if configured, then begins one Job per table. An
// empty endpoint set (no neighbors to repair against) completes the
// session immediately rather than treating it as an error.
func (s *Session) Start(ctx context.Context) error {
	if len(s.Endpoints) == 0 {
		s.markDone()
		return nil
	}

	for _, e := range s.Endpoints {
		if !s.detector.IsAlive(e) {
			err := common.ErrRepairPeerDownError(e)
			s.fail(err)
			return err
		}
	}

	go s.watchConvictions()

	if s.Policy == Sequential {
		if err := s.runSnapshotPrePhase(ctx); err != nil {
			s.fail(err)
			return err
		}
	}

	s.mu.Lock()
	s.state = SessionAwaitingTrees
	s.coordinator = NewRequestCoordinator(s.Policy, func(req any) {
		job := req.(*Job)
		job.Start(ctx)
	})
	for _, table := range s.Tables {
		tbl := table
		job := NewJob(s.Keyspace, tbl, s.Endpoints, s.Policy, func(endpoint string) {
			s.sendTreeRequest(ctx, endpoint, tbl)
		}, s.newStreamer, s.jobCompleted, func(endpoint string) {
			s.publishStreamStarted(ctx, tbl, endpoint)
		})
		s.jobs[tbl] = job
		_ = s.coordinator.Add(job)
	}
	coordinator := s.coordinator
	s.mu.Unlock()

	s.publishState(ctx, SessionAwaitingTrees)
	coordinator.Start()
	return nil
}

// Wait blocks until the session reaches Done or Failed.
func (s *Session) Wait() error {
	<-s.doneCh
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State returns the session's current state and, if failed, its error.
func (s *Session) State() (SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.err
}

// HandleTreeResponse routes a TreeResponse to the job for its table.
func (s *Session) HandleTreeResponse(resp wire.TreeResponse) error {
	s.mu.Lock()
	job, ok := s.jobs[resp.Request.Table]
	s.mu.Unlock()
	if !ok {
		return common.ErrInternalError(fmt.Sprintf("repair session %s: tree response for unknown table %q", s.ID, resp.Request.Table))
	}
	job.AddTree(resp.Request.Endpoint, resp.Tree)
	return nil
}

// Terminate forcibly fails the session, e.g. on operator request.
func (s *Session) Terminate() {
	s.fail(common.NewError(common.ErrRepairTerminated, fmt.Sprintf("repair session %s terminated", s.ID)))
}

func (s *Session) runSnapshotPrePhase(ctx context.Context) error {
	for _, table := range s.Tables {
		for _, endpoint := range s.Endpoints {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			cmd := wire.SnapshotCommand{SessionID: s.ID, Keyspace: s.Keyspace, Table: table, Ephemeral: true}
			if err := s.snapshotter.SendSnapshotCommand(ctx, endpoint, cmd); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) sendTreeRequest(ctx context.Context, endpoint, table string) {
	req := wire.TreeRequest{
		SessionID: s.ID,
		Endpoint:  endpoint,
		GCBefore:  int32(common.Now().Unix() - s.GCGraceSeconds),
		Keyspace:  s.Keyspace,
		Table:     table,
		Range:     s.Range,
	}
	if err := s.requester.SendTreeRequest(ctx, endpoint, req); err != nil {
		s.fail(err)
	}
}

func (s *Session) jobCompleted(job *Job) {
	if _, err := job.State(); err != nil {
		s.fail(err)
		return
	}

	s.mu.Lock()
	if s.state == SessionDone || s.state == SessionFailed {
		s.mu.Unlock()
		return
	}
	s.state = SessionStreaming
	coordinator := s.coordinator
	s.mu.Unlock()
	s.publishState(context.Background(), SessionStreaming)

	if remaining := coordinator.Completed(); remaining == 0 {
		s.markDone()
	}
}

func (s *Session) watchConvictions() {
	sub := s.detector.Subscribe()
	members := make(map[string]bool, len(s.Endpoints))
	for _, e := range s.Endpoints {
		members[e] = true
	}
	for {
		select {
		case <-s.stopWatch:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if !members[ev.Endpoint] {
				continue
			}
			switch ev.Reason {
			case failuredetector.ReasonRemoved, failuredetector.ReasonRestarted:
				s.fail(common.ErrRepairPeerDownError(ev.Endpoint))
			case failuredetector.ReasonConvicted:
				if ev.Phi >= s.convictPhi {
					s.fail(common.ErrRepairPeerDownError(ev.Endpoint))
				}
			}
		}
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state == SessionDone || s.state == SessionFailed {
		s.mu.Unlock()
		return
	}
	s.state = SessionFailed
	s.err = err
	s.mu.Unlock()
	s.publishState(context.Background(), SessionFailed)
	s.close()
}

func (s *Session) markDone() {
	s.mu.Lock()
	if s.state == SessionDone || s.state == SessionFailed {
		s.mu.Unlock()
		return
	}
	s.state = SessionDone
	s.mu.Unlock()
	s.publishState(context.Background(), SessionDone)
	s.close()
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.stopWatch)
		close(s.doneCh)
	})
}
