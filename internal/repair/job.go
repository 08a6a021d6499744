package repair

import (
	"context"
	"sync"

	"ringstore/internal/merkle"
)

// JobState is one table's progress within a Session.
type JobState int

const (
	JobAwaitingTrees JobState = iota
	JobDifferencing
	JobStreaming
	JobDone
	JobFailed
)

// Job tracks one table's repair within a Session: collecting a tree per
// endpoint, then a Differencer per endpoint pair once every tree has
// arrived.
type Job struct {
	Table     string
	Keyspace  string
	Endpoints []string

	mu          sync.Mutex
	state       JobState
	coordinator *RequestCoordinator
	trees       map[string]*merkle.MerkleTree
	err         error
	ctx         context.Context

	newStreamer     func(endpoint string) Streamer
	onJobDone       func(*Job)
	onStreamStarted func(endpoint string)
}

// NewJob builds a Job awaiting one tree per endpoint. policy governs
// how the job's tree requests themselves are dispatched (set by the
// owning Session based on Sequential/Parallel); sendTreeRequest issues
// one request to a single endpoint. onStreamStarted, if non-nil, is
// called once per endpoint pair as its differencer is launched, whether
// or not that pair's trees differ.
func NewJob(keyspace, table string, endpoints []string, policy DispatchPolicy, sendTreeRequest func(endpoint string), newStreamer func(endpoint string) Streamer, onJobDone func(*Job), onStreamStarted func(endpoint string)) *Job {
	j := &Job{
		Table:           table,
		Keyspace:        keyspace,
		Endpoints:       endpoints,
		state:           JobAwaitingTrees,
		trees:           make(map[string]*merkle.MerkleTree, len(endpoints)),
		newStreamer:     newStreamer,
		onJobDone:       onJobDone,
		onStreamStarted: onStreamStarted,
	}
	j.coordinator = NewRequestCoordinator(policy, func(req any) {
		sendTreeRequest(req.(string))
	})
	for _, e := range endpoints {
		_ = j.coordinator.Add(e)
	}
	return j
}

// Start issues the job's tree requests per its dispatch policy. ctx
// bounds every differencer's streaming task this job later spawns.
func (j *Job) Start(ctx context.Context) {
	j.mu.Lock()
	j.ctx = ctx
	j.mu.Unlock()
	j.coordinator.Start()
}

// AddTree records endpoint's tree response. Exactly one caller observes
// the transition to "every endpoint responded" (coordinator.Completed
// decrements a single shared counter under its own lock), which is
// when differencing begins.
func (j *Job) AddTree(endpoint string, tree *merkle.MerkleTree) {
	j.mu.Lock()
	j.trees[endpoint] = tree
	j.mu.Unlock()

	if remaining := j.coordinator.Completed(); remaining == 0 {
		j.beginDifferencing()
	}
}

// Fail marks the job failed with err, independent of outstanding tree
// responses.
func (j *Job) Fail(err error) {
	j.mu.Lock()
	if j.state == JobDone || j.state == JobFailed {
		j.mu.Unlock()
		return
	}
	j.state = JobFailed
	j.err = err
	j.mu.Unlock()
	if j.onJobDone != nil {
		j.onJobDone(j)
	}
}

// State returns the job's current state and, if failed, its error.
func (j *Job) State() (JobState, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, j.err
}

func (j *Job) beginDifferencing() {
	j.mu.Lock()
	if j.state != JobAwaitingTrees {
		j.mu.Unlock()
		return
	}
	j.state = JobDifferencing
	endpoints := append([]string(nil), j.Endpoints...)
	trees := make(map[string]*merkle.MerkleTree, len(j.trees))
	for k, v := range j.trees {
		trees[k] = v
	}
	ctx := j.ctx
	j.mu.Unlock()

	pairs := endpointPairs(endpoints)
	if len(pairs) == 0 {
		j.markDone()
		return
	}

	var remaining int32 = int32(len(pairs))
	var mu sync.Mutex
	for _, pair := range pairs {
		a := EndpointTree{Endpoint: pair[0], Tree: trees[pair[0]]}
		b := EndpointTree{Endpoint: pair[1], Tree: trees[pair[1]]}

		diff := NewDifferencer(j.Keyspace, j.Table, a, b, j.newStreamer(pair[1]), func(err error) {
			mu.Lock()
			remaining--
			done := remaining == 0
			mu.Unlock()
			if err != nil {
				j.Fail(err)
				return
			}
			if done {
				j.markDone()
			}
		})

		j.mu.Lock()
		j.state = JobStreaming
		j.mu.Unlock()
		if j.onStreamStarted != nil {
			j.onStreamStarted(pair[1])
		}
		go func(d *Differencer) {
			_ = d.Run(ctx)
		}(diff)
	}
}

func (j *Job) markDone() {
	j.mu.Lock()
	if j.state == JobDone || j.state == JobFailed {
		j.mu.Unlock()
		return
	}
	j.state = JobDone
	j.mu.Unlock()
	if j.onJobDone != nil {
		j.onJobDone(j)
	}
}

// endpointPairs returns every unordered pair of distinct endpoints.
func endpointPairs(endpoints []string) [][2]string {
	var pairs [][2]string
	for i := 0; i < len(endpoints); i++ {
		for k := i + 1; k < len(endpoints); k++ {
			pairs = append(pairs, [2]string{endpoints[i], endpoints[k]})
		}
	}
	return pairs
}
