package repair

import (
	"context"

	"ringstore/internal/wire"
)

// Streamer transports the rows covering a SyncRequest's ranges from Src
// to Dst. It is an external collaborator — the actual row-streaming RPC
// sits with the transport layer, out of this core's scope — so
// StreamingRepairTask only drives it and reports completion.
type Streamer interface {
	Stream(ctx context.Context, req wire.SyncRequest) error
}

// StreamingRepairTask runs one Streamer call for a SyncRequest built
// from a Differencer's output ranges, and reports completion (success
// or failure) through onComplete exactly once.
type StreamingRepairTask struct {
	Request    wire.SyncRequest
	Streamer   Streamer
	onComplete func(error)
}

// NewStreamingRepairTask builds a task that will invoke onComplete once
// Run finishes, with the error Run encountered (nil on success).
func NewStreamingRepairTask(req wire.SyncRequest, streamer Streamer, onComplete func(error)) *StreamingRepairTask {
	return &StreamingRepairTask{Request: req, Streamer: streamer, onComplete: onComplete}
}

// Run executes the stream and reports its outcome via onComplete.
func (t *StreamingRepairTask) Run(ctx context.Context) error {
	err := t.Streamer.Stream(ctx, t.Request)
	if t.onComplete != nil {
		t.onComplete(err)
	}
	return err
}
