package repair

import (
	"context"

	"github.com/google/uuid"

	"ringstore/internal/common"
	"ringstore/internal/merkle"
	"ringstore/internal/wire"
)

// EndpointTree pairs a responding endpoint with the tree it returned
// for a Job.
type EndpointTree struct {
	Endpoint string
	Tree     *merkle.MerkleTree
}

// Differencer compares two endpoints' trees for one table and, if they
// disagree, builds and runs a StreamingRepairTask over the differing
// ranges. onComplete fires exactly once, whether or not any streaming
// was needed.
type Differencer struct {
	Keyspace   string
	Table      string
	A          EndpointTree
	B          EndpointTree
	Streamer   Streamer
	onComplete func(error)
}

// NewDifferencer builds a Differencer over two endpoints' trees for the
// named keyspace/table.
func NewDifferencer(keyspace, table string, a, b EndpointTree, streamer Streamer, onComplete func(error)) *Differencer {
	return &Differencer{Keyspace: keyspace, Table: table, A: a, B: b, Streamer: streamer, onComplete: onComplete}
}

// Run computes the disagreeing ranges between A and B's trees. If none,
// it reports success immediately. Otherwise it builds a SyncRequest
// naming the disagreeing ranges and runs it as a StreamingRepairTask.
func (d *Differencer) Run(ctx context.Context) error {
	if d.A.Tree == nil || d.B.Tree == nil {
		err := common.ErrInternalError("differencer: missing tree for one or both endpoints")
		d.complete(err)
		return err
	}

	diffs := merkle.Difference(d.A.Tree, d.B.Tree)
	if len(diffs) == 0 {
		d.complete(nil)
		return nil
	}

	req := wire.SyncRequest{
		ID:        uuid.NewString(),
		Initiator: d.A.Endpoint,
		Src:       d.A.Endpoint,
		Dst:       d.B.Endpoint,
		Keyspace:  d.Keyspace,
		Table:     d.Table,
		Ranges:    diffs,
	}

	task := NewStreamingRepairTask(req, d.Streamer, d.complete)
	return task.Run(ctx)
}

func (d *Differencer) complete(err error) {
	if d.onComplete != nil {
		d.onComplete(err)
	}
}
