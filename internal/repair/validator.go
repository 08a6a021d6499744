// Package repair implements the Anti-Entropy Repair Core: building
// Merkle trees over a table's key range, diffing two peers' trees, and
// driving the resulting streams through a session/job state machine.
// It is grounded on the teacher's compaction task-scheduling shape
// (internal/manifest/task.go's Pool/worker/run) generalized from
// compacting local SSTs to repairing rows against a remote peer.
package repair

import (
	"bytes"
	"context"
	"encoding/binary"
	"math/rand"

	"ringstore/internal/common"
	"ringstore/internal/merkle"
	"ringstore/internal/sstable"
	"ringstore/internal/token"
)

// KeySampler samples boundary keys for a range so a Validator can seed
// its tree's split points from the table's actual key distribution,
// rather than always falling back to an even split. Implementations
// report whether the partitioner they sit on preserves key order —
// sampling is only meaningful when it does.
type KeySampler interface {
	PreservesKeyOrder() bool
	SampleKeys(ctx context.Context, r token.AbstractBounds) ([]token.Token, error)
}

// ManifestSampler samples from an *manifest.Manifest's tracked SSTs,
// using every overlapping table's FirstKey/LastKey as a cheap proxy for
// an index scan — exercised without standing up a separate index
// package, which SPEC_FULL.md's repair core doesn't otherwise need.
type ManifestSampler struct {
	Manifest interface {
		TablesOverlapping(r token.AbstractBounds) []sstable.Table
	}
	OrderPreserving bool
}

// PreservesKeyOrder reports the sampler's configured partitioner order.
func (s ManifestSampler) PreservesKeyOrder() bool { return s.OrderPreserving }

// SampleKeys returns the first/last key token of every SST overlapping
// r currently tracked by the manifest.
func (s ManifestSampler) SampleKeys(ctx context.Context, r token.AbstractBounds) ([]token.Token, error) {
	tables := s.Manifest.TablesOverlapping(r)
	keys := make([]token.Token, 0, len(tables)*2)
	for _, tbl := range tables {
		keys = append(keys, tbl.FirstKey().Token, tbl.LastKey().Token)
	}
	return keys, nil
}

// Validator builds one Merkle tree by streaming rows through it in
// ascending key order, folding each row's digest into whichever leaf
// covers its token and folding merkle.EmptyRowHash once into each leaf
// as it moves past it, per spec.md §4.3.
type Validator struct {
	req      validatorRequest
	tree     *merkle.MerkleTree
	leaves   *merkle.LeafIterator
	current  *merkle.Leaf
	lastKey  *token.DecoratedKey
	prepared bool
}

// validatorRequest is the slice of a TreeRequest a Validator needs.
type validatorRequest struct {
	Range    token.AbstractBounds
	MaxDepth int
}

// NewValidator builds a Validator over range with the given maximum
// tree depth. Prepare must be called before Add.
func NewValidator(r token.AbstractBounds, maxDepth int) *Validator {
	return &Validator{
		req:  validatorRequest{Range: r, MaxDepth: maxDepth},
		tree: merkle.New(r, maxDepth),
	}
}

// Prepare seeds the tree's split points. When sampler preserves key
// order and returns samples, they are consumed in random order,
// repeatedly splitting the tree until Split refuses (max depth reached)
// or samples run out. An empty sample set, or a sampler that doesn't
// preserve key order, falls back to an even Init split.
func (v *Validator) Prepare(ctx context.Context, sampler KeySampler) error {
	if v.prepared {
		return common.ErrInternalError("validator already prepared")
	}
	v.prepared = true

	if sampler != nil && sampler.PreservesKeyOrder() {
		keys, err := sampler.SampleKeys(ctx, v.req.Range)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			v.tree.Init()
		} else {
			shuffled := make([]token.Token, len(keys))
			copy(shuffled, keys)
			rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			for _, k := range shuffled {
				if !v.tree.Split(k) {
					break
				}
			}
		}
	} else {
		v.tree.Init()
	}

	v.leaves = v.tree.Leaves()
	return nil
}

// Add folds row into the tree. Rows must arrive in strictly ascending
// DecoratedKey order and must fall within the validator's range;
// either violation is a caller bug and returns
// common.ErrRepairOutOfOrder rather than silently reordering.
func (v *Validator) Add(row sstable.Row) error {
	if !v.req.Range.Contains(row.Key.Token) {
		return common.NewError(common.ErrRepairOutOfOrder, "row token outside validator range")
	}
	if v.lastKey != nil && !v.lastKey.Less(row.Key) {
		return common.NewError(common.ErrRepairOutOfOrder, "validator rows must arrive in strictly ascending key order")
	}
	lastKey := row.Key
	v.lastKey = &lastKey

	if v.current == nil {
		v.advance()
	}
	for v.current != nil && !v.current.Contains(row.Key.Token) {
		v.current.Fold(merkle.EmptyRowHash)
		v.advance()
	}
	if v.current == nil {
		return common.ErrInternalError("validator ran out of leaves before range end")
	}
	v.current.Fold(merkle.HashRow(canonicalRowBytes(row)))
	return nil
}

// Complete folds merkle.EmptyRowHash into the current leaf and every
// remaining leaf and returns the finished tree. Safe to call with zero rows
// added, producing a tree of all-empty leaves.
func (v *Validator) Complete() (*merkle.MerkleTree, error) {
	if v.current == nil {
		v.advance()
	}
	for v.current != nil {
		v.current.Fold(merkle.EmptyRowHash)
		v.advance()
	}
	v.tree.Recompute()
	return v.tree, nil
}

func (v *Validator) advance() {
	leaf, ok := v.leaves.Next()
	if !ok {
		v.current = nil
		return
	}
	v.current = leaf
}

// canonicalRowBytes produces a deterministic encoding of row's token,
// key, value, timestamp and tombstone bit for hashing. Field order is
// fixed so two replicas holding an identical row always hash it the
// same way.
func canonicalRowBytes(row sstable.Row) []byte {
	var buf bytes.Buffer
	buf.Write(row.Key.Token)
	buf.WriteByte(0)
	buf.Write(row.Key.Key)
	buf.WriteByte(0)
	buf.Write(row.Value)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(row.Timestamp))
	buf.Write(ts[:])
	if row.Deleted {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}
