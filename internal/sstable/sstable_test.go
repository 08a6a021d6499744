package sstable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"ringstore/internal/common"
	"ringstore/internal/token"
)

type stubTable struct {
	id         common.FileID
	level      int
	first, last token.DecoratedKey
}

func (s *stubTable) ID() common.FileID           { return s.id }
func (s *stubTable) Level() int                  { return s.level }
func (s *stubTable) FirstKey() token.DecoratedKey { return s.first }
func (s *stubTable) LastKey() token.DecoratedKey  { return s.last }
func (s *stubTable) UncompressedLength() int64    { return 0 }
func (s *stubTable) Open(ctx context.Context, r *token.AbstractBounds) (Scanner, error) {
	return nil, nil
}

func newStubTable(id string, lo, hi byte) *stubTable {
	return &stubTable{
		id:    common.FileID(id),
		level: UnplacedLevel,
		first: token.DecoratedKey{Token: token.Token{lo}, Key: []byte("k")},
		last:  token.DecoratedKey{Token: token.Token{hi}, Key: []byte("k")},
	}
}

func TestOverlapsDisjointTables(t *testing.T) {
	a := newStubTable("a", 0x00, 0x10)
	b := newStubTable("b", 0x20, 0x30)
	assert.False(t, Overlaps(a, b))
	assert.False(t, Overlaps(b, a))
}

func TestOverlapsTouchingAtBoundary(t *testing.T) {
	a := newStubTable("a", 0x00, 0x10)
	b := newStubTable("b", 0x10, 0x20)
	assert.True(t, Overlaps(a, b))
	assert.True(t, Overlaps(b, a))
}

func TestOverlapsContainedRange(t *testing.T) {
	a := newStubTable("a", 0x00, 0x30)
	b := newStubTable("b", 0x10, 0x20)
	assert.True(t, Overlaps(a, b))
}
