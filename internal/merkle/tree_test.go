package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ringstore/internal/token"
)

func fullRange() token.AbstractBounds {
	return token.NewRange(token.Token{0x00}, token.Token{0xff})
}

func TestInitEvenSplitProducesPowerOfTwoLeaves(t *testing.T) {
	tr := New(fullRange(), 3)
	tr.Init()

	var leaves int
	it := tr.Leaves()
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		leaves++
	}
	assert.Equal(t, 8, leaves)
}

func TestSplitStopsAtMaxDepth(t *testing.T) {
	// [0x00, 0x80] splits exactly in half at 0x40, so one Split call
	// lands tok on a boundary with room to spare under maxDepth=1.
	r := token.NewRange(token.Token{0x00}, token.Token{0x80})
	tr := New(r, 1)
	tok := token.Token{0x40}

	require.True(t, tr.Split(tok))
	assert.False(t, tr.Split(tok), "re-splitting past the depth cap must report false")
}

func TestLeavesInOrderAreAscending(t *testing.T) {
	tr := New(fullRange(), 2)
	tr.Init()

	it := tr.Leaves()
	var last token.Token
	first := true
	for {
		leaf, ok := it.Next()
		if !ok {
			break
		}
		start := leaf.Bounds.Start
		if !first {
			assert.False(t, start.Less(last), "leaves must come out in ascending order")
		}
		first = false
		last = start
	}
}

func TestEqualTreesHaveNoDifference(t *testing.T) {
	a := New(fullRange(), 2)
	a.Init()
	b := New(fullRange(), 2)
	b.Init()

	foldSameRow(t, a, b)

	diffs := Difference(a, b)
	assert.Empty(t, diffs)
}

func TestDivergentLeafIsReported(t *testing.T) {
	a := New(fullRange(), 2)
	a.Init()
	b := New(fullRange(), 2)
	b.Init()

	foldSameRow(t, a, b)

	// Fold one extra row into a single leaf of b only.
	leafB, ok := b.Leaves().Next()
	require.True(t, ok)
	leafB.Fold(HashRow([]byte("extra-row")))

	diffs := Difference(a, b)
	require.Len(t, diffs, 1)
}

func TestDifferenceFallsBackOnShapeMismatch(t *testing.T) {
	a := New(fullRange(), 2)
	a.Init()
	b := New(fullRange(), 3)
	b.Init()

	leafB, ok := b.Leaves().Next()
	require.True(t, ok)
	leafB.Fold(HashRow([]byte("only-on-b")))

	// Shapes diverge below depth 2: the mismatch must not panic, and the
	// disagreement must surface as at least one conservative range.
	diffs := Difference(a, b)
	require.NotEmpty(t, diffs)
}

func foldSameRow(t *testing.T, trees ...*MerkleTree) {
	t.Helper()
	h := HashRow([]byte("row-1"))
	for _, tr := range trees {
		it := tr.Leaves()
		leaf, ok := it.Next()
		require.True(t, ok)
		leaf.Fold(h)
	}
}
