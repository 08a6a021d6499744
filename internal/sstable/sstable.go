// Package sstable defines the Table/Scanner contract the Leveled
// Compaction Core treats as an out-of-scope collaborator: an immutable,
// key-sorted file that reports its level, key range and byte length and
// can be opened for a range-restricted scan.
package sstable

import (
	"context"

	"ringstore/internal/common"
	"ringstore/internal/token"
)

// UnplacedLevel marks an SST that has not yet been assigned a level.
const UnplacedLevel = -1

// Table is an immutable, key-sorted SST. Two Tables overlap iff their
// [FirstKey,LastKey] intervals intersect.
type Table interface {
	ID() common.FileID
	Level() int
	FirstKey() token.DecoratedKey
	LastKey() token.DecoratedKey
	UncompressedLength() int64

	// Open returns a Scanner over the table, restricted to r if r is
	// non-nil. Callers must Close the returned Scanner.
	Open(ctx context.Context, r *token.AbstractBounds) (Scanner, error)
}

// Row is a single key/value entry as read from a Table.
type Row struct {
	Key       token.DecoratedKey
	Value     []byte
	Timestamp int64
	Deleted   bool
}

// Scanner yields Rows from a Table in ascending key order.
type Scanner interface {
	// Next advances to the next row, returning io.EOF when exhausted.
	Next(ctx context.Context) (Row, error)
	// Position reports bytes consumed so far, for LeveledScanner's
	// current_position accounting.
	Position() int64
	Close() error
}

// Overlaps reports whether two tables' key ranges intersect.
func Overlaps(a, b Table) bool {
	return !(a.LastKey().Less(b.FirstKey()) || b.LastKey().Less(a.FirstKey()))
}
