// Package token implements the ring's key-ordering primitives: Token,
// Range, Bounds and DecoratedKey.
package token

import "bytes"

// Token is a partitioner-defined totally ordered key image. It is opaque
// to callers beyond ordering and hashing, so it is modeled as a byte
// string compared lexicographically, the way the teacher compares SST
// key ranges with common.CompareBytes.
type Token []byte

// Compare returns -1, 0, or 1 as t is less than, equal to, or greater
// than other.
func (t Token) Compare(other Token) int {
	return bytes.Compare(t, other)
}

// Less reports whether t sorts before other.
func (t Token) Less(other Token) bool {
	return t.Compare(other) < 0
}

// Equal reports whether t and other are the same token.
func (t Token) Equal(other Token) bool {
	return t.Compare(other) == 0
}

// String returns the token's raw bytes as a string, for logging.
func (t Token) String() string {
	return string(t)
}

// DecoratedKey pairs a Token with the raw key it decorates. Ordering is
// token-first, raw-key second, matching spec.md's DecoratedKey contract.
type DecoratedKey struct {
	Token Token
	Key   []byte
}

// Compare orders DecoratedKeys by Token first, then raw Key.
func (d DecoratedKey) Compare(other DecoratedKey) int {
	if c := d.Token.Compare(other.Token); c != 0 {
		return c
	}
	return bytes.Compare(d.Key, other.Key)
}

// Less reports whether d sorts before other.
func (d DecoratedKey) Less(other DecoratedKey) bool {
	return d.Compare(other) < 0
}
