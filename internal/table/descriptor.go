// Package table describes the small slice of column-family metadata the
// repair core needs: enough to compute gc_before and to name a table on
// the wire. The teacher's own internal/schema is a full column-type
// registry for the read/write path (out of scope here); this is the
// trimmed descriptor SPEC_FULL.md's wire messages and Validator actually
// reference.
package table

import "ringstore/internal/common"

// Descriptor names a table and carries the tombstone grace period used
// to compute a TreeRequest's gc_before.
type Descriptor struct {
	Keyspace       common.Keyspace
	Table          common.TableName
	GCGraceSeconds int64
}

// GCBefore returns the Unix timestamp before which tombstones may be
// purged: now - gc_grace_seconds.
func (d Descriptor) GCBefore(nowUnix int64) int64 {
	return nowUnix - d.GCGraceSeconds
}
