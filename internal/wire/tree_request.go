package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"ringstore/internal/token"
)

// TreeRequest asks a replica to build a Merkle tree over range. Wire
// layout (spec.md §6): utf8 session_id | compact_addr endpoint |
// [i32 gc_before]_{v>=V20} | utf8 keyspace | utf8 table | bounds range.
type TreeRequest struct {
	SessionID string
	Endpoint  string
	GCBefore  int32
	Keyspace  string
	Table     string
	Range     token.AbstractBounds
}

// SerializeTreeRequest writes r's wire form at version v.
func SerializeTreeRequest(r TreeRequest, v Version) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeString(&buf, r.SessionID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, r.Endpoint); err != nil {
		return nil, err
	}
	if v >= V20 {
		if err := binary.Write(&buf, binary.BigEndian, r.GCBefore); err != nil {
			return nil, err
		}
	}
	if err := writeString(&buf, r.Keyspace); err != nil {
		return nil, err
	}
	if err := writeString(&buf, r.Table); err != nil {
		return nil, err
	}
	if err := writeBounds(&buf, r.Range); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeserializeTreeRequest reads a TreeRequest encoded at version v,
// rejecting (rather than zero-filling) any payload that leaves
// trailing bytes unread — the signature of decoding at the wrong
// version.
func DeserializeTreeRequest(payload []byte, v Version) (TreeRequest, error) {
	src := newExactReader(payload)

	sessionID, err := readString(src)
	if err != nil {
		return TreeRequest{}, err
	}
	endpoint, err := readString(src)
	if err != nil {
		return TreeRequest{}, err
	}
	var gcBefore int32
	if v >= V20 {
		if err := binary.Read(src, binary.BigEndian, &gcBefore); err != nil {
			return TreeRequest{}, err
		}
	}
	keyspace, err := readString(src)
	if err != nil {
		return TreeRequest{}, err
	}
	table, err := readString(src)
	if err != nil {
		return TreeRequest{}, err
	}
	rng, err := readBounds(src)
	if err != nil {
		return TreeRequest{}, err
	}
	if err := src.requireExhausted(); err != nil {
		return TreeRequest{}, fmt.Errorf("wire: tree request: %w", err)
	}

	return TreeRequest{
		SessionID: sessionID,
		Endpoint:  endpoint,
		GCBefore:  gcBefore,
		Keyspace:  keyspace,
		Table:     table,
		Range:     rng,
	}, nil
}

// SerializedSizeTreeRequest returns the exact byte length
// SerializeTreeRequest(r, v) produces.
func SerializedSizeTreeRequest(r TreeRequest, v Version) int {
	size := 4 + len(r.SessionID) + 4 + len(r.Endpoint)
	if v >= V20 {
		size += 4
	}
	size += 4 + len(r.Keyspace) + 4 + len(r.Table)
	size += boundsSize(r.Range)
	return size
}
