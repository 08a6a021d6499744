package wire

import (
	"bytes"
	"fmt"
)

// SnapshotCommand asks an endpoint to take a point-in-time snapshot
// before tree requests are issued for a table (the sequential
// coordinator's pre-phase). Ephemeral is carried through opaque per
// spec.md §9's open question: the source constructs this with a
// boolean whose meaning isn't exposed in the code given, so it is
// never branched on here, only round-tripped.
type SnapshotCommand struct {
	SessionID string
	Keyspace  string
	Table     string
	Ephemeral bool
}

// SerializeSnapshotCommand writes c's wire form at version v.
func SerializeSnapshotCommand(c SnapshotCommand, v Version) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeString(&buf, c.SessionID); err != nil {
		return nil, err
	}
	if err := writeString(&buf, c.Keyspace); err != nil {
		return nil, err
	}
	if err := writeString(&buf, c.Table); err != nil {
		return nil, err
	}
	if err := writeBool(&buf, c.Ephemeral); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeserializeSnapshotCommand reads a SnapshotCommand, rejecting
// trailing bytes.
func DeserializeSnapshotCommand(payload []byte, v Version) (SnapshotCommand, error) {
	src := newExactReader(payload)

	sessionID, err := readString(src)
	if err != nil {
		return SnapshotCommand{}, err
	}
	keyspace, err := readString(src)
	if err != nil {
		return SnapshotCommand{}, err
	}
	table, err := readString(src)
	if err != nil {
		return SnapshotCommand{}, err
	}
	ephemeral, err := readBool(src)
	if err != nil {
		return SnapshotCommand{}, err
	}
	if err := src.requireExhausted(); err != nil {
		return SnapshotCommand{}, fmt.Errorf("wire: snapshot command: %w", err)
	}

	return SnapshotCommand{SessionID: sessionID, Keyspace: keyspace, Table: table, Ephemeral: ephemeral}, nil
}

// SerializedSizeSnapshotCommand returns the exact byte length
// SerializeSnapshotCommand(c, v) produces.
func SerializedSizeSnapshotCommand(c SnapshotCommand, v Version) int {
	return 4 + len(c.SessionID) + 4 + len(c.Keyspace) + 4 + len(c.Table) + 1
}
