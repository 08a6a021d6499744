package common

import (
	"fmt"
	"time"
)

// Keyspace names a logical keyspace (a group of tables sharing replication).
type Keyspace string

// TableName names a single table (column family) within a keyspace.
type TableName string

// FileID represents a unique SST identifier.
type FileID string

// Timestamp represents a point in time.
type Timestamp time.Time

// Now returns the current timestamp.
func Now() Timestamp {
	return Timestamp(time.Now())
}

// Unix returns the Unix timestamp.
func (t Timestamp) Unix() int64 {
	return time.Time(t).Unix()
}

// String returns a string representation of the timestamp.
func (t Timestamp) String() string {
	return time.Time(t).Format(time.RFC3339)
}

// TableID uniquely names a table across keyspaces, used as a map key in the
// manifest and the repair session machinery.
type TableID struct {
	Keyspace Keyspace  `json:"keyspace"`
	Table    TableName `json:"table"`
}

// String returns a string representation of TableID.
func (t TableID) String() string {
	return fmt.Sprintf("%s.%s", t.Keyspace, t.Table)
}

// Constants for system limits.
const (
	MaxKeyspaceNameLength = 128
	MaxTableNameLength    = 256
	DefaultTimeout        = 30 * time.Second
)
