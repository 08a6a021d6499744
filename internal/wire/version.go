// Package wire implements the core's versioned message serializers,
// grounded on internal/wal/segment.go's length-prefix-plus-checksum
// Append framing: every message here is written as a CRC32-checked
// frame around a version-gated field layout, the same shape the
// teacher uses for its WAL entries, generalized to the request/response
// messages spec.md §6/§4.7 describe.
package wire

// Version is the wire protocol version a peer negotiated at connection
// time. Field layouts below branch on it per spec.md §6's evolution
// rules.
type Version int32

const (
	V10 Version = 10
	V11 Version = 11
	V12 Version = 12
	V20 Version = 20
)
