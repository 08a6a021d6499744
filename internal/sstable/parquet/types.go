// Package parquet is the Apache Arrow/Parquet-backed implementation of
// sstable.Table: an immutable, key-sorted file of Key/Value/Timestamp/
// Deleted rows, written and scanned in decorated-key order.
package parquet

import (
	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet/compress"

	"ringstore/internal/common"
	"ringstore/internal/token"
)

// rowSchema is the fixed Arrow schema every SST is written and read with:
// one field per sstable.Row member, in row-key order so row groups stay
// sorted without a separate index.
var rowSchema = arrow.NewSchema([]arrow.Field{
	{Name: "token", Type: arrow.BinaryTypes.Binary},
	{Name: "key", Type: arrow.BinaryTypes.Binary},
	{Name: "value", Type: arrow.BinaryTypes.Binary},
	{Name: "timestamp", Type: arrow.PrimitiveTypes.Int64},
	{Name: "deleted", Type: arrow.FixedWidthTypes.Boolean},
}, nil)

var allocator = memory.NewGoAllocator()

// Metadata is the summary recorded alongside a written SST: the fields
// Table needs without opening the file, plus enough to validate it.
type Metadata struct {
	ID                 common.FileID `json:"id"`
	Level              int           `json:"level"`
	FirstKey           token.DecoratedKey
	LastKey            token.DecoratedKey
	RecordCount        int64 `json:"record_count"`
	UncompressedLength int64 `json:"uncompressed_length"`
	CompressedLength   int64 `json:"compressed_length"`
}

// WriterConfig configures the Parquet writer's physical layout.
type WriterConfig struct {
	Compression  compress.Compression
	RowGroupSize int64
	PageSize     int64
}

// DefaultWriterConfig mirrors the teacher's DefaultFileFormat defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Compression:  compress.Codecs.Snappy,
		RowGroupSize: 128 * 1024 * 1024,
		PageSize:     1024 * 1024,
	}
}
