package parquet

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"ringstore/internal/common"
	"ringstore/internal/sstable"
	"ringstore/internal/sstable/block"
)

// Writer serializes a run of already key-sorted sstable.Rows into a
// single Parquet file, the way the teacher's parquet.Writer serializes
// a memtable flush into one row group per call.
type Writer struct {
	storage block.Storage
	config  WriterConfig
}

// NewWriter builds a Writer over storage with the given physical layout.
func NewWriter(storage block.Storage, config WriterConfig) *Writer {
	return &Writer{storage: storage, config: config}
}

// Write streams rows to path and returns the Metadata a Table needs to
// report ID/Level/FirstKey/LastKey/UncompressedLength without reopening
// the file. rows must already be sorted ascending by DecoratedKey; the
// caller (LeveledScanner or a flush path) owns that invariant.
func (w *Writer) Write(ctx context.Context, path string, id common.FileID, level int, rows []sstable.Row) (*Metadata, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("parquet: no rows to write")
	}

	out, err := w.storage.Writer(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("parquet: open output stream: %w", err)
	}
	defer out.Close()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(w.config.Compression),
		parquet.WithDataPageSize(w.config.PageSize),
		parquet.WithMaxRowGroupLength(w.config.RowGroupSize),
	)

	pqWriter, err := pqarrow.NewFileWriter(rowSchema, out, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("parquet: create file writer: %w", err)
	}
	defer pqWriter.Close()

	batch, uncompressed, err := rowsToArrowBatch(rows)
	if err != nil {
		return nil, fmt.Errorf("parquet: build arrow batch: %w", err)
	}
	defer batch.Release()

	if err := pqWriter.Write(batch); err != nil {
		return nil, fmt.Errorf("parquet: write batch: %w", err)
	}
	if err := pqWriter.Close(); err != nil {
		return nil, fmt.Errorf("parquet: close file writer: %w", err)
	}

	meta := &Metadata{
		ID:                 id,
		Level:              level,
		FirstKey:           rows[0].Key,
		LastKey:            rows[len(rows)-1].Key,
		RecordCount:        int64(len(rows)),
		UncompressedLength: uncompressed,
	}
	if stat, err := w.storage.Stat(ctx, path); err == nil {
		meta.CompressedLength = stat.Size
	}
	return meta, nil
}

func rowsToArrowBatch(rows []sstable.Row) (arrow.Record, int64, error) {
	tokenB := array.NewBinaryBuilder(allocator, arrow.BinaryTypes.Binary)
	keyB := array.NewBinaryBuilder(allocator, arrow.BinaryTypes.Binary)
	valueB := array.NewBinaryBuilder(allocator, arrow.BinaryTypes.Binary)
	tsB := array.NewInt64Builder(allocator)
	delB := array.NewBooleanBuilder(allocator)
	defer tokenB.Release()
	defer keyB.Release()
	defer valueB.Release()
	defer tsB.Release()
	defer delB.Release()

	var uncompressed int64
	for _, r := range rows {
		tokenB.Append(r.Key.Token)
		keyB.Append(r.Key.Key)
		valueB.Append(r.Value)
		tsB.Append(r.Timestamp)
		delB.Append(r.Deleted)
		uncompressed += int64(len(r.Key.Token) + len(r.Key.Key) + len(r.Value) + 9)
	}

	tokenArr := tokenB.NewArray()
	keyArr := keyB.NewArray()
	valueArr := valueB.NewArray()
	tsArr := tsB.NewArray()
	delArr := delB.NewArray()
	defer tokenArr.Release()
	defer keyArr.Release()
	defer valueArr.Release()
	defer tsArr.Release()
	defer delArr.Release()

	cols := []arrow.Array{tokenArr, keyArr, valueArr, tsArr, delArr}
	return array.NewRecord(rowSchema, cols, int64(len(rows))), uncompressed, nil
}
