package parquet

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"ringstore/internal/common"
	"ringstore/internal/sstable"
	"ringstore/internal/sstable/block"
	"ringstore/internal/token"
)

// SSTable is the Parquet-backed sstable.Table. Random access into the
// Parquet footer isn't implemented here, mirroring the teacher reader's
// own documented limitation ("read everything into memory for now"):
// Open buffers the whole file and filters in memory.
type SSTable struct {
	storage block.Storage
	path    string
	meta    Metadata
}

// NewSSTable constructs an SSTable from a previously written file and its
// recorded Metadata; it does not touch storage until Open(ctx, r) scans.
func NewSSTable(storage block.Storage, path string, meta Metadata) *SSTable {
	return &SSTable{storage: storage, path: path, meta: meta}
}

func (t *SSTable) ID() common.FileID            { return t.meta.ID }
func (t *SSTable) Level() int                   { return t.meta.Level }
func (t *SSTable) FirstKey() token.DecoratedKey  { return t.meta.FirstKey }
func (t *SSTable) LastKey() token.DecoratedKey   { return t.meta.LastKey }
func (t *SSTable) UncompressedLength() int64     { return t.meta.UncompressedLength }

// Path returns the storage path backing this table, used by Persistence
// to record enough to reconstruct an SSTable without reopening its footer.
func (t *SSTable) Path() string { return t.path }

// Metadata returns the table's recorded Metadata.
func (t *SSTable) Metadata() Metadata { return t.meta }

// Open reads the whole file, filters rows against r (if non-nil) and
// returns a Scanner over the filtered, already-sorted result.
func (t *SSTable) Open(ctx context.Context, r *token.AbstractBounds) (sstable.Scanner, error) {
	rows, err := t.readRows(ctx)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return &sliceScanner{rows: rows}, nil
	}
	filtered := rows[:0:0]
	for _, row := range rows {
		if r.Contains(row.Key.Token) {
			filtered = append(filtered, row)
		}
	}
	return &sliceScanner{rows: filtered}, nil
}

func (t *SSTable) readRows(ctx context.Context) ([]sstable.Row, error) {
	rc, err := t.storage.Reader(ctx, t.path)
	if err != nil {
		return nil, fmt.Errorf("parquet: open %s: %w", t.path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("parquet: read %s: %w", t.path, err)
	}

	pqFile, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parquet: open reader for %s: %w", t.path, err)
	}
	defer pqFile.Close()

	pqReader, err := pqarrow.NewFileReader(pqFile, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("parquet: open arrow reader for %s: %w", t.path, err)
	}

	arrowTable, err := pqReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("parquet: read table from %s: %w", t.path, err)
	}
	defer arrowTable.Release()

	return tableToRows(arrowTable)
}

func tableToRows(tbl arrow.Table) ([]sstable.Row, error) {
	var rows []sstable.Row

	tr := array.NewTableReader(tbl, 0)
	defer tr.Release()

	for tr.Next() {
		rec := tr.Record()
		tokenCol, ok := rec.Column(0).(*array.Binary)
		if !ok {
			return nil, fmt.Errorf("parquet: column 0 is not binary")
		}
		keyCol, ok := rec.Column(1).(*array.Binary)
		if !ok {
			return nil, fmt.Errorf("parquet: column 1 is not binary")
		}
		valueCol, ok := rec.Column(2).(*array.Binary)
		if !ok {
			return nil, fmt.Errorf("parquet: column 2 is not binary")
		}
		tsCol, ok := rec.Column(3).(*array.Int64)
		if !ok {
			return nil, fmt.Errorf("parquet: column 3 is not int64")
		}
		delCol, ok := rec.Column(4).(*array.Boolean)
		if !ok {
			return nil, fmt.Errorf("parquet: column 4 is not boolean")
		}

		n := int(rec.NumRows())
		for i := 0; i < n; i++ {
			rows = append(rows, sstable.Row{
				Key: token.DecoratedKey{
					Token: append([]byte(nil), tokenCol.Value(i)...),
					Key:   append([]byte(nil), keyCol.Value(i)...),
				},
				Value:     append([]byte(nil), valueCol.Value(i)...),
				Timestamp: tsCol.Value(i),
				Deleted:   delCol.Value(i),
			})
		}
	}
	return rows, nil
}

// sliceScanner yields pre-filtered, pre-sorted rows buffered in memory.
type sliceScanner struct {
	rows []sstable.Row
	idx  int
	pos  int64
}

func (s *sliceScanner) Next(ctx context.Context) (sstable.Row, error) {
	if s.idx >= len(s.rows) {
		return sstable.Row{}, io.EOF
	}
	row := s.rows[s.idx]
	s.idx++
	s.pos += int64(len(row.Key.Token) + len(row.Key.Key) + len(row.Value) + 9)
	return row, nil
}

func (s *sliceScanner) Position() int64 { return s.pos }

func (s *sliceScanner) Close() error { return nil }
