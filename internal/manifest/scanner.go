package manifest

import (
	"context"
	"fmt"
	"io"
	"sort"

	"ringstore/internal/sstable"
	"ringstore/internal/token"
)

// LeveledScanner lazily scans a set of SSTs known to be pairwise
// non-overlapping (an L[i>=1] input set), opening one at a time in
// FirstKey order and closing each before the next opens. L0 inputs,
// which may overlap, get one scanner per SST instead (parallel
// cursors) — the caller is responsible for choosing which shape fits.
type LeveledScanner struct {
	ctx    context.Context
	bounds *token.AbstractBounds
	tables []sstable.Table

	length int64

	idx       int
	closedPos int64
	current   sstable.Scanner
}

// NewLeveledScanner builds a scanner over tables restricted to bounds.
// tables is sorted ascending by FirstKey; callers must guarantee
// non-overlap.
func NewLeveledScanner(ctx context.Context, tables []sstable.Table, bounds *token.AbstractBounds) *LeveledScanner {
	sorted := make([]sstable.Table, len(tables))
	copy(sorted, tables)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].FirstKey().Less(sorted[j].FirstKey())
	})

	var length int64
	for _, t := range sorted {
		length += t.UncompressedLength()
	}

	return &LeveledScanner{ctx: ctx, bounds: bounds, tables: sorted, length: length}
}

// Length is the sum of uncompressed lengths of every table in the scan.
func (s *LeveledScanner) Length() int64 { return s.length }

// CurrentPosition returns bytes consumed so far: closed scanners' total
// plus the currently open scanner's own position.
func (s *LeveledScanner) CurrentPosition() int64 {
	if s.current == nil {
		return s.closedPos
	}
	return s.closedPos + s.current.Position()
}

// Next returns the next row in ascending key order, opening and closing
// underlying table scanners as needed, or io.EOF when every table is
// exhausted. An underlying I/O error is fatal: the driving compaction
// task must abort.
func (s *LeveledScanner) Next() (sstable.Row, error) {
	for {
		if s.current == nil {
			if s.idx >= len(s.tables) {
				return sstable.Row{}, io.EOF
			}
			scanner, err := s.tables[s.idx].Open(s.ctx, s.bounds)
			if err != nil {
				return sstable.Row{}, fmt.Errorf("leveled scanner: open %s: %w", s.tables[s.idx].ID(), err)
			}
			s.current = scanner
		}

		row, err := s.current.Next(s.ctx)
		if err == io.EOF {
			s.closedPos += s.current.Position()
			if cerr := s.current.Close(); cerr != nil {
				return sstable.Row{}, fmt.Errorf("leveled scanner: close %s: %w", s.tables[s.idx].ID(), cerr)
			}
			s.current = nil
			s.idx++
			continue
		}
		if err != nil {
			return sstable.Row{}, fmt.Errorf("leveled scanner: read %s: %w", s.tables[s.idx].ID(), err)
		}
		return row, nil
	}
}

// Close closes the currently open underlying scanner, if any. Idempotent.
func (s *LeveledScanner) Close() error {
	if s.current == nil {
		return nil
	}
	err := s.current.Close()
	s.current = nil
	return err
}
