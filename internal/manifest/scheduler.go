package manifest

import (
	"sort"

	"ringstore/internal/sstable"
)

// score(i) = size_bytes(L[i]) / cap(i) for i>=1; L0's score is file-count
// based since L0 SSTs are unsorted flush output, not size-bounded runs.
func (m *Manifest) score(i int) float64 {
	if i == 0 {
		if m.l0Trigger <= 0 {
			return 0
		}
		return float64(len(m.levels[0])) / float64(m.l0Trigger)
	}
	capacity := m.capForLevel(i)
	if capacity <= 0 {
		return 0
	}
	return float64(m.levelSizeLocked(i)) / float64(capacity)
}

// capForLevel computes cap(i) = base_sst_size * 10^i.
func (m *Manifest) capForLevel(i int) int64 {
	c := m.baseSSTSize
	for k := 0; k < i; k++ {
		c *= 10
	}
	return c
}

// CompactionCandidates returns the selected SSTs per the leveled
// candidate-selection policy (spec §4.1): an L0 sweep when score(L0)
// >= 1, else the highest-scoring L[i>=1] over 1 paired with its
// overlapping L[i+1] neighbors, else empty. While a task is already
// claimed, the same set is returned until Abort/Replace/Promote clears
// the slot, so repeated calls never hand out overlapping work.
func (m *Manifest) CompactionCandidates() []sstable.Table {
	if cur := m.current.Load(); cur != nil {
		return cur.ssts
	}

	m.mu.RLock()
	ssts := m.selectCandidatesLocked()
	m.mu.RUnlock()

	if len(ssts) == 0 {
		return nil
	}
	claimed := &candidateSet{ssts: ssts}
	if !m.current.CompareAndSwap(nil, claimed) {
		// Another caller claimed a task between the unlock and here;
		// hand back whatever they claimed instead of double-scheduling.
		return m.current.Load().ssts
	}
	return ssts
}

func (m *Manifest) selectCandidatesLocked() []sstable.Table {
	if m.score(0) >= 1 {
		return m.selectL0Locked()
	}

	// Iterate levels in ascending order, not Go's randomized map order,
	// so a tie in score is broken by lowest index deterministically.
	levels := make([]int, 0, len(m.levels))
	for level := range m.levels {
		levels = append(levels, level)
	}
	sort.Ints(levels)

	best := -1
	bestScore := 1.0
	for _, level := range levels {
		if level == 0 || len(m.levels[level]) == 0 {
			continue
		}
		if s := m.score(level); s > bestScore {
			bestScore = s
			best = level
		}
	}
	if best < 0 {
		return nil
	}
	return m.selectLeveledLocked(best)
}

// selectL0Locked sweeps every L0 SST plus any L1 SST whose range
// overlaps an L0 member, grounded on the teacher's selectLevel0Files
// "compact all overlapping files" sweep.
func (m *Manifest) selectL0Locked() []sstable.Table {
	l0 := m.levels[0]
	if len(l0) == 0 {
		return nil
	}

	out := make([]sstable.Table, 0, len(l0))
	for _, e := range l0 {
		out = append(out, e.table)
	}
	for _, e := range m.levels[1] {
		for _, l0e := range l0 {
			if sstable.Overlaps(e.table, l0e.table) {
				out = append(out, e.table)
				break
			}
		}
	}
	return out
}

// selectLeveledLocked picks one L[i] SST not compacted recently (LRU on
// lastCompactedAt, tie-broken by smallest FirstKey) plus every L[i+1]
// SST whose range overlaps it, grounded on the teacher's
// selectLeveledFiles LRU-over-LastAccess scan.
func (m *Manifest) selectLeveledLocked(level int) []sstable.Table {
	entries := m.levels[level]
	if len(entries) == 0 {
		return nil
	}

	picked := entries[0]
	for _, e := range entries[1:] {
		if e.lastCompactedAt.Before(picked.lastCompactedAt) {
			picked = e
		} else if e.lastCompactedAt.Equal(picked.lastCompactedAt) &&
			e.table.FirstKey().Less(picked.table.FirstKey()) {
			picked = e
		}
	}

	out := []sstable.Table{picked.table}
	for _, e := range m.levels[level+1] {
		if sstable.Overlaps(e.table, picked.table) {
			out = append(out, e.table)
		}
	}
	return out
}
