// Package manifest tracks which SSTs exist at which level and selects
// compaction candidates, the way the teacher's compaction.Compactor
// tracks SSTableInfo per CompactionLevel — but level membership here is
// delegated to sstable.Table and selection follows a leveled, not
// size-tiered, policy (see scheduler.go).
package manifest

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ringstore/internal/common"
	"ringstore/internal/sstable"
	"ringstore/internal/token"
)

type levelEntry struct {
	table           sstable.Table
	lastCompactedAt time.Time
}

// candidateSet is the claimed, in-flight compaction selection. Holding
// a non-nil pointer in Manifest.current is the "single-slot atomic
// current-task reference" the candidate-selection contract requires:
// CompactionCandidates keeps returning it until Replace/Promote/Clear.
type candidateSet struct {
	ssts []sstable.Table
}

// Manifest is the authoritative map of SST → level for one table.
type Manifest struct {
	mu     sync.RWMutex
	levels map[int][]*levelEntry

	baseSSTSize int64
	l0Trigger   int

	current atomic.Pointer[candidateSet]
}

// New builds an empty Manifest. baseSSTSize is cap(0); l0Trigger is the
// L0 file-count threshold at which score(L0) reaches 1.
func New(baseSSTSize int64, l0Trigger int) *Manifest {
	return &Manifest{
		levels:      make(map[int][]*levelEntry),
		baseSSTSize: baseSSTSize,
		l0Trigger:   l0Trigger,
	}
}

// Add inserts sst into L[0], or L[sst.Level()] if it already reports a
// placed level. It does not trigger compaction.
func (m *Manifest) Add(sst sstable.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()

	level := sst.Level()
	if level == sstable.UnplacedLevel {
		level = 0
	}
	m.levels[level] = append(m.levels[level], &levelEntry{table: sst})
	m.sortLevelLocked(level)
}

// Replace performs an atomic set exchange: added members keep the level
// of their corresponding removed member (matched positionally), or L[0]
// when there is no tracked removed member at that position. Used for
// cleanup/scrub/upgrade; never promotes.
func (m *Manifest) Replace(removed, added []sstable.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()

	levels := make([]int, len(removed))
	for i, sst := range removed {
		levels[i] = m.levelOfLocked(sst.ID())
	}
	m.removeLocked(removed)
	touched := make(map[int]bool)
	for i, sst := range added {
		level := 0
		if i < len(levels) && levels[i] != sstable.UnplacedLevel {
			level = levels[i]
		}
		m.levels[level] = append(m.levels[level], &levelEntry{table: sst})
		touched[level] = true
	}
	for level := range touched {
		m.sortLevelLocked(level)
	}
	m.clearCurrentIfMatches(removed)
}

// Promote places added at target_level = max(level(removed)) + 1 and
// removes the compacted inputs, the aftermath of a normal compaction.
// A pure L[0] compaction (every removed member at level 0) promotes to
// L[1] per the same rule.
func (m *Manifest) Promote(removed, added []sstable.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()

	maxLevel := 0
	for _, sst := range removed {
		if l := m.levelOfLocked(sst.ID()); l > maxLevel {
			maxLevel = l
		}
	}
	target := maxLevel + 1

	m.removeLocked(removed)
	for _, sst := range added {
		m.levels[target] = append(m.levels[target], &levelEntry{table: sst, lastCompactedAt: time.Now()})
	}
	m.sortLevelLocked(target)
	m.clearCurrentIfMatches(removed)
}

// Abort discards a failed task: inputs stay in place, the current-task
// slot clears, no partial promotion happens.
func (m *Manifest) Abort() {
	m.current.Store(nil)
}

func (m *Manifest) clearCurrentIfMatches(removed []sstable.Table) {
	if len(removed) > 0 {
		m.current.Store(nil)
	}
}

func (m *Manifest) removeLocked(remove []sstable.Table) {
	victims := make(map[common.FileID]bool, len(remove))
	for _, sst := range remove {
		victims[sst.ID()] = true
	}
	for level, entries := range m.levels {
		kept := entries[:0]
		for _, e := range entries {
			if !victims[e.table.ID()] {
				kept = append(kept, e)
			}
		}
		m.levels[level] = kept
	}
}

func (m *Manifest) sortLevelLocked(level int) {
	entries := m.levels[level]
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].table.FirstKey().Less(entries[j].table.FirstKey())
	})
}

// LevelSize returns the total uncompressed byte size of L[i].
func (m *Manifest) LevelSize(i int) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.levelSizeLocked(i)
}

func (m *Manifest) levelSizeLocked(i int) int64 {
	var total int64
	for _, e := range m.levels[i] {
		total += e.table.UncompressedLength()
	}
	return total
}

// LevelFileCount returns the number of SSTs tracked at L[i].
func (m *Manifest) LevelFileCount(i int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.levels[i])
}

// LevelOf returns the level an SST is currently tracked at, or
// sstable.UnplacedLevel if it is not tracked.
func (m *Manifest) LevelOf(id common.FileID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.levelOfLocked(id)
}

func (m *Manifest) levelOfLocked(id common.FileID) int {
	for level, entries := range m.levels {
		for _, e := range entries {
			if e.table.ID() == id {
				return level
			}
		}
	}
	return sstable.UnplacedLevel
}

// LevelCount returns the number of non-empty levels.
func (m *Manifest) LevelCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, entries := range m.levels {
		if len(entries) > 0 {
			count++
		}
	}
	return count
}

// OccupiedLevels returns the sorted level numbers that hold at least one
// SST. Levels are sparse (L0/L3 populated with L1/L2 empty is valid), so
// callers that want to enumerate every level with data must range over
// this instead of assuming levels are contiguous from 0 to LevelCount()-1.
func (m *Manifest) OccupiedLevels() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	levels := make([]int, 0, len(m.levels))
	for level, entries := range m.levels {
		if len(entries) > 0 {
			levels = append(levels, level)
		}
	}
	sort.Ints(levels)
	return levels
}

// TablesOverlapping returns every tracked SST whose key range intersects
// r, across all levels. Used by the anti-entropy core to sample
// boundary keys for a validator's tree without a separate index.
func (m *Manifest) TablesOverlapping(r token.AbstractBounds) []sstable.Table {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []sstable.Table
	for _, entries := range m.levels {
		for _, e := range entries {
			tableRange := token.NewRange(e.table.FirstKey().Token, e.table.LastKey().Token)
			if r.Intersects(tableRange) {
				out = append(out, e.table)
			}
		}
	}
	return out
}

// IsKeyLookupExpensive implements the key-existence cost heuristic:
// (|L[0] \ ignored|) + level_count() > 20.
func (m *Manifest) IsKeyLookupExpensive(ignored map[common.FileID]bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l0 := 0
	for _, e := range m.levels[0] {
		if !ignored[e.table.ID()] {
			l0++
		}
	}
	count := 0
	for _, entries := range m.levels {
		if len(entries) > 0 {
			count++
		}
	}
	return l0+count > 20
}
