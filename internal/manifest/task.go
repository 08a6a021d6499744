package manifest

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ringstore/internal/common"
	"ringstore/internal/messaging"
	"ringstore/internal/sstable"
	"ringstore/internal/sstable/block"
	"ringstore/internal/sstable/parquet"
)

// TaskStatus mirrors the teacher's CompactionJob.Status string states.
type TaskStatus string

const (
	TaskScheduled TaskStatus = "scheduled"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// CompactionTask is one run of the manifest-driven compaction: a claimed
// candidate set, merged and rewritten at target_level = max(level(input))
// + 1, grounded on the teacher's CompactionJob/executeCompaction shape.
type CompactionTask struct {
	ID          string
	Inputs      []sstable.Table
	TargetLevel int
	Status      TaskStatus
	StartTime   time.Time
	EndTime     time.Time
	Err         error
}

// Pool runs compaction tasks on a fixed worker pool, the way the
// teacher's Compactor runs compactionWorker goroutines off a jobCh.
type Pool struct {
	manifest     *Manifest
	storage      block.Storage
	writerConfig parquet.WriterConfig
	maxSSTSize   int64
	keyspace     common.Keyspace
	table        common.TableName

	workers     int
	jobCh       chan *CompactionTask
	stopCh      chan struct{}
	done        chan struct{}
	events      *messaging.EventPublisher
	persistence *Persistence

	mu    sync.RWMutex
	tasks map[string]*CompactionTask
}

// SetEventPublisher attaches an event publisher the pool reports
// compaction start/end/failure to. Nil-safe when never called.
func (p *Pool) SetEventPublisher(events *messaging.EventPublisher) {
	p.events = events
}

// SetPersistence attaches a manifest snapshot/restore layer: Start
// restores from the latest snapshot before launching workers and begins
// periodic background snapshotting, and every successful compaction
// snapshots the post-promote state immediately rather than waiting for
// the next tick. Nil-safe when never called.
func (p *Pool) SetPersistence(persistence *Persistence) {
	p.persistence = persistence
}

func (p *Pool) publishCompaction(ctx context.Context, eventType messaging.EventType, task *CompactionTask) {
	if p.events == nil {
		return
	}
	data := map[string]interface{}{
		"task_id":      task.ID,
		"keyspace":     string(p.keyspace),
		"table":        string(p.table),
		"target_level": task.TargetLevel,
		"inputs":       len(task.Inputs),
	}
	if task.Err != nil {
		data["error"] = task.Err.Error()
	}
	_ = p.events.PublishEvent(ctx, eventType, data)
}

// NewPool builds a compaction worker pool over manifest/storage, writing
// output SSTs under "<keyspace>/<table>/sstables/" with maxSSTSize as
// the bounded output writer's rollover threshold.
func NewPool(manifest *Manifest, storage block.Storage, id common.TableID, workers int, maxSSTSize int64, writerConfig parquet.WriterConfig) *Pool {
	return &Pool{
		manifest:     manifest,
		storage:      storage,
		writerConfig: writerConfig,
		maxSSTSize:   maxSSTSize,
		keyspace:     id.Keyspace,
		table:        id.Table,
		workers:      workers,
		jobCh:        make(chan *CompactionTask, 64),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
		tasks:        make(map[string]*CompactionTask),
	}
}

// Start restores the manifest from its persisted snapshot, if a
// Persistence is attached, then launches the worker pool.
func (p *Pool) Start(ctx context.Context) error {
	if p.persistence != nil {
		if err := p.persistence.Start(ctx); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	go func() {
		wg.Wait()
		close(p.done)
	}()
	return nil
}

// Stop drains the pool, waits for in-flight workers to exit, and takes
// a final manifest snapshot if a Persistence is attached.
func (p *Pool) Stop() {
	close(p.stopCh)
	<-p.done
	if p.persistence != nil {
		_ = p.persistence.Stop(context.Background())
	}
}

// Schedule claims the manifest's current candidate set (if any) and
// enqueues a task for it. Returns nil if there is nothing to compact or
// a task is already in flight.
func (p *Pool) Schedule() *CompactionTask {
	p.manifest.mu.RLock()
	candidates := p.manifest.selectCandidatesLocked()
	p.manifest.mu.RUnlock()
	if len(candidates) == 0 {
		return nil
	}
	if !p.manifest.current.CompareAndSwap(nil, &candidateSet{ssts: candidates}) {
		return nil // a task already holds the claim
	}

	task := &CompactionTask{
		ID:          uuid.NewString(),
		Inputs:      candidates,
		TargetLevel: targetLevel(candidates),
		Status:      TaskScheduled,
	}

	p.mu.Lock()
	p.tasks[task.ID] = task
	p.mu.Unlock()

	select {
	case p.jobCh <- task:
	default:
		p.mu.Lock()
		task.Status = TaskFailed
		task.Err = fmt.Errorf("compaction queue full")
		p.mu.Unlock()
		p.manifest.Abort()
	}
	return task
}

func targetLevel(inputs []sstable.Table) int {
	maxLevel := 0
	for _, sst := range inputs {
		if l := sst.Level(); l != sstable.UnplacedLevel && l > maxLevel {
			maxLevel = l
		}
	}
	return maxLevel + 1
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case task := <-p.jobCh:
			p.run(ctx, task)
		}
	}
}

func (p *Pool) run(ctx context.Context, task *CompactionTask) {
	p.mu.Lock()
	task.Status = TaskRunning
	task.StartTime = time.Now()
	p.mu.Unlock()
	p.publishCompaction(ctx, messaging.EventCompactionStart, task)

	added, err := p.execute(ctx, task)

	p.mu.Lock()
	task.EndTime = time.Now()
	if err != nil {
		task.Status = TaskFailed
		task.Err = err
	} else {
		task.Status = TaskCompleted
	}
	p.mu.Unlock()

	if err != nil {
		for _, sst := range added {
			_ = p.storage.Delete(ctx, sstPath(p.keyspace, p.table, sst.ID()))
		}
		p.manifest.Abort()
		p.publishCompaction(ctx, messaging.EventCompactionFailed, task)
		return
	}
	p.manifest.Promote(task.Inputs, added)
	if p.persistence != nil {
		_ = p.persistence.Snapshot(ctx)
	}
	p.publishCompaction(ctx, messaging.EventCompactionEnd, task)
}

// execute merges task.Inputs — L0 members read with their own scanners
// since they may overlap, L[i>=1] members merged through a single
// LeveledScanner since the manifest guarantees their pairwise
// non-overlap — sorts, deduplicates by key keeping the newest
// timestamp, and rewrites the result as one or more bounded-size SSTs
// at task.TargetLevel. A failure here leaves inputs untouched; the
// caller deletes any partial outputs and aborts.
func (p *Pool) execute(ctx context.Context, task *CompactionTask) ([]sstable.Table, error) {
	var rows []sstable.Row

	var leveled []sstable.Table
	for _, sst := range task.Inputs {
		if sst.Level() == 0 {
			r, err := readAll(ctx, sst)
			if err != nil {
				return nil, err
			}
			rows = append(rows, r...)
			continue
		}
		leveled = append(leveled, sst)
	}

	if len(leveled) > 0 {
		scanner := NewLeveledScanner(ctx, leveled, nil)
		defer scanner.Close()
		for {
			row, err := scanner.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}

	merged := sortAndDeduplicate(rows)
	if len(merged) == 0 {
		return nil, nil
	}

	return p.writeBounded(ctx, merged, task.TargetLevel)
}

func readAll(ctx context.Context, sst sstable.Table) ([]sstable.Row, error) {
	scanner, err := sst.Open(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("compaction: open %s: %w", sst.ID(), err)
	}
	defer scanner.Close()

	var rows []sstable.Row
	for {
		row, err := scanner.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("compaction: read %s: %w", sst.ID(), err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// sortAndDeduplicate sorts rows by DecoratedKey and keeps, for each
// distinct key, the row with the highest Timestamp — grounded on the
// teacher's sortAndDeduplicateRecords.
func sortAndDeduplicate(rows []sstable.Row) []sstable.Row {
	if len(rows) == 0 {
		return rows
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Key.Less(rows[j].Key)
	})

	out := make([]sstable.Row, 0, len(rows))
	out = append(out, rows[0])
	for _, row := range rows[1:] {
		last := &out[len(out)-1]
		if row.Key.Compare(last.Key) != 0 {
			out = append(out, row)
			continue
		}
		if row.Timestamp > last.Timestamp {
			*last = row
		}
	}
	return out
}

// writeBounded rolls rows into fresh output files whenever the running
// byte total would exceed maxSSTSize, always breaking on a key boundary.
func (p *Pool) writeBounded(ctx context.Context, rows []sstable.Row, level int) ([]sstable.Table, error) {
	writer := parquet.NewWriter(p.storage, p.writerConfig)

	var out []sstable.Table
	var batch []sstable.Row
	var batchBytes int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		id := common.FileID(uuid.NewString())
		filePath := sstPath(p.keyspace, p.table, id)
		meta, err := writer.Write(ctx, filePath, id, level, batch)
		if err != nil {
			return err
		}
		out = append(out, parquet.NewSSTable(p.storage, filePath, *meta))
		batch = nil
		batchBytes = 0
		return nil
	}

	for _, row := range rows {
		rowBytes := int64(len(row.Key.Token) + len(row.Key.Key) + len(row.Value) + 9)
		if batchBytes+rowBytes > p.maxSSTSize && len(batch) > 0 {
			if err := flush(); err != nil {
				return out, err
			}
		}
		batch = append(batch, row)
		batchBytes += rowBytes
	}
	if err := flush(); err != nil {
		return out, err
	}
	return out, nil
}

func sstPath(ks common.Keyspace, tbl common.TableName, id common.FileID) string {
	return path.Join(string(ks), string(tbl), "sstables", string(id)+".parquet")
}
