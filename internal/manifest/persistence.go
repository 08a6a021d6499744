package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"sync"
	"time"

	"ringstore/internal/common"
	"ringstore/internal/sstable/block"
	"ringstore/internal/sstable/parquet"
	"ringstore/internal/token"
)

// PersistenceConfig configures how manifest snapshots are taken and
// rotated, grounded on the teacher's PersistenceConfig/CatalogPersistence.
type PersistenceConfig struct {
	BackupInterval time.Duration
	MaxBackupFiles int
}

// DefaultPersistenceConfig mirrors the teacher's defaults.
func DefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{BackupInterval: 30 * time.Minute, MaxBackupFiles: 10}
}

// sstRecord is the on-disk shape of one tracked SST: enough to rebuild a
// parquet.SSTable without reopening the file's footer.
type sstRecord struct {
	Path               string        `json:"path"`
	ID                 common.FileID `json:"id"`
	Level              int           `json:"level"`
	FirstToken         []byte        `json:"first_token"`
	FirstKey           []byte        `json:"first_key"`
	LastToken          []byte        `json:"last_token"`
	LastKey            []byte        `json:"last_key"`
	RecordCount        int64         `json:"record_count"`
	UncompressedLength int64         `json:"uncompressed_length"`
	CompressedLength   int64         `json:"compressed_length"`
}

type snapshot struct {
	Version  string      `json:"version"`
	SavedAt  time.Time   `json:"saved_at"`
	Checksum uint32      `json:"checksum"`
	SSTs     []sstRecord `json:"ssts"`
}

// Persistence snapshots and restores a Manifest's SST-to-level mapping
// so a restart doesn't need to rescan every table's footer, grounded on
// the teacher's CatalogPersistence (JSON snapshot + checksum + rotating
// backups + background ticker), re-targeted at manifest state instead
// of a generic multi-tenant catalog.
type Persistence struct {
	mu       sync.Mutex
	storage  block.Storage
	manifest *Manifest
	config   PersistenceConfig

	primaryPath    string
	backupBasePath string

	stopCh chan struct{}
	done   chan struct{}

	totalSnapshots  uint64
	totalRestores   uint64
	lastSnapshotAt  time.Time
}

// NewPersistence builds a Persistence for manifest, storing snapshots
// under "<keyspace>/<table>/manifest/".
func NewPersistence(storage block.Storage, manifest *Manifest, id common.TableID, config PersistenceConfig) *Persistence {
	base := fmt.Sprintf("%s/%s/manifest", id.Keyspace, id.Table)
	return &Persistence{
		storage:        storage,
		manifest:       manifest,
		config:         config,
		primaryPath:    base + "/current.json",
		backupBasePath: base + "/backups/snapshot",
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start restores the manifest from the latest snapshot (if any) and
// begins periodic background snapshotting.
func (p *Persistence) Start(ctx context.Context) error {
	if err := p.Restore(ctx); err != nil {
		return fmt.Errorf("manifest persistence: restore: %w", err)
	}
	go p.backgroundSnapshot(ctx)
	return nil
}

// Stop halts background snapshotting and takes a final snapshot.
func (p *Persistence) Stop(ctx context.Context) error {
	close(p.stopCh)
	<-p.done
	return p.Snapshot(ctx)
}

// Snapshot serializes the manifest's current SST/level mapping and
// writes it to the primary path, rotating older snapshots into backups.
func (p *Persistence) Snapshot(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.serialize()
	if err != nil {
		return fmt.Errorf("manifest persistence: serialize: %w", err)
	}

	if err := p.rotateLocked(ctx); err != nil {
		return fmt.Errorf("manifest persistence: rotate: %w", err)
	}

	if err := p.writeAll(ctx, p.primaryPath, data); err != nil {
		return fmt.Errorf("manifest persistence: write snapshot: %w", err)
	}

	p.totalSnapshots++
	p.lastSnapshotAt = time.Now()
	return nil
}

// Restore loads the most recent snapshot (primary, falling back through
// rotated backups) into the manifest. A missing snapshot is not an
// error: the manifest simply starts empty.
func (p *Persistence) Restore(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.readAll(ctx, p.primaryPath)
	if err != nil {
		return p.restoreFromBackupLocked(ctx)
	}
	return p.deserialize(data)
}

func (p *Persistence) restoreFromBackupLocked(ctx context.Context) error {
	for i := 0; i < p.config.MaxBackupFiles; i++ {
		backupPath := fmt.Sprintf("%s_%d.json", p.backupBasePath, i)
		data, err := p.readAll(ctx, backupPath)
		if err != nil {
			continue
		}
		if err := p.deserialize(data); err == nil {
			p.totalRestores++
			return nil
		}
	}
	return nil
}

func (p *Persistence) rotateLocked(ctx context.Context) error {
	for i := p.config.MaxBackupFiles - 1; i > 0; i-- {
		oldPath := fmt.Sprintf("%s_%d.json", p.backupBasePath, i-1)
		newPath := fmt.Sprintf("%s_%d.json", p.backupBasePath, i)
		if data, err := p.readAll(ctx, oldPath); err == nil {
			_ = p.writeAll(ctx, newPath, data)
		}
	}
	if data, err := p.readAll(ctx, p.primaryPath); err == nil {
		return p.writeAll(ctx, p.backupBasePath+"_0.json", data)
	}
	return nil
}

func (p *Persistence) backgroundSnapshot(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.config.BackupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			_ = p.Snapshot(ctx)
		}
	}
}

func (p *Persistence) serialize() ([]byte, error) {
	p.manifest.mu.RLock()
	var records []sstRecord
	for level, entries := range p.manifest.levels {
		for _, e := range entries {
			sst, ok := e.table.(*parquet.SSTable)
			if !ok {
				continue
			}
			meta := sst.Metadata()
			records = append(records, sstRecord{
				Path:               sst.Path(),
				ID:                 meta.ID,
				Level:              level,
				FirstToken:         meta.FirstKey.Token,
				FirstKey:           meta.FirstKey.Key,
				LastToken:          meta.LastKey.Token,
				LastKey:            meta.LastKey.Key,
				RecordCount:        meta.RecordCount,
				UncompressedLength: meta.UncompressedLength,
				CompressedLength:   meta.CompressedLength,
			})
		}
	}
	p.manifest.mu.RUnlock()

	body, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}

	snap := snapshot{
		Version:  "1",
		SavedAt:  time.Now(),
		Checksum: crc32.ChecksumIEEE(body),
		SSTs:     records,
	}
	return json.MarshalIndent(snap, "", "  ")
}

func (p *Persistence) deserialize(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("manifest persistence: unmarshal: %w", err)
	}

	body, err := json.Marshal(snap.SSTs)
	if err != nil {
		return err
	}
	if crc32.ChecksumIEEE(body) != snap.Checksum {
		return fmt.Errorf("manifest persistence: checksum mismatch")
	}

	for _, r := range snap.SSTs {
		meta := parquet.Metadata{
			ID:                 r.ID,
			Level:              r.Level,
			FirstKey:           token.DecoratedKey{Token: r.FirstToken, Key: r.FirstKey},
			LastKey:            token.DecoratedKey{Token: r.LastToken, Key: r.LastKey},
			RecordCount:        r.RecordCount,
			UncompressedLength: r.UncompressedLength,
			CompressedLength:   r.CompressedLength,
		}
		p.manifest.Add(parquet.NewSSTable(p.storage, r.Path, meta))
	}
	return nil
}

func (p *Persistence) writeAll(ctx context.Context, path string, data []byte) error {
	out, err := p.storage.Writer(ctx, path)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = out.Write(data)
	return err
}

func (p *Persistence) readAll(ctx context.Context, path string) ([]byte, error) {
	in, err := p.storage.Reader(ctx, path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return io.ReadAll(in)
}
