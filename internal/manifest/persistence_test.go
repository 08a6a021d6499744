package manifest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ringstore/internal/common"
	"ringstore/internal/sstable"
	"ringstore/internal/sstable/block"
)

func TestSnapshotThenRestoreRebuildsLevelMapping(t *testing.T) {
	storage, err := block.NewLocalFS(block.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	m := New(1024, 4)
	m.Add(writeTestTable(t, storage, "a", []sstable.Row{testRow(0x01, 'a')}))
	m.Add(writeTestTable(t, storage, "b", []sstable.Row{testRow(0x02, 'b')}))

	id := common.TableID{Keyspace: "ks", Table: "tbl"}
	persist := NewPersistence(storage, m, id, DefaultPersistenceConfig())
	require.NoError(t, persist.Snapshot(context.Background()))

	restored := New(1024, 4)
	restorePersist := NewPersistence(storage, restored, id, DefaultPersistenceConfig())
	require.NoError(t, restorePersist.Restore(context.Background()))

	assert.Equal(t, 0, restored.LevelOf("a"))
	assert.Equal(t, 0, restored.LevelOf("b"))
	assert.Equal(t, int64(0), restored.LevelSize(1))
}

func TestRestoreWithNoSnapshotLeavesManifestEmpty(t *testing.T) {
	storage, err := block.NewLocalFS(block.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	m := New(1024, 4)
	persist := NewPersistence(storage, m, common.TableID{Keyspace: "ks", Table: "tbl"}, DefaultPersistenceConfig())
	require.NoError(t, persist.Restore(context.Background()))

	assert.Equal(t, 0, m.LevelCount())
}

func TestRestoreFallsBackToRotatedBackupWhenPrimaryMissing(t *testing.T) {
	storage, err := block.NewLocalFS(block.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	m := New(1024, 4)
	m.Add(writeTestTable(t, storage, "a", []sstable.Row{testRow(0x01, 'a')}))

	id := common.TableID{Keyspace: "ks", Table: "tbl"}
	persist := NewPersistence(storage, m, id, DefaultPersistenceConfig())
	require.NoError(t, persist.Snapshot(context.Background()))
	// A second snapshot rotates the first into backups/snapshot_0.json.
	m.Add(writeTestTable(t, storage, "b", []sstable.Row{testRow(0x02, 'b')}))
	require.NoError(t, persist.Snapshot(context.Background()))

	require.NoError(t, storage.Delete(context.Background(), string(id.Keyspace)+"/"+string(id.Table)+"/manifest/current.json"))

	restored := New(1024, 4)
	restorePersist := NewPersistence(storage, restored, id, DefaultPersistenceConfig())
	require.NoError(t, restorePersist.Restore(context.Background()))

	assert.Equal(t, 0, restored.LevelOf("a"))
}

func TestStartRestoresThenBackgroundSnapshotsUntilStop(t *testing.T) {
	storage, err := block.NewLocalFS(block.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	m := New(1024, 4)
	m.Add(writeTestTable(t, storage, "a", []sstable.Row{testRow(0x01, 'a')}))

	id := common.TableID{Keyspace: "ks", Table: "tbl"}
	persist := NewPersistence(storage, m, id, PersistenceConfig{BackupInterval: time.Hour, MaxBackupFiles: 3})
	require.NoError(t, persist.Start(context.Background()))
	require.NoError(t, persist.Stop(context.Background()))

	restored := New(1024, 4)
	restorePersist := NewPersistence(storage, restored, id, DefaultPersistenceConfig())
	require.NoError(t, restorePersist.Restore(context.Background()))
	assert.Equal(t, 0, restored.LevelOf("a"))
}

func TestDeserializeRejectsChecksumMismatch(t *testing.T) {
	storage, err := block.NewLocalFS(block.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	m := New(1024, 4)
	persist := NewPersistence(storage, m, common.TableID{Keyspace: "ks", Table: "tbl"}, DefaultPersistenceConfig())

	err = persist.deserialize([]byte(`{"version":"1","saved_at":"2026-01-01T00:00:00Z","checksum":0,"ssts":[{"path":"x"}]}`))
	assert.Error(t, err)
}
