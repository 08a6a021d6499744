package block

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalFS(t *testing.T) *LocalFS {
	t.Helper()
	fs, err := NewLocalFS(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return fs
}

func TestWriterThenReaderRoundTrips(t *testing.T) {
	fs := newLocalFS(t)
	ctx := context.Background()

	w, err := fs.Writer(ctx, "l0/a.sst")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := fs.Reader(ctx, "l0/a.sst")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestReaderOnMissingFileIsNotFound(t *testing.T) {
	fs := newLocalFS(t)
	_, err := fs.Reader(context.Background(), "missing.sst")
	assert.True(t, IsNotFound(err))
}

func TestStatReportsSize(t *testing.T) {
	fs := newLocalFS(t)
	ctx := context.Background()
	w, _ := fs.Writer(ctx, "a.sst")
	w.Write([]byte("12345"))
	w.Close()

	meta, err := fs.Stat(ctx, "a.sst")
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.Size)
}

func TestListFindsWrittenFiles(t *testing.T) {
	fs := newLocalFS(t)
	ctx := context.Background()
	w, _ := fs.Writer(ctx, "l0/a.sst")
	w.Write([]byte("x"))
	w.Close()

	results, err := fs.List(ctx, "l0")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "l0/a.sst", results[0].Path)
}

func TestDeleteRemovesFile(t *testing.T) {
	fs := newLocalFS(t)
	ctx := context.Background()
	w, _ := fs.Writer(ctx, "a.sst")
	w.Write([]byte("x"))
	w.Close()

	require.NoError(t, fs.Delete(ctx, "a.sst"))
	_, err := fs.Stat(ctx, "a.sst")
	assert.True(t, IsNotFound(err))
}

func TestCopyDuplicatesContent(t *testing.T) {
	fs := newLocalFS(t)
	ctx := context.Background()
	w, _ := fs.Writer(ctx, "a.sst")
	w.Write([]byte("payload"))
	w.Close()

	require.NoError(t, fs.Copy(ctx, "a.sst", "b.sst"))
	r, err := fs.Reader(ctx, "b.sst")
	require.NoError(t, err)
	defer r.Close()
	data, _ := io.ReadAll(r)
	assert.Equal(t, "payload", string(data))
}

func TestMoveRelocatesFile(t *testing.T) {
	fs := newLocalFS(t)
	ctx := context.Background()
	w, _ := fs.Writer(ctx, "a.sst")
	w.Write([]byte("payload"))
	w.Close()

	require.NoError(t, fs.Move(ctx, "a.sst", "moved/b.sst"))
	_, err := fs.Stat(ctx, "a.sst")
	assert.True(t, IsNotFound(err))
	_, err = fs.Stat(ctx, "moved/b.sst")
	assert.NoError(t, err)
}

func TestHealthPassesOnWritableDir(t *testing.T) {
	fs := newLocalFS(t)
	assert.NoError(t, fs.Health(context.Background()))
}

func TestStatsCountsWrittenFiles(t *testing.T) {
	fs := newLocalFS(t)
	ctx := context.Background()
	w, _ := fs.Writer(ctx, "a.sst")
	w.Write([]byte("12345"))
	w.Close()

	stats, err := fs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalObjects)
	assert.Equal(t, int64(5), stats.TotalSize)
}

func TestFactoryCreatesLocalFS(t *testing.T) {
	f := NewFactory()
	storage, err := f.Create(Config{Type: "local", BaseDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalFS{}, storage)
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	f := NewFactory()
	_, err := f.Create(Config{Type: "ftp", BaseDir: t.TempDir()})
	assert.Error(t, err)
}
