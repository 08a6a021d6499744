package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStorageErrorFormatsWithAndWithoutCause(t *testing.T) {
	plain := NewError(ErrNotFound, "missing")
	assert.Contains(t, plain.Error(), "missing")

	wrapped := NewErrorWithCause(ErrCompactionFailed, "compaction broke", errors.New("disk full"))
	assert.Contains(t, wrapped.Error(), "disk full")
	assert.Equal(t, "disk full", wrapped.Unwrap().Error())
}

func TestIsErrorCodeMatchesAndRejects(t *testing.T) {
	err := ErrNotFoundError("nope")
	assert.True(t, IsErrorCode(err, ErrNotFound))
	assert.False(t, IsErrorCode(err, ErrInternal))
	assert.False(t, IsErrorCode(errors.New("plain"), ErrNotFound))
}

func TestWithContextAttachesValues(t *testing.T) {
	err := NewError(ErrInvalidInput, "bad").WithContext("field", "keyspace")
	assert.Equal(t, "keyspace", err.Context["field"])
}

func TestTableIDString(t *testing.T) {
	id := TableID{Keyspace: "ks", Table: "tbl"}
	assert.Equal(t, "ks.tbl", id.String())
}

func TestTimestampRoundTrip(t *testing.T) {
	now := Now()
	assert.InDelta(t, time.Now().Unix(), now.Unix(), 2)
	assert.NotEmpty(t, now.String())
}

func TestGenerateIDIsUniqueAndHex(t *testing.T) {
	a := GenerateID()
	b := GenerateID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KB", FormatBytes(1024))
	assert.Equal(t, "1.0 MB", FormatBytes(1024*1024))
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, 1, Min(1, 2))
	assert.Equal(t, 2, Max(1, 2))
	assert.Equal(t, int64(1), MinInt64(1, 2))
	assert.Equal(t, int64(2), MaxInt64(1, 2))
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Retry(3, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	err := Retry(2, time.Millisecond, func() error {
		return errors.New("always fails")
	})
	assert.Error(t, err)
}

func TestContainsAndRemoveDuplicates(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains([]string{"a", "b"}, "c"))
	assert.Equal(t, []string{"a", "b"}, RemoveDuplicates([]string{"a", "b", "a", "b"}))
}

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-1")
	assert.Equal(t, "trace-1", GetTraceID(ctx))
	assert.Equal(t, "", GetTraceID(context.Background()))
}

func TestBatchProcessChunksItems(t *testing.T) {
	var batches [][]int
	err := BatchProcess([]int{1, 2, 3, 4, 5}, 2, func(batch []int) error {
		batches = append(batches, append([]int(nil), batch...))
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, batches)
}
