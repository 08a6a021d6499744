package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ringstore/internal/common"
)

func TestEventToMessageSetsTopicAndHeaders(t *testing.T) {
	ev := &Event{Type: EventCompactionStart, Source: "manifest", Data: map[string]interface{}{"table": "ks.tbl"}, Timestamp: time.Now(), TraceID: "trace-1"}
	msg, err := ev.ToMessage()
	require.NoError(t, err)
	assert.Equal(t, string(EventCompactionStart), msg.Topic)
	assert.Equal(t, "manifest", msg.Key)
	assert.Equal(t, "trace-1", msg.Headers["trace-id"])
	assert.NotEmpty(t, msg.Payload)
}

func TestMemoryPublisherRecordsMessages(t *testing.T) {
	mp := NewMemoryPublisher()
	msg := &Message{ID: "1", Topic: "t", Payload: []byte("x")}
	require.NoError(t, mp.Publish(context.Background(), "t", msg))
	require.NoError(t, mp.PublishBatch(context.Background(), "t", []*Message{msg}))

	got := mp.GetMessages("t")
	assert.Len(t, got, 2)

	mp.Clear()
	assert.Empty(t, mp.GetMessages("t"))
}

func TestEventPublisherPublishesThroughUnderlyingPublisher(t *testing.T) {
	mp := NewMemoryPublisher()
	ep := NewEventPublisher(mp, "manifest")

	ctx := common.WithTraceID(context.Background(), "trace-1")
	err := ep.PublishEvent(ctx, EventCompactionEnd, map[string]interface{}{"table": "ks.tbl"})
	require.NoError(t, err)

	msgs := mp.GetMessages(string(EventCompactionEnd))
	require.Len(t, msgs, 1)
	assert.Equal(t, "manifest", msgs[0].Key)
}

func TestRetryPolicyStopsOnFirstSuccess(t *testing.T) {
	rp := &RetryPolicy{MaxRetries: 3, BackoffBase: time.Millisecond, MaxBackoff: 10 * time.Millisecond}
	calls := 0
	err := rp.Execute(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyExhaustsRetriesThenFails(t *testing.T) {
	rp := &RetryPolicy{MaxRetries: 2, BackoffBase: time.Millisecond, MaxBackoff: time.Millisecond}
	calls := 0
	err := rp.Execute(context.Background(), func() error {
		calls++
		return errors.New("nope")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestRetryPolicyRespectsContextCancellation(t *testing.T) {
	rp := &RetryPolicy{MaxRetries: 5, BackoffBase: time.Hour, MaxBackoff: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := rp.Execute(ctx, func() error {
		return errors.New("nope")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJSONSerializerRoundTrips(t *testing.T) {
	js := &JSONSerializer{}
	msg := &Message{ID: "1", Topic: "t", Payload: []byte("hello")}
	data, err := js.Serialize(msg)
	require.NoError(t, err)

	got, err := js.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, msg.Topic, got.Topic)
}
