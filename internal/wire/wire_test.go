package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ringstore/internal/merkle"
	"ringstore/internal/token"
)

func sampleTreeRequest() TreeRequest {
	return TreeRequest{
		SessionID: "sess-1",
		Endpoint:  "10.0.0.1:7000",
		GCBefore:  1234,
		Keyspace:  "ks",
		Table:     "tbl",
		Range:     token.NewRange(token.Token{0x00}, token.Token{0xff}),
	}
}

func TestTreeRequestRoundTripsAtEveryVersion(t *testing.T) {
	for _, v := range []Version{V10, V11, V12, V20} {
		req := sampleTreeRequest()
		data, err := SerializeTreeRequest(req, v)
		require.NoError(t, err)
		assert.Equal(t, SerializedSizeTreeRequest(req, v), len(data))

		got, err := DeserializeTreeRequest(data, v)
		require.NoError(t, err)

		want := req
		if v < V20 {
			want.GCBefore = 0 // not carried below V20
		}
		assert.Equal(t, want, got)
	}
}

func TestSyncRequestRoundTrips(t *testing.T) {
	s := SyncRequest{
		ID:        "task-1",
		Initiator: "a",
		Src:       "b",
		Dst:       "c",
		Keyspace:  "ks",
		Table:     "tbl",
		Ranges: []token.AbstractBounds{
			token.NewRange(token.Token{0x00}, token.Token{0x80}),
			token.NewRange(token.Token{0x80}, token.Token{0xff}),
		},
	}
	data, err := SerializeSyncRequest(s, V20)
	require.NoError(t, err)
	assert.Equal(t, SerializedSizeSyncRequest(s, V20), len(data))

	got, err := DeserializeSyncRequest(data, V20)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSnapshotCommandRoundTrips(t *testing.T) {
	c := SnapshotCommand{SessionID: "sess-1", Keyspace: "ks", Table: "tbl", Ephemeral: true}
	data, err := SerializeSnapshotCommand(c, V12)
	require.NoError(t, err)

	got, err := DeserializeSnapshotCommand(data, V12)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestRangeSliceCommandFieldPresenceByVersion(t *testing.T) {
	c := RangeSliceCommand{
		Keyspace:     "ks",
		ColumnFamily: "cf",
		Predicate:    []byte("predicate"),
		RowFilter:    [][]byte{[]byte("f1"), []byte("f2")},
		Bounds:       token.NewBounds(token.Token{0x00}, token.Token{0xff}),
		MaxResults:   100,
		MaxIsColumns: true,
		IsPaging:     true,
	}

	dataV11, err := SerializeRangeSliceCommand(c, V11)
	require.NoError(t, err)
	gotV11, err := DeserializeRangeSliceCommand(dataV11, V11)
	require.NoError(t, err)
	assert.Equal(t, c, gotV11)

	dataV20, err := SerializeRangeSliceCommand(c, V20)
	require.NoError(t, err)
	gotV20, err := DeserializeRangeSliceCommand(dataV20, V20)
	require.NoError(t, err)
	assert.Equal(t, c, gotV20)

	dataV10, err := SerializeRangeSliceCommand(c, V10)
	require.NoError(t, err)
	gotV10, err := DeserializeRangeSliceCommand(dataV10, V10)
	require.NoError(t, err)
	assert.Nil(t, gotV10.RowFilter)
	assert.False(t, gotV10.MaxIsColumns)
}

func TestRangeSliceCommandRejectsWrongVersionDecode(t *testing.T) {
	c := RangeSliceCommand{
		Keyspace:     "ks",
		ColumnFamily: "cf",
		Predicate:    []byte("p"),
		RowFilter:    [][]byte{[]byte("f1")},
		Bounds:       token.NewBounds(token.Token{0x00}, token.Token{0xff}),
		MaxResults:   1,
		MaxIsColumns: true,
		IsPaging:     false,
	}

	// Encoded at V12 (row_filter/max_is_columns/is_paging present);
	// decoding at V10 must leave trailing bytes and be rejected rather
	// than silently drop them.
	data, err := SerializeRangeSliceCommand(c, V12)
	require.NoError(t, err)

	_, err = DeserializeRangeSliceCommand(data, V10)
	assert.Error(t, err)
}

func TestTreeResponseRoundTrips(t *testing.T) {
	tr := merkle.New(token.NewRange(token.Token{0x00}, token.Token{0xff}), 2)
	tr.Init()
	leaf, ok := tr.Leaves().Next()
	require.True(t, ok)
	leaf.Fold(merkle.HashRow([]byte("row")))
	tr.Recompute()

	resp := TreeResponse{Request: sampleTreeRequest(), Tree: tr}
	data, err := SerializeTreeResponse(resp, V20)
	require.NoError(t, err)

	size, err := SerializedSizeTreeResponse(resp, V20)
	require.NoError(t, err)
	assert.Equal(t, size, len(data))

	got, err := DeserializeTreeResponse(data, V20)
	require.NoError(t, err)
	assert.Equal(t, resp.Request, got.Request)
	assert.Equal(t, tr.Recompute(), got.Tree.Recompute())
}

func TestFrameRoundTrip(t *testing.T) {
	req := sampleTreeRequest()
	payload, err := SerializeTreeRequest(req, V20)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, KindTreeRequest, V20, payload))

	kind, version, gotPayload, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, KindTreeRequest, kind)
	assert.Equal(t, V20, version)

	got, err := DeserializeTreeRequest(gotPayload, version)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}
