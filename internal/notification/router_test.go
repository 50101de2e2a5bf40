package notification

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingest-router/internal/common/errors"
)

func TestNewEndpointRouter(t *testing.T) {
	transport := newRecordingTransport()

	r, err := NewEndpointRouter(&Rule{EndpointName: "a", EndpointType: Direct, Format: RawIdentifier}, transport, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", r.Route())

	_, err = NewEndpointRouter(&Rule{EndpointName: "a", EndpointType: Direct, Format: "PDO"}, transport, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	_, err = NewEndpointRouter(&Rule{EndpointName: "a", EndpointType: Direct, Format: RawIdentifier}, nil, nil)
	assert.Error(t, err)
}

func TestRouter_Formats(t *testing.T) {
	transport := newRecordingTransport()

	raw, err := NewEndpointRouter(&Rule{EndpointName: "raw", EndpointType: Direct, Format: RawIdentifier}, transport, nil)
	require.NoError(t, err)
	full, err := NewEndpointRouter(&Rule{EndpointName: "full", EndpointType: Direct, Format: FullRecord}, transport, nil)
	require.NoError(t, err)

	rec := record("obs-1", map[string]string{"plugin": "obs"})
	raw.Process(rec)
	full.Process(rec)
	full.Process(MapRecord{ID: "bare"})

	require.NoError(t, raw.SendImmediateData())
	require.NoError(t, full.SendImmediateData())

	require.Len(t, transport.deliveries, 2)
	assert.Equal(t, []string{"obs-1"}, transport.deliveries[0].Identifiers)
	assert.Empty(t, transport.deliveries[0].Records)

	records := transport.deliveries[1].Records
	require.Len(t, records, 2)
	assert.Equal(t, recordEntry{Identity: "obs-1", Attributes: map[string]string{"plugin": "obs"}}, records[0])
	assert.Equal(t, recordEntry{Identity: "bare"}, records[1])
}

func TestRouter_PendingAndFailure(t *testing.T) {
	transport := newRecordingTransport()
	transport.failEndpoint("q", fmt.Errorf("broker down"))

	r, err := NewEndpointRouter(&Rule{EndpointName: "q", EndpointType: Queue, Format: RawIdentifier}, transport, nil)
	require.NoError(t, err)

	assert.False(t, r.HasPendingData())
	require.NoError(t, r.SendQueuedData(), "nothing to send")

	r.Process(record("a", nil))
	assert.True(t, r.HasPendingData())

	require.NoError(t, r.SendImmediateData())
	assert.True(t, r.HasPendingData(), "queue endpoints hold data for the queued flush")

	err = r.SendQueuedData()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
	assert.Contains(t, err.Error(), "broker down")
	assert.False(t, r.HasPendingData(), "a failed batch is dropped")
}

func TestRule(t *testing.T) {
	assert.True(t, (&Rule{}).ReceiveAll())
	assert.True(t, (&Rule{ConstraintGroups: []map[string]string{{}}}).ReceiveAll())
	assert.False(t, (&Rule{ConstraintGroups: []map[string]string{{"a": "b"}}}).ReceiveAll())

	assert.True(t, Queue.Queued())
	assert.True(t, Topic.Queued())
	assert.False(t, Broadcast.Queued())
	assert.False(t, EndpointType("VM").Valid())
	assert.True(t, FullRecord.Valid())
	assert.False(t, Format("PDO").Valid())
}
