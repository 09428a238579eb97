package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIndexBlockTask(t *testing.T) {
	task, err := NewIndexBlockTask(&IndexBlockPayload{BlockNumber: 12345})
	require.NoError(t, err)

	assert.Equal(t, IndexBlockTaskType, task.Type())
	assert.JSONEq(t, `{"block_number":12345}`, string(task.Payload()))
}

func TestIndexBlockPayloadRoundTrip(t *testing.T) {
	original := &IndexBlockPayload{BlockNumber: 987654321}

	data, err := original.MarshalBinary()
	require.NoError(t, err)

	decoded := &IndexBlockPayload{}
	require.NoError(t, decoded.UnmarshalBinary(data))

	assert.Equal(t, original.BlockNumber, decoded.BlockNumber)
}

func TestIndexBlockPayloadUnmarshalInvalid(t *testing.T) {
	decoded := &IndexBlockPayload{}
	assert.Error(t, decoded.UnmarshalBinary([]byte("not json")))
}
