package indexer

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// IndexBlockTaskType is the task type for indexing a single L2 block.
const IndexBlockTaskType = "index_block"

// IndexBlockPayload represents the payload for indexing a block.
//
//nolint:tagliatelle // snake_case required for backwards compatibility with queued tasks
type IndexBlockPayload struct {
	BlockNumber uint64 `json:"block_number"`
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p *IndexBlockPayload) MarshalBinary() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *IndexBlockPayload) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, p)
}

// NewIndexBlockTask creates a new index task for the given block.
func NewIndexBlockTask(payload *IndexBlockPayload) (*asynq.Task, error) {
	data, err := payload.MarshalBinary()
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(IndexBlockTaskType, data), nil
}
