package godwoken

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PolyjuiceSystemLogSize is the exact byte length of a polyjuice system log
// record as emitted by the upstream node.
const PolyjuiceSystemLogSize = 40

const createdAddressSize = 16

// PolyjuiceSystemLog is the decoded fixed-layout system log attached to a
// reverted polyjuice execution. All integers are little-endian on the wire.
type PolyjuiceSystemLog struct {
	GasUsed           uint64
	CumulativeGasUsed uint64
	// CreatedAddress is the raw 16-byte address, 0x-prefixed hex encoded.
	CreatedAddress string
	StatusCode     uint32
}

// DecodePolyjuiceSystemLog decodes a raw system log record. The record must
// be exactly PolyjuiceSystemLogSize bytes; any other length is an error.
// The trailing 4 bytes of the record are not interpreted.
func DecodePolyjuiceSystemLog(data []byte) (*PolyjuiceSystemLog, error) {
	if len(data) != PolyjuiceSystemLogSize {
		return nil, fmt.Errorf("invalid polyjuice system log length: got %d bytes, want %d", len(data), PolyjuiceSystemLogSize)
	}

	return &PolyjuiceSystemLog{
		GasUsed:           binary.LittleEndian.Uint64(data[0:8]),
		CumulativeGasUsed: binary.LittleEndian.Uint64(data[8:16]),
		CreatedAddress:    hexutil.Encode(data[16 : 16+createdAddressSize]),
		StatusCode:        binary.LittleEndian.Uint32(data[32:36]),
	}, nil
}
