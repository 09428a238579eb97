package godwoken

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePolyjuiceSystemLog(t *testing.T) {
	data := make([]byte, PolyjuiceSystemLogSize)
	binary.LittleEndian.PutUint64(data[0:8], 21000)
	binary.LittleEndian.PutUint64(data[8:16], 84000)

	for i := 0; i < 16; i++ {
		data[16+i] = byte(i + 1)
	}

	binary.LittleEndian.PutUint32(data[32:36], 2)

	sysLog, err := DecodePolyjuiceSystemLog(data)
	require.NoError(t, err)

	assert.Equal(t, uint64(21000), sysLog.GasUsed)
	assert.Equal(t, uint64(84000), sysLog.CumulativeGasUsed)
	assert.Equal(t, "0x0102030405060708090a0b0c0d0e0f10", sysLog.CreatedAddress)
	assert.Equal(t, uint32(2), sysLog.StatusCode)
}

func TestDecodePolyjuiceSystemLogZero(t *testing.T) {
	sysLog, err := DecodePolyjuiceSystemLog(make([]byte, PolyjuiceSystemLogSize))
	require.NoError(t, err)

	assert.Equal(t, uint64(0), sysLog.GasUsed)
	assert.Equal(t, uint64(0), sysLog.CumulativeGasUsed)
	assert.Equal(t, "0x00000000000000000000000000000000", sysLog.CreatedAddress)
	assert.Equal(t, uint32(0), sysLog.StatusCode)
}

func TestDecodePolyjuiceSystemLogInvalidLength(t *testing.T) {
	for _, length := range []int{0, 1, 39, 41, 100} {
		_, err := DecodePolyjuiceSystemLog(make([]byte, length))
		assert.Error(t, err, "length %d should be rejected", length)
	}
}
