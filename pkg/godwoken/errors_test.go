package godwoken

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serverError mimics the structured error shape produced by the upstream
// client when the node returns a JSON-RPC error with attached data.
type serverError struct {
	code    int
	message string
	data    interface{}
}

func (e *serverError) Error() string          { return e.message }
func (e *serverError) ErrorCode() int         { return e.code }
func (e *serverError) ErrorData() interface{} { return e.data }

func systemLogHex(statusCode uint32) string {
	data := make([]byte, PolyjuiceSystemLogSize)
	binary.LittleEndian.PutUint64(data[0:8], 30000)
	binary.LittleEndian.PutUint64(data[8:16], 30000)
	binary.LittleEndian.PutUint32(data[32:36], statusCode)

	return hexutil.Encode(data)
}

// revertReturnData ABI-encodes an Error(string) revert blob for the given
// reason.
func revertReturnData(reason string) string {
	payload := []byte(reason)
	padded := make([]byte, (len(payload)+31)/32*32)
	copy(padded, payload)

	data := make([]byte, 0, 4+64+len(padded))
	data = append(data, 0x08, 0xc3, 0x79, 0xa0)

	offset := make([]byte, 32)
	offset[31] = 0x20
	data = append(data, offset...)

	length := make([]byte, 32)
	binary.BigEndian.PutUint64(length[24:], uint64(len(payload)))
	data = append(data, length...)
	data = append(data, padded...)

	return hexutil.Encode(data)
}

func TestTranslateErrorNil(t *testing.T) {
	assert.NoError(t, TranslateError(logrus.New(), nil))
}

func TestTranslateErrorRevert(t *testing.T) {
	err := &serverError{
		code:    5,
		message: "invalid exit code 2",
		data: map[string]interface{}{
			"last_log": map[string]interface{}{
				"data": systemLogHex(2),
			},
			"return_data": revertReturnData("insufficient balance"),
		},
	}

	translated := TranslateError(logrus.New(), err)
	require.Error(t, translated)

	rpcErr := &RPCError{}
	require.ErrorAs(t, translated, &rpcErr)

	assert.Equal(t, 5, rpcErr.Code)

	status := RevertStatus{}
	require.NoError(t, json.Unmarshal([]byte(rpcErr.Message), &status))

	assert.Equal(t, uint32(2), status.StatusCode)
	assert.Equal(t, "insufficient balance", status.StatusReason)
}

func TestTranslateErrorRevertWithoutReturnData(t *testing.T) {
	err := &serverError{
		code:    5,
		message: "invalid exit code 3",
		data: map[string]interface{}{
			"last_log": map[string]interface{}{
				"data": systemLogHex(3),
			},
		},
	}

	translated := TranslateError(logrus.New(), err)

	rpcErr := &RPCError{}
	require.ErrorAs(t, translated, &rpcErr)

	status := RevertStatus{}
	require.NoError(t, json.Unmarshal([]byte(rpcErr.Message), &status))

	assert.Equal(t, uint32(3), status.StatusCode)
	assert.Empty(t, status.StatusReason)
}

func TestTranslateErrorRevertBadSelector(t *testing.T) {
	err := &serverError{
		code: 5,
		data: map[string]interface{}{
			"last_log": map[string]interface{}{
				"data": systemLogHex(2),
			},
			"return_data": "0xdeadbeef",
		},
	}

	translated := TranslateError(logrus.New(), err)

	rpcErr := &RPCError{}
	require.ErrorAs(t, translated, &rpcErr)

	status := RevertStatus{}
	require.NoError(t, json.Unmarshal([]byte(rpcErr.Message), &status))

	// An unrecognized selector degrades to an empty reason, it does not
	// fail the translation.
	assert.Equal(t, uint32(2), status.StatusCode)
	assert.Empty(t, status.StatusReason)
}

func TestTranslateErrorServerErrorWithoutLog(t *testing.T) {
	err := &serverError{code: -32602, message: "invalid params"}

	translated := TranslateError(logrus.New(), err)

	rpcErr := &RPCError{}
	require.ErrorAs(t, translated, &rpcErr)

	assert.Equal(t, -32602, rpcErr.Code)
	assert.Equal(t, "invalid params", rpcErr.Message)
}

func TestTranslateErrorMalformedSystemLog(t *testing.T) {
	err := &serverError{
		code: 5,
		data: map[string]interface{}{
			"last_log": map[string]interface{}{
				"data": "0xdead",
			},
		},
	}

	translated := TranslateError(logrus.New(), err)
	require.Error(t, translated)

	// A present but undecodable system log is a hard failure, not a
	// classified error.
	rpcErr := &RPCError{}
	assert.False(t, errors.As(translated, &rpcErr))
}

func TestTranslateErrorNetwork(t *testing.T) {
	err := fmt.Errorf("request failed: %w", &url.Error{
		Op:  "Post",
		URL: "http://localhost:8119",
		Err: errors.New("connection refused"),
	})

	translated := TranslateError(logrus.New(), err)

	rpcErr := &RPCError{}
	require.ErrorAs(t, translated, &rpcErr)

	assert.Equal(t, CodeNetworkError, rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "connection refused")
}

func TestTranslateErrorGeneric(t *testing.T) {
	translated := TranslateError(logrus.New(), errors.New("something unexpected"))

	rpcErr := &RPCError{}
	require.ErrorAs(t, translated, &rpcErr)

	assert.Equal(t, CodeRequestError, rpcErr.Code)
	assert.Equal(t, "something unexpected", rpcErr.Message)
}
