package godwoken

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// JSON-RPC error codes emitted by the proxy. Reverted executions carry the
// upstream node's own code instead.
const (
	// CodeRequestError is the generic bucket for upstream failures that are
	// neither a structured server error nor a transport failure.
	CodeRequestError = -32000

	// CodeNetworkError indicates the upstream node could not be reached.
	CodeNetworkError = -32001
)

// RPCError is the error envelope returned to inbound callers, serialized on
// the wire as {code, message}.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// ErrorCode implements the rpc.Error interface so the outer dispatcher can
// surface the code without unwrapping.
func (e *RPCError) ErrorCode() int {
	return e.Code
}

// RevertStatus is the structured payload carried in the message of a
// translated execution revert.
type RevertStatus struct {
	StatusCode   uint32 `json:"status_code"`
	StatusReason string `json:"status_reason"`
}

// revertData is the data object attached by the upstream node to a reverted
// polyjuice execution.
type revertData struct {
	LastLog *struct {
		Data string `json:"data"`
	} `json:"last_log"`
	ReturnData string `json:"return_data"`
}

// TranslateError converts an error raised by the upstream client boundary
// into the proxy's error envelope. Classification is a strict three-way
// split, checked in priority order:
//
//  1. A structured server error whose data carries a polyjuice system log:
//     decoded into {status_code, status_reason} and returned under the
//     upstream's own error code.
//  2. A transport-level failure: returned under CodeNetworkError with the
//     original message text.
//  3. Anything else: returned under CodeRequestError with the original
//     message text.
//
// The returned error is always non-nil for non-nil input.
func TranslateError(log logrus.FieldLogger, err error) error {
	if err == nil {
		return nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return translateServerError(log, rpcErr, err)
	}

	var urlErr *url.Error

	var netErr net.Error

	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &RPCError{Code: CodeNetworkError, Message: err.Error()}
	}

	return &RPCError{Code: CodeRequestError, Message: err.Error()}
}

func translateServerError(log logrus.FieldLogger, rpcErr rpc.Error, err error) error {
	rd, ok := extractRevertData(err)
	if !ok {
		// Structured server error without a system log: keep the upstream
		// code and message as-is.
		return &RPCError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	}

	logData, decodeErr := hexutil.Decode(rd.LastLog.Data)
	if decodeErr != nil {
		return fmt.Errorf("malformed system log hex in upstream error: %w", decodeErr)
	}

	sysLog, decodeErr := DecodePolyjuiceSystemLog(logData)
	if decodeErr != nil {
		return decodeErr
	}

	status := RevertStatus{
		StatusCode:   sysLog.StatusCode,
		StatusReason: decodeRevertReason(log, rd.ReturnData),
	}

	message, marshalErr := json.Marshal(status)
	if marshalErr != nil {
		return fmt.Errorf("failed to serialize revert status: %w", marshalErr)
	}

	return &RPCError{Code: rpcErr.ErrorCode(), Message: string(message)}
}

// extractRevertData pulls the {last_log, return_data} object out of a
// structured upstream error, if present.
func extractRevertData(err error) (*revertData, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}

	data := dataErr.ErrorData()
	if data == nil {
		return nil, false
	}

	// The data arrives as whatever the JSON decoder produced; round-trip
	// through JSON to land it in our shape.
	raw, marshalErr := json.Marshal(data)
	if marshalErr != nil {
		return nil, false
	}

	rd := &revertData{}
	if unmarshalErr := json.Unmarshal(raw, rd); unmarshalErr != nil {
		return nil, false
	}

	if rd.LastLog == nil || rd.LastLog.Data == "" {
		return nil, false
	}

	return rd, true
}

// decodeRevertReason extracts the revert reason string from the return data
// of a reverted execution. The blob is expected to be a 4-byte Error(string)
// selector followed by the ABI-encoded reason; an unexpected selector or a
// malformed payload yields an empty reason rather than failing the
// translation.
func decodeRevertReason(log logrus.FieldLogger, returnData string) string {
	if returnData == "" {
		return ""
	}

	data, err := hexutil.Decode(returnData)
	if err != nil {
		log.WithError(err).WithField("return_data", returnData).Debug("Malformed return data in revert")

		return ""
	}

	reason, err := abi.UnpackRevert(data)
	if err != nil {
		log.WithError(err).Debug("Failed to unpack revert reason")

		return ""
	}

	return reason
}
