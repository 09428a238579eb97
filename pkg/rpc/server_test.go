package rpc

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	log := logrus.New()
	pool := godwoken.NewPool(log, "test", &godwoken.Config{})

	return NewServer(log, &Config{Addr: ":0", ChainID: 71402}, pool)
}

func doRequest(t *testing.T, s *Server, body string) Response {
	t.Helper()

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	resp := Response{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	return resp
}

func TestServerNetVersion(t *testing.T) {
	resp := doRequest(t, newTestServer(t), `{"jsonrpc":"2.0","id":1,"method":"net_version","params":[]}`)

	require.Nil(t, resp.Error)
	assert.Equal(t, "71402", resp.Result)
	assert.Equal(t, float64(1), resp.ID)
}

func TestServerNetPeerCount(t *testing.T) {
	resp := doRequest(t, newTestServer(t), `{"jsonrpc":"2.0","id":2,"method":"net_peerCount"}`)

	require.Nil(t, resp.Error)
	assert.Equal(t, "0x0", resp.Result)
}

func TestServerNetListening(t *testing.T) {
	s := newTestServer(t)

	resp := doRequest(t, s, `{"jsonrpc":"2.0","id":3,"method":"net_listening"}`)

	require.Nil(t, resp.Error)
	assert.Equal(t, false, resp.Result)
}

func TestServerMethodNotFound(t *testing.T) {
	resp := doRequest(t, newTestServer(t), `{"jsonrpc":"2.0","id":4,"method":"eth_blockNumber"}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, float64(4), resp.ID)
}

func TestServerParseError(t *testing.T) {
	resp := doRequest(t, newTestServer(t), `{not json`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParseError, resp.Error.Code)
}

func TestServerMissingMethod(t *testing.T) {
	resp := doRequest(t, newTestServer(t), `{"jsonrpc":"2.0","id":5,"params":[]}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidRequest, resp.Error.Code)
}

func TestServerForwardNoHealthyNode(t *testing.T) {
	resp := doRequest(t, newTestServer(t), `{"jsonrpc":"2.0","id":6,"method":"gw_ping","params":[]}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, godwoken.CodeNetworkError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "no healthy godwoken node")
}

func TestServerRegistersAllForwardedMethods(t *testing.T) {
	s := newTestServer(t)

	assert.Len(t, ForwardedMethods, 17)

	for _, method := range ForwardedMethods {
		_, ok := s.handlers[method]
		assert.True(t, ok, "missing handler for %s", method)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"network", &godwoken.RPCError{Code: godwoken.CodeNetworkError}, "network"},
		{"request", &godwoken.RPCError{Code: godwoken.CodeRequestError}, "request"},
		{"revert", &godwoken.RPCError{Code: 5}, "revert"},
		{"decode failure", assert.AnError, "decode_failure"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.kind, errorKind(test.err))
		})
	}
}
