package rpc

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// The net_* accessors are stateless and never fail. Arguments are ignored.

// netVersion returns the statically configured chain id.
func (s *Server) netVersion(_ context.Context, _ []interface{}) (interface{}, error) {
	return strconv.FormatUint(s.config.ChainID, 10), nil
}

// netPeerCount always returns zero: the hosting network does not run
// peer-to-peer discovery.
func (s *Server) netPeerCount(_ context.Context, _ []interface{}) (interface{}, error) {
	return hexutil.Uint64(0), nil
}

// netListening reports the server's own listening state.
func (s *Server) netListening(_ context.Context, _ []interface{}) (interface{}, error) {
	return s.Listening(), nil
}
