package rpc

import (
	"context"

	"github.com/ethpandaops/godwoken-proxy/pkg/common/metrics"
	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken"
)

// ForwardedMethods is the fixed set of upstream procedures the proxy exposes.
// Inbound and outbound method names are identical; params are forwarded
// verbatim and results returned unchanged.
var ForwardedMethods = []string{
	"gw_ping",
	"gw_get_tip_block_hash",
	"gw_get_block_hash",
	"gw_get_block",
	"gw_get_block_by_number",
	"gw_get_balance",
	"gw_get_storage_at",
	"gw_get_account_id_by_script_hash",
	"gw_get_nonce",
	"gw_get_script",
	"gw_get_script_hash",
	"gw_get_data",
	"gw_get_transaction_receipt",
	"gw_execute_l2transaction",
	"gw_execute_raw_l2transaction",
	"gw_submit_l2transaction",
	"gw_submit_withdrawal_request",
}

// forwardHandler binds one upstream method name to a passthrough handler.
func (s *Server) forwardHandler(method string) Handler {
	return func(ctx context.Context, params []interface{}) (interface{}, error) {
		n := s.pool.GetHealthyNode()
		if n == nil {
			return nil, &godwoken.RPCError{
				Code:    godwoken.CodeNetworkError,
				Message: "no healthy godwoken node available",
			}
		}

		result, err := n.Forward(ctx, method, params)
		if err != nil {
			translated := godwoken.TranslateError(s.log, err)

			metrics.TranslatedErrors.WithLabelValues(errorKind(translated)).Inc()

			return nil, translated
		}

		return result, nil
	}
}

func errorKind(err error) string {
	rpcErr, ok := err.(*godwoken.RPCError)
	if !ok {
		return "decode_failure"
	}

	switch rpcErr.Code {
	case godwoken.CodeNetworkError:
		return "network"
	case godwoken.CodeRequestError:
		return "request"
	default:
		return "revert"
	}
}
