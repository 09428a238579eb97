package node

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ethpandaops/godwoken-proxy/pkg/common/metrics"
)

const (
	STATUS_ERROR   = "error"
	STATUS_SUCCESS = "success"
)

// call issues a single upstream round trip and records per-call metrics.
// There is no retry and no local timeout; the caller's context bounds the
// request lifetime.
func (n *Node) call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	start := time.Now()
	err := n.client.CallContext(ctx, result, method, params...)
	duration := time.Since(start)

	status := STATUS_SUCCESS
	if err != nil {
		status = STATUS_ERROR
	}

	metrics.RPCCallDuration.WithLabelValues(n.config.Name, method, status).Observe(duration.Seconds())
	metrics.RPCCallsTotal.WithLabelValues(n.config.Name, method, status).Inc()

	return err
}

// Forward sends method upstream with the positional params passed through
// verbatim and returns the raw result unchanged. Errors are returned as
// raised by the client boundary; translation happens in the caller.
func (n *Node) Forward(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	var result json.RawMessage

	if err := n.call(ctx, method, &result, params...); err != nil {
		return nil, err
	}

	return result, nil
}

func (n *Node) Ping(ctx context.Context) (string, error) {
	var pong string

	if err := n.call(ctx, "gw_ping", &pong); err != nil {
		return "", err
	}

	return pong, nil
}

func (n *Node) TipBlockHash(ctx context.Context) (common.Hash, error) {
	var hash common.Hash

	if err := n.call(ctx, "gw_get_tip_block_hash", &hash); err != nil {
		return common.Hash{}, err
	}

	return hash, nil
}

func (n *Node) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	var block *Block

	if err := n.call(ctx, "gw_get_block_by_number", &block, hexutil.Uint64(number)); err != nil {
		return nil, err
	}

	return block, nil
}

func (n *Node) BlockByHash(ctx context.Context, hash common.Hash) (*Block, error) {
	var block *Block

	if err := n.call(ctx, "gw_get_block", &block, hash); err != nil {
		return nil, err
	}

	return block, nil
}

func (n *Node) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var receipt *Receipt

	if err := n.call(ctx, "gw_get_transaction_receipt", &receipt, hash); err != nil {
		return nil, err
	}

	return receipt, nil
}

func (n *Node) NodeInfo(ctx context.Context) (*NodeInfo, error) {
	var info *NodeInfo

	if err := n.call(ctx, "gw_get_node_info", &info); err != nil {
		return nil, err
	}

	return info, nil
}
