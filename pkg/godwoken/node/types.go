package node

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Block is an L2 block as returned by gw_get_block_by_number, trimmed to the
// fields the proxy consumes.
type Block struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         common.Hash    `json:"hash"`
	ParentHash   common.Hash    `json:"parent_hash"`
	GasLimit     hexutil.Uint64 `json:"gas_limit"`
	GasUsed      hexutil.Uint64 `json:"gas_used"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	Miner        hexutil.Bytes  `json:"miner"`
	Size         hexutil.Uint64 `json:"size"`
	Transactions []Transaction  `json:"transactions"`
}

// Transaction is an L2 transaction embedded in a Block.
type Transaction struct {
	Hash             common.Hash    `json:"hash"`
	EthTxHash        common.Hash    `json:"eth_tx_hash"`
	TransactionIndex hexutil.Uint   `json:"transaction_index"`
	FromAddress      hexutil.Bytes  `json:"from_address"`
	ToAddress        hexutil.Bytes  `json:"to_address"`
	Value            *hexutil.Big   `json:"value"`
	Nonce            hexutil.Uint64 `json:"nonce"`
	GasLimit         *hexutil.Big   `json:"gas_limit"`
	GasPrice         *hexutil.Big   `json:"gas_price"`
	Input            hexutil.Bytes  `json:"input"`
	V                hexutil.Uint64 `json:"v"`
	R                hexutil.Bytes  `json:"r"`
	S                hexutil.Bytes  `json:"s"`
}

// Receipt is the execution receipt for an L2 transaction as returned by
// gw_get_transaction_receipt.
type Receipt struct {
	TransactionHash   common.Hash    `json:"transaction_hash"`
	TransactionIndex  hexutil.Uint   `json:"transaction_index"`
	GasUsed           *hexutil.Big   `json:"gas_used"`
	CumulativeGasUsed *hexutil.Big   `json:"cumulative_gas_used"`
	ContractAddress   hexutil.Bytes  `json:"contract_address"`
	ExitCode          hexutil.Uint64 `json:"exit_code"`
	Logs              []Log          `json:"logs"`
}

// Log is a single log entry within a Receipt.
type Log struct {
	Address  hexutil.Bytes `json:"address"`
	Topics   []common.Hash `json:"topics"`
	Data     hexutil.Bytes `json:"data"`
	LogIndex hexutil.Uint  `json:"log_index"`
}

// NodeInfo is the upstream node's self-description from gw_get_node_info.
type NodeInfo struct {
	Version string `json:"version"`
	Mode    string `json:"mode"`
}
