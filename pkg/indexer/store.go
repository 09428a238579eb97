package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/godwoken-proxy/pkg/common/metrics"
	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken/node"
)

// insertLogsBatchSize caps the number of rows per logs INSERT statement.
const insertLogsBatchSize = 5000

// Store persists indexed web3 data to Postgres.
type Store struct {
	log logrus.FieldLogger
	db  *sql.DB
}

func NewStore(log logrus.FieldLogger, config *StorageConfig) (*Store, error) {
	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)

	return &Store{
		log: log.WithField("component", "indexer/store"),
		db:  db,
	}, nil
}

func (s *Store) Start(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LastBlockNumber returns the highest stored block number. The second return
// value is false when no blocks have been stored yet.
func (s *Store) LastBlockNumber(ctx context.Context) (uint64, bool, error) {
	var n sql.NullInt64

	if err := s.db.QueryRowContext(ctx, `SELECT MAX(number) FROM blocks`).Scan(&n); err != nil {
		return 0, false, fmt.Errorf("failed to query last block number: %w", err)
	}

	if !n.Valid {
		return 0, false, nil
	}

	return uint64(n.Int64), true, nil
}

// HasBlock reports whether the given block number is already stored.
func (s *Store) HasBlock(ctx context.Context, number uint64) (bool, error) {
	var exists bool

	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM blocks WHERE number = $1)`, int64(number)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query block existence: %w", err)
	}

	return exists, nil
}

// InsertBlock writes a block, its transactions, and their logs in a single
// database transaction. receipts[i] must correspond to
// block.Transactions[i].
func (s *Store) InsertBlock(ctx context.Context, block *node.Block, receipts []*node.Receipt) error {
	if len(receipts) != len(block.Transactions) {
		return fmt.Errorf("receipt count mismatch: got %d receipts for %d transactions", len(receipts), len(block.Transactions))
	}

	start := time.Now()

	err := s.insertBlock(ctx, block, receipts)

	status := "success"
	if err != nil {
		status = "error"
	}

	metrics.StoreOperationDuration.WithLabelValues("insert_block", status).Observe(time.Since(start).Seconds())

	return err
}

func (s *Store) insertBlock(ctx context.Context, block *node.Block, receipts []*node.Receipt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO blocks (number, hash, parent_hash, gas_limit, gas_used, timestamp, miner, size)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		int64(block.Number),
		block.Hash.Bytes(),
		block.ParentHash.Bytes(),
		int64(block.GasLimit),
		int64(block.GasUsed),
		time.Unix(int64(block.Timestamp), 0).UTC(),
		[]byte(block.Miner),
		int64(block.Size),
	); err != nil {
		return fmt.Errorf("failed to insert block %d: %w", block.Number, err)
	}

	metrics.StoreRowsInserted.WithLabelValues("blocks").Inc()

	if len(block.Transactions) == 0 {
		return tx.Commit()
	}

	txIDs, err := s.insertTransactions(ctx, tx, block, receipts)
	if err != nil {
		return err
	}

	if err := s.insertLogs(ctx, tx, block, receipts, txIDs); err != nil {
		return err
	}

	return tx.Commit()
}

const transactionColumns = `hash, eth_tx_hash, block_number, block_hash, transaction_index,
	from_address, to_address, value, nonce, gas_limit, gas_price, input, v, r, s,
	cumulative_gas_used, gas_used, contract_address, exit_code`

func (s *Store) insertTransactions(ctx context.Context, tx *sql.Tx, block *node.Block, receipts []*node.Receipt) ([]int64, error) {
	const numCols = 19

	placeholders := make([]string, 0, len(block.Transactions))
	args := make([]interface{}, 0, len(block.Transactions)*numCols)

	for i, t := range block.Transactions {
		receipt := receipts[i]

		base := i * numCols
		placeholders = append(placeholders, placeholderGroup(base, numCols))

		args = append(args,
			t.Hash.Bytes(),
			t.EthTxHash.Bytes(),
			int64(block.Number),
			block.Hash.Bytes(),
			int64(t.TransactionIndex),
			[]byte(t.FromAddress),
			nullableBytes(t.ToAddress),
			bigString(t.Value),
			int64(t.Nonce),
			bigString(t.GasLimit),
			bigString(t.GasPrice),
			[]byte(t.Input),
			int64(t.V),
			[]byte(t.R),
			[]byte(t.S),
			bigString(receipt.CumulativeGasUsed),
			bigString(receipt.GasUsed),
			nullableBytes(receipt.ContractAddress),
			int64(receipt.ExitCode),
		)
	}

	query := fmt.Sprintf(
		`INSERT INTO transactions (%s) VALUES %s RETURNING id`,
		transactionColumns,
		strings.Join(placeholders, ", "),
	)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transactions for block %d: %w", block.Number, err)
	}

	defer rows.Close()

	txIDs := make([]int64, 0, len(block.Transactions))

	for rows.Next() {
		var id int64

		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan transaction id: %w", err)
		}

		txIDs = append(txIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transaction ids: %w", err)
	}

	metrics.StoreRowsInserted.WithLabelValues("transactions").Add(float64(len(txIDs)))

	return txIDs, nil
}

type logRow struct {
	txID     int64
	txHash   []byte
	txIndex  int64
	address  []byte
	data     []byte
	logIndex int64
	topics   [][]byte
}

func (s *Store) insertLogs(ctx context.Context, tx *sql.Tx, block *node.Block, receipts []*node.Receipt, txIDs []int64) error {
	rows := make([]logRow, 0)

	for i, receipt := range receipts {
		for _, l := range receipt.Logs {
			topics := make([][]byte, 0, len(l.Topics))
			for _, topic := range l.Topics {
				topics = append(topics, topic.Bytes())
			}

			rows = append(rows, logRow{
				txID:     txIDs[i],
				txHash:   block.Transactions[i].Hash.Bytes(),
				txIndex:  int64(block.Transactions[i].TransactionIndex),
				address:  []byte(l.Address),
				data:     []byte(l.Data),
				logIndex: int64(l.LogIndex),
				topics:   topics,
			})
		}
	}

	if len(rows) == 0 {
		return nil
	}

	const numCols = 9

	for batchStart := 0; batchStart < len(rows); batchStart += insertLogsBatchSize {
		batchEnd := min(batchStart+insertLogsBatchSize, len(rows))
		batch := rows[batchStart:batchEnd]

		placeholders := make([]string, 0, len(batch))
		args := make([]interface{}, 0, len(batch)*numCols)

		for i, row := range batch {
			placeholders = append(placeholders, placeholderGroup(i*numCols, numCols))

			args = append(args,
				row.txID,
				row.txHash,
				row.txIndex,
				int64(block.Number),
				block.Hash.Bytes(),
				row.address,
				row.data,
				row.logIndex,
				pq.ByteaArray(row.topics),
			)
		}

		query := fmt.Sprintf(
			`INSERT INTO logs (transaction_id, transaction_hash, transaction_index, block_number, block_hash, address, data, log_index, topics) VALUES %s`,
			strings.Join(placeholders, ", "),
		)

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert logs for block %d: %w", block.Number, err)
		}
	}

	metrics.StoreRowsInserted.WithLabelValues("logs").Add(float64(len(rows)))

	return nil
}

// placeholderGroup renders "($1, $2, ...)" starting after base.
func placeholderGroup(base, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", base+i+1)
	}

	return "(" + strings.Join(parts, ", ") + ")"
}

func bigString(b *hexutil.Big) string {
	if b == nil {
		return "0"
	}

	return (*big.Int)(b).String()
}

func nullableBytes(b hexutil.Bytes) interface{} {
	if len(b) == 0 {
		return nil
	}

	return []byte(b)
}

// IsDuplicateKey reports whether err is a Postgres unique violation, which
// happens when two workers race to index the same block.
func IsDuplicateKey(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	return false
}
