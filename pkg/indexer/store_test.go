package indexer

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestPlaceholderGroup(t *testing.T) {
	assert.Equal(t, "($1, $2, $3)", placeholderGroup(0, 3))
	assert.Equal(t, "($9, $10)", placeholderGroup(8, 2))
	assert.Equal(t, "($5)", placeholderGroup(4, 1))
}

func TestBigString(t *testing.T) {
	assert.Equal(t, "0", bigString(nil))

	value := hexutil.Big(*big.NewInt(1234567890))
	assert.Equal(t, "1234567890", bigString(&value))
}

func TestNullableBytes(t *testing.T) {
	assert.Nil(t, nullableBytes(nil))
	assert.Nil(t, nullableBytes(hexutil.Bytes{}))
	assert.Equal(t, []byte{0xde, 0xad}, nullableBytes(hexutil.Bytes{0xde, 0xad}))
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, IsDuplicateKey(&pq.Error{Code: "23505"}))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert failed: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsDuplicateKey(&pq.Error{Code: "42P01"}))
	assert.False(t, IsDuplicateKey(errors.New("not a pq error")))
	assert.False(t, IsDuplicateKey(nil))
}
