package blockchain

import (
	"context"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

func IsTxHash(v string) bool {
	return txHashPattern.MatchString(strings.TrimSpace(v))
}

// ReceiptSource looks up mined transactions. ethclient.Client satisfies it and
// returns ethereum.NotFound while a transaction is pending.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// StubReceiptSource confirms every transaction immediately. It pairs with
// StubConnector in local development.
type StubReceiptSource struct{}

func (StubReceiptSource) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: txHash}, nil
}
