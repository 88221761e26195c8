package blockchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 code wallets and signer proxies return when the user declines.
const rpcCodeUserRejected = 4001

// RPCConnector submits through eth_sendTransaction on a node that manages the
// sender's key (dev chains, signer proxies).
type RPCConnector struct {
	rpc      *rpc.Client
	gasLimit uint64
}

func NewRPCConnector(ctx context.Context, httpURL string, gasLimit uint64) (*RPCConnector, error) {
	client, err := DialRPC(ctx, httpURL)
	if err != nil {
		return nil, err
	}
	if gasLimit == 0 {
		gasLimit = 300000
	}
	return &RPCConnector{rpc: client, gasLimit: gasLimit}, nil
}

func (c *RPCConnector) Close() {
	c.rpc.Close()
}

func (c *RPCConnector) SendTransaction(ctx context.Context, tx Transaction) (SendResult, error) {
	if len(tx.Data) < 4 {
		return SendResult{}, fmt.Errorf("missing calldata")
	}
	txObj := map[string]string{
		"from":  tx.From.Hex(),
		"to":    tx.To.Hex(),
		"gas":   hexutil.EncodeUint64(c.gasLimit),
		"data":  hexutil.Encode(tx.Data),
		"value": "0x0",
	}

	var txHash string
	err := c.rpc.CallContext(ctx, &txHash, "eth_sendTransaction", txObj)
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			if rpcErr.ErrorCode() == rpcCodeUserRejected {
				return SendResult{Status: TxFailed, ErrorCode: ErrorCodeUserRejected}, nil
			}
			return SendResult{Status: TxFailed, ErrorCode: "simulation_failed", SimulationError: rpcErr.Error()}, nil
		}
		return SendResult{}, err
	}
	if !strings.HasPrefix(txHash, "0x") {
		return SendResult{}, fmt.Errorf("invalid tx hash response")
	}
	return SendResult{Status: TxSuccess, TransactionID: txHash}, nil
}
