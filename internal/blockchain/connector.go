package blockchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type TxStatus string

const (
	TxSuccess TxStatus = "success"
	TxFailed  TxStatus = "failed"
)

const ErrorCodeUserRejected = "user_rejected"

// TokenPermissions and PermitTransferFrom mirror Permit2's ISignatureTransfer
// structs; field names match the ABI tuple components for packing.
type TokenPermissions struct {
	Token  common.Address
	Amount *big.Int
}

type PermitTransferFrom struct {
	Permitted TokenPermissions
	Nonce     *big.Int
	Deadline  *big.Int
}

type SignatureTransferDetails struct {
	To              common.Address
	RequestedAmount *big.Int
}

// Permit2Grant is the off-chain permission the wallet signs alongside the call.
type Permit2Grant struct {
	PermitTransferFrom
	Spender common.Address
}

type Transaction struct {
	From         common.Address
	To           common.Address
	FunctionName string
	Data         []byte
	Permit2      []Permit2Grant
}

// SendResult is what the wallet connector reports for a submission.
type SendResult struct {
	Status          TxStatus
	TransactionID   string
	ErrorCode       string
	SimulationError string
}

// Connector submits a transaction on behalf of an authenticated wallet.
type Connector interface {
	SendTransaction(ctx context.Context, tx Transaction) (SendResult, error)
}
