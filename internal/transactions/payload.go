package transactions

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/magnifycash/backend/internal/blockchain"
)

// SignaturePlaceholder is swapped by the wallet for the permit2 signature it
// produces while submitting.
const SignaturePlaceholder = "PERMIT2_SIGNATURE_PLACEHOLDER_0"

const permitDeadline = 30 * time.Minute

type TokenPermissionsJSON struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type Permit2JSON struct {
	Permitted TokenPermissionsJSON `json:"permitted"`
	Nonce     string               `json:"nonce"`
	Deadline  string               `json:"deadline"`
	Spender   string               `json:"spender"`
}

// Payload is the transaction the mini-app hands to the wallet connector. It is
// returned with every result so the browser can submit it itself.
type Payload struct {
	Address      string        `json:"address"`
	FunctionName string        `json:"functionName"`
	Args         []any         `json:"args"`
	Data         string        `json:"data"`
	Permit2      []Permit2JSON `json:"permit2,omitempty"`
}

type payloadBuilder struct {
	lending    abi.ABI
	contract   common.Address
	collateral common.Address
}

func (b payloadBuilder) requestLoan(from common.Address) (blockchain.Transaction, Payload, error) {
	data, err := b.lending.Pack("requestLoan")
	if err != nil {
		return blockchain.Transaction{}, Payload{}, fmt.Errorf("pack requestLoan: %w", err)
	}
	tx := blockchain.Transaction{From: from, To: b.contract, FunctionName: "requestLoan", Data: data}
	return tx, Payload{
		Address:      b.contract.Hex(),
		FunctionName: "requestLoan",
		Args:         []any{},
		Data:         hexutil.Encode(data),
	}, nil
}

// repayLoan builds repayLoanWithPermit2 for amount. An empty signature packs
// the placeholder the wallet replaces.
func (b payloadBuilder) repayLoan(from common.Address, amount *big.Int, signature []byte, now time.Time) (blockchain.Transaction, Payload, error) {
	permit := blockchain.PermitTransferFrom{
		Permitted: blockchain.TokenPermissions{Token: b.collateral, Amount: new(big.Int).Set(amount)},
		Nonce:     big.NewInt(now.UnixMilli()),
		Deadline:  big.NewInt(now.Add(permitDeadline).Unix()),
	}
	details := blockchain.SignatureTransferDetails{To: b.contract, RequestedAmount: new(big.Int).Set(amount)}
	if len(signature) == 0 {
		signature = []byte(SignaturePlaceholder)
	}

	data, err := b.lending.Pack("repayLoanWithPermit2", permit, details, signature)
	if err != nil {
		return blockchain.Transaction{}, Payload{}, fmt.Errorf("pack repayLoanWithPermit2: %w", err)
	}
	grant := blockchain.Permit2Grant{PermitTransferFrom: permit, Spender: b.contract}
	tx := blockchain.Transaction{
		From:         from,
		To:           b.contract,
		FunctionName: "repayLoanWithPermit2",
		Data:         data,
		Permit2:      []blockchain.Permit2Grant{grant},
	}

	sigArg := SignaturePlaceholder
	if string(signature) != SignaturePlaceholder {
		sigArg = hexutil.Encode(signature)
	}
	return tx, Payload{
		Address:      b.contract.Hex(),
		FunctionName: "repayLoanWithPermit2",
		Args: []any{
			[]any{[]string{permit.Permitted.Token.Hex(), permit.Permitted.Amount.String()}, permit.Nonce.String(), permit.Deadline.String()},
			[]string{details.To.Hex(), details.RequestedAmount.String()},
			sigArg,
		},
		Data: hexutil.Encode(data),
		Permit2: []Permit2JSON{{
			Permitted: TokenPermissionsJSON{Token: permit.Permitted.Token.Hex(), Amount: permit.Permitted.Amount.String()},
			Nonce:     permit.Nonce.String(),
			Deadline:  permit.Deadline.String(),
			Spender:   b.contract.Hex(),
		}},
	}, nil
}
