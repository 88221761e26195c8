package subgraph

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Quantity is a subgraph BigInt. The indexer sends strings; fixtures and
// some gateways send bare numbers, so both decode.
type Quantity struct {
	*big.Int
}

func NewQuantity(v int64) Quantity {
	return Quantity{Int: big.NewInt(v)}
}

func (q *Quantity) UnmarshalJSON(raw []byte) error {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		q.Int = nil
		return nil
	}
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return fmt.Errorf("invalid BigInt %q", s)
	}
	q.Int = n
	return nil
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if q.Int == nil {
		return []byte("null"), nil
	}
	return json.Marshal(q.Int.String())
}

type Ref struct {
	ID string `json:"id"`
}

type ERC20 struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
}

type LendingDesk struct {
	ERC20 ERC20 `json:"erc20"`
}

// Loan is one historical loan as indexed by the subgraph. AmountDue is filled
// from the protocol contract after the query.
type Loan struct {
	ID             string      `json:"id"`
	Amount         Quantity    `json:"amount"`
	AmountPaidBack Quantity    `json:"amountPaidBack"`
	Duration       Quantity    `json:"duration"`
	StartTime      Quantity    `json:"startTime"`
	NFTCollection  Ref         `json:"nftCollection"`
	LendingDesk    LendingDesk `json:"lendingDesk"`
	NFTID          string      `json:"nftId"`
	Interest       string      `json:"interest"`
	Status         string      `json:"status"`
	Lender         Ref         `json:"lender"`
	AmountDue      *Quantity   `json:"paymentAmountDue,omitempty"`
}
