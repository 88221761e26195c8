package subgraph

import (
	"fmt"
	"math/big"
)

// MockLoans is the fixed history served when the subgraph runs in mock mode.
func MockLoans() []Loan {
	nftID, _ := new(big.Int).SetString("95653987387216960243241356308258588196024915877825431379161602519009139400941", 10)
	loans := make([]Loan, 5)
	for i := range loans {
		due := NewQuantity(100)
		loans[i] = Loan{
			ID:             fmt.Sprintf("1-%d", i+1),
			Amount:         NewQuantity(1_000_000_000),
			AmountPaidBack: NewQuantity(1_000_010_273),
			Duration:       NewQuantity(24),
			StartTime:      NewQuantity(1_728_754_349),
			NFTCollection:  Ref{ID: "0x03c4738ee98ae44591e1a4a4f3cab6641d95dd9a"},
			LendingDesk: LendingDesk{ERC20: ERC20{
				ID:       "0x47b464edb8dc9bc67b5cd4c9310bb87b773845bd",
				Symbol:   "NORMIE",
				Decimals: "9",
			}},
			NFTID:     nftID.String(),
			Interest:  "100",
			Status:    "Resolved",
			Lender:    Ref{ID: "0x6856355aa4321b88eaaecad2db05ff9c92e69731"},
			AmountDue: &due,
		}
	}
	return loans
}
