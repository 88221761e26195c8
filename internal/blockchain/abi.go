package blockchain

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Subset of the lending contract interface that the backend reads and writes.
const lendingABIJSON = `[
  {"type":"function","name":"loanToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"tierCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"userNFT","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"nftToTier","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"tiers","stateMutability":"view","inputs":[{"name":"tierId","type":"uint256"}],"outputs":[
    {"name":"loanAmount","type":"uint256"},{"name":"interestRate","type":"uint256"},{"name":"loanPeriod","type":"uint256"}]},
  {"type":"function","name":"fetchLoansByAddress","stateMutability":"view","inputs":[{"name":"borrower","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"loans","stateMutability":"view","inputs":[{"name":"loanId","type":"uint256"}],"outputs":[
    {"name":"amount","type":"uint256"},{"name":"startTime","type":"uint256"},{"name":"isActive","type":"bool"},
    {"name":"interestRate","type":"uint256"},{"name":"loanPeriod","type":"uint256"}]},
  {"type":"function","name":"requestLoan","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"repayLoanWithPermit2","stateMutability":"nonpayable","inputs":[
    {"name":"permitTransferFrom","type":"tuple","components":[
      {"name":"permitted","type":"tuple","components":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}]},
      {"name":"nonce","type":"uint256"},
      {"name":"deadline","type":"uint256"}]},
    {"name":"transferDetails","type":"tuple","components":[{"name":"to","type":"address"},{"name":"requestedAmount","type":"uint256"}]},
    {"name":"signature","type":"bytes"}],"outputs":[]}
]`

const protocolABIJSON = `[
  {"type":"function","name":"getLoanAmountDue","stateMutability":"view","inputs":[{"name":"loanId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	lendingOnce sync.Once
	lendingABI  abi.ABI
	lendingErr  error

	protocolOnce sync.Once
	protocolABI  abi.ABI
	protocolErr  error
)

func LendingABI() (abi.ABI, error) {
	lendingOnce.Do(func() {
		lendingABI, lendingErr = abi.JSON(strings.NewReader(lendingABIJSON))
		if lendingErr != nil {
			lendingErr = fmt.Errorf("parse lending abi: %w", lendingErr)
		}
	})
	return lendingABI, lendingErr
}

func ProtocolABI() (abi.ABI, error) {
	protocolOnce.Do(func() {
		protocolABI, protocolErr = abi.JSON(strings.NewReader(protocolABIJSON))
		if protocolErr != nil {
			protocolErr = fmt.Errorf("parse protocol abi: %w", protocolErr)
		}
	})
	return protocolABI, protocolErr
}
