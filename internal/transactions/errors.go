package transactions

import (
	"errors"
	"strings"

	"github.com/magnifycash/backend/internal/blockchain"
)

var (
	ErrSnapshotUnavailable = errors.New("contract data unavailable")
	ErrNoNFT               = errors.New("wallet holds no verification nft")
	ErrActiveLoan          = errors.New("wallet already has an active loan")
	ErrNoActiveLoan        = errors.New("wallet has no active loan")
	ErrInvalidSignature    = errors.New("invalid permit2 signature")
	ErrUnknownTransaction  = errors.New("unknown transaction")
	ErrTooManyPending      = errors.New("too many pending transactions")
)

// FailureReason turns a failed submission into the message shown to the user.
func FailureReason(res blockchain.SendResult) string {
	if res.ErrorCode == blockchain.ErrorCodeUserRejected {
		return "User rejected transaction"
	}
	return "Transaction failed: " + revertReason(res)
}

func revertReason(res blockchain.SendResult) string {
	if _, after, ok := strings.Cut(res.SimulationError, "string: "); ok {
		return strings.TrimSpace(after)
	}
	if res.SimulationError != "" {
		return res.SimulationError
	}
	if res.ErrorCode != "" {
		return res.ErrorCode
	}
	return "unknown error"
}
