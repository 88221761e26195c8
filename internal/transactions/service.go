package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"github.com/magnifycash/backend/internal/aggregator"
	"github.com/magnifycash/backend/internal/blockchain"
	"github.com/magnifycash/backend/internal/domain/lending"
)

type Snapshots interface {
	Get(ctx context.Context, wallet string) aggregator.View
	Refetch(ctx context.Context, wallet string) aggregator.View
}

type Result struct {
	Status        blockchain.TxStatus `json:"status"`
	TransactionID string              `json:"transactionId,omitempty"`
	Error         string              `json:"error,omitempty"`
	Payload       Payload             `json:"payload"`
}

type Service struct {
	connector blockchain.Connector
	snapshots Snapshots
	watcher   *Watcher
	verifier  NFTVerifier
	builder   payloadBuilder
	now       func() time.Time
	log       zerolog.Logger
}

func NewService(connector blockchain.Connector, snapshots Snapshots, watcher *Watcher, verifier NFTVerifier, lendingABI abi.ABI, contract, collateral string, log zerolog.Logger) (*Service, error) {
	if !blockchain.IsAddress(contract) {
		return nil, fmt.Errorf("invalid lending contract address %q", contract)
	}
	if !blockchain.IsAddress(collateral) {
		return nil, fmt.Errorf("invalid collateral token address %q", collateral)
	}
	return &Service{
		connector: connector,
		snapshots: snapshots,
		watcher:   watcher,
		verifier:  verifier,
		builder: payloadBuilder{
			lending:    lendingABI,
			contract:   common.HexToAddress(contract),
			collateral: common.HexToAddress(collateral),
		},
		now: time.Now,
		log: log.With().Str("component", "transactions").Logger(),
	}, nil
}

func (s *Service) snapshot(ctx context.Context, wallet string) (*lending.ContractData, error) {
	view := s.snapshots.Get(ctx, wallet)
	if view.Data == nil {
		return nil, ErrSnapshotUnavailable
	}
	return view.Data, nil
}

// RequestLoan submits requestLoan() for a verified wallet without an active loan.
func (s *Service) RequestLoan(ctx context.Context, wallet string) (*Result, error) {
	data, err := s.snapshot(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if !data.NFTInfo.Verified() {
		return nil, ErrNoNFT
	}
	if data.HasActiveLoan() {
		return nil, ErrActiveLoan
	}

	tx, payload, err := s.builder.requestLoan(common.HexToAddress(wallet))
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, wallet, tx, payload), nil
}

// RepayLoan submits repayLoanWithPermit2 for the active loan's amount due.
// signatureHex may be empty, in which case the wallet placeholder is used.
func (s *Service) RepayLoan(ctx context.Context, wallet, signatureHex string) (*Result, error) {
	data, err := s.snapshot(ctx, wallet)
	if err != nil {
		return nil, err
	}
	loan, ok := data.ActiveLoan()
	if !ok {
		return nil, ErrNoActiveLoan
	}

	var sig []byte
	if signatureHex != "" {
		sig, err = hexutil.Decode(signatureHex)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}

	amount := lending.AmountDue(loan.Amount, loan.InterestRate)
	tx, payload, err := s.builder.repayLoan(common.HexToAddress(wallet), amount, sig, s.now())
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, wallet, tx, payload), nil
}

func (s *Service) submit(ctx context.Context, wallet string, tx blockchain.Transaction, payload Payload) *Result {
	res, err := s.connector.SendTransaction(ctx, tx)
	if err != nil {
		s.log.Error().Err(err).Str("wallet", wallet).Str("function", tx.FunctionName).Msg("transaction submission failed")
		return &Result{Status: blockchain.TxFailed, Error: "Transaction failed: " + err.Error(), Payload: payload}
	}
	if res.Status != blockchain.TxSuccess {
		s.log.Warn().
			Str("wallet", wallet).
			Str("function", tx.FunctionName).
			Str("error_code", res.ErrorCode).
			Str("simulation_error", res.SimulationError).
			Msg("transaction rejected")
		return &Result{Status: blockchain.TxFailed, Error: FailureReason(res), Payload: payload}
	}

	s.log.Info().Str("wallet", wallet).Str("function", tx.FunctionName).Str("tx_id", res.TransactionID).Msg("transaction sent")
	if s.watcher != nil {
		if _, err := s.watcher.Track(wallet, res.TransactionID, tx.FunctionName); err != nil {
			s.log.Warn().Err(err).Str("wallet", wallet).Str("tx_id", res.TransactionID).Msg("transaction not watched")
		}
	}
	return &Result{Status: blockchain.TxSuccess, TransactionID: res.TransactionID, Payload: payload}
}

// Register watches a transaction the mini-app submitted through its own wallet SDK.
func (s *Service) Register(wallet, txID, action string) (WatchStatus, error) {
	if s.watcher == nil {
		return WatchStatus{}, fmt.Errorf("transaction watcher not configured")
	}
	if txID == "" {
		return WatchStatus{}, ErrUnknownTransaction
	}
	return s.watcher.Track(wallet, txID, action)
}

// Status reports a watched transaction. Only the wallet that owns it may see it.
func (s *Service) Status(wallet, txID string) (WatchStatus, error) {
	if s.watcher == nil {
		return WatchStatus{}, ErrUnknownTransaction
	}
	st, ok := s.watcher.Status(txID)
	if !ok || st.Wallet != wallet {
		return WatchStatus{}, ErrUnknownTransaction
	}
	return st, nil
}
