package transactions

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"github.com/magnifycash/backend/internal/aggregator"
	"github.com/magnifycash/backend/internal/blockchain"
	"github.com/magnifycash/backend/internal/domain/lending"
)

const (
	wallet     = "0x1111111111111111111111111111111111111111"
	contract   = "0x2222222222222222222222222222222222222222"
	collateral = "0x3333333333333333333333333333333333333333"
)

type fakeSnapshots struct {
	data     *lending.ContractData
	refetchs []string
}

func (f *fakeSnapshots) Get(context.Context, string) aggregator.View {
	return aggregator.View{Data: f.data}
}

func (f *fakeSnapshots) Refetch(_ context.Context, wallet string) aggregator.View {
	f.refetchs = append(f.refetchs, wallet)
	return aggregator.View{Data: f.data}
}

type fakeConnector struct {
	sent   []blockchain.Transaction
	result blockchain.SendResult
	err    error
}

func (c *fakeConnector) SendTransaction(_ context.Context, tx blockchain.Transaction) (blockchain.SendResult, error) {
	c.sent = append(c.sent, tx)
	return c.result, c.err
}

func verifiedSnapshot(active bool) *lending.ContractData {
	return &lending.ContractData{
		NFTInfo: lending.NFTInfo{TokenID: big.NewInt(3), Tier: &lending.Tier{TierID: big.NewInt(1)}},
		Loans: []lending.Loan{{
			Amount:       big.NewInt(1_000_000),
			StartTime:    big.NewInt(1_700_000_000),
			IsActive:     active,
			InterestRate: big.NewInt(500),
			LoanPeriod:   big.NewInt(2_592_000),
		}},
	}
}

func newService(t *testing.T, snaps *fakeSnapshots, conn *fakeConnector) (*Service, *Watcher) {
	t.Helper()
	lendingABI, err := blockchain.LendingABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	w := NewWatcher(blockchain.StubReceiptSource{}, NewTxResolver("", ""), snaps, nil, 3, zerolog.Nop())
	svc, err := NewService(conn, snaps, w, nil, lendingABI, contract, collateral, zerolog.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, w
}

func TestRequestLoanRequiresNFT(t *testing.T) {
	snaps := &fakeSnapshots{data: &lending.ContractData{}}
	svc, _ := newService(t, snaps, &fakeConnector{})
	if _, err := svc.RequestLoan(context.Background(), wallet); !errors.Is(err, ErrNoNFT) {
		t.Fatalf("expected ErrNoNFT, got %v", err)
	}
}

func TestRequestLoanRejectsSecondLoan(t *testing.T) {
	svc, _ := newService(t, &fakeSnapshots{data: verifiedSnapshot(true)}, &fakeConnector{})
	if _, err := svc.RequestLoan(context.Background(), wallet); !errors.Is(err, ErrActiveLoan) {
		t.Fatalf("expected ErrActiveLoan, got %v", err)
	}
}

func TestRequestLoanWithoutSnapshot(t *testing.T) {
	svc, _ := newService(t, &fakeSnapshots{}, &fakeConnector{})
	if _, err := svc.RequestLoan(context.Background(), wallet); !errors.Is(err, ErrSnapshotUnavailable) {
		t.Fatalf("expected ErrSnapshotUnavailable, got %v", err)
	}
}

func TestRequestLoanSubmitsAndTracks(t *testing.T) {
	conn := &fakeConnector{result: blockchain.SendResult{Status: blockchain.TxSuccess, TransactionID: "tx-1"}}
	svc, w := newService(t, &fakeSnapshots{data: verifiedSnapshot(false)}, conn)

	res, err := svc.RequestLoan(context.Background(), wallet)
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}
	if res.Status != blockchain.TxSuccess || res.TransactionID != "tx-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(conn.sent) != 1 || conn.sent[0].FunctionName != "requestLoan" || conn.sent[0].To != common.HexToAddress(contract) {
		t.Fatalf("unexpected transaction %+v", conn.sent)
	}
	lendingABI, _ := blockchain.LendingABI()
	if res.Payload.Data != hexutil.Encode(lendingABI.Methods["requestLoan"].ID) {
		t.Fatalf("unexpected calldata %s", res.Payload.Data)
	}
	st, ok := w.Status("tx-1")
	if !ok || st.Wallet != wallet || st.Action != "requestLoan" || !st.IsLoading {
		t.Fatalf("transaction should be watched: %+v", st)
	}
}

func TestRequestLoanFailureMessages(t *testing.T) {
	cases := []struct {
		result blockchain.SendResult
		err    error
		want   string
	}{
		{blockchain.SendResult{Status: blockchain.TxFailed, ErrorCode: blockchain.ErrorCodeUserRejected}, nil, "User rejected transaction"},
		{blockchain.SendResult{Status: blockchain.TxFailed, ErrorCode: "simulation_failed", SimulationError: "execution reverted: reverted with reason string: Tier not found"}, nil, "Transaction failed: Tier not found"},
		{blockchain.SendResult{}, errors.New("connection reset"), "Transaction failed: connection reset"},
	}
	for _, tc := range cases {
		conn := &fakeConnector{result: tc.result, err: tc.err}
		svc, w := newService(t, &fakeSnapshots{data: verifiedSnapshot(false)}, conn)
		res, err := svc.RequestLoan(context.Background(), wallet)
		if err != nil {
			t.Fatalf("request loan: %v", err)
		}
		if res.Status != blockchain.TxFailed || res.Error != tc.want {
			t.Fatalf("expected %q, got %+v", tc.want, res)
		}
		if len(w.pending()) != 0 {
			t.Fatalf("failed submissions must not be watched")
		}
	}
}

func TestRepayLoanBuildsPermit2Transfer(t *testing.T) {
	conn := &fakeConnector{result: blockchain.SendResult{Status: blockchain.TxSuccess, TransactionID: "tx-2"}}
	svc, _ := newService(t, &fakeSnapshots{data: verifiedSnapshot(true)}, conn)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	res, err := svc.RepayLoan(context.Background(), wallet, "")
	if err != nil {
		t.Fatalf("repay: %v", err)
	}

	due := big.NewInt(1_050_000)
	permit := blockchain.PermitTransferFrom{
		Permitted: blockchain.TokenPermissions{Token: common.HexToAddress(collateral), Amount: due},
		Nonce:     big.NewInt(now.UnixMilli()),
		Deadline:  big.NewInt(now.Add(30 * time.Minute).Unix()),
	}
	details := blockchain.SignatureTransferDetails{To: common.HexToAddress(contract), RequestedAmount: due}
	lendingABI, _ := blockchain.LendingABI()
	want, err := lendingABI.Pack("repayLoanWithPermit2", permit, details, []byte(SignaturePlaceholder))
	if err != nil {
		t.Fatalf("pack expected: %v", err)
	}
	if res.Payload.Data != hexutil.Encode(want) {
		t.Fatalf("calldata mismatch")
	}

	if len(res.Payload.Permit2) != 1 {
		t.Fatalf("expected one permit2 grant")
	}
	grant := res.Payload.Permit2[0]
	if grant.Permitted.Amount != "1050000" || grant.Spender != common.HexToAddress(contract).Hex() || grant.Nonce != "1740830400000" {
		t.Fatalf("unexpected grant %+v", grant)
	}
	if res.Payload.Args[2] != SignaturePlaceholder {
		t.Fatalf("expected placeholder signature arg, got %v", res.Payload.Args[2])
	}
	if len(conn.sent[0].Permit2) != 1 || conn.sent[0].Permit2[0].Spender != common.HexToAddress(contract) {
		t.Fatalf("connector should receive the permit2 grant")
	}
}

func TestRepayLoanRequiresActiveLoan(t *testing.T) {
	svc, _ := newService(t, &fakeSnapshots{data: verifiedSnapshot(false)}, &fakeConnector{})
	if _, err := svc.RepayLoan(context.Background(), wallet, ""); !errors.Is(err, ErrNoActiveLoan) {
		t.Fatalf("expected ErrNoActiveLoan, got %v", err)
	}
}

func TestRepayLoanRejectsMalformedSignature(t *testing.T) {
	svc, _ := newService(t, &fakeSnapshots{data: verifiedSnapshot(true)}, &fakeConnector{})
	if _, err := svc.RepayLoan(context.Background(), wallet, "0xnothex"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestStatusIsScopedToWallet(t *testing.T) {
	svc, _ := newService(t, &fakeSnapshots{}, &fakeConnector{})
	if _, err := svc.Register(wallet, "0xabc", "requestLoan"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Status(wallet, "0xabc"); err != nil {
		t.Fatalf("owner should see status: %v", err)
	}
	if _, err := svc.Status("0x9999999999999999999999999999999999999999", "0xabc"); !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("other wallets must not see the transaction, got %v", err)
	}
	if _, err := svc.Register(wallet, "", "x"); !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("empty id must be rejected, got %v", err)
	}
}

func TestRegisterCannotClaimAnotherWalletsTransaction(t *testing.T) {
	svc, _ := newService(t, &fakeSnapshots{}, &fakeConnector{})
	other := "0x9999999999999999999999999999999999999999"
	if _, err := svc.Register(other, "minikit-tx-1", "requestLoan"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(wallet, "minikit-tx-1", "requestLoan"); !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("second wallet must not share the watch, got %v", err)
	}
	st, err := svc.Status(other, "minikit-tx-1")
	if err != nil || st.Wallet != other {
		t.Fatalf("first registrant keeps the watch: %+v %v", st, err)
	}
}

func TestFailureReasonFallbacks(t *testing.T) {
	if got := FailureReason(blockchain.SendResult{SimulationError: "out of gas"}); got != "Transaction failed: out of gas" {
		t.Fatalf("unexpected reason %q", got)
	}
	if got := FailureReason(blockchain.SendResult{ErrorCode: "generic_error"}); got != "Transaction failed: generic_error" {
		t.Fatalf("unexpected reason %q", got)
	}
	if got := FailureReason(blockchain.SendResult{}); got != "Transaction failed: unknown error" {
		t.Fatalf("unexpected reason %q", got)
	}
}
