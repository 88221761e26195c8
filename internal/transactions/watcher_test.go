package transactions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReceipts struct {
	mu       sync.Mutex
	notFound int
	status   uint64
	lookedUp []common.Hash
}

func (r *scriptedReceipts) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookedUp = append(r.lookedUp, hash)
	if r.notFound > 0 {
		r.notFound--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: r.status, TxHash: hash}, nil
}

type recordingNotifier struct {
	settled []WatchStatus
}

func (n *recordingNotifier) TransactionSettled(_ string, st WatchStatus) {
	n.settled = append(n.settled, st)
}

const txHash = "0x5f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"

func TestWatcherConfirmsAndRefetches(t *testing.T) {
	receipts := &scriptedReceipts{notFound: 1, status: types.ReceiptStatusSuccessful}
	snaps := &fakeSnapshots{}
	notifier := &recordingNotifier{}
	w := NewWatcher(receipts, NewTxResolver("", ""), snaps, notifier, 5, zerolog.Nop())
	w.Track(wallet, txHash, "requestLoan")

	require.NoError(t, w.RunOnce(context.Background()))
	st, ok := w.Status(txHash)
	require.True(t, ok)
	assert.Equal(t, StatePending, st.State)
	assert.True(t, st.IsLoading)
	assert.Empty(t, snaps.refetchs)

	require.NoError(t, w.RunOnce(context.Background()))
	st, _ = w.Status(txHash)
	assert.Equal(t, StateConfirmed, st.State)
	assert.True(t, st.IsSuccess)
	assert.False(t, st.IsLoading)
	assert.Equal(t, int32(2), st.Attempts)
	assert.Equal(t, common.HexToHash(txHash).Hex(), st.TransactionHash)
	assert.Equal(t, []string{wallet}, snaps.refetchs)
	require.Len(t, notifier.settled, 1)
	assert.Equal(t, StateConfirmed, notifier.settled[0].State)

	// settled transactions are not polled again
	require.NoError(t, w.RunOnce(context.Background()))
	assert.Len(t, receipts.lookedUp, 2)
}

func TestWatcherReportsReverts(t *testing.T) {
	receipts := &scriptedReceipts{status: types.ReceiptStatusFailed}
	snaps := &fakeSnapshots{}
	w := NewWatcher(receipts, NewTxResolver("", ""), snaps, nil, 5, zerolog.Nop())
	w.Track(wallet, txHash, "repayLoanWithPermit2")

	require.NoError(t, w.RunOnce(context.Background()))
	st, _ := w.Status(txHash)
	assert.Equal(t, StateReverted, st.State)
	assert.False(t, st.IsSuccess)
	assert.Equal(t, []string{wallet}, snaps.refetchs)
}

func TestWatcherAbandonsAfterMaxAttempts(t *testing.T) {
	receipts := &scriptedReceipts{notFound: 100}
	snaps := &fakeSnapshots{}
	notifier := &recordingNotifier{}
	w := NewWatcher(receipts, NewTxResolver("", ""), snaps, notifier, 3, zerolog.Nop())
	w.Track(wallet, txHash, "requestLoan")

	for i := 0; i < 5; i++ {
		require.NoError(t, w.RunOnce(context.Background()))
	}
	st, _ := w.Status(txHash)
	assert.Equal(t, StateAbandoned, st.State)
	assert.Equal(t, int32(3), st.Attempts)
	assert.Empty(t, snaps.refetchs)
	require.Len(t, notifier.settled, 1)
}

func TestWatcherResolvesStubIDs(t *testing.T) {
	receipts := &scriptedReceipts{status: types.ReceiptStatusSuccessful}
	w := NewWatcher(receipts, NewTxResolver("", ""), &fakeSnapshots{}, nil, 3, zerolog.Nop())
	w.Track(wallet, "stub-42", "requestLoan")

	require.NoError(t, w.RunOnce(context.Background()))
	st, _ := w.Status("stub-42")
	assert.Equal(t, StateConfirmed, st.State)
	require.Len(t, receipts.lookedUp, 1)
	assert.NotEqual(t, common.Hash{}, receipts.lookedUp[0])
}

func TestTrackIsIdempotent(t *testing.T) {
	w := NewWatcher(&scriptedReceipts{}, NewTxResolver("", ""), nil, nil, 3, zerolog.Nop())
	first, err := w.Track(wallet, txHash, "requestLoan")
	require.NoError(t, err)
	second, err := w.Track(wallet, txHash, "other")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "requestLoan", second.Action)
}

func TestTrackRejectsIDOwnedByAnotherWallet(t *testing.T) {
	snaps := &fakeSnapshots{}
	receipts := &scriptedReceipts{status: types.ReceiptStatusSuccessful}
	w := NewWatcher(receipts, NewTxResolver("", ""), snaps, nil, 3, zerolog.Nop())
	other := "0x9999999999999999999999999999999999999999"

	_, err := w.Track(other, "minikit-tx-1", "requestLoan")
	require.NoError(t, err)
	_, err = w.Track(wallet, "minikit-tx-1", "requestLoan")
	assert.ErrorIs(t, err, ErrUnknownTransaction)

	st, ok := w.Status("minikit-tx-1")
	require.True(t, ok)
	assert.Equal(t, other, st.Wallet)
}

func TestTrackCapsPendingPerWallet(t *testing.T) {
	w := NewWatcher(&scriptedReceipts{}, NewTxResolver("", ""), nil, nil, 3, zerolog.Nop())
	for i := 0; i < maxPendingPerWallet; i++ {
		_, err := w.Track(wallet, fmt.Sprintf("minikit-tx-%d", i), "requestLoan")
		require.NoError(t, err)
	}
	_, err := w.Track(wallet, "minikit-tx-overflow", "requestLoan")
	assert.ErrorIs(t, err, ErrTooManyPending)

	// other wallets are unaffected
	_, err = w.Track("0x9999999999999999999999999999999999999999", "minikit-tx-overflow", "requestLoan")
	assert.NoError(t, err)
}

func TestRunOnceForgetsOldSettledWatches(t *testing.T) {
	receipts := &scriptedReceipts{status: types.ReceiptStatusSuccessful}
	w := NewWatcher(receipts, NewTxResolver("", ""), &fakeSnapshots{}, nil, 3, zerolog.Nop())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	_, err := w.Track(wallet, txHash, "requestLoan")
	require.NoError(t, err)
	require.NoError(t, w.RunOnce(context.Background()))
	st, ok := w.Status(txHash)
	require.True(t, ok)
	assert.Equal(t, StateConfirmed, st.State)

	now = now.Add(settledRetention - time.Minute)
	require.NoError(t, w.RunOnce(context.Background()))
	_, ok = w.Status(txHash)
	assert.True(t, ok, "settled watch kept inside the retention window")

	now = now.Add(2 * time.Minute)
	require.NoError(t, w.RunOnce(context.Background()))
	_, ok = w.Status(txHash)
	assert.False(t, ok, "settled watch pruned after the retention window")
}

func TestRunOnceKeepsPendingWatches(t *testing.T) {
	w := NewWatcher(&scriptedReceipts{notFound: 100}, NewTxResolver("", ""), nil, nil, 100, zerolog.Nop())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	_, err := w.Track(wallet, txHash, "requestLoan")
	require.NoError(t, err)

	now = now.Add(3 * settledRetention)
	require.NoError(t, w.RunOnce(context.Background()))
	st, ok := w.Status(txHash)
	require.True(t, ok)
	assert.Equal(t, StatePending, st.State)
}

func TestWatcherRunOnceStopsOnCancel(t *testing.T) {
	w := NewWatcher(&scriptedReceipts{}, NewTxResolver("", ""), nil, nil, 3, zerolog.Nop())
	w.Track(wallet, txHash, "requestLoan")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.RunOnce(ctx), context.Canceled)
}
