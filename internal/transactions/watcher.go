package transactions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/magnifycash/backend/internal/aggregator"
	"github.com/magnifycash/backend/internal/blockchain"
)

type WatchState string

const (
	StatePending   WatchState = "pending"
	StateConfirmed WatchState = "confirmed"
	StateReverted  WatchState = "reverted"
	StateAbandoned WatchState = "abandoned"
)

// WatchStatus is what the mini-app polls while a transaction confirms.
type WatchStatus struct {
	TransactionID   string     `json:"transactionId"`
	TransactionHash string     `json:"transactionHash,omitempty"`
	Wallet          string     `json:"wallet"`
	Action          string     `json:"action"`
	State           WatchState `json:"state"`
	Attempts        int32      `json:"attempts"`
	IsLoading       bool       `json:"isLoading"`
	IsSuccess       bool       `json:"isSuccess"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

const (
	// settledRetention is how long a settled watch stays readable through Status.
	settledRetention = time.Hour
	// maxPendingPerWallet caps the watches a single wallet can hold open.
	maxPendingPerWallet = 16
)

type Refetcher interface {
	Refetch(ctx context.Context, wallet string) aggregator.View
}

// Notifier is told when a watched transaction settles.
type Notifier interface {
	TransactionSettled(wallet string, status WatchStatus)
}

// Watcher polls receipts for submitted transactions and refreshes the
// wallet's snapshot once one is mined.
type Watcher struct {
	receipts    blockchain.ReceiptSource
	resolver    Resolver
	snapshots   Refetcher
	notifier    Notifier
	maxAttempts int32
	retention   time.Duration
	now         func() time.Time
	log         zerolog.Logger

	mu      sync.Mutex
	watches map[string]*WatchStatus
}

func NewWatcher(receipts blockchain.ReceiptSource, resolver Resolver, snapshots Refetcher, notifier Notifier, maxAttempts int32, log zerolog.Logger) *Watcher {
	if maxAttempts <= 0 {
		maxAttempts = 90
	}
	return &Watcher{
		receipts:    receipts,
		resolver:    resolver,
		snapshots:   snapshots,
		notifier:    notifier,
		maxAttempts: maxAttempts,
		retention:   settledRetention,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log.With().Str("component", "tx_watcher").Logger(),
		watches:     map[string]*WatchStatus{},
	}
}

// Track starts watching txID for wallet. Tracking the same id twice for the
// same wallet is a no-op; an id already watched for another wallet is
// rejected with ErrUnknownTransaction.
func (w *Watcher) Track(wallet, txID, action string) (WatchStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.watches[txID]; ok {
		if existing.Wallet != wallet {
			w.log.Warn().Str("tx_id", txID).Str("wallet", wallet).Msg("transaction already watched for another wallet")
			return WatchStatus{}, ErrUnknownTransaction
		}
		return *existing, nil
	}
	pending := 0
	for _, st := range w.watches {
		if st.Wallet == wallet && st.State == StatePending {
			pending++
		}
	}
	if pending >= maxPendingPerWallet {
		return WatchStatus{}, ErrTooManyPending
	}
	st := &WatchStatus{
		TransactionID: txID,
		Wallet:        wallet,
		Action:        action,
		State:         StatePending,
		IsLoading:     true,
		UpdatedAt:     w.now(),
	}
	w.watches[txID] = st
	return *st, nil
}

func (w *Watcher) Status(txID string) (WatchStatus, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.watches[txID]
	if !ok {
		return WatchStatus{}, false
	}
	return *st, true
}

func (w *Watcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("receipt poll failed")
			}
		}
	}
}

// RunOnce checks every pending transaction once and forgets settled ones
// older than the retention window.
func (w *Watcher) RunOnce(ctx context.Context) error {
	w.prune()
	for _, st := range w.pending() {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.check(ctx, st)
	}
	return nil
}

func (w *Watcher) prune() {
	cutoff := w.now().Add(-w.retention)
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, st := range w.watches {
		if st.State != StatePending && st.UpdatedAt.Before(cutoff) {
			delete(w.watches, id)
		}
	}
}

func (w *Watcher) pending() []WatchStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WatchStatus, 0, len(w.watches))
	for _, st := range w.watches {
		if st.State == StatePending {
			out = append(out, *st)
		}
	}
	return out
}

func (w *Watcher) check(ctx context.Context, st WatchStatus) {
	st.Attempts++
	receipt, err := w.lookup(ctx, &st)
	switch {
	case err != nil:
		w.log.Warn().Err(err).Str("tx_id", st.TransactionID).Int32("attempt", st.Attempts).Msg("receipt lookup failed")
	case receipt != nil && receipt.Status == types.ReceiptStatusSuccessful:
		st.State = StateConfirmed
		st.IsSuccess = true
	case receipt != nil:
		st.State = StateReverted
	}
	if st.State == StatePending && st.Attempts >= w.maxAttempts {
		st.State = StateAbandoned
		w.log.Warn().Str("tx_id", st.TransactionID).Int32("attempts", st.Attempts).Msg("giving up on transaction")
	}
	st.IsLoading = st.State == StatePending
	st.UpdatedAt = w.now()

	w.mu.Lock()
	w.watches[st.TransactionID] = &st
	w.mu.Unlock()

	if st.State == StatePending {
		return
	}
	w.settle(ctx, st)
}

func (w *Watcher) lookup(ctx context.Context, st *WatchStatus) (*types.Receipt, error) {
	hash, pending, err := w.resolver.Resolve(ctx, st.TransactionID)
	if err != nil || pending {
		return nil, err
	}
	st.TransactionHash = hash.Hex()
	receipt, err := w.receipts.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return receipt, err
}

func (w *Watcher) settle(ctx context.Context, st WatchStatus) {
	w.log.Info().
		Str("tx_id", st.TransactionID).
		Str("tx_hash", st.TransactionHash).
		Str("wallet", st.Wallet).
		Str("state", string(st.State)).
		Msg("transaction settled")

	if st.State != StateAbandoned && w.snapshots != nil {
		w.snapshots.Refetch(ctx, st.Wallet)
	}
	if w.notifier != nil {
		w.notifier.TransactionSettled(st.Wallet, st)
	}
}
