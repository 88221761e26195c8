package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/magnifycash/backend/internal/blockchain"
	"github.com/magnifycash/backend/internal/domain/lending"
)

// Store holds the latest snapshot per wallet. Implementations live in
// internal/cache.
type Store interface {
	Get(ctx context.Context, wallet string) (*lending.ContractData, bool, error)
	Set(ctx context.Context, wallet string, data *lending.ContractData) error
	Delete(ctx context.Context, wallet string) error
	Clear(ctx context.Context) error
}

// Observer is told about every snapshot that lands in the store.
type Observer func(wallet string, data *lending.ContractData)

type View struct {
	Data      *lending.ContractData `json:"data"`
	IsLoading bool                  `json:"isLoading"`
	IsError   bool                  `json:"isError"`
}

type walletState struct {
	mu         sync.Mutex
	generation uint64
	inFlight   int
	failed     bool
	// lastGood survives Invalidate so a failed Refetch can fall back to it.
	lastGood *lending.ContractData
}

type flightResult struct {
	view  View
	stale bool
}

// maxStaleLoads bounds how often a load restarts after its fetch was
// invalidated underneath it.
const maxStaleLoads = 3

// Aggregator composes the lending contract reads for a wallet into one cached
// snapshot. Concurrent loads of the same wallet share one fetch; loads of
// different wallets never wait on each other.
type Aggregator struct {
	reader  blockchain.Reader
	store   Store
	log     zerolog.Logger
	timeout time.Duration

	mu        sync.Mutex
	wallets   map[string]*walletState
	observers []Observer
	flights   singleflight.Group
}

func New(reader blockchain.Reader, store Store, log zerolog.Logger, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Aggregator{
		reader:  reader,
		store:   store,
		log:     log.With().Str("component", "aggregator").Logger(),
		timeout: timeout,
		wallets: map[string]*walletState{},
	}
}

func (a *Aggregator) OnUpdate(obs Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, obs)
}

func (a *Aggregator) state(wallet string) *walletState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.wallets[wallet]
	if !ok {
		st = &walletState{}
		a.wallets[wallet] = st
	}
	return st
}

// Get returns the wallet's snapshot, fetching it first when the wallet is
// cold. A failed attempt is reported through IsError with the last good
// snapshot, if any, still in Data.
func (a *Aggregator) Get(ctx context.Context, wallet string) View {
	key, err := blockchain.NormalizeAddress(wallet)
	if err != nil {
		a.log.Warn().Err(err).Msg("rejecting snapshot lookup")
		return View{IsError: true}
	}
	data, ok, err := a.store.Get(ctx, key)
	if err != nil {
		a.log.Error().Err(err).Str("wallet", key).Msg("snapshot store read failed")
		return View{IsError: true}
	}
	if ok {
		return a.view(key, data)
	}
	return a.load(ctx, key)
}

// Peek reports the wallet's current state without starting a fetch.
func (a *Aggregator) Peek(ctx context.Context, wallet string) View {
	key, err := blockchain.NormalizeAddress(wallet)
	if err != nil {
		return View{IsError: true}
	}
	data, _, err := a.store.Get(ctx, key)
	if err != nil {
		a.log.Error().Err(err).Str("wallet", key).Msg("snapshot store read failed")
		return View{IsError: true}
	}
	return a.view(key, data)
}

// Invalidate drops the wallet's snapshot without fetching. Any fetch already
// running for the wallet is discarded when it completes.
func (a *Aggregator) Invalidate(ctx context.Context, wallet string) error {
	key, err := blockchain.NormalizeAddress(wallet)
	if err != nil {
		return err
	}
	st := a.state(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.generation++
	st.failed = false
	if err := a.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}

// Refetch invalidates the wallet and loads it again immediately. When the
// fetch fails the last good snapshot is put back and reported with IsError.
func (a *Aggregator) Refetch(ctx context.Context, wallet string) View {
	if err := a.Invalidate(ctx, wallet); err != nil {
		a.log.Error().Err(err).Str("wallet", wallet).Msg("refetch invalidate failed")
		return View{IsError: true}
	}
	key, _ := blockchain.NormalizeAddress(wallet)
	st := a.state(key)
	st.mu.Lock()
	gen := st.generation
	st.mu.Unlock()

	view := a.load(ctx, key)
	if !view.IsError || view.Data != nil {
		return view
	}
	return a.restore(ctx, st, key, gen, view)
}

// restore puts the last good snapshot back after a failed refetch, unless
// the wallet was invalidated again or a newer snapshot already landed.
func (a *Aggregator) restore(ctx context.Context, st *walletState, wallet string, gen uint64, failed View) View {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.generation != gen || st.lastGood == nil {
		return failed
	}
	current, ok, err := a.store.Get(ctx, wallet)
	if err != nil {
		a.log.Error().Err(err).Str("wallet", wallet).Msg("snapshot store read failed")
		return failed
	}
	if ok {
		return View{Data: current, IsLoading: st.inFlight > 0, IsError: st.failed}
	}
	if err := a.store.Set(ctx, wallet, st.lastGood); err != nil {
		a.log.Error().Err(err).Str("wallet", wallet).Msg("restoring last snapshot failed")
	}
	st.failed = true
	return View{Data: st.lastGood, IsLoading: st.inFlight > 0, IsError: true}
}

// Clear drops every snapshot, used when the process-wide session state resets.
func (a *Aggregator) Clear(ctx context.Context) error {
	a.mu.Lock()
	for _, st := range a.wallets {
		st.mu.Lock()
		st.generation++
		st.failed = false
		st.lastGood = nil
		st.mu.Unlock()
	}
	a.mu.Unlock()
	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}

func (a *Aggregator) view(wallet string, data *lending.ContractData) View {
	st := a.state(wallet)
	st.mu.Lock()
	defer st.mu.Unlock()
	return View{Data: data, IsLoading: st.inFlight > 0, IsError: st.failed}
}

// load fetches the wallet under its current generation. A fetch discarded by
// a concurrent Invalidate is retried under the new generation so a cold
// caller never gets an empty view without the error flag.
func (a *Aggregator) load(ctx context.Context, wallet string) View {
	st := a.state(wallet)
	var res flightResult
	for attempt := 0; attempt < maxStaleLoads; attempt++ {
		st.mu.Lock()
		gen := st.generation
		st.mu.Unlock()

		flightKey := fmt.Sprintf("%s#%d", wallet, gen)
		v, _, _ := a.flights.Do(flightKey, func() (any, error) {
			return a.run(ctx, wallet, gen), nil
		})
		res = v.(flightResult)
		if !res.stale || res.view.Data != nil || res.view.IsError {
			return res.view
		}
	}
	a.log.Warn().Str("wallet", wallet).Int("attempts", maxStaleLoads).Msg("wallet kept being invalidated during load")
	res.view.IsError = true
	return res.view
}

func (a *Aggregator) run(ctx context.Context, wallet string, gen uint64) flightResult {
	st := a.state(wallet)
	st.mu.Lock()
	st.inFlight++
	st.mu.Unlock()

	storeCtx := context.WithoutCancel(ctx)
	fetchCtx, cancel := context.WithTimeout(storeCtx, a.timeout)
	defer cancel()

	started := time.Now()
	data, fetchErr := a.fetch(fetchCtx, wallet)

	res, stored := a.settle(storeCtx, st, wallet, gen, data, fetchErr, time.Since(started))
	if stored {
		a.notify(wallet, data)
	}
	return res
}

// settle applies a finished fetch under the wallet lock. A fetch whose
// generation was bumped by Invalidate never reaches the store.
func (a *Aggregator) settle(ctx context.Context, st *walletState, wallet string, gen uint64, data *lending.ContractData, fetchErr error, elapsed time.Duration) (flightResult, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.inFlight--

	if st.generation != gen {
		a.log.Debug().Str("wallet", wallet).Msg("discarding snapshot from invalidated fetch")
		current, _, err := a.store.Get(ctx, wallet)
		return flightResult{view: View{Data: current, IsLoading: st.inFlight > 0, IsError: err != nil}, stale: true}, false
	}

	if fetchErr != nil {
		st.failed = true
		a.log.Error().Err(fetchErr).Str("wallet", wallet).Dur("elapsed", elapsed).Msg("contract data fetch failed")
		previous, _, err := a.store.Get(ctx, wallet)
		if err != nil {
			a.log.Error().Err(err).Str("wallet", wallet).Msg("snapshot store read failed")
		}
		return flightResult{view: View{Data: previous, IsLoading: st.inFlight > 0, IsError: true}}, false
	}

	if err := a.store.Set(ctx, wallet, data); err != nil {
		st.failed = true
		a.log.Error().Err(err).Str("wallet", wallet).Msg("snapshot store write failed")
		return flightResult{view: View{Data: data, IsLoading: st.inFlight > 0, IsError: true}}, false
	}
	st.failed = false
	st.lastGood = data
	a.log.Debug().
		Str("wallet", wallet).
		Int("loans", len(data.Loans)).
		Int64("tiers", data.TierCount).
		Dur("elapsed", elapsed).
		Msg("contract data refreshed")
	return flightResult{view: View{Data: data, IsLoading: st.inFlight > 0}}, true
}

func (a *Aggregator) notify(wallet string, data *lending.ContractData) {
	a.mu.Lock()
	observers := append([]Observer(nil), a.observers...)
	a.mu.Unlock()
	for _, obs := range observers {
		obs(wallet, data)
	}
}
