// Package price owns the latest price snapshot and its fetch state.
package price

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mtlprog/airdrop/internal/domain"
	"github.com/mtlprog/airdrop/internal/metrics"
)

// Source fetches a complete set of prices in one currency.
type Source interface {
	FetchPrices(ctx context.Context, currency domain.Currency, ids []domain.AssetID) (domain.Prices, error)
}

// CurrencyReader returns the currently selected currency.
type CurrencyReader interface {
	Get() domain.Currency
}

// Listener is called with a copy of the state after every committed change.
// Listeners are called one at a time, in commit order, and must not block.
type Listener func(domain.PriceState)

// Store holds the latest good snapshot and applies only the most recently issued fetch.
type Store struct {
	source   Source
	currency CurrencyReader
	assets   []domain.AssetID
	now      func() time.Time

	mu        sync.RWMutex
	issued    uint64
	version   uint64
	state     domain.PriceState
	listeners []Listener

	// settled is the sequence of the last applied fetch; settledCh is closed when the next one applies.
	settled    uint64
	settledErr error
	settledCh  chan struct{}

	notifyMu sync.Mutex
	notified uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store in the loading state.
func NewStore(source Source, currency CurrencyReader, assets []domain.AssetID, opts ...Option) *Store {
	s := &Store{
		source:    source,
		currency:  currency,
		assets:    append([]domain.AssetID(nil), assets...),
		now:       time.Now,
		settledCh: make(chan struct{}),
		state: domain.PriceState{
			Status:   domain.StatusLoading,
			Currency: currency.Get(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the current state.
func (s *Store) State() domain.PriceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// OnCommit registers a listener for committed state changes.
func (s *Store) OnCommit(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Refresh fetches prices in the currently selected currency and commits the result
// if no newer refresh was issued meanwhile. When a newer refresh was issued, the result is
// discarded and Refresh waits for the newer one, returning its outcome or ctx.Err().
func (s *Store) Refresh(ctx context.Context) error {
	seq, currency := s.begin()

	start := time.Now()
	prices, err := s.source.FetchPrices(ctx, currency, s.assets)
	metrics.PriceFetchDuration.Observe(time.Since(start).Seconds())

	return s.complete(ctx, seq, currency, prices, err)
}

// begin issues a sequence number and captures the currency under the same lock,
// so sequence order matches the order in which currencies were requested.
func (s *Store) begin() (uint64, domain.Currency) {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	currency := s.currency.Get()
	s.state.Currency = currency
	s.state.Refreshing = true
	c := s.commitLocked()
	s.mu.Unlock()

	s.notify(c)
	return seq, currency
}

func (s *Store) complete(ctx context.Context, seq uint64, currency domain.Currency, prices domain.Prices, fetchErr error) error {
	s.mu.Lock()

	if seq != s.issued {
		metrics.PriceFetchesTotal.WithLabelValues(metrics.OutcomeSuperseded).Inc()
		slog.Debug("price: discarding superseded result", "seq", seq, "currency", currency)
		return s.awaitLocked(ctx, seq)
	}

	s.state.Refreshing = false
	now := s.now()

	switch {
	case fetchErr != nil && ctx.Err() != nil:
		// Caller went away; nothing was learned about the provider.
		err := fmt.Errorf("refreshing prices: %w", fetchErr)
		s.settleLocked(seq, err)
		c := s.commitLocked()
		s.mu.Unlock()
		metrics.PriceFetchesTotal.WithLabelValues(metrics.OutcomeCanceled).Inc()
		s.notify(c)
		return err

	case fetchErr != nil:
		s.state.Status = domain.StatusError
		s.state.Error = fetchErr.Error()
		s.state.FailedAt = &now
		err := fmt.Errorf("refreshing prices: %w", fetchErr)
		s.settleLocked(seq, err)
		c := s.commitLocked()
		s.mu.Unlock()

		metrics.PriceFetchesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		slog.Warn("price: refresh failed, keeping last snapshot",
			"currency", currency, "hasSnapshot", c.state.HasLoaded(), "error", fetchErr)
		s.notify(c)
		return err
	}

	snap := &domain.Snapshot{
		Currency:  currency,
		Prices:    inheritIcons(prices, s.state.Snapshot),
		FetchedAt: now,
	}
	s.state.Status = domain.StatusReady
	s.state.Snapshot = snap
	s.state.Error = ""
	s.state.FailedAt = nil
	s.state.UpdatedAt = &now
	s.settleLocked(seq, nil)
	c := s.commitLocked()
	s.mu.Unlock()

	metrics.PriceFetchesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.LastSuccessTimestamp.Set(float64(now.Unix()))
	slog.Info("price: snapshot committed", "seq", seq, "currency", currency, "assets", len(snap.Prices))
	s.notify(c)
	return nil
}

// settleLocked records the outcome of an applied fetch and wakes superseded callers.
func (s *Store) settleLocked(seq uint64, err error) {
	s.settled = seq
	s.settledErr = err
	close(s.settledCh)
	s.settledCh = make(chan struct{})
}

// awaitLocked waits until a fetch issued after seq is applied and returns its outcome.
// It is called with s.mu held and returns with it released.
func (s *Store) awaitLocked(ctx context.Context, seq uint64) error {
	for s.settled <= seq {
		ch := s.settledCh
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}
	err := s.settledErr
	s.mu.Unlock()
	return err
}

// commit is a state change waiting to be delivered to listeners.
type commit struct {
	version   uint64
	state     domain.PriceState
	listeners []Listener
}

func (s *Store) commitLocked() commit {
	s.version++
	return commit{
		version:   s.version,
		state:     s.state.Clone(),
		listeners: append([]Listener(nil), s.listeners...),
	}
}

// notify delivers c unless a newer commit was already delivered.
func (s *Store) notify(c commit) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if c.version <= s.notified {
		return
	}
	s.notified = c.version
	for _, l := range c.listeners {
		l(c.state)
	}
}

// inheritIcons copies icons from prev for entries that arrived without one.
// Icons are currency-invariant, so a failed icon lookup shouldn't drop known icons.
func inheritIcons(prices domain.Prices, prev *domain.Snapshot) domain.Prices {
	out := make(domain.Prices, len(prices))
	for id, e := range prices {
		if e.Icon == "" {
			if old := prev.Lookup(id); old != nil {
				e.Icon = old.Icon
			}
		}
		out[id] = e
	}
	return out
}
