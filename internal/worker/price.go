package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mtlprog/airdrop/internal/domain"
	"github.com/mtlprog/airdrop/internal/metrics"
)

// Refresher defines the interface for refreshing the price snapshot.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CurrencyWatcher delivers currency selection changes.
type CurrencyWatcher interface {
	Subscribe() (<-chan domain.Currency, func())
}

// PriceWorker refreshes prices on start, on every tick, and whenever the currency changes.
// Each trigger issues an independent refresh; the store decides which result wins.
type PriceWorker struct {
	refresher Refresher
	currency  CurrencyWatcher
	interval  time.Duration
	ticks     <-chan time.Time

	inflight sync.WaitGroup

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// PriceWorkerOption configures a PriceWorker.
type PriceWorkerOption func(*PriceWorker)

// WithTicks replaces the interval ticker with an external tick source.
func WithTicks(ticks <-chan time.Time) PriceWorkerOption {
	return func(w *PriceWorker) { w.ticks = ticks }
}

// NewPriceWorker creates a new PriceWorker.
func NewPriceWorker(refresher Refresher, currency CurrencyWatcher, interval time.Duration, opts ...PriceWorkerOption) *PriceWorker {
	w := &PriceWorker{
		refresher: refresher,
		currency:  currency,
		interval:  interval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop. It blocks until the context is cancelled
// and all refreshes it issued have returned.
func (w *PriceWorker) Run(ctx context.Context) {
	slog.Info("PriceWorker: starting", "interval", w.interval)

	changes, unsubscribe := w.currency.Subscribe()
	defer unsubscribe()

	ticks := w.ticks
	if ticks == nil {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	// Fetch immediately on startup
	w.trigger(ctx, metrics.TriggerInitial)

	for {
		select {
		case <-ctx.Done():
			w.inflight.Wait()
			slog.Info("PriceWorker: shutting down")
			return
		case <-ticks:
			w.trigger(ctx, metrics.TriggerTick)
		case c := <-changes:
			slog.Info("PriceWorker: currency changed", "currency", c)
			w.trigger(ctx, metrics.TriggerCurrency)
		}
	}
}

// Start runs the worker in the background until Stop is called or ctx is cancelled.
// Calling Start on a running worker does nothing.
func (w *PriceWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done

	go func() {
		defer close(done)
		w.Run(ctx)
	}()
}

// Stop cancels the worker and waits for it to exit.
func (w *PriceWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *PriceWorker) trigger(ctx context.Context, trigger string) {
	metrics.PriceRefreshesTotal.WithLabelValues(trigger).Inc()
	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		w.refresh(ctx, trigger)
	}()
}

func (w *PriceWorker) refresh(ctx context.Context, trigger string) {
	err := w.refresher.Refresh(ctx)
	switch {
	case err == nil:
		slog.Info("PriceWorker: refresh completed", "trigger", trigger)
	case ctx.Err() != nil:
		slog.Debug("PriceWorker: refresh cancelled", "trigger", trigger)
	default:
		slog.Error("PriceWorker: refresh failed", "trigger", trigger, "error", err)
	}
}
