package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mtlprog/airdrop/internal/currency"
	"github.com/mtlprog/airdrop/internal/domain"
)

type mockRefresher struct {
	callCount atomic.Int32
	err       error
}

func (m *mockRefresher) Refresh(_ context.Context) error {
	m.callCount.Add(1)
	return m.err
}

func waitForCalls(t *testing.T, m *mockRefresher, want int32) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if m.callCount.Load() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("call count = %d, want >= %d", m.callCount.Load(), want)
}

func TestPriceWorkerRunsAndShutdown(t *testing.T) {
	mock := &mockRefresher{}
	w := NewPriceWorker(mock, currency.NewSelection(domain.CurrencyUSD), 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	// Should have run at least the initial fetch + some ticks
	if got := mock.callCount.Load(); got < 2 {
		t.Errorf("call count = %d, want >= 2", got)
	}
}

func TestPriceWorkerInjectedTicks(t *testing.T) {
	mock := &mockRefresher{}
	ticks := make(chan time.Time)
	w := NewPriceWorker(mock, currency.NewSelection(domain.CurrencyUSD), time.Hour, WithTicks(ticks))

	w.Start(context.Background())
	defer w.Stop()

	waitForCalls(t, mock, 1)

	ticks <- time.Now()
	waitForCalls(t, mock, 2)
	ticks <- time.Now()
	waitForCalls(t, mock, 3)
}

func TestPriceWorkerRefreshesOnCurrencyChange(t *testing.T) {
	mock := &mockRefresher{}
	sel := currency.NewSelection(domain.CurrencyUSD)
	w := NewPriceWorker(mock, sel, time.Hour, WithTicks(make(chan time.Time)))

	w.Start(context.Background())
	defer w.Stop()
	waitForCalls(t, mock, 1)

	sel.Set(domain.CurrencyCAD)
	waitForCalls(t, mock, 2)

	sel.Set(domain.CurrencyCAD)
	time.Sleep(20 * time.Millisecond)
	if got := mock.callCount.Load(); got != 2 {
		t.Errorf("call count = %d after re-selecting the same currency, want 2", got)
	}
}

func TestPriceWorkerStopIsIdempotent(t *testing.T) {
	mock := &mockRefresher{}
	w := NewPriceWorker(mock, currency.NewSelection(domain.CurrencyUSD), time.Hour, WithTicks(make(chan time.Time)))

	w.Stop()
	w.Start(context.Background())
	w.Start(context.Background())
	waitForCalls(t, mock, 1)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	if got := mock.callCount.Load(); got != 1 {
		t.Errorf("call count = %d, want 1 (second Start must not spawn another loop)", got)
	}
}

// blockingRefresher never returns until its context is cancelled.
type blockingRefresher struct {
	started  chan struct{}
	returned atomic.Bool
}

func (b *blockingRefresher) Refresh(ctx context.Context) error {
	close(b.started)
	<-ctx.Done()
	b.returned.Store(true)
	return ctx.Err()
}

func TestPriceWorkerStopWaitsForInflight(t *testing.T) {
	b := &blockingRefresher{started: make(chan struct{})}
	w := NewPriceWorker(b, currency.NewSelection(domain.CurrencyUSD), time.Hour, WithTicks(make(chan time.Time)))

	w.Start(context.Background())
	<-b.started
	w.Stop()

	if !b.returned.Load() {
		t.Error("Stop returned before the in-flight refresh finished")
	}
}

func TestPriceWorkerSurvivesRefreshErrors(t *testing.T) {
	mock := &mockRefresher{err: errors.New("boom")}
	ticks := make(chan time.Time)
	w := NewPriceWorker(mock, currency.NewSelection(domain.CurrencyUSD), time.Hour, WithTicks(ticks))

	w.Start(context.Background())
	defer w.Stop()

	waitForCalls(t, mock, 1)
	ticks <- time.Now()
	waitForCalls(t, mock, 2)
}
