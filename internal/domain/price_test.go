package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Currency: CurrencyUSD,
		Prices: Prices{
			"tokenA": {Price: decimal.RequireFromString("2.50"), Icon: "https://img/a.png"},
			"tokenB": {Price: decimal.RequireFromString("125")},
		},
		FetchedAt: time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSnapshotLookup(t *testing.T) {
	s := testSnapshot()

	e := s.Lookup("tokenA")
	if e == nil || !e.Price.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("Lookup(tokenA) = %+v", e)
	}
	if s.Lookup("tokenC") != nil {
		t.Error("Lookup(tokenC) should be nil")
	}

	var nilSnap *Snapshot
	if nilSnap.Lookup("tokenA") != nil {
		t.Error("Lookup on nil snapshot should be nil")
	}
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	s := testSnapshot()
	c := s.Clone()
	c.Prices["tokenA"] = PriceEntry{Price: decimal.Zero}

	if s.Prices["tokenA"].Price.IsZero() {
		t.Error("mutating the clone changed the original")
	}
}

func TestPriceStateStale(t *testing.T) {
	tests := []struct {
		name  string
		state PriceState
		want  bool
	}{
		{"no snapshot", PriceState{Status: StatusError, Currency: CurrencyUSD}, false},
		{"fresh", PriceState{Status: StatusReady, Snapshot: testSnapshot(), Currency: CurrencyUSD}, false},
		{"failed refresh", PriceState{Status: StatusError, Snapshot: testSnapshot(), Currency: CurrencyUSD}, true},
		{"currency switch pending", PriceState{Status: StatusReady, Snapshot: testSnapshot(), Currency: CurrencyCAD}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Stale(); got != tt.want {
				t.Errorf("Stale() = %v, want %v", got, tt.want)
			}
		})
	}
}
