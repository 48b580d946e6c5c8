package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/airdrop/internal/domain"
)

var testIDs = []domain.AssetID{"tokenA", "tokenB"}

// newTestServer serves simple/price and coins/markets with the given bodies and status codes.
func newTestServer(t *testing.T, priceStatus int, priceBody string, marketsStatus int, marketsBody string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/simple/price":
			w.WriteHeader(priceStatus)
			w.Write([]byte(priceBody))
		case "/coins/markets":
			w.WriteHeader(marketsStatus)
			w.Write([]byte(marketsBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchPricesAllAssets(t *testing.T) {
	server := newTestServer(t,
		http.StatusOK, `{"tokenA": {"usd": 2.50}, "tokenB": {"usd": 125.0}}`,
		http.StatusOK, `[{"id": "tokenA", "image": "https://img/a.png"}, {"id": "tokenB", "image": "https://img/b.png"}]`,
	)

	client := NewCoinGeckoClient(server.URL, "", time.Second)
	prices, err := client.FetchPrices(context.Background(), domain.CurrencyUSD, testIDs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(prices) != 2 {
		t.Fatalf("got %d prices, want 2", len(prices))
	}
	if !prices["tokenA"].Price.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("tokenA = %s, want 2.5", prices["tokenA"].Price)
	}
	if !prices["tokenB"].Price.Equal(decimal.NewFromInt(125)) {
		t.Errorf("tokenB = %s, want 125", prices["tokenB"].Price)
	}
	if prices["tokenA"].Icon != "https://img/a.png" {
		t.Errorf("tokenA icon = %q", prices["tokenA"].Icon)
	}
}

func TestFetchPricesQueryParameters(t *testing.T) {
	var priceQuery, marketsQuery, apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/simple/price":
			priceQuery = r.URL.RawQuery
			apiKey = r.Header.Get("x-cg-demo-api-key")
			w.Write([]byte(`{"tokenA": {"cad": 3.4}, "tokenB": {"cad": 170}}`))
		case "/coins/markets":
			marketsQuery = r.URL.RawQuery
			w.Write([]byte(`[]`))
		}
	}))
	defer server.Close()

	client := NewCoinGeckoClient(server.URL+"/", "demo-key", time.Second)
	if _, err := client.FetchPrices(context.Background(), domain.CurrencyCAD, testIDs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(priceQuery, "vs_currencies=cad") || !strings.Contains(priceQuery, "ids=tokenA%2CtokenB") {
		t.Errorf("simple/price query = %q", priceQuery)
	}
	if !strings.Contains(marketsQuery, "vs_currency=usd") {
		t.Errorf("coins/markets query = %q, want reference currency usd", marketsQuery)
	}
	if apiKey != "demo-key" {
		t.Errorf("api key header = %q, want demo-key", apiKey)
	}
}

func TestFetchPricesMissingAssetFails(t *testing.T) {
	server := newTestServer(t,
		http.StatusOK, `{"tokenA": {"usd": 2.50}}`,
		http.StatusOK, `[]`,
	)

	client := NewCoinGeckoClient(server.URL, "", time.Second)
	prices, err := client.FetchPrices(context.Background(), domain.CurrencyUSD, testIDs)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("error = %v, should wrap ErrFetchFailed", err)
	}
	if prices != nil {
		t.Errorf("prices = %v, want nil on failure", prices)
	}
	if !strings.Contains(err.Error(), "tokenB") {
		t.Errorf("error %q should name the missing asset", err)
	}
}

func TestFetchPricesNullPrice(t *testing.T) {
	server := newTestServer(t,
		http.StatusOK, `{"tokenA": {"usd": null}, "tokenB": {"usd": 2}}`,
		http.StatusOK, `[]`,
	)

	client := NewCoinGeckoClient(server.URL, "", time.Second)
	prices, err := client.FetchPrices(context.Background(), domain.CurrencyUSD, testIDs)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse for a null price", err)
	}
	if prices != nil {
		t.Errorf("prices = %v, want nil on failure", prices)
	}
	if !strings.Contains(err.Error(), "tokenA") {
		t.Errorf("error %q should name the asset with a null price", err)
	}
}

func TestFetchPricesWrongCurrencyKeyFails(t *testing.T) {
	server := newTestServer(t,
		http.StatusOK, `{"tokenA": {"usd": 2.50}, "tokenB": {"usd": 125}}`,
		http.StatusOK, `[]`,
	)

	client := NewCoinGeckoClient(server.URL, "", time.Second)
	_, err := client.FetchPrices(context.Background(), domain.CurrencyCAD, testIDs)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestFetchPricesMalformedBody(t *testing.T) {
	server := newTestServer(t,
		http.StatusOK, `["not", "an", "object"]`,
		http.StatusOK, `[]`,
	)

	client := NewCoinGeckoClient(server.URL, "", time.Second)
	_, err := client.FetchPrices(context.Background(), domain.CurrencyUSD, testIDs)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestFetchPricesNegativePrice(t *testing.T) {
	server := newTestServer(t,
		http.StatusOK, `{"tokenA": {"usd": -1}, "tokenB": {"usd": 125}}`,
		http.StatusOK, `[]`,
	)

	client := NewCoinGeckoClient(server.URL, "", time.Second)
	_, err := client.FetchPrices(context.Background(), domain.CurrencyUSD, testIDs)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestFetchPricesHTTPError(t *testing.T) {
	server := newTestServer(t,
		http.StatusTooManyRequests, `{"error": "rate limited"}`,
		http.StatusOK, `[]`,
	)

	client := NewCoinGeckoClient(server.URL, "", time.Second)
	_, err := client.FetchPrices(context.Background(), domain.CurrencyUSD, testIDs)
	if !errors.Is(err, ErrHTTPStatus) {
		t.Fatalf("error = %v, want ErrHTTPStatus", err)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error %q should include the status code", err)
	}
}

func TestFetchPricesIconFailureIsNonFatal(t *testing.T) {
	server := newTestServer(t,
		http.StatusOK, `{"tokenA": {"usd": 2.50}, "tokenB": {"usd": 125}}`,
		http.StatusInternalServerError, `oops`,
	)

	client := NewCoinGeckoClient(server.URL, "", time.Second)
	prices, err := client.FetchPrices(context.Background(), domain.CurrencyUSD, testIDs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prices["tokenA"].Icon != "" || prices["tokenB"].Icon != "" {
		t.Errorf("icons should be empty when the markets call fails: %+v", prices)
	}
}

func TestFetchPricesNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewCoinGeckoClient(url, "", time.Second)
	_, err := client.FetchPrices(context.Background(), domain.CurrencyUSD, testIDs)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
}

func TestFetchPricesNoIDs(t *testing.T) {
	client := NewCoinGeckoClient("http://unused", "", time.Second)
	if _, err := client.FetchPrices(context.Background(), domain.CurrencyUSD, nil); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("error = %v, want ErrFetchFailed", err)
	}
}

func TestFetchPricesContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	client := NewCoinGeckoClient(server.URL, "", 5*time.Second)
	_, err := client.FetchPrices(ctx, domain.CurrencyUSD, testIDs)
	if err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}

func TestAPIKeyHeaderPro(t *testing.T) {
	client := NewCoinGeckoClient("https://pro-api.coingecko.com/api/v3", "k", time.Second)
	if got := client.apiKeyHeader(); got != "x-cg-pro-api-key" {
		t.Errorf("apiKeyHeader() = %q, want x-cg-pro-api-key", got)
	}
}
