package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mtlprog/airdrop/internal/domain"
)

// IconCurrency is the reference currency for the markets call. Icons don't depend on it.
const IconCurrency = domain.CurrencyUSD

const maxErrorBody = 512

// CoinGeckoClient fetches prices and icons from the CoinGecko API.
type CoinGeckoClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCoinGeckoClient creates a new CoinGecko API client. An empty apiKey sends no key header.
func NewCoinGeckoClient(baseURL, apiKey string, timeout time.Duration) *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// marketCoin is one element of the /coins/markets response.
type marketCoin struct {
	ID    string `json:"id"`
	Image string `json:"image"`
}

// FetchPrices fetches prices for ids in currency together with their icons.
// The result has an entry for every id, or an error wrapping ErrFetchFailed.
// A failed icon lookup is logged and yields entries without icons.
func (c *CoinGeckoClient) FetchPrices(ctx context.Context, currency domain.Currency, ids []domain.AssetID) (domain.Prices, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no asset ids requested", ErrFetchFailed)
	}

	var (
		quotes map[domain.AssetID]decimal.Decimal
		icons  map[domain.AssetID]string
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		q, err := c.fetchSimplePrice(gctx, currency, ids)
		if err != nil {
			return err
		}
		quotes = q
		return nil
	})

	g.Go(func() error {
		m, err := c.fetchIcons(gctx, ids)
		if err != nil {
			slog.Warn("CoinGecko: icon lookup failed, continuing without icons", "error", err)
			return nil // non-fatal
		}
		icons = m
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(domain.Prices, len(ids))
	for _, id := range ids {
		result[id] = domain.PriceEntry{Price: quotes[id], Icon: icons[id]}
	}
	return result, nil
}

func (c *CoinGeckoClient) fetchSimplePrice(ctx context.Context, currency domain.Currency, ids []domain.AssetID) (map[domain.AssetID]decimal.Decimal, error) {
	params := url.Values{}
	params.Set("ids", joinIDs(ids))
	params.Set("vs_currencies", currency.Query())

	body, err := c.get(ctx, "/simple/price", params)
	if err != nil {
		return nil, err
	}

	// Parse: {"debridge":{"usd":0.025},"solana":{"usd":125.4}}
	// NullDecimal so that an explicit null counts as missing rather than zero.
	var raw map[string]map[string]decimal.NullDecimal
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing simple/price: %w", ErrMalformedResponse, err)
	}

	missing := lo.Filter(ids, func(id domain.AssetID, _ int) bool {
		p, ok := raw[string(id)][currency.Query()]
		return !ok || !p.Valid
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no %s price for %s", ErrMalformedResponse, currency, joinIDs(missing))
	}

	quotes := make(map[domain.AssetID]decimal.Decimal, len(ids))
	for _, id := range ids {
		p := raw[string(id)][currency.Query()].Decimal
		if p.IsNegative() {
			return nil, fmt.Errorf("%w: negative price %s for %s", ErrMalformedResponse, p, id)
		}
		quotes[id] = p
	}
	return quotes, nil
}

func (c *CoinGeckoClient) fetchIcons(ctx context.Context, ids []domain.AssetID) (map[domain.AssetID]string, error) {
	params := url.Values{}
	params.Set("ids", joinIDs(ids))
	params.Set("vs_currency", IconCurrency.Query())

	body, err := c.get(ctx, "/coins/markets", params)
	if err != nil {
		return nil, err
	}

	var coins []marketCoin
	if err := json.Unmarshal(body, &coins); err != nil {
		return nil, fmt.Errorf("%w: parsing coins/markets: %w", ErrMalformedResponse, err)
	}

	icons := lo.SliceToMap(
		lo.Filter(coins, func(m marketCoin, _ int) bool { return m.ID != "" && m.Image != "" }),
		func(m marketCoin) (domain.AssetID, string) { return domain.AssetID(m.ID), m.Image },
	)
	return icons, nil
}

func (c *CoinGeckoClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating CoinGecko request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader(), c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: CoinGecko %s: %w", ErrNetwork, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading CoinGecko %s: %w", ErrNetwork, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: CoinGecko %s HTTP %d: %s", ErrHTTPStatus, path, resp.StatusCode, truncate(body))
	}

	return body, nil
}

// apiKeyHeader picks the demo or pro header depending on the configured host.
func (c *CoinGeckoClient) apiKeyHeader() string {
	if strings.Contains(c.baseURL, "pro-api.coingecko.com") {
		return "x-cg-pro-api-key"
	}
	return "x-cg-demo-api-key"
}

func joinIDs(ids []domain.AssetID) string {
	return strings.Join(lo.Map(ids, func(id domain.AssetID, _ int) string { return string(id) }), ",")
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
