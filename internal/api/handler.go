package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/airdrop/internal/amount"
	"github.com/mtlprog/airdrop/internal/countdown"
	"github.com/mtlprog/airdrop/internal/domain"
	"github.com/mtlprog/airdrop/internal/external"
	"github.com/mtlprog/airdrop/internal/metrics"
	"github.com/mtlprog/airdrop/internal/valuation"
)

const maxBodyBytes = 4 << 10

// PriceStore is the read/refresh side of price.Store.
type PriceStore interface {
	State() domain.PriceState
	Refresh(ctx context.Context) error
}

// CurrencySelection is the shared selected currency.
type CurrencySelection interface {
	Get() domain.Currency
	Set(domain.Currency)
}

// AmountHolder is the user-editable base amount.
type AmountHolder interface {
	Get() decimal.Decimal
	Default() decimal.Decimal
	IsDefault() bool
	Set(raw string) error
	Reset()
}

// HandlerConfig wires a Handler to its collaborators.
type HandlerConfig struct {
	Prices         PriceStore
	Currency       CurrencySelection
	Amount         AmountHolder
	Assets         []domain.Asset
	PrimaryAsset   domain.AssetID
	SecondaryAsset domain.AssetID
	TargetTime     time.Time
	Now            func() time.Time
}

// Handler provides HTTP endpoints for prices, the selected currency and the base amount.
type Handler struct {
	prices    PriceStore
	currency  CurrencySelection
	amount    AmountHolder
	assets    []domain.Asset
	primary   domain.AssetID
	secondary domain.AssetID
	target    time.Time
	now       func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		prices:    cfg.Prices,
		currency:  cfg.Currency,
		amount:    cfg.Amount,
		assets:    cfg.Assets,
		primary:   cfg.PrimaryAsset,
		secondary: cfg.SecondaryAsset,
		target:    cfg.TargetTime,
		now:       now,
	}
}

type pricesResponse struct {
	domain.PriceState
	Stale  bool           `json:"stale"`
	Assets []domain.Asset `json:"assets"`
}

type currencyResponse struct {
	Currency  domain.Currency   `json:"currency"`
	Supported []domain.Currency `json:"supported"`
}

type amountResponse struct {
	Amount    decimal.Decimal `json:"amount"`
	Default   decimal.Decimal `json:"default"`
	IsDefault bool            `json:"isDefault"`
}

type valueResponse struct {
	valuation.Derived
	Status     domain.Status `json:"status"`
	Refreshing bool          `json:"refreshing"`
	Stale      bool          `json:"stale"`
}

// GetPrices handles GET /api/v1/prices.
// A failed refresh keeps serving the last snapshot with status "error".
func (h *Handler) GetPrices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.pricesResponse())
}

// RefreshPrices handles POST /api/v1/prices/refresh.
func (h *Handler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	metrics.PriceRefreshesTotal.WithLabelValues(metrics.TriggerManual).Inc()

	// Returns once the latest issued refresh has been applied, even if it was issued by someone else.
	err := h.prices.Refresh(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.pricesResponse())
	case r.Context().Err() != nil:
		slog.Debug("price refresh abandoned by client", "error", err)
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "refresh canceled")
	case errors.Is(err, external.ErrFetchFailed):
		slog.Warn("manual price refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to fetch prices")
	default:
		slog.Error("manual price refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// GetCurrency handles GET /api/v1/currency.
func (h *Handler) GetCurrency(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, currencyResponse{
		Currency:  h.currency.Get(),
		Supported: domain.SupportedCurrencies,
	})
}

// SetCurrency handles PUT /api/v1/currency. A change triggers a refresh through the price worker.
func (h *Handler) SetCurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency string `json:"currency"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.currency.Set(c)
	h.GetCurrency(w, r)
}

// GetAmount handles GET /api/v1/amount.
func (h *Handler) GetAmount(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.amountResponse())
}

// SetAmount handles PUT /api/v1/amount. The amount may be sent as a JSON string or number.
func (h *Handler) SetAmount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount json.RawMessage `json:"amount"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	raw := strings.TrimSpace(string(req.Amount))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(req.Amount, &s); err != nil {
			writeError(w, http.StatusBadRequest, "invalid amount")
			return
		}
		raw = s
	}

	if err := h.amount.Set(raw); err != nil {
		if errors.Is(err, amount.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("failed to set amount", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, h.amountResponse())
}

// ResetAmount handles DELETE /api/v1/amount.
func (h *Handler) ResetAmount(w http.ResponseWriter, _ *http.Request) {
	h.amount.Reset()
	writeJSON(w, http.StatusOK, h.amountResponse())
}

// GetValue handles GET /api/v1/value.
func (h *Handler) GetValue(w http.ResponseWriter, _ *http.Request) {
	st := h.prices.State()
	writeJSON(w, http.StatusOK, valueResponse{
		Derived:    valuation.Derive(st.Snapshot, h.amount.Get(), h.primary, h.secondary),
		Status:     st.Status,
		Refreshing: st.Refreshing,
		Stale:      st.Stale(),
	})
}

// GetCountdown handles GET /api/v1/countdown.
func (h *Handler) GetCountdown(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, countdown.Until(h.now(), h.target))
}

func (h *Handler) pricesResponse() pricesResponse {
	st := h.prices.State()
	return pricesResponse{PriceState: st, Stale: st.Stale(), Assets: h.assets}
}

func (h *Handler) amountResponse() amountResponse {
	return amountResponse{
		Amount:    h.amount.Get(),
		Default:   h.amount.Default(),
		IsDefault: h.amount.IsDefault(),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
