package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mtlprog/airdrop/internal/metrics"
)

// NewRouter configures all routes. stream serves GET /api/v1/ws and may be nil.
func NewRouter(handler *Handler, stream http.HandlerFunc, adminAPIKey string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/prices", handler.GetPrices)
		r.Group(func(r chi.Router) {
			if adminAPIKey != "" {
				r.Use(func(next http.Handler) http.Handler { return requireAuth(adminAPIKey, next) })
			}
			r.Post("/prices/refresh", handler.RefreshPrices)
		})

		r.Get("/currency", handler.GetCurrency)
		r.Put("/currency", handler.SetCurrency)

		r.Get("/amount", handler.GetAmount)
		r.Put("/amount", handler.SetAmount)
		r.Delete("/amount", handler.ResetAmount)

		r.Get("/value", handler.GetValue)
		r.Get("/countdown", handler.GetCountdown)

		if stream != nil {
			r.Get("/ws", stream)
		}
	})

	return r
}

// NewServer creates an HTTP server with all routes configured.
func NewServer(port string, handler *Handler, stream http.HandlerFunc, adminAPIKey string) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(handler, stream, adminAPIKey),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
