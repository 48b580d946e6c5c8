package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/airdrop/internal/amount"
	"github.com/mtlprog/airdrop/internal/api"
	"github.com/mtlprog/airdrop/internal/config"
	"github.com/mtlprog/airdrop/internal/currency"
	"github.com/mtlprog/airdrop/internal/domain"
	"github.com/mtlprog/airdrop/internal/export"
	"github.com/mtlprog/airdrop/internal/external"
	"github.com/mtlprog/airdrop/internal/price"
	"github.com/mtlprog/airdrop/internal/stream"
	"github.com/mtlprog/airdrop/internal/valuation"
	"github.com/mtlprog/airdrop/internal/worker"
)

func main() {
	app := &cli.App{
		Name:  "airdrop",
		Usage: "track the fiat value of an airdrop allocation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "load environment variables from `FILE` before reading configuration",
				EnvVars: []string{"ENV_FILE"},
			},
		},
		Before: loadEnvFile,
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "poll prices and serve the HTTP API",
				Action: serve,
			},
			{
				Name:  "prices",
				Usage: "fetch prices once and print the derived value",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "currency", Usage: "fiat `CODE` (USD, CAD, EUR)"},
					&cli.StringFlag{Name: "amount", Usage: "base `AMOUNT` of the primary asset"},
				},
				Action: printPrices,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("airdrop failed", "error", err)
		os.Exit(1)
	}
}

// loadEnvFile loads --env-file if given, otherwise an optional .env in the working directory.
func loadEnvFile(c *cli.Context) error {
	if path := c.String("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// loadConfig installs the JSON logger first so configuration warnings use it too.
func loadConfig(logOut io.Writer) (config.Config, error) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: config.LogLevel()})))
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	selection := currency.NewSelection(cfg.DefaultCurrency)
	holder, err := amount.NewHolder(cfg.DefaultAmount)
	if err != nil {
		return err
	}

	coingecko := external.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoAPIKey, cfg.CoinGeckoTimeout)
	store := price.NewStore(coingecko, selection, domain.AssetIDs(cfg.Assets))

	// Push committed states to WebSocket clients
	hub := stream.NewHub(store)
	store.OnCommit(hub.Broadcast)
	go hub.Run(ctx)

	if cfg.SheetsEnabled() {
		writer, err := export.NewSheetsWriter(ctx, cfg.GoogleSheetsID, cfg.GoogleCredentials)
		if err != nil {
			return fmt.Errorf("creating sheets writer: %w", err)
		}
		exportSvc := export.NewService(cfg.Assets, cfg.PrimaryAsset, cfg.SecondaryAsset, holder, writer)
		exportWorker := worker.NewExportWorker(exportSvc)
		store.OnCommit(exportWorker.Notify)
		go exportWorker.Run(ctx)
	} else {
		slog.Info("GOOGLE_SHEETS_ID not set, sheets export disabled")
	}

	priceWorker := worker.NewPriceWorker(store, selection, cfg.PriceWorkerInterval)
	priceWorker.Start(ctx)

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, refresh endpoint is unprotected")
	}

	handler := api.NewHandler(api.HandlerConfig{
		Prices:         store,
		Currency:       selection,
		Amount:         holder,
		Assets:         cfg.Assets,
		PrimaryAsset:   cfg.PrimaryAsset,
		SecondaryAsset: cfg.SecondaryAsset,
		TargetTime:     cfg.TargetTime,
	})
	srv := api.NewServer(cfg.HTTPPort, handler, hub.HandleWS, cfg.AdminAPIKey)

	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	priceWorker.Stop()

	slog.Info("shutdown complete")
	return nil
}

func printPrices(c *cli.Context) error {
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	cur := cfg.DefaultCurrency
	if raw := c.String("currency"); raw != "" {
		if cur, err = domain.ParseCurrency(raw); err != nil {
			return err
		}
	}

	holder, err := amount.NewHolder(cfg.DefaultAmount)
	if err != nil {
		return err
	}
	if raw := c.String("amount"); raw != "" {
		if err := holder.Set(raw); err != nil {
			return err
		}
	}

	coingecko := external.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoAPIKey, cfg.CoinGeckoTimeout)
	store := price.NewStore(coingecko, currency.NewSelection(cur), domain.AssetIDs(cfg.Assets))
	if err := store.Refresh(c.Context); err != nil {
		return err
	}

	snap := store.State().Snapshot
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ASSET\tID\tPRICE (%s)\n", snap.Currency)
	for _, row := range export.BuildRows(cfg.Assets, snap) {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Symbol, row.ID, domain.FormatDisplay(row.Price))
	}

	d := valuation.Derive(snap, holder.Get(), cfg.PrimaryAsset, cfg.SecondaryAsset)
	fmt.Fprintf(tw, "\nAMOUNT\t%s\t%s\n", d.PrimaryAsset, domain.FormatDisplay(d.Amount))
	fmt.Fprintf(tw, "VALUE\t%s\t%s\n", d.Currency, domain.FormatDisplay(d.Fiat.Amount))
	if d.CrossAsset.Valid {
		fmt.Fprintf(tw, "VALUE IN\t%s\t%s\n", d.SecondaryAsset, domain.FormatDisplay(d.CrossAsset.Amount))
	} else {
		fmt.Fprintf(tw, "VALUE IN\t%s\tunavailable\n", d.SecondaryAsset)
	}
	return tw.Flush()
}
