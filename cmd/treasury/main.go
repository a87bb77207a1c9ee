package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/rose-token/treasury/internal/amm"
	"github.com/rose-token/treasury/internal/api"
	"github.com/rose-token/treasury/internal/config"
	"github.com/rose-token/treasury/internal/database"
	"github.com/rose-token/treasury/internal/domain"
	"github.com/rose-token/treasury/internal/export"
	"github.com/rose-token/treasury/internal/history"
	"github.com/rose-token/treasury/internal/pricing"
	"github.com/rose-token/treasury/internal/snapshot"
	"github.com/rose-token/treasury/internal/token"
	"github.com/rose-token/treasury/internal/treasury"
	"github.com/rose-token/treasury/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	app := &cli.App{
		Name:  "treasury",
		Usage: "multi-asset reserve engine backing the rose token",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API with rebalance and report workers",
				Action: runServe,
			},
			{
				Name:   "report",
				Usage:  "value the reserve once and write the XLSX report",
				Action: runReport,
			},
			{
				Name:   "validate",
				Usage:  "check that basket target allocations sum to 100%",
				Action: runValidate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// bootstrap builds the engine and its collaborators from configuration:
// in-memory token ledgers, price feeds, a local swap desk seeded with
// inventory, and the registered reserve basket.
func bootstrap(ctx context.Context, cfg config.Config, recorder treasury.Recorder) (*treasury.Engine, error) {
	basket, err := config.LoadBasket(cfg.BasketFile)
	if err != nil {
		return nil, err
	}

	ledgers := make(map[string]*token.Memory, len(basket.Assets))
	for _, a := range basket.Assets {
		ledgers[a.Key] = token.NewMemory(a.Key)
	}
	rose, ok := ledgers[basket.Rose]
	if !ok {
		return nil, fmt.Errorf("basket does not define the value token %q", basket.Rose)
	}

	var priceClient *pricing.Client
	if cfg.PriceAPIURL != "" {
		symbolIDs := make(map[string]string)
		for _, a := range basket.Assets {
			if a.CoinID != "" {
				symbolIDs[a.Key] = a.CoinID
			}
		}
		priceClient = pricing.NewClient(cfg.PriceAPIURL, symbolIDs, cfg.PriceAPIDelay, cfg.PriceAPIRetryMax)
	}

	desk := amm.NewDesk("desk", cfg.AggregatorFeeBps)

	engine, err := treasury.New(treasury.Config{
		Owner:                 cfg.Owner,
		EngineAccount:         cfg.EngineAccount,
		StableKey:             domain.AssetKey(basket.Stable),
		RoseKey:               domain.AssetKey(basket.Rose),
		DepositCooldown:       cfg.DepositCooldown,
		RedeemCooldown:        cfg.RedeemCooldown,
		RebalanceCooldown:     cfg.RebalanceCooldown,
		DriftThresholdBps:     cfg.DriftThresholdBps,
		SlippageBps:           cfg.SlippageBps,
		ForceRespectsCooldown: cfg.ForceRespectsCooldown,
		PriceMaxAge:           cfg.PriceMaxAge,
	}, rose, desk, treasury.WithRecorder(recorder))
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	for _, a := range basket.Assets {
		ledger := ledgers[a.Key]

		var feed pricing.Feed
		switch {
		case a.Pegged || a.Key == basket.Rose:
			// valued without a feed
		case priceClient != nil && a.CoinID != "":
			feed = priceClient.Feed(a.Key)
		default:
			feed = pricing.NewStaticFeed(a.InitialPriceUSD)
		}

		meta := domain.Asset{
			Key:       domain.AssetKey(a.Key),
			Token:     a.Token,
			Decimals:  a.Decimals,
			TargetBps: a.TargetBps,
			Pegged:    a.Pegged,
		}
		if err := engine.AddAsset(ctx, cfg.Owner, meta, ledger, feed); err != nil {
			return nil, fmt.Errorf("registering %s: %w", a.Key, err)
		}

		if a.DeskInventory.IsPositive() {
			if err := ledger.Mint(ctx, desk.Account(), a.DeskInventory); err != nil {
				return nil, fmt.Errorf("seeding desk inventory for %s: %w", a.Key, err)
			}
		}
	}

	seedDeskRates(ctx, engine, desk, basket)

	if cfg.Rebalancer != "" {
		if err := engine.SetRebalancer(ctx, cfg.Owner, cfg.Rebalancer); err != nil {
			return nil, fmt.Errorf("setting rebalancer: %w", err)
		}
	}

	return engine, nil
}

// seedDeskRates derives raw-unit pair rates from the current USD valuations
// so the local desk quotes consistently with the oracle.
func seedDeskRates(ctx context.Context, engine *treasury.Engine, desk *amm.Desk, basket config.Basket) {
	type priced struct {
		key      domain.AssetKey
		decimals int32
		price    decimal.Decimal
	}

	var assets []priced
	for _, a := range basket.Assets {
		if a.Key == basket.Rose {
			continue
		}
		b, err := engine.AssetBreakdown(ctx, domain.AssetKey(a.Key))
		if err != nil {
			slog.Warn("skipping desk rate, no price", "asset", a.Key, "error", err)
			continue
		}
		assets = append(assets, priced{domain.AssetKey(a.Key), a.Decimals, b.PriceUSD})
	}

	for _, from := range assets {
		for _, to := range assets {
			if from.key == to.key || !to.price.IsPositive() {
				continue
			}
			// raw_out = raw_in * (priceFrom/priceTo) * 10^(decTo-decFrom)
			rate := from.price.Div(to.price).Shift(to.decimals - from.decimals)
			desk.SetRate(from.key, to.key, rate)
		}
	}
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	var (
		journal      history.Repository
		snapshotRepo snapshot.Repository
	)
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		migrationsSub, err := fs.Sub(migrationsFS, "migrations")
		if err != nil {
			return fmt.Errorf("creating migrations sub-fs: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}

		journal = history.NewPgRepository(pool)
		snapshotRepo = snapshot.NewPgRepository(pool)
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory journal and snapshots")
		journal = history.NewMemoryRepository()
		snapshotRepo = snapshot.NewMemoryRepository()
	}

	engine, err := bootstrap(ctx, cfg, journal)
	if err != nil {
		return err
	}

	snapshotSvc := snapshot.NewService(engine, snapshotRepo)

	var writers []export.Writer
	if cfg.ReportXLSXPath != "" {
		writers = append(writers, export.NewXLSXWriter(cfg.ReportXLSXPath))
	}
	if cfg.SheetsSpreadsheet != "" && cfg.SheetsCredentials != "" {
		sw, err := export.NewSheetsWriter(ctx, cfg.SheetsSpreadsheet, cfg.SheetsCredentials)
		if err != nil {
			return fmt.Errorf("creating sheets writer: %w", err)
		}
		writers = append(writers, sw)
	}
	var hook worker.AfterSnapshotHook
	if len(writers) > 0 {
		hook = export.NewService(writers...)
	}

	rebalanceCaller := cfg.Rebalancer
	if rebalanceCaller == "" {
		rebalanceCaller = cfg.Owner
	}
	go worker.NewRebalanceWorker(engine, rebalanceCaller, cfg.RebalanceInterval).Run(ctx)
	go worker.NewReportWorker(snapshotSvc, cfg.ReportInterval, hook).Run(ctx)

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, admin endpoints are disabled")
	}

	srv := api.NewServer(cfg.HTTPPort, engine, journal, snapshotSvc, cfg.AdminAPIKey)

	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func runReport(c *cli.Context) error {
	cfg := config.Load()

	engine, err := bootstrap(c.Context, cfg, nil)
	if err != nil {
		return err
	}

	b, err := engine.VaultBreakdown(c.Context)
	if err != nil {
		return fmt.Errorf("valuing reserve: %w", err)
	}

	if err := export.NewXLSXWriter(cfg.ReportXLSXPath).Write(c.Context, b); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	fmt.Printf("price: %s\n", domain.FormatUSD(b.Price))
	fmt.Printf("hard asset value: %s USD\n", domain.FormatUSD(b.HardAssetsUSD))
	fmt.Printf("circulating supply: %s\n", b.CirculatingSupply.String())
	fmt.Printf("report written to %s\n", cfg.ReportXLSXPath)
	return nil
}

func runValidate(c *cli.Context) error {
	cfg := config.Load()

	engine, err := bootstrap(c.Context, cfg, nil)
	if err != nil {
		return err
	}

	for _, a := range engine.AllAssets() {
		fmt.Printf("%-8s target %5d bps  active=%v\n", a.Key, a.TargetBps, a.Active)
	}
	if !engine.ValidateAllocations() {
		return cli.Exit("target allocations do not sum to 10000 bps", 1)
	}
	fmt.Println("allocations valid")
	return nil
}
