// Command scanner wires the cross-exchange/triangular arbitrage scanner
// together: config load, registry bootstrap, graph build, evaluator,
// scan loop, sinks and the read-only HTTP/WS surface.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"arbscan/internal/api"
	"arbscan/internal/config"
	"arbscan/internal/evaluator"
	"arbscan/internal/feed"
	"arbscan/internal/graph"
	"arbscan/internal/metadata"
	"arbscan/internal/metrics"
	"arbscan/internal/models"
	"arbscan/internal/orderbook"
	"arbscan/internal/paths"
	"arbscan/internal/registry"
	"arbscan/internal/scanner"
	"arbscan/internal/sink"
	"arbscan/internal/volatility"
	"arbscan/pkg/ratelimit"
	"arbscan/pkg/retry"
	"arbscan/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := utils.InitLogger(utils.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	utils.SetGlobalLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := registry.New()
	if err := bootstrapMarkets(ctx, reg, cfg, logger); err != nil {
		logger.Error("market bootstrap failed", utils.Err(err))
		os.Exit(1)
	}
	logger.Info("registry populated", utils.Int("markets", reg.Len()))

	g := graph.Build(reg)
	books := orderbook.New(32)
	books.OnInvariantViolation = func(v orderbook.InvariantError) {
		logger.Error("order book invariant violated, symbol quarantined",
			utils.Exchange(v.ExchangeID), utils.Symbol(v.Symbol),
			utils.String("kind", string(v.Kind)), utils.Int64("sequence_no", int64(v.SequenceNo)))
		metrics.CacheQuarantinedTotal.WithLabelValues(v.ExchangeID, v.Symbol, string(v.Kind)).Inc()
	}
	vols := volatility.New(decimal.NewFromFloat(cfg.RiskModel.FallbackSigma))

	ev := evaluator.New(books, vols, evaluator.RiskConfig{
		MinProfitMargin:     decimal.NewFromFloat(cfg.RiskModel.MinProfitMargin),
		VolRiskMultiplier:   decimal.NewFromFloat(cfg.RiskModel.VolRiskMultiplier),
		SlippageCoefficient: decimal.NewFromFloat(cfg.RiskModel.SlippageCoefficient),
		MinLegFillRatio:     decimal.NewFromFloat(cfg.RiskModel.MinLegFillRatio),
		StalenessBound:      time.Duration(cfg.RiskModel.StalenessBoundMs) * time.Millisecond,
		RejectOnPartialFill: cfg.RiskModel.RejectOnPartialFill,
	})

	sinks, closeSinks := buildSinks(cfg, logger)
	defer closeSinks()

	startAssets := make([]models.Asset, len(cfg.Paths.StartAssets))
	for i, a := range cfg.Paths.StartAssets {
		startAssets[i] = models.Asset(a)
	}

	sc := scanner.New(g, ev, sinks.emitters, scanner.Options{
		TickInterval:       cfg.Execution.TickInterval,
		MaxConcurrentPaths: cfg.Execution.MaxConcurrentPaths,
		InputNotional:      decimal.NewFromFloat(cfg.Execution.InputNotional),
		PathOptions: paths.Options{
			MinLength:            cfg.Paths.MinLength,
			MaxLength:            cfg.Paths.MaxLength,
			StartAssets:          startAssets,
			AllowRevisitNodes:    cfg.Paths.AllowRevisitNodes,
			AllowSameMarketTwice: cfg.Paths.AllowSameMarketTwice,
			AllowCrossExchange:   cfg.Paths.AllowCrossExchange,
		},
	}, logger)

	go sc.Run(ctx)

	for _, fc := range cfg.Feed.Exchanges {
		runFeed(ctx, fc, cfg, books, logger)
	}

	if sinks.broadcast != nil {
		go sinks.broadcast.Run(ctx)
	}

	router := api.SetupRoutes(&api.Dependencies{Broadcast: sinks.broadcast, Health: sc, Logger: logger})
	server := &http.Server{
		Addr:         cfg.Sink.APIAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", utils.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", utils.Err(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", utils.Err(err))
	}
}

func bootstrapMarkets(ctx context.Context, reg *registry.Registry, cfg *config.Config, logger *utils.Logger) error {
	for _, fc := range cfg.Feed.Exchanges {
		if fc.MetadataURL == "" {
			continue
		}
		provider := metadata.NewHTTPProvider(fc.ExchangeID, fc.MetadataURL,
			metadata.DefaultHTTPClientConfig(),
			ratelimit.NewRateLimiter(cfg.Feed.MetadataFetchRate, cfg.Feed.MetadataFetchRate*2),
			retry.DefaultConfig(),
		)
		markets, err := provider.FetchMarkets(ctx)
		if err != nil {
			return fmt.Errorf("fetch markets for %s: %w", fc.ExchangeID, err)
		}
		for _, m := range markets {
			if err := reg.Register(m); err != nil {
				return fmt.Errorf("register market for %s: %w", fc.ExchangeID, err)
			}
		}
	}
	return nil
}

func runFeed(ctx context.Context, fc config.ExchangeFeedConfig, cfg *config.Config, books *orderbook.Cache, logger *utils.Logger) {
	if fc.WSURL == "" {
		return
	}
	f := feed.NewWSFeed(
		fc.ExchangeID,
		fc.WSURL,
		feed.NewGorillaDialer(5*time.Second),
		feed.JSONDepthDecoder{ExchangeID: fc.ExchangeID},
		books,
		nil,
		feed.ReconnectConfig{
			InitialDelay: cfg.Feed.ReconnectInitialDelay,
			MaxDelay:     cfg.Feed.ReconnectMaxDelay,
			MaxRetries:   cfg.Feed.ReconnectMaxRetries,
			PingInterval: cfg.Feed.PingInterval,
			ReadTimeout:  cfg.Feed.ReadTimeout,
		},
		logger,
	)
	go f.Run(ctx)
}

type sinkSet struct {
	emitters  []scanner.Sink
	broadcast *sink.BroadcastSink
}

func buildSinks(cfg *config.Config, logger *utils.Logger) (sinkSet, func()) {
	var set sinkSet
	closers := make([]func(), 0, 2)

	if cfg.Sink.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.Sink.PostgresDSN)
		if err != nil {
			logger.Error("failed to open postgres sink", utils.Err(err))
		} else {
			ps := sink.NewPostgresSink(db, cfg.Sink.BroadcastBufSize, logger)
			set.emitters = append(set.emitters, ps)
			closers = append(closers, ps.Close, func() { db.Close() })
		}
	}

	bs := sink.NewBroadcastSink(logger)
	set.broadcast = bs
	set.emitters = append(set.emitters, bs)

	return set, func() {
		for _, c := range closers {
			c()
		}
	}
}
