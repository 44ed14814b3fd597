package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/binance-meta/internal/api"
	"github.com/rickgao/binance-meta/internal/auth"
	"github.com/rickgao/binance-meta/internal/config"
	"github.com/rickgao/binance-meta/internal/database"
	"github.com/rickgao/binance-meta/internal/journal"
	"github.com/rickgao/binance-meta/internal/metrics"
	"github.com/rickgao/binance-meta/internal/model"
	"github.com/rickgao/binance-meta/internal/poller"
	"github.com/rickgao/binance-meta/internal/ratelimit"
	"github.com/rickgao/binance-meta/internal/service"
	"github.com/rickgao/binance-meta/internal/store"
	"github.com/rickgao/binance-meta/internal/stream"
	"github.com/rickgao/binance-meta/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/metad.local.yaml", "path to config file")
	flag.Parse()

	// A .env next to the binary feeds ${VAR} expansion in the config file.
	// ENV_FILE points at an alternate location.
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting metad",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if level := parseLevel(cfg.Logging.Level); level != slog.LevelInfo {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)
	}

	logger.Info("configuration loaded",
		"rest_url", cfg.Exchange.RestURL,
		"journal_backend", cfg.Journal.Backend,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Credentials are optional; without them the account kind is not polled.
	var creds *auth.Credentials
	if cfg.Exchange.APIKey != "" && cfg.Exchange.PrivateKeyPath != "" {
		creds, err = auth.LoadCredentials(cfg.Exchange.APIKey, cfg.Exchange.PrivateKeyPath)
		if err != nil {
			logger.Error("failed to load credentials", "error", err)
			os.Exit(1)
		}
		logger.Info("credentials loaded")
	} else {
		logger.Info("no credentials configured, account info polling disabled")
	}

	m := metrics.New()

	// Seed the limiter from config until the exchange reports its own rules.
	seed := make([]model.RateLimitRule, 0, len(cfg.RateLimits))
	for _, b := range cfg.RateLimits {
		seed = append(seed, model.RateLimitRule{
			Bucket:   b.Bucket,
			Interval: b.Interval,
			Limit:    b.Limit,
		})
	}
	limiter := ratelimit.New(seed)

	// Open the journal
	logger.Info("opening journal", "backend", cfg.Journal.Backend)
	jnl, closeJournal, err := openJournal(ctx, cfg.Journal, logger)
	if err != nil {
		logger.Error("failed to open journal", "error", err)
		os.Exit(1)
	}
	defer closeJournal()

	st := store.New()

	// Create API client
	opts := []api.ClientOption{
		api.WithLogger(logger),
		api.WithTimeout(cfg.Exchange.Timeout),
		api.WithRetries(cfg.Exchange.MaxRetries, time.Second),
		api.WithCircuitBreaker(),
		api.WithUsageObserver(func(bucket string, used int) {
			limiter.ObserveServerUsage(bucket, used)
			m.SetBucketUsage(bucket, used)
		}),
	}
	if creds != nil {
		opts = append(opts, api.WithCredentials(creds))
	}
	apiClient := api.NewClient(cfg.Exchange.RestURL, opts...)

	schedules := map[model.ResourceKind]poller.KindSchedule{
		model.KindExchangeInfo: {Interval: cfg.Poll.ExchangeInfo.Interval, Weight: cfg.Poll.ExchangeInfo.Weight},
		model.KindSystemStatus: {Interval: cfg.Poll.SystemStatus.Interval, Weight: cfg.Poll.SystemStatus.Weight},
	}
	if creds != nil {
		schedules[model.KindAccountInfo] = poller.KindSchedule{
			Interval: cfg.Poll.AccountInfo.Interval,
			Weight:   cfg.Poll.AccountInfo.Weight,
		}
	}

	// Fresh exchange info carries the exchange's own rate limits; feed them
	// back so the poller obeys what the exchange reports.
	handler := poller.SnapshotHandlerFunc(func(snap model.Snapshot) error {
		info, ok := snap.Payload.(*model.ExchangeInfoData)
		if !ok || len(info.RateLimits) == 0 {
			return nil
		}
		limiter.SetRules(info.RateLimits)
		logger.Info("rate limit rules updated from exchange", "rules", len(info.RateLimits))
		return nil
	})

	plr := poller.New(poller.Config{
		Schedules: schedules,
		Timeout:   cfg.Poll.Timeout,
	}, apiClient, limiter, jnl, st, m, handler, logger)

	// Start poller (recovers journal state first)
	if err := plr.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		plr.Stop(shutdownCtx)
	}()

	// Start stream watcher (no-op without configured symbols)
	watcher := stream.NewWatcher(stream.Config{
		URL:                cfg.Exchange.StreamURL,
		Symbols:            cfg.Stream.Symbols,
		RefreshCooldown:    cfg.Stream.RefreshCooldown,
		ReconnectBaseDelay: cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Stream.ReconnectMaxDelay,
		PingTimeout:        cfg.Stream.PingTimeout,
		BufferSize:         cfg.Stream.BufferSize,
	}, plr, m, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Error("failed to start stream watcher", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		watcher.Stop(shutdownCtx)
	}()

	// Start query server
	svc := service.New(st, service.Components{
		Statuses:       plr,
		Usage:          limiter,
		Stream:         watcher,
		JournalBackend: cfg.Journal.Backend,
	}, logger)
	queryServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Service.Port),
		Handler:      svc.Handler(),
		ReadTimeout:  cfg.Service.ReadTimeout,
		WriteTimeout: cfg.Service.WriteTimeout,
	}
	go func() {
		logger.Info("starting query server", "port", cfg.Service.Port)
		if err := queryServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("query server error", "error", err)
		}
	}()

	// Start metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.Metrics.Path, m.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: metricsMux,
	}
	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("metad running",
		"query_url", fmt.Sprintf("http://localhost:%d", cfg.Service.Port),
		"metrics_url", fmt.Sprintf("http://localhost:%d%s", cfg.Metrics.Port, cfg.Metrics.Path),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	queryServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)

	logger.Info("metad stopped")
}

// openJournal builds the configured journal backend. The returned cleanup
// closes the journal and any database pool behind it.
func openJournal(ctx context.Context, cfg config.JournalConfig, logger *slog.Logger) (journal.Journal, func(), error) {
	switch cfg.Backend {
	case "file":
		jnl, err := journal.NewFile(cfg.Dir, !cfg.NoSync, logger)
		if err != nil {
			return nil, nil, err
		}
		return jnl, func() { jnl.Close() }, nil

	case "postgres":
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		jnl, err := journal.NewPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return jnl, func() {
			jnl.Close()
			pool.Close()
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}

// parseLevel maps a config string to a slog level, defaulting to info.
func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
