// streamtest connects the stream watcher to live Binance ticker streams and
// prints every refresh decision to the console.
// Usage: go run ./cmd/streamtest -symbols BTCUSDT,ETHUSDT
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/binance-meta/internal/model"
	"github.com/rickgao/binance-meta/internal/stream"
)

// printRefresher stands in for the poller and prints each trigger.
type printRefresher struct{}

func (printRefresher) TriggerRefresh(kind model.ResourceKind) bool {
	fmt.Printf("[TRIGGER] refresh requested for %s\n", kind)
	return true
}

func main() {
	url := flag.String("url", "wss://stream.binance.com:9443", "stream base URL")
	symbols := flag.String("symbols", "BTCUSDT", "comma-separated symbols to watch")
	cooldown := flag.Duration("cooldown", time.Minute, "minimum gap between refresh triggers")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	cfg := stream.DefaultConfig(*url, strings.Split(*symbols, ","))
	cfg.RefreshCooldown = *cooldown

	watcher := stream.NewWatcher(cfg, printRefresher{}, nil, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Error("failed to start stream watcher", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := watcher.Stats()
				logger.Info("stats",
					"connected", stats.Connected,
					"triggers", stats.Triggers,
				)
			}
		}
	}()

	logger.Info("watching ticker streams - press Ctrl+C to stop",
		"symbols", *symbols,
		"cooldown", *cooldown,
	)

	// Wait for shutdown
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	watcher.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}
