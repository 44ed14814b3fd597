package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/binance-meta/internal/metrics"
	"github.com/rickgao/binance-meta/internal/model"
)

// statusBreak is the ticker status a halted symbol reports.
const statusBreak = "BREAK"

// Config holds stream watcher settings.
type Config struct {
	// URL is the base WebSocket endpoint, e.g. wss://stream.binance.com:9443.
	URL string

	// Symbols to watch. An empty list disables the watcher entirely.
	Symbols []string

	// RefreshCooldown is the minimum gap between refresh requests sent to
	// the poller.
	RefreshCooldown time.Duration

	// ReconnectBaseDelay and ReconnectMaxDelay bound the backoff between
	// connection attempts.
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration

	// PingTimeout, WriteTimeout and BufferSize are passed through to the
	// underlying connection.
	PingTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

// DefaultConfig returns watcher settings suitable for production use.
func DefaultConfig(url string, symbols []string) Config {
	return Config{
		URL:                url,
		Symbols:            symbols,
		RefreshCooldown:    time.Minute,
		ReconnectBaseDelay: time.Second,
		ReconnectMaxDelay:  60 * time.Second,
		PingTimeout:        5 * time.Minute,
		WriteTimeout:       5 * time.Second,
		BufferSize:         1024,
	}
}

// Refresher accepts out-of-cycle refresh requests for a resource kind.
// *poller.Poller satisfies it.
type Refresher interface {
	TriggerRefresh(kind model.ResourceKind) bool
}

// Stats is a point-in-time view of the watcher.
type Stats struct {
	Connected bool
	Triggers  int64
}

// Watcher maintains one connection to the combined ticker streams and asks
// the poller for an early exchange info refresh when a symbol halts.
type Watcher struct {
	cfg       Config
	refresher Refresher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cooldown  *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	connected bool
	triggers  int64
}

// NewWatcher creates a watcher. The refresher must not be nil when any
// symbols are configured.
func NewWatcher(cfg Config, refresher Refresher, m *metrics.Metrics, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	cooldown := cfg.RefreshCooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Watcher{
		cfg:       cfg,
		refresher: refresher,
		metrics:   m,
		logger:    logger,
		cooldown:  rate.NewLimiter(rate.Every(cooldown), 1),
	}
}

// Enabled reports whether the watcher has any symbols to watch.
func (w *Watcher) Enabled() bool {
	return len(w.cfg.Symbols) > 0
}

// Start launches the connection loop. With no symbols configured it logs
// and returns without starting anything.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.Enabled() {
		w.logger.Info("stream watcher disabled, no symbols configured")
		return nil
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run()

	w.logger.Info("stream watcher started",
		"symbols", len(w.cfg.Symbols),
		"refresh_cooldown", w.cfg.RefreshCooldown,
	)
	return nil
}

// Stop shuts the watcher down, waiting for the connection loop to exit.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("stream watcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the current connection state and trigger count.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Stats{Connected: w.connected, Triggers: w.triggers}
}

// streamURL builds the combined stream URL for the configured symbols.
func (w *Watcher) streamURL() string {
	streams := make([]string, 0, len(w.cfg.Symbols))
	for _, sym := range w.cfg.Symbols {
		streams = append(streams, strings.ToLower(sym)+"@ticker")
	}
	return strings.TrimSuffix(w.cfg.URL, "/") + "/stream?streams=" + strings.Join(streams, "/")
}

// run dials the stream and consumes it until the context ends, reconnecting
// with exponential backoff after failures.
func (w *Watcher) run() {
	defer w.wg.Done()

	base := w.cfg.ReconnectBaseDelay
	if base <= 0 {
		base = time.Second
	}
	maxWait := w.cfg.ReconnectMaxDelay
	if maxWait <= 0 {
		maxWait = 60 * time.Second
	}
	wait := base

	for {
		client := NewClient(ClientConfig{
			URL:          w.streamURL(),
			PingTimeout:  w.cfg.PingTimeout,
			WriteTimeout: w.cfg.WriteTimeout,
			BufferSize:   w.cfg.BufferSize,
		}, w.logger)

		if err := client.Connect(w.ctx); err != nil {
			if w.ctx.Err() != nil {
				return
			}
			w.logger.Warn("stream connect failed",
				"err", err,
				"retry_in", wait,
			)
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(wait):
			}
			wait *= 2
			if wait > maxWait {
				wait = maxWait
			}
			continue
		}

		wait = base
		w.setConnected(true)
		w.consume(client)
		w.setConnected(false)
		client.Close()

		if w.ctx.Err() != nil {
			return
		}
		w.logger.Warn("stream connection lost, reconnecting", "retry_in", wait)
		select {
		case <-w.ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// consume reads frames off one connection until it dies or the watcher stops.
func (w *Watcher) consume(client Client) {
	for {
		select {
		case <-w.ctx.Done():
			return
		case err := <-client.Errors():
			w.logger.Warn("stream connection error", "err", err)
			return
		case msg := <-client.Messages():
			w.handleMessage(msg.Data)
		}
	}
}

// combinedFrame is one message from a combined stream endpoint.
type combinedFrame struct {
	Stream string      `json:"stream"`
	Data   tickerEvent `json:"data"`
}

// tickerEvent is the slice of a ticker payload the watcher inspects.
// Symbols trading normally omit the status field.
type tickerEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Status    string `json:"status"`
}

func (w *Watcher) handleMessage(data []byte) {
	var frame combinedFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		w.logger.Debug("undecodable stream message", "err", err)
		return
	}
	if frame.Data.Status != statusBreak {
		return
	}

	if !w.cooldown.Allow() {
		w.logger.Debug("refresh request suppressed by cooldown",
			"symbol", frame.Data.Symbol,
		)
		return
	}

	w.logger.Info("trading break reported, requesting exchange info refresh",
		"symbol", frame.Data.Symbol,
		"stream", frame.Stream,
	)
	w.metrics.RefreshTriggered("stream")
	w.refresher.TriggerRefresh(model.KindExchangeInfo)

	w.mu.Lock()
	w.triggers++
	w.mu.Unlock()
}

func (w *Watcher) setConnected(connected bool) {
	w.mu.Lock()
	w.connected = connected
	w.mu.Unlock()
}
