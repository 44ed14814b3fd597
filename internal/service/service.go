package service

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rickgao/binance-meta/internal/model"
	"github.com/rickgao/binance-meta/internal/poller"
	"github.com/rickgao/binance-meta/internal/ratelimit"
	"github.com/rickgao/binance-meta/internal/store"
	"github.com/rickgao/binance-meta/internal/stream"
)

// StatusReporter exposes the poll loops' positions for health reporting.
type StatusReporter interface {
	Status() []poller.KindStatus
}

// UsageReporter exposes the limiter's live bucket consumption.
type UsageReporter interface {
	Snapshot() map[string]ratelimit.BucketUsage
}

// StreamReporter exposes the stream watcher's connection state.
type StreamReporter interface {
	Stats() stream.Stats
}

// Components holds the optional dependencies surfaced by /health and
// /rate_limits. Any field may be left zero.
type Components struct {
	Statuses       StatusReporter
	Usage          UsageReporter
	Stream         StreamReporter
	JournalBackend string
}

// Service serves read-only queries over the state store.
type Service struct {
	store  *store.Store
	comps  Components
	logger *slog.Logger
}

// New creates a Service. Missing components are simply left out of the
// responses that would report on them.
func New(st *store.Store, comps Components, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		comps:  comps,
		logger: logger,
	}
}

// Handler returns the HTTP handler for the query interface.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /exchange_info", s.handleExchangeInfo)
	mux.HandleFunc("GET /rate_limits", s.handleRateLimits)
	mux.HandleFunc("GET /symbols", s.handleSymbols)
	mux.HandleFunc("GET /symbols/{symbol}", s.handleSymbol)
	mux.HandleFunc("GET /account_info", s.handleAccountInfo)
	mux.HandleFunc("GET /exchange_status", s.handleExchangeStatus)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// envelope wraps a response body with the snapshot's provenance.
type envelope struct {
	Kind      model.ResourceKind `json:"kind"`
	Sequence  uint64             `json:"sequence"`
	FetchedAt int64              `json:"fetched_at_us"`
	Data      any                `json:"data"`
}

func wrap(snap model.Snapshot, data any) envelope {
	return envelope{
		Kind:      snap.Kind,
		Sequence:  snap.Sequence,
		FetchedAt: snap.FetchedAt,
		Data:      data,
	}
}

func (s *Service) handleExchangeInfo(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Read(model.KindExchangeInfo)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no data available")
		return
	}
	s.writeJSON(w, http.StatusOK, wrap(snap, snap.Payload))
}

// rateLimitsData pairs the exchange-declared rules with the limiter's live
// consumption.
type rateLimitsData struct {
	Rules []model.RateLimitRule            `json:"rules"`
	Usage map[string]ratelimit.BucketUsage `json:"usage,omitempty"`
}

func (s *Service) handleRateLimits(w http.ResponseWriter, r *http.Request) {
	snap, info, ok := s.exchangeInfo()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no data available")
		return
	}
	data := rateLimitsData{Rules: info.RateLimits}
	if s.comps.Usage != nil {
		data.Usage = s.comps.Usage.Snapshot()
	}
	s.writeJSON(w, http.StatusOK, wrap(snap, data))
}

func (s *Service) handleSymbols(w http.ResponseWriter, r *http.Request) {
	snap, info, ok := s.exchangeInfo()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no data available")
		return
	}
	names := make([]string, 0, len(info.Symbols))
	for _, sym := range info.Symbols {
		names = append(names, sym.Symbol)
	}
	s.writeJSON(w, http.StatusOK, wrap(snap, map[string]any{"symbols": names}))
}

func (s *Service) handleSymbol(w http.ResponseWriter, r *http.Request) {
	snap, info, ok := s.exchangeInfo()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no data available")
		return
	}
	rule, found := info.Symbol(r.PathValue("symbol"))
	if !found {
		s.writeError(w, http.StatusNotFound, "symbol not found")
		return
	}
	s.writeJSON(w, http.StatusOK, wrap(snap, rule))
}

func (s *Service) handleAccountInfo(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Read(model.KindAccountInfo)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no data available")
		return
	}
	s.writeJSON(w, http.StatusOK, wrap(snap, snap.Payload))
}

func (s *Service) handleExchangeStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Read(model.KindSystemStatus)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no data available")
		return
	}
	s.writeJSON(w, http.StatusOK, wrap(snap, snap.Payload))
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Components: make(map[string]any),
	}

	kinds := s.store.Kinds()
	health.Components["store"] = map[string]any{
		"kinds": len(kinds),
	}
	if len(kinds) == 0 {
		health.Status = "degraded"
	}

	if s.comps.Statuses != nil {
		health.Components["poller"] = s.comps.Statuses.Status()
	}
	if s.comps.JournalBackend != "" {
		health.Components["journal"] = map[string]string{
			"backend": s.comps.JournalBackend,
		}
	}
	if s.comps.Stream != nil {
		stats := s.comps.Stream.Stats()
		health.Components["stream"] = map[string]any{
			"connected": stats.Connected,
			"triggers":  stats.Triggers,
		}
	}

	s.writeJSON(w, http.StatusOK, health)
}

// exchangeInfo reads the latest exchange info snapshot with its typed payload.
func (s *Service) exchangeInfo() (model.Snapshot, *model.ExchangeInfoData, bool) {
	snap, ok := s.store.Read(model.KindExchangeInfo)
	if !ok {
		return model.Snapshot{}, nil, false
	}
	info, ok := snap.Payload.(*model.ExchangeInfoData)
	if !ok {
		return model.Snapshot{}, nil, false
	}
	return snap, info, true
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", "err", err)
	}
}

func (s *Service) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
