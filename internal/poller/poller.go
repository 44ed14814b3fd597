package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/binance-meta/internal/api"
	"github.com/rickgao/binance-meta/internal/journal"
	"github.com/rickgao/binance-meta/internal/metrics"
	"github.com/rickgao/binance-meta/internal/model"
	"github.com/rickgao/binance-meta/internal/ratelimit"
	"github.com/rickgao/binance-meta/internal/store"
)

// Source provides the exchange endpoints the poll loops draw from.
type Source interface {
	FetchExchangeInfo(ctx context.Context) (*model.ExchangeInfoData, error)
	FetchAccountInfo(ctx context.Context) (*model.AccountProfile, error)
	FetchSystemStatus(ctx context.Context) (*model.SystemStatusData, error)
}

// Limiter gates outbound fetches by request weight.
type Limiter interface {
	TryAcquire(bucket string, weight int) ratelimit.Decision
}

// SnapshotHandler receives successfully published snapshots.
type SnapshotHandler interface {
	HandleSnapshot(snapshot model.Snapshot) error
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(model.Snapshot) error

func (f SnapshotHandlerFunc) HandleSnapshot(s model.Snapshot) error {
	return f(s)
}

// State is one kind's position in its poll cycle.
type State string

const (
	StateIdle     State = "idle"
	StateWaiting  State = "waiting"
	StateFetching State = "fetching"
	StateApplying State = "applying"
	StateFailed   State = "failed"
)

// KindStatus is a point-in-time view of one kind's loop.
type KindStatus struct {
	Kind        model.ResourceKind `json:"kind"`
	State       State              `json:"state"`
	Sequence    uint64             `json:"sequence"`
	LastOutcome model.Outcome      `json:"last_outcome,omitempty"`
	LastError   string             `json:"last_error,omitempty"`
	NextPoll    int64              `json:"next_poll_us,omitempty"`
}

// KindSchedule holds one kind's cadence and request weight.
type KindSchedule struct {
	Interval time.Duration
	Weight   int
}

// Config holds poller configuration.
type Config struct {
	Schedules map[model.ResourceKind]KindSchedule
	Timeout   time.Duration // Per-request timeout (default: 10s)
	Bucket    string        // Rate limit bucket fetches draw from (default: REQUEST_WEIGHT)
}

// DefaultConfig returns sensible defaults for all three kinds.
func DefaultConfig() Config {
	return Config{
		Schedules: map[model.ResourceKind]KindSchedule{
			model.KindExchangeInfo: {Interval: 5 * time.Minute, Weight: 20},
			model.KindAccountInfo:  {Interval: 5 * time.Minute, Weight: 20},
			model.KindSystemStatus: {Interval: time.Minute, Weight: 1},
		},
		Timeout: 10 * time.Second,
		Bucket:  "REQUEST_WEIGHT",
	}
}

// kindState is one kind's loop state. seq and status are guarded by mu; the
// loop goroutine is the only writer once started.
type kindState struct {
	kind     model.ResourceKind
	schedule KindSchedule
	trigger  chan struct{} // Capacity 1; extra triggers coalesce

	mu     sync.Mutex
	seq    uint64
	status KindStatus
}

// Poller runs one polling loop per resource kind.
type Poller struct {
	cfg     Config
	source  Source
	limiter Limiter
	journal journal.Journal
	store   *store.Store
	metrics *metrics.Metrics
	handler SnapshotHandler
	logger  *slog.Logger

	kinds map[model.ResourceKind]*kindState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Poller. Kinds with a non-positive interval are not scheduled.
func New(cfg Config, source Source, limiter Limiter, jnl journal.Journal, st *store.Store, m *metrics.Metrics, handler SnapshotHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "REQUEST_WEIGHT"
	}

	kinds := make(map[model.ResourceKind]*kindState, len(cfg.Schedules))
	for kind, schedule := range cfg.Schedules {
		if schedule.Interval <= 0 {
			continue
		}
		kinds[kind] = &kindState{
			kind:     kind,
			schedule: schedule,
			trigger:  make(chan struct{}, 1),
			status:   KindStatus{Kind: kind, State: StateIdle},
		}
	}

	return &Poller{
		cfg:     cfg,
		source:  source,
		limiter: limiter,
		journal: jnl,
		store:   st,
		metrics: m,
		handler: handler,
		logger:  logger,
		kinds:   kinds,
	}
}

// Start recovers journal state and begins one polling loop per kind.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.recover(p.ctx)

	for _, kind := range model.AllKinds() {
		ks, ok := p.kinds[kind]
		if !ok {
			continue
		}
		p.wg.Add(1)
		go p.runKind(ks)
	}

	p.logger.Info("metadata poller started",
		"kinds", len(p.kinds),
		"timeout", p.cfg.Timeout,
	)

	return nil
}

// Stop gracefully shuts down all polling loops.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("metadata poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerRefresh schedules an immediate poll for one kind. Triggers arriving
// while one is already pending coalesce into a single poll. Returns false for
// kinds the poller does not schedule.
func (p *Poller) TriggerRefresh(kind model.ResourceKind) bool {
	ks, ok := p.kinds[kind]
	if !ok {
		return false
	}
	select {
	case ks.trigger <- struct{}{}:
	default:
	}
	return true
}

// Status returns a view of every scheduled kind's loop, in kind order.
func (p *Poller) Status() []KindStatus {
	out := make([]KindStatus, 0, len(p.kinds))
	for _, kind := range model.AllKinds() {
		if ks, ok := p.kinds[kind]; ok {
			out = append(out, ks.view())
		}
	}
	return out
}

// recover restores each kind's sequence from the last journal entry and
// republishes the last successful snapshot, so restarts continue the
// sequence instead of reusing it and readers see data before the first poll.
func (p *Poller) recover(ctx context.Context) {
	for _, kind := range model.AllKinds() {
		ks, ok := p.kinds[kind]
		if !ok {
			continue
		}

		var last, lastSuccess *model.LogEntry
		err := p.journal.ReadKind(ctx, kind, func(e model.LogEntry) error {
			entry := e
			last = &entry
			if e.Outcome == model.OutcomeSuccess {
				success := e
				lastSuccess = &success
			}
			return nil
		})
		if err != nil {
			p.logger.Warn("journal readback failed, starting cold",
				"kind", kind,
				"err", err,
			)
			continue
		}
		if last == nil {
			continue
		}

		ks.restoreSeq(last.Sequence)

		restored := false
		if lastSuccess != nil && p.store.Update(lastSuccess.Snapshot) {
			restored = true
			if p.handler != nil {
				if err := p.handler.HandleSnapshot(lastSuccess.Snapshot); err != nil {
					p.logger.Warn("snapshot handler failed during recovery",
						"kind", kind,
						"err", err,
					)
				}
			}
		}

		p.logger.Info("journal recovery complete",
			"kind", kind,
			"sequence", last.Sequence,
			"snapshot_restored", restored,
		)
	}
}

// runKind is one kind's polling loop.
func (p *Poller) runKind(ks *kindState) {
	defer p.wg.Done()

	// First poll fires immediately.
	timer := time.NewTimer(0)
	defer timer.Stop()
	ks.setWaiting(time.Now())

	for {
		select {
		case <-p.ctx.Done():
			ks.setState(StateIdle)
			return
		case <-timer.C:
		case <-ks.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		delay := p.pollOnce(ks)
		timer.Reset(delay)
		ks.setWaiting(time.Now().Add(delay))
	}
}

// pollOnce runs a single poll cycle for one kind and returns the delay until
// the next one.
func (p *Poller) pollOnce(ks *kindState) time.Duration {
	decision := p.limiter.TryAcquire(p.cfg.Bucket, ks.schedule.Weight)
	if !decision.Granted {
		p.metrics.RateLimitDenied(ks.kind)
		p.logger.Debug("poll deferred by rate limiter",
			"kind", ks.kind,
			"retry_after", decision.RetryAfter,
		)
		return decision.RetryAfter
	}

	ks.setState(StateFetching)
	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	payload, err := p.fetch(fetchCtx, ks.kind)
	cancel()
	elapsed := time.Since(start)

	var throttled *api.RateLimitError
	if errors.As(err, &throttled) {
		// No observation was made and no sequence is consumed; the cycle
		// moves to the time the exchange asked for.
		ks.setState(StateIdle)
		p.metrics.RateLimitDenied(ks.kind)
		p.logger.Warn("poll throttled by exchange",
			"kind", ks.kind,
			"retry_after", throttled.RetryAfter,
		)
		return throttled.RetryAfter
	}
	if err != nil && p.ctx.Err() != nil {
		// Shutting down; the aborted fetch is not an observation.
		ks.setState(StateIdle)
		return ks.schedule.Interval
	}

	snap := model.Snapshot{
		Kind:      ks.kind,
		AttemptID: uuid.New(),
		Sequence:  ks.nextSeq(),
		FetchedAt: start.UnixMicro(),
	}
	if err != nil {
		ks.setState(StateFailed)
		snap.Outcome = model.OutcomeFailure
		snap.ErrKind = api.KindOf(err)
		p.logger.Warn("poll failed",
			"kind", ks.kind,
			"sequence", snap.Sequence,
			"error_kind", snap.ErrKind,
			"err", err,
		)
	} else {
		snap.Outcome = model.OutcomeSuccess
		snap.Payload = payload
	}

	p.metrics.PollCompleted(ks.kind, snap.Outcome, elapsed)
	p.commit(ks, snap)
	ks.recordOutcome(snap.Outcome, err)

	return ks.schedule.Interval
}

// commit journals the attempt and, for successes, publishes it to the store.
func (p *Poller) commit(ks *kindState, snap model.Snapshot) {
	if snap.Outcome == model.OutcomeSuccess {
		ks.setState(StateApplying)
	}

	// The journal write lands before the snapshot becomes visible. Shutdown
	// does not interrupt it; a started attempt is recorded whole.
	entry := &model.LogEntry{Snapshot: snap, WrittenAt: model.NowMicro()}
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), p.cfg.Timeout)
	defer cancel()

	if err := p.journal.Append(appendCtx, entry); err != nil {
		// The store still advances: readers keep getting fresh data while
		// the journal lags, at the cost of a replay hole after a restart.
		p.metrics.JournalAppendFailed(ks.kind)
		p.logger.Error("journal append failed",
			"kind", ks.kind,
			"sequence", snap.Sequence,
			"err", err,
		)
	} else {
		p.metrics.JournalAppended(ks.kind)
	}

	if snap.Outcome != model.OutcomeSuccess {
		return
	}

	if !p.store.Update(snap) {
		p.metrics.StoreConflict(ks.kind)
		p.logger.Debug("store publish discarded as stale",
			"kind", ks.kind,
			"sequence", snap.Sequence,
		)
		return
	}

	if p.handler != nil {
		if err := p.handler.HandleSnapshot(snap); err != nil {
			p.logger.Warn("snapshot handler failed",
				"kind", ks.kind,
				"sequence", snap.Sequence,
				"err", err,
			)
		}
	}
}

// fetch dispatches to the source endpoint for one kind.
func (p *Poller) fetch(ctx context.Context, kind model.ResourceKind) (model.Payload, error) {
	switch kind {
	case model.KindExchangeInfo:
		info, err := p.source.FetchExchangeInfo(ctx)
		if err != nil {
			return nil, err
		}
		return info, nil
	case model.KindAccountInfo:
		profile, err := p.source.FetchAccountInfo(ctx)
		if err != nil {
			return nil, err
		}
		return profile, nil
	case model.KindSystemStatus:
		status, err := p.source.FetchSystemStatus(ctx)
		if err != nil {
			return nil, err
		}
		return status, nil
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
}

func (ks *kindState) setState(s State) {
	ks.mu.Lock()
	ks.status.State = s
	ks.mu.Unlock()
}

func (ks *kindState) setWaiting(next time.Time) {
	ks.mu.Lock()
	ks.status.State = StateWaiting
	ks.status.NextPoll = next.UnixMicro()
	ks.mu.Unlock()
}

func (ks *kindState) nextSeq() uint64 {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.seq++
	ks.status.Sequence = ks.seq
	return ks.seq
}

func (ks *kindState) restoreSeq(seq uint64) {
	ks.mu.Lock()
	ks.seq = seq
	ks.status.Sequence = seq
	ks.mu.Unlock()
}

// recordOutcome finishes the cycle back at idle.
func (ks *kindState) recordOutcome(outcome model.Outcome, err error) {
	ks.mu.Lock()
	ks.status.State = StateIdle
	ks.status.LastOutcome = outcome
	if err != nil {
		ks.status.LastError = err.Error()
	} else {
		ks.status.LastError = ""
	}
	ks.mu.Unlock()
}

func (ks *kindState) view() KindStatus {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.status
}
