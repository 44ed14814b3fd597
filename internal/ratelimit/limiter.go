package ratelimit

import (
	"sync"
	"time"

	"github.com/rickgao/binance-meta/internal/model"
)

// Decision is the outcome of a TryAcquire call.
type Decision struct {
	Granted    bool
	RetryAfter time.Duration // Minimum wait until the weight can fit (set when denied)
}

// BucketUsage reports a bucket's rule and current consumption.
type BucketUsage struct {
	Rule      model.RateLimitRule
	Used      int
	Remaining int
}

// consumption records one granted acquisition.
type consumption struct {
	at     time.Time
	weight int
}

// bucketState tracks one named limit window.
type bucketState struct {
	rule model.RateLimitRule
	log  []consumption // Granted consumptions inside the window, oldest first
	used int           // Sum of log weights
}

// Limiter tracks remaining request budget per bucket. Safe for concurrent use;
// the check and the commit happen under one lock, so two callers can never
// both squeeze into the last slot of a window.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucketState
	now     func() time.Time
}

// New creates a Limiter seeded with the given bucket rules.
func New(rules []model.RateLimitRule) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucketState),
		now:     time.Now,
	}
	for _, r := range rules {
		l.buckets[r.Bucket] = &bucketState{rule: r}
	}
	return l
}

// TryAcquire attempts to consume weight from the named bucket. Buckets the
// exchange has not declared are granted; there is no budget to enforce.
// Consumption is recorded only on grant.
func (l *Limiter) TryAcquire(bucket string, weight int) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[bucket]
	if !ok {
		return Decision{Granted: true}
	}

	now := l.now()
	b.expire(now)

	if weight > b.rule.Limit {
		// Can never fit inside one window; surface the full interval.
		return Decision{RetryAfter: b.rule.Interval}
	}

	if b.used+weight <= b.rule.Limit {
		b.log = append(b.log, consumption{at: now, weight: weight})
		b.used += weight
		return Decision{Granted: true}
	}

	// Denied: wait until enough of the oldest consumptions expire for the
	// weight to fit.
	need := b.used + weight - b.rule.Limit
	freed := 0
	var wait time.Duration
	for _, c := range b.log {
		freed += c.weight
		if freed >= need {
			wait = c.at.Add(b.rule.Interval).Sub(now)
			break
		}
	}
	return Decision{RetryAfter: wait}
}

// SetRules replaces the bucket rules, keeping consumption history for buckets
// that persist. The exchange reports its own limits on every exchangeInfo
// response; a shrunk window or limit is enforced from the next acquire on.
func (l *Limiter) SetRules(rules []model.RateLimitRule) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make(map[string]*bucketState, len(rules))
	for _, r := range rules {
		if prev, ok := l.buckets[r.Bucket]; ok {
			prev.rule = r
			next[r.Bucket] = prev
			continue
		}
		next[r.Bucket] = &bucketState{rule: r}
	}
	l.buckets = next
}

// ObserveServerUsage reconciles a bucket with the consumed weight the exchange
// reports in its response headers. A server count above the local one is
// recorded as an adjustment at the current time, making the limiter more
// conservative; a lower count is ignored.
func (l *Limiter) ObserveServerUsage(bucket string, used int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[bucket]
	if !ok {
		return
	}

	b.expire(l.now())
	if used <= b.used {
		return
	}

	diff := used - b.used
	b.log = append(b.log, consumption{at: l.now(), weight: diff})
	b.used = used
}

// Snapshot returns current usage for every bucket.
func (l *Limiter) Snapshot() map[string]BucketUsage {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	out := make(map[string]BucketUsage, len(l.buckets))
	for name, b := range l.buckets {
		b.expire(now)
		out[name] = BucketUsage{
			Rule:      b.rule,
			Used:      b.used,
			Remaining: b.rule.Limit - b.used,
		}
	}
	return out
}

// expire drops consumptions that have slid out of the window.
func (b *bucketState) expire(now time.Time) {
	cutoff := now.Add(-b.rule.Interval)
	i := 0
	for i < len(b.log) && !b.log[i].at.After(cutoff) {
		b.used -= b.log[i].weight
		i++
	}
	if i > 0 {
		b.log = append(b.log[:0], b.log[i:]...)
	}
}
