package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/rickgao/binance-meta/internal/model"
)

// fakeClock lets tests slide the window deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(clock *fakeClock, rules ...model.RateLimitRule) *Limiter {
	l := New(rules)
	l.now = clock.now
	return l
}

func weightRule(limit int, interval time.Duration) model.RateLimitRule {
	return model.RateLimitRule{Bucket: "REQUEST_WEIGHT", Interval: interval, Limit: limit}
}

func TestTryAcquire_LimitTen(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, weightRule(10, time.Second))

	for i := 0; i < 10; i++ {
		d := l.TryAcquire("REQUEST_WEIGHT", 1)
		if !d.Granted {
			t.Fatalf("acquire %d denied, want granted", i+1)
		}
	}

	d := l.TryAcquire("REQUEST_WEIGHT", 1)
	if d.Granted {
		t.Fatal("11th acquire granted, want denied")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", d.RetryAfter)
	}
	if d.RetryAfter > time.Second {
		t.Errorf("RetryAfter = %v, want <= window interval", d.RetryAfter)
	}
}

func TestTryAcquire_WindowSlides(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, weightRule(2, time.Second))

	if d := l.TryAcquire("REQUEST_WEIGHT", 2); !d.Granted {
		t.Fatal("initial acquire denied")
	}

	d := l.TryAcquire("REQUEST_WEIGHT", 1)
	if d.Granted {
		t.Fatal("acquire inside full window granted")
	}

	clock.advance(d.RetryAfter)
	if d := l.TryAcquire("REQUEST_WEIGHT", 1); !d.Granted {
		t.Fatal("acquire after RetryAfter still denied")
	}
}

func TestTryAcquire_NeverExceedsLimitInAnyWindow(t *testing.T) {
	const limit = 5
	interval := time.Second
	clock := newFakeClock()
	l := newTestLimiter(clock, weightRule(limit, interval))

	// Issue acquires on a fixed cadence and record every grant, then check
	// the granted weight inside every possible window position.
	type grant struct {
		at     time.Time
		weight int
	}
	var grants []grant

	weights := []int{2, 1, 3, 2, 1, 1, 2, 3, 1, 2, 2, 1, 3, 1, 1, 2}
	for _, w := range weights {
		if d := l.TryAcquire("REQUEST_WEIGHT", w); d.Granted {
			grants = append(grants, grant{at: clock.now(), weight: w})
		}
		clock.advance(130 * time.Millisecond)
	}

	if len(grants) == 0 {
		t.Fatal("no acquires granted")
	}

	for _, start := range grants {
		sum := 0
		windowEnd := start.at.Add(interval)
		for _, g := range grants {
			if !g.at.Before(start.at) && g.at.Before(windowEnd) {
				sum += g.weight
			}
		}
		if sum > limit {
			t.Errorf("window starting %v granted weight %d, limit %d", start.at, sum, limit)
		}
	}
}

func TestTryAcquire_WeightAboveLimit(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, weightRule(10, time.Minute))

	d := l.TryAcquire("REQUEST_WEIGHT", 11)
	if d.Granted {
		t.Fatal("over-limit weight granted")
	}
	if d.RetryAfter != time.Minute {
		t.Errorf("RetryAfter = %v, want full interval %v", d.RetryAfter, time.Minute)
	}
}

func TestTryAcquire_UnknownBucket(t *testing.T) {
	l := New(nil)

	if d := l.TryAcquire("ORDERS", 100); !d.Granted {
		t.Error("undeclared bucket should be granted")
	}
}

func TestTryAcquire_RetryAfterAccountsForWeight(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, weightRule(10, time.Second))

	// Two consumptions of 4, 300ms apart. A request for 7 needs 5 freed, so
	// both must expire; a request for 3 needs only the first.
	l.TryAcquire("REQUEST_WEIGHT", 4)
	clock.advance(300 * time.Millisecond)
	l.TryAcquire("REQUEST_WEIGHT", 4)
	clock.advance(100 * time.Millisecond)

	d := l.TryAcquire("REQUEST_WEIGHT", 7)
	if d.Granted {
		t.Fatal("acquire for 7 should be denied")
	}
	// The second consumption expires 1s after t0+300ms, 900ms from now.
	if want := 900 * time.Millisecond; d.RetryAfter != want {
		t.Errorf("RetryAfter = %v, want %v", d.RetryAfter, want)
	}

	d = l.TryAcquire("REQUEST_WEIGHT", 3)
	if d.Granted {
		t.Fatal("acquire for 3 should be denied")
	}
	// Only the first consumption needs to expire, 600ms from now.
	if want := 600 * time.Millisecond; d.RetryAfter != want {
		t.Errorf("RetryAfter = %v, want %v", d.RetryAfter, want)
	}
}

func TestSetRules_ShrinksLimit(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, weightRule(10, time.Second))

	for i := 0; i < 5; i++ {
		l.TryAcquire("REQUEST_WEIGHT", 1)
	}

	l.SetRules([]model.RateLimitRule{weightRule(3, time.Second)})

	d := l.TryAcquire("REQUEST_WEIGHT", 1)
	if d.Granted {
		t.Fatal("acquire granted despite shrunk limit already exceeded")
	}

	clock.advance(time.Second + time.Millisecond)
	if d := l.TryAcquire("REQUEST_WEIGHT", 1); !d.Granted {
		t.Fatal("acquire denied after old consumptions expired")
	}
}

func TestSetRules_AddsAndDropsBuckets(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, weightRule(10, time.Second))

	l.SetRules([]model.RateLimitRule{
		{Bucket: "RAW_REQUESTS", Interval: 5 * time.Minute, Limit: 2},
	})

	// Old bucket is gone, so it is no longer enforced.
	if d := l.TryAcquire("REQUEST_WEIGHT", 100); !d.Granted {
		t.Error("dropped bucket should no longer be enforced")
	}

	l.TryAcquire("RAW_REQUESTS", 1)
	l.TryAcquire("RAW_REQUESTS", 1)
	if d := l.TryAcquire("RAW_REQUESTS", 1); d.Granted {
		t.Error("new bucket should be enforced")
	}
}

func TestObserveServerUsage(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, weightRule(10, time.Second))

	l.TryAcquire("REQUEST_WEIGHT", 2)

	// Server says 8 consumed; local accounting jumps to match.
	l.ObserveServerUsage("REQUEST_WEIGHT", 8)

	if d := l.TryAcquire("REQUEST_WEIGHT", 3); d.Granted {
		t.Error("acquire should be denied after server reconciliation")
	}
	if d := l.TryAcquire("REQUEST_WEIGHT", 2); !d.Granted {
		t.Error("acquire within reconciled budget should be granted")
	}

	// A lower server count never releases budget.
	l.ObserveServerUsage("REQUEST_WEIGHT", 1)
	if d := l.TryAcquire("REQUEST_WEIGHT", 1); d.Granted {
		t.Error("acquire should stay denied; lower server count is ignored")
	}
}

func TestSnapshot(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, weightRule(10, time.Second))

	l.TryAcquire("REQUEST_WEIGHT", 4)

	usage := l.Snapshot()
	u, ok := usage["REQUEST_WEIGHT"]
	if !ok {
		t.Fatal("Snapshot missing REQUEST_WEIGHT")
	}
	if u.Used != 4 {
		t.Errorf("Used = %d, want 4", u.Used)
	}
	if u.Remaining != 6 {
		t.Errorf("Remaining = %d, want 6", u.Remaining)
	}

	clock.advance(time.Second + time.Millisecond)
	usage = l.Snapshot()
	if got := usage["REQUEST_WEIGHT"].Used; got != 0 {
		t.Errorf("Used after expiry = %d, want 0", got)
	}
}

func TestTryAcquire_Concurrent(t *testing.T) {
	l := New([]model.RateLimitRule{weightRule(20, time.Minute)})

	var wg sync.WaitGroup
	granted := make(chan struct{}, 64)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d := l.TryAcquire("REQUEST_WEIGHT", 1); d.Granted {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	if count != 20 {
		t.Errorf("granted %d acquires, want exactly 20", count)
	}
}
