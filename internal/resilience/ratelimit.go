package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Verdict is the outcome of a rate limit check.
type Verdict struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	Reason     string
}

// bucketPair tracks a per-minute and a per-hour token bucket for one
// (tool, client) pair, each with independent capacity.
type bucketPair struct {
	perMinute *rate.Limiter
	perHour   *rate.Limiter
	lastSeen  time.Time
}

// Limiter is a token-bucket rate limiter scoped per (tool, client), with
// independent per-minute and per-hour capacities and refund-on-partial-
// rejection semantics: a caller that reserves a token but is rejected by the
// other window gets its token back.
type Limiter struct {
	mu               sync.Mutex
	buckets          map[string]*bucketPair
	perMinuteCap     int
	perHourCap       int
	staleAfter       time.Duration
}

// NewLimiter builds a Limiter with the given per-minute and per-hour
// capacities, applied independently to every (tool, client) pair seen.
func NewLimiter(perMinuteCap, perHourCap int) *Limiter {
	return &Limiter{
		buckets:      make(map[string]*bucketPair),
		perMinuteCap: perMinuteCap,
		perHourCap:   perHourCap,
		staleAfter:   10 * time.Minute,
	}
}

func key(tool, client string) string { return tool + "\x00" + client }

func (l *Limiter) bucketFor(tool, client string) *bucketPair {
	k := key(tool, client)
	b, ok := l.buckets[k]
	if !ok {
		b = &bucketPair{
			perMinute: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinuteCap)), l.perMinuteCap),
			perHour:   rate.NewLimiter(rate.Every(time.Hour/time.Duration(l.perHourCap)), l.perHourCap),
		}
		l.buckets[k] = b
	}
	b.lastSeen = time.Now()
	return b
}

// Allow checks whether a call for (tool, client) may proceed. If the minute
// window allows it but the hour window does not, the minute-window token is
// refunded so a client blocked by the coarser window isn't also billed
// against the finer one.
func (l *Limiter) Allow(tool, client string) Verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucketFor(tool, client)

	minuteRes := b.perMinute.Reserve()
	if !minuteRes.OK() {
		return Verdict{Allowed: false, Reason: "per_minute_capacity_unreservable"}
	}
	if minuteRes.Delay() > 0 {
		minuteRes.Cancel()
		return Verdict{Allowed: false, RetryAfter: minuteRes.Delay(), Reason: "per_minute_rate_limited"}
	}

	hourRes := b.perHour.Reserve()
	if !hourRes.OK() || hourRes.Delay() > 0 {
		minuteRes.Cancel() // refund: the minute window shouldn't be charged for an hour-window rejection
		if !hourRes.OK() {
			return Verdict{Allowed: false, Reason: "per_hour_capacity_unreservable"}
		}
		retryAfter := hourRes.Delay()
		hourRes.Cancel()
		return Verdict{Allowed: false, RetryAfter: retryAfter, Reason: "per_hour_rate_limited"}
	}

	return Verdict{Allowed: true, Remaining: int(b.perMinute.Tokens())}
}

// WaitAndAcquire polls Allow for (tool, client) until it succeeds or maxWait
// elapses, sleeping for each rejection's RetryAfter (capped to what remains
// of maxWait) between attempts. ctx cancellation aborts the wait early.
func (l *Limiter) WaitAndAcquire(ctx context.Context, tool, client string, maxWait time.Duration) Verdict {
	deadline := time.Now().Add(maxWait)
	for {
		v := l.Allow(tool, client)
		if v.Allowed {
			return v
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return v
		}
		wait := v.RetryAfter
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Verdict{Allowed: false, Reason: "cancelled"}
		case <-timer.C:
		}
	}
}

// SweepStale removes (tool, client) buckets that haven't been touched
// within staleAfter, bounding memory use for a long-lived server with many
// transient clients.
func (l *Limiter) SweepStale(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.staleAfter {
			delete(l.buckets, k)
			removed++
		}
	}
	return removed
}
