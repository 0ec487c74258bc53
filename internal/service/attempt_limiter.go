package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterPruneThreshold = 1024

// attemptLimiter throttles failed secret attempts per complaint. Each failure
// spends a token; once the bucket is empty every attempt is refused until it
// refills.
type attemptLimiter struct {
	mu       sync.Mutex
	perMin   int
	now      func() time.Time
	limiters map[string]*rate.Limiter
}

func newAttemptLimiter(failuresPerMinute int, now func() time.Time) *attemptLimiter {
	if failuresPerMinute <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &attemptLimiter{
		perMin:   failuresPerMinute,
		now:      now,
		limiters: make(map[string]*rate.Limiter),
	}
}

// blocked reports whether id has exhausted its failure budget.
func (l *attemptLimiter) blocked(id string) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[id]
	if !ok {
		return false
	}
	return lim.TokensAt(l.now()) < 1
}

func (l *attemptLimiter) fail(id string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	lim, ok := l.limiters[id]
	if !ok {
		if len(l.limiters) >= limiterPruneThreshold {
			l.prune(now)
		}
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)
		l.limiters[id] = lim
	}
	lim.AllowN(now, 1)
}

// prune drops buckets that have fully refilled. Caller holds mu.
func (l *attemptLimiter) prune(now time.Time) {
	for id, lim := range l.limiters {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(l.limiters, id)
		}
	}
}
