package middleware

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(key string) bool
}

// Rule describes one operation class budget.
type Rule struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// KeyedRateLimiter keeps an independent token bucket per key. Keys combine an
// operation scope with the caller identity, so each scope has its own budget.
type KeyedRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rules    map[string]Rule
	fallback Rule
	ttl      time.Duration
	lastGC   time.Time
	now      func() time.Time
}

// NewKeyedRateLimiter builds a limiter with per-scope rules. Keys are expected
// in the form "<scope>:<identity>"; unknown scopes use fallback. Idle entries
// are dropped after ttl.
func NewKeyedRateLimiter(rules map[string]Rule, fallback Rule, ttl time.Duration) *KeyedRateLimiter {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	normalized := make(map[string]Rule, len(rules))
	for scope, rule := range rules {
		normalized[scope] = normalizeRule(rule)
	}
	return &KeyedRateLimiter{
		visitors: make(map[string]*visitor),
		rules:    normalized,
		fallback: normalizeRule(fallback),
		ttl:      ttl,
		now:      time.Now,
	}
}

func normalizeRule(rule Rule) Rule {
	if rule.Requests <= 0 {
		rule.Requests = 1
	}
	if rule.Window <= 0 {
		rule.Window = time.Second
	}
	if rule.Burst <= 0 {
		rule.Burst = 1
	}
	return rule
}

// Allow reports whether the caller identified by key may proceed.
func (l *KeyedRateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	now := l.now()
	v := l.getVisitorLocked(key, now)
	if now.Sub(l.lastGC) > l.ttl/2 {
		l.gcLocked(now)
		l.lastGC = now
	}
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Len reports how many keys are currently tracked.
func (l *KeyedRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func (l *KeyedRateLimiter) getVisitorLocked(key string, now time.Time) *visitor {
	if v, ok := l.visitors[key]; ok {
		v.lastSeen = now
		return v
	}

	rule := l.ruleFor(key)
	limiter := rate.NewLimiter(rate.Every(rule.Window/time.Duration(rule.Requests)), rule.Burst)
	v := &visitor{limiter: limiter, lastSeen: now}
	l.visitors[key] = v
	return v
}

func (l *KeyedRateLimiter) ruleFor(key string) Rule {
	if scope, _, found := strings.Cut(key, ":"); found {
		if rule, ok := l.rules[scope]; ok {
			return rule
		}
	}
	return l.fallback
}

func (l *KeyedRateLimiter) gcLocked(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}
}

// WithNowFunc allows tests to override the time source.
func (l *KeyedRateLimiter) WithNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
