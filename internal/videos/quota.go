package videos

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pawpals/backend/internal/metrics"
)

// CostTable is the quota price of each gateway operation.
type CostTable struct {
	Search   int64
	Trending int64
	Lookup   int64
	Validate int64
}

// DefaultCostTable mirrors the YouTube Data API v3 unit prices.
func DefaultCostTable() CostTable {
	return CostTable{Search: 100, Trending: 100, Lookup: 1, Validate: 1}
}

// LedgerConfig controls the daily budget.
type LedgerConfig struct {
	DailyLimit       int64
	WarningThreshold int64
	// Location decides where midnight falls. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

// Usage is a point-in-time view of the ledger.
type Usage struct {
	Used        int64     `json:"used"`
	Limit       int64     `json:"limit"`
	Percentage  float64   `json:"percentage"`
	WindowStart time.Time `json:"windowStart"`
	ResetAt     time.Time `json:"resetAt"`
}

// Ledger tracks quota spent against a daily budget. Reserve is the only way to
// spend; check and increment happen under one lock.
type Ledger struct {
	mu          sync.Mutex
	limit       int64
	warnAt      int64
	loc         *time.Location
	used        int64
	windowStart time.Time
	now         func() time.Time
	logger      *slog.Logger
}

// NewLedger returns a ledger whose first window contains the current time.
func NewLedger(cfg LedgerConfig, logger *slog.Logger) *Ledger {
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 10000
	}
	if cfg.WarningThreshold <= 0 || cfg.WarningThreshold > cfg.DailyLimit {
		cfg.WarningThreshold = cfg.DailyLimit * 8 / 10
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Ledger{
		limit:  cfg.DailyLimit,
		warnAt: cfg.WarningThreshold,
		loc:    cfg.Location,
		now:    cfg.Now,
		logger: logger,
	}
	l.windowStart = l.windowFor(l.now())

	metrics.QuotaLimit.Set(float64(l.limit))
	metrics.QuotaUsed.Set(0)
	return l
}

// Reserve spends cost units if they fit in the remaining budget. On denial
// the ledger is unchanged and a *QuotaExceededError is returned.
func (l *Ledger) Reserve(operation string, cost int64) error {
	if cost < 0 {
		return fmt.Errorf("reserve %s: negative cost %d", operation, cost)
	}

	l.mu.Lock()
	l.resetLocked(l.now())
	if l.used+cost > l.limit {
		err := &QuotaExceededError{
			Used:    l.used,
			Limit:   l.limit,
			Cost:    cost,
			ResetAt: l.windowStart.AddDate(0, 0, 1),
		}
		l.mu.Unlock()
		metrics.QuotaReservations.WithLabelValues(operation, "denied").Inc()
		return err
	}
	previous := l.used
	l.used += cost
	used := l.used
	l.mu.Unlock()

	metrics.QuotaReservations.WithLabelValues(operation, "granted").Inc()
	metrics.QuotaUsed.Set(float64(used))

	if previous < l.warnAt && used >= l.warnAt {
		metrics.QuotaWarnings.Inc()
		l.logger.Warn("upstream quota warning threshold crossed",
			"used", used,
			"limit", l.limit,
			"threshold", l.warnAt,
			"operation", operation,
		)
	}
	return nil
}

// Usage reports the current window.
func (l *Ledger) Usage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked(l.now())

	return Usage{
		Used:        l.used,
		Limit:       l.limit,
		Percentage:  float64(l.used) / float64(l.limit) * 100,
		WindowStart: l.windowStart,
		ResetAt:     l.windowStart.AddDate(0, 0, 1),
	}
}

// ResetIfWindowElapsed starts a new window when the clock has passed the next
// boundary. It reports whether a reset happened.
func (l *Ledger) ResetIfWindowElapsed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetLocked(l.now())
}

// Snapshot returns the current window start and spend for persistence.
func (l *Ledger) Snapshot() (time.Time, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked(l.now())
	return l.windowStart, l.used
}

// Restore seeds the ledger with spend recorded by a previous process. Records
// from another window are ignored.
func (l *Ledger) Restore(windowStart time.Time, used int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked(l.now())

	if !windowStart.Equal(l.windowStart) || used <= l.used {
		return false
	}
	l.used = used
	metrics.QuotaUsed.Set(float64(used))
	return true
}

func (l *Ledger) resetLocked(now time.Time) bool {
	start := l.windowFor(now)
	if !start.After(l.windowStart) {
		return false
	}
	l.logger.Info("upstream quota window reset", "previous_used", l.used, "window_start", start)
	l.windowStart = start
	l.used = 0
	metrics.QuotaUsed.Set(0)
	return true
}

func (l *Ledger) windowFor(t time.Time) time.Time {
	local := t.In(l.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, l.loc)
}
