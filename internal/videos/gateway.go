package videos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/pawpals/backend/internal/logging"
	"github.com/pawpals/backend/internal/metrics"
)

const (
	petCategoryID = "15"
	petKeywords   = "(dog|cat|pet|puppy|kitten|animal)"
	trendingTerm  = "pets"
	trendingSpan  = 7 * 24 * time.Hour

	breakerName = "youtube"
)

// GatewayConfig tunes cache lifetimes, quota prices and the upstream timeout.
type GatewayConfig struct {
	Costs       CostTable
	SearchTTL   time.Duration
	VideoTTL    time.Duration
	TrendingTTL time.Duration
	NotFoundTTL time.Duration
	Timeout     time.Duration

	// BreakerCooldown is how long the circuit stays open before a trial call.
	BreakerCooldown time.Duration
	Now             func() time.Time
}

// DefaultGatewayConfig returns the production defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Costs:           DefaultCostTable(),
		SearchTTL:       5 * time.Minute,
		VideoTTL:        time.Hour,
		TrendingTTL:     time.Hour,
		NotFoundTTL:     time.Minute,
		Timeout:         10 * time.Second,
		BreakerCooldown: 30 * time.Second,
	}
}

// Caches groups the stores the gateway reads through.
type Caches struct {
	Pages   Cache[SearchResultPage]
	Records Cache[VideoRecord]
	Missing Cache[bool]
}

// Validation is the outcome of ValidateURL.
type Validation struct {
	Valid bool         `json:"valid"`
	ID    *VideoID     `json:"id,omitempty"`
	Video *VideoRecord `json:"video,omitempty"`
}

// Gateway fronts the upstream provider with caching and quota accounting.
// It holds no per-call state; everything shared lives in the caches and the
// ledger.
type Gateway struct {
	upstream Upstream
	ledger   *Ledger
	caches   Caches
	cfg      GatewayConfig
	breaker  *gobreaker.CircuitBreaker[any]
	flights  singleflight.Group
}

// NewGateway wires a gateway. A nil upstream makes every cache miss fail with
// ErrUpstreamUnavailable.
func NewGateway(upstream Upstream, ledger *Ledger, caches Caches, cfg GatewayConfig) *Gateway {
	defaults := DefaultGatewayConfig()
	if cfg.Costs == (CostTable{}) {
		cfg.Costs = defaults.Costs
	}
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = defaults.SearchTTL
	}
	if cfg.VideoTTL <= 0 {
		cfg.VideoTTL = defaults.VideoTTL
	}
	if cfg.TrendingTTL <= 0 {
		cfg.TrendingTTL = defaults.TrendingTTL
	}
	if cfg.NotFoundTTL < 0 {
		cfg.NotFoundTTL = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaults.BreakerCooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if caches.Pages == nil {
		caches.Pages = NewMemoryCache[SearchResultPage]()
	}
	if caches.Records == nil {
		caches.Records = NewMemoryCache[VideoRecord]()
	}
	if caches.Missing == nil {
		caches.Missing = NewMemoryCache[bool]()
	}

	return &Gateway{
		upstream: upstream,
		ledger:   ledger,
		caches:   caches,
		cfg:      cfg,
		breaker:  newBreaker(cfg.BreakerCooldown),
	}
}

func newBreaker(cooldown time.Duration) *gobreaker.CircuitBreaker[any] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// A denied reservation never reached the provider.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrQuotaExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Default().Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// SearchVideos returns one page of pet videos matching q. The cache key is
// derived from the caller's normalised query, never from the term sent
// upstream.
func (g *Gateway) SearchVideos(ctx context.Context, q SearchQuery) (SearchResultPage, error) {
	query, err := q.Normalize()
	if err != nil {
		logging.FromContext(ctx).Debug("rejected search query", "error", err)
		return SearchResultPage{}, err
	}

	return fetch(ctx, g, lookup[SearchResultPage]{
		operation: "search",
		key:       query.cacheKey(),
		cache:     g.caches.Pages,
		ttl:       g.cfg.SearchTTL,
		cost:      g.cfg.Costs.Search,
		call: func(ctx context.Context) (SearchResultPage, error) {
			return g.upstream.Search(ctx, UpstreamSearch{
				Term:       query.Term + " " + petKeywords,
				MaxResults: query.MaxResults,
				Order:      query.Order,
				PageToken:  query.PageToken,
				CategoryID: petCategoryID,
			})
		},
	})
}

// VideoDetails returns the full record for id.
func (g *Gateway) VideoDetails(ctx context.Context, id VideoID) (VideoRecord, error) {
	return g.videoDetails(ctx, id, "lookup", g.cfg.Costs.Lookup)
}

func (g *Gateway) videoDetails(ctx context.Context, id VideoID, operation string, cost int64) (VideoRecord, error) {
	if id.IsZero() {
		return VideoRecord{}, ErrInvalidIdentifier
	}

	return fetch(ctx, g, lookup[VideoRecord]{
		operation:  operation,
		key:        "video:" + id.String(),
		missingKey: "missing:" + id.String(),
		cache:      g.caches.Records,
		ttl:        g.cfg.VideoTTL,
		cost:       cost,
		call: func(ctx context.Context) (VideoRecord, error) {
			return g.upstream.Video(ctx, id)
		},
	})
}

// TrendingVideos returns the most viewed pet videos of the last week.
func (g *Gateway) TrendingVideos(ctx context.Context, maxResults int) (SearchResultPage, error) {
	maxResults = clampMaxResults(maxResults)

	return fetch(ctx, g, lookup[SearchResultPage]{
		operation: "trending",
		key:       fmt.Sprintf("trending:%d", maxResults),
		cache:     g.caches.Pages,
		ttl:       g.cfg.TrendingTTL,
		cost:      g.cfg.Costs.Trending,
		call: func(ctx context.Context) (SearchResultPage, error) {
			return g.upstream.Search(ctx, UpstreamSearch{
				Term:           trendingTerm,
				MaxResults:     maxResults,
				Order:          OrderViewCount,
				CategoryID:     petCategoryID,
				PublishedAfter: g.cfg.Now().Add(-trendingSpan),
			})
		},
	})
}

// ValidateURL reports whether raw names an existing video. Unrecognised input
// and unknown videos are reported as invalid rather than as errors.
func (g *Gateway) ValidateURL(ctx context.Context, raw string) (Validation, error) {
	id, ok := ExtractID(raw)
	if !ok {
		logging.FromContext(ctx).Debug("rejected video reference")
		return Validation{Valid: false}, nil
	}

	record, err := g.videoDetails(ctx, id, "validate", g.cfg.Costs.Validate)
	switch {
	case errors.Is(err, ErrNotFound):
		return Validation{Valid: false}, nil
	case err != nil:
		return Validation{}, err
	}
	return Validation{Valid: true, ID: &id, Video: &record}, nil
}

// QuotaUsage reports the ledger state.
func (g *Gateway) QuotaUsage() Usage {
	return g.ledger.Usage()
}

type lookup[T any] struct {
	operation string
	key       string
	// missingKey enables negative caching of ErrNotFound when set.
	missingKey string
	cache      Cache[T]
	ttl        time.Duration
	cost       int64
	call       func(context.Context) (T, error)
}

func fetch[T any](ctx context.Context, g *Gateway, l lookup[T]) (T, error) {
	var zero T

	if value, ok := l.cache.Get(ctx, l.key); ok {
		metrics.CacheLookups.WithLabelValues(l.operation, "hit").Inc()
		return value, nil
	}
	if l.missingKey != "" {
		if _, ok := g.caches.Missing.Get(ctx, l.missingKey); ok {
			metrics.CacheLookups.WithLabelValues(l.operation, "negative_hit").Inc()
			return zero, ErrNotFound
		}
	}
	metrics.CacheLookups.WithLabelValues(l.operation, "miss").Inc()

	result, err, _ := g.flights.Do(l.operation+"|"+l.key, func() (any, error) {
		// A flight that finished just before this one started may have filled the cache.
		if value, ok := l.cache.Get(ctx, l.key); ok {
			return value, nil
		}

		value, err := g.callUpstream(ctx, l.operation, l.cost, func(ctx context.Context) (any, error) {
			return l.call(ctx)
		})
		storeCtx := context.WithoutCancel(ctx)
		if err != nil {
			if l.missingKey != "" && errors.Is(err, ErrNotFound) && g.cfg.NotFoundTTL > 0 {
				g.caches.Missing.Set(storeCtx, l.missingKey, true, g.cfg.NotFoundTTL)
			}
			return nil, err
		}

		typed := value.(T)
		l.cache.Set(storeCtx, l.key, typed, l.ttl)
		return typed, nil
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

// callUpstream reserves quota and performs one provider call. The reservation
// happens inside the breaker, so a call the breaker refuses spends nothing. A
// reservation is never refunded, even when the call fails or times out.
func (g *Gateway) callUpstream(ctx context.Context, operation string, cost int64, call func(context.Context) (any, error)) (any, error) {
	logger := logging.FromContext(ctx)

	if g.upstream == nil {
		metrics.UpstreamRequests.WithLabelValues(operation, "rejected").Inc()
		logger.Error("video provider is not configured", "operation", operation)
		return nil, fmt.Errorf("%w: provider not configured", ErrUpstreamUnavailable)
	}
	if g.breaker.State() == gobreaker.StateOpen {
		metrics.UpstreamRequests.WithLabelValues(operation, "rejected").Inc()
		logger.Warn("video provider circuit open", "operation", operation)
		return nil, fmt.Errorf("%w: provider temporarily disabled", ErrUpstreamUnavailable)
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.Timeout)
	defer cancel()

	var (
		span  *logging.Span
		start time.Time
	)
	result, err := g.breaker.Execute(func() (any, error) {
		if err := g.ledger.Reserve(operation, cost); err != nil {
			return nil, err
		}
		callCtx, span = logging.StartSpan(callCtx, "youtube."+operation)
		start = time.Now()
		return call(callCtx)
	})
	if span != nil {
		metrics.UpstreamDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		defer span.End()
	}

	if err != nil {
		if span != nil && !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
		}
		return nil, g.classify(callCtx, operation, err)
	}
	metrics.UpstreamRequests.WithLabelValues(operation, "success").Inc()
	return result, nil
}

// classify maps a provider failure onto the public error vocabulary. Apart
// from a quota denial, only ErrNotFound and ErrUpstreamUnavailable leave this
// function.
func (g *Gateway) classify(ctx context.Context, operation string, err error) error {
	logger := logging.FromContext(ctx)

	var (
		upstreamErr *UpstreamError
		quotaErr    *QuotaExceededError
	)
	switch {
	case errors.As(err, &quotaErr):
		metrics.UpstreamRequests.WithLabelValues(operation, "quota_exceeded").Inc()
		logger.Warn("upstream quota exhausted",
			"operation", operation,
			"cost", quotaErr.Cost,
			"used", quotaErr.Used,
			"limit", quotaErr.Limit,
			"resets_at", quotaErr.ResetAt,
		)
		return err
	case errors.Is(err, ErrQuotaExceeded):
		return err
	case errors.Is(err, ErrNotFound):
		metrics.UpstreamRequests.WithLabelValues(operation, "not_found").Inc()
		logger.Debug("video not found upstream", "operation", operation)
		return ErrNotFound
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.UpstreamRequests.WithLabelValues(operation, "rejected").Inc()
		logger.Warn("video provider call rejected by circuit breaker", "operation", operation, "error", err)
		return fmt.Errorf("%w: provider temporarily disabled", ErrUpstreamUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		metrics.UpstreamRequests.WithLabelValues(operation, "timeout").Inc()
		logger.Error("video provider timed out", "operation", operation, "timeout", g.cfg.Timeout)
		return fmt.Errorf("%w: provider timed out", ErrUpstreamUnavailable)
	case errors.As(err, &upstreamErr):
		metrics.UpstreamRequests.WithLabelValues(operation, "error").Inc()
		logger.Error("video provider request failed",
			"operation", operation,
			"status", upstreamErr.Status,
			"reason", upstreamErr.Reason,
		)
		return fmt.Errorf("%w: provider returned status %d", ErrUpstreamUnavailable, upstreamErr.Status)
	default:
		metrics.UpstreamRequests.WithLabelValues(operation, "error").Inc()
		logger.Error("video provider request failed", "operation", operation, "error", err)
		return fmt.Errorf("%w: provider request failed", ErrUpstreamUnavailable)
	}
}
