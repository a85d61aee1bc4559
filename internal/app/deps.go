package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pawpals/backend/internal/auth"
	"github.com/pawpals/backend/internal/config"
	"github.com/pawpals/backend/internal/db"
	"github.com/pawpals/backend/internal/handlers"
	"github.com/pawpals/backend/internal/middleware"
	"github.com/pawpals/backend/internal/repositories"
	"github.com/pawpals/backend/internal/videos"
)

type sweeper interface {
	RunSweeper(ctx context.Context, interval time.Duration) error
}

// service is everything serve runs: the HTTP dependencies plus the background
// work that keeps caches and the quota ledger healthy.
type service struct {
	handlers handlers.Dependencies
	verifier middleware.TokenVerifier
	ledger   *videos.Ledger
	quota    repositories.QuotaStore
	sweepers []sweeper
	closers  []func() error
}

// buildService wires together concrete implementations used by the HTTP handlers.
func buildService(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (*service, error) {
	svc := &service{
		quota: repositories.NewPostgresQuotaStore(pool),
	}
	checks := map[string]handlers.Pinger{"database": pool}

	svc.ledger = videos.NewLedger(videos.LedgerConfig{
		DailyLimit:       cfg.Quota.DailyLimit,
		WarningThreshold: cfg.Quota.WarningThreshold,
		Location:         cfg.Quota.Location,
	}, logger)
	restoreLedger(ctx, svc.ledger, svc.quota, logger)

	caches, err := svc.buildCaches(ctx, cfg, logger, checks)
	if err != nil {
		svc.close(logger)
		return nil, err
	}

	var upstream videos.Upstream
	if cfg.YouTube.APIKey != "" {
		provider, err := videos.NewYouTubeProvider(ctx, videos.YouTubeConfig{
			APIKey:   cfg.YouTube.APIKey,
			Endpoint: cfg.YouTube.Endpoint,
		})
		if err != nil {
			svc.close(logger)
			return nil, fmt.Errorf("create youtube provider: %w", err)
		}
		upstream = provider
	} else {
		logger.Warn("no youtube api key configured; gateway operations that need the provider will fail")
	}

	gateway := videos.NewGateway(upstream, svc.ledger, caches, videos.GatewayConfig{
		Costs: videos.CostTable{
			Search:   cfg.Quota.Costs.Search,
			Trending: cfg.Quota.Costs.Trending,
			Lookup:   cfg.Quota.Costs.Lookup,
			Validate: cfg.Quota.Costs.Validate,
		},
		SearchTTL:       cfg.Cache.SearchTTL,
		VideoTTL:        cfg.Cache.VideoTTL,
		TrendingTTL:     cfg.Cache.TrendingTTL,
		NotFoundTTL:     cfg.Cache.NotFoundTTL,
		Timeout:         cfg.YouTube.Timeout,
		BreakerCooldown: cfg.YouTube.BreakerCooldown,
	})

	proxies, err := handlers.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		svc.close(logger)
		return nil, fmt.Errorf("ratelimit.trusted_proxies: %w", err)
	}

	limiter := middleware.NewKeyedRateLimiter(map[string]middleware.Rule{
		handlers.ScopeSearch: limiterRule(cfg.RateLimit.Search),
		handlers.ScopeLookup: limiterRule(cfg.RateLimit.Lookup),
	}, limiterRule(cfg.RateLimit.Lookup), cfg.RateLimit.IdleTTL)

	if cfg.Auth.TokenSecret != "" {
		verifier, err := auth.NewTokenVerifier(cfg.Auth.TokenSecret, cfg.Auth.Issuer)
		if err != nil {
			svc.close(logger)
			return nil, err
		}
		svc.verifier = verifier
	} else {
		logger.Warn("no token secret configured; every request is anonymous")
	}

	svc.handlers = handlers.Dependencies{
		Gateway:        gateway,
		Shares:         repositories.NewPostgresShareRepository(pool),
		Follows:        repositories.NewPostgresFollowRepository(pool),
		Limiter:        limiter,
		TrustedProxies: proxies,
		HealthChecks:   checks,
	}
	return svc, nil
}

func (s *service) buildCaches(ctx context.Context, cfg config.Config, logger *slog.Logger, checks map[string]handlers.Pinger) (videos.Caches, error) {
	if cfg.RedisURL == "" {
		pages := videos.NewMemoryCache[videos.SearchResultPage]()
		records := videos.NewMemoryCache[videos.VideoRecord]()
		missing := videos.NewMemoryCache[bool]()
		s.sweepers = append(s.sweepers, pages, records, missing)
		return videos.Caches{Pages: pages, Records: records, Missing: missing}, nil
	}

	client, err := videos.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return videos.Caches{}, fmt.Errorf("connect to redis: %w", err)
	}
	s.closers = append(s.closers, client.Close)
	checks["redis"] = redisPinger{client: client}
	logger.Info("using redis for gateway caches")

	return videos.Caches{
		Pages:   videos.NewRedisCache[videos.SearchResultPage](client, "", logger),
		Records: videos.NewRedisCache[videos.VideoRecord](client, "", logger),
		Missing: videos.NewRedisCache[bool](client, "", logger),
	}, nil
}

func (s *service) close(logger *slog.Logger) {
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			logger.Warn("close dependency", "error", err)
		}
	}
	s.closers = nil
}

func limiterRule(rule config.RateLimitRule) middleware.Rule {
	return middleware.Rule{Requests: rule.Requests, Window: rule.Window, Burst: rule.Burst}
}

type redisPinger struct {
	client redis.UniversalClient
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
