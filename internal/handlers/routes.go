package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Checks: deps.HealthChecks}
	youtube := YouTubeHandler{
		Gateway:        deps.Gateway,
		Limiter:        deps.Limiter,
		TrustedProxies: deps.TrustedProxies,
		NowFunc:        deps.NowFunc,
	}
	videos := VideoHandler{
		Shares:         deps.Shares,
		Gateway:        deps.Gateway,
		Limiter:        deps.Limiter,
		TrustedProxies: deps.TrustedProxies,
		NowFunc:        deps.NowFunc,
	}
	follows := FollowHandler{Follows: deps.Follows, NowFunc: deps.NowFunc}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/readyz", health.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/v1/youtube/search", youtube.Search)
	mux.HandleFunc("/api/v1/youtube/videos/{id}", youtube.Video)
	mux.HandleFunc("/api/v1/youtube/trending", youtube.Trending)
	mux.HandleFunc("/api/v1/youtube/validate", youtube.Validate)
	mux.HandleFunc("/api/v1/youtube/quota", youtube.Quota)

	mux.HandleFunc("/api/v1/videos", videos.Create)
	mux.HandleFunc("/api/v1/videos/feed", videos.Feed)
	mux.HandleFunc("/api/v1/follows", follows.Follow)
	mux.HandleFunc("/api/v1/follows/{userId}", follows.Unfollow)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Gateway        VideoGateway
	Shares         ShareStore
	Follows        FollowStore
	Limiter        RateLimiter
	TrustedProxies TrustedProxies
	HealthChecks   map[string]Pinger
	NowFunc        func() time.Time
}
