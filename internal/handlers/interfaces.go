package handlers

import (
	"context"

	"github.com/pawpals/backend/internal/models"
	"github.com/pawpals/backend/internal/videos"
)

// VideoGateway is the cached, quota-accounted view of the video provider.
type VideoGateway interface {
	SearchVideos(ctx context.Context, q videos.SearchQuery) (videos.SearchResultPage, error)
	VideoDetails(ctx context.Context, id videos.VideoID) (videos.VideoRecord, error)
	TrendingVideos(ctx context.Context, maxResults int) (videos.SearchResultPage, error)
	ValidateURL(ctx context.Context, raw string) (videos.Validation, error)
	QuotaUsage() videos.Usage
}

// ShareStore captures persistence for video sharing workflows.
type ShareStore interface {
	Create(ctx context.Context, share models.VideoShare) error
	ListFeed(ctx context.Context, userID string, limit int) ([]models.VideoShare, error)
}

// FollowStore captures operations required by the follow handlers.
type FollowStore interface {
	Follow(ctx context.Context, follow models.Follow) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
