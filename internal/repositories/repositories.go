package repositories

import (
	"context"
	"time"

	"github.com/pawpals/backend/internal/models"
)

// ShareRepository exposes data access for shared pet videos.
type ShareRepository interface {
	Create(ctx context.Context, share models.VideoShare) error
	ListFeed(ctx context.Context, userID string, limit int) ([]models.VideoShare, error)
}

// FollowRepository defines data access for follow relationships.
type FollowRepository interface {
	Follow(ctx context.Context, follow models.Follow) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
}

// QuotaStore persists the upstream quota ledger between restarts.
type QuotaStore interface {
	Load(ctx context.Context, windowStart time.Time) (int64, error)
	Save(ctx context.Context, windowStart time.Time, used int64) error
}
