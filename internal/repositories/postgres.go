package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pawpals/backend/internal/db"
	"github.com/pawpals/backend/internal/models"
)

const (
	// DefaultFeedLimit is used when the caller does not ask for a page size.
	DefaultFeedLimit = 50
	maxFeedLimit     = 100
)

// PostgresShareRepository provides PostgreSQL-backed persistence for shared videos.
type PostgresShareRepository struct {
	pool db.Pool
}

// NewPostgresShareRepository constructs a share repository backed by PostgreSQL.
func NewPostgresShareRepository(pool db.Pool) *PostgresShareRepository {
	return &PostgresShareRepository{pool: pool}
}

// Create stores a new shared video record.
func (r *PostgresShareRepository) Create(ctx context.Context, share models.VideoShare) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	publishedAt := sql.NullTime{Time: share.PublishedAt, Valid: !share.PublishedAt.IsZero()}

	_, err = conn.Exec(ctx, `
        INSERT INTO video_shares (id, owner_id, video_id, url, caption, title, channel_title, thumbnail_url, published_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, share.ID, share.OwnerID, share.VideoID, share.URL, share.Caption, share.Title, share.ChannelTitle, share.ThumbnailURL, publishedAt, share.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert video share: %w", err)
	}

	return nil
}

// ListFeed returns shares from the user and everyone they follow, newest first.
func (r *PostgresShareRepository) ListFeed(ctx context.Context, userID string, limit int) ([]models.VideoShare, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, owner_id, video_id, url, caption, title, channel_title, thumbnail_url, published_at, created_at
        FROM video_shares
        WHERE owner_id = $1
           OR owner_id IN (SELECT followee_id FROM follows WHERE follower_id = $1)
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query video feed: %w", err)
	}
	defer rows.Close()

	shares := make([]models.VideoShare, 0)
	for rows.Next() {
		var (
			share       models.VideoShare
			publishedAt sql.NullTime
		)
		if err := rows.Scan(&share.ID, &share.OwnerID, &share.VideoID, &share.URL, &share.Caption, &share.Title, &share.ChannelTitle, &share.ThumbnailURL, &publishedAt, &share.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan video share: %w", err)
		}
		if publishedAt.Valid {
			share.PublishedAt = publishedAt.Time.UTC()
		}
		share.CreatedAt = share.CreatedAt.UTC()
		shares = append(shares, share)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video feed: %w", err)
	}

	return shares, nil
}

// PostgresFollowRepository provides PostgreSQL-backed persistence for follows.
type PostgresFollowRepository struct {
	pool db.Pool
}

// NewPostgresFollowRepository constructs a follow repository backed by PostgreSQL.
func NewPostgresFollowRepository(pool db.Pool) *PostgresFollowRepository {
	return &PostgresFollowRepository{pool: pool}
}

// Follow records a new follow relationship.
func (r *PostgresFollowRepository) Follow(ctx context.Context, follow models.Follow) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO follows (follower_id, followee_id, created_at)
        VALUES ($1, $2, $3)
    `, follow.FollowerID, follow.FolloweeID, follow.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23514":
				return ErrInvalid
			}
		}
		return fmt.Errorf("insert follow: %w", err)
	}

	return nil
}

// Unfollow removes a follow relationship.
func (r *PostgresFollowRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM follows
        WHERE follower_id = $1 AND followee_id = $2
    `, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// PostgresQuotaStore persists quota ledger snapshots.
type PostgresQuotaStore struct {
	pool db.Pool
}

// NewPostgresQuotaStore constructs a quota store backed by PostgreSQL.
func NewPostgresQuotaStore(pool db.Pool) *PostgresQuotaStore {
	return &PostgresQuotaStore{pool: pool}
}

// Load returns the spend recorded for windowStart or ErrNotFound.
func (s *PostgresQuotaStore) Load(ctx context.Context, windowStart time.Time) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var used int64
	err = conn.QueryRow(ctx, `
        SELECT used FROM quota_ledger WHERE window_start = $1
    `, windowStart.UTC()).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("select quota ledger: %w", err)
	}

	return used, nil
}

// Save upserts the spend for windowStart. A stored value is never lowered, so
// concurrent writers converge on the highest spend seen.
func (s *PostgresQuotaStore) Save(ctx context.Context, windowStart time.Time, used int64) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO quota_ledger (window_start, used, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (window_start)
        DO UPDATE SET used = GREATEST(quota_ledger.used, EXCLUDED.used), updated_at = NOW()
    `, windowStart.UTC(), used)
	if err != nil {
		return fmt.Errorf("upsert quota ledger: %w", err)
	}

	return nil
}

var _ ShareRepository = (*PostgresShareRepository)(nil)
var _ FollowRepository = (*PostgresFollowRepository)(nil)
var _ QuotaStore = (*PostgresQuotaStore)(nil)
