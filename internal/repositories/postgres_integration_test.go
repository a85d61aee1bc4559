package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pawpals/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	if os.Getenv("PAWPALS_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresShareRepository_ListFeed(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	shares := NewPostgresShareRepository(testPool)
	follows := NewPostgresFollowRepository(testPool)

	viewer, followed, stranger := "viewer", "followed", "stranger"
	if err := follows.Follow(ctx, models.Follow{FollowerID: viewer, FolloweeID: followed, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("follow: %v", err)
	}

	baseTime := time.Now().UTC().Add(-30 * time.Minute).Truncate(time.Millisecond)
	ownShare := newShare(viewer, baseTime.Add(2*time.Minute))
	followedShare := newShare(followed, baseTime.Add(5*time.Minute))
	strangerShare := newShare(stranger, baseTime.Add(10*time.Minute))

	for _, share := range []models.VideoShare{ownShare, followedShare, strangerShare} {
		if err := shares.Create(ctx, share); err != nil {
			t.Fatalf("create share %s: %v", share.ID, err)
		}
	}

	if err := shares.Create(ctx, ownShare); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate share, got %v", err)
	}

	feed, err := shares.ListFeed(ctx, viewer, 0)
	if err != nil {
		t.Fatalf("list feed: %v", err)
	}

	if len(feed) != 2 {
		t.Fatalf("expected 2 feed entries (viewer + followed), got %d", len(feed))
	}
	if feed[0].ID != followedShare.ID || feed[1].ID != ownShare.ID {
		t.Fatalf("unexpected feed order: %+v", feed)
	}
	if feed[0].VideoID != "dQw4w9WgXcQ" || feed[0].Caption != "zoomies" {
		t.Fatalf("unexpected share fields: %+v", feed[0])
	}
	if !timesClose(feed[0].PublishedAt, followedShare.PublishedAt, time.Millisecond) {
		t.Fatalf("unexpected published at: %v", feed[0].PublishedAt)
	}

	limited, err := shares.ListFeed(ctx, viewer, 1)
	if err != nil {
		t.Fatalf("list limited feed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != followedShare.ID {
		t.Fatalf("unexpected limited feed: %+v", limited)
	}
}

func TestPostgresFollowRepository_FollowAndUnfollow(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresFollowRepository(testPool)
	follow := models.Follow{FollowerID: "alice", FolloweeID: "bob", CreatedAt: time.Now().UTC()}

	if err := repo.Follow(ctx, follow); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if err := repo.Follow(ctx, follow); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict following twice, got %v", err)
	}
	if err := repo.Follow(ctx, models.Follow{FollowerID: "alice", FolloweeID: "alice", CreatedAt: time.Now().UTC()}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid following self, got %v", err)
	}

	if err := repo.Unfollow(ctx, "alice", "bob"); err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	if err := repo.Unfollow(ctx, "alice", "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound unfollowing twice, got %v", err)
	}
}

func TestPostgresQuotaStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	store := NewPostgresQuotaStore(testPool)
	window := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	if _, err := store.Load(ctx, window); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty ledger, got %v", err)
	}

	if err := store.Save(ctx, window, 300); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, window, 200); err != nil {
		t.Fatalf("save lower: %v", err)
	}

	used, err := store.Load(ctx, window)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if used != 300 {
		t.Fatalf("expected stored spend to never decrease, got %d", used)
	}

	if _, err := store.Load(ctx, window.AddDate(0, 0, 1)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another window, got %v", err)
	}
}

func newShare(owner string, createdAt time.Time) models.VideoShare {
	return models.VideoShare{
		ID:           uuid.NewString(),
		OwnerID:      owner,
		VideoID:      "dQw4w9WgXcQ",
		URL:          "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Caption:      "zoomies",
		Title:        "Corgi zoomies",
		ChannelTitle: "Pet Channel",
		ThumbnailURL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
		PublishedAt:  time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC),
		CreatedAt:    createdAt,
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("set PAWPALS_INTEGRATION=1 to run against a cockroach test server")
	}

	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE video_shares, follows, quota_ledger CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
