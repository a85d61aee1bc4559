package videos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/youtube/v3"
)

const (
	searchResponse = `{
  "nextPageToken": "CAoQAA",
  "items": [
    {
      "id": {"kind": "youtube#video", "videoId": "dQw4w9WgXcQ"},
      "snippet": {
        "title": "Corgi zoomies",
        "channelTitle": "Pet Channel",
        "publishedAt": "2024-04-30T10:00:00Z",
        "thumbnails": {
          "default": {"url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/default.jpg"},
          "high": {"url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg"}
        }
      }
    },
    {
      "id": {"kind": "youtube#channel", "channelId": "UC123"},
      "snippet": {"title": "not a video"}
    }
  ]
}`

	videoResponse = `{
  "items": [
    {
      "id": "dQw4w9WgXcQ",
      "snippet": {
        "title": "Corgi zoomies",
        "description": "Friday afternoon energy",
        "channelTitle": "Pet Channel",
        "publishedAt": "2024-04-30T10:00:00Z",
        "thumbnails": {"medium": {"url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/mqdefault.jpg"}}
      },
      "statistics": {"viewCount": "1200", "likeCount": "34"},
      "contentDetails": {"duration": "PT1M30S"}
    }
  ]
}`

	quotaErrorResponse = `{
  "error": {
    "code": 403,
    "message": "The request cannot be completed because you have exceeded your quota.",
    "errors": [{"reason": "quotaExceeded", "domain": "youtube.quota"}]
  }
}`
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *YouTubeProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewYouTubeProvider(context.Background(), YouTubeConfig{
		APIKey:   "test-key",
		Endpoint: server.URL + "/",
	})
	require.NoError(t, err)
	return provider
}

func TestNewYouTubeProviderRequiresKey(t *testing.T) {
	_, err := NewYouTubeProvider(context.Background(), YouTubeConfig{})
	assert.Error(t, err)
}

func TestYouTubeProviderSearch(t *testing.T) {
	var got map[string]string
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/youtube/v3/search", r.URL.Path)
		q := r.URL.Query()
		got = map[string]string{
			"q":               q.Get("q"),
			"type":            q.Get("type"),
			"maxResults":      q.Get("maxResults"),
			"order":           q.Get("order"),
			"videoCategoryId": q.Get("videoCategoryId"),
			"publishedAfter":  q.Get("publishedAfter"),
			"key":             q.Get("key"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchResponse))
	})

	page, err := provider.Search(context.Background(), UpstreamSearch{
		Term:           "pets",
		MaxResults:     12,
		Order:          OrderViewCount,
		CategoryID:     "15",
		PublishedAfter: time.Date(2024, 4, 24, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"q":               "pets",
		"type":            "video",
		"maxResults":      "12",
		"order":           "viewCount",
		"videoCategoryId": "15",
		"publishedAfter":  "2024-04-24T09:00:00Z",
		"key":             "test-key",
	}, got)

	assert.Equal(t, "CAoQAA", page.NextPageToken)
	require.Len(t, page.Items, 1)
	item := page.Items[0]
	assert.Equal(t, "dQw4w9WgXcQ", item.ID.String())
	assert.Equal(t, "Corgi zoomies", item.Title)
	assert.Equal(t, "Pet Channel", item.ChannelTitle)
	assert.Equal(t, "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg", item.ThumbnailURL)
	assert.Equal(t, time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC), item.PublishedAt)
}

func TestYouTubeProviderVideo(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/youtube/v3/videos", r.URL.Path)
		assert.Equal(t, "dQw4w9WgXcQ", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(videoResponse))
	})

	record, err := provider.Video(context.Background(), mustID(t, "dQw4w9WgXcQ"))
	require.NoError(t, err)

	assert.Equal(t, "Corgi zoomies", record.Title)
	assert.Equal(t, "Friday afternoon energy", record.Description)
	assert.Equal(t, "https://i.ytimg.com/vi/dQw4w9WgXcQ/mqdefault.jpg", record.ThumbnailURL)
	assert.Equal(t, "PT1M30S", record.Duration)
	require.NotNil(t, record.ViewCount)
	assert.EqualValues(t, 1200, *record.ViewCount)
	require.NotNil(t, record.LikeCount)
	assert.EqualValues(t, 34, *record.LikeCount)
}

func TestConvertVideoLikeCounts(t *testing.T) {
	id := mustID(t, "dQw4w9WgXcQ")
	cases := []struct {
		name      string
		payload   string
		wantViews uint64
		wantLikes *uint64
	}{
		{name: "public likes", payload: `{"viewCount": "10", "likeCount": "3"}`, wantViews: 10, wantLikes: ptr(uint64(3))},
		{name: "hidden likes", payload: `{"viewCount": "10"}`, wantViews: 10},
		{name: "zero likes", payload: `{"viewCount": "0", "likeCount": "0"}`, wantViews: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stats youtube.VideoStatistics
			require.NoError(t, json.Unmarshal([]byte(tc.payload), &stats))

			record := convertVideo(id, &youtube.Video{Statistics: &stats})
			require.NotNil(t, record.ViewCount)
			assert.Equal(t, tc.wantViews, *record.ViewCount)
			assert.Equal(t, tc.wantLikes, record.LikeCount)
		})
	}

	record := convertVideo(id, &youtube.Video{})
	assert.Nil(t, record.ViewCount)
	assert.Nil(t, record.LikeCount)
}

func ptr[T any](v T) *T {
	return &v
}

func TestYouTubeProviderVideoNotFound(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": []}`))
	})

	_, err := provider.Video(context.Background(), mustID(t, "dQw4w9WgXcQ"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestYouTubeProviderAPIError(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(quotaErrorResponse))
	})

	_, err := provider.Search(context.Background(), UpstreamSearch{Term: "pets", MaxResults: 5})
	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusForbidden, upstreamErr.Status)
	assert.Equal(t, "quotaExceeded", upstreamErr.Reason)
}

func TestYouTubeProviderTransportErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/"
	server.Close()

	provider, err := NewYouTubeProvider(context.Background(), YouTubeConfig{
		APIKey:   "super-secret-key",
		Endpoint: endpoint,
	})
	require.NoError(t, err)

	_, err = provider.Video(context.Background(), mustID(t, "dQw4w9WgXcQ"))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "super-secret-key")

	var upstreamErr *UpstreamError
	assert.ErrorAs(t, err, &upstreamErr)
}
