package videos

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// VideoRecord is the normalised view of a single video.
type VideoRecord struct {
	ID           VideoID   `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	ChannelTitle string    `json:"channelTitle"`
	PublishedAt  time.Time `json:"publishedAt"`
	ViewCount    *uint64   `json:"viewCount,omitempty"`
	LikeCount    *uint64   `json:"likeCount,omitempty"`
	// Duration is an ISO-8601 duration such as PT1M30S.
	Duration string `json:"duration,omitempty"`
}

// VideoSummary is a search hit without statistics.
type VideoSummary struct {
	ID           VideoID   `json:"id"`
	Title        string    `json:"title"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	ChannelTitle string    `json:"channelTitle"`
	PublishedAt  time.Time `json:"publishedAt"`
}

// SearchResultPage is one page of search or trending results.
type SearchResultPage struct {
	Items         []VideoSummary `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

// Search orderings accepted by the provider.
const (
	OrderRelevance = "relevance"
	OrderDate      = "date"
	OrderViewCount = "viewCount"
	OrderRating    = "rating"
)

const (
	defaultMaxResults = 12
	maxMaxResults     = 50
)

var orders = map[string]string{
	"relevance": OrderRelevance,
	"date":      OrderDate,
	"viewcount": OrderViewCount,
	"rating":    OrderRating,
}

// SearchQuery is a caller supplied search request.
type SearchQuery struct {
	Term       string
	MaxResults int
	Order      string
	PageToken  string
}

// Normalize returns the canonical form of q. Two queries that normalise to the
// same value share a cache entry.
func (q SearchQuery) Normalize() (SearchQuery, error) {
	term := strings.ToLower(strings.Join(strings.Fields(q.Term), " "))
	if term == "" {
		return SearchQuery{}, fmt.Errorf("%w: search term is required", ErrInvalidQuery)
	}

	order := OrderRelevance
	if raw := strings.TrimSpace(q.Order); raw != "" {
		canonical, ok := orders[strings.ToLower(raw)]
		if !ok {
			return SearchQuery{}, fmt.Errorf("%w: unsupported order %q", ErrInvalidQuery, raw)
		}
		order = canonical
	}

	return SearchQuery{
		Term:       term,
		MaxResults: clampMaxResults(q.MaxResults),
		Order:      order,
		PageToken:  strings.TrimSpace(q.PageToken),
	}, nil
}

// cacheKey must only be called on a normalised query.
func (q SearchQuery) cacheKey() string {
	page := "first"
	if q.PageToken != "" {
		page = fmt.Sprintf("%q", q.PageToken)
	}
	return fmt.Sprintf("search:%q:%d:%s:%s", q.Term, q.MaxResults, q.Order, page)
}

func clampMaxResults(n int) int {
	switch {
	case n == 0:
		return defaultMaxResults
	case n < 1:
		return 1
	case n > maxMaxResults:
		return maxMaxResults
	}
	return n
}

// UpstreamSearch is the request the gateway sends to the provider.
type UpstreamSearch struct {
	Term           string
	MaxResults     int
	Order          string
	PageToken      string
	CategoryID     string
	PublishedAfter time.Time
}

// Upstream is the third-party video provider fronted by the gateway.
type Upstream interface {
	Search(ctx context.Context, req UpstreamSearch) (SearchResultPage, error)
	// Video returns ErrNotFound when the provider has no such video.
	Video(ctx context.Context, id VideoID) (VideoRecord, error)
}
