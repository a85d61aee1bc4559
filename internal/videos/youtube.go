package videos

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTubeConfig configures the Data API client.
type YouTubeConfig struct {
	APIKey string
	// Endpoint overrides the API base URL. Tests point it at a local server.
	Endpoint   string
	HTTPClient *http.Client
}

// YouTubeProvider is the Upstream backed by the YouTube Data API v3.
type YouTubeProvider struct {
	service *youtube.Service
}

// NewYouTubeProvider builds an API key authenticated client.
func NewYouTubeProvider(ctx context.Context, cfg YouTubeConfig) (*YouTubeProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("youtube api key is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &YouTubeProvider{service: service}, nil
}

// Search implements Upstream.
func (p *YouTubeProvider) Search(ctx context.Context, req UpstreamSearch) (SearchResultPage, error) {
	call := p.service.Search.List([]string{"id", "snippet"}).
		Q(req.Term).
		Type("video").
		MaxResults(int64(req.MaxResults))

	if req.Order != "" {
		call = call.Order(req.Order)
	}
	if req.CategoryID != "" {
		call = call.VideoCategoryId(req.CategoryID)
	}
	if req.PageToken != "" {
		call = call.PageToken(req.PageToken)
	}
	if !req.PublishedAfter.IsZero() {
		call = call.PublishedAfter(req.PublishedAfter.UTC().Format(time.RFC3339))
	}

	response, err := call.Context(ctx).Do()
	if err != nil {
		return SearchResultPage{}, upstreamError(err)
	}

	page := SearchResultPage{
		Items:         make([]VideoSummary, 0, len(response.Items)),
		NextPageToken: response.NextPageToken,
	}
	for _, item := range response.Items {
		if item.Id == nil || item.Snippet == nil {
			continue
		}
		id, ok := ParseVideoID(item.Id.VideoId)
		if !ok {
			continue
		}
		page.Items = append(page.Items, VideoSummary{
			ID:           id,
			Title:        item.Snippet.Title,
			ThumbnailURL: bestThumbnail(item.Snippet.Thumbnails),
			ChannelTitle: item.Snippet.ChannelTitle,
			PublishedAt:  parsePublished(item.Snippet.PublishedAt),
		})
	}
	return page, nil
}

// Video implements Upstream.
func (p *YouTubeProvider) Video(ctx context.Context, id VideoID) (VideoRecord, error) {
	response, err := p.service.Videos.List([]string{"snippet", "statistics", "contentDetails"}).
		Id(id.String()).
		Context(ctx).
		Do()
	if err != nil {
		return VideoRecord{}, upstreamError(err)
	}
	if len(response.Items) == 0 {
		return VideoRecord{}, ErrNotFound
	}
	return convertVideo(id, response.Items[0]), nil
}

func convertVideo(id VideoID, video *youtube.Video) VideoRecord {
	record := VideoRecord{ID: id}

	if video.Snippet != nil {
		record.Title = video.Snippet.Title
		record.Description = video.Snippet.Description
		record.ChannelTitle = video.Snippet.ChannelTitle
		record.ThumbnailURL = bestThumbnail(video.Snippet.Thumbnails)
		record.PublishedAt = parsePublished(video.Snippet.PublishedAt)
	}
	if video.Statistics != nil {
		views := video.Statistics.ViewCount
		record.ViewCount = &views
		// The decoded statistics cannot tell a hidden like count from zero;
		// both are reported as unknown.
		if likes := video.Statistics.LikeCount; likes > 0 {
			record.LikeCount = &likes
		}
	}
	if video.ContentDetails != nil {
		record.Duration = video.ContentDetails.Duration
	}
	return record
}

func bestThumbnail(details *youtube.ThumbnailDetails) string {
	if details == nil {
		return ""
	}
	for _, thumb := range []*youtube.Thumbnail{details.High, details.Medium, details.Default} {
		if thumb != nil && thumb.Url != "" {
			return thumb.Url
		}
	}
	return ""
}

func parsePublished(raw string) time.Time {
	published, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return published.UTC()
}

// upstreamError converts client errors into *UpstreamError. Request URLs carry
// the API key and are dropped.
func upstreamError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusNotFound {
			return ErrNotFound
		}
		reason := apiErr.Message
		if len(apiErr.Errors) > 0 && apiErr.Errors[0].Reason != "" {
			reason = apiErr.Errors[0].Reason
		}
		return &UpstreamError{Status: apiErr.Code, Reason: reason}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &UpstreamError{Reason: urlErr.Op + " request failed", Err: urlErr.Err}
	}
	return &UpstreamError{Reason: "request failed", Err: err}
}
