package models

import "time"

// VideoShare is a pet video posted by a user, stored with the normalised
// metadata the gateway resolved at share time.
type VideoShare struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	VideoID      string    `json:"videoId"`
	URL          string    `json:"url"`
	Caption      string    `json:"caption,omitempty"`
	Title        string    `json:"title"`
	ChannelTitle string    `json:"channelTitle"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	PublishedAt  time.Time `json:"publishedAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Follow records that FollowerID sees FolloweeID's shares in their feed.
type Follow struct {
	FollowerID string    `json:"followerId"`
	FolloweeID string    `json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`
}
