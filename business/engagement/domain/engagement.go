// Package domain holds the engagement counters and scoring rules.
package domain

import "fmt"

// Like-score weighting: a like signals more intent than a view.
const (
	LikeWeight = 3
	ViewWeight = 1
)

// LikeMessage builds the canonical text a wallet signs to toggle a like.
// Binding the listing and chain into the message makes a captured
// signature useless for any other listing or network.
func LikeMessage(listingID string, chainID uint64) string {
	return fmt.Sprintf("somnia.engagement.like\nlisting:%s\nchain:%d", listingID, chainID)
}

// ListingStats are the raw counters kept per listing.
type ListingStats struct {
	ListingID string `json:"listingId"`
	Likes     int64  `json:"likes"`
	Views     int64  `json:"views"`
}

// Score ranks the listing for trending.
func (s ListingStats) Score() int64 {
	return s.Likes*LikeWeight + s.Views*ViewWeight
}

// Engagement is the per-viewer snapshot returned by the service.
type Engagement struct {
	ListingID string `json:"listingId"`
	Likes     int64  `json:"likes"`
	Views     int64  `json:"views"`
	HasLiked  bool   `json:"hasLiked"`
}

// TrendingEntry is one row of the trending ranking.
type TrendingEntry struct {
	ListingID string `json:"listingId"`
	Likes     int64  `json:"likes"`
	Views     int64  `json:"views"`
	Score     int64  `json:"score"`
}
