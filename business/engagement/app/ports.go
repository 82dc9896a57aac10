package app

import (
	"context"
	"time"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/domain"
)

// Store persists engagement counters. Implementations must make
// ToggleLike and RecordView atomic with respect to concurrent callers.
type Store interface {
	// Counts returns the listing's counters, zero-valued if unseen.
	Counts(ctx context.Context, listingID string) (domain.ListingStats, error)

	// HasLiked reports whether the address currently likes the listing.
	HasLiked(ctx context.Context, listingID, address string) (bool, error)

	// ToggleLike flips the address's like and reports the new state.
	ToggleLike(ctx context.Context, listingID, address string) (liked bool, err error)

	// RecordView counts a view unless the same dedupe key was already
	// counted for this listing within the window ending at `at`. It
	// reports whether the view was counted.
	RecordView(ctx context.Context, listingID, dedupeKey string, at time.Time, window time.Duration) (bool, error)

	// Stats returns counters for every listing with activity.
	Stats(ctx context.Context) ([]domain.ListingStats, error)
}
