// Package memory provides the default in-process engagement store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/app"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/domain"
)

// Ensure Store implements the engagement port.
var _ app.Store = (*Store)(nil)

// Store keeps all counters in process memory. Counters reset on restart,
// which is acceptable for the demo and single-node deployments.
type Store struct {
	mu    sync.Mutex
	likes map[string]map[string]struct{} // listing -> liker set
	views map[string]int64
	seen  map[string]time.Time // listing+key -> last counted view
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		likes: make(map[string]map[string]struct{}),
		views: make(map[string]int64),
		seen:  make(map[string]time.Time),
	}
}

// Counts returns the listing's counters.
func (s *Store) Counts(_ context.Context, listingID string) (domain.ListingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ListingStats{
		ListingID: listingID,
		Likes:     int64(len(s.likes[listingID])),
		Views:     s.views[listingID],
	}, nil
}

// HasLiked reports whether the address likes the listing.
func (s *Store) HasLiked(_ context.Context, listingID, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.likes[listingID][address]
	return ok, nil
}

// ToggleLike flips the address's like and reports the new state.
func (s *Store) ToggleLike(_ context.Context, listingID, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.likes[listingID]
	if !ok {
		set = make(map[string]struct{})
		s.likes[listingID] = set
	}
	if _, liked := set[address]; liked {
		delete(set, address)
		return false, nil
	}
	set[address] = struct{}{}
	return true, nil
}

// RecordView counts a view unless the dedupe key was already counted
// within the window. An empty key is always counted.
func (s *Store) RecordView(_ context.Context, listingID, dedupeKey string, at time.Time, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dedupeKey != "" {
		seenKey := listingID + "\x00" + dedupeKey
		if last, ok := s.seen[seenKey]; ok && at.Sub(last) < window {
			return false, nil
		}
		s.seen[seenKey] = at
	}
	s.views[listingID]++
	return true, nil
}

// Stats returns counters for every listing with activity.
func (s *Store) Stats(_ context.Context) ([]domain.ListingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[string]struct{}, len(s.views))
	for id := range s.views {
		ids[id] = struct{}{}
	}
	for id := range s.likes {
		ids[id] = struct{}{}
	}

	stats := make([]domain.ListingStats, 0, len(ids))
	for id := range ids {
		stats = append(stats, domain.ListingStats{
			ListingID: id,
			Likes:     int64(len(s.likes[id])),
			Views:     s.views[id],
		})
	}
	return stats, nil
}
