package memory

import (
	"context"
	"testing"
	"time"
)

func TestStore_ToggleLike(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	liked, err := s.ToggleLike(ctx, "listing-1", "0xabc")
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if !liked {
		t.Error("first toggle must like")
	}

	has, _ := s.HasLiked(ctx, "listing-1", "0xabc")
	if !has {
		t.Error("HasLiked false after like")
	}

	liked, _ = s.ToggleLike(ctx, "listing-1", "0xabc")
	if liked {
		t.Error("second toggle must unlike")
	}
	has, _ = s.HasLiked(ctx, "listing-1", "0xabc")
	if has {
		t.Error("HasLiked true after unlike")
	}
}

func TestStore_RecordView_Window(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	counted, err := s.RecordView(ctx, "listing-1", "key", base, time.Hour)
	if err != nil {
		t.Fatalf("RecordView: %v", err)
	}
	if !counted {
		t.Error("first view must count")
	}

	if counted, _ = s.RecordView(ctx, "listing-1", "key", base.Add(59*time.Minute), time.Hour); counted {
		t.Error("view inside window must not count")
	}
	// Exactly at the window edge counts again.
	if counted, _ = s.RecordView(ctx, "listing-1", "key", base.Add(time.Hour), time.Hour); !counted {
		t.Error("view at window edge must count")
	}

	stats, _ := s.Counts(ctx, "listing-1")
	if stats.Views != 2 {
		t.Errorf("views = %d, want 2", stats.Views)
	}
}

func TestStore_RecordView_EmptyKeyAlwaysCounts(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()

	for i := 0; i < 3; i++ {
		if counted, _ := s.RecordView(ctx, "listing-1", "", now, time.Hour); !counted {
			t.Fatalf("anonymous view %d not counted", i)
		}
	}
	stats, _ := s.Counts(ctx, "listing-1")
	if stats.Views != 3 {
		t.Errorf("views = %d, want 3", stats.Views)
	}
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	// One listing with only likes, one with only views.
	s.ToggleLike(ctx, "liked-only", "0xabc")
	s.RecordView(ctx, "viewed-only", "", time.Now(), time.Hour)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("stats = %d listings, want 2", len(stats))
	}

	byID := make(map[string]int64)
	for _, st := range stats {
		byID[st.ListingID] = st.Score()
	}
	if byID["liked-only"] != 3 {
		t.Errorf("liked-only score = %d, want 3", byID["liked-only"])
	}
	if byID["viewed-only"] != 1 {
		t.Errorf("viewed-only score = %d, want 1", byID["viewed-only"])
	}
}
