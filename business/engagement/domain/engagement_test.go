package domain

import "testing"

func TestLikeMessage(t *testing.T) {
	got := LikeMessage("listing-42", 5031)
	want := "somnia.engagement.like\nlisting:listing-42\nchain:5031"
	if got != want {
		t.Errorf("LikeMessage = %q, want %q", got, want)
	}

	// Differing listing or chain must produce a different message.
	if LikeMessage("listing-43", 5031) == got {
		t.Error("message identical across listings")
	}
	if LikeMessage("listing-42", 50312) == got {
		t.Error("message identical across chains")
	}
}

func TestListingStats_Score(t *testing.T) {
	tests := []struct {
		name  string
		likes int64
		views int64
		want  int64
	}{
		{"likes heavy", 10, 5, 35},
		{"views heavy", 2, 40, 46},
		{"empty", 0, 0, 0},
		{"likes only", 7, 0, 21},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ListingStats{Likes: tt.likes, Views: tt.views}
			if got := s.Score(); got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
		})
	}

	// The ranking example that motivates the weights: many cheap views
	// can still outrank a like-heavy listing.
	a := ListingStats{ListingID: "a", Likes: 10, Views: 5}
	b := ListingStats{ListingID: "b", Likes: 2, Views: 40}
	if a.Score() >= b.Score() {
		t.Errorf("expected %d < %d", a.Score(), b.Score())
	}
}
