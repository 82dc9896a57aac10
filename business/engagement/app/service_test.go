package app_test

import (
	"context"
	"crypto/ecdsa"
	"io"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/app"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/infra/memory"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

const testChainID = 5031

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func newWallet(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func signMessage(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// Wallets report the recovery id as 27/28.
	sig[64] += 27
	return hexutil.Encode(sig)
}

func TestService_ToggleLike(t *testing.T) {
	store := memory.NewStore()
	svc := app.NewService(app.ServiceConfig{ChainID: testChainID, ViewDedupeTTL: time.Hour}, store, testLogger())

	key, addr := newWallet(t)
	message := domain.LikeMessage("listing-1", testChainID)
	sig := signMessage(t, key, message)

	eng, err := svc.ToggleLike(context.Background(), "listing-1", addr, message, sig)
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if !eng.HasLiked || eng.Likes != 1 {
		t.Errorf("after like: hasLiked=%v likes=%d, want true/1", eng.HasLiked, eng.Likes)
	}

	// A second identical call unlikes.
	eng, err = svc.ToggleLike(context.Background(), "listing-1", addr, message, sig)
	if err != nil {
		t.Fatalf("ToggleLike again: %v", err)
	}
	if eng.HasLiked || eng.Likes != 0 {
		t.Errorf("after unlike: hasLiked=%v likes=%d, want false/0", eng.HasLiked, eng.Likes)
	}
}

func TestService_ToggleLike_WrongListingSignature(t *testing.T) {
	store := memory.NewStore()
	svc := app.NewService(app.ServiceConfig{ChainID: testChainID, ViewDedupeTTL: time.Hour}, store, testLogger())

	key, addr := newWallet(t)
	otherMessage := domain.LikeMessage("listing-2", testChainID)
	sig := signMessage(t, key, otherMessage)

	_, err := svc.ToggleLike(context.Background(), "listing-1", addr, otherMessage, sig)
	if apperror.GetCode(err) != apperror.CodeSignatureInvalid {
		t.Fatalf("code = %s, want %s", apperror.GetCode(err), apperror.CodeSignatureInvalid)
	}

	// The failed attempt must not touch the counter.
	stats, err := store.Counts(context.Background(), "listing-1")
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if stats.Likes != 0 {
		t.Errorf("likes = %d after rejected toggle, want 0", stats.Likes)
	}
}

func TestService_ToggleLike_WrongSigner(t *testing.T) {
	store := memory.NewStore()
	svc := app.NewService(app.ServiceConfig{ChainID: testChainID, ViewDedupeTTL: time.Hour}, store, testLogger())

	key, _ := newWallet(t)
	_, claimed := newWallet(t)
	message := domain.LikeMessage("listing-1", testChainID)
	sig := signMessage(t, key, message)

	_, err := svc.ToggleLike(context.Background(), "listing-1", claimed, message, sig)
	if apperror.GetCode(err) != apperror.CodeSignatureInvalid {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeSignatureInvalid)
	}
}

func TestService_ToggleLike_MalformedSignature(t *testing.T) {
	store := memory.NewStore()
	svc := app.NewService(app.ServiceConfig{ChainID: testChainID, ViewDedupeTTL: time.Hour}, store, testLogger())

	_, addr := newWallet(t)
	message := domain.LikeMessage("listing-1", testChainID)

	for _, sig := range []string{"", "0x1234", "not-hex"} {
		_, err := svc.ToggleLike(context.Background(), "listing-1", addr, message, sig)
		if apperror.GetCode(err) != apperror.CodeSignatureInvalid {
			t.Errorf("sig %q: code = %s, want %s", sig, apperror.GetCode(err), apperror.CodeSignatureInvalid)
		}
	}
}

func TestService_TrackView_Dedupe(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := memory.NewStore()
	svc := app.NewService(app.ServiceConfig{ChainID: testChainID, ViewDedupeTTL: time.Hour},
		store, testLogger(), app.WithClock(clock))

	eng, err := svc.TrackView(context.Background(), "listing-1", "", "hash-a")
	if err != nil {
		t.Fatalf("TrackView: %v", err)
	}
	if eng.Views != 1 {
		t.Errorf("views = %d, want 1", eng.Views)
	}

	// Same viewer inside the window is suppressed.
	now = now.Add(10 * time.Minute)
	eng, err = svc.TrackView(context.Background(), "listing-1", "", "hash-a")
	if err != nil {
		t.Fatalf("TrackView repeat: %v", err)
	}
	if eng.Views != 1 {
		t.Errorf("views = %d after repeat inside window, want 1", eng.Views)
	}

	// A different viewer counts.
	eng, _ = svc.TrackView(context.Background(), "listing-1", "", "hash-b")
	if eng.Views != 2 {
		t.Errorf("views = %d after second viewer, want 2", eng.Views)
	}

	// The original viewer counts again once the window passes.
	now = now.Add(2 * time.Hour)
	eng, _ = svc.TrackView(context.Background(), "listing-1", "", "hash-a")
	if eng.Views != 3 {
		t.Errorf("views = %d after window expiry, want 3", eng.Views)
	}
}

func TestService_TrackView_MissingListing(t *testing.T) {
	svc := app.NewService(app.DefaultServiceConfig(), memory.NewStore(), testLogger())

	_, err := svc.TrackView(context.Background(), "", "", "hash-a")
	if apperror.GetCode(err) != apperror.CodeRequiredField {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeRequiredField)
	}
}

func TestService_Trending(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := app.NewService(app.DefaultServiceConfig(), store, testLogger())

	// Listing A: 10 likes, 5 views (score 35).
	for i := 0; i < 10; i++ {
		if _, err := store.ToggleLike(ctx, "listing-a", string(rune('a'+i))); err != nil {
			t.Fatalf("seed like: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		if _, err := store.RecordView(ctx, "listing-a", "", time.Now(), time.Hour); err != nil {
			t.Fatalf("seed view: %v", err)
		}
	}
	// Listing B: 2 likes, 40 views (score 46).
	store.ToggleLike(ctx, "listing-b", "x")
	store.ToggleLike(ctx, "listing-b", "y")
	for i := 0; i < 40; i++ {
		store.RecordView(ctx, "listing-b", "", time.Now(), time.Hour)
	}

	entries, err := svc.Trending(ctx, 10)
	if err != nil {
		t.Fatalf("Trending: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].ListingID != "listing-b" || entries[0].Score != 46 {
		t.Errorf("top = %s score %d, want listing-b score 46", entries[0].ListingID, entries[0].Score)
	}
	if entries[1].ListingID != "listing-a" || entries[1].Score != 35 {
		t.Errorf("second = %s score %d, want listing-a score 35", entries[1].ListingID, entries[1].Score)
	}

	// Limit truncates the ranking.
	entries, err = svc.Trending(ctx, 1)
	if err != nil {
		t.Fatalf("Trending limit 1: %v", err)
	}
	if len(entries) != 1 || entries[0].ListingID != "listing-b" {
		t.Errorf("limited ranking = %+v, want only listing-b", entries)
	}
}

func TestService_Engagement(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := app.NewService(app.ServiceConfig{ChainID: testChainID, ViewDedupeTTL: time.Hour}, store, testLogger())

	key, addr := newWallet(t)
	message := domain.LikeMessage("listing-1", testChainID)
	if _, err := svc.ToggleLike(ctx, "listing-1", addr, message, signMessage(t, key, message)); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}

	eng, err := svc.Engagement(ctx, "listing-1", addr)
	if err != nil {
		t.Fatalf("Engagement: %v", err)
	}
	if !eng.HasLiked || eng.Likes != 1 {
		t.Errorf("engagement = %+v, want hasLiked with 1 like", eng)
	}

	// A stranger sees the counters without the like flag.
	_, stranger := newWallet(t)
	eng, err = svc.Engagement(ctx, "listing-1", stranger)
	if err != nil {
		t.Fatalf("Engagement stranger: %v", err)
	}
	if eng.HasLiked {
		t.Error("stranger must not appear to have liked")
	}
}
