// Package app implements the signature-authenticated engagement service:
// wallet-signed likes, deduplicated view counting and trending ranking.
package app

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/domain"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/apperror"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/internal/logger"
)

const tracerName = "engagement.app"

const (
	defaultTrendingLimit = 10
	maxTrendingLimit     = 50
)

// ServiceConfig holds the engagement service settings.
type ServiceConfig struct {
	// ChainID is baked into the canonical like message.
	ChainID uint64
	// ViewDedupeTTL suppresses repeat views from the same key.
	ViewDedupeTTL time.Duration
}

// DefaultServiceConfig returns the service defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ChainID:       5031,
		ViewDedupeTTL: time.Hour,
	}
}

// Service answers engagement reads and performs authenticated writes.
type Service struct {
	cfg    ServiceConfig
	store  Store
	logger logger.LoggerInterface
	tracer trace.Tracer
	now    func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates the engagement service over the given store.
func NewService(cfg ServiceConfig, store Store, log logger.LoggerInterface, opts ...ServiceOption) *Service {
	if cfg.ViewDedupeTTL <= 0 {
		cfg.ViewDedupeTTL = time.Hour
	}
	s := &Service{
		cfg:    cfg,
		store:  store,
		logger: log,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ToggleLike flips the caller's like after verifying the signature
// recovers to the claimed address over the canonical like message.
// Any verification failure leaves the counters untouched.
func (s *Service) ToggleLike(ctx context.Context, listingID, address, message, signature string) (domain.Engagement, error) {
	ctx, span := s.tracer.Start(ctx, "engagement.toggle_like",
		trace.WithAttributes(attribute.String("listing_id", listingID)),
	)
	defer span.End()

	if listingID == "" {
		return domain.Engagement{}, apperror.Validation(apperror.CodeRequiredField, "listingId is required")
	}
	if !common.IsHexAddress(address) {
		return domain.Engagement{}, apperror.Validation(apperror.CodeInvalidAddress, "invalid address "+address)
	}

	// The signed text must be the canonical message for this exact
	// listing and chain; a signature captured for another listing
	// cannot be replayed here.
	if message != domain.LikeMessage(listingID, s.cfg.ChainID) {
		return domain.Engagement{}, apperror.Unauthorized(apperror.CodeSignatureInvalid,
			"message does not match listing "+listingID)
	}
	if err := verifySignature(address, message, signature); err != nil {
		return domain.Engagement{}, err
	}

	liked, err := s.store.ToggleLike(ctx, listingID, normalizeAddress(address))
	if err != nil {
		return domain.Engagement{}, apperror.Wrap(err, apperror.CodeStorageError, "toggle like "+listingID)
	}

	s.logger.Info(ctx, "like toggled", "listing_id", listingID, "liked", liked)
	span.SetAttributes(attribute.Bool("liked", liked))
	return s.snapshot(ctx, listingID, liked)
}

// TrackView counts a view, suppressing repeats from the same viewer
// within the dedupe window. The returned snapshot reflects the counters
// whether or not this view was counted.
func (s *Service) TrackView(ctx context.Context, listingID, viewer, ipHash string) (domain.Engagement, error) {
	ctx, span := s.tracer.Start(ctx, "engagement.track_view",
		trace.WithAttributes(attribute.String("listing_id", listingID)),
	)
	defer span.End()

	if listingID == "" {
		return domain.Engagement{}, apperror.Validation(apperror.CodeRequiredField, "listingId is required")
	}

	key := ipHash
	if key == "" && common.IsHexAddress(viewer) {
		key = normalizeAddress(viewer)
	}

	counted, err := s.store.RecordView(ctx, listingID, key, s.now(), s.cfg.ViewDedupeTTL)
	if err != nil {
		return domain.Engagement{}, apperror.Wrap(err, apperror.CodeStorageError, "record view "+listingID)
	}
	span.SetAttributes(attribute.Bool("counted", counted))

	hasLiked := false
	if common.IsHexAddress(viewer) {
		hasLiked, err = s.store.HasLiked(ctx, listingID, normalizeAddress(viewer))
		if err != nil {
			return domain.Engagement{}, apperror.Wrap(err, apperror.CodeStorageError, "read like state "+listingID)
		}
	}
	return s.snapshot(ctx, listingID, hasLiked)
}

// Engagement returns the listing's counters and, when a viewer address
// is supplied, whether that viewer has liked it.
func (s *Service) Engagement(ctx context.Context, listingID, viewer string) (domain.Engagement, error) {
	if listingID == "" {
		return domain.Engagement{}, apperror.Validation(apperror.CodeRequiredField, "listingId is required")
	}

	hasLiked := false
	if common.IsHexAddress(viewer) {
		var err error
		hasLiked, err = s.store.HasLiked(ctx, listingID, normalizeAddress(viewer))
		if err != nil {
			return domain.Engagement{}, apperror.Wrap(err, apperror.CodeStorageError, "read like state "+listingID)
		}
	}
	return s.snapshot(ctx, listingID, hasLiked)
}

// Trending ranks listings by weighted score, descending.
func (s *Service) Trending(ctx context.Context, limit int) ([]domain.TrendingEntry, error) {
	ctx, span := s.tracer.Start(ctx, "engagement.trending")
	defer span.End()

	if limit <= 0 {
		limit = defaultTrendingLimit
	}
	if limit > maxTrendingLimit {
		limit = maxTrendingLimit
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStorageError, "read engagement stats")
	}

	entries := lo.Map(stats, func(st domain.ListingStats, _ int) domain.TrendingEntry {
		return domain.TrendingEntry{
			ListingID: st.ListingID,
			Likes:     st.Likes,
			Views:     st.Views,
			Score:     st.Score(),
		}
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ListingID < entries[j].ListingID
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	span.SetAttributes(attribute.Int("entries", len(entries)))
	return entries, nil
}

func (s *Service) snapshot(ctx context.Context, listingID string, hasLiked bool) (domain.Engagement, error) {
	stats, err := s.store.Counts(ctx, listingID)
	if err != nil {
		return domain.Engagement{}, apperror.Wrap(err, apperror.CodeStorageError, "read counters "+listingID)
	}
	return domain.Engagement{
		ListingID: listingID,
		Likes:     stats.Likes,
		Views:     stats.Views,
		HasLiked:  hasLiked,
	}, nil
}

// verifySignature checks the EIP-191 personal-sign signature recovers
// to the claimed address.
func verifySignature(address, message, signature string) error {
	raw, err := hexutil.Decode(signature)
	if err != nil || len(raw) != 65 {
		return apperror.Unauthorized(apperror.CodeSignatureInvalid, "malformed signature")
	}

	// Wallets report the recovery id as 27/28; SigToPub expects 0/1.
	sig := make([]byte, 65)
	copy(sig, raw)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return apperror.Unauthorized(apperror.CodeSignatureInvalid, "signature recovery failed")
	}
	if crypto.PubkeyToAddress(*pub) != common.HexToAddress(address) {
		return apperror.Unauthorized(apperror.CodeSignatureInvalid,
			"signature does not recover to "+address)
	}
	return nil
}

func normalizeAddress(address string) string {
	return strings.ToLower(common.HexToAddress(address).Hex())
}
