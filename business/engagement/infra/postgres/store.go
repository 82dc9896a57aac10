// Package postgres persists engagement counters in PostgreSQL, for
// deployments where likes must survive restarts.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/app"
	"github.com/Blockchain-Oracle/somnia-liquidity-hub/business/engagement/domain"
)

// Ensure Store implements the engagement port.
var _ app.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS engagement_likes (
	listing_id text        NOT NULL,
	address    text        NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (listing_id, address)
);
CREATE TABLE IF NOT EXISTS engagement_views (
	listing_id text   PRIMARY KEY,
	views      bigint NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS engagement_view_dedupe (
	listing_id text        NOT NULL,
	dedupe_key text        NOT NULL,
	last_seen  timestamptz NOT NULL,
	PRIMARY KEY (listing_id, dedupe_key)
);`

// Store is an engagement store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database and verifies it answers.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open engagement database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping engagement database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate creates the engagement tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate engagement schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Counts returns the listing's counters.
func (s *Store) Counts(ctx context.Context, listingID string) (domain.ListingStats, error) {
	const q = `
SELECT
	(SELECT count(*) FROM engagement_likes WHERE listing_id = $1),
	COALESCE((SELECT views FROM engagement_views WHERE listing_id = $1), 0)`

	stats := domain.ListingStats{ListingID: listingID}
	if err := s.pool.QueryRow(ctx, q, listingID).Scan(&stats.Likes, &stats.Views); err != nil {
		return domain.ListingStats{}, fmt.Errorf("failed to read counters: %w", err)
	}
	return stats, nil
}

// HasLiked reports whether the address currently likes the listing.
func (s *Store) HasLiked(ctx context.Context, listingID, address string) (bool, error) {
	const q = `SELECT EXISTS (
	SELECT 1 FROM engagement_likes WHERE listing_id = $1 AND address = $2)`

	var liked bool
	if err := s.pool.QueryRow(ctx, q, listingID, address).Scan(&liked); err != nil {
		return false, fmt.Errorf("failed to read like state: %w", err)
	}
	return liked, nil
}

// ToggleLike flips the address's like inside a transaction.
func (s *Store) ToggleLike(ctx context.Context, listingID, address string) (bool, error) {
	var liked bool
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM engagement_likes WHERE listing_id = $1 AND address = $2`,
			listingID, address)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			liked = false
			return nil
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO engagement_likes (listing_id, address) VALUES ($1, $2)`,
			listingID, address)
		liked = err == nil
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to toggle like: %w", err)
	}
	return liked, nil
}

// RecordView counts a view unless the dedupe key was already counted
// within the window. An empty key is always counted.
func (s *Store) RecordView(ctx context.Context, listingID, dedupeKey string, at time.Time, window time.Duration) (bool, error) {
	counted := true
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if dedupeKey != "" {
			var lastSeen time.Time
			err := tx.QueryRow(ctx,
				`SELECT last_seen FROM engagement_view_dedupe
				 WHERE listing_id = $1 AND dedupe_key = $2 FOR UPDATE`,
				listingID, dedupeKey).Scan(&lastSeen)
			switch {
			case err == nil:
				if at.Sub(lastSeen) < window {
					counted = false
					return nil
				}
			case errors.Is(err, pgx.ErrNoRows):
				// first view from this key
			default:
				return err
			}

			if _, err := tx.Exec(ctx,
				`INSERT INTO engagement_view_dedupe (listing_id, dedupe_key, last_seen)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (listing_id, dedupe_key) DO UPDATE SET last_seen = EXCLUDED.last_seen`,
				listingID, dedupeKey, at); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO engagement_views (listing_id, views) VALUES ($1, 1)
			 ON CONFLICT (listing_id) DO UPDATE SET views = engagement_views.views + 1`,
			listingID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to record view: %w", err)
	}
	return counted, nil
}

// Stats returns counters for every listing with activity.
func (s *Store) Stats(ctx context.Context) ([]domain.ListingStats, error) {
	const q = `
SELECT listing_id, COALESCE(l.likes, 0), COALESCE(v.views, 0)
FROM (SELECT listing_id, count(*) AS likes FROM engagement_likes GROUP BY listing_id) l
FULL OUTER JOIN engagement_views v USING (listing_id)`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to read engagement stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.ListingStats
	for rows.Next() {
		var st domain.ListingStats
		if err := rows.Scan(&st.ListingID, &st.Likes, &st.Views); err != nil {
			return nil, fmt.Errorf("failed to scan engagement stats: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read engagement stats: %w", err)
	}
	return stats, nil
}
