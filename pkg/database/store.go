package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eventscout/eventscout/pkg/models"
)

// Store persists discovered events into the curated events table,
// which the database search provider serves back on later queries.
type Store struct {
	client *Client
}

// NewStore creates a store over the given client.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

// UpsertEvents writes candidates into the events table. Existing URLs
// are refreshed with the newer extraction. Partial failure skips the
// offending row and continues.
func (s *Store) UpsertEvents(ctx context.Context, candidates []models.EventCandidate) error {
	const stmt = `
		INSERT INTO events (url, title, description, event_date, city, country, confidence, source, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::date, $5, $6, $7, $8, now())
		ON CONFLICT (url) DO UPDATE SET
			title       = EXCLUDED.title,
			description = EXCLUDED.description,
			event_date  = EXCLUDED.event_date,
			city        = EXCLUDED.city,
			country     = EXCLUDED.country,
			confidence  = EXCLUDED.confidence,
			source      = EXCLUDED.source,
			updated_at  = now()`

	var failed int
	for _, c := range candidates {
		if c.Title == "" {
			continue
		}
		_, err := s.client.DB().ExecContext(ctx, stmt,
			c.URL, c.Title, c.Description, c.Date, c.City, c.Country, c.Confidence, string(c.Source))
		if err != nil {
			failed++
			slog.Warn("Event upsert failed", "url", c.URL, "error", err)
		}
	}
	if failed == len(candidates) && failed > 0 {
		return fmt.Errorf("all %d event upserts failed", failed)
	}
	return nil
}

// CountEvents returns the curated corpus size.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var n int
	err := s.client.DB().QueryRowContext(ctx, `SELECT count(*) FROM events`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("events count failed: %w", err)
	}
	return n, nil
}
