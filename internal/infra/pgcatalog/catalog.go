package pgcatalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"mediamatch/internal/app/media"
)

// Catalog reads the media table as a CatalogProvider.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog wraps an existing pool.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// MediaForRoom loads the full media table in insertion order and narrows it
// with the room's filters. Filtering happens in Go with the same rules the
// other providers use, so every catalog source behaves identically.
func (c *Catalog) MediaForRoom(ctx context.Context, filters []media.Filter) ([]media.Media, error) {
	const query = `
		SELECT id, title, year, duration, rating, content_rating,
		       genres, description, poster_url, link_url, media_type
		FROM media
		ORDER BY added_at, id`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query media table: %w", err)
	}
	defer rows.Close()

	var items []media.Media
	for rows.Next() {
		var m media.Media
		if err := rows.Scan(
			&m.ID, &m.Title, &m.Year, &m.Duration, &m.Rating, &m.ContentRating,
			&m.Genres, &m.Description, &m.PosterURL, &m.LinkURL, &m.Type,
		); err != nil {
			return nil, fmt.Errorf("scan media row: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media rows: %w", err)
	}

	return media.ApplyFilters(items, filters), nil
}
