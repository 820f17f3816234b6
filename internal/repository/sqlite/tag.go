package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/linkstash/internal/apperror"
	"github.com/sakif/linkstash/internal/model"
	"github.com/sakif/linkstash/internal/repository"
)

var _ repository.TagRepository = (*DB)(nil)

// Attach upserts a tag counter: first attach creates the row with count 1,
// later attaches increment it and refresh the display name to the most
// recent casing. The slug is derived here so callers always hit the same row
// regardless of how the name was typed.
func (db *DB) Attach(ctx context.Context, name string) error {
	slug := model.TagSlug(name)
	if slug == "" {
		return apperror.ValidationFailed("tag", "tag name has no usable characters")
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tags (slug, name, count, updated_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(slug) DO UPDATE SET
		   count = count + 1,
		   name = excluded.name,
		   updated_at = excluded.updated_at`,
		slug, name, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: attaching tag %q: %w", slug, err)
	}
	return nil
}

// Detach decrements a tag counter. A missing row is a no-op, and the count
// is allowed to go below 1; such tags simply stop showing up in List.
// Tags are never deleted.
func (db *DB) Detach(ctx context.Context, name string) error {
	slug := model.TagSlug(name)
	if slug == "" {
		return nil
	}

	_, err := db.conn.ExecContext(ctx,
		`UPDATE tags SET count = count - 1, updated_at = ? WHERE slug = ?`,
		time.Now(), slug,
	)
	if err != nil {
		return fmt.Errorf("sqlite: detaching tag %q: %w", slug, err)
	}
	return nil
}

// List returns visible tags (count >= 1), most popular first.
func (db *DB) List(ctx context.Context, limit int) ([]model.Tag, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT slug, name, count, updated_at
		 FROM tags
		 WHERE count >= 1
		 ORDER BY count DESC, slug ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tags: %w", err)
	}
	defer rows.Close()

	tags := make([]model.Tag, 0, limit)
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.Slug, &t.Name, &t.Count, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag row: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tags: %w", err)
	}

	return tags, nil
}

// GetBySlug returns the tag row even when its count has dropped below 1.
func (db *DB) GetBySlug(ctx context.Context, slug string) (*model.Tag, error) {
	var t model.Tag
	err := db.conn.QueryRowContext(ctx,
		`SELECT slug, name, count, updated_at FROM tags WHERE slug = ?`, slug,
	).Scan(&t.Slug, &t.Name, &t.Count, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("tag", slug)
		}
		return nil, fmt.Errorf("sqlite: getting tag %s: %w", slug, err)
	}
	return &t, nil
}
