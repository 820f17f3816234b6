package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/linkstash/internal/apperror"
	"github.com/sakif/linkstash/internal/model"
	"github.com/sakif/linkstash/internal/repository"
)

// Compile-time check that *DB implements the repository interface.
var _ repository.BookmarkRepository = (*DB)(nil)

const bookmarkColumns = `id, user_id, url, title, description, tags, folder_id,
	screenshot_url, screenshot_path, screenshot_status, screenshot_error,
	screenshot_retries, created_at, updated_at`

// Create inserts a new bookmark, assigning its ID and timestamps.
// xid IDs sort by creation time, which is what makes them usable as the
// list cursor in ListByUser.
func (db *DB) Create(ctx context.Context, b *model.Bookmark) error {
	b.ID = xid.New().String()

	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	if b.ScreenshotStatus == "" {
		b.ScreenshotStatus = model.ScreenshotPending
	}

	tags, err := encodeTags(b.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tags: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO bookmarks (id, user_id, url, title, description, tags, folder_id,
		 screenshot_url, screenshot_path, screenshot_status, screenshot_error,
		 screenshot_retries, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.UserID,
		b.URL,
		b.Title,
		b.Description,
		tags,
		nullable(b.FolderID),
		nullable(b.ScreenshotURL),
		nullable(b.ScreenshotPath),
		string(b.ScreenshotStatus),
		nullable(b.ScreenshotError),
		b.ScreenshotRetries,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating bookmark: %w", err)
	}

	return nil
}

// GetByID retrieves a single bookmark. Ownership is NOT checked here; that
// is the service layer's job.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Bookmark, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks WHERE id = ?`, id)

	b, err := scanBookmark(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("bookmark", id)
		}
		return nil, fmt.Errorf("sqlite: getting bookmark %s: %w", id, err)
	}

	return b, nil
}

// ListByUser returns one page of the user's bookmarks, newest first, plus
// the cursor for the next page ("" on the last page). Filters are ANDed.
func (db *DB) ListByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Bookmark, string, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := `SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE user_id = ?`
	args := []any{userID}

	if opts.Cursor != "" {
		query += ` AND id < ?`
		args = append(args, opts.Cursor)
	}
	if opts.FolderID != "" {
		query += ` AND folder_id = ?`
		args = append(args, opts.FolderID)
	}
	if opts.Tag != "" {
		// Tags are stored as a JSON array; match the quoted entry.
		query += ` AND tags LIKE ?`
		args = append(args, `%"`+opts.Tag+`"%`)
	}
	if opts.Query != "" {
		q := "%" + opts.Query + "%"
		query += ` AND (title LIKE ? OR description LIKE ? OR url LIKE ?)`
		args = append(args, q, q, q)
	}

	// Fetch one extra row to know whether another page exists.
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("sqlite: listing bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := make([]model.Bookmark, 0, limit)
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, "", fmt.Errorf("sqlite: scanning bookmark row: %w", err)
		}
		bookmarks = append(bookmarks, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("sqlite: iterating bookmarks: %w", err)
	}

	nextCursor := ""
	if len(bookmarks) > limit {
		bookmarks = bookmarks[:limit]
		nextCursor = bookmarks[limit-1].ID
	}

	return bookmarks, nextCursor, nil
}

// Update rewrites the content fields and screenshot sub-record of an
// existing bookmark. user_id and created_at are immutable.
func (db *DB) Update(ctx context.Context, b *model.Bookmark) error {
	b.UpdatedAt = time.Now()

	tags, err := encodeTags(b.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tags: %w", err)
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE bookmarks
		 SET url = ?, title = ?, description = ?, tags = ?, folder_id = ?,
		     screenshot_url = ?, screenshot_path = ?, screenshot_status = ?,
		     screenshot_error = ?, screenshot_retries = ?, updated_at = ?
		 WHERE id = ?`,
		b.URL,
		b.Title,
		b.Description,
		tags,
		nullable(b.FolderID),
		nullable(b.ScreenshotURL),
		nullable(b.ScreenshotPath),
		string(b.ScreenshotStatus),
		nullable(b.ScreenshotError),
		b.ScreenshotRetries,
		b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating bookmark %s: %w", b.ID, err)
	}

	return checkAffected(result, "bookmark", b.ID)
}

// Delete removes a bookmark row.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting bookmark %s: %w", id, err)
	}
	return checkAffected(result, "bookmark", id)
}

// CountByUser returns the user's total bookmark count.
func (db *DB) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookmarks WHERE user_id = ?`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting bookmarks: %w", err)
	}
	return count, nil
}

// MarkScreenshotProcessing transitions the screenshot state machine to
// processing. Persisted before any capture I/O so concurrent observers see
// work-in-progress.
func (db *DB) MarkScreenshotProcessing(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE bookmarks SET screenshot_status = ?, updated_at = ? WHERE id = ?`,
		string(model.ScreenshotProcessing), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking bookmark %s processing: %w", id, err)
	}
	return checkAffected(result, "bookmark", id)
}

// MarkScreenshotCompleted stores the served URL and blob path and clears any
// previous failure message.
func (db *DB) MarkScreenshotCompleted(ctx context.Context, id, url, path string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE bookmarks
		 SET screenshot_status = ?, screenshot_url = ?, screenshot_path = ?,
		     screenshot_error = NULL, updated_at = ?
		 WHERE id = ?`,
		string(model.ScreenshotCompleted), url, path, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking bookmark %s completed: %w", id, err)
	}
	return checkAffected(result, "bookmark", id)
}

// MarkScreenshotFailed records a failed attempt. The URL is cleared (a
// failed bookmark never advertises a thumbnail); the blob path is left
// untouched so the delete flow can still clean up the last stored blob.
func (db *DB) MarkScreenshotFailed(ctx context.Context, id, message string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE bookmarks
		 SET screenshot_status = ?, screenshot_url = NULL, screenshot_error = ?,
		     updated_at = ?
		 WHERE id = ?`,
		string(model.ScreenshotFailed), message, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking bookmark %s failed: %w", id, err)
	}
	return checkAffected(result, "bookmark", id)
}

// IncrementScreenshotRetries bumps the retry counter. Called by the sweeper
// before each attempt so a crash mid-attempt still counts against the budget.
func (db *DB) IncrementScreenshotRetries(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE bookmarks
		 SET screenshot_retries = screenshot_retries + 1, updated_at = ?
		 WHERE id = ?`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing retries for bookmark %s: %w", id, err)
	}
	return checkAffected(result, "bookmark", id)
}

// ListRetryable selects sweep candidates: no screenshot URL and either
// failed, or stuck in processing since before processingStaleBefore (a crash
// between the orchestrator's first and last write would otherwise strand the
// record forever). Least-recently-touched first.
func (db *DB) ListRetryable(ctx context.Context, processingStaleBefore time.Time, limit int) ([]model.Bookmark, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+bookmarkColumns+`
		 FROM bookmarks
		 WHERE screenshot_url IS NULL
		   AND (screenshot_status = ?
		        OR (screenshot_status = ? AND updated_at < ?))
		 ORDER BY updated_at ASC
		 LIMIT ?`,
		string(model.ScreenshotFailed),
		string(model.ScreenshotProcessing),
		processingStaleBefore,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing retryable bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := make([]model.Bookmark, 0, limit)
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning retryable bookmark: %w", err)
		}
		bookmarks = append(bookmarks, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating retryable bookmarks: %w", err)
	}

	return bookmarks, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(s scanner) (*model.Bookmark, error) {
	var (
		b                              model.Bookmark
		tags                           string
		folderID, ssURL, ssPath, ssErr sql.NullString
		status                         string
	)

	err := s.Scan(
		&b.ID, &b.UserID, &b.URL, &b.Title, &b.Description, &tags, &folderID,
		&ssURL, &ssPath, &status, &ssErr,
		&b.ScreenshotRetries, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tags), &b.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	b.FolderID = folderID.String
	b.ScreenshotURL = ssURL.String
	b.ScreenshotPath = ssPath.String
	b.ScreenshotError = ssErr.String
	b.ScreenshotStatus = model.ScreenshotStatus(status)

	return &b, nil
}

func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// nullable maps the empty string to NULL so that "no value" columns stay
// NULL in the database (the selection predicates rely on IS NULL).
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func checkAffected(result sql.Result, resource, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
