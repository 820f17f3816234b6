// Package repository declares the persistence interfaces consumed by the
// service and screenshot layers. The sqlite subpackage provides the concrete
// implementation; tests substitute in-memory mocks.
package repository

import (
	"context"
	"time"

	"github.com/sakif/linkstash/internal/model"
)

// ListOptions controls bookmark listing.
//
// Cursor is the ID of the last bookmark of the previous page (exclusive).
// IDs are xids, which sort by creation time, so "id < cursor, newest first"
// is a stable cursor without a separate sort key.
type ListOptions struct {
	Limit    int
	Cursor   string
	FolderID string // filter: only bookmarks in this folder
	Tag      string // filter: only bookmarks carrying this tag
	Query    string // filter: substring match over title, description, url
}

// BookmarkRepository is the document-store boundary for bookmarks.
//
// The MarkScreenshot* methods are the orchestrator's three state-machine
// writes; each refreshes updated_at. They deliberately do NOT share a single
// generic update so that the transitions' field effects (which columns are
// set, cleared, or left alone) live in one place.
type BookmarkRepository interface {
	Create(ctx context.Context, b *model.Bookmark) error
	GetByID(ctx context.Context, id string) (*model.Bookmark, error)
	// ListByUser returns one page plus the cursor for the next page
	// ("" when this was the last page).
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Bookmark, string, error)
	Update(ctx context.Context, b *model.Bookmark) error
	Delete(ctx context.Context, id string) error
	CountByUser(ctx context.Context, userID string) (int, error)

	// MarkScreenshotProcessing records that a capture attempt is in flight.
	MarkScreenshotProcessing(ctx context.Context, id string) error
	// MarkScreenshotCompleted stores the final URL and blob path and clears
	// any previous error.
	MarkScreenshotCompleted(ctx context.Context, id, url, path string) error
	// MarkScreenshotFailed clears the URL, stores the failure message, and
	// leaves the last-known blob path alone.
	MarkScreenshotFailed(ctx context.Context, id, message string) error
	// IncrementScreenshotRetries bumps the retry counter by one.
	IncrementScreenshotRetries(ctx context.Context, id string) error
	// ListRetryable selects capture candidates for the sweeper: bookmarks
	// with no screenshot URL that are either failed, or stuck in processing
	// since before processingStaleBefore. Least-recently-touched first.
	ListRetryable(ctx context.Context, processingStaleBefore time.Time, limit int) ([]model.Bookmark, error)
}

// TagRepository maintains the denormalized tag popularity counters.
type TagRepository interface {
	// Attach upserts the tag by slug: creates it with count 1, or increments
	// the existing counter and refreshes the display name.
	Attach(ctx context.Context, name string) error
	// Detach decrements the counter. Missing tags are a no-op; counts may go
	// below 1, which simply hides the tag from List.
	Detach(ctx context.Context, name string) error
	// List returns tags with count >= 1, most popular first.
	List(ctx context.Context, limit int) ([]model.Tag, error)
	// GetBySlug returns the tag row regardless of its count.
	GetBySlug(ctx context.Context, slug string) (*model.Tag, error)
}

// UserRepository stores accounts keyed by GitHub identity.
type UserRepository interface {
	// Upsert inserts on first login (filling ID and timestamps) or updates
	// profile fields on subsequent logins, keyed by GitHubID. The API token
	// hash is untouched either way.
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// SetAPITokenHash replaces the user's stored API token hash. Minting a
	// new token invalidates the old one.
	SetAPITokenHash(ctx context.Context, id, hash string) error
}
