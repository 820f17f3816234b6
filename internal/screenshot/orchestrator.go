// Package screenshot drives the per-bookmark capture state machine:
// the orchestrator runs single attempts end-to-end, the sweeper re-runs
// failed ones on a schedule, and the trigger starts the first attempt when a
// bookmark is created.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"github.com/sakif/linkstash/internal/apperror"
	"github.com/sakif/linkstash/internal/blob"
	"github.com/sakif/linkstash/internal/capture"
	"github.com/sakif/linkstash/internal/repository"
	"github.com/sakif/linkstash/internal/thumbnail"
)

// Result is the value returned to synchronous callers. Capture-domain
// failures land here, never in the error return; a hostile or dead site
// must not look like a server fault to the caller.
type Result struct {
	Success       bool   `json:"success"`
	ScreenshotURL string `json:"screenshotUrl,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Attempter runs one capture attempt for a bookmark. The sweeper and the
// creation trigger depend on this rather than on *Orchestrator so tests can
// substitute stubs.
type Attempter interface {
	Attempt(ctx context.Context, bookmarkID, url, userID string) (Result, error)
}

// Orchestrator owns one bookmark's screenshot lifecycle per Attempt call:
//
//	pending/failed → processing → completed | failed
//
// Three durable writes: mark processing before any network I/O, one blob
// write, one final transition. They are not wrapped in a transaction; the
// sweeper's stale-processing selection covers a crash between them.
type Orchestrator struct {
	bookmarks repository.BookmarkRepository
	blobs     blob.Store
	engine    capture.Engine
	logger    *slog.Logger
}

var _ Attempter = (*Orchestrator)(nil)

// NewOrchestrator wires an Orchestrator. The engine may be shared by
// concurrent attempts; it launches an isolated browser per call.
func NewOrchestrator(
	bookmarks repository.BookmarkRepository,
	blobs blob.Store,
	engine capture.Engine,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		bookmarks: bookmarks,
		blobs:     blobs,
		engine:    engine,
		logger:    logger,
	}
}

// Attempt captures, post-processes, uploads, and persists the outcome for
// one bookmark.
//
// The returned error is reserved for validation and infrastructure faults
// (document or blob metadata writes failing); every capture-domain failure
// is persisted as the failed state and reported via Result. When Attempt
// returns a nil error the bookmark's status is exactly completed or failed,
// never processing.
func (o *Orchestrator) Attempt(ctx context.Context, bookmarkID, url, userID string) (Result, error) {
	// Reject before acquiring any rendering resource.
	if bookmarkID == "" {
		return Result{}, apperror.ValidationFailed("bookmarkId", "bookmark ID is required")
	}
	if url == "" {
		return Result{}, apperror.ValidationFailed("url", "target URL is required")
	}
	if userID == "" {
		return Result{}, apperror.ValidationFailed("userId", "owning user ID is required")
	}

	// First write: observers see work-in-progress before any network I/O.
	if err := o.bookmarks.MarkScreenshotProcessing(ctx, bookmarkID); err != nil {
		return Result{}, fmt.Errorf("screenshot: marking %s processing: %w", bookmarkID, err)
	}

	key, servedURL, capErr := o.captureAndStore(ctx, url, userID)
	if capErr != nil {
		msg := failureMessage(capErr)
		o.logger.Warn("screenshot attempt failed",
			slog.String("bookmarkID", bookmarkID),
			slog.String("url", url),
			slog.String("reason", msg),
			slog.String("error", capErr.Error()),
		)
		if err := o.bookmarks.MarkScreenshotFailed(ctx, bookmarkID, msg); err != nil {
			return Result{}, fmt.Errorf("screenshot: marking %s failed: %w", bookmarkID, err)
		}
		return Result{Success: false, Error: msg}, nil
	}

	if err := o.bookmarks.MarkScreenshotCompleted(ctx, bookmarkID, servedURL, key); err != nil {
		return Result{}, fmt.Errorf("screenshot: marking %s completed: %w", bookmarkID, err)
	}

	o.logger.Info("screenshot captured",
		slog.String("bookmarkID", bookmarkID),
		slog.String("path", key),
	)

	return Result{Success: true, ScreenshotURL: servedURL}, nil
}

// captureAndStore renders the page, shrinks the raster, and uploads it.
// Every failure comes back as a capture-domain error.
//
// The blob key gets a fresh random ID per attempt, so retries never collide
// with a previous attempt's partial write. Old blobs orphaned by failed
// attempts stay around; the delete flow cleans up only the last-known path.
func (o *Orchestrator) captureAndStore(ctx context.Context, url, userID string) (key, servedURL string, err error) {
	res, err := o.engine.Capture(ctx, capture.Request{URL: url})
	if err != nil {
		return "", "", err
	}

	thumb, err := thumbnail.FromCapture(res.Image)
	if err != nil {
		return "", "", capture.Failure(capture.EncodingFailed, err)
	}

	key = fmt.Sprintf("screenshots/%s/%s.%s", userID, xid.New().String(), thumbnail.Ext)
	if err := o.blobs.Put(ctx, key, thumb); err != nil {
		return "", "", capture.Failure(capture.UploadFailed, err)
	}

	return key, o.blobs.URL(key), nil
}

// failureMessage derives the stored screenshotError text from the failure
// taxonomy. Engines outside this repo might return something that isn't a
// *capture.Error; those get the generic message.
func failureMessage(err error) string {
	var capErr *capture.Error
	if errors.As(err, &capErr) {
		return capErr.Kind.String()
	}
	return "capture failed"
}
