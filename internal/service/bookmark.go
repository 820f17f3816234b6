// Package service contains the business logic layer: validation, ownership
// rules, and orchestration between repositories, blob storage, and the
// event bus. Handlers parse HTTP and delegate here; repositories only see
// already-validated data.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/sakif/linkstash/internal/apperror"
	"github.com/sakif/linkstash/internal/blob"
	"github.com/sakif/linkstash/internal/event"
	"github.com/sakif/linkstash/internal/model"
	"github.com/sakif/linkstash/internal/repository"
)

const (
	MaxURLLength         = 2048
	MaxTitleLength       = 500
	MaxDescriptionLength = 2000
	MaxTags              = 20
	MaxTagLength         = 50
	DefaultListLimit     = 20
	MaxListLimit         = 100
)

// BookmarkService handles bookmark business logic. All operations take the
// acting user's ID; a bookmark is only ever visible to its owner.
type BookmarkService struct {
	bookmarks repository.BookmarkRepository
	tags      repository.TagRepository
	blobs     blob.Store
	publisher message.Publisher
	logger    *slog.Logger
}

// NewBookmarkService wires a BookmarkService.
func NewBookmarkService(
	bookmarks repository.BookmarkRepository,
	tags repository.TagRepository,
	blobs blob.Store,
	publisher message.Publisher,
	logger *slog.Logger,
) *BookmarkService {
	return &BookmarkService{
		bookmarks: bookmarks,
		tags:      tags,
		blobs:     blobs,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateBookmarkInput carries the user-supplied fields for creation.
type CreateBookmarkInput struct {
	URL         string
	Title       string
	Description string
	Tags        []string
	FolderID    string
}

// UpdateBookmarkInput carries the changeable fields for an update. Nil
// pointers mean "leave unchanged".
type UpdateBookmarkInput struct {
	Title         *string
	Description   *string
	Tags          *[]string
	FolderID      *string
	ScreenshotURL *string
}

// Create validates and stores a new bookmark, bumps its tag counters, and
// publishes the created event that starts the initial screenshot attempt.
func (s *BookmarkService) Create(ctx context.Context, userID string, in CreateBookmarkInput) (*model.Bookmark, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "acting user is required")
	}

	targetURL, err := validateBookmarkURL(in.URL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}

	description := strings.TrimSpace(in.Description)
	if len(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	bookmark := &model.Bookmark{
		UserID:           userID,
		URL:              targetURL,
		Title:            title,
		Description:      description,
		Tags:             tags,
		FolderID:         strings.TrimSpace(in.FolderID),
		ScreenshotStatus: model.ScreenshotPending,
	}

	if err := s.bookmarks.Create(ctx, bookmark); err != nil {
		s.logger.Error("failed to create bookmark",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating bookmark: %w", err)
	}

	for _, tag := range tags {
		if err := s.tags.Attach(ctx, tag); err != nil {
			return nil, fmt.Errorf("attaching tag %q: %w", tag, err)
		}
	}

	// Fire-and-forget: the bookmark exists regardless of whether the
	// capture pipeline hears about it. A lost event leaves the record
	// pending until the sweeper finds it.
	if err := event.PublishBookmarkCreated(s.publisher, event.BookmarkCreated{
		BookmarkID:       bookmark.ID,
		UserID:           bookmark.UserID,
		URL:              bookmark.URL,
		ScreenshotStatus: string(bookmark.ScreenshotStatus),
	}); err != nil {
		s.logger.Error("failed to publish bookmark.created",
			slog.String("bookmarkID", bookmark.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("bookmark created",
		slog.String("id", bookmark.ID),
		slog.String("userID", userID),
	)

	return bookmark, nil
}

// GetByID fetches a bookmark, enforcing ownership.
func (s *BookmarkService) GetByID(ctx context.Context, userID, id string) (*model.Bookmark, error) {
	return s.getOwned(ctx, userID, id)
}

// List returns one page of the user's bookmarks plus the next-page cursor.
func (s *BookmarkService) List(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Bookmark, string, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}

	bookmarks, next, err := s.bookmarks.ListByUser(ctx, userID, opts)
	if err != nil {
		s.logger.Error("failed to list bookmarks",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, "", fmt.Errorf("listing bookmarks: %w", err)
	}

	return bookmarks, next, nil
}

// Count returns the user's total bookmark count.
func (s *BookmarkService) Count(ctx context.Context, userID string) (int, error) {
	n, err := s.bookmarks.CountByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("counting bookmarks: %w", err)
	}
	return n, nil
}

// Update applies content-field changes to an owned bookmark.
//
// The screenshot URL is special-cased: callers may only point it at our own
// blob store (the client re-submitting a URL we issued), never at an
// arbitrary external address. Accepting one marks the record completed.
func (s *BookmarkService) Update(ctx context.Context, userID, id string, in UpdateBookmarkInput) (*model.Bookmark, error) {
	bookmark, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperror.ValidationFailed("title", "title is required")
		}
		if len(title) > MaxTitleLength {
			return nil, apperror.ValidationFailed("title",
				fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
		}
		bookmark.Title = title
	}

	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		if len(description) > MaxDescriptionLength {
			return nil, apperror.ValidationFailed("description",
				fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
		}
		bookmark.Description = description
	}

	if in.FolderID != nil {
		bookmark.FolderID = strings.TrimSpace(*in.FolderID)
	}

	if in.Tags != nil {
		tags, err := normalizeTags(*in.Tags)
		if err != nil {
			return nil, err
		}
		if err := s.reconcileTags(ctx, bookmark.Tags, tags); err != nil {
			return nil, err
		}
		bookmark.Tags = tags
	}

	if in.ScreenshotURL != nil {
		ssURL := strings.TrimSpace(*in.ScreenshotURL)
		if ssURL != "" {
			if !strings.HasPrefix(ssURL, s.blobs.URL("")) {
				return nil, apperror.ValidationFailed("screenshotUrl",
					"screenshot URL must point at this server's screenshot storage")
			}
			bookmark.ScreenshotURL = ssURL
			bookmark.ScreenshotStatus = model.ScreenshotCompleted
			bookmark.ScreenshotError = ""
		}
	}

	if err := s.bookmarks.Update(ctx, bookmark); err != nil {
		s.logger.Error("failed to update bookmark",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating bookmark: %w", err)
	}

	s.logger.Info("bookmark updated", slog.String("id", id))
	return bookmark, nil
}

// Delete removes an owned bookmark, releases its tag counters, and deletes
// the stored thumbnail.
func (s *BookmarkService) Delete(ctx context.Context, userID, id string) error {
	bookmark, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.bookmarks.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting bookmark: %w", err)
	}

	for _, tag := range bookmark.Tags {
		if err := s.tags.Detach(ctx, tag); err != nil {
			s.logger.Error("failed to detach tag after delete",
				slog.String("tag", tag),
				slog.String("error", err.Error()),
			)
		}
	}

	// The record is already gone; a leftover blob is just disk to reclaim,
	// not a reason to fail the request.
	if bookmark.ScreenshotPath != "" {
		if err := s.blobs.Delete(ctx, bookmark.ScreenshotPath); err != nil {
			s.logger.Error("failed to delete screenshot blob",
				slog.String("path", bookmark.ScreenshotPath),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("bookmark deleted", slog.String("id", id))
	return nil
}

// getOwned fetches a bookmark and enforces that userID owns it.
func (s *BookmarkService) getOwned(ctx context.Context, userID, id string) (*model.Bookmark, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "bookmark ID is required")
	}

	bookmark, err := s.bookmarks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bookmark.UserID != userID {
		return nil, apperror.Forbidden("bookmark belongs to another user")
	}

	return bookmark, nil
}

// reconcileTags adjusts the popularity counters for a tag-set change:
// attach what's new, detach what's gone. Unchanged tags keep their count.
func (s *BookmarkService) reconcileTags(ctx context.Context, old, updated []string) error {
	oldSet := make(map[string]bool, len(old))
	for _, t := range old {
		oldSet[t] = true
	}
	newSet := make(map[string]bool, len(updated))
	for _, t := range updated {
		newSet[t] = true
	}

	for _, t := range updated {
		if !oldSet[t] {
			if err := s.tags.Attach(ctx, t); err != nil {
				return fmt.Errorf("attaching tag %q: %w", t, err)
			}
		}
	}
	for _, t := range old {
		if !newSet[t] {
			if err := s.tags.Detach(ctx, t); err != nil {
				return fmt.Errorf("detaching tag %q: %w", t, err)
			}
		}
	}

	return nil
}

// validateBookmarkURL enforces the absolute-http(s) rule before anything
// downstream (especially the capture engine) ever sees the URL.
func validateBookmarkURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperror.ValidationFailed("url", "url is required")
	}
	if len(raw) > MaxURLLength {
		return "", apperror.ValidationFailed("url",
			fmt.Sprintf("url must be %d characters or less", MaxURLLength))
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", apperror.ValidationFailed("url", "url is not valid")
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", apperror.ValidationFailed("url", "url must be an absolute http(s) URL")
	}

	return raw, nil
}

// normalizeTags trims entries, drops empties and duplicates, and enforces
// the per-tag and per-bookmark limits.
func normalizeTags(raw []string) ([]string, error) {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		if len(t) > MaxTagLength {
			return nil, apperror.ValidationFailed("tags",
				fmt.Sprintf("tags must be %d characters or less", MaxTagLength))
		}
		seen[t] = true
		tags = append(tags, t)
	}

	if len(tags) > MaxTags {
		return nil, apperror.ValidationFailed("tags",
			fmt.Sprintf("a bookmark may carry at most %d tags", MaxTags))
	}

	return tags, nil
}
