package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/linkstash/internal/apperror"
	"github.com/sakif/linkstash/internal/model"
	"github.com/sakif/linkstash/internal/repository"
)

// DefaultTagListLimit caps the popularity listing when no limit is given.
const DefaultTagListLimit = 50

// TagService exposes the tag popularity counters maintained by the
// bookmark service.
type TagService struct {
	tags   repository.TagRepository
	logger *slog.Logger
}

// NewTagService wires a TagService.
func NewTagService(tags repository.TagRepository, logger *slog.Logger) *TagService {
	return &TagService{tags: tags, logger: logger}
}

// List returns visible tags (count >= 1), most popular first.
func (s *TagService) List(ctx context.Context, limit int) ([]model.Tag, error) {
	if limit <= 0 {
		limit = DefaultTagListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	tags, err := s.tags.List(ctx, limit)
	if err != nil {
		s.logger.Error("failed to list tags", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	return tags, nil
}

// GetBySlug looks up a single tag by its normalized slug.
func (s *TagService) GetBySlug(ctx context.Context, slug string) (*model.Tag, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, apperror.ValidationFailed("slug", "tag slug is required")
	}

	return s.tags.GetBySlug(ctx, slug)
}
