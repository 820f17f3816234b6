package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/linkstash/internal/model"
	"github.com/sakif/linkstash/internal/service"
)

// TagHandler exposes the tag popularity API.
type TagHandler struct {
	tags   *service.TagService
	logger *slog.Logger
}

// NewTagHandler creates a TagHandler.
func NewTagHandler(tags *service.TagService, logger *slog.Logger) *TagHandler {
	return &TagHandler{tags: tags, logger: logger}
}

// HandleList returns visible tags ordered by popularity.
//
// HTTP: GET /api/tags?limit=
func (h *TagHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tags, err := h.tags.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	if tags == nil {
		tags = []model.Tag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

// HandleGet returns one tag by slug, including hidden (count < 1) tags.
//
// HTTP: GET /api/tags/{slug}
func (h *TagHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tag, err := h.tags.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tag)
}
