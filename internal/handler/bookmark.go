package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/linkstash/internal/auth"
	"github.com/sakif/linkstash/internal/model"
	"github.com/sakif/linkstash/internal/repository"
	"github.com/sakif/linkstash/internal/screenshot"
	"github.com/sakif/linkstash/internal/service"
)

// BookmarkHandler exposes the bookmark CRUD API plus the interactive
// re-capture endpoint.
type BookmarkHandler struct {
	bookmarks *service.BookmarkService
	attempter screenshot.Attempter
	logger    *slog.Logger
}

// NewBookmarkHandler creates a BookmarkHandler.
func NewBookmarkHandler(bookmarks *service.BookmarkService, attempter screenshot.Attempter, logger *slog.Logger) *BookmarkHandler {
	return &BookmarkHandler{
		bookmarks: bookmarks,
		attempter: attempter,
		logger:    logger,
	}
}

type createBookmarkRequest struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	FolderID    string   `json:"folderId"`
}

type updateBookmarkRequest struct {
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	Tags          *[]string `json:"tags"`
	FolderID      *string   `json:"folderId"`
	ScreenshotURL *string   `json:"screenshotUrl"`
}

// listBookmarksResponse wraps a page with its continuation cursor.
type listBookmarksResponse struct {
	Bookmarks  []model.Bookmark `json:"bookmarks"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// HandleCreate creates a bookmark.
//
// HTTP: POST /api/bookmarks
func (h *BookmarkHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req createBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	bookmark, err := h.bookmarks.Create(r.Context(), userID, service.CreateBookmarkInput{
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		FolderID:    req.FolderID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bookmark)
}

// HandleList returns one page of the caller's bookmarks.
//
// HTTP: GET /api/bookmarks?limit=&cursor=&folder=&tag=&q=
func (h *BookmarkHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	bookmarks, next, err := h.bookmarks.List(r.Context(), userID, repository.ListOptions{
		Limit:    limit,
		Cursor:   q.Get("cursor"),
		FolderID: q.Get("folder"),
		Tag:      q.Get("tag"),
		Query:    q.Get("q"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if bookmarks == nil {
		bookmarks = []model.Bookmark{}
	}
	writeJSON(w, http.StatusOK, listBookmarksResponse{Bookmarks: bookmarks, NextCursor: next})
}

// HandleGet fetches one bookmark.
//
// HTTP: GET /api/bookmarks/{id}
func (h *BookmarkHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	bookmark, err := h.bookmarks.GetByID(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bookmark)
}

// HandleUpdate applies a partial update.
//
// HTTP: PUT /api/bookmarks/{id}
func (h *BookmarkHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req updateBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	bookmark, err := h.bookmarks.Update(r.Context(), userID, r.PathValue("id"), service.UpdateBookmarkInput{
		Title:         req.Title,
		Description:   req.Description,
		Tags:          req.Tags,
		FolderID:      req.FolderID,
		ScreenshotURL: req.ScreenshotURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bookmark)
}

// HandleDelete removes a bookmark.
//
// HTTP: DELETE /api/bookmarks/{id}
func (h *BookmarkHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.bookmarks.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleCount returns the caller's total bookmark count.
//
// HTTP: GET /api/bookmarks/count
func (h *BookmarkHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	n, err := h.bookmarks.Count(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// HandleCaptureScreenshot runs a capture attempt synchronously and returns
// the outcome. A capture failure is a 200 with success=false; the request
// only errors for validation, ownership, or infrastructure faults.
//
// HTTP: POST /api/bookmarks/{id}/screenshot
func (h *BookmarkHandler) HandleCaptureScreenshot(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	// Ownership check before spending a browser launch on it.
	bookmark, err := h.bookmarks.GetByID(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.attempter.Attempt(r.Context(), bookmark.ID, bookmark.URL, bookmark.UserID)
	if err != nil {
		h.logger.Error("interactive capture failed",
			slog.String("bookmarkID", bookmark.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
