package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/linkstash/internal/auth"
	"github.com/sakif/linkstash/internal/blob"
	"github.com/sakif/linkstash/internal/model"
	"github.com/sakif/linkstash/internal/repository/sqlite"
	"github.com/sakif/linkstash/internal/screenshot"
	"github.com/sakif/linkstash/internal/service"
)

// stubAttempter lets the interactive capture endpoint be tested without a
// browser.
type stubAttempter struct {
	result screenshot.Result
	calls  int
}

func (a *stubAttempter) Attempt(_ context.Context, _, _, _ string) (screenshot.Result, error) {
	a.calls++
	return a.result, nil
}

// fixture wires real services over an in-memory database so the tests
// exercise the full request path: middleware, handler, service, store.
type fixture struct {
	router    *chi.Mux
	tokens    *auth.TokenService
	db        *sqlite.DB
	attempter *stubAttempter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	blobs, err := blob.NewFSStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)

	bookmarkSvc := service.NewBookmarkService(db, db, blobs, pubsub, logger)
	authSvc := service.NewAuthService(db, tokens, auth.NewAPITokenServiceForTest(4), logger)

	attempter := &stubAttempter{result: screenshot.Result{Success: true, ScreenshotURL: "http://localhost:8080/screenshots/x.jpg"}}
	bookmarks := NewBookmarkHandler(bookmarkSvc, attempter, logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens, authSvc))
		r.Get("/bookmarks", bookmarks.HandleList)
		r.Post("/bookmarks", bookmarks.HandleCreate)
		r.Get("/bookmarks/count", bookmarks.HandleCount)
		r.Get("/bookmarks/{id}", bookmarks.HandleGet)
		r.Put("/bookmarks/{id}", bookmarks.HandleUpdate)
		r.Delete("/bookmarks/{id}", bookmarks.HandleDelete)
		r.Post("/bookmarks/{id}/screenshot", bookmarks.HandleCaptureScreenshot)
	})

	return &fixture{router: r, tokens: tokens, db: db, attempter: attempter}
}

// createUser inserts a user and returns their internal ID.
func (f *fixture) createUser(t *testing.T, githubID int64) string {
	t.Helper()
	user := &model.User{GitHubID: githubID, Login: "tester"}
	require.NoError(t, f.db.Upsert(context.Background(), user))
	return user.ID
}

// request performs an authenticated request as userID.
func (f *fixture) request(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		token, err := f.tokens.Generate(userID)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
	}

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestHandleCreateBookmark(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, 1)

	rr := f.request(t, userID, http.MethodPost, "/api/bookmarks", map[string]any{
		"url":   "https://example.com",
		"title": "Example",
		"tags":  []string{"web"},
	})

	require.Equal(t, http.StatusCreated, rr.Code)

	var b model.Bookmark
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &b))
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, userID, b.UserID)
	assert.Equal(t, model.ScreenshotPending, b.ScreenshotStatus)
}

func TestHandleCreateBookmarkValidation(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, 1)

	rr := f.request(t, userID, http.MethodPost, "/api/bookmarks", map[string]any{
		"url":   "not-a-url",
		"title": "Example",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error)
}

func TestHandleCreateBookmarkUnauthenticated(t *testing.T) {
	f := newFixture(t)

	rr := f.request(t, "", http.MethodPost, "/api/bookmarks", map[string]any{
		"url":   "https://example.com",
		"title": "Example",
	})

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleGetBookmarkOwnership(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, 1)
	stranger := f.createUser(t, 2)

	rr := f.request(t, owner, http.MethodPost, "/api/bookmarks", map[string]any{
		"url":   "https://example.com",
		"title": "Example",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var b model.Bookmark
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &b))

	assert.Equal(t, http.StatusOK, f.request(t, owner, http.MethodGet, "/api/bookmarks/"+b.ID, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.request(t, stranger, http.MethodGet, "/api/bookmarks/"+b.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.request(t, owner, http.MethodGet, "/api/bookmarks/missing", nil).Code)
}

func TestHandleDeleteBookmark(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, 1)

	rr := f.request(t, userID, http.MethodPost, "/api/bookmarks", map[string]any{
		"url":   "https://example.com",
		"title": "Example",
	})
	var b model.Bookmark
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &b))

	assert.Equal(t, http.StatusNoContent, f.request(t, userID, http.MethodDelete, "/api/bookmarks/"+b.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.request(t, userID, http.MethodGet, "/api/bookmarks/"+b.ID, nil).Code)
}

func TestHandleCaptureScreenshot(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, 1)

	rr := f.request(t, userID, http.MethodPost, "/api/bookmarks", map[string]any{
		"url":   "https://example.com",
		"title": "Example",
	})
	var b model.Bookmark
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &b))

	rr = f.request(t, userID, http.MethodPost, "/api/bookmarks/"+b.ID+"/screenshot", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var result screenshot.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, f.attempter.calls)

	// A stranger never reaches the attempter.
	stranger := f.createUser(t, 2)
	rr = f.request(t, stranger, http.MethodPost, "/api/bookmarks/"+b.ID+"/screenshot", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, 1, f.attempter.calls)
}

func TestHandleCountAndList(t *testing.T) {
	f := newFixture(t)
	userID := f.createUser(t, 1)

	for _, u := range []string{"https://a.example.com", "https://b.example.com"} {
		rr := f.request(t, userID, http.MethodPost, "/api/bookmarks", map[string]any{"url": u, "title": "t"})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := f.request(t, userID, http.MethodGet, "/api/bookmarks/count", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var count map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &count))
	assert.Equal(t, 2, count["count"])

	rr = f.request(t, userID, http.MethodGet, "/api/bookmarks?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var page listBookmarksResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Len(t, page.Bookmarks, 1)
	assert.NotEmpty(t, page.NextCursor)
}
