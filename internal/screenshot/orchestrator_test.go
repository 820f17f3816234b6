package screenshot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/linkstash/internal/apperror"
	"github.com/sakif/linkstash/internal/capture"
	"github.com/sakif/linkstash/internal/model"
	"github.com/sakif/linkstash/internal/repository"
)

// mockBookmarkRepo records the state-machine writes in order so tests can
// assert the exact transition sequence, and can be told to fail a given
// write to simulate the store going down mid-attempt.
type mockBookmarkRepo struct {
	bookmarks   map[string]*model.Bookmark
	transitions []string

	failProcessing bool
	failCompleted  bool
	failFailed     bool
	failIncrement  bool

	retryable []model.Bookmark
	listErr   error
}

func newMockBookmarkRepo() *mockBookmarkRepo {
	return &mockBookmarkRepo{bookmarks: make(map[string]*model.Bookmark)}
}

func (m *mockBookmarkRepo) add(b model.Bookmark) {
	stored := b
	m.bookmarks[b.ID] = &stored
}

func (m *mockBookmarkRepo) Create(_ context.Context, b *model.Bookmark) error {
	m.add(*b)
	return nil
}

func (m *mockBookmarkRepo) GetByID(_ context.Context, id string) (*model.Bookmark, error) {
	b, ok := m.bookmarks[id]
	if !ok {
		return nil, apperror.NotFound("bookmark", id)
	}
	result := *b
	return &result, nil
}

func (m *mockBookmarkRepo) ListByUser(_ context.Context, _ string, _ repository.ListOptions) ([]model.Bookmark, string, error) {
	return nil, "", nil
}

func (m *mockBookmarkRepo) Update(_ context.Context, b *model.Bookmark) error {
	m.add(*b)
	return nil
}

func (m *mockBookmarkRepo) Delete(_ context.Context, id string) error {
	delete(m.bookmarks, id)
	return nil
}

func (m *mockBookmarkRepo) CountByUser(_ context.Context, _ string) (int, error) {
	return len(m.bookmarks), nil
}

func (m *mockBookmarkRepo) MarkScreenshotProcessing(_ context.Context, id string) error {
	if m.failProcessing {
		return errors.New("store is down")
	}
	b, ok := m.bookmarks[id]
	if !ok {
		return apperror.NotFound("bookmark", id)
	}
	b.ScreenshotStatus = model.ScreenshotProcessing
	m.transitions = append(m.transitions, "processing")
	return nil
}

func (m *mockBookmarkRepo) MarkScreenshotCompleted(_ context.Context, id, url, path string) error {
	if m.failCompleted {
		return errors.New("store is down")
	}
	b, ok := m.bookmarks[id]
	if !ok {
		return apperror.NotFound("bookmark", id)
	}
	b.ScreenshotStatus = model.ScreenshotCompleted
	b.ScreenshotURL = url
	b.ScreenshotPath = path
	b.ScreenshotError = ""
	m.transitions = append(m.transitions, "completed")
	return nil
}

func (m *mockBookmarkRepo) MarkScreenshotFailed(_ context.Context, id, message string) error {
	if m.failFailed {
		return errors.New("store is down")
	}
	b, ok := m.bookmarks[id]
	if !ok {
		return apperror.NotFound("bookmark", id)
	}
	b.ScreenshotStatus = model.ScreenshotFailed
	b.ScreenshotURL = ""
	b.ScreenshotError = message
	m.transitions = append(m.transitions, "failed")
	return nil
}

func (m *mockBookmarkRepo) IncrementScreenshotRetries(_ context.Context, id string) error {
	if m.failIncrement {
		return errors.New("store is down")
	}
	b, ok := m.bookmarks[id]
	if !ok {
		return apperror.NotFound("bookmark", id)
	}
	b.ScreenshotRetries++
	m.transitions = append(m.transitions, "increment")
	return nil
}

func (m *mockBookmarkRepo) ListRetryable(_ context.Context, _ time.Time, limit int) ([]model.Bookmark, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if limit > len(m.retryable) {
		limit = len(m.retryable)
	}
	return m.retryable[:limit], nil
}

// stubEngine returns a canned capture outcome and counts invocations.
type stubEngine struct {
	result *capture.Result
	err    error
	calls  int
}

func (e *stubEngine) Capture(_ context.Context, _ capture.Request) (*capture.Result, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

// mockBlobStore keeps blobs in a map; putErr simulates storage failures.
type mockBlobStore struct {
	blobs  map[string][]byte
	putErr error
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{blobs: make(map[string][]byte)}
}

func (m *mockBlobStore) Put(_ context.Context, key string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.blobs[key] = data
	return nil
}

func (m *mockBlobStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.blobs[key]
	return ok, nil
}

func (m *mockBlobStore) Delete(_ context.Context, key string) error {
	delete(m.blobs, key)
	return nil
}

func (m *mockBlobStore) URL(key string) string {
	return "http://localhost:8080/" + key
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pngBytes produces a real encoded raster, since the happy path decodes it.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func pendingBookmark(id string) model.Bookmark {
	return model.Bookmark{
		ID:               id,
		UserID:           "user-1",
		URL:              "https://example.com",
		Title:            "Example",
		ScreenshotStatus: model.ScreenshotPending,
	}
}

func TestOrchestratorAttemptSuccess(t *testing.T) {
	repo := newMockBookmarkRepo()
	repo.add(pendingBookmark("bm-1"))
	blobs := newMockBlobStore()
	engine := &stubEngine{result: &capture.Result{Image: pngBytes(t, 1280, 720)}}

	orch := NewOrchestrator(repo, blobs, engine, discardLogger())

	res, err := orch.Attempt(context.Background(), "bm-1", "https://example.com", "user-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)

	// Processing first, completion second; nothing else touched the record.
	assert.Equal(t, []string{"processing", "completed"}, repo.transitions)

	b := repo.bookmarks["bm-1"]
	assert.Equal(t, model.ScreenshotCompleted, b.ScreenshotStatus)
	assert.Equal(t, res.ScreenshotURL, b.ScreenshotURL)
	assert.NotEmpty(t, b.ScreenshotPath)
	assert.True(t, strings.HasPrefix(b.ScreenshotPath, "screenshots/user-1/"))
	assert.True(t, strings.HasSuffix(b.ScreenshotPath, ".jpg"))

	// The thumbnail actually landed in the store under the recorded path.
	_, ok := blobs.blobs[b.ScreenshotPath]
	assert.True(t, ok)
	assert.Equal(t, 1, engine.calls)
}

func TestOrchestratorAttemptCaptureFailure(t *testing.T) {
	tests := []struct {
		name    string
		kind    capture.Kind
		message string
	}{
		{"timeout", capture.NavigationTimeout, "navigation timed out"},
		{"connection", capture.ConnectionFailed, "could not connect to site"},
		{"crash", capture.RenderCrash, "renderer crashed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockBookmarkRepo()
			repo.add(pendingBookmark("bm-1"))
			engine := &stubEngine{err: capture.Failure(tt.kind, errors.New("underlying detail"))}

			orch := NewOrchestrator(repo, newMockBlobStore(), engine, discardLogger())

			// A dead site is the bookmark's problem, not the caller's: nil
			// error, failure reported in the result.
			res, err := orch.Attempt(context.Background(), "bm-1", "https://example.com", "user-1")
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.message, res.Error)
			assert.Empty(t, res.ScreenshotURL)

			assert.Equal(t, []string{"processing", "failed"}, repo.transitions)

			b := repo.bookmarks["bm-1"]
			assert.Equal(t, model.ScreenshotFailed, b.ScreenshotStatus)
			assert.Equal(t, tt.message, b.ScreenshotError)
			assert.Empty(t, b.ScreenshotURL)
		})
	}
}

func TestOrchestratorAttemptUndecodableImage(t *testing.T) {
	repo := newMockBookmarkRepo()
	repo.add(pendingBookmark("bm-1"))
	engine := &stubEngine{result: &capture.Result{Image: []byte("not an image")}}

	orch := NewOrchestrator(repo, newMockBlobStore(), engine, discardLogger())

	res, err := orch.Attempt(context.Background(), "bm-1", "https://example.com", "user-1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "image encoding failed", res.Error)
	assert.Equal(t, model.ScreenshotFailed, repo.bookmarks["bm-1"].ScreenshotStatus)
}

func TestOrchestratorAttemptUploadFailure(t *testing.T) {
	repo := newMockBookmarkRepo()
	repo.add(pendingBookmark("bm-1"))
	blobs := newMockBlobStore()
	blobs.putErr = errors.New("disk full")
	engine := &stubEngine{result: &capture.Result{Image: pngBytes(t, 800, 600)}}

	orch := NewOrchestrator(repo, blobs, engine, discardLogger())

	res, err := orch.Attempt(context.Background(), "bm-1", "https://example.com", "user-1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "screenshot upload failed", res.Error)
	assert.Equal(t, model.ScreenshotFailed, repo.bookmarks["bm-1"].ScreenshotStatus)
}

func TestOrchestratorAttemptValidation(t *testing.T) {
	orch := NewOrchestrator(newMockBookmarkRepo(), newMockBlobStore(), &stubEngine{}, discardLogger())

	tests := []struct {
		name                    string
		bookmarkID, url, userID string
	}{
		{"missing bookmark ID", "", "https://example.com", "user-1"},
		{"missing URL", "bm-1", "", "user-1"},
		{"missing user ID", "bm-1", "https://example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orch.Attempt(context.Background(), tt.bookmarkID, tt.url, tt.userID)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestOrchestratorAttemptInfraErrorPropagates(t *testing.T) {
	repo := newMockBookmarkRepo()
	repo.add(pendingBookmark("bm-1"))
	repo.failProcessing = true

	orch := NewOrchestrator(repo, newMockBlobStore(), &stubEngine{}, discardLogger())

	// The store failing is a genuine server fault and must surface as an
	// error, unlike capture-domain failures.
	_, err := orch.Attempt(context.Background(), "bm-1", "https://example.com", "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store is down")
}

func TestOrchestratorFreshKeyPerAttempt(t *testing.T) {
	repo := newMockBookmarkRepo()
	repo.add(pendingBookmark("bm-1"))
	blobs := newMockBlobStore()
	engine := &stubEngine{result: &capture.Result{Image: pngBytes(t, 400, 300)}}

	orch := NewOrchestrator(repo, blobs, engine, discardLogger())

	_, err := orch.Attempt(context.Background(), "bm-1", "https://example.com", "user-1")
	require.NoError(t, err)
	first := repo.bookmarks["bm-1"].ScreenshotPath

	_, err = orch.Attempt(context.Background(), "bm-1", "https://example.com", "user-1")
	require.NoError(t, err)
	second := repo.bookmarks["bm-1"].ScreenshotPath

	assert.NotEqual(t, first, second)
	assert.Len(t, blobs.blobs, 2)
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "navigation timed out",
		failureMessage(capture.Failure(capture.NavigationTimeout, errors.New("x"))))
	// Errors from outside the taxonomy get the generic message.
	assert.Equal(t, "capture failed", failureMessage(errors.New("mystery")))
}
