// Package model defines the data structures used throughout the application.
package model

import "time"

// ScreenshotStatus tracks the lifecycle of a bookmark's thumbnail capture.
//
// Transitions are driven by the screenshot orchestrator:
//
//	pending → processing → completed
//	                     → failed
//
// A failed bookmark may re-enter processing via the retry sweeper until its
// retry counter reaches the ceiling.
type ScreenshotStatus string

const (
	ScreenshotPending    ScreenshotStatus = "pending"
	ScreenshotProcessing ScreenshotStatus = "processing"
	ScreenshotCompleted  ScreenshotStatus = "completed"
	ScreenshotFailed     ScreenshotStatus = "failed"
)

// Valid reports whether s is one of the four known states.
func (s ScreenshotStatus) Valid() bool {
	switch s {
	case ScreenshotPending, ScreenshotProcessing, ScreenshotCompleted, ScreenshotFailed:
		return true
	}
	return false
}

// Bookmark is a user-owned record pairing a URL with metadata and an
// optional captured thumbnail.
//
// Invariants maintained by the service and orchestrator layers:
//   - UserID is set once at creation and never changes; it is the sole
//     ownership boundary for read/update/delete.
//   - ScreenshotStatus == completed exactly when ScreenshotURL != "".
//   - ScreenshotRetries only increases.
//
// Nullable columns (ScreenshotURL, ScreenshotPath, ScreenshotError, FolderID)
// use the empty string as the null value; the sqlite layer maps "" to NULL.
type Bookmark struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	FolderID    string   `json:"folderId,omitempty"`

	ScreenshotURL     string           `json:"screenshotUrl,omitempty"`
	ScreenshotPath    string           `json:"screenshotPath,omitempty"`
	ScreenshotStatus  ScreenshotStatus `json:"screenshotStatus"`
	ScreenshotError   string           `json:"screenshotError,omitempty"`
	ScreenshotRetries int              `json:"screenshotRetries"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
