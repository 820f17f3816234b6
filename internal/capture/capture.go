// Package capture defines the screenshot capture boundary: an engine takes
// a validated URL and returns raw viewport image bytes, or a classified
// failure from a closed set of kinds.
//
// The chromedp subpackage provides the headless-Chrome implementation; tests
// substitute stub engines.
package capture

import (
	"context"
	"fmt"
	"time"
)

// Request describes one capture attempt. URL is assumed to be a validated
// absolute http(s) URL; syntax checks happen before any rendering resource
// is acquired.
type Request struct {
	URL string
}

// Result carries the raw raster produced by the engine.
type Result struct {
	// Image is the undecoded raster (PNG from Chrome). Post-processing into
	// a thumbnail is the orchestrator's next step, not the engine's concern.
	Image    []byte
	Duration time.Duration
}

// Engine renders a URL and rasterizes the viewport.
//
// Capture returns (*Result, nil) on success and (nil, *Error) for any
// capture-domain failure. Implementations must release every rendering
// resource they acquire on all exit paths, and must enforce their own
// deadlines; callers do not cancel a capture from outside.
type Engine interface {
	Capture(ctx context.Context, req Request) (*Result, error)
}

// Kind is the closed failure taxonomy for capture attempts. The stored
// screenshot error message is derived from the kind, not from whatever text
// the underlying library produced.
type Kind int

const (
	// NavigationTimeout: the page did not reach DOM-ready within the budget.
	NavigationTimeout Kind = iota
	// ConnectionFailed: DNS resolution or the TCP/TLS connection failed.
	ConnectionFailed
	// RenderCrash: the browser failed to launch or died mid-render.
	RenderCrash
	// EncodingFailed: the raster could not be decoded or re-encoded.
	EncodingFailed
	// UploadFailed: the thumbnail could not be written to the blob store.
	UploadFailed
)

// String returns the stable human-readable message for the kind. These
// strings end up in the bookmark's screenshotError field.
func (k Kind) String() string {
	switch k {
	case NavigationTimeout:
		return "navigation timed out"
	case ConnectionFailed:
		return "could not connect to site"
	case RenderCrash:
		return "renderer crashed"
	case EncodingFailed:
		return "image encoding failed"
	case UploadFailed:
		return "screenshot upload failed"
	default:
		return "capture failed"
	}
}

// Error is a capture-domain failure. It wraps the cause for logging but its
// message is deterministic in the Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture: %s: %v", e.Kind, e.Err)
	}
	return "capture: " + e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Failure wraps cause as a capture failure of the given kind.
func Failure(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}
