package chromedp

import (
	"time"
)

// Config holds the engine's launch and capture parameters. It is a plain
// value passed into New; nothing here is global, so tests can construct
// engines with short timeouts or a custom browser binary.
type Config struct {
	// ViewportWidth/ViewportHeight set the rendered viewport. The capture is
	// a single raster of this viewport, never the full scrollable page.
	ViewportWidth  int
	ViewportHeight int
	// UserAgent is sent on every request. A realistic browser string reduces
	// anti-bot blocking on sites that reject obvious automation.
	UserAgent string
	// NavigationTimeout bounds the navigate-to-DOM-ready phase.
	NavigationTimeout time.Duration
	// SettleDelay is waited after DOM-ready before rasterizing, giving lazy
	// images and client-side frameworks a chance to paint.
	SettleDelay time.Duration
	// OverallTimeout bounds the whole attempt including browser startup,
	// settle, and rasterization.
	OverallTimeout time.Duration
	// ExecPath overrides the Chrome binary location ("" = auto-discover).
	ExecPath string
}

// DefaultConfig returns the production capture parameters.
//
// The navigation completion signal is DOM-ready rather than network-idle:
// sites with long-lived connections (analytics beacons, websockets) never
// reach network-idle, and a reliable partial render beats a timeout.
func DefaultConfig() Config {
	return Config{
		ViewportWidth:     1280,
		ViewportHeight:    720,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		NavigationTimeout: 30 * time.Second,
		SettleDelay:       2 * time.Second,
		OverallTimeout:    120 * time.Second,
	}
}
